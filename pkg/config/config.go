package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	Storage  StorageConfig
	Image    ImageConfig
	Cleanup  CleanupConfig
}

type AppConfig struct {
	Name        string
	Port        string
	Env         string
	CorsOrigins string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig backs the image record cache. An empty URL disables it.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	CacheTTL time.Duration
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type StorageConfig struct {
	Type     string // local, s3
	BasePath string // root for local storage, e.g. ./uploads
	BaseURL  string // public prefix for stored files, e.g. http://localhost:8080/files

	S3 S3Config
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
}

// ImageConfig holds the upload pipeline knobs.
type ImageConfig struct {
	MaxUploadSize      int64
	BudgetPolicy       string   // best_effort, strict
	AsyncCategories    []string // categories that save raw and compress in the background
	DispatcherWorkers  int
	DispatcherQueue    int
	ProfileBackup      bool
	DefaultProfilePath string
}

type CleanupConfig struct {
	Enabled         bool
	Cron            string
	TempFileMaxAge  time.Duration
	BackupRetention time.Duration // 0 keeps backups forever
	OrphanGrace     time.Duration
	RemoveOrphans   bool
	MinFreeSpaceGB  float64
}

func LoadConfig() (*Config, error) {
	// a missing .env is fine, plain environment variables are used instead
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "Bros Media"),
			Port: getEnv("APP_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),

			CorsOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "bros"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", 10*time.Minute),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "both"),
			FilePath:   getEnv("LOG_FILE", "logs/app.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Storage: StorageConfig{
			Type:     getEnv("STORAGE_TYPE", "local"),
			BasePath: getEnv("STORAGE_BASE_PATH", "./uploads"),
			BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/files"),
			S3: S3Config{
				Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
				AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
				SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
				Bucket:    getEnv("S3_BUCKET", "images"),
				UseSSL:    getEnvBool("S3_USE_SSL", false),
				Region:    getEnv("S3_REGION", "auto"),
				PublicURL: getEnv("S3_PUBLIC_URL", ""),
			},
		},
		Image: ImageConfig{
			MaxUploadSize:      getEnvInt64("IMAGE_MAX_UPLOAD_SIZE", 20*1024*1024),
			BudgetPolicy:       getEnv("IMAGE_BUDGET_POLICY", "best_effort"),
			AsyncCategories:    parseList(getEnv("IMAGE_ASYNC_CATEGORIES", "")),
			DispatcherWorkers:  getEnvInt("IMAGE_DISPATCHER_WORKERS", 4),
			DispatcherQueue:    getEnvInt("IMAGE_DISPATCHER_QUEUE", 256),
			ProfileBackup:      getEnvBool("IMAGE_PROFILE_BACKUP", true),
			DefaultProfilePath: getEnv("IMAGE_DEFAULT_PROFILE_PATH", "static/default_profile.jpg"),
		},
		Cleanup: CleanupConfig{
			Enabled:         getEnvBool("CLEANUP_ENABLED", true),
			Cron:            getEnv("CLEANUP_CRON", "0 3 * * *"),
			TempFileMaxAge:  getEnvDuration("CLEANUP_TEMP_MAX_AGE", 24*time.Hour),
			BackupRetention: getEnvDuration("CLEANUP_BACKUP_RETENTION", 90*24*time.Hour),
			OrphanGrace:     getEnvDuration("CLEANUP_ORPHAN_GRACE", 24*time.Hour),
			RemoveOrphans:   getEnvBool("CLEANUP_REMOVE_ORPHANS", false),
			MinFreeSpaceGB:  getEnvFloat("CLEANUP_MIN_FREE_GB", 5),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	return v == "true" || v == "1"
}

// getEnvDuration accepts Go duration strings such as "36h" or "15m".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

// parseList splits a comma-separated value, e.g. "post,reply" -> ["post", "reply"]
func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.ToLower(strings.TrimSpace(p)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsAsyncCategory reports whether uploads of category default to the background path.
func (c ImageConfig) IsAsyncCategory(category string) bool {
	category = strings.ToLower(category)
	for _, v := range c.AsyncCategories {
		if v == category {
			return true
		}
	}
	return false
}
