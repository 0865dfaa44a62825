package di

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/RCXD/Bros-back/application/serviceimpl"
	"github.com/RCXD/Bros-back/domain/models"
	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/domain/repositories"
	"github.com/RCXD/Bros-back/domain/services"
	"github.com/RCXD/Bros-back/infrastructure/imagecodec"
	"github.com/RCXD/Bros-back/infrastructure/postgres"
	redispkg "github.com/RCXD/Bros-back/infrastructure/redis"
	"github.com/RCXD/Bros-back/infrastructure/storage"
	"github.com/RCXD/Bros-back/interfaces/api/handlers"
	"github.com/RCXD/Bros-back/pkg/config"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/scheduler"
)

// dispatcherDrainTimeout bounds how long shutdown waits for queued compression jobs.
const dispatcherDrainTimeout = 30 * time.Second

type Container struct {
	// Configuration
	Config *config.Config

	// Infrastructure
	DB             *gorm.DB
	RedisClient    *redispkg.Client // optional, nil disables the record cache
	ImageCache     ports.ImageCachePort
	Storage        ports.StoragePort
	Compressor     ports.CompressorPort
	EventScheduler scheduler.EventScheduler

	// Repositories
	ImageRepository repositories.ImageRepository

	// Pipeline
	DeletionManager    *serviceimpl.ImageDeletionManager
	CompressDispatcher *serviceimpl.CompressDispatcher

	// Services
	ImageService   services.ImageService
	StorageService services.StorageService
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Initialize() error {
	if err := c.initConfig(); err != nil {
		return err
	}

	if err := c.initLogger(); err != nil {
		return err
	}

	if err := c.initInfrastructure(); err != nil {
		return err
	}

	if err := c.initRepositories(); err != nil {
		return err
	}

	if err := c.initServices(); err != nil {
		return err
	}

	if err := c.initScheduler(); err != nil {
		return err
	}

	if err := c.initStorageCleanup(); err != nil {
		return err
	}

	return nil
}

func (c *Container) initConfig() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = cfg
	logger.Info("Configuration loaded")
	return nil
}

func (c *Container) initLogger() error {
	logConfig := logger.Config{
		Level:      c.Config.Log.Level,
		Format:     c.Config.Log.Format,
		Output:     c.Config.Log.Output,
		FilePath:   c.Config.Log.FilePath,
		MaxSize:    c.Config.Log.MaxSize,
		MaxBackups: c.Config.Log.MaxBackups,
		MaxAge:     c.Config.Log.MaxAge,
		Compress:   c.Config.Log.Compress,
	}

	if err := logger.Init(logConfig); err != nil {
		return err
	}

	logger.Info("Logger initialized",
		"level", c.Config.Log.Level,
		"format", c.Config.Log.Format,
		"output", c.Config.Log.Output,
		"file", c.Config.Log.FilePath,
	)
	return nil
}

func (c *Container) initInfrastructure() error {
	dbConfig := postgres.DatabaseConfig{
		Host:     c.Config.Database.Host,
		Port:     c.Config.Database.Port,
		User:     c.Config.Database.User,
		Password: c.Config.Database.Password,
		DBName:   c.Config.Database.DBName,
		SSLMode:  c.Config.Database.SSLMode,
	}

	db, err := postgres.NewDatabase(dbConfig)
	if err != nil {
		return err
	}
	c.DB = db
	logger.Info("Database connected", "host", c.Config.Database.Host, "db", c.Config.Database.DBName)

	if err := postgres.Migrate(db); err != nil {
		return err
	}
	logger.Info("Database migrated")

	// Redis is optional, the service reads straight from the database without it
	if c.Config.Redis.URL != "" {
		redisClient, err := redispkg.NewClient(&c.Config.Redis)
		if err != nil {
			logger.Warn("Redis client initialization failed (cache disabled)", "error", err)
		} else {
			c.RedisClient = redisClient
			c.ImageCache = redispkg.NewImageCache(redisClient, c.Config.Redis.CacheTTL)
			logger.Info("Redis client initialized", "url", c.Config.Redis.URL)
		}
	}

	if err := c.initStorage(); err != nil {
		return err
	}

	c.Compressor = imagecodec.NewCompressor(imagecodec.CompressorConfig{})
	return nil
}

// initStorage picks the storage adapter from STORAGE_TYPE.
func (c *Container) initStorage() error {
	switch c.Config.Storage.Type {
	case "s3":
		s3Config := storage.S3StorageConfig{
			Endpoint:  c.Config.Storage.S3.Endpoint,
			AccessKey: c.Config.Storage.S3.AccessKey,
			SecretKey: c.Config.Storage.S3.SecretKey,
			Bucket:    c.Config.Storage.S3.Bucket,
			UseSSL:    c.Config.Storage.S3.UseSSL,
			Region:    c.Config.Storage.S3.Region,
			PublicURL: c.Config.Storage.S3.PublicURL,
		}
		s3Storage, err := storage.NewS3Storage(s3Config)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		c.Storage = s3Storage
		logger.Info("S3 Storage initialized",
			"endpoint", c.Config.Storage.S3.Endpoint,
			"bucket", c.Config.Storage.S3.Bucket,
		)

	default:
		if c.Config.Storage.Type != "local" {
			logger.Warn("Unknown storage type, using local", "type", c.Config.Storage.Type)
		}
		localConfig := storage.LocalStorageConfig{
			BasePath: c.Config.Storage.BasePath,
			BaseURL:  c.Config.Storage.BaseURL,
		}
		localStorage, err := storage.NewLocalStorage(localConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize local storage: %w", err)
		}
		c.Storage = localStorage
		logger.Info("Local Storage initialized", "path", c.Config.Storage.BasePath)
	}

	return nil
}

func (c *Container) initRepositories() error {
	c.ImageRepository = postgres.NewImageRepository(c.DB)
	logger.Info("Repositories initialized")
	return nil
}

func (c *Container) initServices() error {
	imageCfg := c.Config.Image

	c.DeletionManager = serviceimpl.NewImageDeletionManager(c.Storage, imageCfg.DefaultProfilePath)

	c.CompressDispatcher = serviceimpl.NewCompressDispatcher(serviceimpl.CompressDispatcherConfig{
		Workers:   imageCfg.DispatcherWorkers,
		QueueSize: imageCfg.DispatcherQueue,
	}, c.Storage, c.Compressor)

	imageService := serviceimpl.NewImageService(
		serviceimpl.ImageServiceConfig{
			MaxUploadSize:     imageCfg.MaxUploadSize,
			BudgetPolicy:      models.ParseBudgetPolicy(imageCfg.BudgetPolicy),
			AsyncCategories:   imageCfg.AsyncCategories,
			ProfileBackup:     imageCfg.ProfileBackup,
			DefaultProfileURL: c.Storage.GetFileURL(imageCfg.DefaultProfilePath),
		},
		c.ImageRepository,
		c.Storage,
		c.Compressor,
		c.DeletionManager,
		c.CompressDispatcher,
		c.ImageCache,
	)
	c.ImageService = imageService

	c.CompressDispatcher.OnComplete(imageService.AfterRecompress)
	c.CompressDispatcher.Start()

	logger.Info("Services initialized", "async_categories", imageCfg.AsyncCategories)
	return nil
}

func (c *Container) initScheduler() error {
	c.EventScheduler = scheduler.NewEventScheduler()
	logger.Info("Event scheduler initialized")
	return nil
}

func (c *Container) initStorageCleanup() error {
	basePath := ""
	if c.Config.Storage.Type != "s3" {
		basePath = c.Config.Storage.BasePath
	}

	cleanupService := serviceimpl.NewStorageCleanupService(
		serviceimpl.StorageCleanupConfig{
			BasePath:        basePath,
			CleanupCron:     c.Config.Cleanup.Cron,
			TempFileMaxAge:  c.Config.Cleanup.TempFileMaxAge,
			BackupRetention: c.Config.Cleanup.BackupRetention,
			OrphanGrace:     c.Config.Cleanup.OrphanGrace,
			RemoveOrphans:   c.Config.Cleanup.RemoveOrphans,
			MinFreeSpaceGB:  c.Config.Cleanup.MinFreeSpaceGB,
		},
		c.ImageRepository,
		c.Storage,
		c.EventScheduler,
	)
	c.StorageService = cleanupService

	if !c.Config.Cleanup.Enabled {
		logger.Info("Scheduled storage cleanup disabled")
		return nil
	}

	if err := cleanupService.RegisterCleanupJob(); err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}
	c.EventScheduler.Start()
	logger.Info("Storage cleanup scheduled", "cron", c.Config.Cleanup.Cron)
	return nil
}

func (c *Container) Cleanup() error {
	logger.Info("Starting cleanup...")

	// Stop scheduler first so no cleanup run races the drain
	if c.EventScheduler != nil && c.EventScheduler.IsRunning() {
		c.EventScheduler.Stop()
		logger.Info("Event scheduler stopped")
	}

	// Drain queued compression jobs
	if c.CompressDispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), dispatcherDrainTimeout)
		err := c.CompressDispatcher.Shutdown(ctx)
		cancel()
		processed, failed := c.CompressDispatcher.Stats()
		if err != nil {
			logger.Warn("Compression dispatcher did not drain", "error", err, "pending", c.CompressDispatcher.Pending())
		} else {
			logger.Info("Compression dispatcher stopped", "processed", processed, "failed", failed)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis connection", "error", err)
		} else {
			logger.Info("Redis connection closed")
		}
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close database connection", "error", err)
			} else {
				logger.Info("Database connection closed")
			}
		}
	}

	logger.Info("Cleanup completed")
	return nil
}

func (c *Container) GetConfig() *config.Config {
	return c.Config
}

func (c *Container) GetHandlerServices() *handlers.Services {
	return &handlers.Services{
		ImageService:   c.ImageService,
		StorageService: c.StorageService,
		JWTSecret:      c.Config.JWT.Secret,
	}
}
