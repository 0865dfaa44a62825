package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/RCXD/Bros-back/domain/ports"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/utils"
)

// S3Storage stores images in an S3 compatible bucket (MinIO, R2).
// Relative storage paths become object keys unchanged.
type S3Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
	endpoint  string
	useSSL    bool
	timeout   time.Duration
}

type S3StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
}

func NewS3Storage(config S3StorageConfig) (ports.StoragePort, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure:    config.UseSSL,
		Region:    config.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("S3 bucket created", "bucket", config.Bucket)
	}

	return &S3Storage{
		client:    client,
		bucket:    config.Bucket,
		publicURL: strings.TrimSuffix(config.PublicURL, "/"),
		endpoint:  config.Endpoint,
		useSSL:    config.UseSSL,
		timeout:   60 * time.Second,
	}, nil
}

func objectKey(p string) (string, error) {
	return utils.ValidateAndSanitizePath(p)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (s *S3Storage) put(file io.Reader, key, contentType string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// buffered so minio can send a Content-Length and skip multipart for small images
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *S3Storage) UploadFile(file io.Reader, p string, contentType string) (string, error) {
	key, err := objectKey(p)
	if err != nil {
		return "", err
	}
	if err := s.put(file, key, contentType); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	logger.Debug("File uploaded to S3", "key", key, "content_type", contentType)
	return s.GetFileURL(key), nil
}

// ReplaceFile relies on S3 PUT being atomic per object. The stat before the
// PUT keeps a deleted object from coming back.
func (s *S3Storage) ReplaceFile(file io.Reader, p string, contentType string) error {
	key, err := objectKey(p)
	if err != nil {
		return err
	}
	if _, err := s.client.StatObject(context.Background(), s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ports.ErrFileNotFound
		}
		return fmt.Errorf("failed to stat object: %w", err)
	}
	if err := s.put(file, key, contentType); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func (s *S3Storage) GetFileContent(p string) (io.ReadCloser, string, error) {
	key, err := objectKey(p)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.client.GetObject(context.Background(), s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object: %w", err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, "", ports.ErrFileNotFound
		}
		return nil, "", fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, info.ContentType, nil
}

// DeleteFile succeeds for missing keys, S3 does the same.
func (s *S3Storage) DeleteFile(p string) error {
	key, err := objectKey(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// MoveFile is copy then delete; S3 has no rename.
func (s *S3Storage) MoveFile(src, dst string) error {
	srcKey, err := objectKey(src)
	if err != nil {
		return err
	}
	dstKey, err := objectKey(dst)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err = s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		if isNoSuchKey(err) {
			return ports.ErrFileNotFound
		}
		return fmt.Errorf("failed to copy object: %w", err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, srcKey, minio.RemoveObjectOptions{}); err != nil {
		logger.Warn("Moved object source not removed", "key", srcKey, "error", err)
	}
	return nil
}

func (s *S3Storage) FileExists(p string) (bool, error) {
	key, err := objectKey(p)
	if err != nil {
		return false, err
	}

	_, err = s.client.StatObject(context.Background(), s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Storage) GetFileURL(p string) string {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")

	if s.publicURL != "" {
		return s.publicURL + "/" + p
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, p)
}

func (s *S3Storage) ListFiles(prefix string) ([]ports.FileInfo, error) {
	prefix = strings.TrimPrefix(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var files []ports.FileInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		files = append(files, ports.FileInfo{Path: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
	}
	return files, nil
}

func (s *S3Storage) GetProviderName() string {
	return "s3"
}
