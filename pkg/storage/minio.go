package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/types"
)

const minioLocation = "us-east-1"

type minioBackend struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinIOBackend connects to MinIO and makes sure the attachment bucket
// exists.
func NewMinIOBackend(ctx context.Context, cfg config.MinioConfig, logger *zap.Logger) (Backend, error) {
	logger = logger.With(
		zap.String("host:port", cfg.Host+":"+cfg.Port),
		zap.String("user", cfg.User),
	)

	client, err := minio.New(cfg.Host+":"+cfg.Port, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.User, cfg.Password, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		logger.Error("cannot connect to minio", zap.Error(err))
		return nil, fmt.Errorf("connecting to MinIO: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("checking bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: minioLocation,
		}); err != nil {
			return nil, fmt.Errorf("creating bucket: %w", err)
		}
		logger.Info("Successfully created bucket", zap.String("bucket", cfg.BucketName))
	} else {
		logger.Info("Bucket already exists", zap.String("bucket", cfg.BucketName))
	}

	return &minioBackend{
		client: client,
		bucket: cfg.BucketName,
		logger: logger,
	}, nil
}

func (m *minioBackend) Source() types.StorageSource { return types.MinIOSource }
func (m *minioBackend) RateLimited() bool           { return false }

func (m *minioBackend) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	objectPath := ObjectPath(params.EntityUID, params.FileUID, params.Filename)
	size := int64(len(params.Content))

	var err error
	// Retry with a fresh reader on each attempt, readers can only be read once.
	for attempt := 1; attempt <= 3; attempt++ {
		contentReader := bytes.NewReader(params.Content)
		_, err = m.client.PutObject(ctx, m.bucket, objectPath, contentReader, size, minio.PutObjectOptions{
			ContentType: params.Mimetype,
		})
		if err == nil {
			break
		}
		m.logger.Error("Failed to upload file to MinIO, retrying...",
			zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("uploading object to MinIO: %w", err)
	}

	return &UploadResult{Filepath: objectPath}, nil
}

func (m *minioBackend) GetFile(ctx context.Context, path string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, m.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object from MinIO: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(object); err != nil {
		return nil, fmt.Errorf("reading object from MinIO: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *minioBackend) ReadURL(ctx context.Context, path string, expiration time.Duration) (string, error) {
	if expiration <= 0 || expiration > time.Hour*24*7 {
		return "", fmt.Errorf("expiration time must be within 1sec to 7 days")
	}
	presignedURL, err := m.client.PresignedGetObject(ctx, m.bucket, path, expiration, nil)
	if err != nil {
		return "", fmt.Errorf("generating presigned URL: %w", err)
	}
	return presignedURL.String(), nil
}

func (m *minioBackend) Delete(ctx context.Context, path string, _ *string) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{})
		if err == nil {
			return nil
		}
		m.logger.Error("Failed to delete file from MinIO, retrying...",
			zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return fmt.Errorf("deleting object from MinIO after 3 attempts: %w", err)
}
