package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/types"
)

type gcsBackend struct {
	client *gcs.Client
	bucket string
	saKey  []byte
	logger *zap.Logger
}

// NewGCSBackend creates a Google Cloud Storage backend.
func NewGCSBackend(ctx context.Context, cfg config.GCSConfig, logger *zap.Logger) (Backend, error) {
	if cfg.Bucket == "" {
		return nil, errorsx.AddMessage(
			errorsx.ErrInvalidArgument,
			"GCS bucket name is required",
		)
	}

	var opts []option.ClientOption
	if cfg.SAKey != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.SAKey)))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("failed to create GCS client: %w", err),
			"Unable to connect to Google Cloud Storage. Please check your configuration.",
		)
	}

	return &gcsBackend{
		client: client,
		bucket: cfg.Bucket,
		saKey:  []byte(cfg.SAKey),
		logger: logger.With(
			zap.String("storage", "gcs"),
			zap.String("project", cfg.ProjectID),
			zap.String("bucket", cfg.Bucket),
		),
	}, nil
}

func (g *gcsBackend) Source() types.StorageSource { return types.GCSSource }
func (g *gcsBackend) RateLimited() bool           { return false }

func (g *gcsBackend) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	objectPath := ObjectPath(params.EntityUID, params.FileUID, params.Filename)

	uploadCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	obj := g.client.Bucket(g.bucket).Object(objectPath)
	writer := obj.NewWriter(uploadCtx)
	writer.ContentType = params.Mimetype

	if _, err := io.Copy(writer, bytes.NewReader(params.Content)); err != nil {
		writer.Close()
		return nil, errorsx.AddMessage(
			fmt.Errorf("failed to write to GCS: %w", err),
			"Unable to upload file to GCS. Please try again.",
		)
	}
	if err := writer.Close(); err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("failed to finalize GCS upload: %w", err),
			"Unable to complete file upload to GCS. Please try again.",
		)
	}

	g.logger.Info("File uploaded to GCS successfully", zap.String("path", objectPath))
	return &UploadResult{Filepath: objectPath}, nil
}

func (g *gcsBackend) GetFile(ctx context.Context, path string) ([]byte, error) {
	reader, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return nil, errorsx.ErrNotFound
		}
		return nil, errorsx.AddMessage(
			fmt.Errorf("failed to read GCS object: %w", err),
			"Unable to read file from GCS.",
		)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("failed to read GCS object content: %w", err),
			"Failed to read file content from GCS.",
		)
	}
	return content, nil
}

func (g *gcsBackend) ReadURL(_ context.Context, path string, expiration time.Duration) (string, error) {
	var saData struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(g.saKey, &saData); err != nil {
		return "", errorsx.AddMessage(
			fmt.Errorf("failed to parse service account key: %w", err),
			"Invalid service account configuration.",
		)
	}

	signedURL, err := gcs.SignedURL(g.bucket, path, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        time.Now().Add(expiration),
		GoogleAccessID: saData.ClientEmail,
		PrivateKey:     []byte(saData.PrivateKey),
	})
	if err != nil {
		return "", errorsx.AddMessage(
			fmt.Errorf("failed to generate signed URL: %w", err),
			"Unable to generate temporary access URL for file.",
		)
	}
	return signedURL, nil
}

func (g *gcsBackend) Delete(ctx context.Context, path string, _ *string) error {
	if err := g.client.Bucket(g.bucket).Object(path).Delete(ctx); err != nil {
		// Missing objects count as deleted.
		if err == gcs.ErrObjectNotExist {
			g.logger.Debug("Object already deleted", zap.String("path", path))
			return nil
		}
		return errorsx.AddMessage(
			fmt.Errorf("failed to delete GCS object: %w", err),
			"Unable to delete file from GCS.",
		)
	}
	return nil
}
