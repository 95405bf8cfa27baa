package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/types"
)

type localBackend struct {
	root   string
	logger *zap.Logger
}

// NewLocalBackend stores files on the local filesystem. Intended for
// single-node and development deployments.
func NewLocalBackend(root string, logger *zap.Logger) (Backend, error) {
	if root == "" {
		return nil, errorsx.AddMessage(
			errorsx.ErrInvalidArgument,
			"Local storage path is required.",
		)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating local storage root: %w", err)
	}
	return &localBackend{
		root:   root,
		logger: logger.With(zap.String("storage", "local"), zap.String("root", root)),
	}, nil
}

func (l *localBackend) Source() types.StorageSource { return types.LocalSource }
func (l *localBackend) RateLimited() bool           { return false }

func (l *localBackend) Upload(_ context.Context, params UploadParams) (*UploadResult, error) {
	objectPath := ObjectPath(params.EntityUID, params.FileUID, params.Filename)
	fullPath := filepath.Join(l.root, objectPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating file directory: %w", err)
	}
	if err := os.WriteFile(fullPath, params.Content, 0o640); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &UploadResult{Filepath: objectPath}, nil
}

func (l *localBackend) GetFile(_ context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(l.root, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorsx.ErrNotFound
		}
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return content, nil
}

func (l *localBackend) ReadURL(context.Context, string, time.Duration) (string, error) {
	// Local files are not reachable over the network.
	return "", errorsx.ErrNotFound
}

func (l *localBackend) Delete(_ context.Context, path string, _ *string) error {
	if err := os.Remove(filepath.Join(l.root, path)); err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("File already deleted", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
