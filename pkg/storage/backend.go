// Package storage provides the object storage backends that hold uploaded
// attachment content, keyed by the processing strategy that consumes them.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/types"
)

// UploadParams carries the content and identity of a file to store.
type UploadParams struct {
	FileUID   types.FileUIDType
	EntityUID types.EntityUIDType
	Filename  string
	Mimetype  string
	Content   []byte
}

// UploadResult reports where the stored file ended up.
type UploadResult struct {
	// Filepath is the location within the backend, used for later reads and
	// deletes.
	Filepath string
	// FileIdentifier is the handle assigned by an external file store, when
	// the backend delegates to one.
	FileIdentifier *string
}

// Backend stores and retrieves attachment content.
type Backend interface {
	// Source names the backend in file records.
	Source() types.StorageSource
	// RateLimited reports whether deletes against this backend must go
	// through the fairness queue.
	RateLimited() bool
	// Upload stores the file content and returns its location.
	Upload(ctx context.Context, params UploadParams) (*UploadResult, error)
	// GetFile returns the stored content.
	GetFile(ctx context.Context, path string) ([]byte, error)
	// Delete removes the stored content. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, path string, fileIdentifier *string) error
	// ReadURL returns a URL from which the stored content can be read for a
	// limited time. Backends without addressable content return
	// ErrNotFound.
	ReadURL(ctx context.Context, path string, expiration time.Duration) (string, error)
}

// Registry routes strategies to storage backends according to configuration.
type Registry struct {
	backends   map[types.StorageSource]Backend
	byStrategy map[types.Strategy]types.StorageSource
	defaultTag types.StorageSource
}

// NewRegistry builds a Registry from the available backends. strategyTags
// maps strategy names to backend tags; strategies without an entry use the
// default tag.
func NewRegistry(backends []Backend, strategyTags map[string]string, defaultTag string) (*Registry, error) {
	r := &Registry{
		backends:   map[types.StorageSource]Backend{},
		byStrategy: map[types.Strategy]types.StorageSource{},
		defaultTag: types.StorageSource(defaultTag),
	}
	for _, b := range backends {
		r.backends[b.Source()] = b
	}
	if _, ok := r.backends[r.defaultTag]; !ok {
		return nil, fmt.Errorf("default storage backend %q is not configured", defaultTag)
	}
	for strategy, tag := range strategyTags {
		source := types.StorageSource(tag)
		if source != types.TextSource {
			if _, ok := r.backends[source]; !ok {
				return nil, fmt.Errorf("storage backend %q for strategy %q is not configured", tag, strategy)
			}
		}
		r.byStrategy[types.Strategy(strategy)] = source
	}
	return r, nil
}

// SourceForStrategy returns the configured storage source of a strategy.
func (r *Registry) SourceForStrategy(strategy types.Strategy) types.StorageSource {
	if source, ok := r.byStrategy[strategy]; ok {
		return source
	}
	return r.defaultTag
}

// ForStrategy returns the backend serving a strategy. The text source has no
// backend, content lives in the file record instead.
func (r *Registry) ForStrategy(strategy types.Strategy) (Backend, bool) {
	source := r.SourceForStrategy(strategy)
	return r.ForSource(source)
}

// ForSource returns the backend registered under a storage source.
func (r *Registry) ForSource(source types.StorageSource) (Backend, bool) {
	b, ok := r.backends[source]
	return b, ok
}

// MustForSource returns the backend registered under a storage source or an
// error suitable for surfacing to callers.
func (r *Registry) MustForSource(source types.StorageSource) (Backend, error) {
	b, ok := r.backends[source]
	if !ok {
		return nil, errorsx.AddMessage(
			fmt.Errorf("%w: storage backend %q", errorsx.ErrNotFound, source),
			"Storage backend is not configured.",
		)
	}
	return b, nil
}

// SaveFromURL downloads remote content and stores it in the backend serving
// the given strategy. Used to ingest attachments referenced by URL rather
// than uploaded inline.
func (r *Registry) SaveFromURL(ctx context.Context, strategy types.Strategy, sourceURL string, params UploadParams) (*UploadResult, error) {
	backend, ok := r.ForStrategy(strategy)
	if !ok {
		return nil, errorsx.AddMessage(
			fmt.Errorf("%w: no storage backend for strategy %q", errorsx.ErrNotFound, strategy),
			"Storage backend is not configured.",
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, errorsx.AddMessage(
			fmt.Errorf("%w: %v", errorsx.ErrInvalidArgument, err),
			"Invalid source URL.",
		)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading source URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("source URL returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading source URL content: %w", err)
	}

	params.Content = content
	if params.Mimetype == "" {
		params.Mimetype = resp.Header.Get("Content-Type")
	}
	return backend.Upload(ctx, params)
}

// ObjectPath composes the canonical object location of a file within a
// bucket-style backend.
func ObjectPath(entityUID types.EntityUIDType, fileUID types.FileUIDType, filename string) string {
	return filepath.Join(
		"ent-"+entityUID.String(),
		"file-"+fileUID.String(),
		SanitizeFilename(filename),
	)
}
