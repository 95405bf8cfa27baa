// Package service implements the attachment ingestion use cases:
// classification, strategy routing, storage upload, text extraction, and the
// deletion pipeline.
package service

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/loomchat/attachment-backend/pkg/rag"
	"github.com/loomchat/attachment-backend/pkg/repository"
	"github.com/loomchat/attachment-backend/pkg/sandbox"
	"github.com/loomchat/attachment-backend/pkg/storage"
	"github.com/loomchat/attachment-backend/pkg/strategy"
	"github.com/loomchat/attachment-backend/pkg/types"
)

// MaxDeleteBatchSize caps the number of files accepted by a single deletion
// request.
const MaxDeleteBatchSize = 100

// Workflow parameter types - these match the worker package types structurally

// EmbedFileWorkflowParam defines the parameters for the EmbedFileWorkflow
type EmbedFileWorkflowParam struct {
	FileUID   types.FileUIDType
	EntityUID types.EntityUIDType
	UserUID   types.UserUIDType
	// Strategy is the matrix entry that tracks the embedding progress.
	Strategy types.Strategy
	// ExtractText asks the workflow to extract and persist the file's text
	// before triggering the remote embedding.
	ExtractText bool
}

// CleanupFilesWorkflowParam defines the parameters for the CleanupFilesWorkflow
type CleanupFilesWorkflowParam struct {
	FileUIDs   []types.FileUIDType
	UserUID    types.UserUIDType
	WorkflowID string
}

// EmbedFileWorkflow interface
type EmbedFileWorkflow interface {
	Execute(ctx context.Context, param EmbedFileWorkflowParam) error
}

// CleanupFilesWorkflow interface. Execute returns the number of file records
// removed.
type CleanupFilesWorkflow interface {
	Execute(ctx context.Context, param CleanupFilesWorkflowParam) (int64, error)
}

// Service defines the attachment domain use cases.
type Service interface {
	// ProcessUpload ingests one uploaded file end to end and returns the
	// created record.
	ProcessUpload(ctx context.Context, params UploadFileParams) (*repository.FileModel, error)
	// ListFiles pages through an entity's files.
	ListFiles(ctx context.Context, params repository.ListFilesParams) (*repository.FileList, error)
	// GetFiles returns the files a user owns among the requested UIDs.
	GetFiles(ctx context.Context, userUID types.UserUIDType, fileUIDs []types.FileUIDType) ([]repository.FileModel, error)
	// UpdateFileUsage bumps a file's usage counter.
	UpdateFileUsage(ctx context.Context, fileUID types.FileUIDType) error
	// CompleteEmbedding records the outcome reported by the embedding
	// service's callback.
	CompleteEmbedding(ctx context.Context, params CompleteEmbeddingParams) error
	// DeleteFiles runs the cleanup pipeline over a batch of files and
	// returns the number of records removed.
	DeleteFiles(ctx context.Context, userUID types.UserUIDType, fileUIDs []types.FileUIDType) (int64, error)

	Repository() repository.Repository
	Storage() *storage.Registry
	RAGClient() rag.Client
	SandboxClient() sandbox.Client
	RedisClient() *redis.Client

	// Workflow interfaces for proper decoupling
	EmbedFileWorkflow() EmbedFileWorkflow
	CleanupFilesWorkflow() CleanupFilesWorkflow
}

type service struct {
	repository    repository.Repository
	storage       *storage.Registry
	ragClient     rag.Client
	sandboxClient sandbox.Client
	redisClient   *redis.Client
	intent        strategy.IntentClassifier

	// Workflow implementations
	embedFileWorkflow    EmbedFileWorkflow
	cleanupFilesWorkflow CleanupFilesWorkflow
}

// NewService initiates a service instance
func NewService(
	r repository.Repository,
	st *storage.Registry,
	ragClient rag.Client,
	sandboxClient sandbox.Client,
	rc *redis.Client,
	intent strategy.IntentClassifier,
	embedFileWorkflow EmbedFileWorkflow,
	cleanupFilesWorkflow CleanupFilesWorkflow,
) Service {
	if intent == nil {
		intent = strategy.TableIntentClassifier{}
	}
	return &service{
		repository:           r,
		storage:              st,
		ragClient:            ragClient,
		sandboxClient:        sandboxClient,
		redisClient:          rc,
		intent:               intent,
		embedFileWorkflow:    embedFileWorkflow,
		cleanupFilesWorkflow: cleanupFilesWorkflow,
	}
}

func (s *service) Repository() repository.Repository { return s.repository }
func (s *service) Storage() *storage.Registry        { return s.storage }
func (s *service) RAGClient() rag.Client             { return s.ragClient }
func (s *service) SandboxClient() sandbox.Client     { return s.sandboxClient }
func (s *service) RedisClient() *redis.Client        { return s.redisClient }

// Workflow getters
func (s *service) EmbedFileWorkflow() EmbedFileWorkflow {
	return s.embedFileWorkflow
}

func (s *service) CleanupFilesWorkflow() CleanupFilesWorkflow {
	return s.cleanupFilesWorkflow
}

func (s *service) ListFiles(ctx context.Context, params repository.ListFilesParams) (*repository.FileList, error) {
	return s.repository.ListFiles(ctx, params)
}

func (s *service) GetFiles(ctx context.Context, userUID types.UserUIDType, fileUIDs []types.FileUIDType) ([]repository.FileModel, error) {
	files, err := s.repository.GetFilesByFileUIDs(ctx, fileUIDs)
	if err != nil {
		return nil, err
	}
	owned := make([]repository.FileModel, 0, len(files))
	for _, f := range files {
		if f.UserUID == userUID {
			owned = append(owned, f)
		}
	}
	return owned, nil
}

func (s *service) UpdateFileUsage(ctx context.Context, fileUID types.FileUIDType) error {
	return s.repository.UpdateFileUsage(ctx, fileUID)
}
