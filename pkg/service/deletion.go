package service

import (
	"context"
	"fmt"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/repository"
	"github.com/loomchat/attachment-backend/pkg/types"
)

// DeleteFiles runs the cleanup pipeline over a batch of files the user owns.
// External state (vectors, stored objects, sandbox registrations, tool
// resource links) is torn down per file; only the files whose external
// cleanup fully succeeded are removed from the database, the rest stay
// visible for a retry.
func (s *service) DeleteFiles(ctx context.Context, userUID types.UserUIDType, fileUIDs []types.FileUIDType) (int64, error) {
	if len(fileUIDs) == 0 {
		return 0, errorsx.AddMessage(
			fmt.Errorf("%w: empty batch", errorsx.ErrInvalidArgument),
			"No files to delete.",
		)
	}
	if len(fileUIDs) > MaxDeleteBatchSize {
		return 0, errorsx.AddMessage(
			fmt.Errorf("%w: %d files requested, limit is %d", errorsx.ErrExceedMaxBatchSize, len(fileUIDs), MaxDeleteBatchSize),
			fmt.Sprintf("At most %d files can be deleted per request.", MaxDeleteBatchSize),
		)
	}

	files, err := s.repository.GetFilesByFileUIDs(ctx, fileUIDs, "uid", "user_uid")
	if err != nil {
		return 0, err
	}
	owned := make([]types.FileUIDType, 0, len(files))
	for _, f := range files {
		if f.UserUID == userUID {
			owned = append(owned, f.UID)
		}
	}
	if len(owned) == 0 {
		return 0, errorsx.AddMessage(
			fmt.Errorf("%w: no matching files", errorsx.ErrNotFound),
			"None of the requested files exist.",
		)
	}

	return s.cleanupFilesWorkflow.Execute(ctx, CleanupFilesWorkflowParam{
		FileUIDs: owned,
		UserUID:  userUID,
	})
}

// CompleteEmbeddingParams is the payload of the embedding service's
// completion callback.
type CompleteEmbeddingParams struct {
	FileUID types.FileUIDType
	Success bool
	// ErrorMessage carries the embedding service's failure description.
	ErrorMessage string
}

// CompleteEmbedding records the outcome of a remote embedding run: on
// success the file's vectors exist and its search strategy is COMPLETED, on
// failure the strategy degrades to FAILED while the file itself stays
// usable.
func (s *service) CompleteEmbedding(ctx context.Context, params CompleteEmbeddingParams) error {
	if !params.Success {
		meta := &repository.StrategyStatusMeta{}
		if params.ErrorMessage != "" {
			meta.Error = &params.ErrorMessage
		}
		return s.repository.SetStrategyStatus(ctx, params.FileUID, types.FileSearchStrategy, types.StatusFailed, meta)
	}

	embedded := true
	return s.repository.SetStrategyStatus(ctx, params.FileUID, types.FileSearchStrategy, types.StatusCompleted,
		&repository.StrategyStatusMeta{Embedded: &embedded})
}
