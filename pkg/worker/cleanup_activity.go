package worker

import (
	"context"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/types"
)

// This file contains cleanup activities used by CleanupFilesWorkflow:
// - GetFilesForCleanupActivity - Fetches the cleanup-relevant fields of a batch
// - DeleteVectorsActivity - Removes the file's vectors from the embedding service
// - DeleteStorageActivity - Removes stored content and sandbox registrations
// - DeleteToolResourceLinksActivity - Drops the files' tool resource links
// - DeleteFileRecordsActivity - Soft-deletes the file records

// Activity error type constants
const (
	getFilesForCleanupActivityError      = "GetFilesForCleanupActivity"
	deleteVectorsActivityError           = "DeleteVectorsActivity"
	deleteStorageActivityError           = "DeleteStorageActivity"
	deleteToolResourceLinksActivityError = "DeleteToolResourceLinksActivity"
	deleteFileRecordsActivityError       = "DeleteFileRecordsActivity"
)

// CleanupFileRecord carries the fields cleanup needs per file.
type CleanupFileRecord struct {
	UID            types.FileUIDType
	Source         types.StorageSource
	Filepath       string
	FileIdentifier *string
	Embedded       bool
}

// GetFilesForCleanupActivityParam defines parameters for fetching the batch
type GetFilesForCleanupActivityParam struct {
	FileUIDs []types.FileUIDType
}

// DeleteVectorsActivityParam defines parameters for deleting vectors
type DeleteVectorsActivityParam struct {
	FileUID types.FileUIDType
	UserUID types.UserUIDType
}

// DeleteStorageActivityParam defines parameters for deleting stored content
type DeleteStorageActivityParam struct {
	FileUID types.FileUIDType
}

// DeleteToolResourceLinksActivityParam defines parameters for dropping links
type DeleteToolResourceLinksActivityParam struct {
	FileUIDs []types.FileUIDType
}

// DeleteFileRecordsActivityParam defines parameters for removing records
type DeleteFileRecordsActivityParam struct {
	FileUIDs []types.FileUIDType
}

// GetFilesForCleanupActivity fetches the cleanup-relevant fields of the
// batch. Soft-deleted files are included so retried deletions converge.
func (w *Worker) GetFilesForCleanupActivity(ctx context.Context, param *GetFilesForCleanupActivityParam) ([]CleanupFileRecord, error) {
	w.log.Info("GetFilesForCleanupActivity",
		zap.Int("fileCount", len(param.FileUIDs)))

	files, err := w.service.Repository().GetFilesByFileUIDsIncludingDeleted(ctx, param.FileUIDs)
	if err != nil {
		return nil, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			getFilesForCleanupActivityError,
			err,
		)
	}

	records := make([]CleanupFileRecord, 0, len(files))
	for _, file := range files {
		records = append(records, CleanupFileRecord{
			UID:            file.UID,
			Source:         file.Source,
			Filepath:       file.Filepath,
			FileIdentifier: file.FileIdentifier,
			Embedded:       file.Embedded,
		})
	}
	return records, nil
}

// DeleteVectorsActivity removes the file's vectors from the embedding
// service. Vectors that are already gone are not an error.
func (w *Worker) DeleteVectorsActivity(ctx context.Context, param *DeleteVectorsActivityParam) error {
	w.log.Info("DeleteVectorsActivity: Deleting vectors",
		zap.String("fileUID", param.FileUID.String()))

	err := w.service.RAGClient().DeleteDocuments(ctx, param.UserUID, []types.FileUIDType{param.FileUID})
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			deleteVectorsActivityError,
			err,
		)
	}
	return nil
}

// DeleteStorageActivity removes the file's stored content and its sandbox
// registration. Deletes against rate-limited backends go through the shared
// fairness queue so a large batch cannot exhaust another tenant's quota.
func (w *Worker) DeleteStorageActivity(ctx context.Context, param *DeleteStorageActivityParam) error {
	w.log.Info("DeleteStorageActivity: Deleting stored content",
		zap.String("fileUID", param.FileUID.String()))

	files, err := w.service.Repository().GetFilesByFileUIDsIncludingDeleted(ctx, []types.FileUIDType{param.FileUID})
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			deleteStorageActivityError,
			err,
		)
	}
	if len(files) == 0 {
		w.log.Info("DeleteStorageActivity: File not found, may have been deleted already",
			zap.String("fileUID", param.FileUID.String()))
		return nil
	}
	file := files[0]

	// Text-source files hold their content on the record, nothing to remove.
	if backend, ok := w.service.Storage().ForSource(file.Source); ok && file.Filepath != "" {
		deleteFn := func() error {
			return backend.Delete(ctx, file.Filepath, file.FileIdentifier)
		}
		if backend.RateLimited() {
			err = w.deleteLimiter.Do(ctx, deleteFn)
		} else {
			err = deleteFn()
		}
		if err != nil {
			return temporal.NewApplicationErrorWithCause(
				errorsx.MessageOrErr(err),
				deleteStorageActivityError,
				err,
			)
		}
	}

	// Files mirrored into the code-execution sandbox are deregistered there
	// too. Provider-held files carry an identifier without a sandbox copy,
	// their identifier equals the filepath the backend already deleted.
	if file.FileIdentifier != nil && file.Source != types.ProviderSource {
		if err := w.service.SandboxClient().DeleteFile(ctx, *file.FileIdentifier); err != nil {
			return temporal.NewApplicationErrorWithCause(
				errorsx.MessageOrErr(err),
				deleteStorageActivityError,
				err,
			)
		}
	}
	return nil
}

// DeleteToolResourceLinksActivity drops the files' tool resource links.
func (w *Worker) DeleteToolResourceLinksActivity(ctx context.Context, param *DeleteToolResourceLinksActivityParam) error {
	w.log.Info("DeleteToolResourceLinksActivity",
		zap.Int("fileCount", len(param.FileUIDs)))

	_, err := w.service.Repository().DeleteToolResourceLinksByFileUIDs(ctx, param.FileUIDs)
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			deleteToolResourceLinksActivityError,
			err,
		)
	}
	return nil
}

// DeleteFileRecordsActivity soft-deletes the file records and returns the
// number removed. Only files whose external cleanup succeeded reach this
// point.
func (w *Worker) DeleteFileRecordsActivity(ctx context.Context, param *DeleteFileRecordsActivityParam) (int64, error) {
	w.log.Info("DeleteFileRecordsActivity",
		zap.Int("fileCount", len(param.FileUIDs)))

	removed, err := w.service.Repository().SoftDeleteFiles(ctx, param.FileUIDs)
	if err != nil {
		return 0, temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			deleteFileRecordsActivityError,
			err,
		)
	}
	return removed, nil
}
