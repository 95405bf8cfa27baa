package worker

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/rag"
	"github.com/loomchat/attachment-backend/pkg/repository"
	"github.com/loomchat/attachment-backend/pkg/types"
)

// This file contains the activities used by EmbedFileWorkflow:
// - SetStrategyStatusActivity - Advances a strategy's entry in the file's status matrix
// - ExtractTextActivity - Extracts and persists the file's text ahead of embedding
// - TriggerEmbeddingActivity - Hands the file to the embedding service

// Activity error type constants
const (
	setStrategyStatusActivityError = "SetStrategyStatusActivity"
	extractTextActivityError       = "ExtractTextActivity"
	triggerEmbeddingActivityError  = "TriggerEmbeddingActivity"
)

// SetStrategyStatusActivityParam defines parameters for updating one entry
// of the file's strategy status matrix
type SetStrategyStatusActivityParam struct {
	FileUID  types.FileUIDType
	Strategy types.Strategy
	Status   types.StrategyStatus
	// ErrorMessage is recorded on the StatusRecord for FAILED transitions.
	ErrorMessage *string
}

// ExtractTextActivityParam defines parameters for text extraction
type ExtractTextActivityParam struct {
	FileUID types.FileUIDType
	UserUID types.UserUIDType
}

// TriggerEmbeddingActivityParam defines parameters for triggering the remote
// embedding run
type TriggerEmbeddingActivityParam struct {
	FileUID   types.FileUIDType
	EntityUID types.EntityUIDType
	UserUID   types.UserUIDType
}

// SetStrategyStatusActivity advances one strategy's entry in the file's
// status matrix.
func (w *Worker) SetStrategyStatusActivity(ctx context.Context, param *SetStrategyStatusActivityParam) error {
	w.log.Info("SetStrategyStatusActivity",
		zap.String("fileUID", param.FileUID.String()),
		zap.String("strategy", string(param.Strategy)),
		zap.String("status", string(param.Status)))

	var meta *repository.StrategyStatusMeta
	if param.ErrorMessage != nil {
		meta = &repository.StrategyStatusMeta{Error: param.ErrorMessage}
	}
	err := w.service.Repository().SetStrategyStatus(ctx, param.FileUID, param.Strategy, param.Status, meta)
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			setStrategyStatusActivityError,
			err,
		)
	}
	return nil
}

// ExtractTextActivity extracts the file's text through the extraction
// service and persists it on the record so embedding and inline usage can
// reuse it.
func (w *Worker) ExtractTextActivity(ctx context.Context, param *ExtractTextActivityParam) error {
	w.log.Info("ExtractTextActivity: Extracting text",
		zap.String("fileUID", param.FileUID.String()))

	file, content, err := w.fileWithContent(ctx, param.FileUID)
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			extractTextActivityError,
			err,
		)
	}

	text, err := w.service.RAGClient().ExtractText(ctx, rag.ExtractTextParams{
		UserUID:  param.UserUID,
		Filename: file.Filename,
		Mimetype: file.Mimetype,
		Content:  content,
	})
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			extractTextActivityError,
			err,
		)
	}

	if _, err := w.service.Repository().UpdateFile(ctx, param.FileUID, map[string]any{
		repository.FileColumn.Text: text,
	}); err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			extractTextActivityError,
			err,
		)
	}
	return nil
}

// TriggerEmbeddingActivity hands the file to the embedding service. The call
// returns once the remote run is accepted; its outcome arrives later through
// the completion callback.
func (w *Worker) TriggerEmbeddingActivity(ctx context.Context, param *TriggerEmbeddingActivityParam) error {
	w.log.Info("TriggerEmbeddingActivity: Triggering embedding",
		zap.String("fileUID", param.FileUID.String()))

	file, content, err := w.fileWithContent(ctx, param.FileUID)
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			triggerEmbeddingActivityError,
			err,
		)
	}

	err = w.service.RAGClient().EmbedFile(ctx, rag.EmbedFileParams{
		FileUID:   param.FileUID,
		EntityUID: param.EntityUID,
		UserUID:   param.UserUID,
		Filename:  file.Filename,
		Mimetype:  file.Mimetype,
		Content:   content,
		StorageMetadata: rag.StorageMetadata{
			Source:   file.Source,
			Filepath: file.Filepath,
		},
	})
	if err != nil {
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			triggerEmbeddingActivityError,
			err,
		)
	}
	return nil
}

// fileWithContent fetches the file record and its content. Files whose text
// is already extracted carry it as the content; everything else is read back
// from the storage backend that holds it.
func (w *Worker) fileWithContent(ctx context.Context, fileUID types.FileUIDType) (*repository.FileModel, []byte, error) {
	files, err := w.service.Repository().GetFilesByFileUIDs(ctx, []types.FileUIDType{fileUID})
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: file %s", errorsx.ErrNotFound, fileUID.String())
	}
	file := files[0]

	if file.Text != nil {
		return &file, []byte(*file.Text), nil
	}

	backend, err := w.service.Storage().MustForSource(file.Source)
	if err != nil {
		return nil, nil, err
	}
	content, err := backend.GetFile(ctx, file.Filepath)
	if err != nil {
		return nil, nil, err
	}
	return &file, content, nil
}
