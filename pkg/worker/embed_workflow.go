package worker

import (
	"context"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/service"
	"github.com/loomchat/attachment-backend/pkg/types"
)

type embedFileWorkflow struct {
	temporalClient client.Client
}

// NewEmbedFileWorkflow creates a new EmbedFileWorkflow instance
func NewEmbedFileWorkflow(temporalClient client.Client) service.EmbedFileWorkflow {
	return &embedFileWorkflow{temporalClient: temporalClient}
}

// Execute starts the workflow without waiting for it: embedding progress is
// tracked on the file's strategy matrix, completion arrives via the
// embedding service's callback.
func (w *embedFileWorkflow) Execute(ctx context.Context, param service.EmbedFileWorkflowParam) error {
	workflowID := fmt.Sprintf("embed-file-%s", param.FileUID.String())
	workflowOptions := client.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	_, err := w.temporalClient.ExecuteWorkflow(ctx, workflowOptions, new(Worker).EmbedFileWorkflow, param)
	if err != nil {
		return fmt.Errorf("failed to start embed file workflow: %s", errorsx.MessageOrErr(err))
	}
	return nil
}

// EmbedFileWorkflow runs the background half of semantic indexing for one
// file: optionally extract and persist its text, then hand the file to the
// embedding service. The workflow ends once the remote run has been
// triggered; the completion callback flips the strategy status from
// EMBEDDING to its terminal value.
//
// Any failure here degrades the single tracked strategy to FAILED, the file
// itself stays usable through its primary strategy.
func (w *Worker) EmbedFileWorkflow(ctx workflow.Context, param service.EmbedFileWorkflowParam) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting EmbedFileWorkflow",
		"fileUID", param.FileUID.String(),
		"userUID", param.UserUID.String(),
		"strategy", string(param.Strategy),
		"extractText", param.ExtractText)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: ActivityTimeoutLong,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumIntervalLong,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	if param.ExtractText {
		err := workflow.ExecuteActivity(ctx, w.ExtractTextActivity, &ExtractTextActivityParam{
			FileUID: param.FileUID,
			UserUID: param.UserUID,
		}).Get(ctx, nil)
		if err != nil {
			logger.Error("Failed to extract text", "fileUID", param.FileUID.String(), "error", err)
			w.failStrategy(ctx, param.FileUID, param.Strategy, err)
			return err
		}
	}

	err := workflow.ExecuteActivity(ctx, w.SetStrategyStatusActivity, &SetStrategyStatusActivityParam{
		FileUID:  param.FileUID,
		Strategy: param.Strategy,
		Status:   types.StatusEmbedding,
	}).Get(ctx, nil)
	if err != nil {
		logger.Error("Failed to update strategy status", "fileUID", param.FileUID.String(), "error", err)
		return err
	}

	err = workflow.ExecuteActivity(ctx, w.TriggerEmbeddingActivity, &TriggerEmbeddingActivityParam{
		FileUID:   param.FileUID,
		EntityUID: param.EntityUID,
		UserUID:   param.UserUID,
	}).Get(ctx, nil)
	if err != nil {
		logger.Error("Failed to trigger embedding", "fileUID", param.FileUID.String(), "error", err)
		w.failStrategy(ctx, param.FileUID, param.Strategy, err)
		return err
	}

	logger.Info("EmbedFileWorkflow completed, awaiting embedding callback",
		"fileUID", param.FileUID.String())
	return nil
}

// failStrategy records a FAILED status and its cause for the strategy, best
// effort.
func (w *Worker) failStrategy(ctx workflow.Context, fileUID types.FileUIDType, strategy types.Strategy, cause error) {
	logger := workflow.GetLogger(ctx)
	msg := cause.Error()
	err := workflow.ExecuteActivity(ctx, w.SetStrategyStatusActivity, &SetStrategyStatusActivityParam{
		FileUID:      fileUID,
		Strategy:     strategy,
		Status:       types.StatusFailed,
		ErrorMessage: &msg,
	}).Get(ctx, nil)
	if err != nil {
		logger.Error("Failed to record strategy failure",
			"fileUID", fileUID.String(), "error", err)
	}
}
