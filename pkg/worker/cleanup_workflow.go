package worker

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/service"
	"github.com/loomchat/attachment-backend/pkg/types"
)

type cleanupFilesWorkflow struct {
	temporalClient client.Client
}

// NewCleanupFilesWorkflow creates a new CleanupFilesWorkflow instance
func NewCleanupFilesWorkflow(temporalClient client.Client) service.CleanupFilesWorkflow {
	return &cleanupFilesWorkflow{temporalClient: temporalClient}
}

// Execute starts the workflow and waits for it: deletion is synchronous from
// the caller's point of view, the response carries the number of records
// removed.
func (w *cleanupFilesWorkflow) Execute(ctx context.Context, param service.CleanupFilesWorkflowParam) (int64, error) {
	workflowID := param.WorkflowID
	if workflowID == "" {
		workflowID = fmt.Sprintf("cleanup-files-%s", uuid.Must(uuid.NewV4()).String())
	}
	workflowOptions := client.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	run, err := w.temporalClient.ExecuteWorkflow(ctx, workflowOptions, new(Worker).CleanupFilesWorkflow, param)
	if err != nil {
		return 0, fmt.Errorf("failed to start cleanup files workflow: %s", errorsx.MessageOrErr(err))
	}

	var removed int64
	if err := run.Get(ctx, &removed); err != nil {
		return 0, fmt.Errorf("cleanup files workflow failed: %s", errorsx.MessageOrErr(err))
	}
	return removed, nil
}

// CleanupFilesWorkflow tears down a batch of files: vectors first, then
// stored objects and sandbox registrations, then tool resource links, and
// finally the records themselves. External cleanup failures isolate the
// affected file, its record stays visible so the deletion can be retried;
// the remaining files in the batch are unaffected.
//
// Returns the number of file records removed.
func (w *Worker) CleanupFilesWorkflow(ctx workflow.Context, param service.CleanupFilesWorkflowParam) (int64, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting CleanupFilesWorkflow",
		"fileCount", len(param.FileUIDs),
		"userUID", param.UserUID.String())

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: ActivityTimeoutStandard,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumIntervalStandard,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Fetch the batch. Deleted files are included so a retried
	// deletion converges instead of failing on the already-removed ones.
	var files []CleanupFileRecord
	err := workflow.ExecuteActivity(ctx, w.GetFilesForCleanupActivity, &GetFilesForCleanupActivityParam{
		FileUIDs: param.FileUIDs,
	}).Get(ctx, &files)
	if err != nil {
		return 0, err
	}

	// Steps 2-3 run per file: external state first, the record is only
	// eligible for removal once nothing outside the database references it.
	succeeded := make([]types.FileUIDType, 0, len(files))
	for _, file := range files {
		if file.Embedded {
			err := workflow.ExecuteActivity(ctx, w.DeleteVectorsActivity, &DeleteVectorsActivityParam{
				FileUID: file.UID,
				UserUID: param.UserUID,
			}).Get(ctx, nil)
			if err != nil {
				logger.Warn("Failed to delete vectors, file stays for retry",
					"fileUID", file.UID.String(), "error", err.Error())
				continue
			}
		}

		err := workflow.ExecuteActivity(ctx, w.DeleteStorageActivity, &DeleteStorageActivityParam{
			FileUID: file.UID,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("Failed to delete stored content, file stays for retry",
				"fileUID", file.UID.String(), "error", err.Error())
			continue
		}

		succeeded = append(succeeded, file.UID)
	}

	if len(succeeded) == 0 {
		logger.Info("CleanupFilesWorkflow removed no files")
		return 0, nil
	}

	// Step 4: Drop the tool resource links of the fully cleaned files.
	err = workflow.ExecuteActivity(ctx, w.DeleteToolResourceLinksActivity, &DeleteToolResourceLinksActivityParam{
		FileUIDs: succeeded,
	}).Get(ctx, nil)
	if err != nil {
		return 0, err
	}

	// Step 5: Remove the records.
	var removed int64
	err = workflow.ExecuteActivity(ctx, w.DeleteFileRecordsActivity, &DeleteFileRecordsActivityParam{
		FileUIDs: succeeded,
	}).Get(ctx, &removed)
	if err != nil {
		return 0, err
	}

	logger.Info("CleanupFilesWorkflow completed",
		"requested", len(param.FileUIDs),
		"removed", removed)
	return removed, nil
}
