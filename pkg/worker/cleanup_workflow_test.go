package worker

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/loomchat/attachment-backend/pkg/service"
	"github.com/loomchat/attachment-backend/pkg/types"
)

func TestCleanupFilesWorkflow_RemovesBatch(t *testing.T) {
	c := qt.New(t)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	worker := newTestWorker()
	embeddedUID := uuid.Must(uuid.NewV4())
	plainUID := uuid.Must(uuid.NewV4())

	env.OnActivity(worker.GetFilesForCleanupActivity, mock.Anything, mock.Anything).
		Return([]CleanupFileRecord{
			{UID: embeddedUID, Source: types.MinIOSource, Filepath: "a/b", Embedded: true},
			{UID: plainUID, Source: types.MinIOSource, Filepath: "a/c"},
		}, nil)

	var vectorDeletes []types.FileUIDType
	env.OnActivity(worker.DeleteVectorsActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, param *DeleteVectorsActivityParam) error {
			vectorDeletes = append(vectorDeletes, param.FileUID)
			return nil
		})
	env.OnActivity(worker.DeleteStorageActivity, mock.Anything, mock.Anything).
		Return(nil)
	env.OnActivity(worker.DeleteToolResourceLinksActivity, mock.Anything, mock.Anything).
		Return(nil)
	env.OnActivity(worker.DeleteFileRecordsActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, param *DeleteFileRecordsActivityParam) (int64, error) {
			return int64(len(param.FileUIDs)), nil
		})

	env.ExecuteWorkflow(worker.CleanupFilesWorkflow, service.CleanupFilesWorkflowParam{
		FileUIDs: []types.FileUIDType{embeddedUID, plainUID},
		UserUID:  uuid.Must(uuid.NewV4()),
	})

	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	c.Assert(env.GetWorkflowError(), qt.IsNil)

	var removed int64
	c.Assert(env.GetWorkflowResult(&removed), qt.IsNil)
	c.Assert(removed, qt.Equals, int64(2))

	// Only the embedded file had vectors to remove.
	c.Assert(vectorDeletes, qt.DeepEquals, []types.FileUIDType{embeddedUID})
}

func TestCleanupFilesWorkflow_IsolatesFailures(t *testing.T) {
	c := qt.New(t)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	worker := newTestWorker()
	healthyUID := uuid.Must(uuid.NewV4())
	brokenUID := uuid.Must(uuid.NewV4())

	env.OnActivity(worker.GetFilesForCleanupActivity, mock.Anything, mock.Anything).
		Return([]CleanupFileRecord{
			{UID: brokenUID, Source: types.MinIOSource, Filepath: "x/y"},
			{UID: healthyUID, Source: types.MinIOSource, Filepath: "x/z"},
		}, nil)

	env.OnActivity(worker.DeleteStorageActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, param *DeleteStorageActivityParam) error {
			if param.FileUID == brokenUID {
				return errors.New("storage unavailable")
			}
			return nil
		})

	var removedUIDs []types.FileUIDType
	env.OnActivity(worker.DeleteToolResourceLinksActivity, mock.Anything, mock.Anything).
		Return(nil)
	env.OnActivity(worker.DeleteFileRecordsActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, param *DeleteFileRecordsActivityParam) (int64, error) {
			removedUIDs = param.FileUIDs
			return int64(len(param.FileUIDs)), nil
		})

	env.ExecuteWorkflow(worker.CleanupFilesWorkflow, service.CleanupFilesWorkflowParam{
		FileUIDs: []types.FileUIDType{brokenUID, healthyUID},
		UserUID:  uuid.Must(uuid.NewV4()),
	})

	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	// One file failing does not fail the batch.
	c.Assert(env.GetWorkflowError(), qt.IsNil)

	var removed int64
	c.Assert(env.GetWorkflowResult(&removed), qt.IsNil)
	c.Assert(removed, qt.Equals, int64(1))
	c.Assert(removedUIDs, qt.DeepEquals, []types.FileUIDType{healthyUID})
}

func TestCleanupFilesWorkflow_NothingSucceeds(t *testing.T) {
	c := qt.New(t)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	worker := newTestWorker()
	fileUID := uuid.Must(uuid.NewV4())

	env.OnActivity(worker.GetFilesForCleanupActivity, mock.Anything, mock.Anything).
		Return([]CleanupFileRecord{
			{UID: fileUID, Source: types.MinIOSource, Filepath: "x/y"},
		}, nil)
	env.OnActivity(worker.DeleteStorageActivity, mock.Anything, mock.Anything).
		Return(errors.New("storage unavailable"))

	// Link and record activities are deliberately not mocked: nothing
	// survived external cleanup, so nothing may be removed.
	env.ExecuteWorkflow(worker.CleanupFilesWorkflow, service.CleanupFilesWorkflowParam{
		FileUIDs: []types.FileUIDType{fileUID},
		UserUID:  uuid.Must(uuid.NewV4()),
	})

	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	c.Assert(env.GetWorkflowError(), qt.IsNil)

	var removed int64
	c.Assert(env.GetWorkflowResult(&removed), qt.IsNil)
	c.Assert(removed, qt.Equals, int64(0))
}

func TestCleanupFilesWorkflowParam_ZeroValues(t *testing.T) {
	c := qt.New(t)

	var param service.CleanupFilesWorkflowParam
	c.Assert(param.FileUIDs, qt.IsNil)
	c.Assert(param.UserUID, qt.Equals, uuid.Nil)
	c.Assert(param.WorkflowID, qt.Equals, "")
}
