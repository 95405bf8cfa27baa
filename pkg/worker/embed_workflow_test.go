package worker

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/pkg/ratelimit"
	"github.com/loomchat/attachment-backend/pkg/service"
	"github.com/loomchat/attachment-backend/pkg/types"
)

func newTestWorker() *Worker {
	return &Worker{
		log:           zap.NewNop(),
		deleteLimiter: ratelimit.New(1),
	}
}

func TestEmbedFileWorkflow_WithExtraction(t *testing.T) {
	c := qt.New(t)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	worker := newTestWorker()
	fileUID := uuid.Must(uuid.NewV4())

	var statuses []types.StrategyStatus

	env.OnActivity(worker.ExtractTextActivity, mock.Anything, mock.Anything).
		Return(nil)
	env.OnActivity(worker.SetStrategyStatusActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, param *SetStrategyStatusActivityParam) error {
			statuses = append(statuses, param.Status)
			return nil
		})
	env.OnActivity(worker.TriggerEmbeddingActivity, mock.Anything, mock.Anything).
		Return(nil)

	env.ExecuteWorkflow(worker.EmbedFileWorkflow, service.EmbedFileWorkflowParam{
		FileUID:     fileUID,
		EntityUID:   uuid.Must(uuid.NewV4()),
		UserUID:     uuid.Must(uuid.NewV4()),
		Strategy:    types.FileSearchStrategy,
		ExtractText: true,
	})

	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	c.Assert(env.GetWorkflowError(), qt.IsNil)
	c.Assert(statuses, qt.DeepEquals, []types.StrategyStatus{types.StatusEmbedding})
}

func TestEmbedFileWorkflow_SkipsExtraction(t *testing.T) {
	c := qt.New(t)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	worker := newTestWorker()

	// ExtractTextActivity is deliberately not mocked: calling it would fail
	// the test environment.
	env.OnActivity(worker.SetStrategyStatusActivity, mock.Anything, mock.Anything).
		Return(nil)
	env.OnActivity(worker.TriggerEmbeddingActivity, mock.Anything, mock.Anything).
		Return(nil)

	env.ExecuteWorkflow(worker.EmbedFileWorkflow, service.EmbedFileWorkflowParam{
		FileUID:     uuid.Must(uuid.NewV4()),
		EntityUID:   uuid.Must(uuid.NewV4()),
		UserUID:     uuid.Must(uuid.NewV4()),
		Strategy:    types.FileSearchStrategy,
		ExtractText: false,
	})

	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	c.Assert(env.GetWorkflowError(), qt.IsNil)
}

func TestEmbedFileWorkflow_TriggerFailureMarksStrategyFailed(t *testing.T) {
	c := qt.New(t)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	worker := newTestWorker()
	fileUID := uuid.Must(uuid.NewV4())

	var statuses []types.StrategyStatus
	var failureMessage *string

	env.OnActivity(worker.SetStrategyStatusActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, param *SetStrategyStatusActivityParam) error {
			statuses = append(statuses, param.Status)
			if param.Status == types.StatusFailed {
				failureMessage = param.ErrorMessage
			}
			return nil
		})
	env.OnActivity(worker.TriggerEmbeddingActivity, mock.Anything, mock.Anything).
		Return(errors.New("embedding service unavailable"))

	env.ExecuteWorkflow(worker.EmbedFileWorkflow, service.EmbedFileWorkflowParam{
		FileUID:   fileUID,
		EntityUID: uuid.Must(uuid.NewV4()),
		UserUID:   uuid.Must(uuid.NewV4()),
		Strategy:  types.FileSearchStrategy,
	})

	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	c.Assert(env.GetWorkflowError(), qt.IsNotNil)
	// EMBEDDING on the way in, FAILED after the trigger failure.
	c.Assert(statuses, qt.DeepEquals, []types.StrategyStatus{
		types.StatusEmbedding,
		types.StatusFailed,
	})
	// The failure cause travels with the FAILED transition.
	c.Assert(failureMessage, qt.IsNotNil)
	c.Check(*failureMessage, qt.Contains, "embedding service unavailable")
}

func TestEmbedFileWorkflowParam_ZeroValues(t *testing.T) {
	c := qt.New(t)

	var param service.EmbedFileWorkflowParam
	c.Assert(param.FileUID, qt.Equals, uuid.Nil)
	c.Assert(param.Strategy, qt.Equals, types.Strategy(""))
	c.Assert(param.ExtractText, qt.IsFalse)
}
