// Package worker hosts the Temporal workflows and activities behind the
// asynchronous halves of file ingestion: background embedding and the
// deletion pipeline.
package worker

import (
	"time"

	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/ratelimit"
	"github.com/loomchat/attachment-backend/pkg/service"
)

// TaskQueue is the Temporal task queue name for all workflows and activities.
const TaskQueue = "attachment-backend"

// ActivityTimeoutStandard is the timeout for normal activities.
// ActivityTimeoutLong is for remote extraction and embedding calls.
const (
	ActivityTimeoutStandard = 5 * time.Minute
	ActivityTimeoutLong     = 10 * time.Minute
)

// RetryInitialInterval, RetryBackoffCoefficient, RetryMaximumInterval*, and
// RetryMaximumAttempts control activity retry behavior.
const (
	RetryInitialInterval         = 1 * time.Second
	RetryBackoffCoefficient      = 2.0
	RetryMaximumIntervalStandard = 30 * time.Second
	RetryMaximumIntervalLong     = 100 * time.Second
	RetryMaximumAttempts         = 3
)

// Config defines the configuration for the worker
type Config struct {
	Service service.Service
}

// Worker implements the Temporal worker with all workflows and activities
type Worker struct {
	service service.Service
	log     *zap.Logger

	// deleteLimiter bounds concurrent deletes against rate-limited storage
	// backends across all cleanup activities of this worker process.
	deleteLimiter *ratelimit.LeakyBucket
}

// New creates a new worker instance
func New(config Config, log *zap.Logger) (*Worker, error) {
	w := &Worker{
		service:       config.Service,
		log:           log,
		deleteLimiter: ratelimit.New(deleteConcurrency()),
	}
	return w, nil
}

func deleteConcurrency() int {
	if n := config.Config.Storage.DeleteConcurrency; n > 0 {
		return n
	}
	return 2
}
