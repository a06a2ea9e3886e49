package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// ErrEnqueueFailed wraps every error that kept a job from being accepted.
var ErrEnqueueFailed = errors.New("enqueue failed")

// Client enqueues jobs into a durable broker.
type Client struct {
	jobs   store.JobStore
	logger *slog.Logger
}

// NewClient creates a Client over the given broker.
func NewClient(jobs store.JobStore, logger *slog.Logger) *Client {
	if jobs == nil {
		panic("jobs cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		jobs:   jobs,
		logger: logger.With(slog.String("component", "queue_client")),
	}
}

// WithJobs returns a Client that enqueues through jobs, typically a
// transaction-bound store.
func (c *Client) WithJobs(jobs store.JobStore) *Client {
	return &Client{
		jobs:   jobs,
		logger: c.logger,
	}
}

// Enqueue stores a pending job of the given kind and returns it once the
// broker has accepted it. The retry policy travels with the job and is
// applied by the worker. Errors wrap ErrEnqueueFailed.
func (c *Client) Enqueue(
	ctx context.Context,
	kind string,
	payload any,
	policy domain.RetryPolicy,
) (*domain.QueueJob, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %w", ErrEnqueueFailed, err)
	}

	job, err := domain.NewQueueJob(kind, data, policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnqueueFailed, err)
	}

	if err := c.jobs.Enqueue(ctx, job); err != nil {
		log.Error("failed to enqueue job",
			slog.String("kind", kind),
			slog.String("job_id", job.ID.String()),
			slog.String("error", redact.Error(err)))
		return nil, fmt.Errorf("%w: %w", ErrEnqueueFailed, err)
	}

	log.Debug("job enqueued",
		slog.String("kind", kind),
		slog.String("job_id", job.ID.String()),
		slog.Int("max_attempts", job.MaxAttempts))
	return job, nil
}

// EnqueueTaskStatus enqueues a task-status-update job with the default
// task retry policy.
func (c *Client) EnqueueTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status domain.TaskStatus,
) (*domain.QueueJob, error) {
	return c.Enqueue(ctx, domain.JobKindTaskStatusUpdate, domain.TaskStatusPayload{
		TaskID: taskID.String(),
		Status: status,
	}, domain.DefaultTaskRetryPolicy())
}
