package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobKindTaskStatusUpdate is the job kind emitted whenever a task's status
// is set or changed.
const JobKindTaskStatusUpdate = "task-status-update"

// JobStatus is the delivery state of a queued job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// BackoffKind names how the delay between attempts grows.
type BackoffKind string

// Supported backoff kinds
const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// Validation errors for QueueJob
var (
	ErrEmptyJobKind       = errors.New("job kind cannot be empty")
	ErrInvalidMaxAttempts = errors.New("job max attempts must be positive")
)

// RetryPolicy is attached to a job at enqueue time and applied by the
// worker that consumes it.
type RetryPolicy struct {
	Attempts int
	Backoff  BackoffKind
	Delay    time.Duration
}

// DefaultTaskRetryPolicy is used for task-status-update jobs:
// three attempts, exponential backoff from one second.
func DefaultTaskRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff:  BackoffExponential,
		Delay:    time.Second,
	}
}

// TaskStatusPayload is the body of a task-status-update job.
type TaskStatusPayload struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
}

// QueueJob is a durable message waiting for, or having finished, delivery.
type QueueJob struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Backoff     BackoffKind     `json:"backoff"`
	BackoffBase time.Duration   `json:"backoff_base"`
	LastError   string          `json:"last_error,omitempty"`
	RunAt       time.Time       `json:"run_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewQueueJob creates a pending job of the given kind that is due now.
func NewQueueJob(kind string, payload json.RawMessage, policy RetryPolicy) (*QueueJob, error) {
	if kind == "" {
		return nil, NewValidationError("kind", "cannot be empty", ErrEmptyJobKind)
	}
	if policy.Attempts <= 0 {
		return nil, NewValidationError("attempts", "must be positive", ErrInvalidMaxAttempts)
	}
	if policy.Backoff == "" {
		policy.Backoff = BackoffExponential
	}

	now := time.Now().UTC()
	return &QueueJob{
		ID:          uuid.New(),
		Kind:        kind,
		Payload:     payload,
		Status:      JobStatusPending,
		Attempts:    0,
		MaxAttempts: policy.Attempts,
		Backoff:     policy.Backoff,
		BackoffBase: policy.Delay,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Exhausted reports whether the job has used every allowed attempt.
func (j *QueueJob) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
