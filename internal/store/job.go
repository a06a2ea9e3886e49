package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// JobStore defines the interface of the durable queue broker. Jobs are
// accepted by Enqueue and handed out to workers by ClaimDue.
type JobStore interface {
	// Enqueue durably stores a pending job. When it returns nil the job
	// will be delivered at least once.
	Enqueue(ctx context.Context, job *domain.QueueJob) error

	// ClaimDue atomically moves up to limit pending jobs whose run_at has
	// passed into the processing state and returns them. Concurrent callers
	// never receive the same job.
	ClaimDue(ctx context.Context, limit int) ([]*domain.QueueJob, error)

	// MarkCompleted records a successful delivery.
	MarkCompleted(ctx context.Context, id uuid.UUID, attempts int) error

	// MarkRetry puts a job back to pending, due again at runAt.
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, runAt time.Time, errMsg string) error

	// MarkFailed records that a job exhausted its attempts. Failed jobs are
	// never claimed again.
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error

	// ResetStuck returns jobs that have been processing for longer than
	// olderThan to pending and reports how many were reset.
	ResetStuck(ctx context.Context, olderThan time.Duration) (int, error)

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}
