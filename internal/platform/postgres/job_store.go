package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
)

const jobColumns = `id, kind, payload, status, attempts, max_attempts, backoff, backoff_ms,
	last_error, run_at, created_at, updated_at`

// PostgresJobStore implements store.JobStore on the queue_jobs table.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgresJobStore.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx implements store.JobStore.WithTx
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Enqueue implements store.JobStore.Enqueue
func (s *PostgresJobStore) Enqueue(ctx context.Context, job *domain.QueueJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO queue_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Kind,
		[]byte(job.Payload),
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.Backoff,
		job.BackoffBase.Milliseconds(),
		nullString(job.LastError),
		job.RunAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save queue job",
			slog.String("job_id", job.ID.String()),
			slog.String("kind", job.Kind),
			slog.String("error", redact.Error(err)))
		return MapError(err)
	}

	log.Debug("queue job saved",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", job.Kind))
	return nil
}

// ClaimDue implements store.JobStore.ClaimDue
func (s *PostgresJobStore) ClaimDue(ctx context.Context, limit int) ([]*domain.QueueJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 1
	}

	query := `
		UPDATE queue_jobs
		SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM queue_jobs
			WHERE status = $3 AND run_at <= $2
			ORDER BY run_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, query,
		domain.JobStatusProcessing,
		now,
		domain.JobStatusPending,
		limit,
	)
	if err != nil {
		log.Error("failed to claim due jobs", slog.String("error", redact.Error(err)))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	jobs := []*domain.QueueJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan queue job row", slog.String("error", redact.Error(err)))
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating queue job rows", slog.String("error", redact.Error(err)))
		return nil, err
	}

	return jobs, nil
}

// MarkCompleted implements store.JobStore.MarkCompleted
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, attempts int) error {
	return s.setStatus(ctx, id, domain.JobStatusCompleted, attempts, nil, "")
}

// MarkRetry implements store.JobStore.MarkRetry
func (s *PostgresJobStore) MarkRetry(
	ctx context.Context,
	id uuid.UUID,
	attempts int,
	runAt time.Time,
	errMsg string,
) error {
	return s.setStatus(ctx, id, domain.JobStatusPending, attempts, &runAt, errMsg)
}

// MarkFailed implements store.JobStore.MarkFailed
func (s *PostgresJobStore) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error {
	return s.setStatus(ctx, id, domain.JobStatusFailed, attempts, nil, errMsg)
}

func (s *PostgresJobStore) setStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	attempts int,
	runAt *time.Time,
	errMsg string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE queue_jobs
		SET status = $1, attempts = $2, run_at = COALESCE($3, run_at), last_error = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		status,
		attempts,
		runAt,
		nullString(errMsg),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to update queue job status",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", redact.Error(err)))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrJobNotFound)
}

// ResetStuck implements store.JobStore.ResetStuck
func (s *PostgresJobStore) ResetStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_jobs
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`,
		domain.JobStatusPending,
		now,
		domain.JobStatusProcessing,
		now.Add(-olderThan),
	)
	if err != nil {
		log.Error("failed to reset stuck jobs", slog.String("error", redact.Error(err)))
		return 0, MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanJob(row rowScanner) (*domain.QueueJob, error) {
	var (
		job       domain.QueueJob
		payload   []byte
		status    string
		backoff   string
		backoffMs int64
		lastError sql.NullString
	)

	err := row.Scan(
		&job.ID,
		&job.Kind,
		&payload,
		&status,
		&job.Attempts,
		&job.MaxAttempts,
		&backoff,
		&backoffMs,
		&lastError,
		&job.RunAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Payload = payload
	job.Status = domain.JobStatus(status)
	job.Backoff = domain.BackoffKind(backoff)
	job.BackoffBase = time.Duration(backoffMs) * time.Millisecond
	job.LastError = lastError.String
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
