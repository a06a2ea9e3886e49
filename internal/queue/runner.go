package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// Handler processes one job. A returned error counts as a failed attempt.
type Handler interface {
	Handle(ctx context.Context, job *domain.QueueJob) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *domain.QueueJob) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, job *domain.QueueJob) error {
	return f(ctx, job)
}

// ErrNoHandler is recorded on jobs whose kind has no registered handler.
var ErrNoHandler = errors.New("no handler registered for job kind")

// RunnerConfig holds configuration for the Runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs are processed concurrently
	WorkerCount int

	// PollInterval is how often the broker is asked for due jobs
	PollInterval time.Duration

	// BatchSize bounds how many jobs one poll claims
	BatchSize int

	// StuckJobAge defines how long a job can be processing before it is
	// considered abandoned and returned to pending
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to look for stuck jobs
	StuckJobCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           2,
		PollInterval:          time.Second,
		BatchSize:             10,
		StuckJobAge:           10 * time.Minute,
		StuckJobCheckInterval: time.Minute,
	}
}

// Runner consumes due jobs from a broker with a pool of workers.
type Runner struct {
	jobs     store.JobStore
	config   RunnerConfig
	logger   *slog.Logger
	now      func() time.Time
	handlers map[string]Handler

	onDiscard func(job *domain.QueueJob, err error)

	jobChan chan *domain.QueueJob
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewRunner creates a new Runner
func NewRunner(jobs store.JobStore, config RunnerConfig, logger *slog.Logger) *Runner {
	if jobs == nil {
		panic("jobs cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "queue_runner"))

	defaults := DefaultRunnerConfig()
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", defaults.WorkerCount))
		config.WorkerCount = defaults.WorkerCount
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.StuckJobAge <= 0 {
		config.StuckJobAge = defaults.StuckJobAge
	}
	if config.StuckJobCheckInterval <= 0 {
		config.StuckJobCheckInterval = defaults.StuckJobCheckInterval
	}

	return &Runner{
		jobs:     jobs,
		config:   config,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Register sets the handler for a job kind. Call before Start.
func (r *Runner) Register(kind string, handler Handler) {
	r.handlers[kind] = handler
}

// SetDiscardHandler sets a hook called when a job is marked failed after
// exhausting its attempts. Call before Start.
func (r *Runner) SetDiscardHandler(fn func(job *domain.QueueJob, err error)) {
	r.onDiscard = fn
}

// Start resets jobs left processing by a previous run, then starts the
// poller, the workers and the stuck job monitor.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("runner already started")
	}

	reset, err := r.jobs.ResetStuck(ctx, r.config.StuckJobAge)
	if err != nil {
		return fmt.Errorf("failed to recover stuck jobs: %w", err)
	}
	if reset > 0 {
		r.logger.Info("recovered stuck jobs", slog.Int("count", reset))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.jobChan = make(chan *domain.QueueJob, r.config.BatchSize)
	r.started = true

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, i)
	}

	r.wg.Add(2)
	go r.poller(runCtx)
	go r.stuckJobMonitor(runCtx)

	r.logger.Info("queue runner started",
		slog.Int("workers", r.config.WorkerCount),
		slog.Duration("poll_interval", r.config.PollInterval))
	return nil
}

// Stop signals every goroutine to finish and waits for them. Jobs claimed
// but not yet handled stay processing until the stuck job monitor of a
// later run resets them.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.logger.Info("queue runner stopped")
}

// ProcessDue claims one batch of due jobs and handles them on the calling
// goroutine. It returns the number of jobs handled.
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	jobs, err := r.jobs.ClaimDue(ctx, r.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	for _, job := range jobs {
		r.process(ctx, job, -1)
	}
	return len(jobs), nil
}

func (r *Runner) poller(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.jobChan)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		jobs, err := r.jobs.ClaimDue(ctx, r.config.BatchSize)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Error("failed to claim due jobs", slog.String("error", redact.Error(err)))
			}
			continue
		}

		for _, job := range jobs {
			select {
			case r.jobChan <- job:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", slog.Int("worker_id", id))
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("stopping worker", slog.Int("worker_id", id))
			return
		case job, ok := <-r.jobChan:
			if !ok {
				return
			}
			r.process(ctx, job, id)
		}
	}
}

// process runs the handler for one claimed job and records the outcome.
func (r *Runner) process(ctx context.Context, job *domain.QueueJob, workerID int) {
	log := r.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("kind", job.Kind),
		slog.Int("worker_id", workerID),
	)

	attempts := job.Attempts + 1

	handler, ok := r.handlers[job.Kind]
	if !ok {
		log.Error("no handler for job kind, marking failed")
		r.fail(ctx, log, job, attempts, ErrNoHandler)
		return
	}

	err := r.safeHandle(ctx, handler, job)
	if err == nil {
		if markErr := r.jobs.MarkCompleted(ctx, job.ID, attempts); markErr != nil {
			log.Error("failed to mark job completed", slog.String("error", redact.Error(markErr)))
			return
		}
		log.Debug("job completed", slog.Int("attempts", attempts))
		return
	}

	job.Attempts = attempts
	if job.Exhausted() {
		r.fail(ctx, log, job, attempts, err)
		return
	}

	delay := BackoffFor(job).Next(attempts)
	runAt := r.now().UTC().Add(delay)
	log.Warn("job attempt failed, retrying",
		slog.Int("attempt", attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.Duration("delay", delay),
		slog.String("error", redact.Error(err)))
	if markErr := r.jobs.MarkRetry(ctx, job.ID, attempts, runAt, redact.Error(err)); markErr != nil {
		log.Error("failed to reschedule job", slog.String("error", redact.Error(markErr)))
	}
}

func (r *Runner) fail(ctx context.Context, log *slog.Logger, job *domain.QueueJob, attempts int, cause error) {
	job.Attempts = attempts
	job.Status = domain.JobStatusFailed
	job.LastError = redact.Error(cause)

	log.Error("job discarded after final attempt",
		slog.Int("attempts", attempts),
		slog.String("error", job.LastError))

	if err := r.jobs.MarkFailed(ctx, job.ID, attempts, job.LastError); err != nil {
		log.Error("failed to mark job failed", slog.String("error", redact.Error(err)))
	}
	if r.onDiscard != nil {
		r.onDiscard(job, cause)
	}
}

// safeHandle turns a handler panic into a failed attempt.
func (r *Runner) safeHandle(ctx context.Context, handler Handler, job *domain.QueueJob) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return handler.Handle(ctx, job)
}

// stuckJobMonitor periodically returns jobs that have been processing for
// too long to pending.
func (r *Runner) stuckJobMonitor(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.jobs.ResetStuck(ctx, r.config.StuckJobAge)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("failed to reset stuck jobs", slog.String("error", redact.Error(err)))
				}
				continue
			}
			if n > 0 {
				r.logger.Info("reset stuck jobs", slog.Int("count", n))
			}
		}
	}
}
