package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/queue"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// DefaultTaskTTL bounds how long a cached task or listing may be served.
const DefaultTaskTTL = 5 * time.Minute

// Cache key prefixes
const (
	taskKeyPrefix = "task:"
	listKeyPrefix = "task:list"
)

// Operation names used in errors and logs
const (
	opCreateService = "create_service"
	opCreateTask    = "create_task"
	opGetTask       = "get_task"
	opListTasks     = "list_tasks"
	opUpdateTask    = "update_task"
	opDeleteTask    = "delete_task"
)

// Mutation states, logged at DEBUG as a call moves through them.
const (
	stateStarted          = "STARTED"
	stateTransactionOpen  = "TRANSACTION_OPEN"
	stateCommitted        = "COMMITTED"
	stateRolledBack       = "ROLLED_BACK"
	stateQueueNotified    = "QUEUE_NOTIFIED"
	stateQueueSkipped     = "QUEUE_SKIPPED"
	stateCacheInvalidated = "CACHE_INVALIDATED"
	stateDone             = "DONE"
)

// Cache is the read-through cache used by the task service.
// *cache.Cache satisfies it. Get reports a miss for any failure and the
// write methods return errors the service logs and ignores.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

var _ Cache = (*cache.Cache)(nil)

// TaskService provides task operations. Every mutation commits in one
// transaction, then notifies the work queue, then invalidates the cache.
type TaskService interface {
	// Create saves a new task and enqueues a status update for it.
	// If the update cannot be queued after commit, the committed task is
	// returned together with an error wrapping queue.ErrEnqueueFailed.
	Create(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error)

	// FindOne returns a task with its owner, from cache when possible.
	FindOne(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// FindAll returns one page of tasks matching the filter.
	FindAll(ctx context.Context, filter domain.TaskFilter) (*domain.TaskPage, error)

	// Update applies a partial update. A status update is enqueued only
	// when the status actually changed; enqueue failures are reported as
	// for Create.
	Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)

	// Delete removes a task.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByStatus is FindAll restricted to one status.
	FindByStatus(ctx context.Context, status domain.TaskStatus, filter domain.TaskFilter) (*domain.TaskPage, error)
}

// Option configures the task service.
type Option func(*taskServiceImpl)

// WithTransactionalOutbox writes status-update jobs through the
// transaction-bound broker, so the job commits or rolls back with the task.
func WithTransactionalOutbox() Option {
	return func(s *taskServiceImpl) {
		s.outbox = true
	}
}

// WithTaskTTL overrides DefaultTaskTTL.
func WithTaskTTL(ttl time.Duration) Option {
	return func(s *taskServiceImpl) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	gateway store.Gateway
	queue   *queue.Client
	cache   Cache
	logger  *slog.Logger
	ttl     time.Duration
	outbox  bool
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	gateway store.Gateway,
	queueClient *queue.Client,
	taskCache Cache,
	logger *slog.Logger,
	opts ...Option,
) (TaskService, error) {
	if gateway == nil {
		return nil, &TaskServiceError{Operation: opCreateService, Message: "gateway cannot be nil"}
	}
	if queueClient == nil {
		return nil, &TaskServiceError{Operation: opCreateService, Message: "queueClient cannot be nil"}
	}
	if taskCache == nil {
		return nil, &TaskServiceError{Operation: opCreateService, Message: "cache cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &taskServiceImpl{
		gateway: gateway,
		queue:   queueClient,
		cache:   taskCache,
		logger:  logger.With("component", "task_service"),
		ttl:     DefaultTaskTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TaskCacheKey is the cache key of a single task.
func TaskCacheKey(id uuid.UUID) string {
	return taskKeyPrefix + id.String()
}

// Create implements TaskService.Create
func (s *taskServiceImpl) Create(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
	log := s.log(ctx).With(slog.String("operation", opCreateTask))
	trace(log, stateStarted)

	task, err := domain.NewTask(input)
	if err != nil {
		log.Debug("invalid task input", slog.String("error", err.Error()))
		return nil, NewTaskServiceError(opCreateTask, "invalid task", err)
	}
	log = log.With(slog.String("task_id", task.ID.String()))

	err = s.gateway.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		trace(log, stateTransactionOpen)
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		if s.outbox {
			_, err := s.queue.WithJobs(tx.Jobs()).EnqueueTaskStatus(ctx, task.ID, task.Status)
			return err
		}
		return nil
	})
	if err != nil {
		trace(log, stateRolledBack)
		log.Error("failed to create task", slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError(opCreateTask, "failed to save task", err)
	}
	trace(log, stateCommitted)

	notifyErr := s.notify(ctx, log, task, true)
	s.invalidateListings(ctx, log)
	trace(log, stateDone)

	if notifyErr != nil {
		return task, NewTaskServiceError(opCreateTask, "task saved but status update was not queued", notifyErr)
	}
	return task, nil
}

// FindOne implements TaskService.FindOne
func (s *taskServiceImpl) FindOne(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := s.log(ctx)
	key := TaskCacheKey(id)

	var cached domain.Task
	if s.cache.Get(ctx, key, &cached) {
		log.Debug("task served from cache", slog.String("task_id", id.String()))
		return &cached, nil
	}

	task, err := s.gateway.Tasks().GetByID(ctx, id)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get task",
				slog.String("task_id", id.String()),
				slog.String("error", redact.Error(err)))
		}
		return nil, NewTaskServiceError(opGetTask, "failed to get task", err)
	}

	s.remember(ctx, log, key, task)
	return task, nil
}

// FindAll implements TaskService.FindAll
func (s *taskServiceImpl) FindAll(ctx context.Context, filter domain.TaskFilter) (*domain.TaskPage, error) {
	log := s.log(ctx)
	filter = filter.Normalize()
	key := cache.GenerateKey(listKeyPrefix, filter.CacheParams())

	var cached domain.TaskPage
	if s.cache.Get(ctx, key, &cached) {
		log.Debug("task listing served from cache", slog.String("key", key))
		if cached.Data == nil {
			cached.Data = []*domain.Task{}
		}
		return &cached, nil
	}

	tasks, total, err := s.gateway.Tasks().Find(ctx, filter)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", redact.Error(err)))
		return nil, NewTaskServiceError(opListTasks, "failed to list tasks", err)
	}

	page := domain.NewTaskPage(tasks, total, filter.Page, filter.Limit)
	s.remember(ctx, log, key, page)
	return page, nil
}

// FindByStatus implements TaskService.FindByStatus
func (s *taskServiceImpl) FindByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	filter domain.TaskFilter,
) (*domain.TaskPage, error) {
	if !status.IsValid() {
		return nil, NewTaskServiceError(opListTasks, "invalid status filter",
			domain.NewValidationError("status", "is not a known status", domain.ErrInvalidTaskStatus))
	}
	return s.FindAll(ctx, filter.WithStatus(status))
}

// Update implements TaskService.Update
func (s *taskServiceImpl) Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	log := s.log(ctx).With(
		slog.String("operation", opUpdateTask),
		slog.String("task_id", id.String()))
	trace(log, stateStarted)

	var (
		updated       *domain.Task
		statusChanged bool
	)
	err := s.gateway.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		trace(log, stateTransactionOpen)

		task, err := tx.Tasks().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		original := task.Status

		if err := task.Apply(patch); err != nil {
			return err
		}
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}

		statusChanged = task.Status != original
		if statusChanged && s.outbox {
			if _, err := s.queue.WithJobs(tx.Jobs()).EnqueueTaskStatus(ctx, task.ID, task.Status); err != nil {
				return err
			}
		}
		updated = task
		return nil
	})
	if err != nil {
		trace(log, stateRolledBack)
		if !store.IsNotFoundError(err) {
			log.Error("failed to update task", slog.String("error", redact.Error(err)))
		}
		return nil, NewTaskServiceError(opUpdateTask, "failed to update task", err)
	}
	trace(log, stateCommitted)

	notifyErr := s.notify(ctx, log, updated, statusChanged)
	s.invalidateTask(ctx, log, id)
	trace(log, stateDone)

	if notifyErr != nil {
		return updated, NewTaskServiceError(opUpdateTask, "task saved but status update was not queued", notifyErr)
	}
	return updated, nil
}

// Delete implements TaskService.Delete
func (s *taskServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	log := s.log(ctx).With(
		slog.String("operation", opDeleteTask),
		slog.String("task_id", id.String()))
	trace(log, stateStarted)

	err := s.gateway.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		trace(log, stateTransactionOpen)
		if _, err := tx.Tasks().GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.Tasks().Delete(ctx, id)
	})
	if err != nil {
		trace(log, stateRolledBack)
		if !store.IsNotFoundError(err) {
			log.Error("failed to delete task", slog.String("error", redact.Error(err)))
		}
		return NewTaskServiceError(opDeleteTask, "failed to delete task", err)
	}
	trace(log, stateCommitted)
	trace(log, stateQueueSkipped)

	s.invalidateTask(ctx, log, id)
	trace(log, stateDone)
	return nil
}

// notify enqueues the status update after commit. In outbox mode the job
// was already written inside the transaction.
func (s *taskServiceImpl) notify(ctx context.Context, log *slog.Logger, task *domain.Task, changed bool) error {
	if !changed {
		trace(log, stateQueueSkipped)
		return nil
	}
	if s.outbox {
		trace(log, stateQueueNotified)
		return nil
	}

	job, err := s.queue.EnqueueTaskStatus(ctx, task.ID, task.Status)
	if err != nil {
		log.Error("task committed but status update could not be queued",
			slog.String("status", string(task.Status)),
			slog.String("error", redact.Error(err)))
		return err
	}
	trace(log, stateQueueNotified, slog.String("job_id", job.ID.String()))
	return nil
}

// invalidateTask drops the task's own entry and every listing.
func (s *taskServiceImpl) invalidateTask(ctx context.Context, log *slog.Logger, id uuid.UUID) {
	if err := s.cache.Delete(ctx, TaskCacheKey(id)); err != nil {
		log.Warn("failed to invalidate cached task", slog.String("error", redact.Error(err)))
	}
	s.invalidateListings(ctx, log)
}

// invalidateListings clears every key the cache has written.
func (s *taskServiceImpl) invalidateListings(ctx context.Context, log *slog.Logger) {
	if err := s.cache.Clear(ctx); err != nil {
		log.Warn("failed to invalidate cached listings", slog.String("error", redact.Error(err)))
	}
	trace(log, stateCacheInvalidated)
}

func (s *taskServiceImpl) remember(ctx context.Context, log *slog.Logger, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		log.Warn("failed to cache result",
			slog.String("key", key),
			slog.String("error", redact.Error(err)))
	}
}

func (s *taskServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

func trace(log *slog.Logger, state string, attrs ...any) {
	log.Debug("task mutation state", append([]any{slog.String("state", state)}, attrs...)...)
}
