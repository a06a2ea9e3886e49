package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
// It is the only place that knows the tasks schema.
type TaskStore interface {
	// GetByID retrieves a task by its unique ID with its owner joined in.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByIDForUpdate is GetByID with the task row locked until the
	// surrounding transaction ends. Outside a transaction it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Find returns one page of tasks matching the filter together with the
	// total number of matching rows. The filter must already be normalized.
	// Returns an empty slice and a zero total when nothing matches.
	Find(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, int, error)

	// Create saves a new task.
	// Returns ErrRelatedEntityNotFound if the owning user does not exist.
	Create(ctx context.Context, task *domain.Task) error

	// Update saves every mutable field of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
