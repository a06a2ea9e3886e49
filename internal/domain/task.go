package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents where a task is in its lifecycle.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// DefaultTaskStatus is assigned to tasks created without an explicit status.
const DefaultTaskStatus = TaskStatusPending

// TaskPriority represents how urgent a task is.
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// DefaultTaskPriority is assigned to tasks created without an explicit priority.
const DefaultTaskPriority = TaskPriorityMedium

// MaxTaskTitleLength mirrors the width of the tasks.title column.
const MaxTaskTitleLength = 255

// Validation errors for Task
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID     = errors.New("task user ID cannot be empty")
	ErrEmptyTaskTitle      = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong    = errors.New("task title is too long")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidTaskPriority = errors.New("invalid task priority")
)

// TaskOwner is the subset of the owning user returned alongside a task
// when it is read with its owner joined in.
type TaskOwner struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// Task is a unit of work owned by exactly one user and tracked through a
// status and priority lifecycle. Status history is not kept here; whatever
// consumes status-update jobs owns that.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	UserID      uuid.UUID    `json:"user_id"`
	Owner       *TaskOwner   `json:"owner,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CreateTaskInput carries the caller-supplied fields of a new task.
// Empty Status and Priority fall back to the defaults.
type CreateTaskInput struct {
	Title       string
	Description *string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
	UserID      uuid.UUID
}

// TaskPatch describes a partial update. Nil fields are left untouched.
// ClearDescription and ClearDueDate null the corresponding optional field.
type TaskPatch struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *TaskStatus
	Priority         *TaskPriority
	DueDate          *time.Time
	ClearDueDate     bool
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && !p.ClearDescription &&
		p.Status == nil && p.Priority == nil && p.DueDate == nil && !p.ClearDueDate
}

// NewTask creates a new Task from the given input.
// It generates the ID, applies default status and priority, and sets the
// creation/update timestamps. Returns an error if validation fails.
func NewTask(input CreateTaskInput) (*Task, error) {
	now := time.Now().UTC()

	status := input.Status
	if status == "" {
		status = DefaultTaskStatus
	}
	priority := input.Priority
	if priority == "" {
		priority = DefaultTaskPriority
	}

	task := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     utcPtr(input.DueDate),
		UserID:      input.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrEmptyTaskID)
	}

	if t.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrEmptyTaskUserID)
	}

	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "cannot be empty", ErrEmptyTaskTitle)
	}

	if len(t.Title) > MaxTaskTitleLength {
		return NewValidationError("title", "is too long", ErrTaskTitleTooLong)
	}

	if !t.Status.IsValid() {
		return NewValidationError("status", "is not a known status", ErrInvalidTaskStatus)
	}

	if !t.Priority.IsValid() {
		return NewValidationError("priority", "is not a known priority", ErrInvalidTaskPriority)
	}

	return nil
}

// Apply applies the patch to the task, bumps UpdatedAt and re-validates.
// On validation failure the task is left unchanged.
func (t *Task) Apply(patch TaskPatch) error {
	next := *t

	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.ClearDescription {
		next.Description = nil
	} else if patch.Description != nil {
		desc := *patch.Description
		next.Description = &desc
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Priority != nil {
		next.Priority = *patch.Priority
	}
	if patch.ClearDueDate {
		next.DueDate = nil
	} else if patch.DueDate != nil {
		next.DueDate = utcPtr(patch.DueDate)
	}

	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = time.Now().UTC()
	*t = next
	return nil
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid reports whether p is one of the known priorities.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// ParseTaskStatus converts text into a TaskStatus, ignoring case.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", NewValidationError("status", "is not a known status", ErrInvalidTaskStatus)
	}
	return status, nil
}

// ParseTaskPriority converts text into a TaskPriority, ignoring case.
func ParseTaskPriority(s string) (TaskPriority, error) {
	priority := TaskPriority(strings.ToUpper(strings.TrimSpace(s)))
	if !priority.IsValid() {
		return "", NewValidationError("priority", "is not a known priority", ErrInvalidTaskPriority)
	}
	return priority, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
