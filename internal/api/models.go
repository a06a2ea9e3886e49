package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Common request/response structures

// CreateTaskRequest defines the payload for POST /api/tasks.
// UserID defaults to the authenticated user.
type CreateTaskRequest struct {
	Title       string     `json:"title"       validate:"required,max=255"`
	Description *string    `json:"description"`
	Status      string     `json:"status"      validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Priority    string     `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time `json:"dueDate"`
	UserID      string     `json:"userId"      validate:"omitempty,uuid"`
}

// UpdateTaskRequest defines the payload for PATCH /api/tasks/{id}.
// Absent fields are left unchanged; an explicit null clears description
// and dueDate.
type UpdateTaskRequest struct {
	Title       *string             `json:"title"       validate:"omitempty,max=255"`
	Description Nullable[string]    `json:"description"`
	Status      *string             `json:"status"      validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Priority    *string             `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     Nullable[time.Time] `json:"dueDate"`
}

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler. It is only called for fields
// present in the document.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// toPatch converts the request into a domain patch.
func (req UpdateTaskRequest) toPatch() domain.TaskPatch {
	patch := domain.TaskPatch{
		Title:    req.Title,
		Priority: (*domain.TaskPriority)(req.Priority),
		Status:   (*domain.TaskStatus)(req.Status),
	}
	if req.Description.Set {
		if req.Description.Value == nil {
			patch.ClearDescription = true
		} else {
			patch.Description = req.Description.Value
		}
	}
	if req.DueDate.Set {
		if req.DueDate.Value == nil {
			patch.ClearDueDate = true
		} else {
			patch.DueDate = req.DueDate.Value
		}
	}
	return patch
}

// ListTasksQuery holds the query parameters of the listing endpoints.
type ListTasksQuery struct {
	Page      int    `validate:"omitempty,min=1"`
	Limit     int    `validate:"omitempty,min=1,max=100"`
	SortBy    string `validate:"omitempty,max=32"`
	SortOrder string `validate:"omitempty,oneof=ASC DESC"`
	Status    string `validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Priority  string `validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	UserID    string `validate:"omitempty,uuid"`
	Search    string `validate:"omitempty,max=255"`
}

// toFilter converts validated query parameters into a task filter.
func (q ListTasksQuery) toFilter() domain.TaskFilter {
	filter := domain.TaskFilter{
		Page:      q.Page,
		Limit:     q.Limit,
		SortBy:    q.SortBy,
		SortOrder: domain.SortOrder(q.SortOrder),
		Search:    q.Search,
	}
	if q.Status != "" {
		status := domain.TaskStatus(q.Status)
		filter.Status = &status
	}
	if q.Priority != "" {
		priority := domain.TaskPriority(q.Priority)
		filter.Priority = &priority
	}
	if q.UserID != "" {
		if id, err := uuid.Parse(q.UserID); err == nil {
			filter.UserID = &id
		}
	}
	return filter
}

// TaskOwnerResponse is the owner embedded in a task response.
type TaskOwnerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description *string            `json:"description"`
	Status      string             `json:"status"`
	Priority    string             `json:"priority"`
	DueDate     *time.Time         `json:"dueDate"`
	UserID      string             `json:"userId"`
	User        *TaskOwnerResponse `json:"user,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// TaskListResponse is one page of tasks.
type TaskListResponse struct {
	Data []TaskResponse  `json:"data"`
	Meta domain.PageMeta `json:"meta"`
}

// taskToResponse converts a domain.Task to a TaskResponse
func taskToResponse(task *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		DueDate:     task.DueDate,
		UserID:      task.UserID.String(),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.Owner != nil {
		resp.User = &TaskOwnerResponse{
			ID:    task.Owner.ID.String(),
			Email: task.Owner.Email,
			Name:  task.Owner.Name,
		}
	}
	return resp
}

// pageToResponse converts a domain.TaskPage to a TaskListResponse
func pageToResponse(page *domain.TaskPage) TaskListResponse {
	data := make([]TaskResponse, 0, len(page.Data))
	for _, task := range page.Data {
		data = append(data, taskToResponse(task))
	}
	return TaskListResponse{Data: data, Meta: page.Meta}
}
