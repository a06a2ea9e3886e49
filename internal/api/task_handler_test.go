package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/middleware"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/mocks"
	"github.com/phrazzld/taskflow-api/internal/queue"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newTestRouter mounts the task routes behind a stub that authenticates
// every request as userID.
func newTestRouter(svc service.TaskService, userID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware(discardLogger()))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != uuid.Nil {
				req = req.WithContext(shared.WithUserID(req.Context(), userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/tasks", NewTaskHandler(svc, discardLogger()).Routes)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func sampleTask(userID uuid.UUID) *domain.Task {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Task{
		ID:        uuid.New(),
		Title:     "Write report",
		Status:    domain.TaskStatusPending,
		Priority:  domain.TaskPriorityMedium,
		UserID:    userID,
		Owner:     &domain.TaskOwner{ID: userID, Email: "owner@example.com", Name: "Owner"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTaskHandler_CreateTask(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	t.Run("created", func(t *testing.T) {
		svc := &mocks.MockTaskService{
			CreateFn: func(_ context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
				task := sampleTask(input.UserID)
				task.Title = input.Title
				task.Priority = input.Priority
				return task, nil
			},
		}
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodPost, "/api/tasks",
			`{"title":"Write report","priority":"high","dueDate":"2025-04-01T00:00:00Z"}`)

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Write report", resp.Title)
		assert.Equal(t, "HIGH", resp.Priority)
		assert.Equal(t, userID.String(), resp.UserID)
		require.NotNil(t, resp.User)
		assert.Equal(t, "owner@example.com", resp.User.Email)

		assert.Equal(t, userID, svc.LastCreate.UserID, "owner defaults to the caller")
		assert.Equal(t, domain.TaskPriorityHigh, svc.LastCreate.Priority)
		require.NotNil(t, svc.LastCreate.DueDate)
	})

	t.Run("explicit owner", func(t *testing.T) {
		other := uuid.New()
		svc := &mocks.MockTaskService{
			CreateFn: func(_ context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
				return sampleTask(input.UserID), nil
			},
		}
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodPost, "/api/tasks",
			fmt.Sprintf(`{"title":"Delegated","userId":%q}`, other))

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, other, svc.LastCreate.UserID)
	})

	tests := []struct {
		name       string
		body       string
		serviceErr error
		saved      bool
		wantStatus int
		wantError  string
	}{
		{"malformed body", `{"title":`, nil, false, http.StatusBadRequest, "Invalid request format"},
		{"unknown field", `{"title":"x","owner":"me"}`, nil, false, http.StatusBadRequest, "Invalid request format"},
		{"missing title", `{"description":"x"}`, nil, false, http.StatusBadRequest, "Invalid title: required field"},
		{"bad status", `{"title":"x","status":"DONE"}`, nil, false, http.StatusBadRequest, "Invalid status: invalid value"},
		{"bad user id", `{"title":"x","userId":"nope"}`, nil, false, http.StatusBadRequest, "Invalid userId: invalid UUID"},
		{
			"unknown owner", `{"title":"x"}`,
			fmt.Errorf("wrapped: %w", store.ErrRelatedEntityNotFound), false,
			http.StatusBadRequest, "Referenced user not found",
		},
		{
			"domain validation", `{"title":"   "}`,
			domain.NewValidationError("title", "cannot be empty", domain.ErrEmptyTaskTitle), false,
			http.StatusBadRequest, "validation failed: title cannot be empty",
		},
		{
			"store failure", `{"title":"x"}`,
			errors.New("connection reset"), false,
			http.StatusInternalServerError, "Failed to create task",
		},
		{
			"saved but not queued", `{"title":"x"}`,
			fmt.Errorf("%w: broker down", queue.ErrEnqueueFailed), true,
			http.StatusInternalServerError, "Task saved but status notification failed",
		},
		{
			"outbox enqueue failure rolls back", `{"title":"x"}`,
			fmt.Errorf("%w: broker down", queue.ErrEnqueueFailed), false,
			http.StatusInternalServerError, "Failed to create task",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mocks.MockTaskService{
				CreateFn: func(_ context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
					if tc.saved {
						return sampleTask(input.UserID), tc.serviceErr
					}
					return nil, tc.serviceErr
				},
			}
			rr := doRequest(t, newTestRouter(svc, userID), http.MethodPost, "/api/tasks", tc.body)

			assert.Equal(t, tc.wantStatus, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tc.wantError, body.Error)
			assert.NotEmpty(t, body.TraceID)
			assert.Equal(t, rr.Header().Get(shared.TraceIDHeader), body.TraceID)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		svc := &mocks.MockTaskService{}
		rr := doRequest(t, newTestRouter(svc, uuid.Nil), http.MethodPost, "/api/tasks", `{"title":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Zero(t, svc.Calls("Create"))
	})
}

func TestTaskHandler_GetTask(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	task := sampleTask(userID)

	svc := &mocks.MockTaskService{
		FindOneFn: func(_ context.Context, id uuid.UUID) (*domain.Task, error) {
			if id == task.ID {
				return task, nil
			}
			return nil, service.ErrTaskNotFound
		},
	}
	router := newTestRouter(svc, userID)

	rr := doRequest(t, router, http.MethodGet, "/api/tasks/"+task.ID.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, task.ID.String(), resp.ID)

	missing := uuid.New()
	rr = doRequest(t, router, http.MethodGet, "/api/tasks/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, fmt.Sprintf("Task with ID %s not found", missing), decodeError(t, rr).Error)

	rr = doRequest(t, router, http.MethodGet, "/api/tasks/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation failed: id has invalid format", decodeError(t, rr).Error)
}

func TestTaskHandler_ListTasks(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	t.Run("query parameters become the filter", func(t *testing.T) {
		svc := &mocks.MockTaskService{
			FindAllFn: func(_ context.Context, filter domain.TaskFilter) (*domain.TaskPage, error) {
				return domain.NewTaskPage([]*domain.Task{sampleTask(userID)}, 25, 3, 10), nil
			},
		}
		owner := uuid.New()
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodGet,
			"/api/tasks?page=3&limit=10&sortBy=title&sortOrder=asc&status=in_progress&priority=HIGH&search=report&userId="+owner.String(), "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp TaskListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 1)
		assert.Equal(t, 3, resp.Meta.TotalPages)
		assert.False(t, resp.Meta.HasNextPage)
		assert.True(t, resp.Meta.HasPreviousPage)

		f := svc.LastFilter
		assert.Equal(t, 3, f.Page)
		assert.Equal(t, 10, f.Limit)
		assert.Equal(t, "title", f.SortBy)
		assert.Equal(t, domain.SortAsc, f.SortOrder)
		require.NotNil(t, f.Status)
		assert.Equal(t, domain.TaskStatusInProgress, *f.Status)
		require.NotNil(t, f.Priority)
		assert.Equal(t, domain.TaskPriorityHigh, *f.Priority)
		require.NotNil(t, f.UserID)
		assert.Equal(t, owner, *f.UserID)
		assert.Equal(t, "report", f.Search)
	})

	t.Run("empty listing has an empty data array", func(t *testing.T) {
		svc := &mocks.MockTaskService{}
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodGet, "/api/tasks", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t,
			`{"data":[],"meta":{"total":0,"page":1,"limit":10,"totalPages":0,"hasNextPage":false,"hasPreviousPage":false}}`,
			rr.Body.String())
	})

	badQueries := map[string]string{
		"non-numeric page": "page=abc",
		"negative limit":   "limit=-1",
		"limit too large":  "limit=1000",
		"bad sort order":   "sortOrder=sideways",
		"bad status":       "status=DONE",
		"bad user id":      "userId=123",
	}
	for name, query := range badQueries {
		t.Run(name, func(t *testing.T) {
			svc := &mocks.MockTaskService{}
			rr := doRequest(t, newTestRouter(svc, userID), http.MethodGet, "/api/tasks?"+query, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Zero(t, svc.Calls("FindAll"))
		})
	}

	t.Run("unknown sort field rejected by the store", func(t *testing.T) {
		svc := &mocks.MockTaskService{
			FindAllFn: func(context.Context, domain.TaskFilter) (*domain.TaskPage, error) {
				return nil, fmt.Errorf("%w: unsupported sort field", store.ErrInvalidEntity)
			},
		}
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodGet, "/api/tasks?sortBy=password", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid entity data", decodeError(t, rr).Error)
	})
}

func TestTaskHandler_ListTasksByStatus(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	svc := &mocks.MockTaskService{}
	router := newTestRouter(svc, userID)

	rr := doRequest(t, router, http.MethodGet, "/api/tasks/status/completed?limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.TaskStatusCompleted, svc.LastStatus)
	assert.Equal(t, 5, svc.LastFilter.Limit)

	rr = doRequest(t, router, http.MethodGet, "/api/tasks/status/archived", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, svc.Calls("FindByStatus"))
}

func TestTaskHandler_UpdateTask(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	task := sampleTask(userID)

	newSvc := func() *mocks.MockTaskService {
		return &mocks.MockTaskService{
			UpdateFn: func(_ context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
				if id != task.ID {
					return nil, service.ErrTaskNotFound
				}
				updated := *task
				if err := updated.Apply(patch); err != nil {
					return nil, err
				}
				return &updated, nil
			},
		}
	}

	t.Run("partial update", func(t *testing.T) {
		svc := newSvc()
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodPatch, "/api/tasks/"+task.ID.String(),
			`{"status":"completed","description":null}`)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "COMPLETED", resp.Status)

		patch := svc.LastPatch
		require.NotNil(t, patch.Status)
		assert.Equal(t, domain.TaskStatusCompleted, *patch.Status)
		assert.True(t, patch.ClearDescription)
		assert.Nil(t, patch.Title)
		assert.False(t, patch.ClearDueDate, "absent dueDate is left alone")
	})

	t.Run("due date set", func(t *testing.T) {
		svc := newSvc()
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodPatch, "/api/tasks/"+task.ID.String(),
			`{"dueDate":"2025-05-01T12:00:00Z"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, svc.LastPatch.DueDate)
		assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), svc.LastPatch.DueDate.UTC())
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.New()
		rr := doRequest(t, newTestRouter(newSvc(), userID), http.MethodPatch, "/api/tasks/"+missing.String(),
			`{"title":"x"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, fmt.Sprintf("Task with ID %s not found", missing), decodeError(t, rr).Error)
	})

	t.Run("invalid priority", func(t *testing.T) {
		svc := newSvc()
		rr := doRequest(t, newTestRouter(svc, userID), http.MethodPatch, "/api/tasks/"+task.ID.String(),
			`{"priority":"urgent"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, svc.Calls("Update"))
	})

	t.Run("empty title fails domain validation", func(t *testing.T) {
		rr := doRequest(t, newTestRouter(newSvc(), userID), http.MethodPatch, "/api/tasks/"+task.ID.String(),
			`{"title":""}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTaskHandler_DeleteTask(t *testing.T) {
	t.Parallel()
	userID := uuid.New()
	existing := uuid.New()

	svc := &mocks.MockTaskService{
		DeleteFn: func(_ context.Context, id uuid.UUID) error {
			if id == existing {
				return nil
			}
			return service.ErrTaskNotFound
		},
	}
	router := newTestRouter(svc, userID)

	rr := doRequest(t, router, http.MethodDelete, "/api/tasks/"+existing.String(), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = doRequest(t, router, http.MethodDelete, "/api/tasks/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// TestTaskRoutes_EndToEnd drives the real service over the in-memory
// gateway through HTTP.
func TestTaskRoutes_EndToEnd(t *testing.T) {
	t.Parallel()

	log := discardLogger()
	gw := mocks.NewMockGateway()
	userID := gw.AddUser("owner@example.com", "Owner")
	svc, err := service.NewTaskService(gw, queue.NewClient(gw.JobStore, log),
		cache.New(cache.NewMemoryBackend(), log), log)
	require.NoError(t, err)
	router := newTestRouter(svc, userID)

	rr := doRequest(t, router, http.MethodPost, "/api/tasks", `{"title":"Ship it"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created TaskResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "PENDING", created.Status)

	rr = doRequest(t, router, http.MethodGet, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var fetched TaskResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fetched))
	require.NotNil(t, fetched.User)
	assert.Equal(t, "owner@example.com", fetched.User.Email)

	rr = doRequest(t, router, http.MethodPatch, "/api/tasks/"+created.ID, `{"status":"IN_PROGRESS"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/api/tasks/status/IN_PROGRESS", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listing TaskListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	require.Len(t, listing.Data, 1)
	assert.Equal(t, created.ID, listing.Data[0].ID)

	rr = doRequest(t, router, http.MethodDelete, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/api/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var statuses []domain.TaskStatus
	for _, p := range gw.JobStore.StatusPayloads() {
		statuses = append(statuses, p.Status)
	}
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusInProgress}, statuses)
}

func TestTaskRoutes_PagePastTheEnd(t *testing.T) {
	t.Parallel()

	log := discardLogger()
	gw := mocks.NewMockGateway()
	userID := gw.AddUser("owner@example.com", "Owner")
	svc, err := service.NewTaskService(gw, queue.NewClient(gw.JobStore, log),
		cache.New(cache.NewMemoryBackend(), log), log)
	require.NoError(t, err)
	router := newTestRouter(svc, userID)

	for _, title := range []string{"One", "Two"} {
		rr := doRequest(t, router, http.MethodPost, "/api/tasks", `{"title":"`+title+`"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	for _, page := range []int{math.MaxInt/10 + 1, math.MaxInt/10 + 2, math.MaxInt} {
		rr := doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/tasks?page=%d&limit=10", page), "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), `"data":[]`)

		var listing TaskListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
		assert.Empty(t, listing.Data)
		assert.Equal(t, 2, listing.Meta.Total)
		assert.Equal(t, page, listing.Meta.Page)
		assert.False(t, listing.Meta.HasNextPage)
	}
}
