package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
		{"invalid token", fmt.Errorf("parse: %w", auth.ErrInvalidToken), http.StatusUnauthorized, "Invalid token"},
		{"wrong token type", auth.ErrWrongTokenType, http.StatusUnauthorized, "Invalid token"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"service not found", service.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
		{"store not found", fmt.Errorf("get: %w", store.ErrTaskNotFound), http.StatusNotFound, "Task not found"},
		{"duplicate", store.ErrDuplicate, http.StatusConflict, "Entity already exists"},
		{"missing owner", store.ErrRelatedEntityNotFound, http.StatusBadRequest, "Referenced user not found"},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest, "Invalid entity data"},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest, "Invalid ID format"},
		{"invalid format", domain.ErrInvalidFormat, http.StatusBadRequest, "Invalid request format"},
		{
			"field error",
			domain.NewValidationError("status", "is not a known status", domain.ErrInvalidTaskStatus),
			http.StatusBadRequest,
			"validation failed: status is not a known status",
		},
		{
			"service wrapped field error",
			service.NewTaskServiceError("update_task", "invalid patch",
				domain.NewValidationError("title", "cannot be empty", domain.ErrEmptyTaskTitle)),
			http.StatusBadRequest,
			"validation failed: title cannot be empty",
		},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, genericErrorMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.msg, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := shared.ValidateRequest(CreateTaskRequest{Title: "x", Priority: "URGENT"})
	assert.Equal(t, "Invalid priority: invalid value", SanitizeValidationError(err))

	err = shared.ValidateRequest(CreateTaskRequest{})
	assert.Equal(t, "Invalid title: required field", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("plain")))
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	t.Run("default message replaces generic server error", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		HandleAPIError(rr, r, errors.New("boom"), "Failed to list tasks")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "Failed to list tasks")
		assert.NotContains(t, rr.Body.String(), "boom")
	})

	t.Run("default message ignored for client errors", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		HandleAPIError(rr, r, domain.ErrInvalidID, "Failed to list tasks")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid ID format")
	})
}
