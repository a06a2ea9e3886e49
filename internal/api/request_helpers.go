package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/api/shared"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// getUserIDFromContext extracts the authenticated user's UUID from the request context.
// The user ID is expected to be placed in the context by the authentication middleware.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	return shared.UserIDFromContext(r.Context())
}

// getPathUUID extracts a UUID from the URL path parameters.
// A missing or malformed parameter yields a validation error.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// parseListQuery reads and validates the listing query parameters.
// Enum values are accepted in any case.
func parseListQuery(values url.Values) (ListTasksQuery, error) {
	page, err := intParam(values, "page")
	if err != nil {
		return ListTasksQuery{}, err
	}
	limit, err := intParam(values, "limit")
	if err != nil {
		return ListTasksQuery{}, err
	}

	q := ListTasksQuery{
		Page:      page,
		Limit:     limit,
		SortBy:    strings.TrimSpace(values.Get("sortBy")),
		SortOrder: strings.ToUpper(strings.TrimSpace(values.Get("sortOrder"))),
		Status:    strings.ToUpper(strings.TrimSpace(values.Get("status"))),
		Priority:  strings.ToUpper(strings.TrimSpace(values.Get("priority"))),
		UserID:    strings.TrimSpace(values.Get("userId")),
		Search:    strings.TrimSpace(values.Get("search")),
	}
	if err := shared.ValidateRequest(q); err != nil {
		return ListTasksQuery{}, err
	}
	return q, nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", domain.ErrInvalidFormat)
	}
	return n, nil
}
