package domain

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// SortOrder is the direction of a listing sort.
type SortOrder string

// Supported sort orders
const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Listing defaults
const (
	DefaultPage      = 1
	DefaultLimit     = 10
	DefaultSortBy    = "createdAt"
	DefaultSortOrder = SortDesc
)

// TaskFilter selects, orders and paginates a task listing.
// Zero values mean "use the default" (see Normalize).
type TaskFilter struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
	Status    *TaskStatus
	Priority  *TaskPriority
	UserID    *uuid.UUID
	Search    string
}

// Normalize returns a copy of the filter with defaults applied.
// The sort field is kept verbatim; only its absence is defaulted.
func (f TaskFilter) Normalize() TaskFilter {
	if f.Page <= 0 {
		f.Page = DefaultPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if strings.TrimSpace(f.SortBy) == "" {
		f.SortBy = DefaultSortBy
	}
	switch SortOrder(strings.ToUpper(string(f.SortOrder))) {
	case SortAsc:
		f.SortOrder = SortAsc
	default:
		f.SortOrder = SortDesc
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Offset is the number of rows skipped before the requested page.
// It saturates at math.MaxInt so a page far past the end selects no rows.
func (f TaskFilter) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

// WithStatus returns a copy of the filter restricted to the given status.
func (f TaskFilter) WithStatus(status TaskStatus) TaskFilter {
	f.Status = &status
	return f
}

// CacheParams returns the canonical parameter set that identifies this
// listing. Call it on a normalized filter so that explicit defaults and
// omitted fields produce the same set. Absent optional filters are left out.
func (f TaskFilter) CacheParams() map[string]any {
	params := map[string]any{
		"page":      f.Page,
		"limit":     f.Limit,
		"sortBy":    f.SortBy,
		"sortOrder": string(f.SortOrder),
	}
	if f.Status != nil {
		params["status"] = string(*f.Status)
	}
	if f.Priority != nil {
		params["priority"] = string(*f.Priority)
	}
	if f.UserID != nil {
		params["userId"] = f.UserID.String()
	}
	if f.Search != "" {
		params["search"] = f.Search
	}
	return params
}

// PageMeta describes where a page sits within the full result set.
type PageMeta struct {
	Total           int  `json:"total"`
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPageMeta computes pagination metadata for a listing.
// totalPages is ceil(total/limit); a zero limit yields zero pages.
func NewPageMeta(total, page, limit int) PageMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = total / limit
		if total%limit != 0 {
			totalPages++
		}
	}
	return PageMeta{
		Total:           total,
		Page:            page,
		Limit:           limit,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Data []*Task  `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NewTaskPage builds a page, never returning a nil Data slice.
func NewTaskPage(tasks []*Task, total, page, limit int) *TaskPage {
	if tasks == nil {
		tasks = []*Task{}
	}
	return &TaskPage{
		Data: tasks,
		Meta: NewPageMeta(total, page, limit),
	}
}
