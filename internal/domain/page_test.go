package domain

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewPageMeta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		total, page, limit int
		wantPages          int
		wantNext, wantPrev bool
	}{
		{"last page", 25, 3, 10, 3, false, true},
		{"first page", 25, 1, 10, 3, true, false},
		{"middle page", 25, 2, 10, 3, true, true},
		{"empty", 0, 1, 10, 0, false, false},
		{"exact multiple", 20, 2, 10, 2, false, true},
		{"page past end", 5, 4, 10, 1, false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			meta := NewPageMeta(tc.total, tc.page, tc.limit)
			assert.Equal(t, tc.total, meta.Total)
			assert.Equal(t, tc.wantPages, meta.TotalPages)
			assert.Equal(t, tc.wantNext, meta.HasNextPage)
			assert.Equal(t, tc.wantPrev, meta.HasPreviousPage)
		})
	}
}

func TestNewTaskPage_EmptyDataIsNotNil(t *testing.T) {
	t.Parallel()

	page := NewTaskPage(nil, 0, 1, 10)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Meta.TotalPages)
}

func TestTaskFilterNormalize(t *testing.T) {
	t.Parallel()

	f := TaskFilter{SortOrder: "asc", Search: "  report "}.Normalize()

	assert.Equal(t, DefaultPage, f.Page)
	assert.Equal(t, DefaultLimit, f.Limit)
	assert.Equal(t, DefaultSortBy, f.SortBy)
	assert.Equal(t, SortAsc, f.SortOrder)
	assert.Equal(t, "report", f.Search)
	assert.Equal(t, 0, f.Offset())

	f = TaskFilter{Page: 3, Limit: 10, SortBy: "title", SortOrder: "sideways"}.Normalize()
	assert.Equal(t, "title", f.SortBy, "sort field is applied verbatim")
	assert.Equal(t, SortDesc, f.SortOrder)
	assert.Equal(t, 20, f.Offset())
}

func TestTaskFilterOffset_HugePageSaturates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		page  int
		limit int
	}{
		{"max int page", math.MaxInt, 10},
		{"first page past the boundary", math.MaxInt/10 + 2, 10},
		{"limit of one hundred", math.MaxInt/100 + 5, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset := TaskFilter{Page: tt.page, Limit: tt.limit}.Normalize().Offset()
			assert.Equal(t, math.MaxInt, offset)
		})
	}

	last := TaskFilter{Page: math.MaxInt/10 + 1, Limit: 10}.Offset()
	assert.Equal(t, (math.MaxInt/10)*10, last)
	assert.Positive(t, last)
}

func TestNewPageMeta_HugeLimitDoesNotOverflow(t *testing.T) {
	t.Parallel()

	meta := NewPageMeta(3, 1, math.MaxInt)
	assert.Equal(t, 1, meta.TotalPages)
	assert.False(t, meta.HasNextPage)
}

func TestTaskFilterCacheParams(t *testing.T) {
	t.Parallel()

	implicit := TaskFilter{}.Normalize().CacheParams()
	explicit := TaskFilter{Page: 1, Limit: 10, SortBy: "createdAt", SortOrder: SortDesc}.Normalize().CacheParams()
	assert.Equal(t, implicit, explicit)
	assert.NotContains(t, implicit, "status")

	userID := uuid.New()
	params := TaskFilter{UserID: &userID}.Normalize().WithStatus(TaskStatusCompleted).CacheParams()
	assert.Equal(t, "COMPLETED", params["status"])
	assert.Equal(t, userID.String(), params["userId"])
}
