package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service"
)

// MockTaskService is a service.TaskService whose behaviour is set per test
// through the Fn fields. A nil Fn returns zero values. The arguments of
// the last call to each method are recorded.
type MockTaskService struct {
	CreateFn       func(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error)
	FindOneFn      func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	FindAllFn      func(ctx context.Context, filter domain.TaskFilter) (*domain.TaskPage, error)
	UpdateFn       func(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)
	DeleteFn       func(ctx context.Context, id uuid.UUID) error
	FindByStatusFn func(ctx context.Context, status domain.TaskStatus, filter domain.TaskFilter) (*domain.TaskPage, error)

	mu          sync.Mutex
	LastCreate  domain.CreateTaskInput
	LastFilter  domain.TaskFilter
	LastPatch   domain.TaskPatch
	LastStatus  domain.TaskStatus
	LastID      uuid.UUID
	CallsByName map[string]int
}

var _ service.TaskService = (*MockTaskService)(nil)

func (m *MockTaskService) record(name string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CallsByName == nil {
		m.CallsByName = make(map[string]int)
	}
	m.CallsByName[name]++
	fn()
}

// Calls returns how many times the named method was called.
func (m *MockTaskService) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallsByName[name]
}

// Create implements service.TaskService.
func (m *MockTaskService) Create(ctx context.Context, input domain.CreateTaskInput) (*domain.Task, error) {
	m.record("Create", func() { m.LastCreate = input })
	if m.CreateFn == nil {
		return nil, nil
	}
	return m.CreateFn(ctx, input)
}

// FindOne implements service.TaskService.
func (m *MockTaskService) FindOne(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.record("FindOne", func() { m.LastID = id })
	if m.FindOneFn == nil {
		return nil, nil
	}
	return m.FindOneFn(ctx, id)
}

// FindAll implements service.TaskService.
func (m *MockTaskService) FindAll(ctx context.Context, filter domain.TaskFilter) (*domain.TaskPage, error) {
	m.record("FindAll", func() { m.LastFilter = filter })
	if m.FindAllFn == nil {
		return domain.NewTaskPage(nil, 0, 1, domain.DefaultLimit), nil
	}
	return m.FindAllFn(ctx, filter)
}

// Update implements service.TaskService.
func (m *MockTaskService) Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	m.record("Update", func() {
		m.LastID = id
		m.LastPatch = patch
	})
	if m.UpdateFn == nil {
		return nil, nil
	}
	return m.UpdateFn(ctx, id, patch)
}

// Delete implements service.TaskService.
func (m *MockTaskService) Delete(ctx context.Context, id uuid.UUID) error {
	m.record("Delete", func() { m.LastID = id })
	if m.DeleteFn == nil {
		return nil
	}
	return m.DeleteFn(ctx, id)
}

// FindByStatus implements service.TaskService.
func (m *MockTaskService) FindByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	filter domain.TaskFilter,
) (*domain.TaskPage, error) {
	m.record("FindByStatus", func() {
		m.LastStatus = status
		m.LastFilter = filter
	})
	if m.FindByStatusFn == nil {
		return domain.NewTaskPage(nil, 0, 1, domain.DefaultLimit), nil
	}
	return m.FindByStatusFn(ctx, status, filter)
}
