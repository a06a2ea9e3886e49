package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockGateway is an in-memory store.Gateway. RunInTx calls are serialized;
// each snapshots the tasks on begin and restores the snapshot if fn fails
// or CommitErr is set. Jobs enqueued inside a transaction reach JobStore
// only on commit.
type MockGateway struct {
	txMu sync.Mutex

	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
	users map[uuid.UUID]domain.TaskOwner
	calls map[string]int

	// JobStore is the broker shared by transactional and plain enqueues.
	JobStore *MockJobStore

	// BeginErr is returned by RunInTx before fn runs.
	BeginErr error
	// CommitErr makes RunInTx roll back after fn succeeds.
	CommitErr error
	// FailOn, when set, is consulted at the start of every task store
	// operation; a non-nil result is returned from that operation.
	FailOn func(op string) error

	commits   int
	rollbacks int
}

// NewMockGateway creates an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		tasks:    make(map[uuid.UUID]*domain.Task),
		users:    make(map[uuid.UUID]domain.TaskOwner),
		calls:    make(map[string]int),
		JobStore: NewMockJobStore(),
	}
}

var _ store.Gateway = (*MockGateway)(nil)

// AddUser registers an owner. Creating a task for an unknown user fails
// with store.ErrRelatedEntityNotFound.
func (g *MockGateway) AddUser(email, name string) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := uuid.New()
	g.users[id] = domain.TaskOwner{ID: id, Email: email, Name: name}
	return id
}

// RunInTx implements store.Gateway.
func (g *MockGateway) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if g.BeginErr != nil {
		return fmt.Errorf("%w: begin: %w", store.ErrTransactionFailed, g.BeginErr)
	}

	g.txMu.Lock()
	defer g.txMu.Unlock()

	snapshot := g.snapshot()
	jobs := &bufferedJobStore{MockJobStore: g.JobStore}
	tx := &mockTx{tasks: &mockTaskStore{g: g}, jobs: jobs}

	rollback := func() {
		g.restore(snapshot)
		g.mu.Lock()
		g.rollbacks++
		g.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		rollback()
		return err
	}
	if g.CommitErr != nil {
		rollback()
		return fmt.Errorf("%w: commit: %w", store.ErrTransactionFailed, g.CommitErr)
	}

	jobs.flush()
	g.mu.Lock()
	g.commits++
	g.mu.Unlock()
	return nil
}

// Tasks implements store.Gateway.
func (g *MockGateway) Tasks() store.TaskStore {
	return &mockTaskStore{g: g}
}

// Commits returns the number of committed transactions.
func (g *MockGateway) Commits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commits
}

// Rollbacks returns the number of rolled back transactions.
func (g *MockGateway) Rollbacks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rollbacks
}

// Calls returns how many times the named task store operation ran.
func (g *MockGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// PutTask writes a task directly, bypassing transactions and counters.
// Tests use it to simulate changes made outside the service.
func (g *MockGateway) PutTask(task *domain.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *task
	g.tasks[task.ID] = &cp
}

// StoredTask returns a copy of the stored task, bypassing counters.
func (g *MockGateway) StoredTask(id uuid.UUID) (*domain.Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	task, ok := g.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *task
	return &cp, true
}

// TaskCount returns the number of stored tasks.
func (g *MockGateway) TaskCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

func (g *MockGateway) snapshot() map[uuid.UUID]domain.Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[uuid.UUID]domain.Task, len(g.tasks))
	for id, task := range g.tasks {
		out[id] = *task
	}
	return out
}

func (g *MockGateway) restore(snapshot map[uuid.UUID]domain.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = make(map[uuid.UUID]*domain.Task, len(snapshot))
	for id, task := range snapshot {
		cp := task
		g.tasks[id] = &cp
	}
}

type mockTx struct {
	tasks store.TaskStore
	jobs  store.JobStore
}

func (t *mockTx) Tasks() store.TaskStore { return t.tasks }
func (t *mockTx) Jobs() store.JobStore   { return t.jobs }

// mockTaskStore is the store.TaskStore view over a MockGateway.
type mockTaskStore struct {
	g *MockGateway
}

var sortFields = map[string]func(a, b *domain.Task) int{
	"createdAt": func(a, b *domain.Task) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updatedAt": func(a, b *domain.Task) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"title":     func(a, b *domain.Task) int { return strings.Compare(a.Title, b.Title) },
	"status":    func(a, b *domain.Task) int { return strings.Compare(string(a.Status), string(b.Status)) },
	"priority":  func(a, b *domain.Task) int { return strings.Compare(string(a.Priority), string(b.Priority)) },
	"dueDate": func(a, b *domain.Task) int {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	},
}

func (s *mockTaskStore) begin(op string) error {
	s.g.mu.Lock()
	s.g.calls[op]++
	failOn := s.g.FailOn
	s.g.mu.Unlock()
	if failOn != nil {
		return failOn(op)
	}
	return nil
}

func (s *mockTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	if err := s.begin("GetByID"); err != nil {
		return nil, err
	}
	return s.get(id)
}

// GetByIDForUpdate needs no lock: transactions are already serialized.
func (s *mockTaskStore) GetByIDForUpdate(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	if err := s.begin("GetByIDForUpdate"); err != nil {
		return nil, err
	}
	return s.get(id)
}

func (s *mockTaskStore) get(id uuid.UUID) (*domain.Task, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	task, ok := s.g.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *task
	if owner, ok := s.g.users[task.UserID]; ok {
		cp.Owner = &owner
	}
	return &cp, nil
}

func (s *mockTaskStore) Find(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, int, error) {
	if err := s.begin("Find"); err != nil {
		return nil, 0, err
	}
	cmp, ok := sortFields[filter.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unsupported sort field %q", store.ErrInvalidEntity, filter.SortBy)
	}

	s.g.mu.Lock()
	var matched []*domain.Task
	for _, task := range s.g.tasks {
		if matches(task, filter) {
			cp := *task
			if owner, ok := s.g.users[task.UserID]; ok {
				cp.Owner = &owner
			}
			matched = append(matched, &cp)
		}
	}
	s.g.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		c := cmp(matched[i], matched[j])
		if c == 0 {
			c = strings.Compare(matched[i].ID.String(), matched[j].ID.String())
		}
		if filter.SortOrder == domain.SortAsc {
			return c < 0
		}
		return c > 0
	})

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)
	page := append([]*domain.Task{}, matched[start:end]...)
	return page, total, nil
}

func matches(task *domain.Task, filter domain.TaskFilter) bool {
	if filter.Status != nil && task.Status != *filter.Status {
		return false
	}
	if filter.Priority != nil && task.Priority != *filter.Priority {
		return false
	}
	if filter.UserID != nil && task.UserID != *filter.UserID {
		return false
	}
	if filter.Search != "" {
		text := task.Title
		if task.Description != nil {
			text += " " + *task.Description
		}
		if !strings.Contains(strings.ToLower(text), strings.ToLower(filter.Search)) {
			return false
		}
	}
	return true
}

func (s *mockTaskStore) Create(_ context.Context, task *domain.Task) error {
	if err := s.begin("Create"); err != nil {
		return err
	}
	if err := task.Validate(); err != nil {
		return err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	if _, ok := s.g.users[task.UserID]; !ok {
		return fmt.Errorf("%w: user with ID %s not found", store.ErrRelatedEntityNotFound, task.UserID)
	}
	if _, exists := s.g.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	cp := *task
	cp.Owner = nil
	s.g.tasks[task.ID] = &cp
	return nil
}

func (s *mockTaskStore) Update(_ context.Context, task *domain.Task) error {
	if err := s.begin("Update"); err != nil {
		return err
	}
	if err := task.Validate(); err != nil {
		return err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	if _, ok := s.g.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	cp := *task
	cp.Owner = nil
	s.g.tasks[task.ID] = &cp
	return nil
}

func (s *mockTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	if err := s.begin("Delete"); err != nil {
		return err
	}
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	if _, ok := s.g.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.g.tasks, id)
	return nil
}

func (s *mockTaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return s
}
