package mocks

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockJobStore is an in-memory store.JobStore.
type MockJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.QueueJob
	// order keeps enqueue order for Enqueued.
	order []uuid.UUID

	// EnqueueErr, when set, is returned by every Enqueue call.
	EnqueueErr error
	// ClaimErr, when set, is returned by every ClaimDue call.
	ClaimErr error

	// Now is the clock used for due checks. Defaults to time.Now.
	Now func() time.Time
}

// NewMockJobStore creates an empty MockJobStore.
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		jobs: make(map[uuid.UUID]*domain.QueueJob),
		Now:  time.Now,
	}
}

var _ store.JobStore = (*MockJobStore)(nil)

// SetEnqueueErr sets EnqueueErr under the store's lock.
func (m *MockJobStore) SetEnqueueErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnqueueErr = err
}

// Enqueue implements store.JobStore.
func (m *MockJobStore) Enqueue(_ context.Context, job *domain.QueueJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	cp := *job
	m.jobs[job.ID] = &cp
	m.order = append(m.order, job.ID)
	return nil
}

// ClaimDue implements store.JobStore.
func (m *MockJobStore) ClaimDue(_ context.Context, limit int) ([]*domain.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}

	now := m.Now()
	var due []*domain.QueueJob
	for _, id := range m.order {
		job := m.jobs[id]
		if job.Status == domain.JobStatusPending && !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.QueueJob, 0, len(due))
	for _, job := range due {
		job.Status = domain.JobStatusProcessing
		job.UpdatedAt = now
		cp := *job
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

// MarkCompleted implements store.JobStore.
func (m *MockJobStore) MarkCompleted(_ context.Context, id uuid.UUID, attempts int) error {
	return m.update(id, func(job *domain.QueueJob) {
		job.Status = domain.JobStatusCompleted
		job.Attempts = attempts
	})
}

// MarkRetry implements store.JobStore.
func (m *MockJobStore) MarkRetry(_ context.Context, id uuid.UUID, attempts int, runAt time.Time, errMsg string) error {
	return m.update(id, func(job *domain.QueueJob) {
		job.Status = domain.JobStatusPending
		job.Attempts = attempts
		job.RunAt = runAt
		job.LastError = errMsg
	})
}

// MarkFailed implements store.JobStore.
func (m *MockJobStore) MarkFailed(_ context.Context, id uuid.UUID, attempts int, errMsg string) error {
	return m.update(id, func(job *domain.QueueJob) {
		job.Status = domain.JobStatusFailed
		job.Attempts = attempts
		job.LastError = errMsg
	})
}

// ResetStuck implements store.JobStore.
func (m *MockJobStore) ResetStuck(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.Now().Add(-olderThan)
	n := 0
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusProcessing && job.UpdatedAt.Before(cutoff) {
			job.Status = domain.JobStatusPending
			job.UpdatedAt = m.Now()
			n++
		}
	}
	return n, nil
}

// WithTx implements store.JobStore. The mock has no real transactions, so
// the same store is returned.
func (m *MockJobStore) WithTx(_ *sql.Tx) store.JobStore {
	return m
}

func (m *MockJobStore) update(id uuid.UUID, fn func(job *domain.QueueJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = m.Now()
	return nil
}

// Enqueued returns copies of every accepted job in enqueue order.
func (m *MockJobStore) Enqueued() []*domain.QueueJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.QueueJob, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.jobs[id]
		out = append(out, &cp)
	}
	return out
}

// Job returns a copy of the job with the given ID.
func (m *MockJobStore) Job(id uuid.UUID) (*domain.QueueJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// StatusPayloads decodes the payload of every task-status-update job.
func (m *MockJobStore) StatusPayloads() []domain.TaskStatusPayload {
	var out []domain.TaskStatusPayload
	for _, job := range m.Enqueued() {
		if job.Kind != domain.JobKindTaskStatusUpdate {
			continue
		}
		var p domain.TaskStatusPayload
		if err := json.Unmarshal(job.Payload, &p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Reset drops every job.
func (m *MockJobStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[uuid.UUID]*domain.QueueJob)
	m.order = nil
}

// bufferedJobStore collects enqueues made inside a mock transaction and
// hands them to the underlying store only on commit.
type bufferedJobStore struct {
	*MockJobStore
	pending []*domain.QueueJob
}

func (b *bufferedJobStore) Enqueue(_ context.Context, job *domain.QueueJob) error {
	b.MockJobStore.mu.Lock()
	err := b.MockJobStore.EnqueueErr
	b.MockJobStore.mu.Unlock()
	if err != nil {
		return err
	}
	cp := *job
	b.pending = append(b.pending, &cp)
	return nil
}

func (b *bufferedJobStore) WithTx(_ *sql.Tx) store.JobStore {
	return b
}

func (b *bufferedJobStore) flush() {
	b.MockJobStore.mu.Lock()
	for _, job := range b.pending {
		b.MockJobStore.jobs[job.ID] = job
		b.MockJobStore.order = append(b.MockJobStore.order, job.ID)
	}
	b.MockJobStore.mu.Unlock()
	b.pending = nil
}
