package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/mocks"
	"github.com/phrazzld/taskflow-api/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_EnqueueTaskStatus(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewMockJobStore()
	client := queue.NewClient(jobs, nil)
	taskID := uuid.New()

	job, err := client.EnqueueTaskStatus(context.Background(), taskID, domain.TaskStatusInProgress)
	require.NoError(t, err)

	stored := jobs.Enqueued()
	require.Len(t, stored, 1)
	assert.Equal(t, job.ID, stored[0].ID)
	assert.Equal(t, domain.JobKindTaskStatusUpdate, stored[0].Kind)
	assert.Equal(t, domain.JobStatusPending, stored[0].Status)
	assert.Equal(t, 3, stored[0].MaxAttempts)
	assert.Equal(t, domain.BackoffExponential, stored[0].Backoff)
	assert.Equal(t, time.Second, stored[0].BackoffBase)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(stored[0].Payload, &payload))
	assert.Equal(t, map[string]any{"taskId": taskID.String(), "status": "IN_PROGRESS"}, payload)
}

func TestClient_EnqueueFailurePropagates(t *testing.T) {
	t.Parallel()

	jobs := mocks.NewMockJobStore()
	brokerDown := errors.New("broker unreachable")
	jobs.SetEnqueueErr(brokerDown)
	client := queue.NewClient(jobs, nil)

	job, err := client.EnqueueTaskStatus(context.Background(), uuid.New(), domain.TaskStatusPending)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, queue.ErrEnqueueFailed)
	assert.ErrorIs(t, err, brokerDown)
	assert.Empty(t, jobs.Enqueued())
}

func TestClient_EnqueueRejectsBadInput(t *testing.T) {
	t.Parallel()

	client := queue.NewClient(mocks.NewMockJobStore(), nil)
	ctx := context.Background()

	_, err := client.Enqueue(ctx, "", map[string]string{}, domain.DefaultTaskRetryPolicy())
	assert.ErrorIs(t, err, queue.ErrEnqueueFailed)
	assert.ErrorIs(t, err, domain.ErrEmptyJobKind)

	_, err = client.Enqueue(ctx, "kind", make(chan int), domain.DefaultTaskRetryPolicy())
	assert.ErrorIs(t, err, queue.ErrEnqueueFailed)

	_, err = client.Enqueue(ctx, "kind", nil, domain.RetryPolicy{})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxAttempts)
}

func TestClient_WithJobs(t *testing.T) {
	t.Parallel()

	primary := mocks.NewMockJobStore()
	other := mocks.NewMockJobStore()
	client := queue.NewClient(primary, nil)

	_, err := client.WithJobs(other).EnqueueTaskStatus(context.Background(), uuid.New(), domain.TaskStatusPending)
	require.NoError(t, err)

	assert.Empty(t, primary.Enqueued())
	assert.Len(t, other.Enqueued(), 1)
}
