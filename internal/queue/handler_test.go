package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStatusUpdateHandler(t *testing.T) {
	t.Parallel()

	h := NewStatusUpdateHandler(testLogger())
	ctx := context.Background()

	payload, _ := json.Marshal(domain.TaskStatusPayload{TaskID: uuid.NewString(), Status: domain.TaskStatusCompleted})
	assert.NoError(t, h.Handle(ctx, &domain.QueueJob{Payload: payload}))

	assert.Error(t, h.Handle(ctx, &domain.QueueJob{Payload: json.RawMessage(`not json`)}))
	assert.ErrorIs(t,
		h.Handle(ctx, &domain.QueueJob{Payload: json.RawMessage(`{"taskId":"x","status":"DONE"}`)}),
		domain.ErrInvalidFormat)
}
