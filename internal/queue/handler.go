package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/domain"
)

// StatusUpdateHandler handles task-status-update jobs by logging the
// transition. Downstream side effects hook in here.
type StatusUpdateHandler struct {
	logger *slog.Logger
}

// NewStatusUpdateHandler creates a StatusUpdateHandler.
func NewStatusUpdateHandler(logger *slog.Logger) *StatusUpdateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusUpdateHandler{
		logger: logger.With(slog.String("component", "status_update_handler")),
	}
}

// Handle implements Handler.
func (h *StatusUpdateHandler) Handle(_ context.Context, job *domain.QueueJob) error {
	var payload domain.TaskStatusPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode task status payload: %w", err)
	}
	if payload.TaskID == "" || !payload.Status.IsValid() {
		return fmt.Errorf("%w: task status payload %s", domain.ErrInvalidFormat, string(job.Payload))
	}

	h.logger.Info("task status changed",
		slog.String("task_id", payload.TaskID),
		slog.String("status", string(payload.Status)),
		slog.String("job_id", job.ID.String()),
		slog.Int("attempt", job.Attempts+1))
	return nil
}
