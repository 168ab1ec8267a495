package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-retail/meridian-stock/internal/shared"
)

// MaintenancePayload carries the retention window for cleanup runs.
type MaintenancePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewMaintenanceTask constructs the periodic cleanup task.
func NewMaintenanceTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(MaintenancePayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMaintenanceCleanup, data, asynq.Queue(QueueDefault)), nil
}

// MaintenanceHandler prunes aged idempotency keys. Keys only guard recent
// triggers; anything older than the retention window is noise.
type MaintenanceHandler struct {
	idem    *shared.IdempotencyStore
	metrics *Metrics
}

// NewMaintenanceHandler constructs a MaintenanceHandler. metrics may be nil.
func NewMaintenanceHandler(idem *shared.IdempotencyStore, metrics *Metrics) *MaintenanceHandler {
	return &MaintenanceHandler{idem: idem, metrics: metrics}
}

// Handle runs one cleanup pass.
func (h *MaintenanceHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload MaintenancePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	tracker := h.metrics.Track("maintenance_cleanup")
	return tracker.End(h.idem.Cleanup(ctx, retention))
}
