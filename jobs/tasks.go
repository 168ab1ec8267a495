// Package jobs carries the asynq queue: the post-sale reorder scan, alert
// mail dispatch and periodic maintenance.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every meridian task runs on.
	QueueDefault = "default"
	// TaskTypeSendEmail dispatches an alert email to the configured recipients.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeReorderScan checks sold items against their reorder points.
	TaskTypeReorderScan = "reorder:scan"
	// TaskTypeMaintenanceCleanup prunes aged idempotency keys.
	TaskTypeMaintenanceCleanup = "maintenance:cleanup"
)

// SendEmailPayload is one outbound mail to a recipient list.
type SendEmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.To) == 0 {
		return nil
	}
	// Placeholder: integrate with the SMTP relay once provisioned.
	slog.Info("send email",
		slog.String("to", strings.Join(payload.To, ",")),
		slog.String("subject", payload.Subject))
	return nil
}
