package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/meridian-retail/meridian-stock/internal/catalog"
	"github.com/meridian-retail/meridian-stock/internal/reorder"
)

// ReorderScanPayload carries the sold line references and the warehouse they
// sold from.
type ReorderScanPayload struct {
	Warehouse string       `json:"warehouse"`
	Refs      []RefPayload `json:"refs"`
}

// RefPayload is the wire form of one item reference.
type RefPayload struct {
	ItemID  string `json:"item_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
	SKU     string `json:"sku,omitempty"`
	Name    string `json:"name,omitempty"`
}

// NewReorderScanTask constructs an Asynq task for a post-sale reorder check.
func NewReorderScanTask(refs []catalog.ItemRef, warehouse string) (*asynq.Task, error) {
	payload := ReorderScanPayload{Warehouse: warehouse, Refs: make([]RefPayload, 0, len(refs))}
	for _, ref := range refs {
		wire := RefPayload{SKU: ref.SKU, Name: ref.Name}
		if ref.ItemID != uuid.Nil {
			wire.ItemID = ref.ItemID.String()
		}
		if ref.GroupID != uuid.Nil {
			wire.GroupID = ref.GroupID.String()
		}
		payload.Refs = append(payload.Refs, wire)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReorderScan, data), nil
}

// ScanHandler processes TaskTypeReorderScan tasks with the reorder scanner.
type ScanHandler struct {
	scanner *reorder.Scanner
	metrics *Metrics
}

// NewScanHandler constructs a ScanHandler. metrics may be nil.
func NewScanHandler(scanner *reorder.Scanner, metrics *Metrics) *ScanHandler {
	return &ScanHandler{scanner: scanner, metrics: metrics}
}

// Handle runs the scan for one payload.
func (h *ScanHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	refs := make([]catalog.ItemRef, 0, len(payload.Refs))
	for _, wire := range payload.Refs {
		ref := catalog.ItemRef{SKU: wire.SKU, Name: wire.Name}
		if wire.ItemID != "" {
			id, err := uuid.Parse(wire.ItemID)
			if err != nil {
				return asynq.SkipRetry
			}
			ref.ItemID = id
		}
		if wire.GroupID != "" {
			id, err := uuid.Parse(wire.GroupID)
			if err != nil {
				return asynq.SkipRetry
			}
			ref.GroupID = id
		}
		refs = append(refs, ref)
	}
	tracker := h.metrics.Track("reorder_scan")
	return tracker.End(h.scanner.Scan(ctx, refs, payload.Warehouse))
}

// Notifier enqueues reorder scans after sales. It satisfies the movement
// engine's notifier port; enqueue failures are logged and dropped so the sale
// they follow is never affected.
type Notifier struct {
	logger *slog.Logger
	client *Client
}

// NewNotifier constructs a Notifier.
func NewNotifier(logger *slog.Logger, client *Client) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger, client: client}
}

// ScanAfterSale enqueues the reorder scan for the sold items.
func (n *Notifier) ScanAfterSale(ctx context.Context, refs []catalog.ItemRef, canonicalWarehouse string) {
	if n == nil || n.client == nil || len(refs) == 0 {
		return
	}
	task, err := NewReorderScanTask(refs, canonicalWarehouse)
	if err != nil {
		n.logger.Warn("build reorder scan task", slog.Any("error", err))
		return
	}
	if _, err := n.client.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		n.logger.Warn("enqueue reorder scan", slog.String("warehouse", canonicalWarehouse), slog.Any("error", err))
	}
}

// Mailer dispatches reorder alert notifications through the mail queue.
type Mailer struct {
	client     *Client
	recipients []string
}

// NewMailer constructs a Mailer for the configured recipients.
func NewMailer(client *Client, recipients []string) *Mailer {
	return &Mailer{client: client, recipients: recipients}
}

// SendReorderAlert enqueues one alert email to the configured recipients.
func (m *Mailer) SendReorderAlert(ctx context.Context, alert reorder.Alert) error {
	if m == nil || m.client == nil || len(m.recipients) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Reorder alert: %s at %s", alert.ItemName, alert.Warehouse)
	body := fmt.Sprintf("Available for sale is %.2f, at or below the reorder point of %.2f.",
		alert.AvailableForSale, alert.ReorderLevel)
	_, err := m.client.EnqueueSendEmail(ctx, SendEmailPayload{To: m.recipients, Subject: subject, Body: body})
	return err
}
