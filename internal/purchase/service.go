package purchase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/movement"
	"github.com/meridian-retail/meridian-stock/internal/shared"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// RepositoryPort abstracts receive persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, receive *PurchaseReceive) error
	Get(ctx context.Context, id uuid.UUID) (*PurchaseReceive, error)
	List(ctx context.Context, limit, offset int) ([]PurchaseReceive, error)
	WithTx(ctx context.Context, fn func(context.Context, TxPurchase) error) error
}

// EnginePort is the movement engine surface the receive lifecycle drives.
type EnginePort interface {
	ApplyPurchaseReceive(ctx context.Context, lines []movement.LineItem, warehouseLabel string, prev movement.PrevReceived) movement.Result
}

// AuditPort records lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the purchase receive lifecycle. Every save reconciles the
// ledger against the per-line applied quantities stored with the document:
// the engine gets the delta, the document remembers what reached the ledger.
// That stored baseline is what makes re-saves and edits idempotent.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	resolver *warehouse.Resolver
	engine   EnginePort
	audit    AuditPort
}

// NewService constructs the purchase service. audit may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, resolver *warehouse.Resolver, engine EnginePort, audit AuditPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, resolver: resolver, engine: engine, audit: audit}
}

// CreateInput carries a new purchase receive.
type CreateInput struct {
	Number    string
	Date      time.Time
	Warehouse string
	Status    Status
	Items     []Item
}

// Create inserts a new receive. A receive created directly in received status
// posts its quantities to the ledger in the same call.
func (s *Service) Create(ctx context.Context, in CreateInput) (*ApplyResult, error) {
	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	items := append([]Item(nil), in.Items...)
	for i := range items {
		items[i].AppliedReceived = 0
	}
	receive := &PurchaseReceive{
		ID:        uuid.New(),
		Number:    in.Number,
		Date:      in.Date,
		Warehouse: s.resolver.Canonicalize(in.Warehouse),
		Status:    status,
		Items:     items,
	}
	if err := s.repo.Create(ctx, receive); err != nil {
		return nil, err
	}
	result := &ApplyResult{Receive: receive}
	if status != StatusReceived {
		return result, nil
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPurchase) error {
		stored, err := tx.GetForUpdate(ctx, receive.ID)
		if err != nil {
			return err
		}
		result.Summary, result.Moved = s.reconcile(ctx, stored, items, status)
		stored.Items = items
		result.Receive = stored
		return tx.ReplaceItems(ctx, receive.ID, items)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "PURCHASE_SAVE", result)
	return result, nil
}

// UpdateInput carries editable receive fields.
type UpdateInput struct {
	Number    string
	Date      time.Time
	Warehouse string
	Status    Status
	Items     []Item
}

// Update replaces the receive and reconciles the ledger with the edit:
// raised received quantities add their delta, lowered ones take it back,
// removed lines and a move back to draft reverse what they had applied.
// Changing the warehouse reverses everything at the old one first.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*ApplyResult, error) {
	if !in.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPurchase) error {
		receive, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		canonical := s.resolver.Canonicalize(in.Warehouse)
		if receive.applied() && !s.resolver.Same(receive.Warehouse, canonical) {
			summary, _ := s.reconcile(ctx, receive, nil, StatusDraft)
			mergeSummary(&result.Summary, summary)
			for i := range receive.Items {
				receive.Items[i].AppliedReceived = 0
			}
		}
		receive.Warehouse = canonical

		items := append([]Item(nil), in.Items...)
		summary, moved := s.reconcile(ctx, receive, items, in.Status)
		mergeSummary(&result.Summary, summary)
		result.Moved = result.Moved || moved

		receive.Number = in.Number
		receive.Date = in.Date
		receive.Status = in.Status
		receive.Items = items
		if err := tx.UpdateReceive(ctx, receive); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, id, items); err != nil {
			return err
		}
		result.Receive = receive
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "PURCHASE_SAVE", &result)
	return &result, nil
}

// Get loads one receive.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PurchaseReceive, error) {
	return s.repo.Get(ctx, id)
}

// List returns receives newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]PurchaseReceive, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset)
}

// Delete removes the receive, reversing any applied quantities first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*ApplyResult, error) {
	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxPurchase) error {
		receive, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if receive.applied() {
			result.Summary, result.Moved = s.reconcile(ctx, receive, nil, StatusDraft)
		}
		result.Receive = receive
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "PURCHASE_DELETE", &result)
	return &result, nil
}

// reconcile drives the engine with the delta between what the document had
// applied and what it should have applied now. items holds the desired lines
// (nil reverses everything); status received targets each line's Received,
// anything else targets zero. On return the applied quantities in items
// reflect what actually reached the ledger: skipped lines keep their old
// baseline so the next save retries their delta.
func (s *Service) reconcile(ctx context.Context, receive *PurchaseReceive, items []Item, status Status) (movement.Result, bool) {
	prev := movement.PrevReceived{}
	for _, item := range receive.Items {
		prev[movement.LineKey(item.line())] = item.AppliedReceived
	}
	target := func(item Item) float64 {
		if status == StatusReceived {
			return item.Received
		}
		return 0
	}

	var lines []movement.LineItem
	seen := make(map[string]bool, len(items))
	for i := range items {
		line := items[i].line()
		line.Quantity = target(items[i])
		seen[movement.LineKey(line)] = true
		lines = append(lines, line)
	}
	// Lines removed by the edit give back what they had applied.
	for _, item := range receive.Items {
		line := item.line()
		if seen[movement.LineKey(line)] || item.AppliedReceived == 0 {
			continue
		}
		line.Quantity = 0
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return movement.Result{}, false
	}

	summary := s.engine.ApplyPurchaseReceive(ctx, lines, receive.Warehouse, prev)
	skipped := make(map[string]bool, len(summary.Skipped))
	for _, sk := range summary.Skipped {
		skipped[movement.LineKey(sk.Line)] = true
	}
	for i := range items {
		key := movement.LineKey(items[i].line())
		if skipped[key] {
			items[i].AppliedReceived = prev[key]
			continue
		}
		items[i].AppliedReceived = target(items[i])
	}
	return summary, true
}

func mergeSummary(dst *movement.Result, src movement.Result) {
	dst.Processed += src.Processed
	dst.Skipped = append(dst.Skipped, src.Skipped...)
}

func (s *Service) recordAudit(ctx context.Context, action string, result *ApplyResult) {
	if s.audit == nil || result.Receive == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  "system",
		Action:   action,
		Entity:   "purchase_receive",
		EntityID: result.Receive.ID.String(),
		Meta: map[string]any{
			"status":    string(result.Receive.Status),
			"moved":     result.Moved,
			"processed": result.Summary.Processed,
			"skipped":   len(result.Summary.Skipped),
		},
	})
}
