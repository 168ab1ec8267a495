package sales

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/movement"
	"github.com/meridian-retail/meridian-stock/internal/shared"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// RepositoryPort abstracts invoice persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, invoice *Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, limit, offset int) ([]Invoice, error)
	WithTx(ctx context.Context, fn func(context.Context, TxSales) error) error
}

// EnginePort is the movement engine surface invoices drive.
type EnginePort interface {
	ApplySale(ctx context.Context, lines []movement.LineItem, warehouseLabel string) movement.Result
	ReverseSale(ctx context.Context, lines []movement.LineItem, warehouseLabel string) movement.Result
}

// AuditPort records lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Config carries sales settings.
type Config struct {
	// DefaultWarehouses maps a user role to the warehouse its invoices sell
	// from when the invoice names none. Data-driven replacement for the old
	// per-account special case.
	DefaultWarehouses map[string]string
}

// Service owns the sales invoice lifecycle as a stock trigger: apply on
// creation, reverse on deletion, with return and refund categories flowing
// the opposite way.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	resolver *warehouse.Resolver
	engine   EnginePort
	audit    AuditPort
	defaults map[string]string
}

// NewService constructs the sales service. audit may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, resolver *warehouse.Resolver, engine EnginePort,
	audit AuditPort, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		resolver: resolver,
		engine:   engine,
		audit:    audit,
		defaults: cfg.DefaultWarehouses,
	}
}

// CreateInput carries a new invoice.
type CreateInput struct {
	Number    string
	Date      time.Time
	Role      string
	Warehouse string
	Category  Category
	Items     []Item
}

// Create stores the invoice and applies its stock movement. Sales subtract,
// returns and refunds add back. The warehouse falls back to the creating
// role's configured default.
func (s *Service) Create(ctx context.Context, in CreateInput) (*ApplyResult, error) {
	category := in.Category
	if category == "" {
		category = CategorySale
	}
	if !category.IsValid() {
		return nil, ErrInvalidCategory
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	label, err := s.warehouseFor(in.Role, in.Warehouse)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	invoice := &Invoice{
		ID:        uuid.New(),
		Number:    in.Number,
		Date:      in.Date,
		Role:      in.Role,
		Warehouse: label,
		Category:  category,
		AppliedAt: &now,
		Items:     in.Items,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, err
	}
	result := &ApplyResult{Invoice: invoice, Moved: true}
	if category.outbound() {
		result.Summary = s.engine.ApplySale(ctx, invoice.lines(), label)
	} else {
		result.Summary = s.engine.ReverseSale(ctx, invoice.lines(), label)
	}
	s.recordAudit(ctx, "INVOICE_APPLY", result)
	return result, nil
}

// Get loads one invoice.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset)
}

// Delete removes the invoice, reversing its stock movement first. Reversal
// runs at the warehouse stored on the invoice, under the row lock, and only
// when the movement was actually applied.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*ApplyResult, error) {
	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxSales) error {
		invoice, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if invoice.AppliedAt != nil {
			result.Moved = true
			if invoice.Category.outbound() {
				result.Summary = s.engine.ReverseSale(ctx, invoice.lines(), invoice.Warehouse)
			} else {
				result.Summary = s.engine.ApplySale(ctx, invoice.lines(), invoice.Warehouse)
			}
		}
		result.Invoice = invoice
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "INVOICE_DELETE", &result)
	return &result, nil
}

// warehouseFor resolves the selling warehouse: the explicit label when given,
// else the role's configured default.
func (s *Service) warehouseFor(role, label string) (string, error) {
	if label == "" {
		label = s.defaults[role]
	}
	if label == "" {
		return "", ErrNoWarehouse
	}
	return s.resolver.Canonicalize(label), nil
}

func (s *Service) recordAudit(ctx context.Context, action string, result *ApplyResult) {
	if s.audit == nil || result.Invoice == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  "system",
		Action:   action,
		Entity:   "sales_invoice",
		EntityID: result.Invoice.ID.String(),
		Meta: map[string]any{
			"category":  string(result.Invoice.Category),
			"warehouse": result.Invoice.Warehouse,
			"moved":     result.Moved,
			"processed": result.Summary.Processed,
			"skipped":   len(result.Summary.Skipped),
		},
	})
}
