package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/movement"
	"github.com/meridian-retail/meridian-stock/internal/shared"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// RepositoryPort abstracts order persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, order *TransferOrder) error
	Get(ctx context.Context, id uuid.UUID) (*TransferOrder, error)
	List(ctx context.Context, limit, offset int) ([]TransferOrder, error)
	WithTx(ctx context.Context, fn func(context.Context, TxTransfer) error) error
}

// EnginePort is the movement engine surface the state machine drives.
type EnginePort interface {
	ApplyTransfer(ctx context.Context, lines []movement.LineItem, sourceLabel, destLabel string) movement.Result
	ReverseTransfer(ctx context.Context, lines []movement.LineItem, sourceLabel, destLabel string) movement.Result
}

// IdempotencyPort is the second guard behind the locked status read.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the transfer order lifecycle. Status transitions run under the
// order's row lock so two concurrent "mark transferred" requests serialize,
// and AppliedAt plus the idempotency key make the movement fire at most once
// no matter how the status is edited afterwards.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	resolver *warehouse.Resolver
	engine   EnginePort
	idem     IdempotencyPort
	audit    AuditPort
}

// NewService constructs the transfer service. idem and audit may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, resolver *warehouse.Resolver, engine EnginePort,
	idem IdempotencyPort, audit AuditPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, resolver: resolver, engine: engine, idem: idem, audit: audit}
}

// CreateInput carries a new transfer order.
type CreateInput struct {
	Number               string
	Date                 time.Time
	SourceWarehouse      string
	DestinationWarehouse string
	Status               Status
	Items                []Item
}

// Create inserts a new order in draft or in_transit. An order is never born
// transferred; moving stock goes through Transition so the exactly-once gate
// has a single entrance.
func (s *Service) Create(ctx context.Context, in CreateInput) (*TransferOrder, error) {
	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if status == StatusTransferred {
		return nil, ErrInvalidState
	}
	order := &TransferOrder{
		ID:                   uuid.New(),
		Number:               in.Number,
		Date:                 in.Date,
		SourceWarehouse:      s.resolver.Canonicalize(in.SourceWarehouse),
		DestinationWarehouse: s.resolver.Canonicalize(in.DestinationWarehouse),
		Status:               status,
		Items:                in.Items,
	}
	if err := s.validateOrder(order); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateInput carries editable order fields.
type UpdateInput struct {
	Number               string
	Date                 time.Time
	SourceWarehouse      string
	DestinationWarehouse string
	Items                []Item
}

// Update replaces the order's metadata and items. Transferred orders are
// frozen: the movement already happened against the stored endpoints and
// quantities, so edits must go through delete-and-recreate.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*TransferOrder, error) {
	var updated *TransferOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxTransfer) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanEditItems() {
			return ErrInvalidState
		}
		order.Number = in.Number
		order.Date = in.Date
		order.SourceWarehouse = s.resolver.Canonicalize(in.SourceWarehouse)
		order.DestinationWarehouse = s.resolver.Canonicalize(in.DestinationWarehouse)
		order.Items = in.Items
		if err := s.validateOrder(order); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, id, order.Items); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*TransferOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]TransferOrder, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset)
}

// Transition moves the order to newStatus. Moving into draft or in_transit
// only updates metadata. Moving into transferred fires the stock movement
// exactly once, gated on the status and AppliedAt read under the row lock;
// resaving an already transferred order refuses to re-apply.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, newStatus Status) (*TransitionResult, error) {
	if !newStatus.IsValid() {
		return nil, ErrInvalidStatus
	}
	var result TransitionResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxTransfer) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if newStatus != StatusTransferred {
			if err := tx.SetStatus(ctx, id, newStatus, nil); err != nil {
				return err
			}
			order.Status = newStatus
			result.Order = order
			return nil
		}

		if order.Status == StatusTransferred || order.Applied() {
			return ErrAlreadyTransferred
		}
		if err := s.claim(ctx, id); err != nil {
			return err
		}
		summary := s.engine.ApplyTransfer(ctx, order.lines(), order.SourceWarehouse, order.DestinationWarehouse)
		now := time.Now().UTC()
		if err := tx.SetStatus(ctx, id, StatusTransferred, &now); err != nil {
			// The movement lines already committed in their own
			// transactions; surface loudly instead of retrying into a
			// double apply.
			s.logger.Error("transfer applied but status update failed",
				slog.String("order_id", id.String()), slog.Any("error", err))
			return err
		}
		order.Status = StatusTransferred
		order.AppliedAt = &now
		result.Order = order
		result.Moved = true
		result.Summary = summary
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "TRANSFER_TRANSITION", result)
	return &result, nil
}

// Delete removes the order. A transferred order is reversed first: the
// quantities go back to the source and leave the destination, then the record
// goes away with its idempotency claim, so a recreated order may transfer
// again.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*TransitionResult, error) {
	var result TransitionResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxTransfer) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Applied() {
			result.Moved = true
			result.Summary = s.engine.ReverseTransfer(ctx, order.lines(), order.SourceWarehouse, order.DestinationWarehouse)
		}
		result.Order = order
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if s.idem != nil {
		if err := s.idem.Delete(ctx, claimKey(id)); err != nil {
			s.logger.Warn("release transfer idempotency key", slog.String("order_id", id.String()), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, "TRANSFER_DELETE", result)
	return &result, nil
}

func (s *Service) validateOrder(order *TransferOrder) error {
	if len(order.Items) == 0 {
		return ErrNoItems
	}
	if s.resolver.Same(order.SourceWarehouse, order.DestinationWarehouse) {
		return ErrSameWarehouse
	}
	return nil
}

// claim takes the idempotency key for this order's movement. The status check
// under the row lock is the primary gate; the key catches anything that slips
// past it, such as a restore of an old database row.
func (s *Service) claim(ctx context.Context, id uuid.UUID) error {
	if s.idem == nil {
		return nil
	}
	err := s.idem.CheckAndInsert(ctx, claimKey(id), "transfer")
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		return ErrAlreadyTransferred
	}
	return err
}

func claimKey(id uuid.UUID) string {
	return "transfer:" + id.String()
}

func (s *Service) recordAudit(ctx context.Context, action string, result TransitionResult) {
	if s.audit == nil || result.Order == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  "system",
		Action:   action,
		Entity:   "transfer_order",
		EntityID: result.Order.ID.String(),
		Meta: map[string]any{
			"status":    string(result.Order.Status),
			"moved":     result.Moved,
			"processed": result.Summary.Processed,
			"skipped":   len(result.Summary.Skipped),
		},
	})
}
