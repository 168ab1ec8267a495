package movement

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-retail/meridian-stock/internal/catalog"
	"github.com/meridian-retail/meridian-stock/internal/ledger"
	"github.com/meridian-retail/meridian-stock/internal/shared"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// RepositoryPort abstracts the catalog repository for the engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, catalog.TxCatalog) error) error
}

// LocatorPort resolves line items to stock-bearing records.
type LocatorPort interface {
	Locate(ctx context.Context, tx catalog.TxCatalog, ref catalog.ItemRef) (catalog.StockBearing, error)
}

// AuditPort records movement batches.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReorderNotifier receives the fire-and-forget reorder scan after a sale.
type ReorderNotifier interface {
	ScanAfterSale(ctx context.Context, refs []catalog.ItemRef, canonicalWarehouse string)
}

// MetricsPort counts movement outcomes.
type MetricsPort interface {
	RecordMovement(kind, outcome string)
	RecordClamp()
}

// Config groups engine tuning knobs.
type Config struct {
	// MaxAttempts bounds optimistic retries per line on serialization
	// conflicts. Zero means 3.
	MaxAttempts int
	// Parallelism bounds concurrent line items per batch. Zero means 4.
	// Lines for the same item still serialize on the row locks.
	Parallelism int
}

// Engine orchestrates locate -> resolve -> apply for every movement kind.
// Each line item runs in its own transaction: a failure on one line never
// rolls back lines already applied, matching the per-line summary contract.
type Engine struct {
	logger   *slog.Logger
	repo     RepositoryPort
	resolver *warehouse.Resolver
	locator  LocatorPort
	ledger   *ledger.Ledger
	audit    AuditPort
	reorder  ReorderNotifier
	metrics  MetricsPort

	maxAttempts int
	parallelism int
}

// NewEngine builds the movement engine. audit, reorder and metrics may be nil.
func NewEngine(logger *slog.Logger, repo RepositoryPort, resolver *warehouse.Resolver, locator LocatorPort,
	ldg *ledger.Ledger, audit AuditPort, reorder ReorderNotifier, metrics MetricsPort, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Engine{
		logger:      logger,
		repo:        repo,
		resolver:    resolver,
		locator:     locator,
		ledger:      ldg,
		audit:       audit,
		reorder:     reorder,
		metrics:     metrics,
		maxAttempts: cfg.MaxAttempts,
		parallelism: cfg.Parallelism,
	}
}

// ApplySale subtracts each line's quantity from stock on hand at the given
// warehouse and recomputes available-for-sale. After the batch the reorder
// check runs with the same lines, fire-and-forget.
func (e *Engine) ApplySale(ctx context.Context, lines []LineItem, warehouseLabel string) Result {
	canonical := e.resolver.Canonicalize(warehouseLabel)
	now := time.Now().UTC()
	result := e.run(ctx, KindSale, lines, func(ctx context.Context, line LineItem) error {
		return e.applySaleLine(ctx, line, canonical, now, -1)
	})
	e.recordAudit(ctx, "SALE_APPLY", canonical, result)
	if e.reorder != nil && result.Processed > 0 {
		refs := make([]catalog.ItemRef, 0, len(lines))
		for _, line := range lines {
			refs = append(refs, line.Ref())
		}
		e.reorder.ScanAfterSale(ctx, refs, canonical)
	}
	return result
}

// ReverseSale is the exact inverse of ApplySale, used for invoice deletion
// and return/refund categories.
func (e *Engine) ReverseSale(ctx context.Context, lines []LineItem, warehouseLabel string) Result {
	canonical := e.resolver.Canonicalize(warehouseLabel)
	now := time.Now().UTC()
	result := e.run(ctx, KindSaleReversal, lines, func(ctx context.Context, line LineItem) error {
		return e.applySaleLine(ctx, line, canonical, now, +1)
	})
	e.recordAudit(ctx, "SALE_REVERSE", canonical, result)
	return result
}

func (e *Engine) applySaleLine(ctx context.Context, line LineItem, canonical string, now time.Time, sign float64) error {
	if !validQuantity(line.Quantity) {
		return ErrInvalidQuantity
	}
	return e.repo.WithTx(ctx, func(ctx context.Context, tx catalog.TxCatalog) error {
		entry, prevLabel, item, err := e.lockEntry(ctx, tx, line, canonical)
		if err != nil {
			return err
		}
		qty := sign * line.Quantity
		if sign < 0 && entry.StockOnHand < line.Quantity {
			e.noteClamp(item.Label(), canonical, entry.StockOnHand, line.Quantity)
		}
		// Snapshot before the delta so a freshly opened month sees the
		// pre-movement balance as its opening stock.
		e.ledger.RecordSale(entry, now, -qty)
		if err := e.ledger.ApplyDelta(entry, canonical, ledger.Delta{StockOnHand: qty, PhysicalStockOnHand: qty}); err != nil {
			return err
		}
		e.ledger.RecomputeAvailable(entry)
		return tx.SaveStockEntry(ctx, item.Key().ItemID, prevLabel, *entry)
	})
}

// ApplyPurchaseReceive adds the delta between each line's new and previously
// recorded received quantity. Editing a receive from 5 to 8 adds 3; saving it
// unchanged adds nothing, which is what makes receive edits idempotent.
func (e *Engine) ApplyPurchaseReceive(ctx context.Context, lines []LineItem, warehouseLabel string, prev PrevReceived) Result {
	canonical := e.resolver.Canonicalize(warehouseLabel)
	now := time.Now().UTC()
	result := e.run(ctx, KindPurchaseReceive, lines, func(ctx context.Context, line LineItem) error {
		if !validReceived(line.Quantity) {
			return ErrInvalidQuantity
		}
		delta := line.Quantity - prev[LineKey(line)]
		if delta == 0 {
			return nil
		}
		return e.repo.WithTx(ctx, func(ctx context.Context, tx catalog.TxCatalog) error {
			entry, prevLabel, item, err := e.lockEntry(ctx, tx, line, canonical)
			if err != nil {
				return err
			}
			if delta < 0 && entry.StockOnHand < -delta {
				e.noteClamp(item.Label(), canonical, entry.StockOnHand, -delta)
			}
			e.ledger.RecordPurchase(entry, now, delta)
			if err := e.ledger.ApplyDelta(entry, canonical, ledger.Delta{StockOnHand: delta, PhysicalStockOnHand: delta}); err != nil {
				return err
			}
			e.ledger.RecomputeAvailable(entry)
			return tx.SaveStockEntry(ctx, item.Key().ItemID, prevLabel, *entry)
		})
	})
	e.recordAudit(ctx, "PURCHASE_RECEIVE", canonical, result)
	return result
}

// ApplyTransfer moves each line's quantity from the source warehouse to the
// destination. Source and destination are applied in that fixed order inside
// one transaction per line, so a destination failure rolls the source
// decrement back and the line is reported failed rather than left
// half-applied.
func (e *Engine) ApplyTransfer(ctx context.Context, lines []LineItem, sourceLabel, destLabel string) Result {
	source := e.resolver.Canonicalize(sourceLabel)
	dest := e.resolver.Canonicalize(destLabel)
	if e.resolver.Same(source, dest) {
		result := Result{}
		for _, line := range lines {
			result.Skipped = append(result.Skipped, SkippedLine{Line: line, Reason: ErrSameWarehouse.Error()})
			e.noteOutcome(KindTransfer, "skipped")
		}
		return result
	}
	result := e.run(ctx, KindTransfer, lines, func(ctx context.Context, line LineItem) error {
		return e.applyTransferLine(ctx, line, source, dest)
	})
	e.recordAudit(ctx, "TRANSFER_APPLY", source+" -> "+dest, result)
	return result
}

// ReverseTransfer puts a transfer back: quantities return to the source and
// leave the destination. Used when a transferred order is deleted.
func (e *Engine) ReverseTransfer(ctx context.Context, lines []LineItem, sourceLabel, destLabel string) Result {
	source := e.resolver.Canonicalize(sourceLabel)
	dest := e.resolver.Canonicalize(destLabel)
	if e.resolver.Same(source, dest) {
		result := Result{}
		for _, line := range lines {
			result.Skipped = append(result.Skipped, SkippedLine{Line: line, Reason: ErrSameWarehouse.Error()})
			e.noteOutcome(KindTransferReverse, "skipped")
		}
		return result
	}
	result := e.run(ctx, KindTransferReverse, lines, func(ctx context.Context, line LineItem) error {
		return e.applyTransferLine(ctx, line, dest, source)
	})
	e.recordAudit(ctx, "TRANSFER_REVERSE", dest+" -> "+source, result)
	return result
}

func (e *Engine) applyTransferLine(ctx context.Context, line LineItem, source, dest string) error {
	if !validQuantity(line.Quantity) {
		return ErrInvalidQuantity
	}
	return e.repo.WithTx(ctx, func(ctx context.Context, tx catalog.TxCatalog) error {
		item, err := e.locator.Locate(ctx, tx, line.Ref())
		if err != nil {
			return err
		}
		itemID := item.Key().ItemID
		entries, err := tx.LockStockEntries(ctx, itemID)
		if err != nil {
			return err
		}

		// Source decrement first so a mid-failure is predictable.
		entries, srcIdx, err := e.ledger.GetOrCreate(entries, source)
		if err != nil {
			return err
		}
		srcPrev := entries[srcIdx].Warehouse
		if entries[srcIdx].StockOnHand < line.Quantity {
			e.noteClamp(item.Label(), source, entries[srcIdx].StockOnHand, line.Quantity)
		}
		if err := e.ledger.ApplyDelta(&entries[srcIdx], source, ledger.Delta{StockOnHand: -line.Quantity, PhysicalStockOnHand: -line.Quantity}); err != nil {
			return err
		}
		e.ledger.RecomputeAvailable(&entries[srcIdx])
		if err := tx.SaveStockEntry(ctx, itemID, srcPrev, entries[srcIdx]); err != nil {
			return err
		}

		entries, dstIdx, err := e.ledger.GetOrCreate(entries, dest)
		if err != nil {
			return err
		}
		dstPrev := entries[dstIdx].Warehouse
		if err := e.ledger.ApplyDelta(&entries[dstIdx], dest, ledger.Delta{StockOnHand: line.Quantity, PhysicalStockOnHand: line.Quantity}); err != nil {
			return err
		}
		e.ledger.RecomputeAvailable(&entries[dstIdx])
		return tx.SaveStockEntry(ctx, itemID, dstPrev, entries[dstIdx])
	})
}

// lockEntry runs the locate-then-lock sequence shared by the single-warehouse
// movement kinds. It returns the entry to mutate, the label its row was
// loaded under and the located item.
func (e *Engine) lockEntry(ctx context.Context, tx catalog.TxCatalog, line LineItem, canonical string) (*ledger.WarehouseStockEntry, string, catalog.StockBearing, error) {
	item, err := e.locator.Locate(ctx, tx, line.Ref())
	if err != nil {
		return nil, "", nil, err
	}
	entries, err := tx.LockStockEntries(ctx, item.Key().ItemID)
	if err != nil {
		return nil, "", nil, err
	}
	entries, idx, err := e.ledger.GetOrCreate(entries, canonical)
	if err != nil {
		return nil, "", nil, err
	}
	return &entries[idx], entries[idx].Warehouse, item, nil
}

// run executes fn once per line with bounded parallelism and bounded conflict
// retries, collecting the per-line summary. Failures are accumulated, never
// propagated: one bad line must not abort an invoice, receive or transfer.
func (e *Engine) run(ctx context.Context, kind string, lines []LineItem, fn func(context.Context, LineItem) error) Result {
	var (
		mu     sync.Mutex
		result Result
	)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.parallelism)
	for _, line := range lines {
		line := line
		group.Go(func() error {
			err := e.withRetry(ctx, func() error { return fn(ctx, line) })
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Skipped = append(result.Skipped, SkippedLine{Line: line, Reason: skipReason(err)})
				e.noteOutcome(kind, "skipped")
				e.logger.Warn("movement line skipped",
					slog.String("kind", kind),
					slog.String("item", line.Ref().String()),
					slog.String("reason", skipReason(err)),
					slog.Any("error", err))
				return nil
			}
			result.Processed++
			e.noteOutcome(kind, "processed")
			return nil
		})
	}
	_ = group.Wait()
	return result
}

func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
	}
	if retryable(err) {
		return shared.ErrConflict
	}
	return err
}

// retryable reports serialization and deadlock failures from the repeatable
// read transactions.
func retryable(err error) bool {
	if errors.Is(err, shared.ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func (e *Engine) recordAudit(ctx context.Context, action, scope string, result Result) {
	if e.audit == nil {
		return
	}
	_ = e.audit.Record(ctx, shared.AuditLog{
		ActorID:  "system",
		Action:   action,
		Entity:   "stock_movement",
		EntityID: scope,
		Meta: map[string]any{
			"processed": result.Processed,
			"skipped":   len(result.Skipped),
		},
	})
}

func (e *Engine) noteOutcome(kind, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordMovement(kind, outcome)
	}
}

// noteClamp logs an apply that will floor at zero. Clamping is documented
// behavior for oversold or untracked stock, so it is observable but not an
// error.
func (e *Engine) noteClamp(item, warehouseLabel string, have, want float64) {
	if e.metrics != nil {
		e.metrics.RecordClamp()
	}
	e.logger.Info("stock clamped at zero",
		slog.String("item", item),
		slog.String("warehouse", warehouseLabel),
		slog.Float64("on_hand", have),
		slog.Float64("requested", want))
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		return "item not found"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid quantity"
	case errors.Is(err, ledger.ErrNoWarehouse):
		return "warehouse label required"
	case errors.Is(err, shared.ErrConflict):
		return "concurrent update conflict"
	default:
		return err.Error()
	}
}

func validQuantity(q float64) bool {
	return q > 0 && !math.IsNaN(q) && !math.IsInf(q, 0)
}

// validReceived allows zero: a receive line may legitimately record nothing
// received yet.
func validReceived(q float64) bool {
	return q >= 0 && !math.IsNaN(q) && !math.IsInf(q, 0)
}
