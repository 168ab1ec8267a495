package ledger

import (
	"time"

	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// Ledger applies quantity movements to an item's stock entries. It never
// matches warehouses by exact string equality; the resolver decides identity
// so that legacy label variants keep pointing at one entry.
type Ledger struct {
	resolver       *warehouse.Resolver
	honorCommitted bool
}

// Config groups ledger options.
type Config struct {
	// HonorCommittedStock switches availableForSale to
	// max(0, stockOnHand-committedStock) instead of mirroring stockOnHand.
	HonorCommittedStock bool
}

// New builds a Ledger around the given resolver.
func New(resolver *warehouse.Resolver, cfg Config) *Ledger {
	return &Ledger{resolver: resolver, honorCommitted: cfg.HonorCommittedStock}
}

// GetOrCreate returns the index of the entry matching the canonical warehouse
// within entries, appending a zero-valued entry when none matches. The
// returned slice must replace the caller's copy. Matching goes through
// Resolver.Matches, so "G.Kannur" and "Kannur Branch" land on one entry
// instead of duplicating it.
func (l *Ledger) GetOrCreate(entries []WarehouseStockEntry, canonical string) ([]WarehouseStockEntry, int, error) {
	if canonical == "" {
		return entries, -1, ErrNoWarehouse
	}
	for i := range entries {
		if l.resolver.Same(entries[i].Warehouse, canonical) {
			return entries, i, nil
		}
	}
	entries = append(entries, WarehouseStockEntry{Warehouse: canonical})
	return entries, len(entries) - 1, nil
}

// ApplyDelta applies the signed deltas to entry as one unit. Every field
// clamps at zero on its own: a negative delta can never drive a balance
// negative, not even transiently. The canonical label is written back so
// stale warehouse spellings heal over time.
func (l *Ledger) ApplyDelta(entry *WarehouseStockEntry, canonical string, d Delta) error {
	if canonical == "" {
		return ErrNoWarehouse
	}
	entry.Warehouse = canonical
	entry.StockOnHand = clamp(entry.StockOnHand + d.StockOnHand)
	entry.AvailableForSale = clamp(entry.AvailableForSale + d.AvailableForSale)
	entry.PhysicalStockOnHand = clamp(entry.PhysicalStockOnHand + d.PhysicalStockOnHand)
	entry.PhysicalAvailableForSale = clamp(entry.PhysicalAvailableForSale + d.PhysicalAvailableForSale)
	return nil
}

// RecomputeAvailable derives availableForSale (and its physical mirror) from
// the current balances. Committed stock participates only when the ledger was
// configured to honor it; the default mirrors stockOnHand, which is the
// behavior downstream reports were built against.
func (l *Ledger) RecomputeAvailable(entry *WarehouseStockEntry) {
	if l.honorCommitted {
		entry.AvailableForSale = clamp(entry.StockOnHand - entry.CommittedStock)
		entry.PhysicalAvailableForSale = clamp(entry.PhysicalStockOnHand - entry.PhysicalCommittedStock)
		return
	}
	entry.AvailableForSale = entry.StockOnHand
	entry.PhysicalAvailableForSale = entry.PhysicalStockOnHand
}

// RecordSale accumulates a sale quantity into the month's snapshot and
// recomputes the closing balance.
func (l *Ledger) RecordSale(entry *WarehouseStockEntry, month time.Time, qty float64) {
	snap := l.snapshotFor(entry, month)
	snap.Sales += qty
	snap.ClosingStock = clamp(snap.OpeningStock - snap.Sales)
}

// RecordPurchase adds a received quantity straight onto the month's closing
// balance. Negative qty is allowed: receive edits shrink the month the same
// way they shrink stock on hand.
func (l *Ledger) RecordPurchase(entry *WarehouseStockEntry, month time.Time, qty float64) {
	snap := l.snapshotFor(entry, month)
	snap.ClosingStock = clamp(snap.ClosingStock + qty)
}

// snapshotFor returns the snapshot for month, creating it on first touch.
// A new month opens from the previous month's closing balance when one
// exists, else from the current stock on hand.
func (l *Ledger) snapshotFor(entry *WarehouseStockEntry, month time.Time) *MonthlySnapshot {
	key := month.Format("2006-01")
	for i := range entry.MonthlyOpeningStock {
		if entry.MonthlyOpeningStock[i].Month == key {
			return &entry.MonthlyOpeningStock[i]
		}
	}
	snap := MonthlySnapshot{Month: key}
	if n := len(entry.MonthlyOpeningStock); n > 0 {
		prev := entry.MonthlyOpeningStock[n-1]
		snap.OpeningStock = prev.ClosingStock
		snap.OpeningStockValue = prev.ClosingStockValue
	} else {
		snap.OpeningStock = entry.StockOnHand
	}
	snap.ClosingStock = snap.OpeningStock
	entry.MonthlyOpeningStock = append(entry.MonthlyOpeningStock, snap)
	return &entry.MonthlyOpeningStock[len(entry.MonthlyOpeningStock)-1]
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
