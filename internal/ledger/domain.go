// Package ledger owns the per-item, per-warehouse stock record and is the
// only code allowed to read-modify-write one. The engine itself is pure;
// callers serialize access by locking an item's rows for the duration of one
// apply (see catalog.Repository.WithTx).
package ledger

import "errors"

// WarehouseStockEntry is one item's balance at one canonical warehouse.
// Accounting quantities and physical-count mirrors move together through
// ApplyDelta; each field clamps at zero independently.
type WarehouseStockEntry struct {
	Warehouse         string  `json:"warehouse"`
	OpeningStock      float64 `json:"openingStock"`
	OpeningStockValue float64 `json:"openingStockValue"`
	StockOnHand       float64 `json:"stockOnHand"`
	CommittedStock    float64 `json:"committedStock"`
	AvailableForSale  float64 `json:"availableForSale"`

	PhysicalOpeningStock     float64 `json:"physicalOpeningStock"`
	PhysicalStockOnHand      float64 `json:"physicalStockOnHand"`
	PhysicalCommittedStock   float64 `json:"physicalCommittedStock"`
	PhysicalAvailableForSale float64 `json:"physicalAvailableForSale"`

	MonthlyOpeningStock []MonthlySnapshot `json:"monthlyOpeningStock,omitempty"`
}

// MonthlySnapshot records opening/closing balances for one calendar month.
// The sequence is append-mostly: a sealed prior month is never rewritten.
type MonthlySnapshot struct {
	Month             string  `json:"month"` // "2006-01"
	OpeningStock      float64 `json:"openingStock"`
	OpeningStockValue float64 `json:"openingStockValue"`
	ClosingStock      float64 `json:"closingStock"`
	ClosingStockValue float64 `json:"closingStockValue"`
	Sales             float64 `json:"sales"`
}

// Delta carries the signed quantity changes for one apply. All fields are
// applied as a single unit.
type Delta struct {
	StockOnHand              float64
	AvailableForSale         float64
	PhysicalStockOnHand      float64
	PhysicalAvailableForSale float64
}

// ErrNoWarehouse indicates an apply against an empty warehouse label.
var ErrNoWarehouse = errors.New("ledger: warehouse label required")
