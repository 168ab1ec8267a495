package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(warehouse.NewResolver(warehouse.DefaultAliases()), Config{})
}

func TestGetOrCreateMatchesAliases(t *testing.T) {
	l := newLedger(t)

	entries := []WarehouseStockEntry{{Warehouse: "G.Kannur", StockOnHand: 12}}
	entries, idx, err := l.GetOrCreate(entries, "Kannur Branch")
	require.NoError(t, err)
	require.Len(t, entries, 1, "alias variants must not create a duplicate entry")
	require.Equal(t, 0, idx)

	entries, idx, err = l.GetOrCreate(entries, "Edapally Branch")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 1, idx)
	require.Equal(t, "Edapally Branch", entries[idx].Warehouse)
	require.Zero(t, entries[idx].StockOnHand)

	_, _, err = l.GetOrCreate(entries, "")
	require.ErrorIs(t, err, ErrNoWarehouse)
}

func TestApplyDeltaClampsEachField(t *testing.T) {
	l := newLedger(t)
	entry := WarehouseStockEntry{Warehouse: "G.Kannur", StockOnHand: 5, PhysicalStockOnHand: 2}

	err := l.ApplyDelta(&entry, "Kannur Branch", Delta{
		StockOnHand:         -8,
		PhysicalStockOnHand: -8,
		AvailableForSale:    -8,
	})
	require.NoError(t, err)
	require.Zero(t, entry.StockOnHand)
	require.Zero(t, entry.PhysicalStockOnHand)
	require.Zero(t, entry.AvailableForSale)
	require.Equal(t, "Kannur Branch", entry.Warehouse, "canonical label written back")
}

func TestClampInvariantUnderDeltaSequences(t *testing.T) {
	l := newLedger(t)
	entry := WarehouseStockEntry{Warehouse: "Kannur Branch"}
	deltas := []float64{5, -3, -10, 7, -1, -100, 2, 0.5, -0.25}
	for _, d := range deltas {
		require.NoError(t, l.ApplyDelta(&entry, "Kannur Branch", Delta{StockOnHand: d, PhysicalStockOnHand: d}))
		require.GreaterOrEqual(t, entry.StockOnHand, 0.0)
		require.GreaterOrEqual(t, entry.PhysicalStockOnHand, 0.0)
	}
}

func TestRecomputeAvailableDefaultMirrorsStockOnHand(t *testing.T) {
	l := newLedger(t)
	entry := WarehouseStockEntry{StockOnHand: 9, CommittedStock: 4, PhysicalStockOnHand: 9}
	l.RecomputeAvailable(&entry)
	require.Equal(t, 9.0, entry.AvailableForSale)
	require.Equal(t, 9.0, entry.PhysicalAvailableForSale)
}

func TestRecomputeAvailableHonorsCommittedStock(t *testing.T) {
	l := New(warehouse.NewResolver(nil), Config{HonorCommittedStock: true})
	entry := WarehouseStockEntry{StockOnHand: 9, CommittedStock: 4}
	l.RecomputeAvailable(&entry)
	require.Equal(t, 5.0, entry.AvailableForSale)

	entry.CommittedStock = 20
	l.RecomputeAvailable(&entry)
	require.Zero(t, entry.AvailableForSale)
}

func TestMonthlySnapshotSeeding(t *testing.T) {
	l := newLedger(t)
	jan := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)

	entry := WarehouseStockEntry{Warehouse: "Kannur Branch", StockOnHand: 50}

	l.RecordSale(&entry, jan, 10)
	require.Len(t, entry.MonthlyOpeningStock, 1)
	require.Equal(t, "2026-01", entry.MonthlyOpeningStock[0].Month)
	require.Equal(t, 50.0, entry.MonthlyOpeningStock[0].OpeningStock)
	require.Equal(t, 10.0, entry.MonthlyOpeningStock[0].Sales)
	require.Equal(t, 40.0, entry.MonthlyOpeningStock[0].ClosingStock)

	l.RecordSale(&entry, jan, 5)
	require.Equal(t, 15.0, entry.MonthlyOpeningStock[0].Sales)
	require.Equal(t, 35.0, entry.MonthlyOpeningStock[0].ClosingStock)

	l.RecordPurchase(&entry, feb, 20)
	require.Len(t, entry.MonthlyOpeningStock, 2)
	require.Equal(t, "2026-02", entry.MonthlyOpeningStock[1].Month)
	require.Equal(t, 35.0, entry.MonthlyOpeningStock[1].OpeningStock, "february opens from january closing")
	require.Equal(t, 55.0, entry.MonthlyOpeningStock[1].ClosingStock)

	// The sealed january snapshot is untouched.
	require.Equal(t, 35.0, entry.MonthlyOpeningStock[0].ClosingStock)
}

func TestMonthlySnapshotSalesClampAtZero(t *testing.T) {
	l := newLedger(t)
	entry := WarehouseStockEntry{StockOnHand: 3}
	month := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	l.RecordSale(&entry, month, 10)
	require.Zero(t, entry.MonthlyOpeningStock[0].ClosingStock)
}
