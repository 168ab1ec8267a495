package reorder

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-stock/internal/catalog"
	"github.com/meridian-retail/meridian-stock/internal/ledger"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// itemStore is a minimal catalog fake holding standalone items only.
type itemStore struct {
	items   map[uuid.UUID]*catalog.StandaloneItem
	entries map[uuid.UUID][]ledger.WarehouseStockEntry
}

func (s *itemStore) WithTx(ctx context.Context, fn func(context.Context, catalog.TxCatalog) error) error {
	return fn(ctx, s)
}

func (s *itemStore) GetStandaloneItem(ctx context.Context, id uuid.UUID) (*catalog.StandaloneItem, error) {
	if item, ok := s.items[id]; ok {
		return item, nil
	}
	return nil, catalog.ErrItemNotFound
}

func (s *itemStore) GetGroupItem(ctx context.Context, groupID, itemID uuid.UUID) (*catalog.GroupItem, error) {
	return nil, catalog.ErrItemNotFound
}

func (s *itemStore) FindGroupItemByID(ctx context.Context, itemID uuid.UUID) (*catalog.GroupItem, error) {
	return nil, catalog.ErrItemNotFound
}

func (s *itemStore) FindGroupItemBySKU(ctx context.Context, groupID uuid.UUID, sku string) (*catalog.GroupItem, error) {
	return nil, catalog.ErrItemNotFound
}

func (s *itemStore) FindGroupItemByName(ctx context.Context, groupID uuid.UUID, name string) (*catalog.GroupItem, error) {
	return nil, catalog.ErrItemNotFound
}

func (s *itemStore) FindGroupItemByNameAcrossGroups(ctx context.Context, name string) (*catalog.GroupItem, error) {
	return nil, catalog.ErrItemNotFound
}

func (s *itemStore) LockStockEntries(ctx context.Context, itemID uuid.UUID) ([]ledger.WarehouseStockEntry, error) {
	return s.entries[itemID], nil
}

func (s *itemStore) SaveStockEntry(ctx context.Context, itemID uuid.UUID, prevWarehouse string, entry ledger.WarehouseStockEntry) error {
	return nil
}

type memoryAlerts struct {
	open     map[string]Alert
	resolved int
}

func alertKey(itemID uuid.UUID, warehouse string) string {
	return itemID.String() + "/" + warehouse
}

func (m *memoryAlerts) CreateIfAbsent(ctx context.Context, alert Alert) (bool, error) {
	if m.open == nil {
		m.open = make(map[string]Alert)
	}
	key := alertKey(alert.ItemID, alert.Warehouse)
	if _, ok := m.open[key]; ok {
		return false, nil
	}
	m.open[key] = alert
	return true, nil
}

func (m *memoryAlerts) Resolve(ctx context.Context, itemID uuid.UUID, warehouse string) error {
	key := alertKey(itemID, warehouse)
	if _, ok := m.open[key]; ok {
		delete(m.open, key)
		m.resolved++
	}
	return nil
}

type recordingMailer struct {
	sent []Alert
}

func (m *recordingMailer) SendReorderAlert(ctx context.Context, alert Alert) error {
	m.sent = append(m.sent, alert)
	return nil
}

func newTestScanner(t *testing.T) (*Scanner, *itemStore, *memoryAlerts, *recordingMailer) {
	t.Helper()
	store := &itemStore{
		items:   make(map[uuid.UUID]*catalog.StandaloneItem),
		entries: make(map[uuid.UUID][]ledger.WarehouseStockEntry),
	}
	alerts := &memoryAlerts{}
	mailer := &recordingMailer{}
	resolver := warehouse.NewResolver(warehouse.DefaultAliases())
	locator := catalog.NewLocator(slog.Default(), nil, nil)
	return NewScanner(slog.Default(), store, locator, resolver, alerts, mailer), store, alerts, mailer
}

func seed(store *itemStore, name string, level, available float64, label string) uuid.UUID {
	id := uuid.New()
	store.items[id] = &catalog.StandaloneItem{ID: id, Name: name, ReorderPoint: level, Status: "active"}
	store.entries[id] = []ledger.WarehouseStockEntry{{Warehouse: label, AvailableForSale: available}}
	return id
}

func TestScanOpensAlertAtReorderPoint(t *testing.T) {
	scanner, store, alerts, mailer := newTestScanner(t)
	id := seed(store, "Silk Saree", 10, 10, "Kannur Branch")

	err := scanner.Scan(context.Background(), []catalog.ItemRef{{ItemID: id}}, "Kannur Branch")
	require.NoError(t, err)
	require.Len(t, alerts.open, 1)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "Silk Saree", mailer.sent[0].ItemName)
	require.Equal(t, 10.0, mailer.sent[0].ReorderLevel)
}

func TestScanDeduplicatesOpenAlerts(t *testing.T) {
	scanner, store, alerts, mailer := newTestScanner(t)
	id := seed(store, "Silk Saree", 10, 4, "Kannur Branch")
	ctx := context.Background()
	refs := []catalog.ItemRef{{ItemID: id}}

	require.NoError(t, scanner.Scan(ctx, refs, "Kannur Branch"))
	require.NoError(t, scanner.Scan(ctx, refs, "Kannur Branch"))
	require.Len(t, alerts.open, 1)
	require.Len(t, mailer.sent, 1, "duplicate alert must not re-mail")
}

func TestScanResolvesWhenStockRecovers(t *testing.T) {
	scanner, store, alerts, _ := newTestScanner(t)
	id := seed(store, "Silk Saree", 10, 4, "Kannur Branch")
	ctx := context.Background()
	refs := []catalog.ItemRef{{ItemID: id}}

	require.NoError(t, scanner.Scan(ctx, refs, "Kannur Branch"))
	require.Len(t, alerts.open, 1)

	store.entries[id][0].AvailableForSale = 25
	require.NoError(t, scanner.Scan(ctx, refs, "Kannur Branch"))
	require.Empty(t, alerts.open)
	require.Equal(t, 1, alerts.resolved)
}

func TestScanMatchesWarehouseAliases(t *testing.T) {
	scanner, store, alerts, _ := newTestScanner(t)
	id := seed(store, "Silk Saree", 10, 4, "G.Kannur")

	require.NoError(t, scanner.Scan(context.Background(), []catalog.ItemRef{{ItemID: id}}, "Kannur Branch"))
	require.Len(t, alerts.open, 1)
}

func TestScanIgnoresItemsWithoutReorderPoint(t *testing.T) {
	scanner, store, alerts, _ := newTestScanner(t)
	id := seed(store, "Silk Saree", 0, 0, "Kannur Branch")

	require.NoError(t, scanner.Scan(context.Background(), []catalog.ItemRef{{ItemID: id}}, "Kannur Branch"))
	require.Empty(t, alerts.open)
}

func TestScanSurvivesUnknownItems(t *testing.T) {
	scanner, store, alerts, _ := newTestScanner(t)
	known := seed(store, "Silk Saree", 10, 4, "Kannur Branch")

	err := scanner.Scan(context.Background(), []catalog.ItemRef{{ItemID: uuid.New()}, {ItemID: known}}, "Kannur Branch")
	require.NoError(t, err, "a missing item is logged, not fatal")
	require.Len(t, alerts.open, 1)
}
