package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-stock/internal/ledger"
)

type memoryCatalog struct {
	standalone map[uuid.UUID]*StandaloneItem
	groups     map[uuid.UUID]*ItemGroup
	groupItems []*GroupItem
	entries    map[uuid.UUID][]ledger.WarehouseStockEntry
	scans      int
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		standalone: make(map[uuid.UUID]*StandaloneItem),
		groups:     make(map[uuid.UUID]*ItemGroup),
		entries:    make(map[uuid.UUID][]ledger.WarehouseStockEntry),
	}
}

func (m *memoryCatalog) GetStandaloneItem(ctx context.Context, id uuid.UUID) (*StandaloneItem, error) {
	if item, ok := m.standalone[id]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, ErrItemNotFound
}

func (m *memoryCatalog) GetGroupItem(ctx context.Context, groupID, itemID uuid.UUID) (*GroupItem, error) {
	for _, gi := range m.groupItems {
		if gi.GroupID == groupID && gi.ID == itemID {
			copied := *gi
			return &copied, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *memoryCatalog) FindGroupItemByID(ctx context.Context, itemID uuid.UUID) (*GroupItem, error) {
	for _, gi := range m.groupItems {
		if gi.ID == itemID && m.groupActive(gi.GroupID) {
			copied := *gi
			return &copied, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *memoryCatalog) FindGroupItemBySKU(ctx context.Context, groupID uuid.UUID, sku string) (*GroupItem, error) {
	for _, gi := range m.groupItems {
		if gi.GroupID == groupID && strings.EqualFold(gi.SKU, sku) {
			copied := *gi
			return &copied, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *memoryCatalog) FindGroupItemByName(ctx context.Context, groupID uuid.UUID, name string) (*GroupItem, error) {
	for _, gi := range m.groupItems {
		if gi.GroupID == groupID && strings.EqualFold(gi.Name, name) {
			copied := *gi
			return &copied, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *memoryCatalog) FindGroupItemByNameAcrossGroups(ctx context.Context, name string) (*GroupItem, error) {
	m.scans++
	for _, gi := range m.groupItems {
		if strings.EqualFold(gi.Name, name) && m.groupActive(gi.GroupID) {
			copied := *gi
			return &copied, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *memoryCatalog) LockStockEntries(ctx context.Context, itemID uuid.UUID) ([]ledger.WarehouseStockEntry, error) {
	entries := m.entries[itemID]
	copied := make([]ledger.WarehouseStockEntry, len(entries))
	copy(copied, entries)
	return copied, nil
}

func (m *memoryCatalog) SaveStockEntry(ctx context.Context, itemID uuid.UUID, prevWarehouse string, entry ledger.WarehouseStockEntry) error {
	entries := m.entries[itemID]
	target := prevWarehouse
	if target == "" {
		target = entry.Warehouse
	}
	for i := range entries {
		if entries[i].Warehouse == target {
			entries[i] = entry
			m.entries[itemID] = entries
			return nil
		}
	}
	m.entries[itemID] = append(entries, entry)
	return nil
}

func (m *memoryCatalog) groupActive(groupID uuid.UUID) bool {
	group, ok := m.groups[groupID]
	return ok && group.Status == GroupStatusActive
}

func TestLocateStandaloneByID(t *testing.T) {
	mem := newMemoryCatalog()
	id := uuid.New()
	mem.standalone[id] = &StandaloneItem{ID: id, Name: "Cotton Saree"}

	loc := NewLocator(nil, nil, nil)
	got, err := loc.Locate(context.Background(), mem, ItemRef{ItemID: id})
	require.NoError(t, err)
	require.Equal(t, "Cotton Saree", got.Label())
	require.IsType(t, &StandaloneItem{}, got)
}

func TestLocateGroupItemByIDAcrossGroups(t *testing.T) {
	mem := newMemoryCatalog()
	groupID, itemID := uuid.New(), uuid.New()
	mem.groups[groupID] = &ItemGroup{ID: groupID, Name: "Sarees", Status: GroupStatusActive}
	mem.groupItems = append(mem.groupItems, &GroupItem{GroupID: groupID, ID: itemID, Name: "Silk Saree", SKU: "SLK-1"})

	loc := NewLocator(nil, nil, nil)

	// Id alone finds the nested item even without a group id.
	got, err := loc.Locate(context.Background(), mem, ItemRef{ItemID: itemID})
	require.NoError(t, err)
	require.Equal(t, ItemKey{ItemID: itemID, GroupID: groupID}, got.Key())

	// Specified group takes the direct path.
	got, err = loc.Locate(context.Background(), mem, ItemRef{ItemID: itemID, GroupID: groupID})
	require.NoError(t, err)
	require.Equal(t, "Silk Saree", got.Label())
}

func TestLocateBySKUThenName(t *testing.T) {
	mem := newMemoryCatalog()
	groupID := uuid.New()
	mem.groups[groupID] = &ItemGroup{ID: groupID, Name: "Sarees", Status: GroupStatusActive}
	mem.groupItems = append(mem.groupItems, &GroupItem{GroupID: groupID, ID: uuid.New(), Name: "Silk Saree", SKU: "SLK-1"})

	loc := NewLocator(nil, nil, nil)

	got, err := loc.Locate(context.Background(), mem, ItemRef{GroupID: groupID, SKU: "slk-1"})
	require.NoError(t, err)
	require.Equal(t, "Silk Saree", got.Label())

	got, err = loc.Locate(context.Background(), mem, ItemRef{GroupID: groupID, Name: "SILK SAREE"})
	require.NoError(t, err)
	require.Equal(t, "SLK-1", got.(*GroupItem).SKU)
}

func TestLocateNameOnlyFallbackSkipsInactiveGroups(t *testing.T) {
	mem := newMemoryCatalog()
	active, inactive := uuid.New(), uuid.New()
	mem.groups[active] = &ItemGroup{ID: active, Status: GroupStatusActive}
	mem.groups[inactive] = &ItemGroup{ID: inactive, Status: "inactive"}
	mem.groupItems = append(mem.groupItems,
		&GroupItem{GroupID: inactive, ID: uuid.New(), Name: "Churidar"},
		&GroupItem{GroupID: active, ID: uuid.New(), Name: "Churidar", SKU: "CHD-2"},
	)

	loc := NewLocator(nil, nil, nil)
	got, err := loc.Locate(context.Background(), mem, ItemRef{Name: "churidar"})
	require.NoError(t, err)
	require.Equal(t, "CHD-2", got.(*GroupItem).SKU)
	require.Equal(t, 1, mem.scans)
}

func TestLocateNameOnlySkippedWhenGroupGiven(t *testing.T) {
	mem := newMemoryCatalog()
	groupID := uuid.New()
	mem.groups[groupID] = &ItemGroup{ID: groupID, Status: GroupStatusActive}

	loc := NewLocator(nil, nil, nil)
	_, err := loc.Locate(context.Background(), mem, ItemRef{GroupID: groupID, Name: "Missing"})
	require.ErrorIs(t, err, ErrItemNotFound)
	require.Zero(t, mem.scans, "cross-group scan must not run when a group id was supplied")
}

func TestLocateNotFoundReportsRef(t *testing.T) {
	loc := NewLocator(nil, nil, nil)
	_, err := loc.Locate(context.Background(), newMemoryCatalog(), ItemRef{Name: "Ghost"})
	require.ErrorIs(t, err, ErrItemNotFound)
	require.Contains(t, err.Error(), `name "Ghost"`)
}
