package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *NameIndex {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewNameIndex(client, time.Minute)
}

func TestNameIndexRoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	key := ItemKey{ItemID: uuid.New(), GroupID: uuid.New()}

	_, ok := idx.Get(ctx, "Silk Saree")
	require.False(t, ok)

	idx.Put(ctx, "Silk Saree", key)

	got, ok := idx.Get(ctx, "silk saree")
	require.True(t, ok, "lookups are case folded")
	require.Equal(t, key, got)

	idx.Forget(ctx, "SILK SAREE")
	_, ok = idx.Get(ctx, "Silk Saree")
	require.False(t, ok)
}

func TestNameIndexNilSafe(t *testing.T) {
	var idx *NameIndex
	ctx := context.Background()
	_, ok := idx.Get(ctx, "anything")
	require.False(t, ok)
	idx.Put(ctx, "anything", ItemKey{})
	idx.Forget(ctx, "anything")
}

func TestLocatorUsesNameIndex(t *testing.T) {
	mem := newMemoryCatalog()
	groupID, itemID := uuid.New(), uuid.New()
	mem.groups[groupID] = &ItemGroup{ID: groupID, Status: GroupStatusActive}
	mem.groupItems = append(mem.groupItems, &GroupItem{GroupID: groupID, ID: itemID, Name: "Churidar"})

	loc := NewLocator(nil, newTestIndex(t), nil)
	ctx := context.Background()

	_, err := loc.Locate(ctx, mem, ItemRef{Name: "Churidar"})
	require.NoError(t, err)
	require.Equal(t, 1, mem.scans)

	// Second lookup is served by the index; no new cross-group scan.
	got, err := loc.Locate(ctx, mem, ItemRef{Name: "Churidar"})
	require.NoError(t, err)
	require.Equal(t, itemID, got.Key().ItemID)
	require.Equal(t, 1, mem.scans)
}
