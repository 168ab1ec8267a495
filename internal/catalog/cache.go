package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/cases"
)

var foldName = cases.Fold()

const nameIndexPrefix = "catalog:nameidx:"

// NameIndex is a best-effort redis cache in front of the cross-group name
// scan. Misses and redis errors both fall through to the scan; entries carry
// a short TTL so renamed items age out on their own.
type NameIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNameIndex builds a NameIndex. A zero ttl defaults to five minutes.
func NewNameIndex(client *redis.Client, ttl time.Duration) *NameIndex {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NameIndex{client: client, ttl: ttl}
}

// Get returns the cached key for an item name.
func (n *NameIndex) Get(ctx context.Context, name string) (ItemKey, bool) {
	if n == nil || n.client == nil {
		return ItemKey{}, false
	}
	raw, err := n.client.Get(ctx, nameIndexPrefix+foldName.String(name)).Result()
	if err != nil {
		return ItemKey{}, false
	}
	groupRaw, itemRaw, ok := strings.Cut(raw, "/")
	if !ok {
		return ItemKey{}, false
	}
	groupID, err := uuid.Parse(groupRaw)
	if err != nil {
		return ItemKey{}, false
	}
	itemID, err := uuid.Parse(itemRaw)
	if err != nil {
		return ItemKey{}, false
	}
	return ItemKey{ItemID: itemID, GroupID: groupID}, true
}

// Put records where a name-only lookup landed.
func (n *NameIndex) Put(ctx context.Context, name string, key ItemKey) {
	if n == nil || n.client == nil {
		return
	}
	value := key.GroupID.String() + "/" + key.ItemID.String()
	n.client.Set(ctx, nameIndexPrefix+foldName.String(name), value, n.ttl)
}

// Forget drops a stale entry, typically after a cached key failed to load.
func (n *NameIndex) Forget(ctx context.Context, name string) {
	if n == nil || n.client == nil {
		return
	}
	n.client.Del(ctx, nameIndexPrefix+foldName.String(name))
}
