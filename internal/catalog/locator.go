package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// FallbackRecorder counts uses of the expensive name-only fallback tier so
// inconsistent upstream data stays visible on a dashboard.
type FallbackRecorder interface {
	RecordNameFallback()
}

// Locator resolves an ItemRef to exactly one mutable stock-bearing record.
// Resolution tiers, first hit wins, each tier attempted only when the
// previous yielded nothing:
//
//  1. direct id as a standalone item
//  2. direct id as a nested group item (specified group, else any active one)
//  3. (groupID, sku) case-insensitive within the group
//  4. (groupID, name) case-insensitive within the group
//  5. name-only across all active groups, only when no group id was supplied
//
// Tier 5 is O(total items) and therefore cached and logged distinctly.
type Locator struct {
	logger    *slog.Logger
	nameIndex *NameIndex
	fallbacks FallbackRecorder
}

// NewLocator builds a Locator. nameIndex and fallbacks may be nil.
func NewLocator(logger *slog.Logger, nameIndex *NameIndex, fallbacks FallbackRecorder) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{logger: logger, nameIndex: nameIndex, fallbacks: fallbacks}
}

// Locate returns the record ref addresses or ErrItemNotFound. It must run
// inside the same transaction that mutates the result; locating ahead of the
// mutation would reopen the read-modify-write gap the row locks close.
func (l *Locator) Locate(ctx context.Context, tx TxCatalog, ref ItemRef) (StockBearing, error) {
	if ref.ItemID != uuid.Nil {
		item, err := tx.GetStandaloneItem(ctx, ref.ItemID)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}

		gi, err := l.locateGroupItemByID(ctx, tx, ref)
		if err == nil {
			return gi, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
	}

	if ref.GroupID != uuid.Nil && ref.SKU != "" {
		gi, err := tx.FindGroupItemBySKU(ctx, ref.GroupID, ref.SKU)
		if err == nil {
			return gi, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
	}

	if ref.GroupID != uuid.Nil && ref.Name != "" {
		gi, err := tx.FindGroupItemByName(ctx, ref.GroupID, ref.Name)
		if err == nil {
			return gi, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
	}

	if ref.GroupID == uuid.Nil && ref.Name != "" {
		gi, err := l.locateByNameFallback(ctx, tx, ref.Name)
		if err == nil {
			return gi, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("locate %s: %w", ref, ErrItemNotFound)
}

func (l *Locator) locateGroupItemByID(ctx context.Context, tx TxCatalog, ref ItemRef) (*GroupItem, error) {
	if ref.GroupID != uuid.Nil {
		return tx.GetGroupItem(ctx, ref.GroupID, ref.ItemID)
	}
	return tx.FindGroupItemByID(ctx, ref.ItemID)
}

// locateByNameFallback is the last-resort cross-group scan. A redis name
// index short-circuits repeat lookups; a cache hit is still re-read inside
// the transaction so a stale index can never mutate the wrong item.
func (l *Locator) locateByNameFallback(ctx context.Context, tx TxCatalog, name string) (*GroupItem, error) {
	if key, ok := l.nameIndex.Get(ctx, name); ok {
		gi, err := tx.GetGroupItem(ctx, key.GroupID, key.ItemID)
		if err == nil {
			return gi, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
		l.nameIndex.Forget(ctx, name)
	}

	l.logger.Warn("item located by name-only fallback scan",
		slog.String("item_name", name))
	if l.fallbacks != nil {
		l.fallbacks.RecordNameFallback()
	}

	gi, err := tx.FindGroupItemByNameAcrossGroups(ctx, name)
	if err != nil {
		return nil, err
	}
	l.nameIndex.Put(ctx, name, gi.Key())
	return gi, nil
}

// String renders the ref for log and error messages.
func (r ItemRef) String() string {
	switch {
	case r.ItemID != uuid.Nil:
		return "item " + r.ItemID.String()
	case r.GroupID != uuid.Nil && r.SKU != "":
		return fmt.Sprintf("group %s sku %q", r.GroupID, r.SKU)
	case r.GroupID != uuid.Nil:
		return fmt.Sprintf("group %s name %q", r.GroupID, r.Name)
	case r.Name != "":
		return fmt.Sprintf("name %q", r.Name)
	default:
		return "empty ref"
	}
}
