// Package catalog resolves movement line items to the stock-bearing record
// they address, whether that record is a standalone item document or an entry
// nested inside an item group.
package catalog

import (
	"errors"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/ledger"
)

// ItemKey identifies a stock-bearing record. GroupID is uuid.Nil for
// standalone items.
type ItemKey struct {
	ItemID  uuid.UUID
	GroupID uuid.UUID
}

// ItemRef is a movement request's way of addressing an item. Any subset of
// fields may be set; the locator works through its tiers in order.
type ItemRef struct {
	ItemID  uuid.UUID
	GroupID uuid.UUID
	SKU     string
	Name    string
}

// StockBearing is the single view the movement engine holds over both item
// shapes. Once located, callers never branch on which variant they have.
type StockBearing interface {
	Key() ItemKey
	Label() string
	ReorderLevel() float64
	StockEntries() []ledger.WarehouseStockEntry
	SetStockEntries([]ledger.WarehouseStockEntry)
}

// StandaloneItem is an item that lives as its own document.
type StandaloneItem struct {
	ID           uuid.UUID
	Name         string
	SKU          string
	ReorderPoint float64
	Status       string
	Stock        []ledger.WarehouseStockEntry
}

func (i *StandaloneItem) Key() ItemKey                                   { return ItemKey{ItemID: i.ID} }
func (i *StandaloneItem) Label() string                                  { return i.Name }
func (i *StandaloneItem) ReorderLevel() float64                          { return i.ReorderPoint }
func (i *StandaloneItem) StockEntries() []ledger.WarehouseStockEntry     { return i.Stock }
func (i *StandaloneItem) SetStockEntries(s []ledger.WarehouseStockEntry) { i.Stock = s }

// GroupItem is an item nested inside an ItemGroup's item list.
type GroupItem struct {
	GroupID      uuid.UUID
	GroupName    string
	ID           uuid.UUID
	Name         string
	SKU          string
	ReorderPoint float64
	Stock        []ledger.WarehouseStockEntry
}

func (i *GroupItem) Key() ItemKey                                   { return ItemKey{ItemID: i.ID, GroupID: i.GroupID} }
func (i *GroupItem) Label() string                                  { return i.Name }
func (i *GroupItem) ReorderLevel() float64                          { return i.ReorderPoint }
func (i *GroupItem) StockEntries() []ledger.WarehouseStockEntry     { return i.Stock }
func (i *GroupItem) SetStockEntries(s []ledger.WarehouseStockEntry) { i.Stock = s }

// ItemGroup is the parent document for nested items.
type ItemGroup struct {
	ID     uuid.UUID
	Name   string
	Status string
}

// GroupStatusActive marks groups the cross-group name fallback may search.
const GroupStatusActive = "active"

var (
	// ErrItemNotFound indicates every locator tier came up empty. Callers
	// skip the line item and continue; it never aborts a batch.
	ErrItemNotFound = errors.New("catalog: item not found")
	// ErrGroupNotFound indicates the referenced item group does not exist.
	ErrGroupNotFound = errors.New("catalog: item group not found")
)
