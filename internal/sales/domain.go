// Package sales implements sales invoices as stock movement triggers. An
// invoice subtracts its quantities on creation and puts them back on
// deletion; return and refund invoices run the same machinery with the
// direction flipped.
package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/movement"
)

// Category decides the stock direction of an invoice.
type Category string

const (
	CategorySale   Category = "sale"
	CategoryReturn Category = "return"
	CategoryRefund Category = "refund"
)

// IsValid checks whether the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategorySale, CategoryReturn, CategoryRefund:
		return true
	default:
		return false
	}
}

// outbound reports whether stock leaves the warehouse for this category.
func (c Category) outbound() bool {
	return c == CategorySale
}

// Item is one invoice line.
type Item struct {
	ItemID      uuid.UUID `json:"itemId,omitempty"`
	ItemGroupID uuid.UUID `json:"itemGroupId,omitempty"`
	ItemName    string    `json:"itemName,omitempty"`
	ItemSKU     string    `json:"itemSku,omitempty"`
	Quantity    float64   `json:"quantity"`
}

func (i Item) line() movement.LineItem {
	return movement.LineItem{
		ItemID:      i.ItemID,
		ItemGroupID: i.ItemGroupID,
		Name:        i.ItemName,
		SKU:         i.ItemSKU,
		Quantity:    i.Quantity,
	}
}

// Invoice is a sales document. Warehouse holds the canonical label the
// movement ran against; AppliedAt is set when stock moved, and deletion
// reverses exactly what was applied.
type Invoice struct {
	ID        uuid.UUID  `json:"id"`
	Number    string     `json:"number"`
	Date      time.Time  `json:"date"`
	Role      string     `json:"role,omitempty"`
	Warehouse string     `json:"warehouse"`
	Category  Category   `json:"category"`
	AppliedAt *time.Time `json:"appliedAt,omitempty"`
	Items     []Item     `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (inv *Invoice) lines() []movement.LineItem {
	lines := make([]movement.LineItem, 0, len(inv.Items))
	for _, item := range inv.Items {
		lines = append(lines, item.line())
	}
	return lines
}

// ApplyResult reports one invoice operation.
type ApplyResult struct {
	Invoice *Invoice        `json:"invoice"`
	Moved   bool            `json:"moved"`
	Summary movement.Result `json:"summary"`
}

var (
	ErrNotFound        = errors.New("sales: invoice not found")
	ErrDuplicateNumber = errors.New("sales: invoice number already used")
	ErrInvalidCategory = errors.New("sales: unknown category")
	ErrNoWarehouse     = errors.New("sales: no warehouse given and no default for role")
	ErrNoItems         = errors.New("sales: invoice has no items")
)
