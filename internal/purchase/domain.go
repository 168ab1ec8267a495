// Package purchase implements purchase receive documents. Stock moves by the
// delta between a line's received quantity and the quantity already applied
// to the ledger, so saving a receive twice adds nothing and editing 5 to 8
// adds exactly 3.
package purchase

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/movement"
)

// Status is the receive lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusReceived Status = "received"
)

// IsValid checks whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusReceived
}

// Item is one receive line. AppliedReceived tracks how much of Received has
// already been pushed into the stock ledger; it is the delta baseline for the
// next save and stays zero while the receive is draft.
type Item struct {
	ItemID          uuid.UUID `json:"itemId,omitempty"`
	ItemGroupID     uuid.UUID `json:"itemGroupId,omitempty"`
	ItemName        string    `json:"itemName,omitempty"`
	ItemSKU         string    `json:"itemSku,omitempty"`
	Ordered         float64   `json:"ordered"`
	Received        float64   `json:"received"`
	AppliedReceived float64   `json:"appliedReceived"`
}

func (i Item) line() movement.LineItem {
	return movement.LineItem{
		ItemID:      i.ItemID,
		ItemGroupID: i.ItemGroupID,
		Name:        i.ItemName,
		SKU:         i.ItemSKU,
		Quantity:    i.Received,
	}
}

// PurchaseReceive is a goods receipt against one warehouse.
type PurchaseReceive struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	Date      time.Time `json:"date"`
	Warehouse string    `json:"warehouse"`
	Status    Status    `json:"status"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// applied reports whether any quantity reached the ledger.
func (p *PurchaseReceive) applied() bool {
	for _, item := range p.Items {
		if item.AppliedReceived != 0 {
			return true
		}
	}
	return false
}

// ApplyResult reports one receive save.
type ApplyResult struct {
	Receive *PurchaseReceive `json:"receive"`
	Moved   bool             `json:"moved"`
	Summary movement.Result  `json:"summary"`
}

var (
	ErrNotFound        = errors.New("purchase: receive not found")
	ErrDuplicateNumber = errors.New("purchase: receive number already used")
	ErrInvalidStatus   = errors.New("purchase: unknown status")
	ErrNoItems         = errors.New("purchase: receive has no items")
)
