// Package transfer implements inter-warehouse transfer orders. The order is
// the document; the state machine around its status decides when the stock
// movement fires, and guarantees it fires at most once per order.
package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/movement"
)

// Status is the transfer order lifecycle state.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusInTransit   Status = "in_transit"
	StatusTransferred Status = "transferred"
)

// IsValid checks whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusInTransit, StatusTransferred:
		return true
	default:
		return false
	}
}

// CanEditItems reports whether line items may still change. Once transferred
// the items are frozen; the only way out is delete-and-recreate, which
// reverses the movement first.
func (s Status) CanEditItems() bool {
	return s != StatusTransferred
}

// Item is one transfer order line. ItemID or the group/SKU/name fields
// identify the stock-bearing record through the item locator.
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

// TransferOrder is a transfer document. Warehouse labels are stored in
// canonical form. AppliedAt is set exactly when the movement was applied and
// is the hard exactly-once gate, independent of later status edits.
type TransferOrder struct {
	ID                   uuid.UUID  `json:"id"`
	Number               string     `json:"number"`
	Date                 time.Time  `json:"date"`
	SourceWarehouse      string     `json:"sourceWarehouse"`
	DestinationWarehouse string     `json:"destinationWarehouse"`
	Status               Status     `json:"status"`
	AppliedAt            *time.Time `json:"appliedAt,omitempty"`
	Items                []Item     `json:"items"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Applied reports whether this order already moved stock.
func (o *TransferOrder) Applied() bool {
	return o.AppliedAt != nil
}

func (o *TransferOrder) lines() []movement.LineItem {
	lines := make([]movement.LineItem, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, item.line())
	}
	return lines
}

// TransitionResult reports one status transition. Moved is true only for the
// transition that fired the stock movement; Summary then carries its per-line
// outcome.
type TransitionResult struct {
	Order   *TransferOrder  `json:"order"`
	Moved   bool            `json:"moved"`
	Summary movement.Result `json:"summary"`
}

var (
	ErrNotFound           = errors.New("transfer: order not found")
	ErrDuplicateNumber    = errors.New("transfer: order number already used")
	ErrInvalidStatus      = errors.New("transfer: unknown status")
	ErrInvalidState       = errors.New("transfer: operation not allowed in current status")
	ErrAlreadyTransferred = errors.New("transfer: order already transferred")
	ErrSameWarehouse      = errors.New("transfer: source and destination warehouse match")
	ErrNoItems            = errors.New("transfer: order has no items")
)
