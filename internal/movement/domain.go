// Package movement applies quantity movements to the stock ledger for the
// three business triggers: sales, purchase receiving and inter-warehouse
// transfers.
package movement

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/catalog"
)

// Movement kinds as reported to metrics and audit.
const (
	KindSale            = "sale"
	KindSaleReversal    = "sale_reversal"
	KindPurchaseReceive = "purchase_receive"
	KindTransfer        = "transfer"
	KindTransferReverse = "transfer_reversal"
)

// LineItem is one movement request line. Quantity carries the sale/transfer
// quantity, or the new received quantity for purchase receives.
type LineItem struct {
	ItemID      uuid.UUID
	ItemGroupID uuid.UUID
	Name        string
	SKU         string
	Quantity    float64
}

// Ref converts the line into a locator reference.
func (l LineItem) Ref() catalog.ItemRef {
	return catalog.ItemRef{ItemID: l.ItemID, GroupID: l.ItemGroupID, SKU: l.SKU, Name: l.Name}
}

// LineKey identifies a line item across edits of the same document, used to
// pair a receive's new quantities with the previously recorded ones.
func LineKey(l LineItem) string {
	switch {
	case l.ItemID != uuid.Nil:
		return "id:" + l.ItemID.String()
	case l.ItemGroupID != uuid.Nil && l.SKU != "":
		return "sku:" + l.ItemGroupID.String() + "/" + strings.ToLower(l.SKU)
	case l.ItemGroupID != uuid.Nil:
		return "grp:" + l.ItemGroupID.String() + "/" + strings.ToLower(l.Name)
	default:
		return "name:" + strings.ToLower(l.Name)
	}
}

// PrevReceived maps LineKey values to the received quantity recorded before
// the current edit. Absent keys read as zero.
type PrevReceived map[string]float64

// SkippedLine reports one line item the engine could not apply. A skipped
// line never aborts the rest of the batch.
type SkippedLine struct {
	Line   LineItem
	Reason string
}

// Result summarises one movement batch.
type Result struct {
	Processed int
	Skipped   []SkippedLine
}

// Failed reports whether any line was skipped.
func (r Result) Failed() bool { return len(r.Skipped) > 0 }

var (
	// ErrInvalidQuantity flags zero, negative or non-finite quantities. The
	// line is skipped and reported, never treated as a silent no-op success.
	ErrInvalidQuantity = errors.New("movement: invalid quantity")
	// ErrSameWarehouse flags a transfer whose endpoints resolve to one
	// canonical warehouse.
	ErrSameWarehouse = errors.New("movement: source and destination warehouse match")
)
