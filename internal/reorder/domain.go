// Package reorder raises alerts when a sale leaves an item's available stock
// at or below its reorder point. Alerts are deduplicated per item and
// warehouse while open, and alerting failures never touch the sale that
// triggered them.
package reorder

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Alert is one open or resolved reorder alert.
type Alert struct {
	ID               uuid.UUID  `json:"id"`
	ItemID           uuid.UUID  `json:"itemId"`
	ItemName         string     `json:"itemName"`
	Warehouse        string     `json:"warehouse"`
	AvailableForSale float64    `json:"availableForSale"`
	ReorderLevel     float64    `json:"reorderLevel"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
}

// Alert statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// ErrNotFound indicates the alert does not exist.
var ErrNotFound = errors.New("reorder: alert not found")
