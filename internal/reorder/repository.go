package reorder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists reorder alerts in PostgreSQL. A partial unique index on
// (item_id, warehouse) where status='open' makes deduplication a property of
// the table rather than of the callers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateIfAbsent inserts an open alert unless one is already open for the
// same item and warehouse. It reports whether a new alert was created.
func (r *Repository) CreateIfAbsent(ctx context.Context, alert Alert) (bool, error) {
	if r == nil {
		return false, errors.New("reorder repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO reorder_alerts
(id, item_id, item_name, warehouse, available_for_sale, reorder_level, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,'open',NOW())
ON CONFLICT (item_id, warehouse) WHERE status='open' DO NOTHING`,
		alert.ID, alert.ItemID, alert.ItemName, alert.Warehouse, alert.AvailableForSale, alert.ReorderLevel)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Resolve closes any open alert for the item and warehouse.
func (r *Repository) Resolve(ctx context.Context, itemID uuid.UUID, warehouse string) error {
	if r == nil {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE reorder_alerts SET status='resolved', resolved_at=NOW()
WHERE item_id=$1 AND warehouse=$2 AND status='open'`, itemID, warehouse)
	return err
}

// ListOpen returns all open alerts, oldest first.
func (r *Repository) ListOpen(ctx context.Context) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, item_name, warehouse, available_for_sale, reorder_level,
status, created_at, resolved_at FROM reorder_alerts WHERE status='open' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var (
			alert      Alert
			resolvedAt *time.Time
		)
		if err := rows.Scan(&alert.ID, &alert.ItemID, &alert.ItemName, &alert.Warehouse,
			&alert.AvailableForSale, &alert.ReorderLevel, &alert.Status, &alert.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		alert.ResolvedAt = resolvedAt
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
