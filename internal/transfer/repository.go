package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-stock/internal/platform/db"
)

// TxTransfer exposes the order operations available inside one transaction.
type TxTransfer interface {
	// GetForUpdate loads the order and its items with the order row locked, so
	// concurrent transitions serialize on the status read.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*TransferOrder, error)
	UpdateOrder(ctx context.Context, order *TransferOrder) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status, appliedAt *time.Time) error
	ReplaceItems(ctx context.Context, id uuid.UUID, items []Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository persists transfer orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxTransfer) error) error {
	if r == nil {
		return errors.New("transfer repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txTransfer{tx: tx})
	})
}

// Create inserts the order and its items.
func (r *Repository) Create(ctx context.Context, order *TransferOrder) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxTransfer) error {
		t := tx.(*txTransfer)
		_, err := t.tx.Exec(ctx, `INSERT INTO transfer_orders
(id, number, transfer_date, source_warehouse, destination_warehouse, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())`,
			order.ID, order.Number, order.Date, order.SourceWarehouse, order.DestinationWarehouse, order.Status)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateNumber
			}
			return err
		}
		return t.ReplaceItems(ctx, order.ID, order.Items)
	})
}

const orderColumns = `SELECT id, number, transfer_date, source_warehouse, destination_warehouse, status,
applied_at, created_at, updated_at FROM transfer_orders`

// Get loads one order with its items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*TransferOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, orderColumns+` WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	order.Items, err = r.loadItems(ctx, r.pool, id)
	return order, err
}

// List returns orders newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]TransferOrder, error) {
	rows, err := r.pool.Query(ctx, orderColumns+` ORDER BY transfer_date DESC, number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []TransferOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT item_id, item_group_id, item_name, item_sku, quantity
FROM transfer_order_items WHERE order_id=$1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

type txTransfer struct {
	tx pgx.Tx
}

func (t *txTransfer) GetForUpdate(ctx context.Context, id uuid.UUID) (*TransferOrder, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, orderColumns+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, `SELECT item_id, item_group_id, item_name, item_sku, quantity
FROM transfer_order_items WHERE order_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	order.Items, err = scanItems(rows)
	return order, err
}

func (t *txTransfer) UpdateOrder(ctx context.Context, order *TransferOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE transfer_orders SET number=$2, transfer_date=$3, source_warehouse=$4,
destination_warehouse=$5, updated_at=NOW() WHERE id=$1`,
		order.ID, order.Number, order.Date, order.SourceWarehouse, order.DestinationWarehouse)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateNumber
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txTransfer) SetStatus(ctx context.Context, id uuid.UUID, status Status, appliedAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE transfer_orders SET status=$2, applied_at=COALESCE($3, applied_at),
updated_at=NOW() WHERE id=$1`, id, status, appliedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txTransfer) ReplaceItems(ctx context.Context, id uuid.UUID, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM transfer_order_items WHERE order_id=$1`, id); err != nil {
		return err
	}
	for i, item := range items {
		_, err := t.tx.Exec(ctx, `INSERT INTO transfer_order_items
(order_id, line_no, item_id, item_group_id, item_name, item_sku, quantity)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			id, i+1, nullable(item.ItemID), nullable(item.ItemGroupID), item.ItemName, item.ItemSKU, item.Quantity)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txTransfer) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM transfer_order_items WHERE order_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM transfer_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*TransferOrder, error) {
	var order TransferOrder
	err := row.Scan(&order.ID, &order.Number, &order.Date, &order.SourceWarehouse, &order.DestinationWarehouse,
		&order.Status, &order.AppliedAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var (
			item            Item
			itemID, groupID uuid.NullUUID
		)
		if err := rows.Scan(&itemID, &groupID, &item.ItemName, &item.ItemSKU, &item.Quantity); err != nil {
			return nil, err
		}
		item.ItemID = itemID.UUID
		item.ItemGroupID = groupID.UUID
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullable(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
