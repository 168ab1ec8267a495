package purchase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-stock/internal/platform/db"
)

// TxPurchase exposes the receive operations available inside one transaction.
type TxPurchase interface {
	// GetForUpdate loads the receive and its items with the receive row
	// locked, so concurrent saves of one document serialize.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*PurchaseReceive, error)
	UpdateReceive(ctx context.Context, receive *PurchaseReceive) error
	ReplaceItems(ctx context.Context, id uuid.UUID, items []Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository persists purchase receives in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxPurchase) error) error {
	if r == nil {
		return errors.New("purchase repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txPurchase{tx: tx})
	})
}

// Create inserts the receive and its items.
func (r *Repository) Create(ctx context.Context, receive *PurchaseReceive) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxPurchase) error {
		t := tx.(*txPurchase)
		_, err := t.tx.Exec(ctx, `INSERT INTO purchase_receives
(id, number, receive_date, warehouse, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())`,
			receive.ID, receive.Number, receive.Date, receive.Warehouse, receive.Status)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateNumber
			}
			return err
		}
		return t.ReplaceItems(ctx, receive.ID, receive.Items)
	})
}

const receiveColumns = `SELECT id, number, receive_date, warehouse, status, created_at, updated_at
FROM purchase_receives`

// Get loads one receive with its items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*PurchaseReceive, error) {
	receive, err := scanReceive(r.pool.QueryRow(ctx, receiveColumns+` WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	receive.Items, err = scanItems(rows)
	return receive, err
}

// List returns receives newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]PurchaseReceive, error) {
	rows, err := r.pool.Query(ctx, receiveColumns+` ORDER BY receive_date DESC, number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receives []PurchaseReceive
	for rows.Next() {
		receive, err := scanReceive(rows)
		if err != nil {
			return nil, err
		}
		receives = append(receives, *receive)
	}
	return receives, rows.Err()
}

const itemQuery = `SELECT item_id, item_group_id, item_name, item_sku, ordered, received, applied_received
FROM purchase_receive_items WHERE receive_id=$1 ORDER BY line_no`

type txPurchase struct {
	tx pgx.Tx
}

func (t *txPurchase) GetForUpdate(ctx context.Context, id uuid.UUID) (*PurchaseReceive, error) {
	receive, err := scanReceive(t.tx.QueryRow(ctx, receiveColumns+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	receive.Items, err = scanItems(rows)
	return receive, err
}

func (t *txPurchase) UpdateReceive(ctx context.Context, receive *PurchaseReceive) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_receives SET number=$2, receive_date=$3, warehouse=$4, status=$5,
updated_at=NOW() WHERE id=$1`, receive.ID, receive.Number, receive.Date, receive.Warehouse, receive.Status)
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

func (t *txPurchase) ReplaceItems(ctx context.Context, id uuid.UUID, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_receive_items WHERE receive_id=$1`, id); err != nil {
		return err
	}
	for i, item := range items {
		_, err := t.tx.Exec(ctx, `INSERT INTO purchase_receive_items
(receive_id, line_no, item_id, item_group_id, item_name, item_sku, ordered, received, applied_received)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			id, i+1, nullable(item.ItemID), nullable(item.ItemGroupID), item.ItemName, item.ItemSKU,
			item.Ordered, item.Received, item.AppliedReceived)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txPurchase) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_receive_items WHERE receive_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_receives WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReceive(row pgx.Row) (*PurchaseReceive, error) {
	var receive PurchaseReceive
	err := row.Scan(&receive.ID, &receive.Number, &receive.Date, &receive.Warehouse, &receive.Status,
		&receive.CreatedAt, &receive.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &receive, nil
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var (
			item            Item
			itemID, groupID uuid.NullUUID
		)
		if err := rows.Scan(&itemID, &groupID, &item.ItemName, &item.ItemSKU,
			&item.Ordered, &item.Received, &item.AppliedReceived); err != nil {
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
