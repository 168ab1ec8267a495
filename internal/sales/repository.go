package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-stock/internal/platform/db"
)

// TxSales exposes the invoice operations available inside one transaction.
type TxSales interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository persists sales invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxSales) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txSales{tx: tx})
	})
}

// Create inserts the invoice and its items.
func (r *Repository) Create(ctx context.Context, invoice *Invoice) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxSales) error {
		t := tx.(*txSales)
		_, err := t.tx.Exec(ctx, `INSERT INTO sales_invoices
(id, number, invoice_date, role, warehouse, category, applied_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())`,
			invoice.ID, invoice.Number, invoice.Date, invoice.Role, invoice.Warehouse, invoice.Category, invoice.AppliedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateNumber
			}
			return err
		}
		for i, item := range invoice.Items {
			_, err := t.tx.Exec(ctx, `INSERT INTO sales_invoice_items
(invoice_id, line_no, item_id, item_group_id, item_name, item_sku, quantity)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				invoice.ID, i+1, nullable(item.ItemID), nullable(item.ItemGroupID),
				item.ItemName, item.ItemSKU, item.Quantity)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

const invoiceColumns = `SELECT id, number, invoice_date, role, warehouse, category, applied_at, created_at, updated_at
FROM sales_invoices`

const itemQuery = `SELECT item_id, item_group_id, item_name, item_sku, quantity
FROM sales_invoice_items WHERE invoice_id=$1 ORDER BY line_no`

// Get loads one invoice with its items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	invoice, err := scanInvoice(r.pool.QueryRow(ctx, invoiceColumns+` WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	invoice.Items, err = scanItems(rows)
	return invoice, err
}

// List returns invoices newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, invoiceColumns+` ORDER BY invoice_date DESC, number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, rows.Err()
}

type txSales struct {
	tx pgx.Tx
}

func (t *txSales) GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	invoice, err := scanInvoice(t.tx.QueryRow(ctx, invoiceColumns+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	invoice.Items, err = scanItems(rows)
	return invoice, err
}

func (t *txSales) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM sales_invoice_items WHERE invoice_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM sales_invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var invoice Invoice
	err := row.Scan(&invoice.ID, &invoice.Number, &invoice.Date, &invoice.Role, &invoice.Warehouse,
		&invoice.Category, &invoice.AppliedAt, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
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
