package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian-stock/internal/ledger"
	"github.com/meridian-retail/meridian-stock/internal/platform/db"
)

// TxCatalog exposes the catalog operations available inside one transaction.
// The locator and the movement engine only ever see this interface.
type TxCatalog interface {
	GetStandaloneItem(ctx context.Context, id uuid.UUID) (*StandaloneItem, error)
	GetGroupItem(ctx context.Context, groupID, itemID uuid.UUID) (*GroupItem, error)
	FindGroupItemByID(ctx context.Context, itemID uuid.UUID) (*GroupItem, error)
	FindGroupItemBySKU(ctx context.Context, groupID uuid.UUID, sku string) (*GroupItem, error)
	FindGroupItemByName(ctx context.Context, groupID uuid.UUID, name string) (*GroupItem, error)
	FindGroupItemByNameAcrossGroups(ctx context.Context, name string) (*GroupItem, error)

	// LockStockEntries reads an item's stock entries under FOR UPDATE so the
	// locate-then-mutate sequence of one line item is serialized end to end.
	LockStockEntries(ctx context.Context, itemID uuid.UUID) ([]ledger.WarehouseStockEntry, error)
	// SaveStockEntry upserts one entry. prevWarehouse names the row the entry
	// was loaded from; it differs from entry.Warehouse when the canonical
	// label heals a legacy spelling, and is empty for brand new entries.
	SaveStockEntry(ctx context.Context, itemID uuid.UUID, prevWarehouse string, entry ledger.WarehouseStockEntry) error
}

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxCatalog) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txCatalog{tx: tx})
	})
}

// View runs fn inside a read-only transaction.
func (r *Repository) View(ctx context.Context, fn func(context.Context, TxCatalog) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.View(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txCatalog{tx: tx})
	})
}

// CreateGroup inserts an item group.
func (r *Repository) CreateGroup(ctx context.Context, group ItemGroup) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO item_groups (id, name, status, created_at) VALUES ($1,$2,$3,NOW())`,
		group.ID, group.Name, group.Status)
	return err
}

// CreateStandaloneItem inserts an item that owns its own document.
func (r *Repository) CreateStandaloneItem(ctx context.Context, item StandaloneItem) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO items (id, group_id, name, sku, reorder_point, status, created_at)
VALUES ($1,NULL,$2,$3,$4,$5,NOW())`, item.ID, item.Name, item.SKU, item.ReorderPoint, item.Status)
	return err
}

// CreateGroupItem inserts an item nested inside a group.
func (r *Repository) CreateGroupItem(ctx context.Context, item GroupItem) error {
	tag, err := r.pool.Exec(ctx, `INSERT INTO items (id, group_id, name, sku, reorder_point, status, created_at)
SELECT $1, g.id, $3, $4, $5, 'active', NOW() FROM item_groups g WHERE g.id=$2`,
		item.ID, item.GroupID, item.Name, item.SKU, item.ReorderPoint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// ListStockEntries reads an item's entries without locking, for read paths.
func (r *Repository) ListStockEntries(ctx context.Context, itemID uuid.UUID) ([]ledger.WarehouseStockEntry, error) {
	rows, err := r.pool.Query(ctx, stockEntryColumns+` FROM stock_entries WHERE item_id=$1 ORDER BY warehouse`, itemID)
	if err != nil {
		return nil, err
	}
	return scanStockEntries(rows)
}

type txCatalog struct {
	tx pgx.Tx
}

const standaloneColumns = `SELECT i.id, i.name, i.sku, i.reorder_point, i.status`

func (c *txCatalog) GetStandaloneItem(ctx context.Context, id uuid.UUID) (*StandaloneItem, error) {
	var item StandaloneItem
	err := c.tx.QueryRow(ctx, standaloneColumns+` FROM items i WHERE i.id=$1 AND i.group_id IS NULL`, id).
		Scan(&item.ID, &item.Name, &item.SKU, &item.ReorderPoint, &item.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

const groupItemColumns = `SELECT i.id, i.name, i.sku, i.reorder_point, g.id, g.name
FROM items i JOIN item_groups g ON g.id = i.group_id`

func (c *txCatalog) GetGroupItem(ctx context.Context, groupID, itemID uuid.UUID) (*GroupItem, error) {
	return c.scanGroupItem(c.tx.QueryRow(ctx, groupItemColumns+` WHERE i.group_id=$1 AND i.id=$2`, groupID, itemID))
}

func (c *txCatalog) FindGroupItemByID(ctx context.Context, itemID uuid.UUID) (*GroupItem, error) {
	return c.scanGroupItem(c.tx.QueryRow(ctx, groupItemColumns+` WHERE i.id=$1 AND g.status=$2`, itemID, GroupStatusActive))
}

func (c *txCatalog) FindGroupItemBySKU(ctx context.Context, groupID uuid.UUID, sku string) (*GroupItem, error) {
	return c.scanGroupItem(c.tx.QueryRow(ctx, groupItemColumns+` WHERE i.group_id=$1 AND lower(i.sku)=lower($2)
ORDER BY i.id LIMIT 1`, groupID, sku))
}

func (c *txCatalog) FindGroupItemByName(ctx context.Context, groupID uuid.UUID, name string) (*GroupItem, error) {
	return c.scanGroupItem(c.tx.QueryRow(ctx, groupItemColumns+` WHERE i.group_id=$1 AND lower(i.name)=lower($2)
ORDER BY i.id LIMIT 1`, groupID, name))
}

func (c *txCatalog) FindGroupItemByNameAcrossGroups(ctx context.Context, name string) (*GroupItem, error) {
	return c.scanGroupItem(c.tx.QueryRow(ctx, groupItemColumns+` WHERE g.status=$2 AND lower(i.name)=lower($1)
ORDER BY g.name, i.id LIMIT 1`, name, GroupStatusActive))
}

func (c *txCatalog) scanGroupItem(row pgx.Row) (*GroupItem, error) {
	var item GroupItem
	err := row.Scan(&item.ID, &item.Name, &item.SKU, &item.ReorderPoint, &item.GroupID, &item.GroupName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

const stockEntryColumns = `SELECT warehouse, opening_stock, opening_stock_value, stock_on_hand, committed_stock,
available_for_sale, physical_opening_stock, physical_stock_on_hand, physical_committed_stock,
physical_available_for_sale, monthly`

func (c *txCatalog) LockStockEntries(ctx context.Context, itemID uuid.UUID) ([]ledger.WarehouseStockEntry, error) {
	rows, err := c.tx.Query(ctx, stockEntryColumns+` FROM stock_entries WHERE item_id=$1 ORDER BY warehouse FOR UPDATE`, itemID)
	if err != nil {
		return nil, err
	}
	return scanStockEntries(rows)
}

func (c *txCatalog) SaveStockEntry(ctx context.Context, itemID uuid.UUID, prevWarehouse string, entry ledger.WarehouseStockEntry) error {
	monthly, err := json.Marshal(entry.MonthlyOpeningStock)
	if err != nil {
		return fmt.Errorf("catalog: encode monthly snapshots: %w", err)
	}
	if prevWarehouse != "" && prevWarehouse != entry.Warehouse {
		// Canonical label healing renames the row in place.
		tag, err := c.tx.Exec(ctx, `UPDATE stock_entries SET warehouse=$3, opening_stock=$4, opening_stock_value=$5,
stock_on_hand=$6, committed_stock=$7, available_for_sale=$8, physical_opening_stock=$9, physical_stock_on_hand=$10,
physical_committed_stock=$11, physical_available_for_sale=$12, monthly=$13, updated_at=NOW()
WHERE item_id=$1 AND warehouse=$2`,
			itemID, prevWarehouse, entry.Warehouse, entry.OpeningStock, entry.OpeningStockValue,
			entry.StockOnHand, entry.CommittedStock, entry.AvailableForSale, entry.PhysicalOpeningStock,
			entry.PhysicalStockOnHand, entry.PhysicalCommittedStock, entry.PhysicalAvailableForSale, monthly)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
	}
	_, err = c.tx.Exec(ctx, `INSERT INTO stock_entries (item_id, warehouse, opening_stock, opening_stock_value,
stock_on_hand, committed_stock, available_for_sale, physical_opening_stock, physical_stock_on_hand,
physical_committed_stock, physical_available_for_sale, monthly, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
ON CONFLICT (item_id, warehouse) DO UPDATE SET opening_stock=EXCLUDED.opening_stock,
opening_stock_value=EXCLUDED.opening_stock_value, stock_on_hand=EXCLUDED.stock_on_hand,
committed_stock=EXCLUDED.committed_stock, available_for_sale=EXCLUDED.available_for_sale,
physical_opening_stock=EXCLUDED.physical_opening_stock, physical_stock_on_hand=EXCLUDED.physical_stock_on_hand,
physical_committed_stock=EXCLUDED.physical_committed_stock,
physical_available_for_sale=EXCLUDED.physical_available_for_sale, monthly=EXCLUDED.monthly, updated_at=NOW()`,
		itemID, entry.Warehouse, entry.OpeningStock, entry.OpeningStockValue, entry.StockOnHand,
		entry.CommittedStock, entry.AvailableForSale, entry.PhysicalOpeningStock, entry.PhysicalStockOnHand,
		entry.PhysicalCommittedStock, entry.PhysicalAvailableForSale, monthly)
	return err
}

func scanStockEntries(rows pgx.Rows) ([]ledger.WarehouseStockEntry, error) {
	defer rows.Close()
	var entries []ledger.WarehouseStockEntry
	for rows.Next() {
		var entry ledger.WarehouseStockEntry
		var monthly []byte
		if err := rows.Scan(&entry.Warehouse, &entry.OpeningStock, &entry.OpeningStockValue, &entry.StockOnHand,
			&entry.CommittedStock, &entry.AvailableForSale, &entry.PhysicalOpeningStock, &entry.PhysicalStockOnHand,
			&entry.PhysicalCommittedStock, &entry.PhysicalAvailableForSale, &monthly); err != nil {
			return nil, err
		}
		if len(monthly) > 0 {
			if err := json.Unmarshal(monthly, &entry.MonthlyOpeningStock); err != nil {
				return nil, fmt.Errorf("catalog: decode monthly snapshots: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
