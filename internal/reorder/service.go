package reorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian-stock/internal/catalog"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

// CatalogPort abstracts the catalog repository for the scanner.
type CatalogPort interface {
	WithTx(ctx context.Context, fn func(context.Context, catalog.TxCatalog) error) error
}

// LocatorPort resolves item references.
type LocatorPort interface {
	Locate(ctx context.Context, tx catalog.TxCatalog, ref catalog.ItemRef) (catalog.StockBearing, error)
}

// AlertStore persists alerts.
type AlertStore interface {
	CreateIfAbsent(ctx context.Context, alert Alert) (bool, error)
	Resolve(ctx context.Context, itemID uuid.UUID, warehouse string) error
}

// MailerPort dispatches the notification for a freshly created alert.
type MailerPort interface {
	SendReorderAlert(ctx context.Context, alert Alert) error
}

// Scanner checks sold items against their reorder points. It runs on the
// worker, decoupled from the sale that enqueued it; any failure here is
// logged and dropped, never surfaced to the seller.
type Scanner struct {
	logger   *slog.Logger
	catalog  CatalogPort
	locator  LocatorPort
	resolver *warehouse.Resolver
	alerts   AlertStore
	mailer   MailerPort
}

// NewScanner constructs the scanner. mailer may be nil.
func NewScanner(logger *slog.Logger, cat CatalogPort, locator LocatorPort, resolver *warehouse.Resolver,
	alerts AlertStore, mailer MailerPort) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger, catalog: cat, locator: locator, resolver: resolver, alerts: alerts, mailer: mailer}
}

// Scan checks each referenced item's available stock at the warehouse. At or
// below the reorder point it opens a deduplicated alert; back above it, any
// open alert is resolved.
func (s *Scanner) Scan(ctx context.Context, refs []catalog.ItemRef, warehouseLabel string) error {
	canonical := s.resolver.Canonicalize(warehouseLabel)
	for _, ref := range refs {
		if err := s.scanOne(ctx, ref, canonical); err != nil {
			s.logger.Warn("reorder scan item failed",
				slog.String("item", ref.String()),
				slog.String("warehouse", canonical),
				slog.Any("error", err))
		}
	}
	return nil
}

func (s *Scanner) scanOne(ctx context.Context, ref catalog.ItemRef, canonical string) error {
	var (
		item      catalog.StockBearing
		available float64
		found     bool
	)
	err := s.catalog.WithTx(ctx, func(ctx context.Context, tx catalog.TxCatalog) error {
		located, err := s.locator.Locate(ctx, tx, ref)
		if err != nil {
			return err
		}
		entries, err := tx.LockStockEntries(ctx, located.Key().ItemID)
		if err != nil {
			return err
		}
		item = located
		for i := range entries {
			if s.resolver.Same(entries[i].Warehouse, canonical) {
				available = entries[i].AvailableForSale
				found = true
				break
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	level := item.ReorderLevel()
	if level <= 0 {
		return nil
	}
	itemID := item.Key().ItemID
	if available > level {
		return s.alerts.Resolve(ctx, itemID, canonical)
	}

	alert := Alert{
		ID:               uuid.New(),
		ItemID:           itemID,
		ItemName:         item.Label(),
		Warehouse:        canonical,
		AvailableForSale: available,
		ReorderLevel:     level,
		Status:           StatusOpen,
	}
	created, err := s.alerts.CreateIfAbsent(ctx, alert)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	s.logger.Info("reorder alert opened",
		slog.String("item", alert.ItemName),
		slog.String("warehouse", alert.Warehouse),
		slog.Float64("available", alert.AvailableForSale),
		slog.Float64("reorder_level", alert.ReorderLevel))
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendReorderAlert(ctx, alert); err != nil {
		return fmt.Errorf("reorder: dispatch alert mail: %w", err)
	}
	return nil
}
