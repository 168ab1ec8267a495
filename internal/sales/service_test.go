package sales

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-stock/internal/movement"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

type memoryInvoices struct {
	invoices map[uuid.UUID]*Invoice
}

func newMemoryInvoices() *memoryInvoices {
	return &memoryInvoices{invoices: make(map[uuid.UUID]*Invoice)}
}

func (m *memoryInvoices) Create(ctx context.Context, invoice *Invoice) error {
	for _, existing := range m.invoices {
		if existing.Number == invoice.Number {
			return ErrDuplicateNumber
		}
	}
	clone := *invoice
	m.invoices[invoice.ID] = &clone
	return nil
}

func (m *memoryInvoices) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	invoice, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *invoice
	return &clone, nil
}

func (m *memoryInvoices) List(ctx context.Context, limit, offset int) ([]Invoice, error) {
	var invoices []Invoice
	for _, invoice := range m.invoices {
		invoices = append(invoices, *invoice)
	}
	return invoices, nil
}

func (m *memoryInvoices) WithTx(ctx context.Context, fn func(context.Context, TxSales) error) error {
	return fn(ctx, m)
}

func (m *memoryInvoices) GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return m.Get(ctx, id)
}

func (m *memoryInvoices) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

type saleCall struct {
	kind      string
	warehouse string
	lines     int
}

type fakeEngine struct {
	calls []saleCall
}

func (e *fakeEngine) ApplySale(ctx context.Context, lines []movement.LineItem, label string) movement.Result {
	e.calls = append(e.calls, saleCall{kind: "apply", warehouse: label, lines: len(lines)})
	return movement.Result{Processed: len(lines)}
}

func (e *fakeEngine) ReverseSale(ctx context.Context, lines []movement.LineItem, label string) movement.Result {
	e.calls = append(e.calls, saleCall{kind: "reverse", warehouse: label, lines: len(lines)})
	return movement.Result{Processed: len(lines)}
}

func newTestService(t *testing.T) (*Service, *memoryInvoices, *fakeEngine) {
	t.Helper()
	repo := newMemoryInvoices()
	engine := &fakeEngine{}
	resolver := warehouse.NewResolver(warehouse.DefaultAliases())
	svc := NewService(slog.Default(), repo, resolver, engine, nil, Config{
		DefaultWarehouses: map[string]string{"manager": "Main Warehouse", "kannur-sales": "G.Kannur"},
	})
	return svc, repo, engine
}

func invoiceInput(category Category, label string) CreateInput {
	return CreateInput{
		Number:    "INV-001",
		Date:      time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Warehouse: label,
		Category:  category,
		Items:     []Item{{ItemID: uuid.New(), Quantity: 2}},
	}
}

func TestCreateAppliesSale(t *testing.T) {
	svc, _, engine := newTestService(t)

	result, err := svc.Create(context.Background(), invoiceInput(CategorySale, "Edapally Branch"))
	require.NoError(t, err)
	require.True(t, result.Moved)
	require.NotNil(t, result.Invoice.AppliedAt)
	require.Equal(t, []saleCall{{kind: "apply", warehouse: "Edapally Branch", lines: 1}}, engine.calls)
}

func TestReturnInvoiceAddsStockBack(t *testing.T) {
	svc, _, engine := newTestService(t)

	_, err := svc.Create(context.Background(), invoiceInput(CategoryReturn, "Edapally Branch"))
	require.NoError(t, err)
	require.Equal(t, "reverse", engine.calls[0].kind)
}

func TestRoleDefaultWarehouse(t *testing.T) {
	svc, _, engine := newTestService(t)

	in := invoiceInput(CategorySale, "")
	in.Role = "kannur-sales"
	result, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "Kannur Branch", result.Invoice.Warehouse, "role default resolved through the alias table")
	require.Equal(t, "Kannur Branch", engine.calls[0].warehouse)
}

func TestNoWarehouseAndNoDefault(t *testing.T) {
	svc, _, engine := newTestService(t)

	in := invoiceInput(CategorySale, "")
	in.Role = "cashier"
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrNoWarehouse)
	require.Empty(t, engine.calls)
}

func TestDeleteReversesAtStoredWarehouse(t *testing.T) {
	svc, repo, engine := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, invoiceInput(CategorySale, "G.Kannur"))
	require.NoError(t, err)

	result, err := svc.Delete(ctx, created.Invoice.ID)
	require.NoError(t, err)
	require.True(t, result.Moved)
	require.Len(t, engine.calls, 2)
	require.Equal(t, saleCall{kind: "reverse", warehouse: "Kannur Branch", lines: 1}, engine.calls[1])
	require.Empty(t, repo.invoices)
}

func TestDeleteReturnInvoiceSubtracts(t *testing.T) {
	svc, _, engine := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, invoiceInput(CategoryRefund, "Edapally Branch"))
	require.NoError(t, err)

	_, err = svc.Delete(ctx, created.Invoice.ID)
	require.NoError(t, err)
	require.Equal(t, "apply", engine.calls[1].kind, "deleting a refund takes the returned stock out again")
}

func TestCreateUnknownCategory(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := invoiceInput(Category("exchange"), "Edapally Branch")
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidCategory)
}
