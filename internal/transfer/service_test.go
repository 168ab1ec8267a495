package transfer

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian-stock/internal/movement"
	"github.com/meridian-retail/meridian-stock/internal/shared"
	"github.com/meridian-retail/meridian-stock/internal/warehouse"
)

type memoryOrders struct {
	orders map[uuid.UUID]*TransferOrder
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[uuid.UUID]*TransferOrder)}
}

func (m *memoryOrders) Create(ctx context.Context, order *TransferOrder) error {
	for _, existing := range m.orders {
		if existing.Number == order.Number {
			return ErrDuplicateNumber
		}
	}
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *memoryOrders) Get(ctx context.Context, id uuid.UUID) (*TransferOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (m *memoryOrders) List(ctx context.Context, limit, offset int) ([]TransferOrder, error) {
	var orders []TransferOrder
	for _, order := range m.orders {
		orders = append(orders, *order)
	}
	return orders, nil
}

func (m *memoryOrders) WithTx(ctx context.Context, fn func(context.Context, TxTransfer) error) error {
	return fn(ctx, m)
}

func (m *memoryOrders) GetForUpdate(ctx context.Context, id uuid.UUID) (*TransferOrder, error) {
	return m.Get(ctx, id)
}

func (m *memoryOrders) UpdateOrder(ctx context.Context, order *TransferOrder) error {
	stored, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Number = order.Number
	stored.Date = order.Date
	stored.SourceWarehouse = order.SourceWarehouse
	stored.DestinationWarehouse = order.DestinationWarehouse
	return nil
}

func (m *memoryOrders) SetStatus(ctx context.Context, id uuid.UUID, status Status, appliedAt *time.Time) error {
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	if appliedAt != nil {
		order.AppliedAt = appliedAt
	}
	return nil
}

func (m *memoryOrders) ReplaceItems(ctx context.Context, id uuid.UUID, items []Item) error {
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Items = append([]Item(nil), items...)
	return nil
}

func (m *memoryOrders) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

type engineCall struct {
	kind   string
	source string
	dest   string
	lines  int
}

type fakeEngine struct {
	calls []engineCall
}

func (e *fakeEngine) ApplyTransfer(ctx context.Context, lines []movement.LineItem, source, dest string) movement.Result {
	e.calls = append(e.calls, engineCall{kind: "apply", source: source, dest: dest, lines: len(lines)})
	return movement.Result{Processed: len(lines)}
}

func (e *fakeEngine) ReverseTransfer(ctx context.Context, lines []movement.LineItem, source, dest string) movement.Result {
	e.calls = append(e.calls, engineCall{kind: "reverse", source: source, dest: dest, lines: len(lines)})
	return movement.Result{Processed: len(lines)}
}

type fakeIdem struct {
	claimed map[string]bool
}

func (f *fakeIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	if f.claimed[key] {
		return shared.ErrIdempotencyConflict
	}
	f.claimed[key] = true
	return nil
}

func (f *fakeIdem) Delete(ctx context.Context, key string) error {
	delete(f.claimed, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryOrders, *fakeEngine, *fakeIdem) {
	t.Helper()
	repo := newMemoryOrders()
	engine := &fakeEngine{}
	idem := &fakeIdem{}
	resolver := warehouse.NewResolver(warehouse.DefaultAliases())
	svc := NewService(slog.Default(), repo, resolver, engine, idem, nil)
	return svc, repo, engine, idem
}

func draftInput(number string) CreateInput {
	return CreateInput{
		Number:               number,
		Date:                 time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		SourceWarehouse:      "Kannur Branch",
		DestinationWarehouse: "Edapally Branch",
		Items:                []Item{{ItemID: uuid.New(), Quantity: 5}},
	}
}

func TestCreateDefaultsToDraft(t *testing.T) {
	svc, _, engine, _ := newTestService(t)

	order, err := svc.Create(context.Background(), draftInput("TO-001"))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, order.Status)
	require.Empty(t, engine.calls, "creation never moves stock")
}

func TestCreateCanonicalizesWarehouses(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	in := draftInput("TO-001")
	in.SourceWarehouse = "G.Kannur"
	order, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "Kannur Branch", order.SourceWarehouse)
}

func TestCreateRejectsSameWarehouse(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	in := draftInput("TO-001")
	in.SourceWarehouse = "G.Kannur"
	in.DestinationWarehouse = "Kannur Branch"
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrSameWarehouse)
}

func TestCreateRejectsTransferredStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	in := draftInput("TO-001")
	in.Status = StatusTransferred
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestTransitionMetadataOnly(t *testing.T) {
	svc, _, engine, _ := newTestService(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, draftInput("TO-001"))
	require.NoError(t, err)

	result, err := svc.Transition(ctx, order.ID, StatusInTransit)
	require.NoError(t, err)
	require.False(t, result.Moved)
	require.Equal(t, StatusInTransit, result.Order.Status)
	require.Empty(t, engine.calls)
}

func TestTransitionToTransferredAppliesOnce(t *testing.T) {
	svc, _, engine, _ := newTestService(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, draftInput("TO-001"))
	require.NoError(t, err)

	result, err := svc.Transition(ctx, order.ID, StatusTransferred)
	require.NoError(t, err)
	require.True(t, result.Moved)
	require.Equal(t, 1, result.Summary.Processed)
	require.NotNil(t, result.Order.AppliedAt)
	require.Len(t, engine.calls, 1)
	require.Equal(t, engineCall{kind: "apply", source: "Kannur Branch", dest: "Edapally Branch", lines: 1}, engine.calls[0])

	_, err = svc.Transition(ctx, order.ID, StatusTransferred)
	require.ErrorIs(t, err, ErrAlreadyTransferred)
	require.Len(t, engine.calls, 1, "re-saving a transferred order must not re-apply")
}

func TestTransferredOrderNeverReappliesAfterStatusEdit(t *testing.T) {
	svc, _, engine, _ := newTestService(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, draftInput("TO-001"))
	require.NoError(t, err)

	_, err = svc.Transition(ctx, order.ID, StatusTransferred)
	require.NoError(t, err)

	// Dropping back to draft touches metadata only, AppliedAt stays set.
	result, err := svc.Transition(ctx, order.ID, StatusDraft)
	require.NoError(t, err)
	require.False(t, result.Moved)
	require.NotNil(t, result.Order.AppliedAt)

	_, err = svc.Transition(ctx, order.ID, StatusTransferred)
	require.ErrorIs(t, err, ErrAlreadyTransferred)
	require.Len(t, engine.calls, 1)
}

func TestIdempotencyKeyGuardsTransition(t *testing.T) {
	svc, _, engine, idem := newTestService(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, draftInput("TO-001"))
	require.NoError(t, err)

	// A stale claim, as left behind by a restored database row.
	require.NoError(t, idem.CheckAndInsert(ctx, claimKey(order.ID), "transfer"))

	_, err = svc.Transition(ctx, order.ID, StatusTransferred)
	require.ErrorIs(t, err, ErrAlreadyTransferred)
	require.Empty(t, engine.calls)
}

func TestUpdateRejectedWhenTransferred(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, draftInput("TO-001"))
	require.NoError(t, err)
	_, err = svc.Transition(ctx, order.ID, StatusTransferred)
	require.NoError(t, err)

	_, err = svc.Update(ctx, order.ID, UpdateInput{
		Number:               "TO-001",
		Date:                 order.Date,
		SourceWarehouse:      order.SourceWarehouse,
		DestinationWarehouse: order.DestinationWarehouse,
		Items:                []Item{{ItemID: uuid.New(), Quantity: 9}},
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestDeleteDraftDoesNotTouchStock(t *testing.T) {
	svc, repo, engine, _ := newTestService(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, draftInput("TO-001"))
	require.NoError(t, err)

	result, err := svc.Delete(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, result.Moved)
	require.Empty(t, engine.calls)
	require.Empty(t, repo.orders)
}

func TestDeleteTransferredReversesMovement(t *testing.T) {
	svc, repo, engine, idem := newTestService(t)
	ctx := context.Background()
	order, err := svc.Create(ctx, draftInput("TO-001"))
	require.NoError(t, err)
	_, err = svc.Transition(ctx, order.ID, StatusTransferred)
	require.NoError(t, err)

	result, err := svc.Delete(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, result.Moved)
	require.Len(t, engine.calls, 2)
	require.Equal(t, engineCall{kind: "reverse", source: "Kannur Branch", dest: "Edapally Branch", lines: 1}, engine.calls[1])
	require.Empty(t, repo.orders)
	require.False(t, idem.claimed[claimKey(order.ID)], "claim released so a recreated order may transfer")
}

func TestTransitionUnknownStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Transition(context.Background(), uuid.New(), Status("shipped"))
	require.ErrorIs(t, err, ErrInvalidStatus)
}
