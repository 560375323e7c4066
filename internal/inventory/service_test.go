package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/shared"
)

type memoryRepo struct {
	items        map[int64]Item
	quotes       []VendorQuote
	activity     []ActivityMovement
	rows         []MovementRow
	warehouses   map[int64]WarehouseRef
	stores       map[int64]StoreRef
	fallback     *StoreRef
	orders       map[int64]OrderContext
	openRequests int64
	movements    []Movement
	nextID       int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:      make(map[int64]Item),
		warehouses: make(map[int64]WarehouseRef),
		stores:     make(map[int64]StoreRef),
		orders:     make(map[int64]OrderContext),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListActiveItems(ctx context.Context) ([]Item, error) {
	items := make([]Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	return items, nil
}

func (r *memoryRepo) ListVendorQuotes(ctx context.Context) ([]VendorQuote, error) {
	return r.quotes, nil
}

func (r *memoryRepo) ListMovementsBetween(ctx context.Context, from, to time.Time) ([]ActivityMovement, error) {
	var result []ActivityMovement
	for _, movement := range r.activity {
		if movement.CreatedAt.Before(from) || movement.CreatedAt.After(to) {
			continue
		}
		result = append(result, movement)
	}
	return result, nil
}

func (r *memoryRepo) ListMovementRows(ctx context.Context) ([]MovementRow, error) {
	return r.rows, nil
}

func (r *memoryRepo) ListWarehouseNames(ctx context.Context) ([]string, error) {
	var names []string
	for _, wh := range r.warehouses {
		names = append(names, wh.Name)
	}
	return names, nil
}

func (r *memoryRepo) CountOpenRequestsByCode(ctx context.Context, codes []string) (int64, error) {
	return r.openRequests, nil
}

func (r *memoryRepo) GetOrderContext(ctx context.Context, orderID int64) (OrderContext, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return OrderContext{}, fmt.Errorf("order %d: %w", orderID, shared.ErrNotFound)
	}
	return order, nil
}

func (r *memoryRepo) GetWarehouse(ctx context.Context, id int64) (WarehouseRef, error) {
	wh, ok := r.warehouses[id]
	if !ok {
		return WarehouseRef{}, fmt.Errorf("warehouse %d: %w", id, shared.ErrNotFound)
	}
	return wh, nil
}

func (r *memoryRepo) GetStore(ctx context.Context, id int64) (StoreRef, error) {
	store, ok := r.stores[id]
	if !ok {
		return StoreRef{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return store, nil
}

func (r *memoryRepo) FallbackStore(ctx context.Context) (*StoreRef, error) {
	return r.fallback, nil
}

func (t *memoryTx) GetItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	item, ok := t.repo.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return item, nil
}

func (t *memoryTx) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := t.repo.items[item.ID]; !ok {
		return fmt.Errorf("item %d: %w", item.ID, shared.ErrNotFound)
	}
	t.repo.items[item.ID] = item
	return nil
}

func (t *memoryTx) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	t.repo.nextID++
	movement.ID = t.repo.nextID
	t.repo.movements = append(t.repo.movements, movement)
	return movement.ID, nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	})
	return svc
}

func TestApplyMovementOrderCostBasis(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[1] = Item{ID: 1, Code: "MAT-001", Name: "Steel Rod", QtyOnHand: 0}
	total := 50.0
	repo.orders[7] = OrderContext{OrderNo: "PO-7", TotalValue: &total, LineQuantities: []int64{10}}
	svc := newTestService(repo)
	ctx := context.Background()

	orderID := int64(7)
	item, movement, err := svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindIn, Qty: 10, OrderID: &orderID})
	require.NoError(t, err)
	require.Equal(t, int64(10), item.QtyOnHand)
	require.NotNil(t, item.UnitCost)
	require.InDelta(t, 5.00, *item.UnitCost, 0.001)
	require.InDelta(t, 50.00, movement.Value, 0.001)
}

func TestApplyMovementWeightedAverage(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[1] = Item{ID: 1, Code: "MAT-001", Name: "Steel Rod", QtyOnHand: 0}
	firstTotal, secondTotal := 50.0, 150.0
	repo.orders[7] = OrderContext{OrderNo: "PO-7", TotalValue: &firstTotal, LineQuantities: []int64{10}}
	repo.orders[8] = OrderContext{OrderNo: "PO-8", TotalValue: &secondTotal, LineQuantities: []int64{10}}
	svc := newTestService(repo)
	ctx := context.Background()

	first, second := int64(7), int64(8)
	_, _, err := svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindIn, Qty: 10, OrderID: &first})
	require.NoError(t, err)

	item, _, err := svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindIn, Qty: 10, OrderID: &second})
	require.NoError(t, err)
	require.Equal(t, int64(20), item.QtyOnHand)
	require.InDelta(t, 10.00, *item.UnitCost, 0.001)
}

func TestApplyMovementOutClampsToZero(t *testing.T) {
	repo := newMemoryRepo()
	cost := 10.0
	repo.items[1] = Item{ID: 1, Code: "MAT-001", Name: "Steel Rod", QtyOnHand: 20, UnitCost: &cost}
	svc := newTestService(repo)
	ctx := context.Background()

	item, movement, err := svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindOut, Qty: 25})
	require.NoError(t, err)
	require.Equal(t, int64(0), item.QtyOnHand)
	require.InDelta(t, 10.00, *item.UnitCost, 0.001)
	require.InDelta(t, -250.00, movement.Value, 0.001)
}

func TestApplyMovementAdjustSetsAbsoluteQty(t *testing.T) {
	repo := newMemoryRepo()
	cost := 4.0
	repo.items[1] = Item{ID: 1, Code: "MAT-001", Name: "Steel Rod", QtyOnHand: 10, UnitCost: &cost}
	svc := newTestService(repo)
	ctx := context.Background()

	item, movement, err := svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindAdjust, Qty: 4})
	require.NoError(t, err)
	require.Equal(t, int64(4), item.QtyOnHand)
	// ADJUST value covers the delta, not the absolute quantity.
	require.InDelta(t, -24.00, movement.Value, 0.001)
}

func TestApplyMovementAdjustReplacesCost(t *testing.T) {
	repo := newMemoryRepo()
	cost := 4.0
	repo.items[1] = Item{ID: 1, Code: "MAT-001", Name: "Steel Rod", QtyOnHand: 10, UnitCost: &cost}
	total := 90.0
	repo.orders[7] = OrderContext{OrderNo: "PO-7", TotalValue: &total, LineQuantities: []int64{6}}
	svc := newTestService(repo)
	ctx := context.Background()

	// An ADJUST with a usable order-derived cost replaces the stored cost.
	orderID := int64(7)
	item, movement, err := svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindAdjust, Qty: 6, OrderID: &orderID})
	require.NoError(t, err)
	require.Equal(t, int64(6), item.QtyOnHand)
	require.NotNil(t, item.UnitCost)
	require.InDelta(t, 15.00, *item.UnitCost, 0.001)
	require.InDelta(t, -60.00, movement.Value, 0.001)

	// No usable order cost falls back to the current cost and leaves it alone.
	zeroTotal := 0.0
	repo.orders[8] = OrderContext{OrderNo: "PO-8", TotalValue: &zeroTotal}
	secondID := int64(8)
	item, _, err = svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindAdjust, Qty: 3, OrderID: &secondID})
	require.NoError(t, err)
	require.InDelta(t, 15.00, *item.UnitCost, 0.001)
}

func TestApplyMovementOutNeverChangesCost(t *testing.T) {
	repo := newMemoryRepo()
	cost := 7.5
	repo.items[1] = Item{ID: 1, Code: "MAT-001", Name: "Steel Rod", QtyOnHand: 10, UnitCost: &cost}
	svc := newTestService(repo)

	item, _, err := svc.ApplyMovement(context.Background(), MovementInput{ItemID: 1, Kind: KindOut, Qty: 3})
	require.NoError(t, err)
	require.Equal(t, int64(7), item.QtyOnHand)
	require.InDelta(t, 7.5, *item.UnitCost, 0.001)
}

func TestApplyMovementVendorQuoteFallback(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[1] = Item{ID: 1, Code: "mat-001 ", Name: "Steel Rod", QtyOnHand: 0}
	repo.quotes = []VendorQuote{
		{ItemCode: "MAT-001", Price: 10},
		{ItemCode: "mat-001", Price: 20},
	}
	svc := newTestService(repo)

	item, movement, err := svc.ApplyMovement(context.Background(), MovementInput{ItemID: 1, Kind: KindIn, Qty: 4})
	require.NoError(t, err)
	require.InDelta(t, 15.00, *item.UnitCost, 0.001)
	require.InDelta(t, 60.00, movement.Value, 0.001)
}

func TestApplyMovementRejectsInvalidInput(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[1] = Item{ID: 1, Code: "MAT-001", QtyOnHand: 5}
	svc := newTestService(repo)
	ctx := context.Background()

	_, _, err := svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindIn, Qty: 0})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: "TRANSFER", Qty: 5})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, _, err = svc.ApplyMovement(ctx, MovementInput{ItemID: 1, Kind: KindIn, Qty: 5, Ref: "not-a-uuid"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, _, err = svc.ApplyMovement(ctx, MovementInput{ItemID: 42, Kind: KindIn, Qty: 5})
	require.ErrorIs(t, err, ErrItemNotFound)

	// Nothing may be persisted on rejection.
	require.Empty(t, repo.movements)
	require.Equal(t, int64(5), repo.items[1].QtyOnHand)
}

func TestApplyMovementAdoptsDestinationWarehouseAndStore(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[1] = Item{ID: 1, Code: "MAT-001", Name: "Steel Rod", QtyOnHand: 0}
	storeID := int64(30)
	repo.warehouses[2] = WarehouseRef{ID: 2, Name: "Jeddah", StoreID: &storeID}
	repo.stores[30] = StoreRef{ID: 30, Name: "Jeddah Central"}
	svc := newTestService(repo)

	destWarehouse := int64(2)
	item, movement, err := svc.ApplyMovement(context.Background(), MovementInput{
		ItemID:          1,
		Kind:            KindIn,
		Qty:             5,
		DestWarehouseID: &destWarehouse,
	})
	require.NoError(t, err)
	require.NotNil(t, item.WarehouseID)
	require.Equal(t, int64(2), *item.WarehouseID)
	require.Equal(t, "Jeddah", item.WarehouseName)
	require.NotNil(t, item.StoreID)
	require.Equal(t, int64(30), *item.StoreID)
	require.Equal(t, "Jeddah", movement.DestLabel)
}

func TestApplyMovementFallbackStore(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[1] = Item{ID: 1, Code: "MAT-001", QtyOnHand: 0}
	repo.fallback = &StoreRef{ID: 99, Code: "MAIN"}
	svc := newTestService(repo)

	item, _, err := svc.ApplyMovement(context.Background(), MovementInput{ItemID: 1, Kind: KindIn, Qty: 5})
	require.NoError(t, err)
	require.NotNil(t, item.StoreID)
	require.Equal(t, int64(99), *item.StoreID)
	require.Equal(t, "MAIN", item.StoreName)
}

func TestApplyMovementOutKeepsWarehouse(t *testing.T) {
	repo := newMemoryRepo()
	whID := int64(1)
	repo.items[1] = Item{ID: 1, Code: "MAT-001", QtyOnHand: 10, WarehouseID: &whID}
	repo.warehouses[2] = WarehouseRef{ID: 2, Name: "Dammam"}
	svc := newTestService(repo)

	dest := int64(2)
	item, _, err := svc.ApplyMovement(context.Background(), MovementInput{ItemID: 1, Kind: KindOut, Qty: 3, DestWarehouseID: &dest})
	require.NoError(t, err)
	require.Equal(t, int64(1), *item.WarehouseID)
}

func TestApplyMovementRecordsLedgerRow(t *testing.T) {
	repo := newMemoryRepo()
	cost := 2.0
	repo.items[1] = Item{ID: 1, Code: "MAT-001", QtyOnHand: 0, UnitCost: &cost}
	svc := newTestService(repo)

	item, movement, err := svc.ApplyMovement(context.Background(), MovementInput{ItemID: 1, Kind: KindIn, Qty: 3, Note: "receipt"})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)
	require.Equal(t, movement.ID, repo.movements[0].ID)
	require.Equal(t, "receipt", repo.movements[0].Note)
	require.NotNil(t, item.LastMovementAt)
	require.Equal(t, svc.now(), *item.LastMovementAt)
}
