package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func metricsFixture() Snapshot {
	age := 90
	fresh := 5
	return Snapshot{
		Items: []ItemMetrics{
			{ID: 1, Code: "MAT-001", Name: "Steel Rod", Category: "Raw", WarehouseName: "Riyadh", StoreName: "Main", QtyOnHand: 10, ReorderPoint: 20, UnitCost: 4, Value: 40, Status: StatusLowStock, AgeDays: &age},
			{ID: 2, Code: "MAT-002", Name: "Copper Wire", Category: "Raw", WarehouseName: "Jeddah", StoreName: "Main", QtyOnHand: 0, ReorderPoint: 10, UnitCost: 8, Value: 0, Status: StatusOutOfStock},
			{ID: 3, Code: "MAT-003", Name: "Cement Bag", Category: "Construction", WarehouseName: "Dammam", StoreName: "South", QtyOnHand: 200, ReorderPoint: 0, UnitCost: 2, Value: 400, Status: StatusInStock, AgeDays: &fresh},
			{ID: 4, Code: "MAT-004", Name: "Paint Can", Category: "Finishing", WarehouseName: "Riyadh", StoreName: "Main", QtyOnHand: 40, ReorderPoint: 20, UnitCost: 10, Value: 400, Status: StatusInStock},
		},
		CostByItemID: map[int64]float64{1: 4, 2: 8, 3: 2, 4: 10},
	}
}

func TestBuildKPIs(t *testing.T) {
	payload := buildKPIs(metricsFixture())

	require.Equal(t, int64(4), payload.TotalItems)
	require.Equal(t, int64(1), payload.LowStock)
	require.Equal(t, int64(1), payload.OutOfStock)
	require.InDelta(t, 840.00, payload.InventoryValue, 0.001)

	require.Len(t, payload.Stores, 2)
	// Sorted by value descending: Main (440) before South (400).
	require.Equal(t, "Main", payload.Stores[0].Store)
	require.InDelta(t, 440.00, payload.Stores[0].Value, 0.001)
	require.Equal(t, int64(3), payload.Stores[0].Items)
	require.Equal(t, "South", payload.Stores[1].Store)
}

func TestBuildKPIsEmptySnapshot(t *testing.T) {
	payload := buildKPIs(Snapshot{})
	require.Equal(t, int64(0), payload.TotalItems)
	require.Empty(t, payload.Stores)
	require.InDelta(t, 0, payload.InventoryValue, 0.001)
}

func TestBuildStockHealthAndStatus(t *testing.T) {
	snap := metricsFixture()

	health := buildStockHealth(snap)
	require.Equal(t, []NameValue{
		{Name: "Low Stock", Value: 1},
		{Name: "Out of Stock", Value: 1},
	}, health)

	status := buildStockStatus(snap)
	require.Equal(t, []NameValue{
		{Name: "In Stock", Value: 2},
		{Name: "Low Stock", Value: 1},
		{Name: "Out of Stock", Value: 1},
	}, status)
}

func TestBuildItemsByWarehouseCanonicalOrder(t *testing.T) {
	payload := buildItemsByWarehouse(metricsFixture())
	require.Equal(t, []string{"Riyadh", "Jeddah", "Dammam"}, payload.Categories)
	require.Equal(t, []float64{2, 1, 1}, payload.Series[0].Data)
	require.Equal(t, "Items", payload.Series[0].Name)
}

func TestWarehouseSortFallsBackAlphabetical(t *testing.T) {
	names, _ := sortedWarehouseSeries(map[string]float64{
		"Zulf":   1,
		"Abha":   1,
		"dammam": 1,
	})
	require.Equal(t, []string{"dammam", "Abha", "Zulf"}, names)
}

func TestBuildValueByCategory(t *testing.T) {
	payload := buildValueByCategory(metricsFixture())
	require.Equal(t, []string{"Construction", "Finishing", "Raw"}, payload.Categories)
	require.Equal(t, []float64{400, 400, 40}, payload.Series[0].Data)
}

func TestBuildCriticalKPIs(t *testing.T) {
	payload := buildCriticalKPIs(metricsFixture())
	require.Equal(t, int64(2), payload.CriticalItems)
	require.Equal(t, int64(1), payload.CriticalOOS)
	require.Equal(t, int64(1), payload.CriticalLow)
}

func TestCriticalKPIsLinkedRequests(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[1] = Item{ID: 1, Code: "MAT-001", QtyOnHand: 0, ReorderPoint: 5}
	repo.openRequests = 3
	svc := newTestService(repo)

	payload, err := svc.CriticalKPIs(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), payload.CriticalItems)
	require.Equal(t, int64(3), payload.LinkedRequests)
}

func TestSlowAndExcessFlags(t *testing.T) {
	age := 60
	young := 10
	require.True(t, isSlowMoving(ItemMetrics{QtyOnHand: 1, AgeDays: &age}))
	require.True(t, isSlowMoving(ItemMetrics{QtyOnHand: 1}))
	require.False(t, isSlowMoving(ItemMetrics{QtyOnHand: 0}))
	require.False(t, isSlowMoving(ItemMetrics{QtyOnHand: 1, AgeDays: &young}))

	require.True(t, isExcessStock(ItemMetrics{QtyOnHand: 31, ReorderPoint: 20}))
	require.False(t, isExcessStock(ItemMetrics{QtyOnHand: 30, ReorderPoint: 20}))
	require.True(t, isExcessStock(ItemMetrics{QtyOnHand: 100}))
	require.False(t, isExcessStock(ItemMetrics{QtyOnHand: 99}))
	require.False(t, isExcessStock(ItemMetrics{QtyOnHand: 0}))
}

func TestBuildSlowExcessKPIs(t *testing.T) {
	payload := buildSlowExcessKPIs(metricsFixture())
	// Slow: item 1 (age 90) and item 4 (never moved).
	require.Equal(t, int64(2), payload.SlowCount)
	require.InDelta(t, 440.00, payload.SlowValue, 0.001)
	// Excess: item 3 (no reorder, qty >= 100) and item 4 (40 > 20*1.5).
	require.Equal(t, int64(2), payload.ExcessCount)
	require.InDelta(t, 800.00, payload.ExcessValue, 0.001)
}

func TestBuildTopSlowMoving(t *testing.T) {
	payload := buildTopSlowMoving(metricsFixture(), 1)
	require.Equal(t, []string{"Paint Can"}, payload.Categories)
	require.Equal(t, []float64{400}, payload.Series[0].Data)
}

func TestAggregatorsEmptyInputNoError(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	kpis, err := svc.KPIs(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), kpis.TotalItems)

	health, err := svc.StockHealth(ctx)
	require.NoError(t, err)
	require.Len(t, health, 2)

	critical, err := svc.CriticalKPIs(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), critical.CriticalItems)

	slow, err := svc.SlowExcessKPIs(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), slow.SlowCount)

	activity, err := svc.ActivityKPIs(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), activity.InboundToday)

	_, err = svc.RecentMovements(ctx, MovementQuery{})
	require.NoError(t, err)
}

func TestSnapshotAgeBoundary(t *testing.T) {
	now := time.Date(2024, time.March, 15, 1, 0, 0, 0, time.UTC)
	moved := now.AddDate(0, 0, -60).Add(20 * time.Hour)
	snap := BuildSnapshot([]Item{{ID: 1, Code: "X", QtyOnHand: 1, LastMovementAt: &moved}}, nil, now)
	require.NotNil(t, snap.Items[0].AgeDays)
	// Calendar days, not elapsed hours: the movement at 21:00 sixty days ago
	// still counts as 60 days old at 01:00 today.
	require.Equal(t, 60, *snap.Items[0].AgeDays)
	require.True(t, isSlowMoving(snap.Items[0]))
}
