package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildActivityKPIs(t *testing.T) {
	snap := Snapshot{CostByItemID: map[int64]float64{1: 4}}
	storeA, storeB := int64(1), int64(2)
	itemID := int64(1)
	inboundValue := 100.0
	outboundValue := -30.0

	payload := buildActivityKPIs(snap, []ActivityMovement{
		{Kind: "IN", Qty: 10, Value: &inboundValue, StoreID: &storeA, StoreLabel: "Main"},
		{Kind: "OUT", Qty: 5, Value: &outboundValue, StoreID: &storeA, StoreLabel: "Main"},
		{Kind: "TRANSFER", Qty: 3, StoreID: &storeB, StoreLabel: "South"},
		// Missing value falls back to qty times current cost.
		{Kind: "out", Qty: 2, ItemID: &itemID, StoreID: &storeB, StoreLabel: "South"},
		{Kind: "IN", Qty: 0},
	})

	require.Equal(t, int64(10), payload.InboundToday)
	require.Equal(t, int64(7), payload.OutboundToday)
	require.Equal(t, int64(3), payload.TransfersToday)
	require.InDelta(t, 100.00, payload.InboundValue, 0.001)
	require.InDelta(t, 38.00, payload.OutboundValue, 0.001)
	require.InDelta(t, 62.00, payload.MovementValue, 0.001)

	require.Len(t, payload.Stores, 2)
	// Sorted by net value descending.
	require.Equal(t, "Main", payload.Stores[0].Store)
	require.InDelta(t, 70.00, payload.Stores[0].NetValue, 0.001)
	require.Equal(t, "South", payload.Stores[1].Store)
	require.InDelta(t, -8.00, payload.Stores[1].NetValue, 0.001)
}

func TestBuildActivityByType(t *testing.T) {
	entries := buildActivityByType([]ActivityMovement{
		{Kind: "RECEIPT", Qty: 4},
		{Kind: "IN", Qty: 6},
		{Kind: "issue", Qty: -3},
		{Kind: "XFER", Qty: 2},
		{Kind: "mystery", Qty: 99},
	})
	require.Equal(t, []NameValue{
		{Name: "Inbound", Value: 10},
		{Name: "Outbound", Value: 3},
		{Name: "Transfer", Value: 2},
	}, entries)
}

func TestBuildDailyMovements(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	payload := buildDailyMovements([]ActivityMovement{
		{Kind: "IN", Qty: 5, CreatedAt: now.Add(-2 * time.Hour)},
		{Kind: "OUT", Qty: -3, CreatedAt: now.AddDate(0, 0, -6)},
		{Kind: "OUT", Qty: -7, CreatedAt: now.AddDate(0, 0, -7)},
		{Kind: "IN", Qty: 100, CreatedAt: now.AddDate(0, 0, -9)},
	}, now)

	// One bucket per calendar day, today included, seven in total.
	require.Len(t, payload.Categories, dailyWindowDays)
	require.Equal(t, "Mar 9", payload.Categories[0])
	require.Equal(t, "Mar 15", payload.Categories[6])
	require.InDelta(t, 3, payload.Series[0].Data[0], 0.001)
	require.InDelta(t, 5, payload.Series[0].Data[6], 0.001)
	// Movements seven or more days old are dropped.
	var total float64
	for _, v := range payload.Series[0].Data {
		total += v
	}
	require.InDelta(t, 8, total, 0.001)
}

func TestBuildMonthlySeries(t *testing.T) {
	loc := time.UTC
	payload := buildMonthlySeries([]ActivityMovement{
		{Kind: "IN", Qty: 10, CreatedAt: time.Date(2024, time.January, 5, 0, 0, 0, 0, loc)},
		{Kind: "in", Qty: 5, CreatedAt: time.Date(2024, time.January, 20, 0, 0, 0, 0, loc)},
		{Kind: "OUT", Qty: -8, CreatedAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, loc)},
		{Kind: "ADJUST", Qty: 2, CreatedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, loc)},
	}, loc)

	require.Equal(t, 12, len(payload.Categories))
	require.Equal(t, "Jan", payload.Categories[0])
	require.Equal(t, "Dec", payload.Categories[11])
	require.Equal(t, "Inbound Receipts", payload.Series[0].Name)
	require.Equal(t, "Outbound Issues", payload.Series[1].Name)
	require.InDelta(t, 15, payload.Series[0].Data[0], 0.001)
	require.InDelta(t, 8, payload.Series[1].Data[1], 0.001)
	// Non-IN kinds count as outbound in the yearly series.
	require.InDelta(t, 2, payload.Series[1].Data[2], 0.001)
}

func TestActivityByTypeWindowSpansThirtyDays(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	repo.activity = []ActivityMovement{
		{Kind: "IN", Qty: 9, CreatedAt: now.AddDate(0, 0, -30)},
		{Kind: "IN", Qty: 4, CreatedAt: now.AddDate(0, 0, -29)},
		{Kind: "IN", Qty: 2, CreatedAt: now},
	}
	svc := newTestService(repo)

	entries, err := svc.ActivityByType(context.Background())
	require.NoError(t, err)
	// Thirty calendar days including today; the day before that is out.
	require.Equal(t, NameValue{Name: "Inbound", Value: 6}, entries[0])
}

func TestActivityKPIsWindowsSinceMidnight(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	repo.activity = []ActivityMovement{
		{Kind: "IN", Qty: 5, CreatedAt: now.Add(-time.Hour)},
		{Kind: "IN", Qty: 50, CreatedAt: now.Add(-13 * time.Hour)},
	}
	svc := newTestService(repo)

	payload, err := svc.ActivityKPIs(context.Background())
	require.NoError(t, err)
	// Yesterday's movement sits outside the local-midnight window.
	require.Equal(t, int64(5), payload.InboundToday)
}
