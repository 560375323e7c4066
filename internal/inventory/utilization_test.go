package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildUtilizationKPIsCapsOverCapacity(t *testing.T) {
	snap := Snapshot{Items: []ItemMetrics{
		{ID: 1, WarehouseName: "Riyadh", QtyOnHand: 1000},
		{ID: 2, WarehouseName: "Riyadh", QtyOnHand: 800},
	}}

	payload := buildUtilizationKPIs(snap, []string{"Riyadh"})
	require.InDelta(t, 1600, payload.TotalCapacity, 0.001)
	// 1800 on hand, capped at the 1600 capacity.
	require.InDelta(t, 1600, payload.UsedCapacity, 0.001)
	require.InDelta(t, 0, payload.FreeCapacity, 0.001)
	require.InDelta(t, 100.00, payload.UtilizationPct, 0.001)
}

func TestBuildUtilizationKPIsUnknownWarehouseFallback(t *testing.T) {
	snap := Snapshot{Items: []ItemMetrics{
		{ID: 1, WarehouseName: "Abha", QtyOnHand: 300},
	}}

	payload := buildUtilizationKPIs(snap, []string{"Abha"})
	require.InDelta(t, 1200, payload.TotalCapacity, 0.001)
	require.InDelta(t, 300, payload.UsedCapacity, 0.001)
	require.InDelta(t, 25.00, payload.UtilizationPct, 0.001)
}

func TestBuildUtilizationKPIsNoWarehousesUsesDefaults(t *testing.T) {
	payload := buildUtilizationKPIs(Snapshot{}, nil)
	require.InDelta(t, 4800, payload.TotalCapacity, 0.001)
	require.InDelta(t, 0, payload.UsedCapacity, 0.001)
	require.InDelta(t, 0, payload.UtilizationPct, 0.001)
}

func TestBuildUtilizationShareCanonicalOrder(t *testing.T) {
	snap := Snapshot{Items: []ItemMetrics{
		{WarehouseName: "Dammam", QtyOnHand: 5},
		{WarehouseName: "Riyadh", QtyOnHand: 10},
		{WarehouseName: "Abha", QtyOnHand: 1},
	}}
	entries := buildUtilizationShare(snap)
	require.Equal(t, []NameValue{
		{Name: "Riyadh", Value: 10},
		{Name: "Dammam", Value: 5},
		{Name: "Abha", Value: 1},
	}, entries)
}

func TestBuildCapacityVsUsed(t *testing.T) {
	snap := Snapshot{Items: []ItemMetrics{
		{WarehouseName: "Riyadh", QtyOnHand: 400},
		{WarehouseName: "Abha", QtyOnHand: 100},
	}}
	payload := buildCapacityVsUsed(snap, []string{"Riyadh", "Jeddah"})

	require.Equal(t, []string{"Riyadh", "Jeddah", "Abha"}, payload.Categories)
	require.Equal(t, "Capacity", payload.Series[0].Name)
	require.Equal(t, []float64{1600, 1600, 1200}, payload.Series[0].Data)
	require.Equal(t, "Used", payload.Series[1].Name)
	require.Equal(t, []float64{400, 0, 100}, payload.Series[1].Data)
}

func TestBuildCapacityVsUsedDefaults(t *testing.T) {
	payload := buildCapacityVsUsed(Snapshot{}, nil)
	require.Equal(t, []string{"Riyadh", "Jeddah", "Dammam"}, payload.Categories)
	require.Equal(t, []float64{1600, 1600, 1600}, payload.Series[0].Data)
}
