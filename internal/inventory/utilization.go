package inventory

import (
	"context"
	"fmt"
	"strings"
)

// Named capacities for the known warehouses; anything else gets the fallback.
var defaultWarehouseCapacity = map[string]float64{
	"Riyadh": 1600,
	"Jeddah": 1600,
	"Dammam": 1600,
}

const defaultCapacityFallback = 1200

// UtilizationPayload summarizes warehouse capacity consumption.
type UtilizationPayload struct {
	TotalCapacity  float64 `json:"totalCapacity"`
	UsedCapacity   float64 `json:"usedCapacity"`
	FreeCapacity   float64 `json:"freeCapacity"`
	UtilizationPct float64 `json:"utilizationPct"`
}

// UtilizationKPIs computes capacity usage across all warehouses. Per-warehouse
// usage is capped at that warehouse's capacity so over-capacity stock cannot
// push utilization past 100%.
func (s *Service) UtilizationKPIs(ctx context.Context) (UtilizationPayload, error) {
	var payload UtilizationPayload
	err := s.cached(ctx, []string{"utilization-kpis"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		names, err := s.repo.ListWarehouseNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("inventory: list warehouses: %w", err)
		}
		return buildUtilizationKPIs(snap, names), nil
	})
	return payload, err
}

func buildUtilizationKPIs(snap Snapshot, warehouseNames []string) UtilizationPayload {
	names := make([]string, 0, len(warehouseNames))
	for _, name := range warehouseNames {
		names = append(names, labelOrDefault(name, unassignedLabel))
	}
	if len(names) == 0 {
		for name := range defaultWarehouseCapacity {
			names = append(names, name)
		}
	}

	capacities := warehouseCapacities(names)
	usage := map[string]float64{}
	for _, item := range snap.Items {
		usage[item.WarehouseName] += float64(item.QtyOnHand)
		if _, ok := capacities[item.WarehouseName]; !ok {
			capacities[item.WarehouseName] = defaultCapacityFallback
		}
	}

	var total, used float64
	for _, capacity := range capacities {
		total += capacity
	}
	for name, qty := range usage {
		capacity, ok := capacities[name]
		if !ok {
			capacity = defaultCapacityFallback
		}
		if qty > capacity {
			qty = capacity
		}
		used += qty
	}

	free := total - used
	if free < 0 {
		free = 0
	}
	payload := UtilizationPayload{
		TotalCapacity: total,
		UsedCapacity:  used,
		FreeCapacity:  free,
	}
	if total > 0 {
		payload.UtilizationPct = roundCurrency(used / total * 100)
	}
	return payload
}

// UtilizationShare returns the on-hand quantity per warehouse as pie slices in
// canonical warehouse order.
func (s *Service) UtilizationShare(ctx context.Context) ([]NameValue, error) {
	var payload []NameValue
	err := s.cached(ctx, []string{"utilization-share"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildUtilizationShare(snap), nil
	})
	return payload, err
}

func buildUtilizationShare(snap Snapshot) []NameValue {
	usage := map[string]float64{}
	for _, item := range snap.Items {
		usage[item.WarehouseName] += float64(item.QtyOnHand)
	}
	names, data := sortedWarehouseSeries(usage)
	entries := make([]NameValue, 0, len(names))
	for i, name := range names {
		entries = append(entries, NameValue{Name: name, Value: data[i]})
	}
	return entries
}

// CapacityVsUsed returns a two-series bar comparing configured capacity with
// actual on-hand quantity per warehouse.
func (s *Service) CapacityVsUsed(ctx context.Context) (ChartPayload, error) {
	var payload ChartPayload
	err := s.cached(ctx, []string{"capacity-vs-used"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		names, err := s.repo.ListWarehouseNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("inventory: list warehouses: %w", err)
		}
		return buildCapacityVsUsed(snap, names), nil
	})
	return payload, err
}

func buildCapacityVsUsed(snap Snapshot, warehouseNames []string) ChartPayload {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(warehouseNames))
	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	for _, name := range warehouseNames {
		add(labelOrDefault(name, unassignedLabel))
	}
	for _, item := range snap.Items {
		add(item.WarehouseName)
	}
	if len(names) == 0 {
		for _, name := range defaultWarehouseOrder {
			add(name)
		}
	}

	placeholder := make(map[string]float64, len(names))
	for _, name := range names {
		placeholder[name] = 0
	}
	ordered, _ := sortedWarehouseSeries(placeholder)

	capacities := warehouseCapacities(ordered)
	usage := map[string]float64{}
	for _, item := range snap.Items {
		usage[item.WarehouseName] += float64(item.QtyOnHand)
	}

	capacityData := make([]float64, 0, len(ordered))
	usedData := make([]float64, 0, len(ordered))
	for _, name := range ordered {
		capacityData = append(capacityData, capacities[name])
		usedData = append(usedData, usage[name])
	}
	return ChartPayload{
		Categories: ordered,
		Series: []Series{
			{Name: "Capacity", Data: capacityData},
			{Name: "Used", Data: usedData},
		},
	}
}

func warehouseCapacities(names []string) map[string]float64 {
	capacities := make(map[string]float64, len(names))
	for _, name := range names {
		if capacity, ok := defaultWarehouseCapacity[name]; ok {
			capacities[name] = capacity
			continue
		}
		capacities[name] = defaultCapacityFallback
	}
	return capacities
}
