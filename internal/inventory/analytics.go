package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// defaultWarehouseOrder pins the canonical display order for the known
// warehouses; anything else sorts alphabetically after them.
var defaultWarehouseOrder = []string{"Riyadh", "Jeddah", "Dammam"}

// NameValue is a single pie-chart slice.
type NameValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Series is one named data track of a chart payload.
type Series struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// ChartPayload is the categories/series shape every bar chart renders from.
type ChartPayload struct {
	Categories []string `json:"categories"`
	Series     []Series `json:"series"`
}

// StoreSnapshot is a per-store rollup inside the KPI payload.
type StoreSnapshot struct {
	StoreID    *int64  `json:"storeId"`
	Store      string  `json:"store"`
	Qty        int64   `json:"qty"`
	Value      float64 `json:"value"`
	Items      int64   `json:"items"`
	LowStock   int64   `json:"lowStock"`
	OutOfStock int64   `json:"outOfStock"`
}

// KPIPayload is the headline inventory dashboard payload.
type KPIPayload struct {
	LowStock       int64           `json:"lowStock"`
	OutOfStock     int64           `json:"outOfStock"`
	InventoryValue float64         `json:"inventoryValue"`
	TotalItems     int64           `json:"totalItems"`
	Stores         []StoreSnapshot `json:"stores"`
}

// CriticalPayload reports items at or below their reorder point alongside the
// number of open purchasing requests referencing those materials.
type CriticalPayload struct {
	CriticalItems  int64 `json:"criticalItems"`
	CriticalOOS    int64 `json:"criticalOOS"`
	CriticalLow    int64 `json:"criticalLow"`
	LinkedRequests int64 `json:"linkedRequests"`
}

// SlowExcessPayload reports slow-moving and excess stock exposure.
type SlowExcessPayload struct {
	SlowCount   int64   `json:"slowCount"`
	SlowValue   float64 `json:"slowValue"`
	ExcessCount int64   `json:"excessCount"`
	ExcessValue float64 `json:"excessValue"`
}

// KPIs returns the headline stock counters plus per-store snapshots sorted by
// value descending.
func (s *Service) KPIs(ctx context.Context) (KPIPayload, error) {
	var payload KPIPayload
	err := s.cached(ctx, []string{"kpis"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildKPIs(snap), nil
	})
	return payload, err
}

func buildKPIs(snap Snapshot) KPIPayload {
	payload := KPIPayload{
		TotalItems: int64(len(snap.Items)),
		Stores:     []StoreSnapshot{},
	}

	type storeKey struct {
		id    int64
		hasID bool
		label string
	}
	totals := make(map[storeKey]*StoreSnapshot)
	order := make([]storeKey, 0)
	var value float64

	for _, item := range snap.Items {
		switch item.Status {
		case StatusLowStock:
			payload.LowStock++
		case StatusOutOfStock:
			payload.OutOfStock++
		}
		value += item.Value

		key := storeKey{label: strings.ToLower(item.StoreName)}
		if item.StoreID != nil {
			key.id, key.hasID = *item.StoreID, true
		}
		summary, ok := totals[key]
		if !ok {
			summary = &StoreSnapshot{StoreID: item.StoreID, Store: item.StoreName}
			totals[key] = summary
			order = append(order, key)
		}
		summary.Qty += item.QtyOnHand
		summary.Value += item.Value
		summary.Items++
		switch item.Status {
		case StatusLowStock:
			summary.LowStock++
		case StatusOutOfStock:
			summary.OutOfStock++
		}
	}

	payload.InventoryValue = roundCurrency(value)
	for _, key := range order {
		snapshot := *totals[key]
		snapshot.Value = roundCurrency(snapshot.Value)
		payload.Stores = append(payload.Stores, snapshot)
	}
	sort.SliceStable(payload.Stores, func(i, j int) bool {
		return payload.Stores[i].Value > payload.Stores[j].Value
	})
	return payload
}

// StockHealth returns the two-bucket Low/Out of Stock pie.
func (s *Service) StockHealth(ctx context.Context) ([]NameValue, error) {
	var payload []NameValue
	err := s.cached(ctx, []string{"stock-health"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildStockHealth(snap), nil
	})
	return payload, err
}

func buildStockHealth(snap Snapshot) []NameValue {
	var low, out float64
	for _, item := range snap.Items {
		switch item.Status {
		case StatusLowStock:
			low++
		case StatusOutOfStock:
			out++
		}
	}
	return []NameValue{
		{Name: string(StatusLowStock), Value: low},
		{Name: string(StatusOutOfStock), Value: out},
	}
}

// StockStatus returns the full three-bucket status pie.
func (s *Service) StockStatus(ctx context.Context) ([]NameValue, error) {
	var payload []NameValue
	err := s.cached(ctx, []string{"stock-status"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildStockStatus(snap), nil
	})
	return payload, err
}

func buildStockStatus(snap Snapshot) []NameValue {
	counts := map[Status]float64{}
	for _, item := range snap.Items {
		counts[item.Status]++
	}
	return []NameValue{
		{Name: string(StatusInStock), Value: counts[StatusInStock]},
		{Name: string(StatusLowStock), Value: counts[StatusLowStock]},
		{Name: string(StatusOutOfStock), Value: counts[StatusOutOfStock]},
	}
}

// ItemsByWarehouse returns item counts per warehouse in canonical order.
func (s *Service) ItemsByWarehouse(ctx context.Context) (ChartPayload, error) {
	var payload ChartPayload
	err := s.cached(ctx, []string{"items-by-warehouse"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildItemsByWarehouse(snap), nil
	})
	return payload, err
}

func buildItemsByWarehouse(snap Snapshot) ChartPayload {
	totals := map[string]float64{}
	for _, item := range snap.Items {
		totals[item.WarehouseName]++
	}
	categories, data := sortedWarehouseSeries(totals)
	return ChartPayload{
		Categories: categories,
		Series:     []Series{{Name: "Items", Data: data}},
	}
}

// ValueByCategory returns stock value grouped by category, largest first.
func (s *Service) ValueByCategory(ctx context.Context) (ChartPayload, error) {
	var payload ChartPayload
	err := s.cached(ctx, []string{"value-by-category"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildValueByCategory(snap), nil
	})
	return payload, err
}

func buildValueByCategory(snap Snapshot) ChartPayload {
	totals := map[string]float64{}
	for _, item := range snap.Items {
		totals[item.Category] = roundCurrency(totals[item.Category] + item.Value)
	}
	entries := sortedByValueDesc(totals)
	payload := ChartPayload{
		Categories: make([]string, 0, len(entries)),
		Series:     []Series{{Name: "Value (SAR)", Data: make([]float64, 0, len(entries))}},
	}
	for _, entry := range entries {
		payload.Categories = append(payload.Categories, entry.Name)
		payload.Series[0].Data = append(payload.Series[0].Data, entry.Value)
	}
	return payload
}

func isCritical(item ItemMetrics) bool {
	return item.ReorderPoint > 0 && (item.Status == StatusLowStock || item.Status == StatusOutOfStock)
}

// CriticalKPIs counts items at or below reorder level and cross-references
// their material codes against open purchasing requests.
func (s *Service) CriticalKPIs(ctx context.Context) (CriticalPayload, error) {
	var payload CriticalPayload
	err := s.cached(ctx, []string{"critical-kpis"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		built := buildCriticalKPIs(snap)
		codes := criticalMaterialCodes(snap)
		if len(codes) > 0 {
			linked, err := s.repo.CountOpenRequestsByCode(ctx, codes)
			if err != nil {
				return nil, fmt.Errorf("inventory: count linked requests: %w", err)
			}
			built.LinkedRequests = linked
		}
		return built, nil
	})
	return payload, err
}

func buildCriticalKPIs(snap Snapshot) CriticalPayload {
	var payload CriticalPayload
	for _, item := range snap.Items {
		if !isCritical(item) {
			continue
		}
		payload.CriticalItems++
		if item.Status == StatusOutOfStock {
			payload.CriticalOOS++
		} else {
			payload.CriticalLow++
		}
	}
	return payload
}

func criticalMaterialCodes(snap Snapshot) []string {
	seen := map[string]struct{}{}
	codes := make([]string, 0)
	for _, item := range snap.Items {
		if !isCritical(item) {
			continue
		}
		code := NormalizeCode(item.Code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CriticalByCategory returns critical item counts per category, largest first.
func (s *Service) CriticalByCategory(ctx context.Context) ([]NameValue, error) {
	var payload []NameValue
	err := s.cached(ctx, []string{"critical-by-category"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildCriticalByCategory(snap), nil
	})
	return payload, err
}

func buildCriticalByCategory(snap Snapshot) []NameValue {
	totals := map[string]float64{}
	for _, item := range snap.Items {
		if isCritical(item) {
			totals[item.Category]++
		}
	}
	return sortedByValueDesc(totals)
}

// CriticalByWarehouse returns critical item counts per warehouse.
func (s *Service) CriticalByWarehouse(ctx context.Context) (ChartPayload, error) {
	var payload ChartPayload
	err := s.cached(ctx, []string{"critical-by-warehouse"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildCriticalByWarehouse(snap), nil
	})
	return payload, err
}

func buildCriticalByWarehouse(snap Snapshot) ChartPayload {
	totals := map[string]float64{}
	for _, item := range snap.Items {
		if isCritical(item) {
			totals[item.WarehouseName]++
		}
	}
	categories, data := sortedWarehouseSeries(totals)
	return ChartPayload{
		Categories: categories,
		Series:     []Series{{Name: "Critical SKUs", Data: data}},
	}
}

func isSlowMoving(item ItemMetrics) bool {
	if item.QtyOnHand <= 0 {
		return false
	}
	// Never-moved stock counts as slow.
	if item.AgeDays == nil {
		return true
	}
	return *item.AgeDays >= slowMovementAgeDays
}

func isExcessStock(item ItemMetrics) bool {
	if item.QtyOnHand <= 0 {
		return false
	}
	if item.ReorderPoint > 0 {
		return float64(item.QtyOnHand) > float64(item.ReorderPoint)*excessStockMultiple
	}
	return item.QtyOnHand >= excessAbsoluteFloor
}

// SlowExcessKPIs reports slow-moving and excess stock counts and value.
func (s *Service) SlowExcessKPIs(ctx context.Context) (SlowExcessPayload, error) {
	var payload SlowExcessPayload
	err := s.cached(ctx, []string{"slow-excess-kpis"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildSlowExcessKPIs(snap), nil
	})
	return payload, err
}

func buildSlowExcessKPIs(snap Snapshot) SlowExcessPayload {
	var payload SlowExcessPayload
	var slowValue, excessValue float64
	for _, item := range snap.Items {
		if isSlowMoving(item) {
			payload.SlowCount++
			slowValue += item.Value
		}
		if isExcessStock(item) {
			payload.ExcessCount++
			excessValue += item.Value
		}
	}
	payload.SlowValue = roundCurrency(slowValue)
	payload.ExcessValue = roundCurrency(excessValue)
	return payload
}

// ExcessByCategory returns excess stock value per category, largest first.
func (s *Service) ExcessByCategory(ctx context.Context) ([]NameValue, error) {
	var payload []NameValue
	err := s.cached(ctx, []string{"excess-by-category"}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildExcessByCategory(snap), nil
	})
	return payload, err
}

func buildExcessByCategory(snap Snapshot) []NameValue {
	totals := map[string]float64{}
	for _, item := range snap.Items {
		if isExcessStock(item) {
			totals[item.Category] = roundCurrency(totals[item.Category] + item.Value)
		}
	}
	return sortedByValueDesc(totals)
}

// TopSlowMoving lists the highest-value slow-moving items, zero-value stock
// excluded.
func (s *Service) TopSlowMoving(ctx context.Context, limit int) (ChartPayload, error) {
	if limit <= 0 {
		limit = topSlowMovingDefault
	}
	var payload ChartPayload
	err := s.cached(ctx, []string{"top-slow-moving", fmt.Sprint(limit)}, &payload, func() (any, error) {
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		return buildTopSlowMoving(snap, limit), nil
	})
	return payload, err
}

func buildTopSlowMoving(snap Snapshot, limit int) ChartPayload {
	slow := make([]ItemMetrics, 0)
	for _, item := range snap.Items {
		if isSlowMoving(item) && item.Value > 0 {
			slow = append(slow, item)
		}
	}
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].Value > slow[j].Value })
	if len(slow) > limit {
		slow = slow[:limit]
	}
	payload := ChartPayload{
		Categories: make([]string, 0, len(slow)),
		Series:     []Series{{Name: "Value at risk (SAR)", Data: make([]float64, 0, len(slow))}},
	}
	for _, item := range slow {
		payload.Categories = append(payload.Categories, item.Name)
		payload.Series[0].Data = append(payload.Series[0].Data, roundCurrency(item.Value))
	}
	return payload
}

// sortedByValueDesc flattens a totals map into slices sorted by value
// descending, names alphabetical on ties for a stable payload.
func sortedByValueDesc(totals map[string]float64) []NameValue {
	entries := make([]NameValue, 0, len(totals))
	for name, value := range totals {
		entries = append(entries, NameValue{Name: name, Value: value})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// warehouseSortKey places the canonical warehouses first, everything else
// alphabetically after.
func warehouseSortKey(name string) string {
	lower := strings.ToLower(name)
	for i, candidate := range defaultWarehouseOrder {
		if strings.ToLower(candidate) == lower {
			return fmt.Sprintf("0%d", i)
		}
	}
	return "~" + lower
}

func sortedWarehouseSeries(totals map[string]float64) ([]string, []float64) {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		a, b := warehouseSortKey(names[i]), warehouseSortKey(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})
	data := make([]float64, 0, len(names))
	for _, name := range names {
		data = append(data, totals[name])
	}
	return names, data
}
