package inventory

import (
	"strings"
	"time"
)

const (
	unassignedLabel      = "Unassigned"
	uncategorizedLabel   = "Uncategorized"
	slowMovementAgeDays  = 60
	excessStockMultiple  = 1.5
	excessAbsoluteFloor  = 100
	dailyWindowDays      = 7
	activityWindowDays   = 30
	topSlowMovingDefault = 5
)

// ItemMetrics is the per-item derived view recomputed on every context load.
// Never persisted.
type ItemMetrics struct {
	ID             int64
	Code           string
	Name           string
	Category       string
	WarehouseID    *int64
	WarehouseName  string
	StoreID        *int64
	StoreName      string
	QtyOnHand      int64
	ReorderPoint   int64
	UnitCost       float64
	Value          float64
	Status         Status
	LastMovementAt *time.Time
	AgeDays        *int
}

// Snapshot is the in-memory metrics view shared by all aggregators within one
// request, plus the cost lookup maps other components reuse.
type Snapshot struct {
	Items        []ItemMetrics
	CostByItemID map[int64]float64
	CostByCode   map[string]float64
}

// BuildSnapshot derives metrics for every active item. Quantities are clamped
// to zero for valuation; age is calendar days since the last movement, nil when
// the item never moved.
func BuildSnapshot(items []Item, quotes []VendorQuote, now time.Time) Snapshot {
	avgByCode := VendorAverages(quotes)
	snapshot := Snapshot{
		Items:        make([]ItemMetrics, 0, len(items)),
		CostByItemID: make(map[int64]float64, len(items)),
		CostByCode:   make(map[string]float64, len(avgByCode)+len(items)),
	}
	for code, avg := range avgByCode {
		snapshot.CostByCode[code] = avg
	}

	for _, item := range items {
		qty := item.QtyOnHand
		if qty < 0 {
			qty = 0
		}
		reorder := item.ReorderPoint
		if reorder < 0 {
			reorder = 0
		}
		cost := ResolveCost(item, avgByCode)
		metrics := ItemMetrics{
			ID:             item.ID,
			Code:           strings.TrimSpace(item.Code),
			Name:           strings.TrimSpace(item.Name),
			Category:       labelOrDefault(item.Category, uncategorizedLabel),
			WarehouseID:    item.WarehouseID,
			WarehouseName:  labelOrDefault(item.WarehouseName, unassignedLabel),
			StoreID:        item.StoreID,
			StoreName:      labelOrDefault(item.StoreName, unassignedLabel),
			QtyOnHand:      qty,
			ReorderPoint:   reorder,
			UnitCost:       cost,
			Value:          roundCurrency(float64(qty) * cost),
			Status:         Classify(qty, reorder),
			LastMovementAt: item.LastMovementAt,
		}
		if item.LastMovementAt != nil {
			age := calendarDaysBetween(*item.LastMovementAt, now)
			metrics.AgeDays = &age
		}

		snapshot.CostByItemID[item.ID] = cost
		if code := NormalizeCode(item.Code); code != "" {
			if _, ok := snapshot.CostByCode[code]; !ok {
				snapshot.CostByCode[code] = cost
			}
		}
		snapshot.Items = append(snapshot.Items, metrics)
	}
	return snapshot
}

func labelOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// calendarDaysBetween counts whole calendar days between two instants in the
// local zone of `to`, ignoring the time-of-day component.
func calendarDaysBetween(from, to time.Time) int {
	loc := to.Location()
	fromDay := time.Date(from.In(loc).Year(), from.In(loc).Month(), from.In(loc).Day(), 0, 0, 0, 0, loc)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	return int(toDay.Sub(fromDay).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
