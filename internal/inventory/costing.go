package inventory

import (
	"math"
	"strings"
)

// NormalizeCode trims and upper-cases a material code for matching.
// Returns "" when nothing remains.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func roundCurrency(value float64) float64 {
	return math.Round(value*100) / 100
}

// usableCost reports whether a derived per-unit cost can participate in
// valuation: finite and strictly positive.
func usableCost(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0) && value > 0
}

// VendorAverages groups quotes by normalized material code and averages their
// prices, ignoring non-positive or non-finite entries.
func VendorAverages(quotes []VendorQuote) map[string]float64 {
	type acc struct {
		sum   float64
		count int
	}
	totals := make(map[string]*acc)
	for _, quote := range quotes {
		code := NormalizeCode(quote.ItemCode)
		if code == "" || !usableCost(quote.Price) {
			continue
		}
		current, ok := totals[code]
		if !ok {
			current = &acc{}
			totals[code] = current
		}
		current.sum += quote.Price
		current.count++
	}
	averages := make(map[string]float64, len(totals))
	for code, current := range totals {
		if current.count > 0 {
			averages[code] = roundCurrency(current.sum / float64(current.count))
		}
	}
	return averages
}

// ResolveCost produces the authoritative unit cost for an item: the explicit
// unit cost when usable, otherwise the vendor average for its material code,
// otherwise zero.
func ResolveCost(item Item, avgByCode map[string]float64) float64 {
	if item.UnitCost != nil && usableCost(*item.UnitCost) {
		return *item.UnitCost
	}
	if code := NormalizeCode(item.Code); code != "" {
		if avg, ok := avgByCode[code]; ok {
			return avg
		}
	}
	return 0
}

// weightedAverage recomputes the stored unit cost after an inbound movement as
// the quantity-weighted average of the pre-movement value and the incoming
// value. Falls back to the previous cost when the resulting quantity is zero.
func weightedAverage(prevQty int64, prevCost float64, inQty int64, inCost float64, nextQty int64) float64 {
	if nextQty <= 0 {
		return prevCost
	}
	total := float64(prevQty)*prevCost + float64(inQty)*inCost
	avg := total / float64(nextQty)
	if !usableCost(avg) {
		return prevCost
	}
	return avg
}

// orderUnitCost derives a per-unit cost from an order's total value. It prefers
// the order's own line quantities and falls back to the movement quantity when
// line quantities are unavailable or sum to zero.
func orderUnitCost(order OrderContext, movementQty int64) (float64, bool) {
	if order.TotalValue == nil || !usableCost(*order.TotalValue) {
		return 0, false
	}
	var totalQty int64
	for _, qty := range order.LineQuantities {
		if qty > 0 {
			totalQty += qty
		}
	}
	if totalQty == 0 {
		totalQty = movementQty
	}
	if totalQty <= 0 {
		return 0, false
	}
	unit := *order.TotalValue / float64(totalQty)
	if !usableCost(unit) {
		return 0, false
	}
	return unit, true
}
