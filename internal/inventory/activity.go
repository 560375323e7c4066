package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// StoreActivity is a per-store movement rollup for the current day.
type StoreActivity struct {
	StoreID       *int64  `json:"storeId"`
	Store         string  `json:"store"`
	InboundQty    int64   `json:"inboundQty"`
	OutboundQty   int64   `json:"outboundQty"`
	InboundValue  float64 `json:"inboundValue"`
	OutboundValue float64 `json:"outboundValue"`
	NetValue      float64 `json:"netValue"`
}

// ActivityPayload reports movement activity since local midnight.
type ActivityPayload struct {
	InboundToday   int64           `json:"inboundToday"`
	OutboundToday  int64           `json:"outboundToday"`
	TransfersToday int64           `json:"transfersToday"`
	MovementValue  float64         `json:"movementValue"`
	InboundValue   float64         `json:"inboundValue"`
	OutboundValue  float64         `json:"outboundValue"`
	Stores         []StoreActivity `json:"stores"`
}

// ActivityKPIs aggregates today's movements: quantities and monetary value per
// direction, plus per-store summaries sorted by net value descending.
func (s *Service) ActivityKPIs(ctx context.Context) (ActivityPayload, error) {
	var payload ActivityPayload
	err := s.cached(ctx, []string{"activity-kpis"}, &payload, func() (any, error) {
		now := s.now()
		snap, err := s.loadContext(ctx)
		if err != nil {
			return nil, err
		}
		movements, err := s.repo.ListMovementsBetween(ctx, startOfDay(now), now)
		if err != nil {
			return nil, fmt.Errorf("inventory: load today's movements: %w", err)
		}
		return buildActivityKPIs(snap, movements), nil
	})
	return payload, err
}

func buildActivityKPIs(snap Snapshot, movements []ActivityMovement) ActivityPayload {
	payload := ActivityPayload{Stores: []StoreActivity{}}
	var movementValue, inboundValue, outboundValue float64

	type storeKey struct {
		id    int64
		hasID bool
		label string
	}
	totals := make(map[storeKey]*StoreActivity)
	order := make([]storeKey, 0)

	for _, movement := range movements {
		qty := movement.Qty
		if qty < 0 {
			qty = -qty
		}
		if qty == 0 {
			continue
		}
		bucket := NormalizeKind(movement.Kind)
		rawValue := movementRawValue(movement, snap, bucket, qty)
		absValue := math.Abs(rawValue)

		label := strings.TrimSpace(movement.StoreLabel)
		if label == "" {
			label = unassignedLabel
		}
		key := storeKey{label: strings.ToLower(label)}
		if movement.StoreID != nil {
			key.id, key.hasID = *movement.StoreID, true
		}
		summary, ok := totals[key]
		if !ok {
			summary = &StoreActivity{StoreID: movement.StoreID, Store: label}
			totals[key] = summary
			order = append(order, key)
		}

		switch bucket {
		case BucketInbound:
			payload.InboundToday += qty
			inboundValue += absValue
			summary.InboundQty += qty
			summary.InboundValue += absValue
			movementValue += rawValue
		case BucketOutbound:
			payload.OutboundToday += qty
			outboundValue += absValue
			summary.OutboundQty += qty
			summary.OutboundValue += absValue
			movementValue += rawValue
		case BucketTransfer:
			payload.TransfersToday += qty
		default:
			movementValue += rawValue
		}
	}

	for _, key := range order {
		summary := *totals[key]
		summary.InboundValue = roundCurrency(summary.InboundValue)
		summary.OutboundValue = roundCurrency(summary.OutboundValue)
		summary.NetValue = roundCurrency(summary.InboundValue - summary.OutboundValue)
		payload.Stores = append(payload.Stores, summary)
	}
	sort.SliceStable(payload.Stores, func(i, j int) bool {
		return payload.Stores[i].NetValue > payload.Stores[j].NetValue
	})

	payload.MovementValue = roundCurrency(movementValue)
	payload.InboundValue = roundCurrency(inboundValue)
	payload.OutboundValue = roundCurrency(outboundValue)
	return payload
}

// movementRawValue prefers the stored monetary value; rows that predate value
// tracking fall back to qty times the item's current resolved cost,
// sign-adjusted for outbound.
func movementRawValue(movement ActivityMovement, snap Snapshot, bucket MovementBucket, absQty int64) float64 {
	if movement.Value != nil && !math.IsNaN(*movement.Value) && !math.IsInf(*movement.Value, 0) {
		return *movement.Value
	}
	var cost float64
	if movement.ItemID != nil {
		cost = snap.CostByItemID[*movement.ItemID]
	}
	fallback := roundCurrency(float64(absQty) * cost)
	if bucket == BucketOutbound {
		return -fallback
	}
	return fallback
}

// ActivityByType returns quantity totals per movement bucket over the trailing
// 30 days.
func (s *Service) ActivityByType(ctx context.Context) ([]NameValue, error) {
	var payload []NameValue
	err := s.cached(ctx, []string{"activity-by-type"}, &payload, func() (any, error) {
		now := s.now()
		// The window spans activityWindowDays calendar days including today.
		from := startOfDay(now.AddDate(0, 0, -(activityWindowDays - 1)))
		movements, err := s.repo.ListMovementsBetween(ctx, from, now)
		if err != nil {
			return nil, fmt.Errorf("inventory: load movement window: %w", err)
		}
		return buildActivityByType(movements), nil
	})
	return payload, err
}

func buildActivityByType(movements []ActivityMovement) []NameValue {
	var inbound, outbound, transfer float64
	for _, movement := range movements {
		qty := math.Abs(float64(movement.Qty))
		switch NormalizeKind(movement.Kind) {
		case BucketInbound:
			inbound += qty
		case BucketOutbound:
			outbound += qty
		case BucketTransfer:
			transfer += qty
		}
	}
	return []NameValue{
		{Name: "Inbound", Value: inbound},
		{Name: "Outbound", Value: outbound},
		{Name: "Transfer", Value: transfer},
	}
}

// DailyMovements returns total moved quantity per calendar day over the
// trailing week, one bucket per day including today.
func (s *Service) DailyMovements(ctx context.Context) (ChartPayload, error) {
	var payload ChartPayload
	err := s.cached(ctx, []string{"daily-movements"}, &payload, func() (any, error) {
		now := s.now()
		from := startOfDay(now.AddDate(0, 0, -(dailyWindowDays - 1)))
		to := startOfDay(now).AddDate(0, 0, 1).Add(-time.Millisecond)
		movements, err := s.repo.ListMovementsBetween(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("inventory: load daily window: %w", err)
		}
		return buildDailyMovements(movements, now), nil
	})
	return payload, err
}

func buildDailyMovements(movements []ActivityMovement, now time.Time) ChartPayload {
	start := startOfDay(now.AddDate(0, 0, -(dailyWindowDays - 1)))
	categories := make([]string, 0, dailyWindowDays)
	totals := make(map[string]float64, dailyWindowDays)
	for day := start; !day.After(now); day = day.AddDate(0, 0, 1) {
		label := day.Format("Jan 2")
		categories = append(categories, label)
		totals[label] = 0
	}

	for _, movement := range movements {
		label := movement.CreatedAt.In(now.Location()).Format("Jan 2")
		if _, ok := totals[label]; !ok {
			continue
		}
		totals[label] += math.Abs(float64(movement.Qty))
	}

	data := make([]float64, 0, len(categories))
	for _, label := range categories {
		data = append(data, totals[label])
	}
	return ChartPayload{
		Categories: categories,
		Series:     []Series{{Name: "Movements", Data: data}},
	}
}

// MonthlySeries returns inbound receipts vs outbound issues summed per month
// for the given year; zero or negative years resolve to the current year.
func (s *Service) MonthlySeries(ctx context.Context, year int) (ChartPayload, error) {
	if year <= 0 {
		year = s.now().Year()
	}
	var payload ChartPayload
	err := s.cached(ctx, []string{"monthly-series", fmt.Sprint(year)}, &payload, func() (any, error) {
		loc := s.now().Location()
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		to := from.AddDate(1, 0, 0).Add(-time.Millisecond)
		movements, err := s.repo.ListMovementsBetween(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("inventory: load yearly window: %w", err)
		}
		return buildMonthlySeries(movements, loc), nil
	})
	return payload, err
}

func buildMonthlySeries(movements []ActivityMovement, loc *time.Location) ChartPayload {
	categories := make([]string, 12)
	for i := 0; i < 12; i++ {
		categories[i] = time.Month(i + 1).String()[:3]
	}
	inbound := make([]float64, 12)
	outbound := make([]float64, 12)

	for _, movement := range movements {
		index := int(movement.CreatedAt.In(loc).Month()) - 1
		qty := float64(movement.Qty)
		if strings.ToUpper(strings.TrimSpace(movement.Kind)) == string(KindIn) {
			inbound[index] += qty
		} else {
			outbound[index] += math.Abs(qty)
		}
	}
	return ChartPayload{
		Categories: categories,
		Series: []Series{
			{Name: "Inbound Receipts", Data: inbound},
			{Name: "Outbound Issues", Data: outbound},
		},
	}
}
