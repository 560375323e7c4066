package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stocklens/stocklens/internal/shared"
)

const externalLabel = "External"

// MovementQuery filters, sorts and paginates the recent movements listing.
type MovementQuery struct {
	Type       string
	Warehouse  string
	Store      string
	SortBy     string
	SortDir    string
	Pagination shared.Pagination
}

// RecentMovement is one display row of the recent movements listing.
type RecentMovement struct {
	Date        string  `json:"date"`
	Item        string  `json:"item"`
	Warehouse   string  `json:"warehouse"`
	Type        string  `json:"type"`
	Qty         int64   `json:"qty"`
	Value       float64 `json:"value"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	OrderNo     *string `json:"orderNo"`
	Store       *string `json:"store"`
	Category    string  `json:"category"`
	ItemCode    *string `json:"itemCode"`
}

// MovementPage is the paginated listing payload; Total always reflects the
// filtered set size.
type MovementPage struct {
	Items []RecentMovement `json:"items"`
	Total int64            `json:"total"`
}

// RecentMovements lists ledger rows newest first. Stored kind spellings are
// normalized before the type filter applies, missing monetary values are
// derived from the item's current resolved cost, and pagination is
// offset-based over the filtered set.
func (s *Service) RecentMovements(ctx context.Context, query MovementQuery) (MovementPage, error) {
	sortBy := strings.ToLower(strings.TrimSpace(query.SortBy))
	switch sortBy {
	case "", "date", "qty", "value":
	default:
		return MovementPage{}, fmt.Errorf("%w: inventory: unknown sort field %q", shared.ErrInvalidInput, query.SortBy)
	}

	snap, err := s.loadContext(ctx)
	if err != nil {
		return MovementPage{}, err
	}
	rows, err := s.repo.ListMovementRows(ctx)
	if err != nil {
		return MovementPage{}, fmt.Errorf("inventory: load movement rows: %w", err)
	}
	return buildMovementPage(rows, snap, query), nil
}

type scoredMovement struct {
	row      MovementRow
	rawValue float64
	bucket   MovementBucket
}

func buildMovementPage(rows []MovementRow, snap Snapshot, query MovementQuery) MovementPage {
	typeFilter := MovementBucket("")
	if trimmed := strings.TrimSpace(query.Type); trimmed != "" {
		if bucket := NormalizeKind(trimmed); bucket != BucketOther {
			typeFilter = bucket
		}
	}
	warehouseFilter := strings.TrimSpace(query.Warehouse)
	storeFilter := strings.TrimSpace(query.Store)

	filtered := make([]scoredMovement, 0, len(rows))
	for _, row := range rows {
		bucket := NormalizeKind(row.Kind)
		if typeFilter != "" && bucket != typeFilter {
			continue
		}
		if warehouseFilter != "" && !strings.EqualFold(row.ItemWarehouse, warehouseFilter) {
			continue
		}
		if storeFilter != "" && !strings.EqualFold(row.Store, storeFilter) {
			continue
		}
		filtered = append(filtered, scoredMovement{
			row:      row,
			rawValue: rowRawValue(row, snap, bucket),
			bucket:   bucket,
		})
	}

	asc := strings.EqualFold(query.SortDir, "asc")
	less := func(i, j scoredMovement) bool { return i.row.CreatedAt.Before(j.row.CreatedAt) }
	switch strings.ToLower(strings.TrimSpace(query.SortBy)) {
	case "qty":
		less = func(i, j scoredMovement) bool { return i.row.Qty < j.row.Qty }
	case "value":
		less = func(i, j scoredMovement) bool { return i.rawValue < j.rawValue }
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if asc {
			return less(filtered[i], filtered[j])
		}
		return less(filtered[j], filtered[i])
	})

	pagination := shared.NewPagination(query.Pagination.Page, query.Pagination.PerPage, len(filtered))
	page := MovementPage{Items: []RecentMovement{}, Total: int64(pagination.Total)}
	offset := pagination.Offset()
	if offset >= len(filtered) {
		return page
	}
	end := offset + pagination.PerPage
	if end > len(filtered) {
		end = len(filtered)
	}
	for _, entry := range filtered[offset:end] {
		page.Items = append(page.Items, renderMovement(entry))
	}
	return page
}

func rowRawValue(row MovementRow, snap Snapshot, bucket MovementBucket) float64 {
	if row.Value != nil && !math.IsNaN(*row.Value) && !math.IsInf(*row.Value, 0) {
		return *row.Value
	}
	qty := math.Abs(float64(row.Qty))
	fallback := roundCurrency(qty * snap.CostByItemID[row.ItemID])
	if bucket == BucketOutbound {
		return -fallback
	}
	return fallback
}

func renderMovement(entry scoredMovement) RecentMovement {
	row := entry.row
	qty := row.Qty
	if qty < 0 {
		qty = -qty
	}

	source := strings.TrimSpace(row.SourceWarehouse)
	if source == "" && entry.bucket == BucketOutbound {
		source = strings.TrimSpace(row.ItemWarehouse)
	}
	dest := strings.TrimSpace(row.DestWarehouse)
	if dest == "" && entry.bucket == BucketInbound {
		dest = strings.TrimSpace(row.ItemWarehouse)
	}

	warehouse := dest
	if warehouse == "" {
		warehouse = unassignedLabel
	}
	if source == "" {
		source = externalLabel
	}
	if dest == "" {
		dest = externalLabel
	}

	rendered := RecentMovement{
		Date:        row.CreatedAt.UTC().Format(time.RFC3339),
		Item:        labelOrDefault(row.ItemName, "Unknown Item"),
		Warehouse:   warehouse,
		Type:        DisplayKind(row.Kind),
		Qty:         qty,
		Value:       math.Abs(entry.rawValue),
		Source:      source,
		Destination: dest,
		Category:    labelOrDefault(row.Category, uncategorizedLabel),
	}
	if orderNo := strings.TrimSpace(row.OrderNo); orderNo != "" {
		rendered.OrderNo = &orderNo
	}
	if store := strings.TrimSpace(row.Store); store != "" {
		rendered.Store = &store
	}
	if code := strings.TrimSpace(row.ItemCode); code != "" {
		rendered.ItemCode = &code
	}
	return rendered
}
