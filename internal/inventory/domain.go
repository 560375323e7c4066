package inventory

import (
	"errors"
	"strings"
	"time"
)

// MovementKind enumerates movement kinds the processor accepts.
type MovementKind string

const (
	// KindIn represents an inbound movement (receipt).
	KindIn MovementKind = "IN"
	// KindOut represents an outbound movement (issue).
	KindOut MovementKind = "OUT"
	// KindAdjust sets the on-hand quantity to an absolute value.
	KindAdjust MovementKind = "ADJUST"
	// KindTransfer exists in the reporting vocabulary only; the processor
	// never produces it, transfers arrive as paired IN/OUT rows.
	KindTransfer MovementKind = "TRANSFER"
)

// MovementBucket is the canonical bucket a stored kind string normalizes into.
type MovementBucket string

const (
	BucketInbound  MovementBucket = "INBOUND"
	BucketOutbound MovementBucket = "OUTBOUND"
	BucketTransfer MovementBucket = "TRANSFER"
	BucketAdjust   MovementBucket = "ADJUST"
	BucketOther    MovementBucket = "OTHER"
)

// kindSpellings maps known external spellings to canonical buckets.
var kindSpellings = map[string]MovementBucket{
	"IN":         BucketInbound,
	"INBOUND":    BucketInbound,
	"RECEIPT":    BucketInbound,
	"OUT":        BucketOutbound,
	"OUTBOUND":   BucketOutbound,
	"ISSUE":      BucketOutbound,
	"TRANSFER":   BucketTransfer,
	"MOVE":       BucketTransfer,
	"XFER":       BucketTransfer,
	"ADJUST":     BucketAdjust,
	"ADJUSTMENT": BucketAdjust,
}

// NormalizeKind maps a free-form stored kind string to its canonical bucket.
func NormalizeKind(value string) MovementBucket {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return BucketOther
	}
	if bucket, ok := kindSpellings[normalized]; ok {
		return bucket
	}
	return BucketOther
}

// DisplayKind returns the human-readable label for a stored kind string.
func DisplayKind(value string) string {
	switch NormalizeKind(value) {
	case BucketInbound:
		return "Inbound"
	case BucketOutbound:
		return "Outbound"
	case BucketTransfer:
		return "Transfer"
	case BucketAdjust:
		return "Adjust"
	default:
		return "Other"
	}
}

// Status classifies an item's stock health.
type Status string

const (
	StatusInStock    Status = "In Stock"
	StatusLowStock   Status = "Low Stock"
	StatusOutOfStock Status = "Out of Stock"
)

// Item is the persisted inventory record. Quantity and cost are mutated only
// by the movement processor; everything else is catalog data.
type Item struct {
	ID             int64
	Code           string
	Name           string
	Category       string
	Unit           string
	QtyOnHand      int64
	ReorderPoint   int64
	UnitCost       *float64
	WarehouseID    *int64
	WarehouseName  string
	StoreID        *int64
	StoreName      string
	LastMovementAt *time.Time
}

// VendorQuote is a read-only (material code, price) pair used to infer a cost
// basis when an item carries no explicit unit cost.
type VendorQuote struct {
	ItemCode string
	Price    float64
}

// Movement is an append-only ledger row. Once written it is immutable;
// corrections arrive as new ADJUST rows.
type Movement struct {
	ID                int64
	ItemID            int64
	Kind              MovementKind
	Qty               int64
	Note              string
	Ref               string
	OrderID           *int64
	SourceWarehouseID *int64
	SourceLabel       string
	DestWarehouseID   *int64
	DestLabel         string
	SourceStoreID     *int64
	DestStoreID       *int64
	StoreID           *int64
	Value             float64
	CreatedAt         time.Time
}

// MovementInput describes a movement request handed to the processor.
type MovementInput struct {
	ItemID            int64
	Kind              MovementKind
	Qty               int64
	Note              string
	Ref               string
	OrderID           *int64
	SourceWarehouseID *int64
	SourceLabel       string
	DestWarehouseID   *int64
	DestLabel         string
	SourceStoreID     *int64
	DestStoreID       *int64
	ActorID           int64
}

// OrderContext carries the order fields the cost inference needs.
type OrderContext struct {
	OrderNo        string
	TotalValue     *float64
	LineQuantities []int64
}

// WarehouseRef is a resolved warehouse record.
type WarehouseRef struct {
	ID      int64
	Name    string
	StoreID *int64
}

// StoreRef is a resolved store record.
type StoreRef struct {
	ID   int64
	Name string
	Code string
}

// Label returns the display label for the store, preferring the name.
func (s StoreRef) Label() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return strings.TrimSpace(s.Code)
}

// ActivityMovement is the minimal joined shape the time-windowed activity
// aggregators consume. Kind keeps its raw stored spelling; Value is nil when
// the row predates value tracking.
type ActivityMovement struct {
	ItemID     *int64
	Kind       string
	Qty        int64
	Value      *float64
	StoreID    *int64
	StoreLabel string
	CreatedAt  time.Time
}

// MovementRow is the joined display shape the recent-movements query consumes.
type MovementRow struct {
	ID              int64
	CreatedAt       time.Time
	ItemID          int64
	ItemName        string
	ItemCode        string
	Category        string
	Kind            string
	Qty             int64
	Value           *float64
	SourceWarehouse string
	DestWarehouse   string
	ItemWarehouse   string
	Store           string
	OrderNo         string
}

// Sentinel errors surfaced by the movement processor.
var (
	// ErrItemNotFound triggered when the referenced item does not exist or is deleted.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be a positive integer")
	// ErrUnknownKind indicates a movement kind outside IN/OUT/ADJUST.
	ErrUnknownKind = errors.New("inventory: unknown movement kind")
)
