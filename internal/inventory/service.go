package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stocklens/stocklens/internal/shared"
)

// RepositoryPort abstracts persistence for the engine. The engine never issues
// queries itself; it consumes already-fetched records.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListActiveItems(ctx context.Context) ([]Item, error)
	ListVendorQuotes(ctx context.Context) ([]VendorQuote, error)
	ListMovementsBetween(ctx context.Context, from, to time.Time) ([]ActivityMovement, error)
	ListMovementRows(ctx context.Context) ([]MovementRow, error)
	ListWarehouseNames(ctx context.Context) ([]string, error)
	CountOpenRequestsByCode(ctx context.Context, codes []string) (int64, error)
	GetOrderContext(ctx context.Context, orderID int64) (OrderContext, error)
	GetWarehouse(ctx context.Context, id int64) (WarehouseRef, error)
	GetStore(ctx context.Context, id int64) (StoreRef, error)
	FallbackStore(ctx context.Context) (*StoreRef, error)
}

// TxRepository exposes the operations the processor runs inside one atomic
// unit of work.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the movement ledger and all derived analytics.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. Audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// loadContext builds the request-scoped metrics snapshot every analytics read
// operates on.
func (s *Service) loadContext(ctx context.Context) (Snapshot, error) {
	items, err := s.repo.ListActiveItems(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("inventory: load items: %w", err)
	}
	quotes, err := s.repo.ListVendorQuotes(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("inventory: load vendor quotes: %w", err)
	}
	return BuildSnapshot(items, quotes, s.now()), nil
}

// ApplyMovement applies one inbound/outbound/adjustment movement to an item,
// recomputing quantity and (on inbound) the weighted-average unit cost, and
// appends an immutable movement record. Steps run as one serializable unit of
// work scoped to the affected item; concurrent movements against the same item
// surface as shared.ErrConflict with no automatic retry.
func (s *Service) ApplyMovement(ctx context.Context, input MovementInput) (Item, Movement, error) {
	if input.Qty <= 0 {
		return Item{}, Movement{}, fmt.Errorf("%w: %w", shared.ErrInvalidInput, ErrInvalidQuantity)
	}
	switch input.Kind {
	case KindIn, KindOut, KindAdjust:
	default:
		return Item{}, Movement{}, fmt.Errorf("%w: %w: %q", shared.ErrInvalidInput, ErrUnknownKind, input.Kind)
	}
	if input.Ref != "" {
		if _, err := uuid.Parse(input.Ref); err != nil {
			return Item{}, Movement{}, fmt.Errorf("%w: inventory: invalid movement ref: %w", shared.ErrInvalidInput, err)
		}
	}

	quotes, err := s.repo.ListVendorQuotes(ctx)
	if err != nil {
		return Item{}, Movement{}, fmt.Errorf("inventory: load vendor quotes: %w", err)
	}
	avgByCode := VendorAverages(quotes)

	orderCost, orderCostOK := 0.0, false
	var order OrderContext
	if input.OrderID != nil {
		order, err = s.repo.GetOrderContext(ctx, *input.OrderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Item{}, Movement{}, fmt.Errorf("inventory: order %d: %w", *input.OrderID, err)
			}
			return Item{}, Movement{}, fmt.Errorf("inventory: load order: %w", err)
		}
		orderCost, orderCostOK = orderUnitCost(order, input.Qty)
	}

	refs, err := s.resolveRefs(ctx, input)
	if err != nil {
		return Item{}, Movement{}, err
	}

	now := s.now()
	var updated Item
	var movement Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: %w", ErrItemNotFound, err)
			}
			return err
		}

		current := item.QtyOnHand
		var nextQty int64
		switch input.Kind {
		case KindIn:
			nextQty = current + input.Qty
		case KindOut:
			// Over-withdrawal clamps to zero by policy, it does not error.
			nextQty = current - input.Qty
			if nextQty < 0 {
				nextQty = 0
			}
		case KindAdjust:
			nextQty = input.Qty
			if nextQty < 0 {
				nextQty = 0
			}
		}

		currentCost := ResolveCost(item, avgByCode)
		unitCostForValue := currentCost
		if orderCostOK {
			unitCostForValue = orderCost
		}
		if !usableCost(unitCostForValue) {
			unitCostForValue = currentCost
		}

		var value float64
		switch input.Kind {
		case KindIn:
			value = float64(input.Qty) * unitCostForValue
		case KindOut:
			value = -float64(input.Qty) * unitCostForValue
		case KindAdjust:
			value = float64(nextQty-current) * unitCostForValue
		}

		switch input.Kind {
		case KindIn:
			if usableCost(unitCostForValue) && nextQty > 0 {
				avg := weightedAverage(current, currentCost, input.Qty, unitCostForValue, nextQty)
				item.UnitCost = &avg
			}
		case KindAdjust:
			if usableCost(unitCostForValue) {
				cost := unitCostForValue
				item.UnitCost = &cost
			}
		}

		item.QtyOnHand = nextQty
		item.LastMovementAt = &now
		applyAssociations(&item, input.Kind, refs)

		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		movement = Movement{
			ItemID:            item.ID,
			Kind:              input.Kind,
			Qty:               input.Qty,
			Note:              input.Note,
			Ref:               input.Ref,
			OrderID:           input.OrderID,
			SourceWarehouseID: refs.sourceWarehouseID,
			SourceLabel:       refs.sourceLabel,
			DestWarehouseID:   refs.destWarehouseID,
			DestLabel:         refs.destLabel,
			SourceStoreID:     refs.sourceStoreID,
			DestStoreID:       refs.destStoreID,
			StoreID:           item.StoreID,
			Value:             roundCurrency(value),
			CreatedAt:         now,
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		updated = item
		return nil
	})
	if err != nil {
		return Item{}, Movement{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", input.Kind),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d:%d", movement.ItemID, movement.ID),
			Meta: map[string]any{
				"qty":   input.Qty,
				"value": movement.Value,
				"note":  input.Note,
			},
		})
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("cache bump failed", slog.Any("error", err))
		}
	}
	return updated, movement, nil
}

// resolvedRefs holds the warehouse/store associations for one movement.
type resolvedRefs struct {
	sourceWarehouseID *int64
	sourceLabel       string
	destWarehouseID   *int64
	destLabel         string
	destWarehouse     *WarehouseRef
	sourceStoreID     *int64
	destStoreID       *int64
	destStore         *StoreRef
	fallbackStore     *StoreRef
}

// resolveRefs resolves explicit entity references, keeping free-text labels
// when no entity exists.
func (s *Service) resolveRefs(ctx context.Context, input MovementInput) (resolvedRefs, error) {
	refs := resolvedRefs{
		sourceLabel: input.SourceLabel,
		destLabel:   input.DestLabel,
	}
	if input.SourceWarehouseID != nil {
		wh, err := s.repo.GetWarehouse(ctx, *input.SourceWarehouseID)
		if err != nil {
			return refs, fmt.Errorf("inventory: source warehouse %d: %w", *input.SourceWarehouseID, err)
		}
		refs.sourceWarehouseID = &wh.ID
		refs.sourceLabel = wh.Name
	}
	if input.DestWarehouseID != nil {
		wh, err := s.repo.GetWarehouse(ctx, *input.DestWarehouseID)
		if err != nil {
			return refs, fmt.Errorf("inventory: destination warehouse %d: %w", *input.DestWarehouseID, err)
		}
		refs.destWarehouseID = &wh.ID
		refs.destLabel = wh.Name
		refs.destWarehouse = &wh
	}
	if input.SourceStoreID != nil {
		st, err := s.repo.GetStore(ctx, *input.SourceStoreID)
		if err != nil {
			return refs, fmt.Errorf("inventory: source store %d: %w", *input.SourceStoreID, err)
		}
		refs.sourceStoreID = &st.ID
	}
	if input.DestStoreID != nil {
		st, err := s.repo.GetStore(ctx, *input.DestStoreID)
		if err != nil {
			return refs, fmt.Errorf("inventory: destination store %d: %w", *input.DestStoreID, err)
		}
		refs.destStoreID = &st.ID
		refs.destStore = &st
	}
	fallback, err := s.repo.FallbackStore(ctx)
	if err != nil {
		return refs, fmt.Errorf("inventory: fallback store: %w", err)
	}
	refs.fallbackStore = fallback
	return refs, nil
}

// applyAssociations moves the item into the destination warehouse on inbound
// movements and keeps its store association resolvable: destination store
// first, then the warehouse's own store, then the existing association, then
// any active fallback store.
func applyAssociations(item *Item, kind MovementKind, refs resolvedRefs) {
	if kind != KindIn {
		return
	}
	if refs.destWarehouse != nil {
		id := refs.destWarehouse.ID
		item.WarehouseID = &id
		item.WarehouseName = refs.destWarehouse.Name
	}
	switch {
	case refs.destStore != nil:
		id := refs.destStore.ID
		item.StoreID = &id
		item.StoreName = refs.destStore.Label()
	case refs.destWarehouse != nil && refs.destWarehouse.StoreID != nil:
		id := *refs.destWarehouse.StoreID
		item.StoreID = &id
	case item.StoreID != nil:
		// keep the existing association
	case refs.fallbackStore != nil:
		id := refs.fallbackStore.ID
		item.StoreID = &id
		item.StoreName = refs.fallbackStore.Label()
	}
}
