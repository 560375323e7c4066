package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stocklens/stocklens/internal/shared"
)

// ListActiveItems returns all non-deleted items with their warehouse and store
// labels resolved.
func (r *Repository) ListActiveItems(ctx context.Context) ([]Item, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("inventory repo not initialised")
	}
	const query = `
		SELECT i.id,
		       COALESCE(i.material_no, ''),
		       COALESCE(i.name, ''),
		       COALESCE(i.category, ''),
		       COALESCE(i.unit, ''),
		       COALESCE(i.qty_on_hand, 0),
		       COALESCE(i.reorder_point, 0),
		       i.unit_cost,
		       i.warehouse_id,
		       COALESCE(w.name, ''),
		       i.store_id,
		       COALESCE(NULLIF(s.name, ''), s.code, ''),
		       i.last_movement_at
		FROM inventory_items i
		LEFT JOIN warehouses w ON w.id = i.warehouse_id
		LEFT JOIN stores s ON s.id = i.store_id
		WHERE i.deleted_at IS NULL
		ORDER BY i.id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID,
			&item.Code,
			&item.Name,
			&item.Category,
			&item.Unit,
			&item.QtyOnHand,
			&item.ReorderPoint,
			&item.UnitCost,
			&item.WarehouseID,
			&item.WarehouseName,
			&item.StoreID,
			&item.StoreName,
			&item.LastMovementAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListVendorQuotes returns every vendor quote with a material code and price.
func (r *Repository) ListVendorQuotes(ctx context.Context) ([]VendorQuote, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("inventory repo not initialised")
	}
	const query = `
		SELECT COALESCE(item_code, ''), COALESCE(price, 0)
		FROM vendor_quotes
		WHERE item_code IS NOT NULL`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []VendorQuote
	for rows.Next() {
		var quote VendorQuote
		if err := rows.Scan(&quote.ItemCode, &quote.Price); err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, rows.Err()
}

// ListMovementsBetween returns movements created within [from, to] with their
// store labels resolved.
func (r *Repository) ListMovementsBetween(ctx context.Context, from, to time.Time) ([]ActivityMovement, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("inventory repo not initialised")
	}
	const query = `
		SELECT m.item_id,
		       COALESCE(m.move_type, ''),
		       COALESCE(m.qty, 0),
		       m.value_sar,
		       m.store_id,
		       COALESCE(NULLIF(s.name, ''), s.code, ''),
		       m.created_at
		FROM stock_movements m
		LEFT JOIN stores s ON s.id = m.store_id
		WHERE m.created_at >= $1 AND m.created_at <= $2
		ORDER BY m.created_at`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []ActivityMovement
	for rows.Next() {
		var movement ActivityMovement
		if err := rows.Scan(
			&movement.ItemID,
			&movement.Kind,
			&movement.Qty,
			&movement.Value,
			&movement.StoreID,
			&movement.StoreLabel,
			&movement.CreatedAt,
		); err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	return movements, rows.Err()
}

// ListMovementRows returns the joined display rows for the movements listing,
// newest first.
func (r *Repository) ListMovementRows(ctx context.Context) ([]MovementRow, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("inventory repo not initialised")
	}
	const query = `
		SELECT m.id,
		       m.created_at,
		       m.item_id,
		       COALESCE(i.name, ''),
		       COALESCE(i.material_no, ''),
		       COALESCE(i.category, ''),
		       COALESCE(m.move_type, ''),
		       COALESCE(m.qty, 0),
		       m.value_sar,
		       COALESCE(NULLIF(sw.name, ''), m.source_label, ''),
		       COALESCE(NULLIF(dw.name, ''), m.dest_label, ''),
		       COALESCE(iw.name, ''),
		       COALESCE(
		           NULLIF(ms.name, ''), ms.code,
		           NULLIF(ds.name, ''), ds.code,
		           NULLIF(istore.name, ''), istore.code,
		           ''),
		       COALESCE(o.order_no, '')
		FROM stock_movements m
		LEFT JOIN inventory_items i ON i.id = m.item_id
		LEFT JOIN warehouses iw ON iw.id = i.warehouse_id
		LEFT JOIN warehouses sw ON sw.id = m.source_warehouse_id
		LEFT JOIN warehouses dw ON dw.id = m.dest_warehouse_id
		LEFT JOIN stores ms ON ms.id = m.store_id
		LEFT JOIN stores ds ON ds.id = m.dest_store_id
		LEFT JOIN stores istore ON istore.id = i.store_id
		LEFT JOIN orders o ON o.id = m.order_id
		ORDER BY m.created_at DESC, m.id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MovementRow
	for rows.Next() {
		var row MovementRow
		if err := rows.Scan(
			&row.ID,
			&row.CreatedAt,
			&row.ItemID,
			&row.ItemName,
			&row.ItemCode,
			&row.Category,
			&row.Kind,
			&row.Qty,
			&row.Value,
			&row.SourceWarehouse,
			&row.DestWarehouse,
			&row.ItemWarehouse,
			&row.Store,
			&row.OrderNo,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ListWarehouseNames returns the names of all warehouses.
func (r *Repository) ListWarehouseNames(ctx context.Context) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("inventory repo not initialised")
	}
	const query = `SELECT COALESCE(name, '') FROM warehouses ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CountOpenRequestsByCode counts distinct open purchasing requests whose lines
// reference any of the given material codes.
func (r *Repository) CountOpenRequestsByCode(ctx context.Context, codes []string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("inventory repo not initialised")
	}
	if len(codes) == 0 {
		return 0, nil
	}
	const query = `
		SELECT COUNT(DISTINCT ri.request_id)
		FROM request_items ri
		JOIN requests req ON req.id = ri.request_id
		WHERE req.status NOT IN ('Completed', 'Rejected', 'Cancelled')
		  AND UPPER(TRIM(ri.material_no)) = ANY($1)`
	var count int64
	if err := r.pool.QueryRow(ctx, query, codes).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetOrderContext loads the order fields cost inference needs.
func (r *Repository) GetOrderContext(ctx context.Context, orderID int64) (OrderContext, error) {
	if r == nil || r.pool == nil {
		return OrderContext{}, fmt.Errorf("inventory repo not initialised")
	}
	const query = `SELECT COALESCE(order_no, ''), total_value FROM orders WHERE id = $1`
	var order OrderContext
	if err := r.pool.QueryRow(ctx, query, orderID).Scan(&order.OrderNo, &order.TotalValue); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderContext{}, fmt.Errorf("order %d: %w", orderID, shared.ErrNotFound)
		}
		return OrderContext{}, err
	}

	const lineQuery = `SELECT COALESCE(qty, 0) FROM order_items WHERE order_id = $1`
	rows, err := r.pool.Query(ctx, lineQuery, orderID)
	if err != nil {
		return OrderContext{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var qty int64
		if err := rows.Scan(&qty); err != nil {
			return OrderContext{}, err
		}
		order.LineQuantities = append(order.LineQuantities, qty)
	}
	return order, rows.Err()
}

// GetWarehouse resolves a warehouse reference.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (WarehouseRef, error) {
	if r == nil || r.pool == nil {
		return WarehouseRef{}, fmt.Errorf("inventory repo not initialised")
	}
	const query = `SELECT id, COALESCE(name, ''), store_id FROM warehouses WHERE id = $1`
	var wh WarehouseRef
	if err := r.pool.QueryRow(ctx, query, id).Scan(&wh.ID, &wh.Name, &wh.StoreID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseRef{}, fmt.Errorf("warehouse %d: %w", id, shared.ErrNotFound)
		}
		return WarehouseRef{}, err
	}
	return wh, nil
}

// GetStore resolves a store reference.
func (r *Repository) GetStore(ctx context.Context, id int64) (StoreRef, error) {
	if r == nil || r.pool == nil {
		return StoreRef{}, fmt.Errorf("inventory repo not initialised")
	}
	const query = `SELECT id, COALESCE(name, ''), COALESCE(code, '') FROM stores WHERE id = $1`
	var store StoreRef
	if err := r.pool.QueryRow(ctx, query, id).Scan(&store.ID, &store.Name, &store.Code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoreRef{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
		}
		return StoreRef{}, err
	}
	return store, nil
}

// FallbackStore returns any active store, nil when none exist.
func (r *Repository) FallbackStore(ctx context.Context) (*StoreRef, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("inventory repo not initialised")
	}
	const query = `
		SELECT id, COALESCE(name, ''), COALESCE(code, '')
		FROM stores
		WHERE active
		ORDER BY id
		LIMIT 1`
	var store StoreRef
	if err := r.pool.QueryRow(ctx, query).Scan(&store.ID, &store.Name, &store.Code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &store, nil
}

// GetItemForUpdate locks and returns the item row for the duration of the
// transaction.
func (t *txRepo) GetItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	const query = `
		SELECT i.id,
		       COALESCE(i.material_no, ''),
		       COALESCE(i.name, ''),
		       COALESCE(i.category, ''),
		       COALESCE(i.unit, ''),
		       COALESCE(i.qty_on_hand, 0),
		       COALESCE(i.reorder_point, 0),
		       i.unit_cost,
		       i.warehouse_id,
		       i.store_id,
		       i.last_movement_at
		FROM inventory_items i
		WHERE i.id = $1 AND i.deleted_at IS NULL
		FOR UPDATE OF i`
	var item Item
	if err := t.tx.QueryRow(ctx, query, itemID).Scan(
		&item.ID,
		&item.Code,
		&item.Name,
		&item.Category,
		&item.Unit,
		&item.QtyOnHand,
		&item.ReorderPoint,
		&item.UnitCost,
		&item.WarehouseID,
		&item.StoreID,
		&item.LastMovementAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
		}
		return Item{}, err
	}
	return item, nil
}

// UpdateItem writes the mutable item fields.
func (t *txRepo) UpdateItem(ctx context.Context, item Item) error {
	const query = `
		UPDATE inventory_items
		SET qty_on_hand = $2,
		    unit_cost = $3,
		    warehouse_id = $4,
		    store_id = $5,
		    last_movement_at = $6,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query,
		item.ID,
		item.QtyOnHand,
		item.UnitCost,
		item.WarehouseID,
		item.StoreID,
		item.LastMovementAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %d: %w", item.ID, shared.ErrNotFound)
	}
	return nil
}

// InsertMovement appends the ledger row, returning its id.
func (t *txRepo) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	const query = `
		INSERT INTO stock_movements (
			item_id, move_type, qty, note, ref, order_id,
			source_warehouse_id, source_label,
			dest_warehouse_id, dest_label,
			source_store_id, dest_store_id, store_id,
			value_sar, created_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), $6,
			$7, NULLIF($8, ''),
			$9, NULLIF($10, ''),
			$11, $12, $13,
			$14, $15
		)
		RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		movement.ItemID,
		string(movement.Kind),
		movement.Qty,
		movement.Note,
		movement.Ref,
		movement.OrderID,
		movement.SourceWarehouseID,
		movement.SourceLabel,
		movement.DestWarehouseID,
		movement.DestLabel,
		movement.SourceStoreID,
		movement.DestStoreID,
		movement.StoreID,
		movement.Value,
		movement.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
