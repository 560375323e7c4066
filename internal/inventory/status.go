package inventory

// Classify maps quantity-on-hand and reorder point to a stock-health status.
// A reorder point of zero means the threshold is unconfigured and can never
// trigger Low Stock.
func Classify(qty, reorderPoint int64) Status {
	if qty <= 0 {
		return StatusOutOfStock
	}
	if reorderPoint > 0 && qty <= reorderPoint {
		return StatusLowStock
	}
	return StatusInStock
}
