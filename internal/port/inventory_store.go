package port

import "context"

// StockSnapshot is one read of the shared stock counter. Exists reports
// whether the product has a counter at all.
type StockSnapshot struct {
	Stock  int
	Exists bool
}

// StockCAS is the outcome of a conditional stock write. Stock carries the
// counter's resulting value whether or not the write applied.
type StockCAS struct {
	Applied bool
	Stock   int
}

// InventoryStore is the shared stock counter, one non-negative integer per
// product, visible to every session. The backing store exposes no locking;
// the conditional write is the only concurrency primitive.
type InventoryStore interface {
	// ReadStock returns the current counter value for a product.
	ReadStock(ctx context.Context, productID string) (StockSnapshot, error)

	// CompareAndSetStock sets the counter to next only if its current value
	// still equals expected. Applied=false means another session moved the
	// counter first; that is not an error.
	CompareAndSetStock(ctx context.Context, productID string, expected, next int) (StockCAS, error)
}
