package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/veloure/storefront/internal/port"
)

// DefaultReserveAttempts bounds the optimistic-concurrency retry loop. Three
// attempts with no backoff matches observed contention on a small storefront;
// it is a tunable, not a contract.
const DefaultReserveAttempts = 3

var (
	ErrProductNotFound = errors.New("product not found")
	ErrStockConflict   = errors.New("stock update conflict, please try again")
)

// ReserveResult pairs the granted quantity with the best-known counter value,
// so callers can refresh their display even on partial failure.
type ReserveResult struct {
	Granted int
	Stock   int
}

// ResizeResult is the quantity a line should hold after a resize, with the
// best-known counter value.
type ResizeResult struct {
	Quantity int
	Stock    int
}

// StockReserver moves units between the shared stock counter and one
// session's cart using compare-and-set retries. It keeps no per-product
// queue; callers must not fire concurrent operations for the same product
// within one session.
type StockReserver struct {
	inventory port.InventoryStore
	attempts  int
	logger    *zap.Logger
}

func NewStockReserver(inventory port.InventoryStore, attempts int, logger *zap.Logger) *StockReserver {
	if attempts < 1 {
		attempts = DefaultReserveAttempts
	}
	return &StockReserver{
		inventory: inventory,
		attempts:  attempts,
		logger:    logger,
	}
}

// normalizeQty floors nonsensical requested quantities to 1. Release deltas
// bypass this; they must match the quantity being returned exactly.
func normalizeQty(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}

// Reserve grants up to requested units by conditionally decrementing the
// shared counter. The grant is capped at the stock observed on every retry
// iteration, so the sum of grants across all sessions never exceeds the stock
// that ever existed. A zero grant with nil error means sold out.
func (r *StockReserver) Reserve(ctx context.Context, productID string, requested int) (ReserveResult, error) {
	requested = normalizeQty(requested)

	lastStock := 0
	for attempt := 0; attempt < r.attempts; attempt++ {
		snap, err := r.inventory.ReadStock(ctx, productID)
		if err != nil {
			return ReserveResult{Stock: lastStock}, fmt.Errorf("read stock: %w", err)
		}
		if !snap.Exists {
			return ReserveResult{}, ErrProductNotFound
		}
		lastStock = snap.Stock

		available := snap.Stock
		if available < 0 {
			available = 0
		}
		grant := requested
		if grant > available {
			grant = available
		}
		if grant <= 0 {
			return ReserveResult{Granted: 0, Stock: snap.Stock}, nil
		}

		cas, err := r.inventory.CompareAndSetStock(ctx, productID, snap.Stock, snap.Stock-grant)
		if err != nil {
			return ReserveResult{Stock: snap.Stock}, fmt.Errorf("write stock: %w", err)
		}
		if cas.Applied {
			return ReserveResult{Granted: grant, Stock: cas.Stock}, nil
		}

		// Another session moved the counter between our read and write.
		lastStock = cas.Stock
		r.logger.Debug("reserve lost optimistic write, retrying",
			zap.String("product_id", productID),
			zap.Int("attempt", attempt+1),
			zap.Int("stock", cas.Stock),
		)
	}

	r.logger.Warn("reserve exhausted retries",
		zap.String("product_id", productID),
		zap.Int("requested", requested),
		zap.Int("attempts", r.attempts),
	)
	return ReserveResult{Granted: 0, Stock: lastStock}, ErrStockConflict
}

// Release returns qty previously reserved units to the shared counter. It is
// the additive mirror of Reserve. Failure is non-fatal to callers but is
// still reported; a lost release shows up as a transient accounting skew, not
// a stuck cart.
func (r *StockReserver) Release(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		snap, err := r.inventory.ReadStock(ctx, productID)
		if err != nil {
			return 0, fmt.Errorf("read stock: %w", err)
		}
		return snap.Stock, nil
	}

	lastStock := 0
	for attempt := 0; attempt < r.attempts; attempt++ {
		snap, err := r.inventory.ReadStock(ctx, productID)
		if err != nil {
			return lastStock, fmt.Errorf("read stock: %w", err)
		}
		if !snap.Exists {
			return 0, ErrProductNotFound
		}
		lastStock = snap.Stock

		cas, err := r.inventory.CompareAndSetStock(ctx, productID, snap.Stock, snap.Stock+qty)
		if err != nil {
			return snap.Stock, fmt.Errorf("write stock: %w", err)
		}
		if cas.Applied {
			return cas.Stock, nil
		}
		lastStock = cas.Stock
	}

	r.logger.Warn("release exhausted retries",
		zap.String("product_id", productID),
		zap.Int("qty", qty),
		zap.Int("attempts", r.attempts),
	)
	return lastStock, ErrStockConflict
}

// Resize moves a line from current to desired units. Growth applies only
// whatever Reserve actually granted; shrink applies desired exactly even when
// the release loses its race, since trapping units as unreleasable is worse
// than a transient counter skew.
func (r *StockReserver) Resize(ctx context.Context, productID string, current, desired int) (ResizeResult, error) {
	desired = normalizeQty(desired)

	switch {
	case desired > current:
		res, err := r.Reserve(ctx, productID, desired-current)
		return ResizeResult{Quantity: current + res.Granted, Stock: res.Stock}, err
	case desired < current:
		stock, err := r.Release(ctx, productID, current-desired)
		return ResizeResult{Quantity: desired, Stock: stock}, err
	default:
		snap, err := r.inventory.ReadStock(ctx, productID)
		if err != nil {
			return ResizeResult{Quantity: current}, fmt.Errorf("read stock: %w", err)
		}
		return ResizeResult{Quantity: current, Stock: snap.Stock}, nil
	}
}
