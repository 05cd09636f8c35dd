package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veloure/storefront/internal/port"
)

// fakeInventory is a linearizable in-memory stock counter with knobs for
// forcing CAS conflicts and for mutating stock between a read and the
// following conditional write.
type fakeInventory struct {
	mu        sync.Mutex
	stock     map[string]int
	failCASN  int
	afterRead func(productID string)
	casCalls  int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{stock: make(map[string]int)}
}

func (f *fakeInventory) set(productID string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[productID] = stock
}

func (f *fakeInventory) get(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

func (f *fakeInventory) ReadStock(ctx context.Context, productID string) (port.StockSnapshot, error) {
	f.mu.Lock()
	stock, ok := f.stock[productID]
	hook := f.afterRead
	f.mu.Unlock()

	if hook != nil {
		hook(productID)
	}
	return port.StockSnapshot{Stock: stock, Exists: ok}, nil
}

func (f *fakeInventory) CompareAndSetStock(ctx context.Context, productID string, expected, next int) (port.StockCAS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.casCalls++
	current, ok := f.stock[productID]
	if !ok {
		return port.StockCAS{Applied: false, Stock: 0}, nil
	}
	if f.failCASN > 0 {
		f.failCASN--
		return port.StockCAS{Applied: false, Stock: current}, nil
	}
	if current != expected {
		return port.StockCAS{Applied: false, Stock: current}, nil
	}
	f.stock[productID] = next
	return port.StockCAS{Applied: true, Stock: next}, nil
}

func newTestReserver(inv *fakeInventory) *StockReserver {
	return NewStockReserver(inv, DefaultReserveAttempts, zap.NewNop())
}

func TestReserve_PartialGrants(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("lip-tint", 5)
	r := newTestReserver(inv)

	// Full grant while stock allows.
	res, err := r.Reserve(ctx, "lip-tint", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Granted)
	assert.Equal(t, 2, res.Stock)

	// Partial grant when more is requested than remains.
	res, err = r.Reserve(ctx, "lip-tint", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Granted)
	assert.Equal(t, 0, res.Stock)

	// Sold out is a zero grant, not an error.
	res, err = r.Reserve(ctx, "lip-tint", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Granted)
	assert.Equal(t, 0, res.Stock)
}

func TestReserve_ProductNotFound(t *testing.T) {
	inv := newFakeInventory()
	r := newTestReserver(inv)

	res, err := r.Reserve(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, 0, res.Granted)
}

func TestReserve_CoercesBadQuantities(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("serum", 10)
	r := newTestReserver(inv)

	for _, requested := range []int{0, -3} {
		res, err := r.Reserve(ctx, "serum", requested)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Granted, "requested %d should floor to 1", requested)
	}
	assert.Equal(t, 8, inv.get("serum"))
}

func TestReserve_RetriesAfterLostWrite(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("balm", 10)
	inv.failCASN = 1
	r := newTestReserver(inv)

	res, err := r.Reserve(ctx, "balm", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Granted)
	assert.Equal(t, 8, res.Stock)
	assert.Equal(t, 2, inv.casCalls, "first write should lose, second should apply")
}

func TestReserve_ConflictAfterExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("balm", 10)
	inv.failCASN = DefaultReserveAttempts
	r := newTestReserver(inv)

	res, err := r.Reserve(ctx, "balm", 2)
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Equal(t, 0, res.Granted)
	assert.Equal(t, 10, res.Stock, "best-known stock still reported")
	assert.Equal(t, 10, inv.get("balm"), "no units leaked")
}

func TestReserve_GrantRecomputedEachRetry(t *testing.T) {
	// Another session drains most of the stock between our read and write;
	// the retry must cap the grant at the newly observed value.
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("mask", 5)
	r := newTestReserver(inv)

	drained := false
	inv.afterRead = func(productID string) {
		if !drained {
			drained = true
			inv.mu.Lock()
			inv.stock[productID] = 2
			inv.mu.Unlock()
		}
	}

	res, err := r.Reserve(ctx, "mask", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Granted)
	assert.Equal(t, 0, res.Stock)
}

func TestRelease_ReturnsUnits(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("lip-tint", 2)
	r := newTestReserver(inv)

	stock, err := r.Release(ctx, "lip-tint", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, stock)
}

func TestRelease_ZeroQtyIsNoOp(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("lip-tint", 4)
	r := newTestReserver(inv)

	stock, err := r.Release(ctx, "lip-tint", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, stock)
	assert.Equal(t, 4, inv.get("lip-tint"))
}

func TestRelease_ConflictAfterExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("lip-tint", 2)
	inv.failCASN = DefaultReserveAttempts
	r := newTestReserver(inv)

	_, err := r.Release(ctx, "lip-tint", 1)
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Equal(t, 2, inv.get("lip-tint"))
}

func TestResize_GrowAppliesOnlyGrant(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("serum", 2)
	r := newTestReserver(inv)

	// Wants 5 more, only 2 exist.
	res, err := r.Resize(ctx, "serum", 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Quantity)
	assert.Equal(t, 0, res.Stock)
}

func TestResize_ShrinkAppliesDesiredEvenOnReleaseFailure(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	inv.set("serum", 0)
	inv.failCASN = DefaultReserveAttempts
	r := newTestReserver(inv)

	res, err := r.Resize(ctx, "serum", 4, 2)
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Equal(t, 2, res.Quantity, "shrink applies even when the release loses")
}

func TestReserve_NoOversellUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	const initialStock = 10
	inv.set("drop", initialStock)
	r := newTestReserver(inv)

	// Two tabs racing for 6 units each out of 10: grants must sum to at
	// most 10 and every grant must be accounted for in the counter.
	var mu sync.Mutex
	totalGranted := 0

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			res, err := r.Reserve(gctx, "drop", 6)
			if err != nil && !errors.Is(err, ErrStockConflict) {
				return err
			}
			mu.Lock()
			totalGranted += res.Granted
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, totalGranted, initialStock)
	assert.Equal(t, initialStock-totalGranted, inv.get("drop"), "conservation")
}

func TestReserve_ConservationAcrossMixedOps(t *testing.T) {
	ctx := context.Background()
	inv := newFakeInventory()
	const initialStock = 12
	inv.set("oil", initialStock)
	r := newTestReserver(inv)

	reserved := 0
	released := 0

	for _, step := range []struct {
		reserve bool
		qty     int
	}{
		{true, 4}, {true, 3}, {false, 2}, {true, 6}, {false, 1},
	} {
		if step.reserve {
			res, err := r.Reserve(ctx, "oil", step.qty)
			require.NoError(t, err)
			reserved += res.Granted
		} else {
			_, err := r.Release(ctx, "oil", step.qty)
			require.NoError(t, err)
			released += step.qty
		}
	}

	assert.Equal(t, initialStock-reserved+released, inv.get("oil"))
}
