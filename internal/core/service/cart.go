package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/veloure/storefront/internal/core/domain"
	"github.com/veloure/storefront/internal/core/event"
	"github.com/veloure/storefront/internal/port"
)

// CartStorageKey is the fixed key the serialized cart lives under.
const CartStorageKey = "veloure_cart"

// AddResult reports what an add actually achieved: the granted quantity may
// be lower than requested, down to zero when the product is sold out.
type AddResult struct {
	Granted        int
	RemainingStock int
	Lines          []domain.CartLine
}

// CartService owns the persisted cart. It is the only component that applies
// reservation results to stored state; every mutation goes reserve-first,
// then persist, then notify.
type CartService struct {
	blobs    port.BlobStore
	reserver *StockReserver
	bus      *event.Bus
	logger   *zap.Logger
}

func NewCartService(blobs port.BlobStore, reserver *StockReserver, bus *event.Bus, logger *zap.Logger) *CartService {
	return &CartService{
		blobs:    blobs,
		reserver: reserver,
		bus:      bus,
		logger:   logger,
	}
}

// GetCart loads the persisted lines in insertion order. An absent or
// malformed blob reads as an empty cart, never as an error.
func (s *CartService) GetCart(ctx context.Context) []domain.CartLine {
	data, found, err := s.blobs.Load(ctx, CartStorageKey)
	if err != nil {
		s.logger.Warn("cart load failed, treating as empty", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		s.logger.Warn("cart blob malformed, treating as empty", zap.Error(err))
		return nil
	}
	return lines
}

// AddLine reserves up to requested units and applies the grant to the cart:
// an existing line for the product absorbs the grant, otherwise a new line is
// appended with price and stock snapshots taken now. Emits CartChanged after
// persisting and ItemAdded only when the grant is positive.
func (s *CartService) AddLine(ctx context.Context, product domain.Product, requested int, source string) (AddResult, error) {
	res, reserveErr := s.reserver.Reserve(ctx, product.ID, requested)

	lines := s.GetCart(ctx)
	idx := findLine(lines, product.ID)

	switch {
	case idx >= 0:
		lines[idx].Quantity += res.Granted
		lines[idx].RemainingStock = clampStock(res.Stock)
	case res.Granted > 0:
		lines = append(lines, domain.CartLine{
			ProductID:      product.ID,
			Name:           product.Name,
			ImageURL:       product.ImageURL,
			UnitPrice:      product.Price,
			Quantity:       res.Granted,
			RemainingStock: clampStock(res.Stock),
		})
	default:
		// Nothing granted: no new line (a line never exists below quantity
		// 1), but the persist-and-notify cycle still runs.
	}

	if err := s.persist(ctx, lines); err != nil {
		return AddResult{Granted: res.Granted, RemainingStock: clampStock(res.Stock), Lines: lines}, err
	}

	if res.Granted > 0 {
		s.bus.PublishItemAdded(event.ItemAdded{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  res.Granted,
			Source:    source,
		})
	}

	return AddResult{Granted: res.Granted, RemainingStock: clampStock(res.Stock), Lines: lines}, reserveErr
}

// UpdateLineQty resizes an existing line. The desired quantity is clamped to
// [1, current+cachedRemaining] before touching the counter, so the engine is
// never asked for more than it could possibly grant. Absent lines are a
// no-op.
func (s *CartService) UpdateLineQty(ctx context.Context, productID string, desired int) ([]domain.CartLine, error) {
	lines := s.GetCart(ctx)
	idx := findLine(lines, productID)
	if idx < 0 {
		return lines, nil
	}
	line := &lines[idx]

	maxAllowed := line.Quantity + line.RemainingStock
	if maxAllowed < 1 {
		maxAllowed = 1
	}
	if desired < 1 {
		desired = 1
	}
	if desired > maxAllowed {
		desired = maxAllowed
	}
	if desired == line.Quantity {
		return lines, nil
	}

	res, resizeErr := s.reserver.Resize(ctx, productID, line.Quantity, desired)
	line.Quantity = res.Quantity
	line.RemainingStock = clampStock(res.Stock)

	if err := s.persist(ctx, lines); err != nil {
		return lines, err
	}
	if resizeErr != nil {
		s.logger.Warn("resize reported an error",
			zap.String("product_id", productID),
			zap.Int("quantity", res.Quantity),
			zap.Error(resizeErr),
		)
	}
	return lines, resizeErr
}

// RemoveLine releases the line's full quantity best-effort and deletes it.
// The line goes away even when the release loses its race; keeping it stuck
// in the cart forever is worse than a transient accounting skew.
func (s *CartService) RemoveLine(ctx context.Context, productID string) ([]domain.CartLine, error) {
	lines := s.GetCart(ctx)
	idx := findLine(lines, productID)
	if idx < 0 {
		return lines, nil
	}

	_, releaseErr := s.reserver.Release(ctx, productID, lines[idx].Quantity)
	if releaseErr != nil {
		s.logger.Error("release on remove failed, removing line anyway",
			zap.String("product_id", productID),
			zap.Int("quantity", lines[idx].Quantity),
			zap.Error(releaseErr),
		)
	}

	lines = append(lines[:idx], lines[idx+1:]...)
	if err := s.persist(ctx, lines); err != nil {
		return lines, err
	}
	return lines, releaseErr
}

// SaveCart replaces the whole cart. Checkout success calls this with nil to
// clear it; the change notification fires even for an empty sequence.
func (s *CartService) SaveCart(ctx context.Context, lines []domain.CartLine) error {
	return s.persist(ctx, lines)
}

func (s *CartService) persist(ctx context.Context, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.blobs.Store(ctx, CartStorageKey, data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	s.bus.PublishCartChanged(lines)
	return nil
}

func findLine(lines []domain.CartLine, productID string) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func clampStock(stock int) int {
	if stock < 0 {
		return 0
	}
	return stock
}
