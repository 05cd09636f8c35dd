package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veloure/storefront/internal/core/domain"
)

var ErrEmptyCart = errors.New("cart is empty")

// CheckoutService turns the current cart into an order. Orders are handed to
// a buffered queue and persisted asynchronously by workers; the cart is
// cleared as soon as the order is queued, since the units were already
// reserved at add time.
type CheckoutService struct {
	cart       *CartService
	orderQueue chan domain.Order
	logger     *zap.Logger
}

func NewCheckoutService(cart *CartService, queueSize int, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		cart:       cart,
		orderQueue: make(chan domain.Order, queueSize),
		logger:     logger,
	}
}

func (s *CheckoutService) PlaceOrder(ctx context.Context, userID string) (domain.Order, error) {
	lines := s.cart.GetCart(ctx)
	if len(lines) == 0 {
		return domain.Order{}, ErrEmptyCart
	}

	order := domain.OrderFromCart(uuid.NewString(), userID, lines)
	s.orderQueue <- order

	if err := s.cart.SaveCart(ctx, nil); err != nil {
		s.logger.Error("failed to clear cart after checkout",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
	return order, nil
}

func (s *CheckoutService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

func (s *CheckoutService) Close() {
	close(s.orderQueue)
}
