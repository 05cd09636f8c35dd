package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderLine struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type Order struct {
	ID        string
	UserID    string
	Status    OrderStatus
	Lines     []OrderLine
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderFromCart copies cart lines into order rows. The cart itself stays
// untouched; clearing it is the caller's responsibility.
func OrderFromCart(id, userID string, lines []CartLine) Order {
	now := time.Now()
	order := Order{
		ID:        id,
		UserID:    userID,
		Status:    OrderStatusPending,
		Total:     Subtotal(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, line := range lines {
		order.Lines = append(order.Lines, OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return order
}
