package domain

import "github.com/shopspring/decimal"

// CartLine is one product's entry in a cart. Quantity is the amount this
// session has reserved against the shared stock counter; RemainingStock is a
// snapshot of what was left after that reservation, used only to bound
// quantity controls, never as the source of truth.
type CartLine struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	ImageURL       string          `json:"image_url"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	RemainingStock int             `json:"remaining_stock"`
}

// Subtotal sums unit price times quantity across all lines.
func Subtotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}
