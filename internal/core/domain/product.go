package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string
	Slug        string
	Name        string
	Category    string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
