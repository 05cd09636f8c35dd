package port

import (
	"context"

	"github.com/veloure/storefront/internal/core/domain"
)

// CatalogRepository is the external product catalog. Reads back the shop
// pages; create/update back the admin product manager.
type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// GetProduct returns nil when no product matches.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)

	CreateProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, product domain.Product) error
}

// OrderRepository persists placed orders.
type OrderRepository interface {
	// CreateOrder inserts the order and its lines in one transaction.
	CreateOrder(ctx context.Context, order domain.Order) error
}
