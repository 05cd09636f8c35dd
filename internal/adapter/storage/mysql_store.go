package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/veloure/storefront/internal/core/domain"
	"github.com/veloure/storefront/internal/port"
)

// MySQLStore backs the product catalog, order persistence, and an
// InventoryStore implementation that rides the products.stock column. The
// conditional write is an UPDATE guarded on the previously read stock value;
// zero rows affected means another session got there first.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) ReadStock(ctx context.Context, productID string) (port.StockSnapshot, error) {
	var stock int
	err := m.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = ?`, productID,
	).Scan(&stock)

	if errors.Is(err, sql.ErrNoRows) {
		return port.StockSnapshot{}, nil
	}
	if err != nil {
		return port.StockSnapshot{}, fmt.Errorf("query stock: %w", err)
	}

	return port.StockSnapshot{Stock: stock, Exists: true}, nil
}

func (m *MySQLStore) CompareAndSetStock(ctx context.Context, productID string, expected, next int) (port.StockCAS, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, updated_at = NOW()
		WHERE id = ? AND stock = ?`,
		next, productID, expected,
	)
	if err != nil {
		return port.StockCAS{}, fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return port.StockCAS{Applied: true, Stock: next}, nil
	}

	// Lost the race; report whatever the counter holds now.
	snap, err := m.ReadStock(ctx, productID)
	if err != nil {
		return port.StockCAS{}, err
	}
	return port.StockCAS{Applied: false, Stock: snap.Stock}, nil
}

func (m *MySQLStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, slug, name, category, description, price, image_url, stock, created_at, updated_at
		FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Slug, &p.Name, &p.Category, &p.Description,
			&p.Price, &p.ImageURL, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (m *MySQLStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return m.getProductWhere(ctx, "id = ?", id)
}

func (m *MySQLStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return m.getProductWhere(ctx, "slug = ?", slug)
}

func (m *MySQLStore) getProductWhere(ctx context.Context, where string, arg any) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, slug, name, category, description, price, image_url, stock, created_at, updated_at
		FROM products WHERE `+where, arg,
	).Scan(
		&p.ID, &p.Slug, &p.Name, &p.Category, &p.Description,
		&p.Price, &p.ImageURL, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLStore) CreateProduct(ctx context.Context, p domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, slug, name, category, description, price, image_url, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
		p.ID, p.Slug, p.Name, p.Category, p.Description, p.Price, p.ImageURL, p.Stock,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET slug = ?, name = ?, category = ?, description = ?, price = ?, image_url = ?, stock = ?, updated_at = NOW()
		WHERE id = ?`,
		p.Slug, p.Name, p.Category, p.Description, p.Price, p.ImageURL, p.Stock, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (m *MySQLStore) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Status, order.Total,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, name, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, line.ProductID, line.Name, line.UnitPrice, line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return tx.Commit()
}
