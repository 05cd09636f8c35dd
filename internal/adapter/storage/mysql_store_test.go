package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veloure/storefront/internal/core/domain"
)

func getMySQL(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/veloure?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func insertTestProduct(t *testing.T, store *MySQLStore, stock int) domain.Product {
	t.Helper()

	p := domain.Product{
		ID:       uuid.NewString(),
		Slug:     "test-" + uuid.NewString(),
		Name:     "Test Product",
		Category: "test",
		Price:    decimal.NewFromFloat(19.99),
		ImageURL: "https://example.test/p.jpg",
		Stock:    stock,
	}
	if err := store.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("failed to insert product: %v", err)
	}
	t.Cleanup(func() {
		store.db.Exec(`DELETE FROM products WHERE id = ?`, p.ID)
	})
	return p
}

func TestMySQLStore_CompareAndSetStock(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLStore(db)
	p := insertTestProduct(t, store, 10)

	cas, err := store.CompareAndSetStock(ctx, p.ID, 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cas.Applied || cas.Stock != 6 {
		t.Errorf("expected applied with stock 6, got %+v", cas)
	}

	// Stale guard loses and reports the current value.
	cas, err = store.CompareAndSetStock(ctx, p.ID, 10, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cas.Applied {
		t.Error("expected stale guard to be rejected")
	}
	if cas.Stock != 6 {
		t.Errorf("expected resulting stock 6, got %d", cas.Stock)
	}
}

func TestMySQLStore_ReadStock_Missing(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	store := NewMySQLStore(db)
	snap, err := store.ReadStock(context.Background(), "no-such-product")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Exists {
		t.Error("expected missing product")
	}
}

func TestMySQLStore_ProductCRUD(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLStore(db)
	p := insertTestProduct(t, store, 5)

	got, err := store.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Slug != p.Slug {
		t.Fatalf("expected product %s, got %+v", p.ID, got)
	}

	bySlug, err := store.GetProductBySlug(ctx, p.Slug)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bySlug == nil || bySlug.ID != p.ID {
		t.Fatalf("slug lookup mismatch: %+v", bySlug)
	}

	got.Name = "Renamed"
	got.Stock = 8
	if err := store.UpdateProduct(ctx, *got); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	again, err := store.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Name != "Renamed" || again.Stock != 8 {
		t.Errorf("update not applied: %+v", again)
	}
}

func TestMySQLStore_CreateOrder(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	ctx := context.Background()
	store := NewMySQLStore(db)
	p := insertTestProduct(t, store, 5)

	order := domain.OrderFromCart(uuid.NewString(), "user-test", []domain.CartLine{
		{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: 2},
	})
	t.Cleanup(func() {
		store.db.Exec(`DELETE FROM order_lines WHERE order_id = ?`, order.ID)
		store.db.Exec(`DELETE FROM orders WHERE id = ?`, order.ID)
	})

	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM order_lines WHERE order_id = ?`, order.ID).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 order line, got %d", count)
	}
}
