package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veloure/storefront/internal/adapter/handler"
	"github.com/veloure/storefront/internal/adapter/storage"
	"github.com/veloure/storefront/internal/core/domain"
	"github.com/veloure/storefront/internal/core/event"
	"github.com/veloure/storefront/internal/core/service"
	"github.com/veloure/storefront/internal/port"
	"github.com/veloure/storefront/pkg/config"
	"github.com/veloure/storefront/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	zlog, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// MySQL: catalog, orders, fallback stock counter.
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		zlog.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal("failed to ping mysql", zap.Error(err))
	}
	zlog.Info("connected to mysql")

	// Redis: the shared stock counter every session races against.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to connect redis", zap.Error(err))
	}
	zlog.Info("connected to redis")

	mysqlStore := storage.NewMySQLStore(db)
	redisInventory := storage.NewRedisInventory(rdb)

	// Mirror catalog stock into the Redis counters at startup.
	if err := seedStock(ctx, mysqlStore, redisInventory, zlog); err != nil {
		zlog.Fatal("failed to seed stock counters", zap.Error(err))
	}

	cartBlobs, err := storage.NewFileBlobStore(cfg.CartDir)
	if err != nil {
		zlog.Fatal("failed to open cart storage", zap.Error(err))
	}

	bus := event.NewBus()
	bus.SubscribeItemAdded(func(ev event.ItemAdded) {
		zlog.Info("item added to cart",
			zap.String("product_id", ev.ProductID),
			zap.Int("quantity", ev.Quantity),
			zap.String("source", ev.Source),
		)
	})

	reserver := service.NewStockReserver(redisInventory, cfg.ReserveAttempts, zlog)
	cartService := service.NewCartService(cartBlobs, reserver, bus, zlog)
	checkoutService := service.NewCheckoutService(cartService, cfg.QueueSize, zlog)

	// Worker pool drains placed orders into MySQL, releasing reserved stock
	// back to the counter when persistence fails.
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, checkoutService.GetOrderQueue(), mysqlStore, reserver, zlog)
		}(i)
	}
	zlog.Info("started order workers", zap.Int("count", cfg.WorkerCount))

	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	httpHandler := handler.NewHTTPHandler(cartService, checkoutService, mysqlStore, zlog)
	httpHandler.Register(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			zlog.Error("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	zlog.Info("http server stopped")

	checkoutService.Close()
	wg.Wait()
	zlog.Info("workers stopped")

	rdb.Close()
	db.Close()
	zlog.Info("connections closed")
}

func seedStock(ctx context.Context, catalog port.CatalogRepository, inventory *storage.RedisInventory, zlog *zap.Logger) error {
	products, err := catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := inventory.SetStock(ctx, p.ID, p.Stock); err != nil {
			return err
		}
	}
	zlog.Info("seeded stock counters", zap.Int("products", len(products)))
	return nil
}

func workerLoop(id int, queue <-chan domain.Order, orders port.OrderRepository, reserver *service.StockReserver, zlog *zap.Logger) {
	for order := range queue {
		ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)

		if err := orders.CreateOrder(ctx, order); err != nil {
			zlog.Error("failed to save order",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)

			// Rollback: hand the reserved units back to the shared counter.
			for _, line := range order.Lines {
				if _, rollbackErr := reserver.Release(ctx, line.ProductID, line.Quantity); rollbackErr != nil {
					zlog.Error("rollback failed",
						zap.Int("worker", id),
						zap.String("order_id", order.ID),
						zap.String("product_id", line.ProductID),
						zap.Error(rollbackErr),
					)
				}
			}
		} else {
			zlog.Info("saved order",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
			)
		}

		cancelFn()
	}
}
