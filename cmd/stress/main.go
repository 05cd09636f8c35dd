package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veloure/storefront/internal/adapter/storage"
	"github.com/veloure/storefront/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	productID     = "stress-product"
	initialStock  = 20
	totalRequests = 50
	perRequest    = 1
)

// Hammers the reservation engine from many goroutines against a real Redis
// counter and checks the no-oversell and conservation properties hold.
func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	inventory := storage.NewRedisInventory(rdb)
	if err := inventory.SetStock(ctx, productID, initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	reserver := service.NewStockReserver(inventory, service.DefaultReserveAttempts, zap.NewNop())

	var granted atomic.Int32
	var soldOut atomic.Int32
	var conflicts atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := reserver.Reserve(ctx, productID, perRequest)
			switch {
			case err != nil:
				conflicts.Add(1)
			case res.Granted == 0:
				soldOut.Add(1)
			default:
				granted.Add(int32(res.Granted))
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	finalStock, _ := rdb.Get(ctx, "stock:"+productID).Int()

	fmt.Println("========== RESERVATION STRESS RESULTS ==========")
	fmt.Printf("Initial Stock:     %d\n", initialStock)
	fmt.Printf("Total Requests:    %d\n", totalRequests)
	fmt.Printf("Units Granted:     %d\n", granted.Load())
	fmt.Printf("Sold Out Replies:  %d\n", soldOut.Load())
	fmt.Printf("Conflict Errors:   %d\n", conflicts.Load())
	fmt.Printf("Final Stock:       %d\n", finalStock)
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("================================================")

	if int(granted.Load()) > initialStock {
		fmt.Printf("FAIL: oversold, granted %d of %d\n", granted.Load(), initialStock)
		return
	}
	if int(granted.Load())+finalStock != initialStock {
		fmt.Printf("FAIL: conservation broken, granted %d + remaining %d != %d\n",
			granted.Load(), finalStock, initialStock)
		return
	}
	fmt.Println("PASS: no oversell, stock conserved")
}
