package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/veloure/storefront/internal/port"
)

const stockKeyPrefix = "stock:"

// The compare-and-set runs as a Lua script so the read-compare-write is
// atomic on the Redis side. Returns {-1, 0} for a missing key, {1, next}
// when the swap applied, {0, current} when the guard value no longer matches.
var compareAndSetStockScript = redis.NewScript(`
local key = KEYS[1]
local expected = tonumber(ARGV[1])
local next = tonumber(ARGV[2])

local current = redis.call('GET', key)
if not current then
	return {-1, 0}
end

current = tonumber(current)
if current == expected then
	redis.call('SET', key, next)
	return {1, next}
end

return {0, current}
`)

type RedisInventory struct {
	client *redis.Client
}

func NewRedisInventory(client *redis.Client) *RedisInventory {
	return &RedisInventory{client: client}
}

func (r *RedisInventory) ReadStock(ctx context.Context, productID string) (port.StockSnapshot, error) {
	stock, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if errors.Is(err, redis.Nil) {
		return port.StockSnapshot{}, nil
	}
	if err != nil {
		return port.StockSnapshot{}, err
	}

	return port.StockSnapshot{Stock: stock, Exists: true}, nil
}

func (r *RedisInventory) CompareAndSetStock(ctx context.Context, productID string, expected, next int) (port.StockCAS, error) {
	key := stockKeyPrefix + productID

	result, err := compareAndSetStockScript.Run(ctx, r.client, []string{key}, expected, next).Int64Slice()
	if err != nil {
		return port.StockCAS{}, err
	}
	if len(result) != 2 {
		return port.StockCAS{}, errors.New("unexpected script reply")
	}

	// A vanished key reads as "not applied" with zero stock; the caller's
	// next read will report the product missing.
	return port.StockCAS{
		Applied: result[0] == 1,
		Stock:   int(result[1]),
	}, nil
}

// SetStock unconditionally seeds the counter. Used at startup to mirror
// catalog stock into Redis and by tests.
func (r *RedisInventory) SetStock(ctx context.Context, productID string, stock int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, stock, 0).Err()
}
