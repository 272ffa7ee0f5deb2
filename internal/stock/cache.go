package stock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LevelCache serves the fast on-hand read path that previously lived as a
// denormalized counter on the product row. The level table stays the single
// source of truth; the cache is invalidated after every committed mutation.
type LevelCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLevelCache instantiates the cache helper.
func NewLevelCache(client *redis.Client, ttl time.Duration) *LevelCache {
	return &LevelCache{client: client, ttl: ttl}
}

func levelKey(productID int64) string {
	return fmt.Sprintf("stock:level:%d", productID)
}

// OnHand returns the cached on-hand quantity, populating it from loader on
// miss. A nil cache degrades to a direct load.
func (c *LevelCache) OnHand(ctx context.Context, productID int64, loader func(context.Context) (int64, error)) (int64, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := levelKey(productID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if qty, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			return qty, nil
		}
	} else if err != redis.Nil {
		return 0, err
	}
	qty, err := loader(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.client.Set(ctx, key, strconv.FormatInt(qty, 10), c.ttl).Err(); err != nil {
		return qty, err
	}
	return qty, nil
}

// Invalidate drops cached quantities for the given products. Best effort:
// a failed delete only delays freshness until TTL expiry.
func (c *LevelCache) Invalidate(ctx context.Context, productIDs ...int64) {
	if c == nil || c.client == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, levelKey(id))
	}
	_ = c.client.Del(ctx, keys...).Err()
}
