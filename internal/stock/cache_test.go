package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLevelCache(t *testing.T) *LevelCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLevelCache(client, time.Minute)
}

func TestLevelCacheLoadsOnceThenServesFromCache(t *testing.T) {
	cache := newTestLevelCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (int64, error) {
		loads++
		return 42, nil
	}

	qty, err := cache.OnHand(ctx, 10, loader)
	require.NoError(t, err)
	require.EqualValues(t, 42, qty)
	require.Equal(t, 1, loads)

	qty, err = cache.OnHand(ctx, 10, loader)
	require.NoError(t, err)
	require.EqualValues(t, 42, qty)
	require.Equal(t, 1, loads)
}

func TestLevelCacheInvalidateForcesReload(t *testing.T) {
	cache := newTestLevelCache(t)
	ctx := context.Background()

	onHand := int64(42)
	loads := 0
	loader := func(context.Context) (int64, error) {
		loads++
		return onHand, nil
	}

	qty, err := cache.OnHand(ctx, 10, loader)
	require.NoError(t, err)
	require.EqualValues(t, 42, qty)

	onHand = 35
	cache.Invalidate(ctx, 10)

	qty, err = cache.OnHand(ctx, 10, loader)
	require.NoError(t, err)
	require.EqualValues(t, 35, qty)
	require.Equal(t, 2, loads)
}

func TestLevelCacheKeysAreIndependent(t *testing.T) {
	cache := newTestLevelCache(t)
	ctx := context.Background()

	load10 := func(context.Context) (int64, error) { return 5, nil }
	load11 := func(context.Context) (int64, error) { return 9, nil }

	qty, err := cache.OnHand(ctx, 10, load10)
	require.NoError(t, err)
	require.EqualValues(t, 5, qty)

	qty, err = cache.OnHand(ctx, 11, load11)
	require.NoError(t, err)
	require.EqualValues(t, 9, qty)

	cache.Invalidate(ctx, 10)
	loads := 0
	qty, err = cache.OnHand(ctx, 11, func(context.Context) (int64, error) {
		loads++
		return 0, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 9, qty)
	require.Equal(t, 0, loads)
}

func TestLevelCacheNilDegradesToLoader(t *testing.T) {
	var cache *LevelCache
	qty, err := cache.OnHand(context.Background(), 10, func(context.Context) (int64, error) { return 7, nil })
	require.NoError(t, err)
	require.EqualValues(t, 7, qty)
}
