package rediscache

import (
	"context"
	"testing"
	"time"

	apporder "github.com/Zhima-Mochi/kitchenledger/internal/application/order"
	domorder "github.com/Zhima-Mochi/kitchenledger/internal/domain/order"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOrderCacheRoundTrip(t *testing.T) {
	mr, rdb := setupRedis(t)
	cache := NewOrderCache(rdb, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "ord-1")
	assert.ErrorIs(t, err, apporder.ErrCacheMiss)

	view := &apporder.OrderView{
		ID:          "ord-1",
		CustomerID:  "cus-1",
		Status:      domorder.StatusPending,
		Total:       decimal.RequireFromString("4500"),
		DeliveryFee: decimal.RequireFromString("1500"),
		Items: []apporder.ItemView{
			{ID: "line-1", MenuItemID: "menu-1", Quantity: 2, UnitPrice: decimal.NewFromInt(1500), Subtotal: decimal.NewFromInt(3000)},
		},
	}
	require.NoError(t, cache.Set(ctx, view))
	assert.True(t, mr.Exists("order:ord-1"))
	assert.Equal(t, time.Minute, mr.TTL("order:ord-1"))

	got, err := cache.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "cus-1", got.CustomerID)
	assert.True(t, got.Total.Equal(view.Total))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	require.NoError(t, cache.Invalidate(ctx, "ord-1"))
	_, err = cache.Get(ctx, "ord-1")
	assert.ErrorIs(t, err, apporder.ErrCacheMiss)
}

func TestOrderCacheDropsCorruptEntries(t *testing.T) {
	mr, rdb := setupRedis(t)
	require.NoError(t, mr.Set("order:bad", "{not json"))

	_, err := NewOrderCache(rdb, 0).Get(context.Background(), "bad")
	assert.ErrorIs(t, err, apporder.ErrCacheMiss)
	assert.False(t, mr.Exists("order:bad"))
}

func TestOrderCacheExpires(t *testing.T) {
	mr, rdb := setupRedis(t)
	cache := NewOrderCache(rdb, time.Second)
	require.NoError(t, cache.Set(context.Background(), &apporder.OrderView{ID: "ord-1"}))

	mr.FastForward(2 * time.Second)
	_, err := cache.Get(context.Background(), "ord-1")
	assert.ErrorIs(t, err, apporder.ErrCacheMiss)
}

func TestRateLimiter(t *testing.T) {
	mr, rdb := setupRedis(t)
	limiter := NewRateLimiter(rdb, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are counted separately")

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "window resets after expiry")
}

func TestRateLimiterDisabled(t *testing.T) {
	_, rdb := setupRedis(t)
	ok, err := NewRateLimiter(rdb, 0, 0).Allow(context.Background(), "any")
	require.NoError(t, err)
	assert.True(t, ok)
}
