package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
)

var (
	_ ItemCache = NoopItemCache{}
	_ ItemCache = (*RedisItemCache)(nil)
)

func TestNoopItemCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	c := NoopItemCache{}
	require.NoError(t, c.Set(ctx, &domain.Item{Code: "AB12CD"}, time.Minute))

	item, ok, err := c.Get(ctx, "AB12CD")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, item)
}

func TestRedisItemCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("STOCKFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set STOCKFLOW_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisItemCache(addr, os.Getenv("STOCKFLOW_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	item := &domain.Item{Code: "ZZTEST", Name: "Cache Kurti", SellingPrice: decimal.RequireFromString("499.50"), Quantity: 4, PiecesPerBox: 1}
	require.NoError(t, c.Set(ctx, item, time.Minute))

	got, ok, err := c.Get(ctx, "ZZTEST")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Cache Kurti", got.Name)
	assert.True(t, got.SellingPrice.Equal(item.SellingPrice))

	require.NoError(t, c.Invalidate(ctx, "ZZTEST"))
	_, ok, err = c.Get(ctx, "ZZTEST")
	require.NoError(t, err)
	assert.False(t, ok)
}
