package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoomarket/shop-subscriptions/internal/config"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

func setupTestCache(t *testing.T) *Cache {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
		Password:     "",
		DB:           0,
		User:         "",
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	return cache
}

func TestSetAndGet(t *testing.T) {
	cache := setupTestCache(t)

	expected := models.Subscription{
		ID:                "a7e6c1de-35a8-49a1-8f5f-222f2ce1c001",
		ShopID:            "b1f1aa00-0000-4000-8000-000000000001",
		Plan:              models.PlanRetailer,
		Amount:            9999,
		Status:            models.SubscriptionPending,
		AttemptsRemaining: 3,
	}
	err := cache.Set("subscription:shop:"+expected.ShopID, expected, time.Minute)
	require.NoError(t, err)

	var actual models.Subscription
	found, err := cache.Get("subscription:shop:"+expected.ShopID, &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache := setupTestCache(t)

	var out models.Subscription
	found, err := cache.Get("no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Set("subscription:shop:abc", "value", time.Minute))
	require.NoError(t, cache.Invalidate("subscription:shop:abc"))

	var out string
	found, err := cache.Get("subscription:shop:abc", &out)
	require.NoError(t, err)
	assert.False(t, found)
}
