package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, ttl)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func testBundle() *domain.Handoff {
	return &domain.Handoff{
		CartData:    `[{"id":"l1","productId":"p1","name":"Fern","price":"10.000đ","image":"","quantity":2}]`,
		UserData:    `{"id":"u1","fullName":"Lan","email":"","phoneNumber":""}`,
		TotalAmount: "20000",
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, time.Minute)
	defer cleanup()

	data, _ := json.Marshal(testBundle())
	mr.Set(cacheKey("u1"), string(data))

	result, err := cache.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "20000", result.TotalAmount)
	assert.Equal(t, testBundle().CartData, result.CartData)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t, time.Minute)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, time.Minute)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("u1"), `{"cartData":`))

	_, err := cache.Get(context.Background(), "u1")
	require.ErrorContains(t, err, "unmarshal handoff failed")
}

func TestSet_StoresWithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, 10*time.Minute)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), "u1", testBundle()))

	stored, err := mr.Get(cacheKey("u1"))
	require.NoError(t, err)

	var got domain.Handoff
	require.NoError(t, json.Unmarshal([]byte(stored), &got))
	assert.Equal(t, *testBundle(), got)
	assert.Equal(t, 10*time.Minute, mr.TTL(cacheKey("u1")))
}

func TestSet_ExpiresAfterTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, time.Minute)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), "u1", testBundle()))
	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, time.Minute)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "u1", testBundle()))
	require.True(t, mr.Exists(cacheKey("u1")))

	require.NoError(t, cache.Delete(ctx, "u1"))
	assert.False(t, mr.Exists(cacheKey("u1")))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t, time.Minute)
	defer cleanup()

	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestRedis_ConnectionError(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, time.Minute)
	defer cleanup()
	mr.Close()

	_, err := cache.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "handoff:test123", cacheKey("test123"))
}
