package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewCacheWithClient(client), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	type payload struct {
		Role string `json:"role"`
	}

	require.NoError(t, cache.Set(ctx, "doc:1:user:bob:role", payload{Role: "editor"}, time.Minute))

	var got payload
	found, err := cache.Get(ctx, "doc:1:user:bob:role", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "editor", got.Role)
}

func TestGetMiss(t *testing.T) {
	cache, _ := setupCache(t)

	var got string
	found, err := cache.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Delete(ctx, "key"))

	var got string
	found, _ := cache.Get(ctx, "key", &got)
	assert.False(t, found)
}

func TestSetExpires(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	mr.FastForward(2 * time.Minute)

	var got string
	found, _ := cache.Get(ctx, "key", &got)
	assert.False(t, found)
}

func TestVersionCounter(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	assert.Equal(t, uint64(0), cache.GetVersion(ctx, "user:alice:docs:version"))

	cache.IncrementVersion(ctx, "user:alice:docs:version")
	cache.IncrementVersion(ctx, "user:alice:docs:version")
	assert.Equal(t, uint64(2), cache.GetVersion(ctx, "user:alice:docs:version"))
}

func TestNilClientDegradesToMiss(t *testing.T) {
	cache := NewCacheWithClient(nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))

	var got string
	found, err := cache.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Delete(ctx, "key"))
	assert.Equal(t, uint64(0), cache.GetVersion(ctx, "key"))
	cache.IncrementVersion(ctx, "key")
}
