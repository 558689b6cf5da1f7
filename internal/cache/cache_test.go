package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	client.FlushDB(ctx)
	return client
}

type payload struct {
	Total int      `json:"total"`
	Names []string `json:"names"`
}

func TestStoreRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	store := New(client)
	defer store.Close()
	ctx := context.Background()

	var got payload
	ok, err := store.Load(ctx, "stats", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "stats", payload{Total: 3, Names: []string{"a"}}, time.Minute))
	ok, err = store.Load(ctx, "stats", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, got.Total)

	ttl, err := client.TTL(ctx, "crowdwatch:stats").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Drop(ctx, "stats"))
	ok, err = store.Load(ctx, "stats", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	ctx := context.Background()
	var dst payload
	ok, err := s.Load(ctx, "k", &dst)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Save(ctx, "k", dst, time.Second))
	assert.NoError(t, s.Drop(ctx, "k"))
	assert.NoError(t, s.Close())
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "not-a-url")
	assert.Error(t, err)
}
