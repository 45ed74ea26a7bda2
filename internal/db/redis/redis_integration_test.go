//go:build integration

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"Agora/internal/core/statements"
)

var testRedisURL string

func TestMain(m *testing.M) {
	os.Exit(runWithRedis(m))
}

func runWithRedis(m *testing.M) int {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
		}
	}()

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		return 1
	}
	testRedisURL = "redis://" + endpoint
	return m.Run()
}

func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()
	client, err := NewClient(ctx, testRedisURL)
	require.NoError(t, err)
	require.NoError(t, client.FlushAll(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStatsCache_RoundTrip(t *testing.T) {
	rdb := setupTestClient(t)
	observer := &recordingObserver{}
	cache := NewStatsCache(rdb, time.Minute, observer, nil)
	ctx := context.Background()
	id := uuid.New()

	lookup, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, lookup.Hit)
	assert.Equal(t, int64(0), lookup.Generation)

	want := statements.Stats{VotesTotal: 5, VotesAgree: 2, VotesNeutral: 1, VotesDisagree: 2}
	require.NoError(t, cache.Set(ctx, id, want, lookup.Generation))

	lookup, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, lookup.Hit)
	assert.Equal(t, want, lookup.Stats)

	ttl, err := rdb.TTL(ctx, statsKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.Delete(ctx, id))
	lookup, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, lookup.Hit)
	assert.Equal(t, int64(1), lookup.Generation)

	assert.Equal(t, []string{"miss", "hit", "miss"}, observer.results)
}

func TestStatsCache_SetAfterInvalidateIsDropped(t *testing.T) {
	rdb := setupTestClient(t)
	observer := &recordingObserver{}
	cache := NewStatsCache(rdb, time.Minute, observer, nil)
	ctx := context.Background()
	id := uuid.New()

	// A reader misses, then a vote invalidates before the reader writes back
	miss, err := cache.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, cache.Delete(ctx, id))

	require.NoError(t, cache.Set(ctx, id, statements.Stats{}, miss.Generation))

	lookup, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, lookup.Hit, "counters read before the invalidation must not be cached")
	assert.Contains(t, observer.results, "stale")

	// A read that started after the invalidation is cached normally
	fresh := statements.Stats{VotesTotal: 1, VotesAgree: 1}
	require.NoError(t, cache.Set(ctx, id, fresh, lookup.Generation))
	lookup, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, lookup.Hit)
	assert.Equal(t, fresh, lookup.Stats)
}

func TestRateLimiter_Allow(t *testing.T) {
	rdb := setupTestClient(t)
	limiter := NewRateLimiter(rdb, "votes", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Separate keys have separate budgets
	ok, err = limiter.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := rdb.TTL(ctx, "agora:ratelimit:votes:user-1").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
	assert.Greater(t, ttl, time.Duration(0))
}
