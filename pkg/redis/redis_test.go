package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb), mr
}

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestDisabledIsNoop(t *testing.T) {
	client, _ := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	ctx := context.Background()

	allowed, remaining, err := NewRateLimiter(client, "kats").Allow(ctx, APIRateLimit("127.0.0.1", 10))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 10, remaining)

	cache := NewCache(client, "kats")
	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(ctx, "key", "v", time.Minute))
}

func TestCache_RoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "kats")
	ctx := context.Background()

	type payload struct {
		Steps int       `json:"steps"`
		Fcst  []float64 `json:"fcst"`
	}
	key := ForecastKey("sales", "abc123", 7)
	require.NoError(t, cache.Set(ctx, key, payload{Steps: 7, Fcst: []float64{1, 2}}, time.Minute))
	assert.True(t, mr.Exists("kats:cache:forecast:sales:abc123:7"))

	var got payload
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Steps: 7, Fcst: []float64{1, 2}}, got)

	mr.FastForward(2 * time.Minute)
	found, err = cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_DeletePrefix(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "kats")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, ForecastKey("sales", "h1", 7), 1, time.Hour))
	require.NoError(t, cache.Set(ctx, ForecastKey("sales", "h2", 14), 2, time.Hour))
	require.NoError(t, cache.Set(ctx, ForecastKey("traffic", "h1", 7), 3, time.Hour))

	n, err := cache.DeletePrefix(ctx, SeriesForecastPrefix("sales"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("kats:cache:forecast:traffic:h1:7"))

	require.NoError(t, cache.Delete(ctx, ForecastKey("traffic", "h1", 7)))
	assert.False(t, mr.Exists("kats:cache:forecast:traffic:h1:7"))
}

func TestCache_DeletePrefix_GlobCharacters(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "kats")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, ForecastKey("a[1]*", "h1", 7), 1, time.Hour))
	require.NoError(t, cache.Set(ctx, ForecastKey("a1x", "h1", 7), 2, time.Hour))
	require.NoError(t, cache.Set(ctx, ForecastKey("a?b", "h1", 7), 3, time.Hour))
	require.NoError(t, cache.Set(ctx, ForecastKey("axb", "h1", 7), 4, time.Hour))

	n, err := cache.DeletePrefix(ctx, SeriesForecastPrefix("a[1]*"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists("kats:cache:forecast:a[1]*:h1:7"))
	assert.True(t, mr.Exists("kats:cache:forecast:a1x:h1:7"))

	n, err = cache.DeletePrefix(ctx, SeriesForecastPrefix("a?b"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("kats:cache:forecast:axb:h1:7"))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `kats:cache:forecast:plain:`, escapeGlob("kats:cache:forecast:plain:"))
	assert.Equal(t, `a\[1\]\*\?\\`, escapeGlob(`a[1]*?\`))
}

func TestRateLimiter_Window(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client, "kats")
	ctx := context.Background()
	cfg := RateLimitConfig{Key: "api:test", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		allowed, remaining, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, remaining, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "forecast:sales:abc:30", ForecastKey("sales", "abc", 30))
	assert.Equal(t, "forecast:sales:", SeriesForecastPrefix("sales"))
	assert.Equal(t, "api:10.0.0.1", APIRateLimit("10.0.0.1", 60).Key)
}
