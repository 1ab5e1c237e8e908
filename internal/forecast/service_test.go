package forecast

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/pkg/redis"
)

// memStore 메모리 저장소
type memStore struct {
	mu     sync.Mutex
	series map[string]contracts.Series
	runs   map[string]*Run
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{series: map[string]contracts.Series{}, runs: map[string]*Run{}}
}

func (m *memStore) SaveSeries(_ context.Context, name string, s contracts.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[name] = s
	return nil
}

func (m *memStore) LoadSeries(_ context.Context, name string) (contracts.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[name]
	if !ok {
		return contracts.Series{}, fmt.Errorf("series %q: %w", name, contracts.ErrNotFound)
	}
	return s, nil
}

func (m *memStore) ListSeries(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for k := range m.series {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) SaveConsensus(_ context.Context, series, hash string, c *contracts.Consensus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.runs[series] = &Run{ID: m.nextID, Series: series, SpecHash: hash, Steps: c.Len(), Consensus: c}
	return m.nextID, nil
}

func (m *memStore) LatestConsensus(_ context.Context, series string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[series]
	if !ok {
		return nil, fmt.Errorf("forecast for %q: %w", series, contracts.ErrNotFound)
	}
	return run, nil
}

func noiseSeries(t *testing.T) contracts.Series {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	times := make([]time.Time, 100)
	values := make([]float64, 100)
	for i := range values {
		times[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		values[i] = 50 + rng.NormFloat64()
	}
	s, err := contracts.NewSeriesFromValues(times, values)
	require.NoError(t, err)
	return s
}

func newTestService(t *testing.T) (*Service, *memStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemStore()
	defaults := contracts.EnsembleConfig{
		Aggregation:   "median",
		Decomposition: "additive",
		Metric:        "mape",
		Models:        []contracts.ModelSpec{{Name: "linear"}, {Name: "theta"}},
	}
	cache := redis.NewCache(redis.NewFromClient(rdb), "kats")
	return NewService(store, cache, defaults, time.Hour, 2, zerolog.Nop()), store, mr
}

func TestService_RunCachesResult(t *testing.T) {
	svc, store, mr := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.ImportPoints(ctx, "noise", noiseSeries(t)))

	first, err := svc.Run(ctx, Request{Series: "noise", Steps: 5})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, int64(1), first.RunID)
	require.Equal(t, 5, first.Consensus.Len())
	assert.False(t, first.Consensus.Seasonal)

	key := "kats:cache:" + redis.ForecastKey("noise", first.SpecHash, 5)
	assert.True(t, mr.Exists(key))

	second, err := svc.Run(ctx, Request{Series: "noise", Steps: 5})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RunID, second.RunID)
	for i := range first.Consensus.Fcst {
		assert.InDelta(t, first.Consensus.Fcst[i], second.Consensus.Fcst[i], 1e-9)
		assert.True(t, first.Consensus.Time[i].Equal(second.Consensus.Time[i]))
	}
	assert.Equal(t, int64(1), store.nextID)

	// 포인트 적재 시 캐시 무효화
	require.NoError(t, svc.ImportPoints(ctx, "noise", noiseSeries(t)))
	assert.False(t, mr.Exists(key))

	third, err := svc.Run(ctx, Request{Series: "noise", Steps: 5, Fused: true})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, int64(2), third.RunID)

	latest, err := svc.Latest(ctx, "noise")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.ID)
}

func TestService_RunErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, Request{Series: "missing", Steps: 5})
	assert.True(t, errors.Is(err, contracts.ErrNotFound))

	_, err = svc.Run(ctx, Request{Series: "noise", Steps: 0})
	assert.True(t, errors.Is(err, contracts.ErrConfig))

	_, err = svc.Run(ctx, Request{Steps: 5})
	assert.True(t, errors.Is(err, contracts.ErrConfig))

	require.NoError(t, svc.ImportPoints(ctx, "noise", noiseSeries(t)))
	_, err = svc.Run(ctx, Request{
		Series: "noise",
		Steps:  5,
		Config: contracts.EnsembleConfig{Models: []contracts.ModelSpec{{Name: "lstm"}}},
	})
	assert.True(t, errors.Is(err, contracts.ErrUnknownModel))
}

func TestService_RunInline(t *testing.T) {
	svc, store, _ := newTestService(t)

	res, err := svc.RunInline(context.Background(), noiseSeries(t), contracts.EnsembleConfig{
		Models: []contracts.ModelSpec{{Name: "quadratic"}, {Name: "linear"}},
	}, 3, false)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Consensus.Len())
	assert.Equal(t, contracts.AggregationMedian, res.Consensus.Mode)
	assert.Len(t, res.SpecHash, 12)
	assert.Zero(t, store.nextID)

	names, err := svc.ListSeries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestService_WithDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	cfg := svc.withDefaults(contracts.EnsembleConfig{Aggregation: "weightedavg", SeasonalityLength: 7})
	assert.Equal(t, "weightedavg", cfg.Aggregation)
	assert.Equal(t, "additive", cfg.Decomposition)
	assert.Equal(t, 7, cfg.SeasonalityLength)
	assert.Equal(t, "mape", cfg.Metric)
	assert.Len(t, cfg.Models, 2)
}
