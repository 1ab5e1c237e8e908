package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/internal/forecast"
	"github.com/wonny/kats/pkg/config"
	"github.com/wonny/kats/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "off"})
}

type fakeForecaster struct {
	series   []string
	listErr  error
	failFor  map[string]bool
	requests []forecast.Request
}

func (f *fakeForecaster) ListSeries(context.Context) ([]string, error) {
	return f.series, f.listErr
}

func (f *fakeForecaster) Run(_ context.Context, req forecast.Request) (*forecast.Result, error) {
	f.requests = append(f.requests, req)
	if f.failFor[req.Series] {
		return nil, errors.New("fit failed")
	}
	return &forecast.Result{Series: req.Series, RunID: int64(len(f.requests))}, nil
}

func TestForecastJob_RunsEverySeries(t *testing.T) {
	svc := &fakeForecaster{series: []string{"sales", "visits"}}
	job := NewForecastJob(svc, "0 0 6 * * *", 14, testLogger())

	assert.Equal(t, "forecast_refresh", job.Name())
	assert.Equal(t, "0 0 6 * * *", job.Schedule())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, svc.requests, 2)
	for _, req := range svc.requests {
		assert.Equal(t, 14, req.Steps)
		assert.True(t, req.NoCache)
	}
}

func TestForecastJob_ContinuesPastFailures(t *testing.T) {
	svc := &fakeForecaster{
		series:  []string{"a", "b", "c"},
		failFor: map[string]bool{"b": true},
	}
	err := NewForecastJob(svc, "@daily", 0, testLogger()).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1/3")
	assert.Len(t, svc.requests, 3)
}

func TestForecastJob_Empty(t *testing.T) {
	svc := &fakeForecaster{}
	assert.NoError(t, NewForecastJob(svc, "@daily", 0, testLogger()).Run(context.Background()))
	assert.Empty(t, svc.requests)
}

func TestForecastJob_ListError(t *testing.T) {
	svc := &fakeForecaster{listErr: errors.New("db down")}
	err := NewForecastJob(svc, "@daily", 0, testLogger()).Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestForecastJob_Cancelled(t *testing.T) {
	svc := &fakeForecaster{series: []string{"a"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewForecastJob(svc, "@daily", 0, testLogger()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.requests)
}

type fakePruner struct {
	before  time.Time
	removed int64
	err     error
}

func (p *fakePruner) PruneRuns(_ context.Context, before time.Time) (int64, error) {
	p.before = before
	return p.removed, p.err
}

func TestRetentionJob(t *testing.T) {
	p := &fakePruner{removed: 3}
	job := NewRetentionJob(p, 48*time.Hour, testLogger())
	now := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), p.before)
}

func TestRetentionJob_DisabledAndError(t *testing.T) {
	p := &fakePruner{}
	require.NoError(t, NewRetentionJob(p, 0, testLogger()).Run(context.Background()))
	assert.True(t, p.before.IsZero())

	p.err = errors.New("locked")
	assert.ErrorContains(t, NewRetentionJob(p, time.Hour, testLogger()).Run(context.Background()), "locked")
}
