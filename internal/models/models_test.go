package models

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/internal/contracts"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(t *testing.T, values []float64) contracts.Series {
	t.Helper()
	times := make([]time.Time, len(values))
	for i := range times {
		times[i] = start.AddDate(0, 0, i)
	}
	s, err := contracts.NewSeriesFromValues(times, values)
	require.NoError(t, err)
	return s
}

func noisySeasonal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = 100 + 0.3*float64(i) + 5*math.Sin(2*math.Pi*float64(i)/7) + rng.NormFloat64()
	}
	return values
}

func fitPredict(t *testing.T, spec contracts.ModelSpec, series contracts.Series, steps int) *contracts.Forecast {
	t.Helper()
	m, err := NewRegistry(zerolog.Nop()).New(spec)
	require.NoError(t, err)
	fitted, err := m.Fit(context.Background(), series)
	require.NoError(t, err)
	f, err := fitted.Predict(context.Background(), steps)
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	return f
}

func assertFutureIndex(t *testing.T, series contracts.Series, f *contracts.Forecast, steps int) {
	t.Helper()
	require.Len(t, f.Time, steps)
	last := series.Last().Time
	for h, ts := range f.Time {
		assert.True(t, ts.Equal(last.AddDate(0, 0, h+1)), "time[%d] = %v", h, ts)
	}
}

func TestLinear_ExactTrend(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 3 + 2*float64(i)
	}
	series := makeSeries(t, values)

	f := fitPredict(t, contracts.ModelSpec{Name: "linear"}, series, 3)

	assertFutureIndex(t, series, f, 3)
	assert.InDeltaSlice(t, []float64{43, 45, 47}, []float64(f.Fcst), 1e-6)
	assert.InDeltaSlice(t, []float64{43, 45, 47}, []float64(f.Lower), 1e-6, "zero residual gives a degenerate interval")
}

func TestQuadratic_ExactCurve(t *testing.T) {
	values := make([]float64, 15)
	for i := range values {
		x := float64(i)
		values[i] = 1 + 0.5*x + 0.25*x*x
	}
	series := makeSeries(t, values)

	f := fitPredict(t, contracts.ModelSpec{Name: "quadratic"}, series, 2)

	for h := 0; h < 2; h++ {
		x := float64(15 + h)
		assert.InDelta(t, 1+0.5*x+0.25*x*x, f.Fcst[h], 1e-6)
	}
}

func TestModels_IntervalsBracketForecast(t *testing.T) {
	series := makeSeries(t, noisySeasonal(90, 1))

	for _, name := range []string{"linear", "quadratic", "theta", "prophet", "arima"} {
		t.Run(name, func(t *testing.T) {
			f := fitPredict(t, contracts.ModelSpec{Name: name}, series, 10)

			assertFutureIndex(t, series, f, 10)
			require.True(t, f.HasInterval())
			for h := 0; h < 10; h++ {
				assert.False(t, math.IsNaN(f.Fcst[h]))
				assert.LessOrEqual(t, f.Lower[h], f.Fcst[h])
				assert.GreaterOrEqual(t, f.Upper[h], f.Fcst[h])
			}
		})
	}
}

func TestHoltWinters_NoInterval(t *testing.T) {
	series := makeSeries(t, noisySeasonal(60, 2))

	f := fitPredict(t, contracts.ModelSpec{Name: "holtwinters", Params: contracts.Params{"seasonal_periods": 7}}, series, 5)

	assertFutureIndex(t, series, f, 5)
	assert.False(t, f.HasInterval())
	for _, v := range f.Fcst {
		assert.False(t, math.IsNaN(v))
	}
}

func TestHoltWinters_FollowsTrend(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 10 + float64(i)
	}

	f := fitPredict(t, contracts.ModelSpec{Name: "holtwinters"}, makeSeries(t, values), 2)

	assert.InDelta(t, 40.0, f.Fcst[0], 1e-6)
	assert.InDelta(t, 41.0, f.Fcst[1], 1e-6)
}

func TestProphet_CapturesWeeklyCycle(t *testing.T) {
	values := make([]float64, 70)
	for i := range values {
		values[i] = 20 + 4*math.Sin(2*math.Pi*float64(i)/7)
	}

	f := fitPredict(t, contracts.ModelSpec{Name: "prophet"}, makeSeries(t, values), 7)

	for h := 0; h < 7; h++ {
		want := 20 + 4*math.Sin(2*math.Pi*float64(70+h)/7)
		assert.InDelta(t, want, f.Fcst[h], 1e-6)
	}
}

func TestSARIMA_IncludeHistory(t *testing.T) {
	series := makeSeries(t, noisySeasonal(60, 3))
	params := contracts.Params{"p": 1, "d": 1, "q": 1, "include_history": 1}

	f := fitPredict(t, contracts.ModelSpec{Name: "sarima", Params: params}, series, 5)

	require.Equal(t, 65, f.Len())
	assert.True(t, f.Time[0].Equal(series.First().Time))
	// k = max(p,d,q) + max(P,D,Q)*s + 1 = 2
	assert.True(t, math.IsNaN(f.Fcst[0]))
	assert.True(t, math.IsNaN(f.Fcst[1]))
	for h := 60; h < 65; h++ {
		assert.False(t, math.IsNaN(f.Fcst[h]))
	}
}

func TestSARIMA_SeasonalOrderNeedsPeriod(t *testing.T) {
	_, err := NewSARIMA(contracts.Params{"seasonal_p": 1}, zerolog.Nop())
	assert.ErrorIs(t, err, contracts.ErrConfig)
}

func TestModels_Errors(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	short := makeSeries(t, []float64{1, 2})

	for _, name := range []string{"linear", "arima", "theta", "holtwinters", "prophet"} {
		m, err := r.New(contracts.ModelSpec{Name: name})
		require.NoError(t, err)
		_, err = m.Fit(context.Background(), short)
		assert.ErrorIs(t, err, contracts.ErrInsufficientData, name)
	}

	m, _ := r.New(contracts.ModelSpec{Name: "linear"})
	fitted, err := m.Fit(context.Background(), makeSeries(t, []float64{1, 2, 3, 4, 5}))
	require.NoError(t, err)
	_, err = fitted.Predict(context.Background(), 0)
	assert.ErrorIs(t, err, contracts.ErrConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Fit(ctx, makeSeries(t, []float64{1, 2, 3, 4, 5}))
	assert.ErrorIs(t, err, context.Canceled)
}
