package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/kats/internal/contracts"
)

// Prophet 선형 추세 + 푸리에 계절항 회귀 (Prophet 스타일 가법 모델)
// params: seasonality_period (스텝 단위, 0 = 빈도로 추정), fourier_order, alpha
type Prophet struct {
	period float64
	order  int
	alpha  float64
	log    zerolog.Logger
}

// NewProphet 기본 fourier_order=3
func NewProphet(params contracts.Params, log zerolog.Logger) (contracts.Model, error) {
	m := &Prophet{
		period: params.Float("seasonality_period", 0),
		order:  params.Int("fourier_order", 3),
		alpha:  params.Float("alpha", DefaultAlpha),
		log:    log,
	}
	if m.order < 0 || m.period < 0 {
		return nil, fmt.Errorf("prophet fourier_order=%d seasonality_period=%.1f: %w", m.order, m.period, contracts.ErrConfig)
	}
	return m, nil
}

// defaultPeriod 빈도별 기본 계절 주기 (일 → 주간, 시간 → 일간, 월 → 연간)
func defaultPeriod(freq contracts.Frequency) float64 {
	switch {
	case freq.Months == 1:
		return 12
	case freq.Months == 3:
		return 4
	case freq.Step == 24*time.Hour:
		return 7
	case freq.Step == time.Hour:
		return 24
	default:
		return 0
	}
}

func (m *Prophet) row(t, period float64, order int) []float64 {
	row := make([]float64, 0, 2+2*order)
	row = append(row, 1, t)
	for k := 1; k <= order; k++ {
		w := 2 * math.Pi * float64(k) * t / period
		row = append(row, math.Sin(w), math.Cos(w))
	}
	return row
}

// Fit implements contracts.Model.
func (m *Prophet) Fit(ctx context.Context, series contracts.Series) (contracts.FittedModel, error) {
	if err := checkFit(ctx, series, 5, FamilyProphet); err != nil {
		return nil, err
	}

	period := m.period
	if period == 0 {
		period = defaultPeriod(series.Frequency())
	}
	order := m.order
	if period < 2 {
		order = 0
	} else {
		// k = period/2 이면 sin 항이 0 이 되므로 그 아래로 제한
		order = min(order, int((period-1)/2))
		order = min(order, (series.Len()-3)/2)
		order = max(order, 0)
	}

	n := series.Len()
	cols := 2 + 2*order
	x := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, m.row(float64(i), period, order))
	}

	fit, err := fitOLS(x, series.Values())
	if err != nil {
		return nil, fmt.Errorf("prophet regression: %w", err)
	}

	m.log.Debug().
		Float64("seasonality_period", period).
		Int("fourier_order", order).
		Float64("sigma", fit.sigma).
		Msg("Prophet fitted")

	return &fittedProphet{model: m, fit: fit, period: period, order: order, horizon: newHorizon(series)}, nil
}

type fittedProphet struct {
	model   *Prophet
	fit     *olsFit
	period  float64
	order   int
	horizon horizon
}

func (f *fittedProphet) Predict(ctx context.Context, steps int) (*contracts.Forecast, error) {
	if err := checkPredict(ctx, steps); err != nil {
		return nil, err
	}

	z := normalQuantile(f.model.alpha)
	out := &contracts.Forecast{
		Time:  f.horizon.times(steps),
		Fcst:  make(contracts.Values, steps),
		Lower: make(contracts.Values, steps),
		Upper: make(contracts.Values, steps),
	}
	for h := 0; h < steps; h++ {
		mean, se := f.fit.predict(f.model.row(float64(f.horizon.n+h), f.period, f.order))
		out.Fcst[h] = mean
		out.Lower[h] = mean - z*se
		out.Upper[h] = mean + z*se
	}
	return out, nil
}
