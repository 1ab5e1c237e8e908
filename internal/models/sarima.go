package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/sarima"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/wonny/kats/internal/contracts"
)

// SARIMA 계절 ARIMA
// params: p, d, q, seasonal_p, seasonal_d, seasonal_q, seasonal_period, alpha, include_history
type SARIMA struct {
	p, d, q        int
	sp, sd, sq, s  int
	alpha          float64
	includeHistory bool
	log            zerolog.Logger
}

// NewSARIMA 기본 차수 (2,1,1)x(0,0,0,0)
func NewSARIMA(params contracts.Params, log zerolog.Logger) (contracts.Model, error) {
	m := &SARIMA{
		p:              params.Int("p", 2),
		d:              params.Int("d", 1),
		q:              params.Int("q", 1),
		sp:             params.Int("seasonal_p", 0),
		sd:             params.Int("seasonal_d", 0),
		sq:             params.Int("seasonal_q", 0),
		s:              params.Int("seasonal_period", 0),
		alpha:          params.Float("alpha", DefaultAlpha),
		includeHistory: params.Bool("include_history", false),
		log:            log,
	}
	for _, v := range []int{m.p, m.d, m.q, m.sp, m.sd, m.sq, m.s} {
		if v < 0 {
			return nil, fmt.Errorf("sarima order must be non-negative: %w", contracts.ErrConfig)
		}
	}
	if m.seasonal() && m.s < 2 {
		return nil, fmt.Errorf("sarima seasonal order set but seasonal_period is %d: %w", m.s, contracts.ErrConfig)
	}
	return m, nil
}

func (m *SARIMA) seasonal() bool {
	return m.sp+m.sd+m.sq > 0
}

// historyMask 과거 구간 앞부분 NaN 처리 개수: max(p,d,q) + max(P,D,Q)*s + 1
func (m *SARIMA) historyMask() int {
	return max(m.p, m.d, m.q) + max(m.sp, m.sd, m.sq)*m.s + 1
}

// Fit implements contracts.Model.
func (m *SARIMA) Fit(ctx context.Context, series contracts.Series) (contracts.FittedModel, error) {
	minPoints := m.p + m.d + m.q + 10
	if m.seasonal() {
		minPoints = m.p + m.q + m.d + (m.sp+m.sd+m.sq)*m.s + 20
	}
	if err := checkFit(ctx, series, minPoints, FamilySARIMA); err != nil {
		return nil, err
	}

	data := timeseries.New(series.Values())
	fitted := &fittedSARIMA{
		model:   m,
		history: series,
		horizon: newHorizon(series),
	}

	if m.seasonal() {
		model := sarima.New(m.p, m.d, m.q, m.sp, m.sd, m.sq, m.s)
		if err := model.Fit(data); err != nil {
			return nil, fmt.Errorf("sarima(%d,%d,%d)(%d,%d,%d,%d) fit: %w", m.p, m.d, m.q, m.sp, m.sd, m.sq, m.s, err)
		}
		fitted.predictFn = model.PredictWithInterval
		fitted.fittedValues = model.FittedValues
	} else {
		// 계절 차수가 없으면 비계절 ARIMA 와 동일
		model := arima.New(m.p, m.d, m.q)
		if err := model.Fit(data); err != nil {
			return nil, fmt.Errorf("sarima(%d,%d,%d) fit: %w", m.p, m.d, m.q, err)
		}
		fitted.predictFn = model.PredictWithInterval
		fitted.fittedValues = model.FittedValues
	}

	m.log.Debug().
		Int("p", m.p).Int("d", m.d).Int("q", m.q).
		Int("seasonal_period", m.s).
		Msg("SARIMA fitted")

	return fitted, nil
}

type fittedSARIMA struct {
	model        *SARIMA
	history      contracts.Series
	horizon      horizon
	predictFn    func(steps int, confidence float64) ([]float64, []float64, []float64, error)
	fittedValues func() []float64
}

// Predict 미래 steps 개. include_history 이면 과거 적합값을 앞에 붙임
func (f *fittedSARIMA) Predict(ctx context.Context, steps int) (*contracts.Forecast, error) {
	if err := checkPredict(ctx, steps); err != nil {
		return nil, err
	}

	fcst, lower, upper, err := f.predictFn(steps, 1-f.model.alpha)
	if err != nil {
		return nil, fmt.Errorf("predict %d steps: %w", steps, err)
	}

	out := &contracts.Forecast{
		Time:  f.horizon.times(steps),
		Fcst:  fcst,
		Lower: lower,
		Upper: upper,
	}
	if !f.model.includeHistory {
		return out, nil
	}
	return f.withHistory(out), nil
}

func (f *fittedSARIMA) withHistory(future *contracts.Forecast) *contracts.Forecast {
	n := f.history.Len()
	values := alignFitted(f.fittedValues(), n)
	mask := min(f.model.historyMask(), n)
	for i := 0; i < mask; i++ {
		values[i] = math.NaN()
	}

	times := make([]time.Time, 0, n+future.Len())
	times = append(times, f.history.Times()...)
	times = append(times, future.Time...)

	fcst := append(append(make([]float64, 0, n+future.Len()), values...), future.Fcst...)
	// 과거 구간은 구간 추정 없음
	lower := append(append(make([]float64, 0, n+future.Len()), nanFloats(n)...), future.Lower...)
	upper := append(append(make([]float64, 0, n+future.Len()), nanFloats(n)...), future.Upper...)

	return &contracts.Forecast{Time: times, Fcst: fcst, Lower: lower, Upper: upper}
}

// alignFitted 차분으로 짧아진 적합값을 뒤쪽 기준으로 원 길이에 맞춤
func alignFitted(fitted []float64, n int) []float64 {
	out := nanFloats(n)
	if len(fitted) > n {
		fitted = fitted[len(fitted)-n:]
	}
	copy(out[n-len(fitted):], fitted)
	return out
}

func nanFloats(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
