package models

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/kats/internal/contracts"
)

// HoltWinters 가법 추세/계절 지수평활. 자체 예측 구간 없음
// params: alpha, beta, gamma, seasonal_periods (0 = 계절항 없음), damped (0/1), phi
type HoltWinters struct {
	alpha, beta, gamma float64
	period             int
	damped             bool
	phi                float64
	log                zerolog.Logger
}

// NewHoltWinters 기본 alpha=0.5, beta=0.1, gamma=0.1
func NewHoltWinters(params contracts.Params, log zerolog.Logger) (contracts.Model, error) {
	m := &HoltWinters{
		alpha:  params.Float("alpha", 0.5),
		beta:   params.Float("beta", 0.1),
		gamma:  params.Float("gamma", 0.1),
		period: params.Int("seasonal_periods", 0),
		damped: params.Bool("damped", false),
		phi:    params.Float("phi", 0.98),
		log:    log,
	}
	for name, v := range map[string]float64{"alpha": m.alpha, "beta": m.beta, "gamma": m.gamma, "phi": m.phi} {
		if v <= 0 || v > 1 {
			return nil, fmt.Errorf("holtwinters %s=%.3f out of (0, 1]: %w", name, v, contracts.ErrConfig)
		}
	}
	if m.period == 1 || m.period < 0 {
		return nil, fmt.Errorf("holtwinters seasonal_periods=%d: %w", m.period, contracts.ErrConfig)
	}
	return m, nil
}

// Fit implements contracts.Model.
func (m *HoltWinters) Fit(ctx context.Context, series contracts.Series) (contracts.FittedModel, error) {
	minPoints := 3
	if m.period > 0 {
		minPoints = 2 * m.period
	}
	if err := checkFit(ctx, series, minPoints, FamilyHoltWinters); err != nil {
		return nil, err
	}

	y := series.Values()
	damp := 1.0
	if m.damped {
		damp = m.phi
	}

	var level, trend float64
	var season []float64
	start := 1
	if m.period > 0 {
		p := m.period
		level = stat.Mean(y[:p], nil)
		trend = (stat.Mean(y[p:2*p], nil) - level) / float64(p)
		season = make([]float64, p)
		for i := 0; i < p; i++ {
			season[i] = y[i] - level
		}
		start = p
	} else {
		level = y[0]
		trend = y[1] - y[0]
	}

	for t := start; t < len(y); t++ {
		var s float64
		if m.period > 0 {
			s = season[t%m.period]
		}
		prevLevel := level
		level = m.alpha*(y[t]-s) + (1-m.alpha)*(prevLevel+damp*trend)
		trend = m.beta*(level-prevLevel) + (1-m.beta)*damp*trend
		if m.period > 0 {
			season[t%m.period] = m.gamma*(y[t]-level) + (1-m.gamma)*s
		}
	}

	m.log.Debug().Float64("level", level).Float64("trend", trend).Int("seasonal_periods", m.period).Msg("Holt-Winters fitted")

	return &fittedHoltWinters{
		level:   level,
		trend:   trend,
		season:  season,
		damp:    damp,
		horizon: newHorizon(series),
	}, nil
}

type fittedHoltWinters struct {
	level, trend float64
	season       []float64
	damp         float64
	horizon      horizon
}

// Predict 구간 없는 예측 (Lower/Upper nil)
func (f *fittedHoltWinters) Predict(ctx context.Context, steps int) (*contracts.Forecast, error) {
	if err := checkPredict(ctx, steps); err != nil {
		return nil, err
	}

	fcst := make(contracts.Values, steps)
	var trendSum, dampPow float64 = 0, 1
	for h := 1; h <= steps; h++ {
		dampPow *= f.damp
		trendSum += dampPow
		v := f.level + trendSum*f.trend
		if len(f.season) > 0 {
			v += f.season[(f.horizon.n+h-1)%len(f.season)]
		}
		fcst[h-1] = v
	}

	return &contracts.Forecast{Time: f.horizon.times(steps), Fcst: fcst}, nil
}
