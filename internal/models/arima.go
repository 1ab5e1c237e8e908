package models

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/wonny/kats/internal/contracts"
)

// ARIMA goarima 래퍼
type ARIMA struct {
	p, d, q int
	alpha   float64
	log     zerolog.Logger
}

// NewARIMA params: p, d, q (기본 1,1,1), alpha
func NewARIMA(params contracts.Params, log zerolog.Logger) (contracts.Model, error) {
	m := &ARIMA{
		p:     params.Int("p", 1),
		d:     params.Int("d", 1),
		q:     params.Int("q", 1),
		alpha: params.Float("alpha", DefaultAlpha),
		log:   log,
	}
	if m.p < 0 || m.d < 0 || m.q < 0 {
		return nil, fmt.Errorf("arima order (%d,%d,%d) must be non-negative: %w", m.p, m.d, m.q, contracts.ErrConfig)
	}
	return m, nil
}

// Fit implements contracts.Model.
func (m *ARIMA) Fit(ctx context.Context, series contracts.Series) (contracts.FittedModel, error) {
	if err := checkFit(ctx, series, m.p+m.d+m.q+10, FamilyARIMA); err != nil {
		return nil, err
	}

	model := arima.New(m.p, m.d, m.q)
	if err := model.Fit(timeseries.New(series.Values())); err != nil {
		return nil, fmt.Errorf("arima(%d,%d,%d) fit: %w", m.p, m.d, m.q, err)
	}

	m.log.Debug().Int("p", m.p).Int("d", m.d).Int("q", m.q).Msg("ARIMA fitted")

	return &fittedIntervalModel{
		predict: model.PredictWithInterval,
		alpha:   m.alpha,
		horizon: newHorizon(series),
	}, nil
}

// fittedIntervalModel goarima 모델 공통 예측 (점추정 + 구간)
type fittedIntervalModel struct {
	predict func(steps int, confidence float64) ([]float64, []float64, []float64, error)
	alpha   float64
	horizon horizon
}

func (f *fittedIntervalModel) Predict(ctx context.Context, steps int) (*contracts.Forecast, error) {
	if err := checkPredict(ctx, steps); err != nil {
		return nil, err
	}

	fcst, lower, upper, err := f.predict(steps, 1-f.alpha)
	if err != nil {
		return nil, fmt.Errorf("predict %d steps: %w", steps, err)
	}

	return &contracts.Forecast{
		Time:  f.horizon.times(steps),
		Fcst:  fcst,
		Lower: lower,
		Upper: upper,
	}, nil
}
