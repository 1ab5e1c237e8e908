package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/decomposition"
)

// Fitted 적합 완료 상태. Predict 만 가능
type Fitted struct {
	ensemble *Ensemble
	plan     *plan
	models   map[string]contracts.FittedModel
	weights  contracts.Weights
	errors   map[string]float64
	stage    contracts.StageResult
}

// Seasonal reports whether the series was decomposed before fitting.
func (f *Fitted) Seasonal() bool { return f.plan.seasonal }

// Models returns the fitted model keys in aggregation order.
func (f *Fitted) Models() []string { return f.plan.order() }

// Weights returns a copy of the backtest weights (weightedavg only).
func (f *Fitted) Weights() contracts.Weights { return copyWeights(f.weights) }

// Errors returns a copy of the per-model backtest errors (weightedavg only).
func (f *Fitted) Errors() map[string]float64 { return copyErrors(f.errors) }

// Stage returns the fit stage summary.
func (f *Fitted) Stage() contracts.StageResult { return f.stage }

// Predict 모델별 예측 → (계절성이면) 재계절화 → 구간 없는 모델은 NaN 채움
func (f *Fitted) Predict(ctx context.Context, steps int) (*Predicted, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps %d must be at least 1: %w", steps, contracts.ErrConfig)
	}
	startTime := time.Now()
	e := f.ensemble

	originals := make(map[string]*contracts.Forecast, len(f.plan.originals))
	for _, s := range f.plan.originals {
		fcst, err := f.predictOne(ctx, s.Name, steps)
		if err != nil {
			return nil, err
		}
		originals[s.Name] = fcst
	}

	if f.plan.seasonal {
		var err error
		originals, err = decomposition.Reseasonalize(f.plan.components.Seasonal, originals, e.decomposition, e.period, steps)
		if err != nil {
			return nil, fmt.Errorf("reseasonalize: %w", err)
		}
	}

	forecasts := make(map[string]*contracts.Forecast, len(f.models))
	mergeForecasts(forecasts, originals)
	for _, s := range f.plan.variants {
		fcst, err := f.predictOne(ctx, s.Name, steps)
		if err != nil {
			return nil, err
		}
		forecasts[s.Name] = fcst
	}

	p := &Predicted{
		ensemble:  e,
		seasonal:  f.plan.seasonal,
		steps:     steps,
		order:     f.plan.order(),
		forecasts: backfillIntervals(forecasts),
		weights:   copyWeights(f.weights),
		errors:    copyErrors(f.errors),
		stage: contracts.StageResult{
			Stage:    contracts.StagePredicted,
			Models:   len(forecasts),
			Duration: time.Since(startTime).Milliseconds(),
			Metadata: map[string]interface{}{"seasonal": f.plan.seasonal, "steps": steps},
		},
	}

	e.log.Info().
		Bool("seasonal", f.plan.seasonal).
		Int("models", len(forecasts)).
		Int("steps", steps).
		Dur("duration", time.Since(startTime)).
		Msg("Ensemble predicted")

	return p, nil
}

func (f *Fitted) predictOne(ctx context.Context, key string, steps int) (*contracts.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := f.models[key]
	if !ok {
		return nil, fmt.Errorf("model %s was not fitted: %w", key, contracts.ErrPrecondition)
	}
	fcst, err := m.Predict(ctx, steps)
	if err != nil {
		return nil, fmt.Errorf("model %s predict: %w", key, err)
	}
	return fcst.Normalize(), nil
}

// Predicted 예측 완료 상태. Aggregate 는 순수 함수이며 반복 호출 가능
type Predicted struct {
	ensemble  *Ensemble
	seasonal  bool
	steps     int
	order     []string
	forecasts map[string]*contracts.Forecast
	weights   contracts.Weights
	errors    map[string]float64
	stage     contracts.StageResult
}

// Seasonal reports whether the forecasts were reseasonalized.
func (p *Predicted) Seasonal() bool { return p.seasonal }

// Steps returns the forecast horizon.
func (p *Predicted) Steps() int { return p.steps }

// Models returns model keys in aggregation order.
func (p *Predicted) Models() []string { return append([]string(nil), p.order...) }

// Forecasts returns a copy of every per-model forecast.
func (p *Predicted) Forecasts() map[string]*contracts.Forecast {
	out := make(map[string]*contracts.Forecast, len(p.forecasts))
	for k, f := range p.forecasts {
		out[k] = f.Clone()
	}
	return out
}

// Weights returns a copy of the backtest weights (weightedavg only).
func (p *Predicted) Weights() contracts.Weights { return copyWeights(p.weights) }

// Stage returns the prediction stage summary.
func (p *Predicted) Stage() contracts.StageResult { return p.stage }

// Aggregate 합의 예측 생성. 입력 상태는 변경하지 않음
func (p *Predicted) Aggregate() (*contracts.Consensus, error) {
	e := p.ensemble
	last := e.series.Last().Time
	times := e.freq.Range(last, p.steps)

	out, err := Aggregate(AggregateInput{
		Forecasts: p.forecasts,
		Order:     p.order,
		Mode:      e.aggregation,
		Weights:   p.weights,
		Times:     times,
	})
	if err != nil {
		return nil, err
	}
	out.Seasonal = p.seasonal
	out.Errors = copyErrors(p.errors)

	e.log.Debug().
		Str("mode", string(e.aggregation)).
		Int("models", len(p.order)).
		Int("steps", p.steps).
		Msg("Forecasts aggregated")

	return out, nil
}

func copyWeights(w contracts.Weights) contracts.Weights {
	if w == nil {
		return nil
	}
	out := make(contracts.Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func copyErrors(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
