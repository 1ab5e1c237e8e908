package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/kats/internal/backtest"
	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/models"
)

// Executor 모델 적합/예측 실행 전략
// ⭐ SSOT: 오케스트레이터는 동시성 구현을 가정하지 않는다 (생성 시 한 번 주입)
type Executor interface {
	Fit(ctx context.Context, series contracts.Series, specs []contracts.ModelSpec) (map[string]contracts.FittedModel, error)
	Forecast(ctx context.Context, req ForecastRequest) (map[string]*contracts.Forecast, map[string]float64, error)
}

// ForecastRequest 적합+예측(+백테스트) 요청
type ForecastRequest struct {
	Series contracts.Series
	Specs  []contracts.ModelSpec
	Steps  int

	// Backtest 가 true 면 모델별 오차도 반환
	Backtest bool
	// BacktestSeries 백테스트 대상 (nil 이면 Series)
	BacktestSeries *contracts.Series
	Metric         string
}

// Backtester 모델별 백테스트 오차 → 가중치
type Backtester interface {
	BacktestAll(ctx context.Context, series contracts.Series, specs []contracts.ModelSpec, metric string) (contracts.Weights, map[string]float64, error)
}

// DefaultExecutor 배치별 워커 풀로 모델을 병렬 적합
type DefaultExecutor struct {
	registry   *models.Registry
	backtester Backtester
	workers    int
	log        zerolog.Logger
}

// NewDefaultExecutor workers <= 0 이면 Parallelism(계열 수) 사용
func NewDefaultExecutor(registry *models.Registry, backtester Backtester, workers int, log zerolog.Logger) *DefaultExecutor {
	return &DefaultExecutor{
		registry:   registry,
		backtester: backtester,
		workers:    workers,
		log:        log.With().Str("component", "ensemble.executor").Logger(),
	}
}

// Parallelism returns the worker bound used for each batch.
func (e *DefaultExecutor) Parallelism() int {
	if e.workers > 0 {
		return e.workers
	}
	return Parallelism(len(e.registry.Families()))
}

// Fit fits every spec concurrently; the first failure aborts the batch.
func (e *DefaultExecutor) Fit(ctx context.Context, series contracts.Series, specs []contracts.ModelSpec) (map[string]contracts.FittedModel, error) {
	results := make([]contracts.FittedModel, len(specs))
	tasks := make([]task, len(specs))
	for i, spec := range specs {
		spec := spec.Clone()
		tasks[i] = func(ctx context.Context) error {
			fitted, err := e.fitOne(ctx, series, spec)
			if err != nil {
				return err
			}
			results[i] = fitted
			return nil
		}
	}

	startTime := time.Now()
	if err := runBatch(ctx, e.Parallelism(), tasks); err != nil {
		return nil, fmt.Errorf("fit batch: %w", err)
	}

	out := make(map[string]contracts.FittedModel, len(specs))
	for i, spec := range specs {
		out[spec.Name] = results[i]
	}

	e.log.Debug().
		Int("models", len(specs)).
		Int("workers", e.Parallelism()).
		Dur("duration", time.Since(startTime)).
		Msg("Fit batch completed")

	return out, nil
}

// Forecast fits and predicts every spec concurrently, then backtests when requested.
func (e *DefaultExecutor) Forecast(ctx context.Context, req ForecastRequest) (map[string]*contracts.Forecast, map[string]float64, error) {
	if req.Steps < 1 {
		return nil, nil, fmt.Errorf("steps %d must be at least 1: %w", req.Steps, contracts.ErrConfig)
	}

	results := make([]*contracts.Forecast, len(req.Specs))
	tasks := make([]task, len(req.Specs))
	for i, spec := range req.Specs {
		spec := spec.Clone()
		tasks[i] = func(ctx context.Context) error {
			fitted, err := e.fitOne(ctx, req.Series, spec)
			if err != nil {
				return err
			}
			fcst, err := fitted.Predict(ctx, req.Steps)
			if err != nil {
				return fmt.Errorf("model %s predict: %w", spec.Name, err)
			}
			results[i] = fcst
			return nil
		}
	}

	if err := runBatch(ctx, e.Parallelism(), tasks); err != nil {
		return nil, nil, fmt.Errorf("forecast batch: %w", err)
	}

	forecasts := make(map[string]*contracts.Forecast, len(req.Specs))
	for i, spec := range req.Specs {
		forecasts[spec.Name] = results[i]
	}

	if !req.Backtest {
		return forecasts, nil, nil
	}
	if e.backtester == nil {
		return nil, nil, fmt.Errorf("backtest requested without a backtester: %w", contracts.ErrConfig)
	}

	target := req.Series
	if req.BacktestSeries != nil {
		target = *req.BacktestSeries
	}
	_, errs, err := e.backtester.BacktestAll(ctx, target, req.Specs, req.Metric)
	if err != nil {
		return nil, nil, err
	}
	return forecasts, errs, nil
}

func (e *DefaultExecutor) fitOne(ctx context.Context, series contracts.Series, spec contracts.ModelSpec) (contracts.FittedModel, error) {
	model, err := e.registry.New(spec)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	fitted, err := model.Fit(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("model %s fit: %w", spec.Name, err)
	}

	e.log.Debug().
		Str("model", spec.Name).
		Int("points", series.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Model fitted")

	return fitted, nil
}

// BacktestExecutor 모델별 holdout 백테스트를 병렬 실행
type BacktestExecutor struct {
	registry *models.Registry
	engine   *backtest.Engine
	workers  int
	log      zerolog.Logger
}

// NewBacktestExecutor workers <= 0 이면 Parallelism(계열 수) 사용
func NewBacktestExecutor(registry *models.Registry, engine *backtest.Engine, workers int, log zerolog.Logger) *BacktestExecutor {
	return &BacktestExecutor{
		registry: registry,
		engine:   engine,
		workers:  workers,
		log:      log.With().Str("component", "ensemble.backtester").Logger(),
	}
}

// BacktestAll returns per-model errors and the weights derived from them.
func (b *BacktestExecutor) BacktestAll(
	ctx context.Context,
	series contracts.Series,
	specs []contracts.ModelSpec,
	metric string,
) (contracts.Weights, map[string]float64, error) {
	if metric == "" {
		metric = backtest.DefaultMetric
	}
	if _, err := backtest.Metric(metric); err != nil {
		return nil, nil, err
	}

	workers := b.workers
	if workers <= 0 {
		workers = Parallelism(len(b.registry.Families()))
	}

	values := make([]float64, len(specs))
	tasks := make([]task, len(specs))
	for i, spec := range specs {
		spec := spec.Clone()
		tasks[i] = func(ctx context.Context) error {
			model, err := b.registry.New(spec)
			if err != nil {
				return err
			}
			v, err := b.engine.Error(ctx, series, model, metric)
			if err != nil {
				return fmt.Errorf("model %s backtest: %w", spec.Name, err)
			}
			values[i] = v
			return nil
		}
	}

	if err := runBatch(ctx, workers, tasks); err != nil {
		return nil, nil, fmt.Errorf("backtest batch: %w", err)
	}

	errs := make(map[string]float64, len(specs))
	for i, spec := range specs {
		errs[spec.Name] = values[i]
	}

	weights, err := WeightsFromErrors(errs)
	if err != nil {
		return nil, nil, err
	}

	b.log.Info().
		Str("metric", metric).
		Interface("errors", errs).
		Interface("weights", weights).
		Msg("Backtest completed")

	return weights, errs, nil
}
