// Package backtest scores forecasting models on held-out data.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/kats/internal/contracts"
)

// Config 학습/검증 분할 비율 (%)
type Config struct {
	TrainPercentage float64
	TestPercentage  float64
}

// DefaultConfig 80/20 분할
func DefaultConfig() Config {
	return Config{TrainPercentage: 80, TestPercentage: 20}
}

// Validate checks the split percentages.
func (c Config) Validate() error {
	if c.TrainPercentage <= 0 || c.TestPercentage <= 0 {
		return fmt.Errorf("train (%.1f) and test (%.1f) percentages must be positive: %w",
			c.TrainPercentage, c.TestPercentage, contracts.ErrConfig)
	}
	if c.TrainPercentage+c.TestPercentage > 100 {
		return fmt.Errorf("train + test percentage %.1f exceeds 100: %w",
			c.TrainPercentage+c.TestPercentage, contracts.ErrConfig)
	}
	return nil
}

// Result 단일 모델 백테스트 결과
type Result struct {
	TrainSize int
	TestSize  int
	Actual    []float64
	Forecast  *contracts.Forecast
	Errors    map[string]float64
	Duration  time.Duration
}

// Engine holdout 백테스트 (앞 train% 로 적합, 이어지는 test% 구간 예측)
// ⭐ SSOT: 모델 단일 백테스트는 여기서만
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates a holdout backtester.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "backtest.engine").Logger(),
	}, nil
}

// Config returns the split configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// split 분할 지점 계산
func (e *Engine) split(n int) (trainEnd, testEnd int, err error) {
	trainEnd = int(math.Floor(float64(n) * e.cfg.TrainPercentage / 100))
	testSize := int(math.Floor(float64(n) * e.cfg.TestPercentage / 100))
	if trainEnd < 1 || testSize < 1 {
		return 0, 0, fmt.Errorf("series of %d points too short for %.0f/%.0f split: %w",
			n, e.cfg.TrainPercentage, e.cfg.TestPercentage, contracts.ErrInsufficientData)
	}
	return trainEnd, trainEnd + testSize, nil
}

// Run fits model on the training part and scores the forecast of the test part.
func (e *Engine) Run(ctx context.Context, series contracts.Series, model contracts.Model, metricNames ...string) (*Result, error) {
	if len(metricNames) == 0 {
		metricNames = []string{DefaultMetric}
	}
	fns := make(map[string]MetricFunc, len(metricNames))
	for _, name := range metricNames {
		fn, err := Metric(name)
		if err != nil {
			return nil, err
		}
		fns[name] = fn
	}

	startTime := time.Now()

	trainEnd, testEnd, err := e.split(series.Len())
	if err != nil {
		return nil, err
	}
	train := series.Slice(0, trainEnd)
	actual := series.Slice(trainEnd, testEnd).Values()

	fitted, err := model.Fit(ctx, train)
	if err != nil {
		return nil, fmt.Errorf("backtest fit: %w", err)
	}
	fcst, err := fitted.Predict(ctx, len(actual))
	if err != nil {
		return nil, fmt.Errorf("backtest predict: %w", err)
	}
	if fcst.Len() != len(actual) {
		return nil, fmt.Errorf("backtest forecast has %d rows, expected %d: %w", fcst.Len(), len(actual), contracts.ErrPrecondition)
	}

	result := &Result{
		TrainSize: trainEnd,
		TestSize:  len(actual),
		Actual:    actual,
		Forecast:  fcst,
		Errors:    make(map[string]float64, len(fns)),
	}
	for name, fn := range fns {
		v, err := fn(actual, fcst.Fcst)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", name, err)
		}
		result.Errors[name] = v
	}
	result.Duration = time.Since(startTime)

	e.log.Debug().
		Int("train", result.TrainSize).
		Int("test", result.TestSize).
		Interface("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("Backtest completed")

	return result, nil
}

// Error runs a backtest and returns the single named metric.
func (e *Engine) Error(ctx context.Context, series contracts.Series, model contracts.Model, metric string) (float64, error) {
	res, err := e.Run(ctx, series, model, metric)
	if err != nil {
		return 0, err
	}
	return res.Errors[metric], nil
}
