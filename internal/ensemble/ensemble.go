// Package ensemble combines heterogeneous forecasting models into one consensus forecast.
package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/kats/internal/backtest"
	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/decomposition"
	"github.com/wonny/kats/internal/models"
	"github.com/wonny/kats/internal/seasonality"
)

// SeasonalityDetector 계절성 감지 계약
type SeasonalityDetector interface {
	Detect(ctx context.Context, series contracts.Series) (bool, error)
}

// Option configures an Ensemble at construction.
type Option func(*Ensemble)

// WithExecutor 커스텀 적합/예측 실행기 주입
func WithExecutor(executor Executor) Option {
	return func(e *Ensemble) { e.executor = executor }
}

// WithBacktester 커스텀 백테스터 주입
func WithBacktester(b Backtester) Option {
	return func(e *Ensemble) { e.backtester = b }
}

// WithRegistry 모델 레지스트리 교체
func WithRegistry(r *models.Registry) Option {
	return func(e *Ensemble) { e.registry = r }
}

// WithDetector 계절성 감지기 교체
func WithDetector(d SeasonalityDetector) Option {
	return func(e *Ensemble) { e.detector = d }
}

// WithMaxWorkers 배치당 워커 수 상한 (0 = 자동)
func WithMaxWorkers(n int) Option {
	return func(e *Ensemble) { e.workers = n }
}

// Ensemble 검증 완료 상태의 KatsEnsemble
// ⭐ SSOT: 단계 순서 Validated → Fitted → Predicted → Aggregated 는 타입으로 강제
type Ensemble struct {
	series        contracts.Series
	freq          contracts.Frequency
	aggregation   contracts.AggregationMode
	decomposition contracts.DecompositionMode
	period        int
	metric        string
	specs         []contracts.ModelSpec
	backtestCfg   backtest.Config

	registry   *models.Registry
	executor   Executor
	backtester Backtester
	detector   SeasonalityDetector
	decomposer *decomposition.Decomposer
	workers    int

	log zerolog.Logger
}

// New validates series and cfg eagerly and returns a ready ensemble.
func New(series contracts.Series, cfg contracts.EnsembleConfig, log zerolog.Logger, opts ...Option) (*Ensemble, error) {
	e := &Ensemble{
		series: series,
		period: cfg.SeasonalityLength,
		metric: cfg.Metric,
		log:    log.With().Str("component", "ensemble").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.validate(cfg); err != nil {
		return nil, err
	}

	if e.registry == nil {
		e.registry = models.NewRegistry(log)
	}
	if err := e.registry.Validate(e.specs); err != nil {
		return nil, fmt.Errorf("validate models: %w", err)
	}
	if err := e.checkVariantCollisions(); err != nil {
		return nil, err
	}

	if e.backtester == nil {
		engine, err := backtest.NewEngine(e.backtestCfg, log)
		if err != nil {
			return nil, err
		}
		e.backtester = NewBacktestExecutor(e.registry, engine, e.workers, log)
	}
	if e.executor == nil {
		e.executor = NewDefaultExecutor(e.registry, e.backtester, e.workers, log)
	}
	if e.detector == nil {
		e.detector = seasonality.NewDetector(log)
	}
	e.decomposer = decomposition.NewDecomposer(log)

	e.log.Info().
		Int("points", series.Len()).
		Str("frequency", e.freq.String()).
		Str("aggregation", string(e.aggregation)).
		Str("decomposition", string(e.decomposition)).
		Int("seasonality_length", e.period).
		Int("models", len(e.specs)).
		Msg("Ensemble validated")

	return e, nil
}

func (e *Ensemble) validate(cfg contracts.EnsembleConfig) error {
	aggregation, ok := contracts.ParseAggregationMode(cfg.Aggregation)
	if !ok {
		return fmt.Errorf("aggregation %q: only median or weightedavg are supported: %w", cfg.Aggregation, contracts.ErrConfig)
	}
	e.aggregation = aggregation

	n := e.series.Len()
	if n < 2 {
		return fmt.Errorf("series has %d points: %w", n, contracts.ErrInsufficientData)
	}
	if e.period < 0 || e.period > n/2 {
		return fmt.Errorf("seasonality_length %d must be between 0 and %d (half the series): %w",
			e.period, n/2, contracts.ErrConfig)
	}

	if err := contracts.ValidateSpecs(cfg.Models); err != nil {
		return err
	}
	e.specs = make([]contracts.ModelSpec, len(cfg.Models))
	for i, s := range cfg.Models {
		// 앙상블 집계는 미래 steps 행만 정렬하므로 과거 적합값 포함은 불가
		if _, ok := s.Params["include_history"]; ok {
			return fmt.Errorf("model %q: include_history is not supported inside an ensemble: %w", s.Name, contracts.ErrConfig)
		}
		e.specs[i] = s.Clone()
	}

	if e.metric == "" {
		e.metric = backtest.DefaultMetric
	}
	if _, err := backtest.Metric(e.metric); err != nil {
		return fmt.Errorf("%w: %w", contracts.ErrConfig, err)
	}

	e.backtestCfg = backtest.DefaultConfig()
	if cfg.TrainPercentage > 0 {
		e.backtestCfg.TrainPercentage = cfg.TrainPercentage
	}
	if cfg.TestPercentage > 0 {
		e.backtestCfg.TestPercentage = cfg.TestPercentage
	}
	if err := e.backtestCfg.Validate(); err != nil {
		return err
	}

	// 분해 방식은 관대하게: 잘못된 값이면 additive 로 대체
	mode, ok := contracts.ParseDecompositionMode(cfg.Decomposition)
	if !ok {
		e.log.Warn().
			Str("decomposition", cfg.Decomposition).
			Msg("Decomposition method not recognized, using additive")
	}
	e.decomposition = mode

	e.freq = e.series.Frequency()
	return nil
}

// checkVariantCollisions 원 데이터 복제 키가 사용자 키와 겹치지 않아야 함
func (e *Ensemble) checkVariantCollisions() error {
	names := make(map[string]struct{}, len(e.specs))
	for _, s := range e.specs {
		names[s.Name] = struct{}{}
	}
	for _, s := range e.specs {
		if !e.registry.IsSeasonalCapable(s.Name) {
			continue
		}
		variant := models.SeasonalVariant(s).Name
		if _, dup := names[variant]; dup {
			return fmt.Errorf("model %q collides with the raw-data variant of %q: %w", variant, s.Name, contracts.ErrConfig)
		}
	}
	return nil
}

// Aggregation returns the validated aggregation mode.
func (e *Ensemble) Aggregation() contracts.AggregationMode { return e.aggregation }

// Decomposition returns the effective decomposition mode.
func (e *Ensemble) Decomposition() contracts.DecompositionMode { return e.decomposition }

// Frequency returns the inferred series frequency.
func (e *Ensemble) Frequency() contracts.Frequency { return e.freq }

// Specs returns a copy of the configured model specs.
func (e *Ensemble) Specs() []contracts.ModelSpec {
	out := make([]contracts.ModelSpec, len(e.specs))
	for i, s := range e.specs {
		out[i] = s.Clone()
	}
	return out
}

// plan 계절성 여부에 따른 실행 계획
type plan struct {
	seasonal   bool
	components *decomposition.Components
	originals  []contracts.ModelSpec
	variants   []contracts.ModelSpec
}

func (p *plan) order() []string {
	out := make([]string, 0, len(p.originals)+len(p.variants))
	for _, s := range p.originals {
		out = append(out, s.Name)
	}
	for _, s := range p.variants {
		out = append(out, s.Name)
	}
	return out
}

func (p *plan) allSpecs() []contracts.ModelSpec {
	return append(append([]contracts.ModelSpec(nil), p.originals...), p.variants...)
}

// prepare 계절성 감지 → (계절성 있으면) 분해 + 원 데이터 복제 모델 구성
func (e *Ensemble) prepare(ctx context.Context) (*plan, error) {
	seasonal, err := e.detector.Detect(ctx, e.series)
	if err != nil {
		return nil, fmt.Errorf("seasonality detection: %w", err)
	}

	p := &plan{seasonal: seasonal, originals: e.Specs()}
	if !seasonal {
		e.log.Info().Msg("No seasonality detected, fitting on raw series")
		return p, nil
	}

	if e.period == 0 {
		return nil, fmt.Errorf("seasonality detected but seasonality_length is not set: %w", contracts.ErrPrecondition)
	}

	p.components, err = e.decomposer.Decompose(e.series, e.decomposition, e.period)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	for _, s := range p.originals {
		if e.registry.IsSeasonalCapable(s.Name) {
			p.variants = append(p.variants, models.SeasonalVariant(s))
		}
	}

	e.log.Info().
		Int("period", e.period).
		Str("decomposition", string(e.decomposition)).
		Int("raw_variants", len(p.variants)).
		Msg("Seasonality detected, series decomposed")

	return p, nil
}

// Fit 감지 → 분해 → 적합 (weightedavg 이면 백테스트 가중치까지)
func (e *Ensemble) Fit(ctx context.Context) (*Fitted, error) {
	startTime := time.Now()

	p, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}

	fitted := make(map[string]contracts.FittedModel, len(p.originals)+len(p.variants))
	target := e.series
	if p.seasonal {
		target = p.components.Residual
	}

	desea, err := e.executor.Fit(ctx, target, p.originals)
	if err != nil {
		return nil, err
	}
	for k, v := range desea {
		fitted[k] = v
	}
	if len(p.variants) > 0 {
		raw, err := e.executor.Fit(ctx, e.series, p.variants)
		if err != nil {
			return nil, err
		}
		for k, v := range raw {
			fitted[k] = v
		}
	}

	result := &Fitted{
		ensemble: e,
		plan:     p,
		models:   fitted,
	}

	if e.aggregation == contracts.AggregationWeightedAvg {
		result.weights, result.errors, err = e.backtester.BacktestAll(ctx, e.series, p.allSpecs(), e.metric)
		if err != nil {
			return nil, err
		}
	}

	result.stage = contracts.StageResult{
		Stage:    contracts.StageFitted,
		Models:   len(fitted),
		Duration: time.Since(startTime).Milliseconds(),
		Metadata: map[string]interface{}{"seasonal": p.seasonal},
	}

	e.log.Info().
		Bool("seasonal", p.seasonal).
		Int("models", len(fitted)).
		Dur("duration", time.Since(startTime)).
		Msg("Ensemble fitted")

	return result, nil
}

// Forecast 적합+예측+백테스트 통합 경로. 적합된 모델은 호출 후 보관하지 않음
func (e *Ensemble) Forecast(ctx context.Context, steps int) (*Predicted, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps %d must be at least 1: %w", steps, contracts.ErrConfig)
	}
	startTime := time.Now()

	p, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}

	withBacktest := e.aggregation == contracts.AggregationWeightedAvg
	raw := e.series
	forecasts := make(map[string]*contracts.Forecast, len(p.originals)+len(p.variants))
	errs := make(map[string]float64)

	target := e.series
	if p.seasonal {
		target = p.components.Residual
	}
	fcsts, modelErrs, err := e.executor.Forecast(ctx, ForecastRequest{
		Series:         target,
		Specs:          p.originals,
		Steps:          steps,
		Backtest:       withBacktest,
		BacktestSeries: &raw,
		Metric:         e.metric,
	})
	if err != nil {
		return nil, err
	}
	if p.seasonal {
		fcsts, err = decomposition.Reseasonalize(p.components.Seasonal, fcsts, e.decomposition, e.period, steps)
		if err != nil {
			return nil, fmt.Errorf("reseasonalize: %w", err)
		}
	}
	mergeForecasts(forecasts, fcsts)
	mergeErrors(errs, modelErrs)

	if len(p.variants) > 0 {
		fcsts, modelErrs, err = e.executor.Forecast(ctx, ForecastRequest{
			Series:   raw,
			Specs:    p.variants,
			Steps:    steps,
			Backtest: withBacktest,
			Metric:   e.metric,
		})
		if err != nil {
			return nil, err
		}
		mergeForecasts(forecasts, fcsts)
		mergeErrors(errs, modelErrs)
	}

	result := &Predicted{
		ensemble:  e,
		seasonal:  p.seasonal,
		steps:     steps,
		order:     p.order(),
		forecasts: backfillIntervals(forecasts),
	}
	if withBacktest {
		result.errors = errs
		result.weights, err = WeightsFromErrors(errs)
		if err != nil {
			return nil, err
		}
	}
	result.stage = contracts.StageResult{
		Stage:    contracts.StagePredicted,
		Models:   len(forecasts),
		Duration: time.Since(startTime).Milliseconds(),
		Metadata: map[string]interface{}{"seasonal": p.seasonal, "path": "forecast"},
	}

	e.log.Info().
		Bool("seasonal", p.seasonal).
		Int("models", len(forecasts)).
		Int("steps", steps).
		Dur("duration", time.Since(startTime)).
		Msg("Ensemble forecast completed")

	return result, nil
}

func mergeForecasts(dst, src map[string]*contracts.Forecast) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeErrors(dst, src map[string]float64) {
	for k, v := range src {
		dst[k] = v
	}
}

// backfillIntervals 자체 구간이 없는 모델에 NaN 구간 채움
func backfillIntervals(in map[string]*contracts.Forecast) map[string]*contracts.Forecast {
	out := make(map[string]*contracts.Forecast, len(in))
	for k, f := range in {
		out[k] = f.Normalize().FillMissingInterval()
	}
	return out
}
