package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/ensemble"
	"github.com/wonny/kats/internal/modelspec"
	"github.com/wonny/kats/pkg/redis"
)

// Store 서비스가 쓰는 저장소 계약
type Store interface {
	contracts.SeriesStore
	SaveConsensus(ctx context.Context, series, specHash string, c *contracts.Consensus) (int64, error)
	LatestConsensus(ctx context.Context, series string) (*Run, error)
}

// Cache 결과 캐시 계약 (pkg/redis.Cache)
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Request 예측 요청
type Request struct {
	Series string
	Config contracts.EnsembleConfig
	Steps  int

	// Fused 가 true 면 적합/예측/백테스트 통합 경로 사용
	Fused bool
	// NoCache 캐시 조회를 건너뜀 (결과는 여전히 캐시에 기록)
	NoCache bool
}

// Result 예측 결과
type Result struct {
	Series    string               `json:"series,omitempty"`
	RunID     int64                `json:"run_id,omitempty"`
	SpecHash  string               `json:"spec_hash"`
	Cached    bool                 `json:"cached"`
	Duration  time.Duration        `json:"duration_ns"`
	Consensus *contracts.Consensus `json:"consensus"`
}

// Service 저장 시계열에 대한 앙상블 예측 실행 + 캐시 + 저장
type Service struct {
	store    Store
	cache    Cache
	defaults contracts.EnsembleConfig
	ttl      time.Duration
	workers  int
	log      zerolog.Logger
}

// NewService cache 가 nil 이면 캐시 없이 동작
func NewService(store Store, cache Cache, defaults contracts.EnsembleConfig, ttl time.Duration, workers int, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		defaults: defaults,
		ttl:      ttl,
		workers:  workers,
		log:      log.With().Str("component", "forecast.service").Logger(),
	}
}

// Defaults returns the fallback ensemble config.
func (s *Service) Defaults() contracts.EnsembleConfig { return s.defaults }

// withDefaults 요청 설정의 빈 값을 기본값으로 채움
func (s *Service) withDefaults(cfg contracts.EnsembleConfig) contracts.EnsembleConfig {
	if cfg.Aggregation == "" {
		cfg.Aggregation = s.defaults.Aggregation
	}
	if cfg.Decomposition == "" {
		cfg.Decomposition = s.defaults.Decomposition
	}
	if cfg.SeasonalityLength == 0 {
		cfg.SeasonalityLength = s.defaults.SeasonalityLength
	}
	if cfg.Metric == "" {
		cfg.Metric = s.defaults.Metric
	}
	if cfg.TrainPercentage == 0 {
		cfg.TrainPercentage = s.defaults.TrainPercentage
	}
	if cfg.TestPercentage == 0 {
		cfg.TestPercentage = s.defaults.TestPercentage
	}
	if len(cfg.Models) == 0 {
		cfg.Models = s.defaults.Models
	}
	return cfg
}

// Run 저장 시계열 예측: 캐시 → 로드 → 앙상블 → 저장 → 캐시 기록
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()
	if req.Series == "" {
		return nil, fmt.Errorf("series name is required: %w", contracts.ErrConfig)
	}
	if req.Steps < 1 {
		return nil, fmt.Errorf("steps %d must be at least 1: %w", req.Steps, contracts.ErrConfig)
	}

	cfg := s.withDefaults(req.Config)
	hash, err := modelspec.ShortHash(cfg)
	if err != nil {
		return nil, err
	}
	key := redis.ForecastKey(req.Series, hash, req.Steps)

	if s.cache != nil && !req.NoCache {
		var cached Result
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		} else if found {
			cached.Cached = true
			s.log.Debug().Str("series", req.Series).Str("key", key).Msg("Forecast cache hit")
			return &cached, nil
		}
	}

	series, err := s.store.LoadSeries(ctx, req.Series)
	if err != nil {
		return nil, err
	}

	consensus, err := s.forecast(ctx, series, cfg, req.Steps, req.Fused)
	if err != nil {
		return nil, err
	}

	runID, err := s.store.SaveConsensus(ctx, req.Series, hash, consensus)
	if err != nil {
		return nil, fmt.Errorf("save consensus: %w", err)
	}

	result := &Result{
		Series:    req.Series,
		RunID:     runID,
		SpecHash:  hash,
		Duration:  time.Since(startTime),
		Consensus: consensus,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}

	s.log.Info().
		Str("series", req.Series).
		Int64("run_id", runID).
		Int("steps", req.Steps).
		Bool("seasonal", consensus.Seasonal).
		Dur("duration", result.Duration).
		Msg("Forecast completed")

	return result, nil
}

// RunInline 저장 없이 주어진 시계열로 바로 예측
func (s *Service) RunInline(ctx context.Context, series contracts.Series, cfg contracts.EnsembleConfig, steps int, fused bool) (*Result, error) {
	startTime := time.Now()
	cfg = s.withDefaults(cfg)
	hash, err := modelspec.ShortHash(cfg)
	if err != nil {
		return nil, err
	}

	consensus, err := s.forecast(ctx, series, cfg, steps, fused)
	if err != nil {
		return nil, err
	}
	return &Result{SpecHash: hash, Duration: time.Since(startTime), Consensus: consensus}, nil
}

// forecast 앙상블 실행 (Fit→Predict→Aggregate 또는 통합 경로)
func (s *Service) forecast(ctx context.Context, series contracts.Series, cfg contracts.EnsembleConfig, steps int, fused bool) (*contracts.Consensus, error) {
	e, err := ensemble.New(series, cfg, s.log, ensemble.WithMaxWorkers(s.workers))
	if err != nil {
		return nil, err
	}

	var predicted *ensemble.Predicted
	if fused {
		predicted, err = e.Forecast(ctx, steps)
	} else {
		var fitted *ensemble.Fitted
		fitted, err = e.Fit(ctx)
		if err == nil {
			predicted, err = fitted.Predict(ctx, steps)
		}
	}
	if err != nil {
		return nil, err
	}
	return predicted.Aggregate()
}

// ImportPoints 시계열 저장 후 해당 시계열 예측 캐시 무효화
func (s *Service) ImportPoints(ctx context.Context, name string, series contracts.Series) error {
	if err := s.store.SaveSeries(ctx, name, series); err != nil {
		return err
	}

	if s.cache != nil {
		n, err := s.cache.DeletePrefix(ctx, redis.SeriesForecastPrefix(name))
		if err != nil {
			s.log.Warn().Err(err).Str("series", name).Msg("Cache invalidation failed")
		} else if n > 0 {
			s.log.Debug().Str("series", name).Int("keys", n).Msg("Forecast cache invalidated")
		}
	}

	s.log.Info().Str("series", name).Int("points", series.Len()).Msg("Series imported")
	return nil
}

// ListSeries returns stored series names.
func (s *Service) ListSeries(ctx context.Context) ([]string, error) {
	return s.store.ListSeries(ctx)
}

// Latest returns the most recent stored run for a series.
func (s *Service) Latest(ctx context.Context, series string) (*Run, error) {
	return s.store.LatestConsensus(ctx, series)
}
