package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/kats/internal/contracts"
)

// WindowConfig 확장 윈도우 설정 (%)
type WindowConfig struct {
	StartTrainPercentage float64 // 첫 fold 학습 비율
	EndTrainPercentage   float64 // 마지막 fold 학습 비율
	TestPercentage       float64
	Folds                int
}

// DefaultWindowConfig 50% → 80% 학습, 20% 검증, 3 fold
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{StartTrainPercentage: 50, EndTrainPercentage: 80, TestPercentage: 20, Folds: 3}
}

// Validate checks the window layout.
func (c WindowConfig) Validate() error {
	if c.Folds < 1 {
		return fmt.Errorf("folds %d must be at least 1: %w", c.Folds, contracts.ErrConfig)
	}
	if c.StartTrainPercentage <= 0 || c.EndTrainPercentage < c.StartTrainPercentage {
		return fmt.Errorf("train window %.1f..%.1f: %w", c.StartTrainPercentage, c.EndTrainPercentage, contracts.ErrConfig)
	}
	if c.EndTrainPercentage+c.TestPercentage > 100 || c.TestPercentage <= 0 {
		return fmt.Errorf("end train %.1f + test %.1f must be within (0, 100]: %w",
			c.EndTrainPercentage, c.TestPercentage, contracts.ErrConfig)
	}
	return nil
}

// FoldResult fold 별 결과
type FoldResult struct {
	TrainSize int
	TestSize  int
	Error     float64
}

// WindowResult 확장 윈도우 결과
type WindowResult struct {
	Metric string
	Folds  []FoldResult
	Mean   float64
	StdDev float64
}

// Simulator 학습 구간을 늘려가며 모델을 반복 평가
type Simulator struct {
	cfg WindowConfig
	log zerolog.Logger
}

// NewSimulator creates an expanding-window backtester.
func NewSimulator(cfg WindowConfig, log zerolog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		cfg: cfg,
		log: log.With().Str("component", "backtest.simulator").Logger(),
	}, nil
}

// Run evaluates a fresh model per fold.
func (s *Simulator) Run(
	ctx context.Context,
	series contracts.Series,
	newModel func() (contracts.Model, error),
	metric string,
) (*WindowResult, error) {
	fn, err := Metric(metric)
	if err != nil {
		return nil, err
	}

	n := series.Len()
	testSize := int(math.Floor(float64(n) * s.cfg.TestPercentage / 100))
	if testSize < 1 {
		return nil, fmt.Errorf("series of %d points too short for %.0f%% test window: %w",
			n, s.cfg.TestPercentage, contracts.ErrInsufficientData)
	}

	result := &WindowResult{Metric: metric, Folds: make([]FoldResult, 0, s.cfg.Folds)}
	errs := make([]float64, 0, s.cfg.Folds)

	for fold := 0; fold < s.cfg.Folds; fold++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pct := s.cfg.StartTrainPercentage
		if s.cfg.Folds > 1 {
			pct += (s.cfg.EndTrainPercentage - s.cfg.StartTrainPercentage) * float64(fold) / float64(s.cfg.Folds-1)
		}
		trainEnd := int(math.Floor(float64(n) * pct / 100))
		if trainEnd < 1 || trainEnd+testSize > n {
			return nil, fmt.Errorf("fold %d: train %d + test %d exceeds %d points: %w",
				fold, trainEnd, testSize, n, contracts.ErrInsufficientData)
		}

		model, err := newModel()
		if err != nil {
			return nil, err
		}
		fitted, err := model.Fit(ctx, series.Slice(0, trainEnd))
		if err != nil {
			return nil, fmt.Errorf("fold %d fit: %w", fold, err)
		}
		fcst, err := fitted.Predict(ctx, testSize)
		if err != nil {
			return nil, fmt.Errorf("fold %d predict: %w", fold, err)
		}
		v, err := fn(series.Slice(trainEnd, trainEnd+testSize).Values(), fcst.Fcst)
		if err != nil {
			return nil, fmt.Errorf("fold %d %s: %w", fold, metric, err)
		}

		result.Folds = append(result.Folds, FoldResult{TrainSize: trainEnd, TestSize: testSize, Error: v})
		errs = append(errs, v)
	}

	if len(errs) > 1 {
		result.Mean, result.StdDev = stat.MeanStdDev(errs, nil)
	} else {
		result.Mean = errs[0]
	}

	s.log.Debug().
		Str("metric", metric).
		Int("folds", len(result.Folds)).
		Float64("mean", result.Mean).
		Msg("Expanding window backtest completed")

	return result, nil
}
