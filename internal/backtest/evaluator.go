package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wonny/kats/internal/contracts"
)

// Run 이름 붙은 평가 실행 (입력, 모델, 예측, 정답, 결과)
type Run struct {
	Name    string
	Input   contracts.Series
	Model   contracts.Model
	Preds   []float64
	Labels  []float64
	Results map[string]float64
}

// Evaluator 평가 실행 레지스트리
type Evaluator struct {
	mu   sync.RWMutex
	runs map[string]*Run
	log  zerolog.Logger
}

// NewEvaluator creates an empty evaluator.
func NewEvaluator(log zerolog.Logger) *Evaluator {
	return &Evaluator{
		runs: make(map[string]*Run),
		log:  log.With().Str("component", "backtest.evaluator").Logger(),
	}
}

// CreateRun registers an empty run; empty or duplicate names are rejected.
func (e *Evaluator) CreateRun(name string) (*Run, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("run name must not be empty: %w", contracts.ErrConfig)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.runs[name]; exists {
		return nil, fmt.Errorf("run %q already exists: %w", name, contracts.ErrConfig)
	}
	run := &Run{Name: name}
	e.runs[name] = run
	return run, nil
}

// DeleteRun removes a run.
func (e *Evaluator) DeleteRun(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.runs[name]; !exists {
		return fmt.Errorf("run %q: %w", name, contracts.ErrNotFound)
	}
	delete(e.runs, name)
	return nil
}

// GetRun returns a run by name.
func (e *Evaluator) GetRun(name string) (*Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	run, exists := e.runs[name]
	if !exists {
		return nil, fmt.Errorf("run %q: %w", name, contracts.ErrNotFound)
	}
	return run, nil
}

// Runs returns run names, sorted.
func (e *Evaluator) Runs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.runs))
	for k := range e.runs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetPredictions stores predictions for a run.
func (e *Evaluator) SetPredictions(name string, preds []float64) error {
	run, err := e.GetRun(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	run.Preds = append([]float64(nil), preds...)
	return nil
}

// Generate fits model on the engine's training split and stores the test predictions and labels.
func (e *Evaluator) Generate(ctx context.Context, name string, engine *Engine, series contracts.Series, model contracts.Model) error {
	run, err := e.GetRun(name)
	if err != nil {
		return err
	}

	res, err := engine.Run(ctx, series, model)
	if err != nil {
		return fmt.Errorf("run %q: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	run.Input = series
	run.Model = model
	run.Preds = append([]float64(nil), res.Forecast.Fcst...)
	run.Labels = res.Actual
	return nil
}

// Evaluate scores stored predictions against labels (stored labels when labels is nil).
func (e *Evaluator) Evaluate(name string, metricNames []string, labels []float64) (map[string]float64, error) {
	run, err := e.GetRun(name)
	if err != nil {
		return nil, err
	}
	if len(metricNames) == 0 {
		metricNames = MetricNames()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if labels == nil {
		labels = run.Labels
	}
	if run.Preds == nil {
		return nil, fmt.Errorf("run %q has no predictions: %w", name, contracts.ErrPrecondition)
	}

	results := make(map[string]float64, len(metricNames))
	for _, m := range metricNames {
		fn, err := Metric(m)
		if err != nil {
			return nil, err
		}
		v, err := fn(labels, run.Preds)
		if err != nil {
			return nil, fmt.Errorf("run %q metric %s: %w", name, m, err)
		}
		results[m] = v
	}

	run.Labels = append([]float64(nil), labels...)
	run.Results = results

	e.log.Debug().Str("run", name).Interface("results", results).Msg("Run evaluated")
	return results, nil
}
