package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/kats/internal/contracts"
)

// DefaultMetric 백테스트 기본 오차 지표
const DefaultMetric = "mape"

// MetricFunc computes an error value from truth and predictions of equal length.
type MetricFunc func(truth, pred []float64) (float64, error)

// metrics 지원 오차 지표
// ⭐ SSOT: 새 지표는 여기에만 추가
var metrics = map[string]MetricFunc{
	"mape":  MAPE,
	"smape": SMAPE,
	"mae":   MAE,
	"mse":   MSE,
	"rmse":  RMSE,
}

// Metric looks up an error function by name (case-insensitive).
func Metric(name string) (MetricFunc, error) {
	fn, ok := metrics[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("metric %q: %w", name, contracts.ErrUnknownMetric)
	}
	return fn, nil
}

// MetricNames returns the supported metric names, sorted.
func MetricNames() []string {
	names := make([]string, 0, len(metrics))
	for k := range metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func checkLengths(truth, pred []float64) error {
	if len(truth) == 0 {
		return fmt.Errorf("no observations to score: %w", contracts.ErrInsufficientData)
	}
	if len(truth) != len(pred) {
		return fmt.Errorf("truth has %d values, predictions %d: %w", len(truth), len(pred), contracts.ErrPrecondition)
	}
	return nil
}

func absErrors(truth, pred []float64) []float64 {
	diff := make([]float64, len(truth))
	floats.SubTo(diff, truth, pred)
	for i, d := range diff {
		diff[i] = math.Abs(d)
	}
	return diff
}

// MAPE mean(|y - ŷ| / |y|). 실제값 0 인 지점은 제외
func MAPE(truth, pred []float64) (float64, error) {
	if err := checkLengths(truth, pred); err != nil {
		return 0, err
	}
	ratios := make([]float64, 0, len(truth))
	for i, e := range absErrors(truth, pred) {
		if truth[i] == 0 {
			continue
		}
		ratios = append(ratios, e/math.Abs(truth[i]))
	}
	if len(ratios) == 0 {
		return 0, fmt.Errorf("mape undefined when every actual value is zero: %w", contracts.ErrPrecondition)
	}
	return stat.Mean(ratios, nil), nil
}

// SMAPE mean(2|y - ŷ| / (|y| + |ŷ|))
func SMAPE(truth, pred []float64) (float64, error) {
	if err := checkLengths(truth, pred); err != nil {
		return 0, err
	}
	ratios := make([]float64, len(truth))
	for i, e := range absErrors(truth, pred) {
		denom := math.Abs(truth[i]) + math.Abs(pred[i])
		if denom == 0 {
			continue
		}
		ratios[i] = 2 * e / denom
	}
	return stat.Mean(ratios, nil), nil
}

// MAE mean(|y - ŷ|)
func MAE(truth, pred []float64) (float64, error) {
	if err := checkLengths(truth, pred); err != nil {
		return 0, err
	}
	return stat.Mean(absErrors(truth, pred), nil), nil
}

// MSE mean((y - ŷ)^2)
func MSE(truth, pred []float64) (float64, error) {
	if err := checkLengths(truth, pred); err != nil {
		return 0, err
	}
	diff := make([]float64, len(truth))
	floats.SubTo(diff, truth, pred)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

// RMSE sqrt(MSE)
func RMSE(truth, pred []float64) (float64, error) {
	mse, err := MSE(truth, pred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}
