package contracts

import "strings"

// AggregationMode 합의 예측 집계 방식
type AggregationMode string

const (
	AggregationMedian      AggregationMode = "median"
	AggregationWeightedAvg AggregationMode = "weightedavg"
)

// ParseAggregationMode accepts only median and weightedavg.
func ParseAggregationMode(s string) (AggregationMode, bool) {
	switch AggregationMode(strings.ToLower(strings.TrimSpace(s))) {
	case AggregationMedian:
		return AggregationMedian, true
	case AggregationWeightedAvg:
		return AggregationWeightedAvg, true
	default:
		return "", false
	}
}

// DecompositionMode 계절성 분해 방식
type DecompositionMode string

const (
	DecompositionAdditive       DecompositionMode = "additive"
	DecompositionMultiplicative DecompositionMode = "multiplicative"
)

// ParseDecompositionMode falls back to additive for unknown values; ok is false in that case.
func ParseDecompositionMode(s string) (DecompositionMode, bool) {
	switch DecompositionMode(strings.ToLower(strings.TrimSpace(s))) {
	case DecompositionAdditive:
		return DecompositionAdditive, true
	case DecompositionMultiplicative:
		return DecompositionMultiplicative, true
	default:
		return DecompositionAdditive, false
	}
}

// EnsembleConfig 앙상블 설정
type EnsembleConfig struct {
	Aggregation       string      `json:"aggregation" yaml:"aggregation"`
	Decomposition     string      `json:"decomposition" yaml:"decomposition"`
	SeasonalityLength int         `json:"seasonality_length,omitempty" yaml:"seasonality_length,omitempty"` // 0 = 미설정
	Metric            string      `json:"metric,omitempty" yaml:"metric,omitempty"`
	TrainPercentage   float64     `json:"train_percentage,omitempty" yaml:"train_percentage,omitempty"`
	TestPercentage    float64     `json:"test_percentage,omitempty" yaml:"test_percentage,omitempty"`
	Models            []ModelSpec `json:"models" yaml:"models"`
}
