package ensemble

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/wonny/kats/internal/contracts"
)

// AggregateInput 집계 입력
type AggregateInput struct {
	Forecasts map[string]*contracts.Forecast
	Order     []string // 모델 컬럼 순서
	Mode      contracts.AggregationMode
	Weights   contracts.Weights
	Times     []time.Time // 미래 시간 인덱스 (len == steps)
}

// Aggregate 모델별 예측을 하나의 합의 예측으로 결합
//
// median: 0 구간을 NaN 으로 정리한 뒤 NaN 을 제외한 행별 중앙값
// weightedavg: NaN 구간이 하나라도 있으면 실패, 아니면 가중치와 내적
func Aggregate(in AggregateInput) (*contracts.Consensus, error) {
	steps := len(in.Times)
	if len(in.Order) == 0 {
		return nil, fmt.Errorf("no model forecasts to aggregate: %w", contracts.ErrPrecondition)
	}

	fcst := make([][]float64, len(in.Order))
	lower := make([][]float64, len(in.Order))
	upper := make([][]float64, len(in.Order))
	for i, key := range in.Order {
		f, ok := in.Forecasts[key]
		if !ok || f == nil {
			return nil, fmt.Errorf("model %s: forecast missing: %w", key, contracts.ErrPrecondition)
		}
		if f.Len() != steps {
			return nil, fmt.Errorf("model %s: %d rows, expected %d: %w", key, f.Len(), steps, contracts.ErrPrecondition)
		}
		filled := f.FillMissingInterval()
		fcst[i], lower[i], upper[i] = filled.Fcst, filled.Lower, filled.Upper
	}

	out := &contracts.Consensus{
		Time:  append([]time.Time(nil), in.Times...),
		Fcst:  make(contracts.Values, steps),
		Lower: make(contracts.Values, steps),
		Upper: make(contracts.Values, steps),
		Mode:  in.Mode,
	}

	switch in.Mode {
	case contracts.AggregationMedian:
		cleanDummyInterval(lower)
		cleanDummyInterval(upper)
		for r := 0; r < steps; r++ {
			out.Fcst[r] = nanMedian(column(fcst, r))
			out.Lower[r] = nanMedian(column(lower, r))
			out.Upper[r] = nanMedian(column(upper, r))
		}

	case contracts.AggregationWeightedAvg:
		for i, key := range in.Order {
			if hasNaN(lower[i]) || hasNaN(upper[i]) {
				return nil, fmt.Errorf("model %s has no usable interval: %w", key, contracts.ErrMissingInterval)
			}
		}
		w := make([]float64, len(in.Order))
		for i, key := range in.Order {
			v, ok := in.Weights[key]
			if !ok {
				return nil, fmt.Errorf("model %s has no weight: %w", key, contracts.ErrPrecondition)
			}
			w[i] = v
		}
		for r := 0; r < steps; r++ {
			out.Fcst[r] = floats.Dot(column(fcst, r), w)
			out.Lower[r] = floats.Dot(column(lower, r), w)
			out.Upper[r] = floats.Dot(column(upper, r), w)
		}
		out.Weights = make(contracts.Weights, len(w))
		for i, key := range in.Order {
			out.Weights[key] = w[i]
		}

	default:
		return nil, fmt.Errorf("aggregation %q: %w", in.Mode, contracts.ErrConfig)
	}

	return out, nil
}

// cleanDummyInterval 채움용 0 구간을 NaN 으로 (중앙값 왜곡 방지)
func cleanDummyInterval(cols [][]float64) {
	for _, col := range cols {
		for i, v := range col {
			if v == 0 {
				col[i] = math.NaN()
			}
		}
	}
}

func column(cols [][]float64, row int) []float64 {
	out := make([]float64, len(cols))
	for i, col := range cols {
		out[i] = col[row]
	}
	return out
}

// nanMedian NaN 제외 중앙값. 모두 NaN 이면 NaN
func nanMedian(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	mid := len(finite) / 2
	if len(finite)%2 == 1 {
		return finite[mid]
	}
	return (finite[mid-1] + finite[mid]) / 2
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
