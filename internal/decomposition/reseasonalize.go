package decomposition

import (
	"fmt"
	"math"

	"github.com/wonny/kats/internal/contracts"
)

// SeasonalUnit 계절 성분의 마지막 period 개 값을 1+steps/period 번 반복 후 steps 길이로 자름
func SeasonalUnit(seasonal contracts.Series, period, steps int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period %d must be positive: %w", period, contracts.ErrConfig)
	}
	if seasonal.Len() < period {
		return nil, fmt.Errorf("seasonal component has %d points, period is %d: %w",
			seasonal.Len(), period, contracts.ErrInsufficientData)
	}

	values := seasonal.Values()
	last := values[len(values)-period:]

	repetitions := 1 + steps/period
	tiled := make([]float64, 0, repetitions*period)
	for r := 0; r < repetitions; r++ {
		tiled = append(tiled, last...)
	}
	return tiled[:steps], nil
}

// Reseasonalize 모델별 잔차 예측에 계절 성분을 다시 적용
//
// additive: fcst/lower/upper 에 더함. 구간이 없으면 NaN
// multiplicative: 곱함. 구간이 없으면 0
//
// 입력 예측은 변경하지 않는다.
func Reseasonalize(
	seasonal contracts.Series,
	forecasts map[string]*contracts.Forecast,
	mode contracts.DecompositionMode,
	period, steps int,
) (map[string]*contracts.Forecast, error) {
	unit, err := SeasonalUnit(seasonal, period, steps)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*contracts.Forecast, len(forecasts))
	for key, f := range forecasts {
		if f == nil {
			return nil, fmt.Errorf("model %s: nil forecast: %w", key, contracts.ErrPrecondition)
		}
		if f.Len() != steps {
			return nil, fmt.Errorf("model %s: forecast has %d rows, expected %d: %w",
				key, f.Len(), steps, contracts.ErrPrecondition)
		}

		tmp := f.Normalize()
		switch mode {
		case contracts.DecompositionMultiplicative:
			applyMultiplicative(tmp, unit)
		default:
			applyAdditive(tmp, unit)
		}
		out[key] = tmp
	}
	return out, nil
}

func applyAdditive(f *contracts.Forecast, unit []float64) {
	for i := range f.Fcst {
		f.Fcst[i] += unit[i]
	}
	if !f.HasInterval() {
		f.Lower = filled(len(f.Fcst), math.NaN())
		f.Upper = filled(len(f.Fcst), math.NaN())
		return
	}
	for i := range f.Fcst {
		f.Lower[i] += unit[i]
		f.Upper[i] += unit[i]
	}
}

func applyMultiplicative(f *contracts.Forecast, unit []float64) {
	for i := range f.Fcst {
		f.Fcst[i] *= unit[i]
	}
	if !f.HasInterval() {
		// additive 와 달리 0 으로 채움 (집계 시 median 경로는 0 을 NaN 으로 정리)
		f.Lower = filled(len(f.Fcst), 0)
		f.Upper = filled(len(f.Fcst), 0)
		return
	}
	for i := range f.Fcst {
		f.Lower[i] *= unit[i]
		f.Upper[i] *= unit[i]
	}
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
