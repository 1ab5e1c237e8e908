// Package decomposition splits a series into seasonal and deseasonalized parts and
// re-applies seasonality to forecasts made on the deseasonalized part.
package decomposition

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/kats/internal/contracts"
)

// Components 분해 결과 (모두 원본 타임스탬프 유지)
type Components struct {
	Mode     contracts.DecompositionMode
	Period   int
	Trend    []float64        // 중심 이동평균, 양 끝 NaN
	Seasonal contracts.Series // 주기 패턴을 전체 길이로 반복
	Residual contracts.Series // 계절성 제거 시계열
	Index    []float64        // 위상별 계절 지수 (len == Period)
}

// Decomposer 고전적 계절 분해기
type Decomposer struct {
	log zerolog.Logger
}

// NewDecomposer 새 분해기 생성
func NewDecomposer(log zerolog.Logger) *Decomposer {
	return &Decomposer{
		log: log.With().Str("component", "decomposition.decomposer").Logger(),
	}
}

// Decompose 고전적 분해: 이동평균 추세 → 위상별 평균 → 정규화
// additive: residual = series - seasonal
// multiplicative: residual = series / seasonal
func (d *Decomposer) Decompose(series contracts.Series, mode contracts.DecompositionMode, period int) (*Components, error) {
	n := series.Len()
	if period < 2 {
		return nil, fmt.Errorf("period %d must be at least 2: %w", period, contracts.ErrConfig)
	}
	if n < 2*period {
		return nil, fmt.Errorf("decomposition with period %d needs %d points, got %d: %w",
			period, 2*period, n, contracts.ErrInsufficientData)
	}

	values := series.Values()
	if mode == contracts.DecompositionMultiplicative && floats.Min(values) <= 0 {
		return nil, fmt.Errorf("multiplicative decomposition requires positive values: %w", contracts.ErrPrecondition)
	}

	trend := centeredMovingAverage(values, period)
	index := seasonalIndex(values, trend, period, mode)

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i, v := range values {
		seasonal[i] = index[i%period]
		if mode == contracts.DecompositionMultiplicative {
			residual[i] = v / seasonal[i]
		} else {
			residual[i] = v - seasonal[i]
		}
	}

	seasonalSeries, err := series.WithValues(seasonal)
	if err != nil {
		return nil, err
	}
	residualSeries, err := series.WithValues(residual)
	if err != nil {
		return nil, err
	}

	d.log.Debug().
		Str("mode", string(mode)).
		Int("period", period).
		Int("points", n).
		Msg("Series decomposed")

	return &Components{
		Mode:     mode,
		Period:   period,
		Trend:    trend,
		Seasonal: seasonalSeries,
		Residual: residualSeries,
		Index:    index,
	}, nil
}

// centeredMovingAverage 짝수 주기는 2×m 이동평균
func centeredMovingAverage(values []float64, period int) []float64 {
	n := len(values)
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = math.NaN()
	}

	half := period / 2
	for i := half; i < n-half; i++ {
		if period%2 == 1 {
			trend[i] = stat.Mean(values[i-half:i+half+1], nil)
			continue
		}
		// 양 끝은 가중치 0.5
		sum := 0.5*values[i-half] + 0.5*values[i+half] + floats.Sum(values[i-half+1:i+half])
		trend[i] = sum / float64(period)
	}
	return trend
}

func seasonalIndex(values, trend []float64, period int, mode contracts.DecompositionMode) []float64 {
	buckets := make([][]float64, period)
	for i, v := range values {
		if math.IsNaN(trend[i]) {
			continue
		}
		var detrended float64
		if mode == contracts.DecompositionMultiplicative {
			detrended = v / trend[i]
		} else {
			detrended = v - trend[i]
		}
		buckets[i%period] = append(buckets[i%period], detrended)
	}

	index := make([]float64, period)
	for j, b := range buckets {
		index[j] = stat.Mean(b, nil)
	}

	mean := stat.Mean(index, nil)
	if mode == contracts.DecompositionMultiplicative {
		floats.Scale(1/mean, index)
	} else {
		floats.AddConst(-mean, index)
	}
	return index
}
