// Package seasonality detects periodic patterns with the autocorrelation function.
package seasonality

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/kats/internal/contracts"
)

const (
	// DefaultThreshold ACF 피크 최소값
	DefaultThreshold = 0.5
	// MinPoints 감지에 필요한 최소 데이터 수
	MinPoints = 8
)

// Result 계절성 분석 결과
type Result struct {
	Seasonal bool    `json:"seasonal"`
	Period   int     `json:"period,omitempty"`   // 가장 강한 ACF 피크 lag
	Strength float64 `json:"strength,omitempty"` // 해당 lag 의 ACF
	Critical float64 `json:"critical"`           // 적용된 임계값
}

// Detector ACF 기반 계절성 감지기
type Detector struct {
	threshold float64
	maxLag    int // 0 = n/2
	log       zerolog.Logger
}

// NewDetector 새 감지기 생성
func NewDetector(log zerolog.Logger) *Detector {
	return &Detector{
		threshold: DefaultThreshold,
		log:       log.With().Str("component", "seasonality.detector").Logger(),
	}
}

// NewDetectorWithThreshold 커스텀 임계값으로 감지기 생성
func NewDetectorWithThreshold(threshold float64, maxLag int, log zerolog.Logger) *Detector {
	d := NewDetector(log)
	if threshold > 0 {
		d.threshold = threshold
	}
	if maxLag > 0 {
		d.maxLag = maxLag
	}
	return d
}

// Detect reports whether the series has a seasonal pattern.
func (d *Detector) Detect(ctx context.Context, series contracts.Series) (bool, error) {
	res, err := d.Analyze(ctx, series)
	if err != nil {
		return false, err
	}
	return res.Seasonal, nil
}

// Analyze 추세 제거 후 ACF 로컬 피크 탐색 (lag >= 2)
func (d *Detector) Analyze(ctx context.Context, series contracts.Series) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := series.Len()
	if n < MinPoints {
		return nil, fmt.Errorf("seasonality detection needs %d points, got %d: %w", MinPoints, n, contracts.ErrInsufficientData)
	}

	values := series.Values()
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("value at %d is NaN: %w", i, contracts.ErrPrecondition)
		}
	}

	critical := math.Max(d.threshold, 2/math.Sqrt(float64(n)))
	result := &Result{Critical: critical}

	maxLag := n / 2
	if d.maxLag > 0 && d.maxLag < maxLag {
		maxLag = d.maxLag
	}

	acf := stats.ACF(timeseries.New(detrend(values)), maxLag)
	if acf == nil {
		// 분산 0 (상수 시계열)
		d.log.Debug().Int("points", n).Msg("Constant series, no seasonality")
		return result, nil
	}

	for lag := 2; lag < len(acf)-1; lag++ {
		if acf[lag] <= critical {
			continue
		}
		if acf[lag] > acf[lag-1] && acf[lag] >= acf[lag+1] && acf[lag] > result.Strength {
			result.Seasonal = true
			result.Period = lag
			result.Strength = acf[lag]
		}
	}

	d.log.Debug().
		Int("points", n).
		Bool("seasonal", result.Seasonal).
		Int("period", result.Period).
		Float64("strength", result.Strength).
		Float64("critical", critical).
		Msg("Seasonality analyzed")

	return result, nil
}

// detrend removes the least-squares linear trend.
func detrend(values []float64) []float64 {
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(x, values, nil, false)

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - (alpha + beta*x[i])
	}
	return out
}
