package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/kats/internal/contracts"
)

// DefaultAlpha 예측 구간 유의수준 (95% 구간)
const DefaultAlpha = 0.05

// horizon 적합 시점에 기억하는 미래 시간 인덱스 정보
type horizon struct {
	last time.Time
	freq contracts.Frequency
	n    int
}

func newHorizon(series contracts.Series) horizon {
	return horizon{last: series.Last().Time, freq: series.Frequency(), n: series.Len()}
}

func (h horizon) times(steps int) []time.Time {
	return h.freq.Range(h.last, steps)
}

func checkPredict(ctx context.Context, steps int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if steps < 1 {
		return fmt.Errorf("steps %d must be at least 1: %w", steps, contracts.ErrConfig)
	}
	return nil
}

func checkFit(ctx context.Context, series contracts.Series, minPoints int, family string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if series.Len() < minPoints {
		return fmt.Errorf("%s needs at least %d points, got %d: %w",
			family, minPoints, series.Len(), contracts.ErrInsufficientData)
	}
	for i, v := range series.Values() {
		if math.IsNaN(v) {
			return fmt.Errorf("%s: value at %d is NaN: %w", family, i, contracts.ErrPrecondition)
		}
	}
	return nil
}

// normalQuantile 양측 (1-alpha) 구간의 z 값
func normalQuantile(alpha float64) float64 {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return distuv.UnitNormal.Quantile(1 - alpha/2)
}

// studentQuantile 자유도 dof 의 양측 t 값 (dof 가 작으면 정규 근사 대신 t 분포)
func studentQuantile(alpha float64, dof int) float64 {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	if dof < 1 {
		return normalQuantile(alpha)
	}
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}.Quantile(1 - alpha/2)
}

func indexGrid(n int, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + float64(i)
	}
	return out
}
