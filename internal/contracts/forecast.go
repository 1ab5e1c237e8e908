package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Forecast 모델별 예측 테이블 (time, fcst, fcst_lower, fcst_upper)
// Lower/Upper 가 nil 이면 해당 모델은 자체 신뢰구간이 없음
type Forecast struct {
	Time  []time.Time `json:"time"`
	Fcst  Values      `json:"fcst"`
	Lower Values      `json:"fcst_lower,omitempty"`
	Upper Values      `json:"fcst_upper,omitempty"`
}

// Len returns the number of forecast rows.
func (f *Forecast) Len() int {
	return len(f.Fcst)
}

// HasInterval reports whether both bounds are present.
func (f *Forecast) HasInterval() bool {
	return f.Lower != nil && f.Upper != nil
}

// Validate checks column lengths.
func (f *Forecast) Validate() error {
	n := len(f.Fcst)
	if f.Time != nil && len(f.Time) != n {
		return fmt.Errorf("time column has %d rows, fcst has %d: %w", len(f.Time), n, ErrPrecondition)
	}
	if f.Lower != nil && len(f.Lower) != n {
		return fmt.Errorf("lower column has %d rows, fcst has %d: %w", len(f.Lower), n, ErrPrecondition)
	}
	if f.Upper != nil && len(f.Upper) != n {
		return fmt.Errorf("upper column has %d rows, fcst has %d: %w", len(f.Upper), n, ErrPrecondition)
	}
	return nil
}

// Clone returns a deep copy.
func (f *Forecast) Clone() *Forecast {
	return &Forecast{
		Time:  cloneTimes(f.Time),
		Fcst:  cloneFloats(f.Fcst),
		Lower: cloneFloats(f.Lower),
		Upper: cloneFloats(f.Upper),
	}
}

// Normalize 시간 순으로 행 정렬 (위치 기반 결합 전에 필요)
// 원본은 변경하지 않고 정렬된 복사본 반환
func (f *Forecast) Normalize() *Forecast {
	out := f.Clone()
	if len(out.Time) != len(out.Fcst) || sort.SliceIsSorted(out.Time, func(i, j int) bool { return out.Time[i].Before(out.Time[j]) }) {
		return out
	}

	idx := make([]int, len(out.Time))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return f.Time[idx[a]].Before(f.Time[idx[b]]) })

	for pos, src := range idx {
		out.Time[pos] = f.Time[src]
		out.Fcst[pos] = f.Fcst[src]
		if out.Lower != nil {
			out.Lower[pos] = f.Lower[src]
		}
		if out.Upper != nil {
			out.Upper[pos] = f.Upper[src]
		}
	}
	return out
}

// FillMissingInterval 신뢰구간 없는 모델에 NaN 구간 채움
func (f *Forecast) FillMissingInterval() *Forecast {
	out := f.Clone()
	if out.Lower == nil {
		out.Lower = nanSlice(len(out.Fcst))
	}
	if out.Upper == nil {
		out.Upper = nanSlice(len(out.Fcst))
	}
	return out
}

// Consensus 최종 합의 예측
type Consensus struct {
	Time     []time.Time        `json:"time"`
	Fcst     Values             `json:"fcst"`
	Lower    Values             `json:"fcst_lower"`
	Upper    Values             `json:"fcst_upper"`
	Mode     AggregationMode    `json:"aggregation"`
	Weights  Weights            `json:"weights,omitempty"`
	Errors   map[string]float64 `json:"errors,omitempty"`
	Seasonal bool               `json:"seasonal"`
}

// Len returns the number of consensus rows.
func (c *Consensus) Len() int {
	return len(c.Fcst)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

func cloneTimes(in []time.Time) []time.Time {
	if in == nil {
		return nil
	}
	out := make([]time.Time, len(in))
	copy(out, in)
	return out
}
