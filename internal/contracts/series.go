package contracts

import (
	"fmt"
	"math"
	"time"
)

// Point 시계열 관측치 (시각, 값)
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series 시간 순으로 정렬된 관측치 묶음
// ⭐ SSOT: 파이프라인에 들어온 Series는 변경하지 않는다 (모든 변환은 복사본 반환)
type Series struct {
	points []Point
}

// NewSeries validates ordering and copies the points.
func NewSeries(points []Point) (Series, error) {
	if len(points) == 0 {
		return Series{}, fmt.Errorf("empty series: %w", ErrInsufficientData)
	}

	copied := make([]Point, len(points))
	copy(copied, points)

	for i, p := range copied {
		if math.IsInf(p.Value, 0) {
			return Series{}, fmt.Errorf("point %d: infinite value: %w", i, ErrConfig)
		}
		if i > 0 && !p.Time.After(copied[i-1].Time) {
			return Series{}, fmt.Errorf("point %d (%s): timestamps must be strictly increasing: %w",
				i, p.Time.Format(time.RFC3339), ErrConfig)
		}
	}

	return Series{points: copied}, nil
}

// NewSeriesFromValues builds a series from parallel time/value slices.
func NewSeriesFromValues(times []time.Time, values []float64) (Series, error) {
	if len(times) != len(values) {
		return Series{}, fmt.Errorf("times (%d) and values (%d) length mismatch: %w",
			len(times), len(values), ErrConfig)
	}
	points := make([]Point, len(times))
	for i := range times {
		points[i] = Point{Time: times[i], Value: values[i]}
	}
	return NewSeries(points)
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.points)
}

// Points returns a copy of the observations.
func (s Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Values returns a copy of the observed values.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Times returns a copy of the timestamps.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Time
	}
	return out
}

// First returns the first observation.
func (s Series) First() Point {
	if len(s.points) == 0 {
		return Point{}
	}
	return s.points[0]
}

// Last returns the last observation.
func (s Series) Last() Point {
	if len(s.points) == 0 {
		return Point{}
	}
	return s.points[len(s.points)-1]
}

// Slice returns observations [from, to).
func (s Series) Slice(from, to int) Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.points) {
		to = len(s.points)
	}
	if from >= to {
		return Series{}
	}
	out := make([]Point, to-from)
	copy(out, s.points[from:to])
	return Series{points: out}
}

// Split 학습/검증 분할 (trainPct: 0~100)
func (s Series) Split(trainPct float64) (train, test Series, err error) {
	if trainPct <= 0 || trainPct >= 100 {
		return Series{}, Series{}, fmt.Errorf("train percentage %.1f out of (0, 100): %w", trainPct, ErrConfig)
	}
	cut := int(math.Floor(float64(len(s.points)) * trainPct / 100))
	if cut < 1 || cut >= len(s.points) {
		return Series{}, Series{}, fmt.Errorf("series of %d points cannot be split at %.1f%%: %w",
			len(s.points), trainPct, ErrInsufficientData)
	}
	return s.Slice(0, cut), s.Slice(cut, len(s.points)), nil
}

// WithValues returns a series sharing the timestamps with new values.
func (s Series) WithValues(values []float64) (Series, error) {
	if len(values) != len(s.points) {
		return Series{}, fmt.Errorf("values length %d != series length %d: %w", len(values), len(s.points), ErrConfig)
	}
	out := make([]Point, len(s.points))
	for i, p := range s.points {
		out[i] = Point{Time: p.Time, Value: values[i]}
	}
	return Series{points: out}, nil
}

// Frequency infers the sampling frequency of the series.
func (s Series) Frequency() Frequency {
	return InferFrequency(s.Times())
}
