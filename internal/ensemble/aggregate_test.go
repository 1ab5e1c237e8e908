package ensemble

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/internal/contracts"
)

func futureTimes(n int) []time.Time {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestAggregate_Median(t *testing.T) {
	nan := math.NaN()
	in := AggregateInput{
		Forecasts: map[string]*contracts.Forecast{
			"a": {Fcst: contracts.Values{1, 2}, Lower: contracts.Values{0.5, 1.5}, Upper: contracts.Values{1.5, 2.5}},
			"b": {Fcst: contracts.Values{3, 4}, Lower: contracts.Values{2.5, 3.5}, Upper: contracts.Values{3.5, 4.5}},
			"c": {Fcst: contracts.Values{nan, nan}},
		},
		Order: []string{"a", "b", "c"},
		Mode:  contracts.AggregationMedian,
		Times: futureTimes(2),
	}

	out, err := Aggregate(in)
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 3}, []float64(out.Fcst))
	assert.Equal(t, []float64{1.5, 2.5}, []float64(out.Lower))
	assert.Equal(t, []float64{2.5, 3.5}, []float64(out.Upper))
	assert.Equal(t, in.Times, out.Time)
	assert.Nil(t, out.Weights)

	// 입력은 변경되지 않음
	assert.Nil(t, in.Forecasts["c"].Lower)
}

func TestAggregate_MedianDropsZeroBounds(t *testing.T) {
	in := AggregateInput{
		Forecasts: map[string]*contracts.Forecast{
			"a": {Fcst: contracts.Values{10}, Lower: contracts.Values{8}, Upper: contracts.Values{12}},
			"b": {Fcst: contracts.Values{20}, Lower: contracts.Values{0}, Upper: contracts.Values{0}},
			"c": {Fcst: contracts.Values{30}, Lower: contracts.Values{28}, Upper: contracts.Values{32}},
		},
		Order: []string{"a", "b", "c"},
		Mode:  contracts.AggregationMedian,
		Times: futureTimes(1),
	}

	out, err := Aggregate(in)
	require.NoError(t, err)

	assert.Equal(t, 20.0, out.Fcst[0])
	assert.Equal(t, 18.0, out.Lower[0])
	assert.Equal(t, 22.0, out.Upper[0])
}

func TestAggregate_MedianAllMissing(t *testing.T) {
	out, err := Aggregate(AggregateInput{
		Forecasts: map[string]*contracts.Forecast{
			"a": {Fcst: contracts.Values{1}},
		},
		Order: []string{"a"},
		Mode:  contracts.AggregationMedian,
		Times: futureTimes(1),
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, out.Fcst[0])
	assert.True(t, math.IsNaN(out.Lower[0]))
	assert.True(t, math.IsNaN(out.Upper[0]))
}

func TestAggregate_Weighted(t *testing.T) {
	out, err := Aggregate(AggregateInput{
		Forecasts: map[string]*contracts.Forecast{
			"A": {Fcst: contracts.Values{10}, Lower: contracts.Values{9}, Upper: contracts.Values{11}},
			"B": {Fcst: contracts.Values{20}, Lower: contracts.Values{18}, Upper: contracts.Values{22}},
		},
		Order:   []string{"A", "B"},
		Mode:    contracts.AggregationWeightedAvg,
		Weights: contracts.Weights{"A": 0.3, "B": 0.7},
		Times:   futureTimes(1),
	})
	require.NoError(t, err)

	assert.InDelta(t, 17.0, out.Fcst[0], 1e-12)
	assert.InDelta(t, 15.3, out.Lower[0], 1e-12)
	assert.InDelta(t, 18.7, out.Upper[0], 1e-12)
	assert.Equal(t, contracts.Weights{"A": 0.3, "B": 0.7}, out.Weights)
}

func TestAggregate_WeightedRequiresIntervals(t *testing.T) {
	_, err := Aggregate(AggregateInput{
		Forecasts: map[string]*contracts.Forecast{
			"A": {Fcst: contracts.Values{10}, Lower: contracts.Values{9}, Upper: contracts.Values{11}},
			"B": {Fcst: contracts.Values{20}},
		},
		Order:   []string{"A", "B"},
		Mode:    contracts.AggregationWeightedAvg,
		Weights: contracts.Weights{"A": 0.5, "B": 0.5},
		Times:   futureTimes(1),
	})
	assert.True(t, errors.Is(err, contracts.ErrMissingInterval))
}

func TestAggregate_Errors(t *testing.T) {
	one := &contracts.Forecast{Fcst: contracts.Values{1}, Lower: contracts.Values{0.5}, Upper: contracts.Values{1.5}}

	tests := []struct {
		name string
		in   AggregateInput
		want error
	}{
		{
			name: "no models",
			in:   AggregateInput{Mode: contracts.AggregationMedian, Times: futureTimes(1)},
			want: contracts.ErrPrecondition,
		},
		{
			name: "missing forecast",
			in: AggregateInput{
				Forecasts: map[string]*contracts.Forecast{},
				Order:     []string{"a"},
				Mode:      contracts.AggregationMedian,
				Times:     futureTimes(1),
			},
			want: contracts.ErrPrecondition,
		},
		{
			name: "row mismatch",
			in: AggregateInput{
				Forecasts: map[string]*contracts.Forecast{"a": one},
				Order:     []string{"a"},
				Mode:      contracts.AggregationMedian,
				Times:     futureTimes(2),
			},
			want: contracts.ErrPrecondition,
		},
		{
			name: "missing weight",
			in: AggregateInput{
				Forecasts: map[string]*contracts.Forecast{"a": one},
				Order:     []string{"a"},
				Mode:      contracts.AggregationWeightedAvg,
				Weights:   contracts.Weights{"b": 1},
				Times:     futureTimes(1),
			},
			want: contracts.ErrPrecondition,
		},
		{
			name: "unknown mode",
			in: AggregateInput{
				Forecasts: map[string]*contracts.Forecast{"a": one},
				Order:     []string{"a"},
				Mode:      "mean",
				Times:     futureTimes(1),
			},
			want: contracts.ErrConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
