package contracts

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecast_Normalize(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &Forecast{
		Time:  []time.Time{t0.AddDate(0, 0, 2), t0, t0.AddDate(0, 0, 1)},
		Fcst:  Values{3, 1, 2},
		Lower: Values{2, 0, 1},
	}

	got := f.Normalize()

	assert.Equal(t, []time.Time{t0, t0.AddDate(0, 0, 1), t0.AddDate(0, 0, 2)}, got.Time)
	assert.Equal(t, Values{1, 2, 3}, got.Fcst)
	assert.Equal(t, Values{0, 1, 2}, got.Lower)
	assert.Nil(t, got.Upper)
	assert.Equal(t, Values{3, 1, 2}, f.Fcst, "input must not be reordered")
}

func TestForecast_FillMissingInterval(t *testing.T) {
	f := &Forecast{Fcst: Values{1, 2}}
	require.False(t, f.HasInterval())

	filled := f.FillMissingInterval()
	require.True(t, filled.HasInterval())
	for i := range filled.Fcst {
		assert.True(t, math.IsNaN(filled.Lower[i]))
		assert.True(t, math.IsNaN(filled.Upper[i]))
	}
	assert.False(t, f.HasInterval(), "input must keep its missing interval")
}

func TestValues_JSONNaN(t *testing.T) {
	data, err := json.Marshal(Values{1.5, math.NaN()})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5,null]`, string(data))

	var back Values
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 2)
	assert.Equal(t, 1.5, back[0])
	assert.True(t, math.IsNaN(back[1]))
}

func TestModelFamily(t *testing.T) {
	tests := map[string]string{
		"prophet":        "prophet",
		"prophet_smodel": "prophet",
		"ARIMA_fast":     "arima",
		"theta":          "theta",
	}
	for key, want := range tests {
		assert.Equal(t, want, ModelFamily(key), key)
	}
}

func TestValidateSpecs(t *testing.T) {
	assert.NoError(t, ValidateSpecs([]ModelSpec{{Name: "arima"}, {Name: "theta"}}))
	assert.ErrorIs(t, ValidateSpecs(nil), ErrConfig)
	assert.ErrorIs(t, ValidateSpecs([]ModelSpec{{Name: " "}}), ErrConfig)
	assert.ErrorIs(t, ValidateSpecs([]ModelSpec{{Name: "arima"}, {Name: "arima"}}), ErrConfig)
}

func TestParseModes(t *testing.T) {
	mode, ok := ParseAggregationMode("WeightedAvg")
	assert.True(t, ok)
	assert.Equal(t, AggregationWeightedAvg, mode)

	_, ok = ParseAggregationMode("mean")
	assert.False(t, ok)

	dec, ok := ParseDecompositionMode("bogus")
	assert.False(t, ok)
	assert.Equal(t, DecompositionAdditive, dec)
}
