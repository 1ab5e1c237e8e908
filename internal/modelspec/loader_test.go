package modelspec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/internal/contracts"
)

const sample = `
meta:
  name: daily-sales
ensemble:
  aggregation: weightedavg
  decomposition: multiplicative
  seasonality_length: 7
  metric: smape
  models:
    - name: arima
      params: {p: 2, d: 1, q: 1}
    - name: prophet
    - name: theta
      params: {m: 7}
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "daily-sales", f.Meta.Name)
	assert.Equal(t, "weightedavg", f.Ensemble.Aggregation)
	assert.Equal(t, 7, f.Ensemble.SeasonalityLength)
	require.Len(t, f.Ensemble.Models, 3)
	assert.Equal(t, 2.0, f.Ensemble.Models[0].Params["p"])
	assert.Equal(t, "prophet", f.Ensemble.Models[1].Name)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("meta:\n  name: x\nensemble:\n  aggregation: median\n  modles: []\n"))
	assert.True(t, errors.Is(err, contracts.ErrConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "ensemble:\n  aggregation: median\n  models: [{name: linear}]\n"},
		{"bad aggregation", "meta: {name: x}\nensemble:\n  aggregation: mean\n  models: [{name: linear}]\n"},
		{"negative period", "meta: {name: x}\nensemble:\n  aggregation: median\n  seasonality_length: -2\n  models: [{name: linear}]\n"},
		{"no models", "meta: {name: x}\nensemble:\n  aggregation: median\n"},
		{"duplicate models", "meta: {name: x}\nensemble:\n  aggregation: median\n  models: [{name: linear}, {name: linear}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.True(t, errors.Is(err, contracts.ErrConfig), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, raw, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sample, string(raw))
	assert.Len(t, f.Ensemble.Models, 3)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	h1, err := Hash(f.Ensemble)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	// 동일 설정 → 동일 해시
	h2, _ := Hash(f.Ensemble)
	assert.Equal(t, h1, h2)

	changed := f.Ensemble
	changed.Models = append([]contracts.ModelSpec(nil), f.Ensemble.Models...)
	changed.Models[0] = contracts.ModelSpec{Name: "arima", Params: contracts.Params{"p": 1}}
	h3, _ := Hash(changed)
	assert.NotEqual(t, h1, h3)

	short, err := ShortHash(f.Ensemble)
	require.NoError(t, err)
	assert.Equal(t, h1[:12], short)
}
