package commands

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/scheduler"
	"github.com/wonny/kats/pkg/config"
	"github.com/wonny/kats/pkg/logger"
)

func TestReadSeriesCSV(t *testing.T) {
	in := `time,value
# comment
2024-01-01,1.5
2024-01-02T00:00:00Z,
2024-01-03 12:00:00,NaN
2024-01-04, 4
`
	s, err := readSeriesCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())

	values := s.Values()
	assert.Equal(t, 1.5, values[0])
	assert.True(t, math.IsNaN(values[1]))
	assert.True(t, math.IsNaN(values[2]))
	assert.Equal(t, 4.0, values[3])
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), s.Times()[2])
}

func TestReadSeriesCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad time", "yesterday,1\n"},
		{"bad value", "2024-01-01,abc\n"},
		{"wrong field count", "2024-01-01,1,2\n"},
		{"unordered", "2024-01-02,1\n2024-01-01,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readSeriesCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.True(t, contracts.IsClientError(err))
		})
	}

	_, err := readSeriesCSV(strings.NewReader("time,value\n"))
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)

	_, err = readSeriesFile("")
	assert.ErrorIs(t, err, contracts.ErrConfig)
}

func TestMergeDefaults(t *testing.T) {
	env := config.EnsembleConfig{Aggregation: "median", Decomposition: "multiplicative", SeasonalityLength: 12, Metric: "mae"}

	got := mergeDefaults(contracts.EnsembleConfig{Aggregation: "weightedavg"}, env)
	assert.Equal(t, "weightedavg", got.Aggregation)
	assert.Equal(t, "multiplicative", got.Decomposition)
	assert.Equal(t, 12, got.SeasonalityLength)
	assert.Equal(t, "mae", got.Metric)
}

func TestPrintConsensus(t *testing.T) {
	c := &contracts.Consensus{
		Time:    []time.Time{time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		Fcst:    []float64{10},
		Lower:   []float64{math.NaN()},
		Upper:   []float64{12},
		Mode:    contracts.AggregationWeightedAvg,
		Weights: contracts.Weights{"theta": 0.25, "arima": 0.75},
		Errors:  map[string]float64{"arima": 1, "theta": 3},
	}

	var buf bytes.Buffer
	printConsensus(&buf, c)
	out := buf.String()

	assert.Contains(t, out, "weightedavg")
	assert.Contains(t, out, "2024-02-01 00:00")
	assert.Contains(t, out, "10.0000")
	assert.Contains(t, out, "-")
	assert.Less(t, strings.Index(out, "arima"), strings.Index(out, "theta"))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestBacktestCommand(t *testing.T) {
	t.Setenv("LOG_LEVEL", "off")
	dir := t.TempDir()

	var csv strings.Builder
	csv.WriteString("time,value\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&csv, "%s,%d\n", start.AddDate(0, 0, i).Format("2006-01-02"), 50+2*i)
	}
	dataPath := writeFile(t, dir, "trend.csv", csv.String())
	specPath := writeFile(t, dir, "models.yaml", `meta:
  name: trend
ensemble:
  aggregation: median
  models:
    - name: linear
    - name: quadratic
`)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"backtest", "--file", dataPath, "--models", specPath, "--metrics", "mape,mae", "--folds", "2"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		modelsFile, backtestFile, backtestMetrics, backtestFolds = "", "", "", 0
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Backtest")
	assert.Contains(t, text, "linear")
	assert.Contains(t, text, "quadratic")
	assert.Contains(t, text, "cv_mean")
	assert.Contains(t, text, "0.0000")
}

type namedJob struct {
	name string
	err  error
}

func (j namedJob) Name() string              { return j.name }
func (j namedJob) Schedule() string          { return "@daily" }
func (j namedJob) Run(context.Context) error { return j.err }

func TestSchedulerDisableAndHistory(t *testing.T) {
	log := logger.New(&config.Config{Env: "development", LogLevel: "off"})
	sched := scheduler.New(log, scheduler.WithRetry(0, 0))
	require.NoError(t, sched.AddJob(namedJob{name: "forecast_refresh"}))
	require.NoError(t, sched.AddJob(namedJob{name: "forecast_retention", err: fmt.Errorf("db down")}))
	require.NoError(t, sched.AddJob(namedJob{name: "idle"}))

	require.NoError(t, disableJobs(sched, []string{" idle"}))
	assert.Equal(t, []string{"forecast_refresh", "forecast_retention"}, sched.GetAllJobs())
	assert.Error(t, disableJobs(sched, []string{"missing"}))

	_, err := sched.RunJob(context.Background(), "forecast_refresh")
	require.NoError(t, err)
	_, err = sched.RunJob(context.Background(), "forecast_retention")
	require.NoError(t, err)

	var out bytes.Buffer
	printJobHistory(&out, sched, 5)
	text := out.String()
	assert.Contains(t, text, "Job History")
	assert.Contains(t, text, "forecast_refresh")
	assert.Contains(t, text, "failed")
	assert.NotContains(t, text, "idle")
}
