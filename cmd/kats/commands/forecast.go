package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kats/internal/forecast"
)

// forecastCmd represents the forecast command
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "CSV 시계열 앙상블 예측",
	Long: `CSV 파일(time,value)을 읽어 앙상블 합의 예측을 출력합니다.
DB 나 Redis 없이 동작합니다.

Example:
  go run ./cmd/kats forecast --file sales.csv --steps 14
  go run ./cmd/kats forecast --file sales.csv --models config/models.yaml --fused --json`,
	RunE: runForecast,
}

var (
	forecastFile  string
	forecastSteps int
	forecastFused bool
	forecastJSON  bool
)

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().StringVarP(&forecastFile, "file", "f", "", "입력 CSV (time,value). '-' 는 stdin")
	forecastCmd.Flags().IntVar(&forecastSteps, "steps", 0, "예측 길이 (기본값: ENSEMBLE_STEPS)")
	forecastCmd.Flags().BoolVar(&forecastFused, "fused", false, "적합/예측/백테스트 통합 경로 사용")
	forecastCmd.Flags().BoolVar(&forecastJSON, "json", false, "JSON 출력")
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	defaults, err := loadDefaults(cfg)
	if err != nil {
		return err
	}

	series, err := readSeriesFile(forecastFile)
	if err != nil {
		return err
	}

	steps := forecastSteps
	if steps == 0 {
		steps = cfg.Ensemble.Steps
	}

	log.WithField("points", series.Len()).WithField("steps", steps).Info("Running ensemble forecast")

	service := forecast.NewService(nil, nil, defaults, 0, cfg.Ensemble.MaxWorkers, log.Component("forecast"))
	res, err := service.RunInline(cmd.Context(), series, defaults, steps, forecastFused)
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}

	out := cmd.OutOrStdout()
	if forecastJSON {
		return printJSON(out, res)
	}
	printConsensus(out, res.Consensus)
	printSuccess(out, fmt.Sprintf("Forecast completed in %s (spec %s)", res.Duration.Round(time.Millisecond), res.SpecHash))
	return nil
}
