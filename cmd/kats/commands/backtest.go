package commands

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wonny/kats/internal/backtest"
	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/models"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "모델별 백테스트 오차 비교",
	Long: `모델 스펙 파일의 각 모델을 holdout 분할로 평가하고
--folds 가 주어지면 확장 윈도우 교차 검증 평균/표준편차도 함께 출력합니다.

Example:
  go run ./cmd/kats backtest --file sales.csv
  go run ./cmd/kats backtest --file sales.csv --metrics mape,rmse --folds 3`,
	RunE: runBacktest,
}

var (
	backtestFile    string
	backtestMetrics string
	backtestFolds   int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestFile, "file", "f", "", "입력 CSV (time,value)")
	backtestCmd.Flags().StringVar(&backtestMetrics, "metrics", "", "쉼표 구분 지표 (기본값: 전체)")
	backtestCmd.Flags().IntVar(&backtestFolds, "folds", 0, "확장 윈도우 fold 수 (0 = 생략)")
}

// modelScore 모델 하나의 백테스트 결과
type modelScore struct {
	Model  string
	Errors map[string]float64
	Window *backtest.WindowResult
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	defaults, err := loadDefaults(cfg)
	if err != nil {
		return err
	}

	series, err := readSeriesFile(backtestFile)
	if err != nil {
		return err
	}

	metricNames := backtest.MetricNames()
	if backtestMetrics != "" {
		metricNames = strings.Split(backtestMetrics, ",")
		for i := range metricNames {
			metricNames[i] = strings.ToLower(strings.TrimSpace(metricNames[i]))
			if _, err := backtest.Metric(metricNames[i]); err != nil {
				return err
			}
		}
	}

	scores, err := scoreModels(cmd, series, defaults, metricNames, log.Zerolog())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printHeader(out, "Backtest")
	printKeyValue(out, "Points", fmt.Sprintf("%d", series.Len()), 8)
	printKeyValue(out, "Models", fmt.Sprintf("%d", len(scores)), 8)
	fmt.Fprintln(out, singleLine)

	columns := append([]string{"model"}, metricNames...)
	widths := []int{24}
	for range metricNames {
		widths = append(widths, 12)
	}
	if backtestFolds > 0 {
		columns = append(columns, "cv_mean", "cv_std")
		widths = append(widths, 12, 12)
	}

	printTableHeader(out, columns, widths)
	for _, s := range scores {
		row := []string{s.Model}
		for _, m := range metricNames {
			row = append(row, formatFloat(s.Errors[m]))
		}
		if s.Window != nil {
			row = append(row, formatFloat(s.Window.Mean), formatFloat(s.Window.StdDev))
		}
		printTableRow(out, row, widths)
	}
	fmt.Fprintln(out, doubleLine)
	return nil
}

// scoreModels holdout 평가는 Evaluator 실행 단위로, fold 평가는 Simulator 로
// 실패한 모델은 NaN 으로 표시하고 계속 진행
func scoreModels(cmd *cobra.Command, series contracts.Series, ens contracts.EnsembleConfig, metricNames []string, log zerolog.Logger) ([]modelScore, error) {
	ctx := cmd.Context()

	split := backtest.DefaultConfig()
	if ens.TrainPercentage > 0 && ens.TestPercentage > 0 {
		split = backtest.Config{TrainPercentage: ens.TrainPercentage, TestPercentage: ens.TestPercentage}
	}
	engine, err := backtest.NewEngine(split, log)
	if err != nil {
		return nil, err
	}

	var sim *backtest.Simulator
	if backtestFolds > 0 {
		window := backtest.DefaultWindowConfig()
		window.Folds = backtestFolds
		if sim, err = backtest.NewSimulator(window, log); err != nil {
			return nil, err
		}
	}

	registry := models.NewRegistry(log)
	if err := registry.Validate(ens.Models); err != nil {
		return nil, err
	}

	evaluator := backtest.NewEvaluator(log)
	scores := make([]modelScore, 0, len(ens.Models))

	for _, spec := range ens.Models {
		score := modelScore{Model: spec.Name, Errors: nanErrors(metricNames)}

		model, err := registry.New(spec)
		if err != nil {
			return nil, err
		}
		if _, err := evaluator.CreateRun(spec.Name); err != nil {
			return nil, err
		}

		if err := evaluator.Generate(ctx, spec.Name, engine, series, model); err != nil {
			log.Warn().Err(err).Str("model", spec.Name).Msg("Backtest failed")
		} else if errs, err := evaluator.Evaluate(spec.Name, metricNames, nil); err != nil {
			log.Warn().Err(err).Str("model", spec.Name).Msg("Evaluation failed")
		} else {
			score.Errors = errs
		}

		if sim != nil {
			window, err := sim.Run(ctx, series, func() (contracts.Model, error) { return registry.New(spec) }, metricNames[0])
			if err != nil {
				log.Warn().Err(err).Str("model", spec.Name).Msg("Window backtest failed")
				window = &backtest.WindowResult{Metric: metricNames[0], Mean: math.NaN(), StdDev: math.NaN()}
			}
			score.Window = window
		}

		scores = append(scores, score)
	}

	return scores, nil
}

func nanErrors(metricNames []string) map[string]float64 {
	errs := make(map[string]float64, len(metricNames))
	for _, m := range metricNames {
		errs[m] = math.NaN()
	}
	return errs
}
