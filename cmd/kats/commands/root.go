package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/modelspec"
	"github.com/wonny/kats/pkg/config"
	"github.com/wonny/kats/pkg/logger"
)

var (
	// Global flags
	modelsFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kats",
	Short: "Kats - 앙상블 시계열 예측",
	Long: `Kats Ensemble Forecaster CLI

여러 예측 모델을 병렬로 적합하고 중앙값 또는 백테스트 가중 평균으로
합의 예측을 만듭니다. 계절성이 감지되면 분해 후 잔차에 적합합니다.

Usage:
  go run ./cmd/kats [command]

Examples:
  go run ./cmd/kats forecast --file sales.csv --steps 14
  go run ./cmd/kats detect --file sales.csv
  go run ./cmd/kats backtest --file sales.csv --folds 3
  go run ./cmd/kats series import sales --file sales.csv
  go run ./cmd/kats serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl+C / SIGTERM 은 커맨드 context 를 취소한다
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelsFile, "models", "", "모델 스펙 YAML (기본값: ENSEMBLE_MODELS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug 로그 출력")
}

// setup loads config and a logger writing to stderr (stdout 은 결과 출력 전용)
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.NewWithWriter(cfg, os.Stderr), nil
}

// loadDefaults 모델 스펙 파일을 읽고 빈 값은 환경 설정으로 채움
func loadDefaults(cfg *config.Config) (contracts.EnsembleConfig, error) {
	path := modelsFile
	if path == "" {
		path = cfg.Ensemble.ModelsFile
	}

	file, _, err := modelspec.Load(path)
	if err != nil {
		return contracts.EnsembleConfig{}, fmt.Errorf("load model spec: %w", err)
	}
	return mergeDefaults(file.Ensemble, cfg.Ensemble), nil
}

// mergeDefaults 파일 값 우선, 비어 있으면 환경 설정 값
func mergeDefaults(ens contracts.EnsembleConfig, env config.EnsembleConfig) contracts.EnsembleConfig {
	if ens.Aggregation == "" {
		ens.Aggregation = env.Aggregation
	}
	if ens.Decomposition == "" {
		ens.Decomposition = env.Decomposition
	}
	if ens.SeasonalityLength == 0 {
		ens.SeasonalityLength = env.SeasonalityLength
	}
	if ens.Metric == "" {
		ens.Metric = env.Metric
	}
	return ens
}
