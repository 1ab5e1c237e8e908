package jobs

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/kats/internal/forecast"
	"github.com/wonny/kats/pkg/logger"
)

// Forecaster 예측 작업이 쓰는 서비스 계약 (forecast.Service)
type Forecaster interface {
	ListSeries(ctx context.Context) ([]string, error)
	Run(ctx context.Context, req forecast.Request) (*forecast.Result, error)
}

// ForecastJob 저장된 모든 시계열에 대해 앙상블 예측 갱신
type ForecastJob struct {
	service  Forecaster
	schedule string
	steps    int
	logger   *logger.Logger
}

// NewForecastJob steps 가 0 이면 서비스 기본값 사용
func NewForecastJob(service Forecaster, schedule string, steps int, log *logger.Logger) *ForecastJob {
	return &ForecastJob{
		service:  service,
		schedule: schedule,
		steps:    steps,
		logger:   log,
	}
}

// Name returns the job name
func (j *ForecastJob) Name() string {
	return "forecast_refresh"
}

// Schedule returns the cron schedule
func (j *ForecastJob) Schedule() string {
	return j.schedule
}

// Run 시계열별로 캐시를 우회해 예측 실행. 일부 실패해도 나머지는 계속
func (j *ForecastJob) Run(ctx context.Context) error {
	names, err := j.service.ListSeries(ctx)
	if err != nil {
		return fmt.Errorf("list series: %w", err)
	}
	if len(names) == 0 {
		j.logger.Info("No series stored, skipping")
		return nil
	}

	var failed []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := j.service.Run(ctx, forecast.Request{Series: name, Steps: j.steps, NoCache: true})
		if err != nil {
			j.logger.WithError(err).WithField("series", name).Warn("Forecast failed")
			failed = append(failed, name)
			continue
		}
		j.logger.WithField("series", name).WithField("run_id", res.RunID).Info("Forecast refreshed")
	}

	j.logger.WithField("total", len(names)).WithField("failed", len(failed)).Info("Forecast refresh completed")

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("forecast failed for %d/%d series: %v", len(failed), len(names), failed)
	}
	return nil
}
