package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/kats/pkg/logger"
)

// Pruner 오래된 실행 기록 삭제 (forecast.Repository)
type Pruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// RetentionJob 보관 기간이 지난 예측 실행 기록 정리
type RetentionJob struct {
	pruner    Pruner
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewRetentionJob creates a new retention job
func NewRetentionJob(pruner Pruner, retention time.Duration, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "forecast_retention"
}

// Schedule returns the cron schedule (3 AM daily)
func (j *RetentionJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run executes the cleanup
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.retention <= 0 {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	removed, err := j.pruner.PruneRuns(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune forecast runs: %w", err)
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).WithField("cutoff", cutoff.Format(time.RFC3339)).Info("Forecast runs pruned")
	}
	return nil
}
