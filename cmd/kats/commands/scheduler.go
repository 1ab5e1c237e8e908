package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kats/internal/scheduler"
	"github.com/wonny/kats/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `예측 갱신 스케줄러를 시작하거나 작업을 즉시 실행합니다.

등록되는 작업:
- forecast_refresh: FORECAST_SCHEDULE (기본 매일 오전 6시) 모든 시계열 예측
- forecast_retention: 매일 오전 3시, FORECAST_RETENTION 보다 오래된 실행 기록 삭제

Subcommands:
  start   - 스케줄러 시작
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/kats scheduler start
  go run ./cmd/kats scheduler start --disable forecast_retention
  go run ./cmd/kats scheduler run forecast_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

var schedulerDisable []string

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerStartCmd.Flags().StringSliceVar(&schedulerDisable, "disable", nil, "등록하지 않을 작업 이름 (쉼표 구분)")
}

// newScheduler registers the forecast jobs
func newScheduler(d *deps) (*scheduler.Scheduler, error) {
	sched := scheduler.New(d.log)

	if err := sched.AddJob(jobs.NewForecastJob(d.service, d.cfg.Forecast.Schedule, d.cfg.Ensemble.Steps, d.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewRetentionJob(d.repo, d.cfg.Forecast.Retention, d.log)); err != nil {
		return nil, err
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	d, err := openDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := newScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	if err := disableJobs(sched, schedulerDisable); err != nil {
		return err
	}
	sched.Start()

	out := cmd.OutOrStdout()
	printSuccess(out, "Scheduler started")
	for name, st := range sched.GetJobStats() {
		printKeyValue(out, name, st.Schedule, 20)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	<-cmd.Context().Done()
	sched.Stop()
	printJobHistory(out, sched, 5)
	return nil
}

// disableJobs removes the named jobs before the scheduler starts
func disableJobs(sched *scheduler.Scheduler, names []string) error {
	for _, name := range names {
		if err := sched.RemoveJob(strings.TrimSpace(name)); err != nil {
			return fmt.Errorf("disable job: %w", err)
		}
	}
	return nil
}

// printJobHistory prints the latest runs of every job
func printJobHistory(w io.Writer, sched *scheduler.Scheduler, latest int) {
	printHeader(w, "Job History")
	widths := []int{20, 20, 8, 8, 12}
	printTableHeader(w, []string{"JOB", "STARTED", "RESULT", "TRIES", "DURATION"}, widths)
	for _, name := range sched.GetAllJobs() {
		history, err := sched.GetJobHistory(name)
		if err != nil {
			continue
		}
		runs := history.GetLatestResults(latest)
		if len(runs) == 0 {
			printTableRow(w, []string{name, "-", "-", "-", "-"}, widths)
			continue
		}
		for _, r := range runs {
			result := "ok"
			if !r.Success {
				result = "failed"
			}
			printTableRow(w, []string{
				name,
				r.StartTime.Format("2006-01-02 15:04:05"),
				result,
				strconv.Itoa(r.Attempts),
				r.Duration.Round(time.Millisecond).String(),
			}, widths)
		}
	}
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	d, err := openDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := newScheduler(d)
	if err != nil {
		return err
	}

	res, err := sched.RunJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("job %s failed: %s", res.JobName, res.Error)
	}

	printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Job %s completed in %s", res.JobName, res.Duration))
	return nil
}
