// Package forecast persists series and consensus forecasts and runs the ensemble as a service.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/wonny/kats/internal/contracts"
)

// Querier pgxpool.Pool 부분 집합 (pgxmock 으로 대체 가능)
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository forecast 데이터 저장소
type Repository struct {
	db Querier
}

// NewRepository 새 저장소 생성
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// Run 저장된 합의 예측 실행 기록
type Run struct {
	ID          int64                `json:"id"`
	Series      string               `json:"series"`
	Aggregation string               `json:"aggregation"`
	Seasonal    bool                 `json:"seasonal"`
	Steps       int                  `json:"steps"`
	SpecHash    string               `json:"spec_hash"`
	CreatedAt   time.Time            `json:"created_at"`
	Consensus   *contracts.Consensus `json:"consensus"`
}

// SaveSeries 시계열 포인트 일괄 upsert (NaN 은 NULL)
func (r *Repository) SaveSeries(ctx context.Context, name string, series contracts.Series) error {
	if name == "" {
		return fmt.Errorf("series name is required: %w", contracts.ErrConfig)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO kats.series_points (series, ts, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (series, ts) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`

	for _, p := range series.Points() {
		if _, err := tx.Exec(ctx, query, name, p.Time, nullable(p.Value)); err != nil {
			return fmt.Errorf("upsert %s@%s: %w", name, p.Time.Format(time.RFC3339), err)
		}
	}

	return tx.Commit(ctx)
}

// LoadSeries 시계열 전체 조회 (시간순)
func (r *Repository) LoadSeries(ctx context.Context, name string) (contracts.Series, error) {
	query := `
		SELECT ts, value
		FROM kats.series_points
		WHERE series = $1
		ORDER BY ts`

	rows, err := r.db.Query(ctx, query, name)
	if err != nil {
		return contracts.Series{}, err
	}
	defer rows.Close()

	var points []contracts.Point
	for rows.Next() {
		var (
			ts    time.Time
			value pgtype.Float8
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return contracts.Series{}, err
		}
		points = append(points, contracts.Point{Time: ts, Value: fromNullable(value)})
	}
	if err := rows.Err(); err != nil {
		return contracts.Series{}, err
	}

	if len(points) == 0 {
		return contracts.Series{}, fmt.Errorf("series %q: %w", name, contracts.ErrNotFound)
	}
	return contracts.NewSeries(points)
}

// ListSeries 저장된 시계열 이름 목록
func (r *Repository) ListSeries(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT series FROM kats.series_points ORDER BY series`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveConsensus 실행 기록 + 예측 포인트 + 모델 가중치를 한 트랜잭션으로 저장
func (r *Repository) SaveConsensus(ctx context.Context, series, specHash string, c *contracts.Consensus) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var runID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO kats.forecast_runs (series, aggregation, seasonal, steps, spec_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		series, string(c.Mode), c.Seasonal, c.Len(), specHash,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	for i := range c.Fcst {
		if _, err := tx.Exec(ctx, `
			INSERT INTO kats.forecast_points (run_id, ts, fcst, lower, upper)
			VALUES ($1, $2, $3, $4, $5)`,
			runID, c.Time[i], nullable(c.Fcst[i]), nullable(c.Lower[i]), nullable(c.Upper[i]),
		); err != nil {
			return 0, fmt.Errorf("insert point %d: %w", i, err)
		}
	}

	for _, model := range c.Weights.Keys() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO kats.model_weights (run_id, model, weight, error)
			VALUES ($1, $2, $3, $4)`,
			runID, model, nullable(c.Weights[model]), errorOf(c.Errors, model),
		); err != nil {
			return 0, fmt.Errorf("insert weight %s: %w", model, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// PruneRuns before 이전에 생성된 실행 기록 삭제 (포인트/가중치는 CASCADE)
func (r *Repository) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM kats.forecast_runs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LatestConsensus 시계열의 가장 최근 실행 기록
func (r *Repository) LatestConsensus(ctx context.Context, series string) (*Run, error) {
	run := &Run{Series: series}
	err := r.db.QueryRow(ctx, `
		SELECT id, aggregation, seasonal, steps, spec_hash, created_at
		FROM kats.forecast_runs
		WHERE series = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, series,
	).Scan(&run.ID, &run.Aggregation, &run.Seasonal, &run.Steps, &run.SpecHash, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("forecast for %q: %w", series, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	c := &contracts.Consensus{
		Mode:     contracts.AggregationMode(run.Aggregation),
		Seasonal: run.Seasonal,
	}

	rows, err := r.db.Query(ctx, `
		SELECT ts, fcst, lower, upper
		FROM kats.forecast_points
		WHERE run_id = $1
		ORDER BY ts`, run.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			ts                 time.Time
			fcst, lower, upper pgtype.Float8
		)
		if err := rows.Scan(&ts, &fcst, &lower, &upper); err != nil {
			rows.Close()
			return nil, err
		}
		c.Time = append(c.Time, ts)
		c.Fcst = append(c.Fcst, fromNullable(fcst))
		c.Lower = append(c.Lower, fromNullable(lower))
		c.Upper = append(c.Upper, fromNullable(upper))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	wrows, err := r.db.Query(ctx, `
		SELECT model, weight, error
		FROM kats.model_weights
		WHERE run_id = $1
		ORDER BY model`, run.ID)
	if err != nil {
		return nil, err
	}
	defer wrows.Close()
	for wrows.Next() {
		var (
			model        string
			weight, mErr pgtype.Float8
		)
		if err := wrows.Scan(&model, &weight, &mErr); err != nil {
			return nil, err
		}
		if c.Weights == nil {
			c.Weights = contracts.Weights{}
			c.Errors = map[string]float64{}
		}
		c.Weights[model] = fromNullable(weight)
		if mErr.Valid {
			c.Errors[model] = mErr.Float64
		}
	}
	if err := wrows.Err(); err != nil {
		return nil, err
	}

	run.Consensus = c
	return run, nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(v pgtype.Float8) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func errorOf(errs map[string]float64, model string) *float64 {
	v, ok := errs[model]
	if !ok {
		return nil
	}
	return nullable(v)
}
