package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used by Migrate (pgxmock 호환)
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema 시계열/예측 저장 테이블 (멱등)
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS kats`,
	`CREATE TABLE IF NOT EXISTS kats.series_points (
		series     TEXT             NOT NULL,
		ts         TIMESTAMPTZ      NOT NULL,
		value      DOUBLE PRECISION,
		updated_at TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		PRIMARY KEY (series, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS kats.forecast_runs (
		id          BIGSERIAL   PRIMARY KEY,
		series      TEXT        NOT NULL,
		aggregation TEXT        NOT NULL,
		seasonal    BOOLEAN     NOT NULL DEFAULT FALSE,
		steps       INT         NOT NULL,
		spec_hash   TEXT        NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS forecast_runs_series_idx ON kats.forecast_runs (series, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS kats.forecast_points (
		run_id BIGINT      NOT NULL REFERENCES kats.forecast_runs (id) ON DELETE CASCADE,
		ts     TIMESTAMPTZ NOT NULL,
		fcst   DOUBLE PRECISION,
		lower  DOUBLE PRECISION,
		upper  DOUBLE PRECISION,
		PRIMARY KEY (run_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS kats.model_weights (
		run_id BIGINT NOT NULL REFERENCES kats.forecast_runs (id) ON DELETE CASCADE,
		model  TEXT   NOT NULL,
		weight DOUBLE PRECISION,
		error  DOUBLE PRECISION,
		PRIMARY KEY (run_id, model)
	)`,
}

// Migrate applies every schema statement in order.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
