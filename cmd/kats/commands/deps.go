package commands

import (
	"context"
	"fmt"

	"github.com/wonny/kats/internal/forecast"
	"github.com/wonny/kats/pkg/config"
	"github.com/wonny/kats/pkg/database"
	"github.com/wonny/kats/pkg/logger"
	"github.com/wonny/kats/pkg/redis"
)

// deps DB/Redis 를 쓰는 커맨드의 공통 의존성
type deps struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	repo    *forecast.Repository
	service *forecast.Service
}

// openDeps connects to postgres (스키마 마이그레이션 포함) and redis, then builds the forecast service
func openDeps(ctx context.Context) (*deps, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, err
	}

	defaults, err := loadDefaults(cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("Connected to database")

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	repo := forecast.NewRepository(db.Pool)
	service := forecast.NewService(
		repo,
		redis.NewCache(rdb, "kats"),
		defaults,
		cfg.Forecast.CacheTTL,
		cfg.Ensemble.MaxWorkers,
		log.Component("forecast"),
	)

	return &deps{cfg: cfg, log: log, db: db, redis: rdb, repo: repo, service: service}, nil
}

// Close releases connections.
func (d *deps) Close() {
	_ = d.redis.Close()
	d.db.Close()
}
