package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kats/internal/api"
	"github.com/wonny/kats/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                              - Health check (DB, Redis)
  POST /api/forecast                        - 요청 본문의 시계열로 즉시 예측
  GET  /api/series                          - 저장 시계열 목록
  POST /api/series/{name}/points            - 관측치 가져오기
  GET  /api/series/{name}/forecast          - 저장 시계열 예측 (?steps=&fused=&refresh=)
  GET  /api/series/{name}/forecast/latest   - 최근 예측 결과

Example:
  go run ./cmd/kats serve
  go run ./cmd/kats serve --port 9090`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본값: PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if servePort != "" {
		d.cfg.Port = servePort
	}

	h := api.Handlers{
		Forecast: handlers.NewForecastHandler(d.service, d.cfg.Ensemble.Steps, d.log),
		Series:   handlers.NewSeriesHandler(d.service, d.log),
	}
	checks := map[string]api.Pinger{"database": d.db, "redis": d.redis}
	router := api.NewRouter(h, api.NewLimiter(d.redis, d.cfg.RateLimit), checks, d.log)
	server := api.New(d.cfg, d.log, router)

	d.log.Infof("Rate limit: %d requests/min per client", d.cfg.RateLimit)
	fmt.Fprintf(cmd.OutOrStdout(), "\n✅ Server running on http://localhost:%s\nPress Ctrl+C to stop\n", d.cfg.Port)

	if err := server.Run(ctx, 30*time.Second); err != nil {
		return err
	}

	d.log.Info("Server stopped")
	return nil
}
