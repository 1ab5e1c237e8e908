package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/kats/internal/api/handlers"
	"github.com/wonny/kats/pkg/database"
	"github.com/wonny/kats/pkg/logger"
)

// Pinger 헬스 체크 대상 (DB, Redis)
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolReporter 커넥션 풀 통계까지 보고하는 헬스 체크 대상 (DB)
type PoolReporter interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// Handlers 라우터에 연결할 핸들러 묶음
type Handlers struct {
	Forecast *handlers.ForecastHandler
	Series   *handlers.SeriesHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, limiter Limiter, checks map[string]Pinger, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(checks)).Methods("GET")

	// Forecast endpoints
	r.HandleFunc("/api/forecast", h.Forecast.Forecast).Methods("POST")
	r.HandleFunc("/api/series", h.Series.List).Methods("GET")
	r.HandleFunc("/api/series/{name}/points", h.Series.ImportPoints).Methods("POST")
	r.HandleFunc("/api/series/{name}/forecast", h.Forecast.SeriesForecast).Methods("GET")
	r.HandleFunc("/api/series/{name}/forecast/latest", h.Forecast.LatestForecast).Methods("GET")

	if limiter != nil {
		r.Use(pathPrefixOnly("/api/", rateLimitMiddleware(limiter, log)))
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// pathPrefixOnly applies mw only to requests under prefix
// 서브라우터 대신 루트 라우터에 등록해야 메서드 불일치가 405 로 응답됨
func pathPrefixOnly(prefix string, mw mux.MiddlewareFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// healthCheckHandler returns server health status
func healthCheckHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		details := make(map[string]*database.HealthStatus)
		for name, c := range checks {
			if pr, ok := c.(PoolReporter); ok {
				hs, err := pr.HealthCheck(ctx)
				if hs != nil {
					details[name] = hs
				}
				if err != nil {
					results[name] = err.Error()
					status = http.StatusServiceUnavailable
					continue
				}
				results[name] = "ok"
				continue
			}
			if err := c.Ping(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		body := map[string]interface{}{
			"status":  overall,
			"service": "kats-api",
			"checks":  results,
		}
		if len(details) > 0 {
			body["details"] = details
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder 응답 상태 코드 기록
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			l := log.Zerolog()
			l.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithField("error", err).WithField("path", r.URL.Path).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
