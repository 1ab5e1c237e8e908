package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/kats/pkg/logger"
	"github.com/wonny/kats/pkg/redis"
)

// Limiter 클라이언트별 요청 허용 여부
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// NewLimiter Redis 가 켜져 있으면 분산 슬라이딩 윈도우, 아니면 프로세스 내 토큰 버킷
// perMinute 가 0 이면 nil (제한 없음)
func NewLimiter(client *redis.Client, perMinute int) Limiter {
	if perMinute <= 0 {
		return nil
	}
	if client != nil && client.Enabled() {
		return &redisLimiter{limiter: redis.NewRateLimiter(client, "kats"), perMinute: perMinute}
	}
	return newLocalLimiter(perMinute)
}

type redisLimiter struct {
	limiter   *redis.RateLimiter
	perMinute int
}

func (l *redisLimiter) Allow(ctx context.Context, client string) (bool, error) {
	allowed, _, err := l.limiter.Allow(ctx, redis.APIRateLimit(client, l.perMinute))
	return allowed, err
}

// localLimiter golang.org/x/time/rate 기반 클라이언트별 버킷
type localLimiter struct {
	mu        sync.Mutex
	perMinute int
	buckets   map[string]*rate.Limiter
}

func newLocalLimiter(perMinute int) *localLimiter {
	return &localLimiter{perMinute: perMinute, buckets: make(map[string]*rate.Limiter)}
}

func (l *localLimiter) Allow(_ context.Context, client string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[client]
	if !ok {
		b = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)
		l.buckets[client] = b
	}
	l.mu.Unlock()
	return b.Allow(), nil
}

// clientKey 원격 IP (포트 제외)
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitMiddleware 제한 초과 시 429. 리미터 장애 시 요청은 통과
func rateLimitMiddleware(limiter Limiter, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)
			allowed, err := limiter.Allow(r.Context(), client)
			if err != nil {
				log.WithError(err).WithField("client", client).Warn("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(60))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
