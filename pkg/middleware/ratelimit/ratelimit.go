// Package ratelimit rejects clients exceeding a request rate with 429.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/nimburion/apimate/pkg/config"
	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/server/router"
	"golang.org/x/time/rate"
)

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
	Close() error
}

// New builds the limiter cfg describes: Redis backed when a URL is set,
// per process token buckets otherwise.
func New(cfg config.RateLimitConfig, log logger.Logger) (Limiter, error) {
	if cfg.RedisURL != "" {
		return NewRedisRateLimiter(cfg, log)
	}
	return NewTokenBucketLimiter(cfg.RequestsPerSecond, cfg.Burst), nil
}

// TokenBucketLimiter keeps one token bucket per key in memory.
type TokenBucketLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter creates a limiter refilling requestsPerSecond tokens
// per second into buckets holding at most burst tokens. A burst below one
// holds a single second of requests.
func NewTokenBucketLimiter(requestsPerSecond, burst int) *TokenBucketLimiter {
	if burst < 1 {
		burst = requestsPerSecond
	}
	return &TokenBucketLimiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

func (l *TokenBucketLimiter) Allow(key string) bool {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter).Allow()
	}
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return limiter.(*rate.Limiter).Allow()
}

func (l *TokenBucketLimiter) Close() error { return nil }

// Config configures the middleware.
type Config struct {
	// KeyFunc identifies the client, ClientIP when nil.
	KeyFunc func(router.Context) string
}

// RateLimit creates middleware answering 429 with Retry-After when limiter
// refuses the request key.
func RateLimit(limiter Limiter, cfg Config) router.MiddlewareFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c router.Context) string { return ClientIP(c.Request()) }
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if limiter.Allow(cfg.KeyFunc(c)) {
				return next(c)
			}
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":      "rate_limited",
				"message":    "rate limit exceeded",
				"request_id": logger.RequestIDFromContext(c.Request().Context()),
			})
		}
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
