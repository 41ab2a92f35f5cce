package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/apimate/pkg/config"
	"github.com/nimburion/apimate/pkg/observability/logger"
)

const (
	redisCallTimeout = 500 * time.Millisecond
	redisDialTimeout = 5 * time.Second
	defaultKeyPrefix = "ratelimit"
)

// redisClient is the part of *redis.Client the limiter calls.
type redisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisRateLimiter counts requests per key in fixed windows, one Redis key
// per client and window, so every replica shares the same budget.
type RedisRateLimiter struct {
	client redisClient
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
	log    logger.Logger
}

// NewRedisRateLimiter connects to cfg.RedisURL and pings it. Each client may
// send requests_per_second + burst requests per second.
func NewRedisRateLimiter(cfg config.RateLimitConfig, log logger.Logger) (*RedisRateLimiter, error) {
	switch {
	case cfg.RedisURL == "":
		return nil, errors.New("rate limiter: redis URL is required")
	case cfg.RequestsPerSecond <= 0:
		return nil, errors.New("rate limiter: requests_per_second must be greater than zero")
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: parse redis URL: %w", err)
	}
	opts.ReadTimeout, opts.WriteTimeout = redisCallTimeout, redisCallTimeout
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rate limiter: ping redis: %w", err)
	}

	prefix := cfg.RedisPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	limit := cfg.RequestsPerSecond + max(cfg.Burst, 0)
	log.Info("rate limiter using redis", "addr", opts.Addr, "limit", limit, "prefix", prefix)
	return newRedisRateLimiter(client, limit, time.Second, prefix, log), nil
}

func newRedisRateLimiter(client redisClient, limit int, window time.Duration, prefix string, log logger.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: prefix,
		now:    time.Now,
		log:    log,
	}
}

// Allow counts one request of key in the current window. Redis errors let
// the request through.
func (r *RedisRateLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	k := r.windowKey(key)
	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		r.log.Error("rate limiter: redis increment failed, allowing request", "error", err)
		return true
	}
	// The first request of a window owns the expiry; the key outlives its
	// window by at most one window.
	if n == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			r.log.Warn("rate limiter: redis expire failed", "key", k, "error", err)
		}
	}
	return n <= r.limit
}

func (r *RedisRateLimiter) windowKey(key string) string {
	slot := r.now().UnixNano() / int64(r.window)
	return r.prefix + ":" + key + ":" + strconv.FormatInt(slot, 10)
}

func (r *RedisRateLimiter) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}
