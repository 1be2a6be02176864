package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is the fixed-window counter backed by a shared store, so
// a multi-instance deployment enforces one limit instead of one per process.
// INCR plus a first-write expiry gives the same window semantics as the
// in-process limiter.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisRateLimiter(cfg RedisConfig, limit int, window time.Duration) (*RedisRateLimiter, error) {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}, nil
}

func (rl *RedisRateLimiter) Check(ctx context.Context, key string) (RateLimitResult, error) {
	redisKey := "ratelimit:" + key

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, rl.window)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(incr.Val())
	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := time.Now().Add(rl.window)
	if d := ttl.Val(); d > 0 {
		resetAt = time.Now().Add(d)
	}

	return RateLimitResult{
		Allowed:   count <= rl.limit,
		Limit:     rl.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (rl *RedisRateLimiter) Close() error {
	return rl.client.Close()
}
