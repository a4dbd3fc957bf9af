package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter: the first hit in a window sets the
// expiry, later hits only increment.
type RateLimiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
}

func NewRateLimiter(rdb redis.UniversalClient, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{rdb: rdb, limit: limit, window: window}
}

// Allow records one hit for key and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	key = "rate_limit:" + key

	current, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	if current == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("rate limiter: %w", err)
		}
	}
	return current <= int64(l.limit), nil
}

func (l *RateLimiter) Window() time.Duration { return l.window }
