package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter shared by every server instance
type RateLimiter struct {
	rdb    goredis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter allows limit requests per key per window
func NewRateLimiter(rdb goredis.Cmdable, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		prefix: "agora:ratelimit:" + prefix + ":",
		limit:  int64(limit),
		window: window,
	}
}

// Allow counts one request for key and reports whether it is within the limit
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key

	var incr *goredis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		// Only the first hit in a window sets the expiry
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return incr.Val() <= l.limit, nil
}
