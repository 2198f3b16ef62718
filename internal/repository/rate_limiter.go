package repository

import (
	"context"
	"time"

	"wallet-service/pkg/cache"
)

const rateLimitNamespace = "rate_limit"

// RateLimiter counts events per key inside a rolling window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

type rateLimiter struct {
	cache *cache.Cache
}

func NewRateLimiter(c *cache.Cache) RateLimiter {
	return &rateLimiter{cache: c}
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	cnt, err := r.cache.IncrWithExpire(ctx, rateLimitNamespace, key, window)
	if err != nil {
		return false, err
	}
	return cnt <= limit, nil
}
