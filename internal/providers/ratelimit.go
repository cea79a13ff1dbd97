package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter gates provider calls with a token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter from a provider's config. A zero
// RequestsPerMinute means unlimited.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}

	burst := config.BurstSize
	if burst <= 0 {
		burst = config.RequestsPerMinute
	}
	perSecond := rate.Limit(float64(config.RequestsPerMinute) / 60.0)
	return &RateLimiter{limiter: rate.NewLimiter(perSecond, burst)}
}

// Wait blocks until a request may proceed or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
