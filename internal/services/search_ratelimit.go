package services

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outbound searches process-wide. With the default of one
// request per second and a burst of one, a call arriving less than a second
// after the previous one waits for the remainder.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing requestsPerSecond searches.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until the next search may be issued or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// SetRate changes the allowed request rate
func (rl *RateLimiter) SetRate(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		rl.limiter.SetLimit(rate.Inf)
		return
	}
	rl.limiter.SetLimit(rate.Limit(requestsPerSecond))
}

// Rate returns the current limit in requests per second
func (rl *RateLimiter) Rate() float64 {
	return float64(rl.limiter.Limit())
}
