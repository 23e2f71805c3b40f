package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = 2 * time.Second
)

// RetryPolicy bounds the attempts made for one query. The wait before
// attempt n+1 is BaseDelay * 2^(n-1), so the defaults wait 2s then 4s.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns three attempts with a 2s base delay
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultRetryMaxAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
	}
}

// Attempts returns the effective attempt count, never less than one
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after the given failed attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

// Schedule lists every delay the policy can produce
func (p RetryPolicy) Schedule() []time.Duration {
	n := p.Attempts() - 1
	delays := make([]time.Duration, 0, n)
	for attempt := 1; attempt <= n; attempt++ {
		delays = append(delays, p.Delay(attempt))
	}
	return delays
}

// Wait sleeps for the delay following attempt on clock, returning early
// with ctx.Err() if the context ends first
func (p RetryPolicy) Wait(ctx context.Context, clock clockwork.Clock, attempt int) error {
	d := p.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
