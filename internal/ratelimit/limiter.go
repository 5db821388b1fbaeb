package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces how quickly new browser sessions are launched
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a launch limiter
// startsPerMinute: sessions that may start per minute (e.g., 30); <= 0 disables pacing
// burst: how many sessions may start back to back (e.g., 5)
func NewLimiter(startsPerMinute int, burst int) *Limiter {
	if startsPerMinute <= 0 {
		return &Limiter{}
	}
	if burst < 1 {
		burst = 1
	}

	// Convert starts per minute to starts per second
	r := rate.Limit(float64(startsPerMinute) / 60.0)

	return &Limiter{
		limiter: rate.NewLimiter(r, burst),
	}
}

// Wait blocks until a session may start or ctx is done. A nil or disabled limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Tokens returns how many sessions could start right now
func (l *Limiter) Tokens() float64 {
	if l == nil || l.limiter == nil {
		return 0
	}
	return l.limiter.Tokens()
}
