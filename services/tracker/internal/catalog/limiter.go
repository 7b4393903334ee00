package catalog

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing TMDB requests to rps per second. Up to burst
// requests may start at once, so a summary fan-out is not serialized
// behind the steady rate.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter returns nil for a non-positive rps, which never blocks. A
// non-positive burst defaults to one second's worth of requests.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limiter) Burst() int {
	if l == nil {
		return 0
	}
	return l.rl.Burst()
}

// Wait blocks for the next slot. It fails fast when ctx would expire first.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}
