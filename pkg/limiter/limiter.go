package limiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle is a token bucket used to space out outbound calls.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle admits burst calls at once and one more every interval.
// A non-positive interval disables throttling.
func NewThrottle(interval time.Duration, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limiter: rate.NewLimiter(every(interval), burst),
	}
}

// Wait blocks until a token is available or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

func every(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}
