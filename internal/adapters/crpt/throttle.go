package crpt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces request starts at least window/quota apart.
//
// It is a leaky bucket of one: a single rate.Limiter with burst 1, so an idle
// throttle grants one slot immediately and never allows a burst of quota requests
// inside one window. The reservation is taken under the limiter's lock and the wait
// happens outside it, which keeps concurrent callers strictly spaced.
type Throttle struct {
	limiter  *rate.Limiter
	minDelay time.Duration
}

// NewThrottle allows at most quota request starts per window.
func NewThrottle(window time.Duration, quota int) (*Throttle, error) {
	if quota <= 0 {
		return nil, &ConfigError{Field: "request limit", Reason: "must be positive"}
	}
	if window <= 0 {
		return nil, &ConfigError{Field: "time window", Reason: "must be positive"}
	}

	minDelay := window / time.Duration(quota)
	limit := rate.Inf
	if minDelay > 0 {
		// The limiter keeps its rate as a float and truncates delays back to
		// nanoseconds, so one extra nanosecond keeps every reservation at or above minDelay.
		limit = rate.Every(minDelay + time.Nanosecond)
	}

	return &Throttle{
		limiter:  rate.NewLimiter(limit, 1),
		minDelay: minDelay,
	}, nil
}

// AwaitSlot blocks until the next slot is granted or ctx is done.
// A cancelled wait returns its reservation so later callers are not delayed by it.
// A slot that would only be granted after the deadline fails early with
// context.DeadlineExceeded.
func (t *Throttle) AwaitSlot(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
			if _, ok := ctx.Deadline(); ok {
				return fmt.Errorf("await rate limit slot: %w: %v", context.DeadlineExceeded, err)
			}
		}
		return fmt.Errorf("await rate limit slot: %w", err)
	}
	return nil
}

// MinDelay is the enforced interval between two granted slots.
func (t *Throttle) MinDelay() time.Duration {
	return t.minDelay
}
