package retry

import (
	"context"
	"time"
)

// sleepFunc is replaced in tests to observe the delays without waiting.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffAndSleep waits (backoffMultiplier*attempt + 1) units of durationType, or until ctx is
// done, in which case the context error is returned.
func BackoffAndSleep(ctx context.Context, attempt int, backoffMultiplier int, durationType time.Duration) error {
	units := backoffMultiplier*attempt + 1

	return sleepFunc(ctx, time.Duration(units)*durationType)
}

// CappedExponentialBackoff returns current*factor, never more than maxBackoff. A maxBackoff of
// zero or less disables the cap.
func CappedExponentialBackoff(current time.Duration, factor float64, maxBackoff time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)

	if maxBackoff > 0 && next > maxBackoff {
		return maxBackoff
	}

	return next
}
