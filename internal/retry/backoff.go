package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Backoff calculates the delay before re-attempting a failed operation.
// The delay is factor^attempt seconds, with attempt starting at 0.
// Negative attempts are treated as 0; non-positive factors return 0.
func Backoff(factor float64, attempt int) time.Duration {
	if factor <= 0 {
		return 0
	}

	if attempt < 0 {
		attempt = 0
	}

	seconds := math.Pow(factor, float64(attempt))
	if seconds > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(seconds * float64(time.Second))
}

// SleepWithContext sleeps for the specified duration but respects context
// cancellation. Returns nil if the sleep completes, or an error if the
// context is cancelled. Returns immediately (nil) for zero or negative
// durations.
func SleepWithContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
