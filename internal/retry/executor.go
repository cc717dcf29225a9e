// Package retry wraps fallible operations with bounded retry and exponential
// backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/jsalvarredy/grafana-otel-demo/internal/telemetry"
)

const (
	// DefaultMaxAttempts is the total number of attempts, not the number of
	// retries after the first try.
	DefaultMaxAttempts = 3
	// DefaultBackoffFactor is the exponential backoff base in seconds.
	DefaultBackoffFactor = 1.5
)

// PermanentError wraps an error that must not be retried: expected business
// outcomes (not found, insufficient stock) and circuit-breaker rejections.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &PermanentError{Err: err}
}

// Executor retries an operation with exponential backoff. The executor does
// not consult any circuit breaker: callers compose both, so a call may still
// fail fast without retrying once a breaker is open.
type Executor struct {
	MaxAttempts   int
	BackoffFactor float64

	metrics *telemetry.MetricsFactory
	logger  log.Logger

	// sleep is swappable in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor with the default attempt budget.
func NewExecutor(metrics *telemetry.MetricsFactory, logger log.Logger) *Executor {
	if metrics == nil {
		metrics = telemetry.NewNopFactory()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Executor{
		MaxAttempts:   DefaultMaxAttempts,
		BackoffFactor: DefaultBackoffFactor,
		metrics:       metrics,
		logger:        logger,
		sleep:         SleepWithContext,
	}
}

// WithSleep replaces the inter-attempt sleep function. Intended for tests.
func (e *Executor) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Executor {
	e.sleep = sleep

	return e
}

// Do attempts fn up to MaxAttempts times. dependency and operation tag the
// retry counter. On each failed non-final attempt it records a retry metric,
// sleeps the backoff duration and tries again; after the final attempt fails,
// the last error is surfaced to the caller. Errors wrapped with Permanent
// abort retrying immediately and are returned unwrapped.
func (e *Executor) Do(ctx context.Context, dependency, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < e.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}

		lastErr = err

		if attempt == e.MaxAttempts-1 {
			break
		}

		e.recordRetry(ctx, dependency, operation)

		delay := Backoff(e.BackoffFactor, attempt)
		e.logger.Warnf("Attempt %d/%d for %s.%s failed, retrying in %s: %v",
			attempt+1, e.MaxAttempts, dependency, operation, delay, err)

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return lastErr
		}
	}

	e.logger.Errorf("All %d attempts for %s.%s failed: %v", e.MaxAttempts, dependency, operation, lastErr)

	return lastErr
}

func (e *Executor) recordRetry(ctx context.Context, dependency, operation string) {
	counter, err := e.metrics.Counter(telemetry.MetricRetries)
	if err != nil {
		return
	}

	_ = counter.WithLabels(map[string]string{
		"dependency": dependency,
		"operation":  operation,
	}).AddOne(ctx)
}
