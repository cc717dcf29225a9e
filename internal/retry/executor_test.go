package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor() (*Executor, *[]time.Duration) {
	slept := &[]time.Duration{}

	executor := NewExecutor(nil, nil).WithSleep(func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)

		return nil
	})

	return executor, slept
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	executor, slept := newTestExecutor()

	calls := 0
	err := executor.Do(context.Background(), "products", "get_product", func() error {
		calls++

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	executor, slept := newTestExecutor()

	calls := 0
	err := executor.Do(context.Background(), "products", "get_product", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond}, *slept)
}

func TestDoExhaustsAttempts(t *testing.T) {
	executor, slept := newTestExecutor()

	transient := errors.New("transient")

	calls := 0
	err := executor.Do(context.Background(), "products", "get_inventory", func() error {
		calls++

		return transient
	})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, DefaultMaxAttempts, calls)
	// No sleep after the final attempt.
	assert.Len(t, *slept, DefaultMaxAttempts-1)
}

func TestDoPermanentErrorAbortsImmediately(t *testing.T) {
	executor, slept := newTestExecutor()

	notFound := errors.New("not found")

	calls := 0
	err := executor.Do(context.Background(), "products", "get_product", func() error {
		calls++

		return Permanent(notFound)
	})

	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDoReturnsUnwrappedPermanentError(t *testing.T) {
	executor, _ := newTestExecutor()

	notFound := errors.New("not found")

	err := executor.Do(context.Background(), "products", "get_product", func() error {
		return Permanent(notFound)
	})

	assert.Equal(t, notFound, err)
}

func TestDoStopsWhenSleepCancelled(t *testing.T) {
	executor := NewExecutor(nil, nil).WithSleep(func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	})

	transient := errors.New("transient")

	calls := 0
	err := executor.Do(context.Background(), "products", "purchase", func() error {
		calls++

		return transient
	})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 1, calls)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestBackoffGrowsExponentially(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(1.5, 0))
	assert.Equal(t, 1500*time.Millisecond, Backoff(1.5, 1))
	assert.Equal(t, 2250*time.Millisecond, Backoff(1.5, 2))
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SleepWithContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
