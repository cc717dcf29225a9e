package circuitbreaker

import (
	"testing"
	"time"

	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, cfg Config) *Breaker {
	t.Helper()

	manager := NewManager(&log.NoneLogger{})

	return manager.GetOrCreate("products", cfg)
}

func recordFailures(t *testing.T, breaker *Breaker, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		done, err := breaker.Allow()
		require.NoError(t, err)
		done(false)
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	breaker := newTestBreaker(t, DefaultConfig())

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, "products", breaker.Name())
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	breaker := newTestBreaker(t, DefaultConfig())

	recordFailures(t, breaker, 4)
	assert.Equal(t, StateClosed, breaker.State())

	recordFailures(t, breaker, 1)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	breaker := newTestBreaker(t, DefaultConfig())

	recordFailures(t, breaker, 5)

	done, err := breaker.Allow()
	assert.ErrorIs(t, err, ErrOpen)
	assert.Nil(t, done)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	breaker := newTestBreaker(t, DefaultConfig())

	recordFailures(t, breaker, 4)

	done, err := breaker.Allow()
	require.NoError(t, err)
	done(true)

	// The streak restarted, so four more failures are not enough to trip.
	recordFailures(t, breaker, 4)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenProbeSuccessCloses(t *testing.T) {
	breaker := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: 20 * time.Millisecond})

	recordFailures(t, breaker, 2)
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(30 * time.Millisecond)

	done, err := breaker.Allow()
	require.NoError(t, err)
	done(true)

	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	breaker := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: 20 * time.Millisecond})

	recordFailures(t, breaker, 2)
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(30 * time.Millisecond)

	done, err := breaker.Allow()
	require.NoError(t, err)
	done(false)

	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenAllowsSingleProbe(t *testing.T) {
	breaker := newTestBreaker(t, Config{FailureThreshold: 2, ResetTimeout: 20 * time.Millisecond})

	recordFailures(t, breaker, 2)
	time.Sleep(30 * time.Millisecond)

	first, err := breaker.Allow()
	require.NoError(t, err)

	second, err := breaker.Allow()
	assert.ErrorIs(t, err, ErrOpen)
	assert.Nil(t, second)

	first(true)
}

func TestManagerReusesBreakerPerDependency(t *testing.T) {
	manager := NewManager(nil)

	first := manager.GetOrCreate("products", DefaultConfig())
	second := manager.GetOrCreate("products", DefaultConfig())
	other := manager.GetOrCreate("shipping", DefaultConfig())

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestManagerIsHealthy(t *testing.T) {
	manager := NewManager(nil)
	breaker := manager.GetOrCreate("products", Config{FailureThreshold: 1, ResetTimeout: time.Minute})

	assert.True(t, manager.IsHealthy())

	done, err := breaker.Allow()
	require.NoError(t, err)
	done(false)

	assert.False(t, manager.IsHealthy())
}

func TestManagerStateForUnknownDependency(t *testing.T) {
	manager := NewManager(nil)

	assert.Equal(t, StateUnknown, manager.State("nope"))
}
