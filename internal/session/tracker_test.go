package session

import (
	"testing"
	"time"

	"github.com/jsalvarredy/grafana-otel-demo/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouchCreatesSession(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	tracker := NewTracker(DefaultIdleTimeout, clk)

	tracker.Touch("user-1")

	s, ok := tracker.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, "sess-user-1", s.ID)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, 1, s.RequestCount)
	assert.Equal(t, clk.Now(), s.StartedAt)
}

func TestTouchBumpsExistingSession(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	tracker := NewTracker(DefaultIdleTimeout, clk)

	tracker.Touch("user-1")
	started := clk.Now()

	clk.Advance(5 * time.Minute)
	tracker.Touch("user-1")

	s, ok := tracker.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, 2, s.RequestCount)
	assert.Equal(t, started, s.StartedAt)
	assert.Equal(t, clk.Now(), s.LastActivity)
	assert.Equal(t, 1, tracker.ActiveCount())
}

func TestActiveCountEvictsIdleSessions(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	tracker := NewTracker(30*time.Minute, clk)

	tracker.Touch("idle-user")

	clk.Advance(20 * time.Minute)
	tracker.Touch("fresh-user")
	require.Equal(t, 2, tracker.ActiveCount())

	clk.Advance(15 * time.Minute)

	assert.Equal(t, 1, tracker.ActiveCount())

	_, ok := tracker.Get("idle-user")
	assert.False(t, ok)

	_, ok = tracker.Get("fresh-user")
	assert.True(t, ok)
}

func TestActivityResetsIdleClock(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	tracker := NewTracker(30*time.Minute, clk)

	tracker.Touch("user-1")

	for i := 0; i < 3; i++ {
		clk.Advance(25 * time.Minute)
		tracker.Touch("user-1")
	}

	assert.Equal(t, 1, tracker.ActiveCount())
}

func TestSessionExactlyAtTimeoutSurvives(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	tracker := NewTracker(30*time.Minute, clk)

	tracker.Touch("user-1")
	clk.Advance(30 * time.Minute)

	assert.Equal(t, 1, tracker.ActiveCount())
}
