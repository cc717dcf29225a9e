// Package session maintains short-lived per-user session records with idle
// expiry, feeding the active-sessions gauge.
package session

import (
	"sync"
	"time"

	"github.com/jsalvarredy/grafana-otel-demo/internal/clock"
)

// DefaultIdleTimeout is how long a session may sit idle before eviction.
const DefaultIdleTimeout = 30 * time.Minute

// Session is one user's ephemeral activity record. There is exactly one
// active session per user, keyed deterministically by user id.
type Session struct {
	ID           string
	UserID       string
	StartedAt    time.Time
	LastActivity time.Time
	RequestCount int
}

// Tracker owns the session table. All methods are safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	clock       clock.Clock
}

// NewTracker creates a tracker with the given idle timeout. A nil clock
// defaults to the system clock.
func NewTracker(idleTimeout time.Duration, clk clock.Clock) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	if clk == nil {
		clk = clock.NewSystem()
	}

	return &Tracker{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		clock:       clk,
	}
}

// Touch records activity for userID: it bumps an existing session or creates
// a new one with a request count of 1.
func (t *Tracker) Touch(userID string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[userID]; ok {
		s.LastActivity = now
		s.RequestCount++

		return
	}

	t.sessions[userID] = &Session{
		ID:           "sess-" + userID,
		UserID:       userID,
		StartedAt:    now,
		LastActivity: now,
		RequestCount: 1,
	}
}

// ActiveCount evicts every session idle beyond the timeout and returns the
// remaining count. Eviction is lazy: there is no background sweeper, readers
// of the gauge pay the sweep cost.
func (t *Tracker) ActiveCount() int {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for userID, s := range t.sessions {
		if now.Sub(s.LastActivity) > t.idleTimeout {
			delete(t.sessions, userID)
		}
	}

	return len(t.sessions)
}

// Get returns a copy of the session for userID, if present. The sweep is not
// triggered here; staleness is only resolved by ActiveCount.
func (t *Tracker) Get(userID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[userID]
	if !ok {
		return Session{}, false
	}

	return *s, true
}
