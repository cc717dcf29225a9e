// Package circuitbreaker guards downstream dependencies behind per-dependency
// circuit breakers.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration for one dependency.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker open.
	FailureThreshold uint32
	// ResetTimeout is how long the breaker stays open before allowing a
	// single probing attempt (half-open).
	ResetTimeout time.Duration
}

// DefaultConfig provides the standard dependency protection settings.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker tracks the health of one downstream dependency and gates whether
// calls may proceed. State transitions are serialized inside gobreaker.
type Breaker struct {
	name    string
	breaker *gobreaker.TwoStepCircuitBreaker
}

// Allow reports whether a call may proceed. When it may, the returned done
// function must be called exactly once with the attempt outcome; skipping it
// desynchronizes the breaker from reality. When the breaker is open, Allow
// returns ErrOpen and the call must fail fast without touching the network.
//
// While open, the first Allow after ResetTimeout transitions the breaker to
// half-open and lets a single trial through. A successful trial closes the
// breaker; a failed one re-opens it.
func (b *Breaker) Allow() (done func(success bool), err error) {
	done, err = b.breaker.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrOpen
		}

		return nil, err
	}

	return done, nil
}

// Name returns the dependency name this breaker protects.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	return convertState(b.breaker.State())
}

// Counts returns the current breaker statistics.
func (b *Breaker) Counts() Counts {
	counts := b.breaker.Counts()

	return Counts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// Manager manages circuit breakers for external dependencies.
type Manager struct {
	breakers map[string]*Breaker
	mu       sync.RWMutex
	logger   log.Logger
}

// NewManager creates a new circuit breaker manager.
func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Manager{
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetOrCreate returns the existing circuit breaker for dependencyName or
// creates a new one with the given config.
func (m *Manager) GetOrCreate(dependencyName string, config Config) *Breaker {
	m.mu.RLock()
	breaker, exists := m.breakers[dependencyName]
	m.mu.RUnlock()

	if exists {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if breaker, exists = m.breakers[dependencyName]; exists {
		return breaker
	}

	settings := gobreaker.Settings{
		Name: "dependency-" + dependencyName,
		// One probing attempt while half-open.
		MaxRequests: 1,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.handleStateChange(dependencyName, from, to)
		},
	}

	breaker = &Breaker{
		name:    dependencyName,
		breaker: gobreaker.NewTwoStepCircuitBreaker(settings),
	}
	m.breakers[dependencyName] = breaker

	m.logger.Infof("Created circuit breaker for dependency: %s", dependencyName)

	return breaker
}

// State returns the current state for a dependency's breaker.
func (m *Manager) State(dependencyName string) State {
	m.mu.RLock()
	breaker, exists := m.breakers[dependencyName]
	m.mu.RUnlock()

	if !exists {
		return StateUnknown
	}

	return breaker.State()
}

// IsHealthy reports whether every managed breaker is closed.
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, breaker := range m.breakers {
		if breaker.State() != StateClosed {
			return false
		}
	}

	return true
}

func (m *Manager) handleStateChange(dependencyName string, from gobreaker.State, to gobreaker.State) {
	m.logger.Warnf("Circuit breaker [%s] state changed: %s -> %s",
		dependencyName, from.String(), to.String())

	switch to {
	case gobreaker.StateOpen:
		m.logger.Errorf("Circuit breaker [%s] OPENED - dependency is unhealthy, requests will fast-fail", dependencyName)
	case gobreaker.StateHalfOpen:
		m.logger.Infof("Circuit breaker [%s] HALF-OPEN - testing dependency recovery", dependencyName)
	case gobreaker.StateClosed:
		m.logger.Infof("Circuit breaker [%s] CLOSED - dependency is healthy", dependencyName)
	}
}

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}
