package order

import (
	"math/rand/v2"
	"sync"
)

// Decider answers probabilistic yes/no questions. Injected into the workflow
// so tests can force either branch deterministically.
type Decider interface {
	// Decide returns true with the given probability (0 never, 1 always).
	Decide(probability float64) bool
}

type rngDecider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededDecider returns a decider whose outcomes are reproducible for a
// given seed.
func NewSeededDecider(seed uint64) Decider {
	return &rngDecider{rng: rand.New(rand.NewPCG(seed, 0))}
}

// NewDecider returns a randomly seeded decider for production use.
func NewDecider() Decider {
	return &rngDecider{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (d *rngDecider) Decide(probability float64) bool {
	if probability <= 0 {
		return false
	}

	if probability >= 1 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.rng.Float64() < probability
}

// FixedDecider always answers the same. For tests.
type FixedDecider bool

func (d FixedDecider) Decide(float64) bool { return bool(d) }
