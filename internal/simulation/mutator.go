package simulation

import (
	"math/rand/v2"
	"sync"
	"time"

	"ecopunto-backend/internal/models"
)

// Mutator decides how a container's fill level moves on a tick.
type Mutator interface {
	// Decide returns the delta to apply and whether to apply one at all.
	Decide(c models.Container) (delta int, changed bool)
}

// DecideChange is the simulation's decision function: with the given
// probability it picks a delta uniformly from [minDelta, maxDelta].
// The result depends only on r's state.
func DecideChange(r *rand.Rand, probability float64, minDelta, maxDelta int) (int, bool) {
	if r.Float64() >= probability {
		return 0, false
	}
	return minDelta + r.IntN(maxDelta-minDelta+1), true
}

// RandomMutator applies DecideChange with a seeded PCG source.
// It is safe for concurrent use by several subscribers.
type RandomMutator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
	minDelta    int
	maxDelta    int
}

// NewRandomMutator builds a mutator; a zero seed picks a time-based one.
func NewRandomMutator(seed uint64, probability float64, minDelta, maxDelta int) *RandomMutator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomMutator{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		probability: probability,
		minDelta:    minDelta,
		maxDelta:    maxDelta,
	}
}

func (m *RandomMutator) Decide(models.Container) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DecideChange(m.rng, m.probability, m.minDelta, m.maxDelta)
}

// MutatorFunc adapts a function to Mutator.
type MutatorFunc func(c models.Container) (int, bool)

func (f MutatorFunc) Decide(c models.Container) (int, bool) { return f(c) }
