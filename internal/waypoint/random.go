package waypoint

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandomSource supplies placement jitter.
type RandomSource interface {
	Uniform(low, high float64) float64
}

type pcgSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a PCG-backed source. A zero seed is replaced with
// the current time.
func NewRandomSource(seed uint64) RandomSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &pcgSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *pcgSource) Uniform(low, high float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return low + s.rng.Float64()*(high-low)
}

// FixedSource replays offsets in order and repeats the last one when
// exhausted. Useful for deterministic placement.
type FixedSource struct {
	mu     sync.Mutex
	Values []float64
	next   int
}

func (s *FixedSource) Uniform(low, high float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Values) == 0 {
		return low
	}
	v := s.Values[min(s.next, len(s.Values)-1)]
	s.next++
	return v
}
