package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
)

// Synthetic generates a smooth, slowly banking tilt pattern for running the
// simulator without hardware. The output is deterministic for a seed.
type Synthetic struct {
	// Gravity is the resting Z reading in counts.
	Gravity int
	// RollAmplitude and PitchAmplitude are peak offsets in counts.
	RollAmplitude  float64
	PitchAmplitude float64
	// Period is the number of samples per full oscillation.
	Period int
	// Noise is the peak uniform noise in counts.
	Noise float64

	mu  sync.Mutex
	n   int
	rng *rand.Rand
}

// NewSynthetic returns a generator with stock amplitudes.
func NewSynthetic(seed uint64) *Synthetic {
	return &Synthetic{
		Gravity:        1000,
		RollAmplitude:  600,
		PitchAmplitude: 40,
		Period:         2000,
		Noise:          3,
		rng:            rand.New(rand.NewPCG(seed, seed+1)),
	}
}

// ReadRaw returns the next sample. The first sample is always level so
// calibration sees a clean reference.
func (s *Synthetic) ReadRaw(ctx context.Context) (RawSample, error) {
	if err := ctx.Err(); err != nil {
		return RawSample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.n
	s.n++
	if n == 0 {
		return RawSample{Z: s.Gravity}, nil
	}

	phase := 2 * math.Pi * float64(n) / float64(max(s.Period, 1))
	return RawSample{
		X: int(math.Round(s.RollAmplitude*math.Sin(phase) + s.noise())),
		Y: int(math.Round(s.PitchAmplitude*math.Sin(2*phase) + s.noise())),
		Z: s.Gravity + int(math.Round(s.noise())),
	}, nil
}

func (s *Synthetic) noise() float64 {
	if s.Noise == 0 || s.rng == nil {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * s.Noise
}

// Scripted replays a fixed sequence of samples, repeating the last one once
// exhausted.
type Scripted struct {
	mu      sync.Mutex
	samples []RawSample
	next    int
	err     error
}

func NewScripted(samples ...RawSample) *Scripted {
	return &Scripted{samples: samples}
}

// FailAfter makes every read after the script is exhausted return err.
func (s *Scripted) FailAfter(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

func (s *Scripted) ReadRaw(ctx context.Context) (RawSample, error) {
	if err := ctx.Err(); err != nil {
		return RawSample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return RawSample{}, s.err
	}
	if s.next >= len(s.samples) {
		if s.err != nil {
			return RawSample{}, s.err
		}
		return s.samples[len(s.samples)-1], nil
	}
	v := s.samples[s.next]
	s.next++
	return v, nil
}
