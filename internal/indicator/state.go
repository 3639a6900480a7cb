// Package indicator drives the proximity blink and mission countdown
// triggers that run alongside the control loop.
package indicator

import (
	"sync"
	"time"

	"github.com/tiltpilot/navsim/internal/evaluator"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Channel identifies an indicator output.
type Channel int

const (
	// Proximity blinks faster as the vehicle closes on the nearest waypoint.
	Proximity Channel = iota
	// Success lights when a waypoint is hit or the run is complete.
	Success
	// Alarm lights while the vehicle is in a hazard.
	Alarm
)

func (c Channel) String() string {
	switch c {
	case Proximity:
		return "proximity"
	case Success:
		return "success"
	case Alarm:
		return "alarm"
	}
	return "unknown"
}

// Output sets a physical or virtual indicator.
type Output interface {
	SetIndicator(ch Channel, on bool)
}

// State is the state shared by the control loop and both triggers.
// Fields are guarded by mu, which is never held across an Output call.
// Proximity writes are serialised by outMu and numbered under mu, so a
// toggle computed before a disable can never land after it.
type State struct {
	mu          sync.Mutex
	out         Output
	ratio       float64
	fastEnabled bool
	blinkOn     bool
	remaining   time.Duration
	seq         uint64

	outMu   sync.Mutex
	written uint64
}

// NewState returns a State with the countdown set to budget.
func NewState(out Output, budget time.Duration) *State {
	return &State{out: out, remaining: max(budget, 0)}
}

// EnableFast arms the fast trigger with the given proximity ratio.
func (s *State) EnableFast(ratio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratio = ratio
	s.fastEnabled = true
}

// DisableFast stops the fast trigger and turns the proximity indicator off.
func (s *State) DisableFast() {
	s.mu.Lock()
	s.fastEnabled = false
	if !s.blinkOn {
		s.mu.Unlock()
		return
	}
	s.blinkOn = false
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.setProximity(seq, false)
}

// FireFast toggles the proximity indicator if the fast trigger is enabled
// and returns the delay before the next firing.
func (s *State) FireFast(base, floor time.Duration) time.Duration {
	s.mu.Lock()
	if !s.fastEnabled {
		s.mu.Unlock()
		return floor
	}
	s.blinkOn = !s.blinkOn
	s.seq++
	seq, on := s.seq, s.blinkOn
	next := evaluator.BlinkPeriod(base, floor, s.ratio)
	s.mu.Unlock()

	s.setProximity(seq, on)
	return next
}

// setProximity writes level seq unless a later level was already written.
func (s *State) setProximity(seq uint64, on bool) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if seq <= s.written {
		return
	}
	s.written = seq
	s.out.SetIndicator(Proximity, on)
}

// FireSlow subtracts unit from the countdown, clamped at zero, and returns
// the new value split for display.
func (s *State) FireSlow(unit time.Duration) core.Countdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = max(s.remaining-unit, 0)
	return splitCountdown(s.remaining)
}

// Countdown returns the remaining mission time.
func (s *State) Countdown() core.Countdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return splitCountdown(s.remaining)
}

func (s *State) FastEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fastEnabled
}

func (s *State) Ratio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio
}

// BlinkOn reports the current proximity indicator level.
func (s *State) BlinkOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blinkOn
}

func splitCountdown(d time.Duration) core.Countdown {
	secs := int(d / time.Second)
	return core.Countdown{Minutes: secs / 60, Seconds: secs % 60}
}
