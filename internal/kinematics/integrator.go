// Package kinematics turns relative tilt samples into vehicle motion.
//
// The model is intentionally simple: pitch trades velocity for altitude,
// roll steers the heading, and the vehicle moves along the heading at half
// its velocity per integration step.
package kinematics

import (
	"math"

	"github.com/tiltpilot/navsim/pkg/core"
)

const (
	twoPi = 2 * math.Pi

	// DefaultPitchGain is the velocity change per unit of pitch ratio.
	DefaultPitchGain = 0.05

	// rollDeadZone rejects heading changes caused by sensor noise.
	rollDeadZone = 0.01
	rollDamping  = 5
)

// Integrator updates a VehicleState from tilt samples.
type Integrator struct {
	// Gravity is the calibration scalar the samples are normalised by.
	Gravity   float64
	PitchGain float64
}

// New returns an Integrator using the given gravity reference and the
// default pitch gain.
func New(gravity float64) *Integrator {
	return &Integrator{Gravity: gravity, PitchGain: DefaultPitchGain}
}

// Integrate applies one tilt sample to state over dt.
// Pitch (tilt.Y) is applied before roll (tilt.X).
func (in *Integrator) Integrate(state *core.VehicleState, tilt core.Vector3, dt float64) {
	in.applyPitch(state, tilt.Y, dt)
	in.applyRoll(state, tilt.X, dt)
}

func (in *Integrator) applyPitch(state *core.VehicleState, y, dt float64) {
	pitch := y / in.Gravity
	state.Velocity -= pitch * in.PitchGain
	state.Position.Z += state.Velocity * 0.5 * pitch * dt
}

func (in *Integrator) applyRoll(state *core.VehicleState, x, dt float64) {
	roll := x / in.Gravity
	state.Heading = NormalizeHeading(state.Heading - HeadingDelta(roll))

	// The heading is scaled by π a second time here. Recorded tracks depend
	// on this convention, keep it.
	angle := state.Heading * math.Pi
	state.Position.X += state.Velocity * 0.5 * math.Cos(angle) * dt
	state.Position.Y += state.Velocity * 0.5 * math.Sin(angle) * dt
}

// HeadingDelta returns the heading change for a roll ratio, or zero when the
// roll falls inside the dead zone.
func HeadingDelta(roll float64) float64 {
	angle := roll * math.Pi / 100
	if math.Abs(angle) <= rollDeadZone {
		return 0
	}
	return angle / rollDamping
}

// NormalizeHeading wraps h into [0, 2π).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, twoPi)
	if h < 0 {
		h += twoPi
	}
	// h+2π can round up to exactly 2π for tiny negative inputs.
	if h >= twoPi {
		h = 0
	}
	return h
}
