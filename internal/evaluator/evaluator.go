// Package evaluator holds the hazard and blink-period rules applied to the
// vehicle state each tick.
package evaluator

import (
	"time"

	"github.com/tiltpilot/navsim/pkg/core"
)

// Bounds is the allowed horizontal range on both board axes.
type Bounds struct {
	Min, Max float64
}

// DefaultBounds covers the full board span.
var DefaultBounds = Bounds{Min: 0, Max: 2000}

// HazardReason names the first rule a state violated.
type HazardReason string

const (
	HazardNone     HazardReason = "none"
	OutOfBoundsX   HazardReason = "out_of_bounds_x"
	OutOfBoundsY   HazardReason = "out_of_bounds_y"
	ReversedMotion HazardReason = "reversed"
)

// Hazard reports why state is hazardous, or HazardNone. Altitude is not
// checked.
func Hazard(state core.VehicleState, b Bounds) HazardReason {
	switch {
	case state.Position.X < b.Min || state.Position.X > b.Max:
		return OutOfBoundsX
	case state.Position.Y < b.Min || state.Position.Y > b.Max:
		return OutOfBoundsY
	case state.Velocity < 0:
		return ReversedMotion
	}
	return HazardNone
}

// EvaluateHazard reports whether state is out of bounds or moving backwards.
func EvaluateHazard(state core.VehicleState, b Bounds) bool {
	return Hazard(state, b) != HazardNone
}

// BlinkPeriod scales base by the proximity ratio, clamped to floor.
func BlinkPeriod(base, floor time.Duration, ratio float64) time.Duration {
	return max(time.Duration(float64(base)*ratio), floor)
}
