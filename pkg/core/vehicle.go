// pkg/core/vehicle.go
package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vector3 is a position or displacement in board units.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts v to a gonum r3 vector.
func (v Vector3) Vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// Vector3FromVec converts a gonum r3 vector back to a Vector3.
func Vector3FromVec(v r3.Vec) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3FromVec(r3.Add(v.Vec(), o.Vec()))
}

// Distance returns the 3D Euclidean distance between v and o.
func (v Vector3) Distance(o Vector3) float64 {
	return r3.Norm(r3.Sub(v.Vec(), o.Vec()))
}

// IsFinite reports whether every component is a finite number.
func (v Vector3) IsFinite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// VehicleState is the integrated state of the simulated vehicle.
// Heading is in radians and kept in [0, 2π).
type VehicleState struct {
	Position Vector3 `json:"position"`
	Heading  float64 `json:"heading"`
	Velocity float64 `json:"velocity"`
}

// HeadingDegrees returns the heading converted to degrees.
func (s VehicleState) HeadingDegrees() float64 {
	return s.Heading * 180 / math.Pi
}
