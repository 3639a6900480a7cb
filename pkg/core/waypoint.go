// pkg/core/waypoint.go
package core

// WaypointID is the position of a waypoint in its registry's insertion order.
type WaypointID int

// Waypoint is a navigation target.
// NearRadius is always larger than HitRadius.
type Waypoint struct {
	ID         WaypointID `json:"id"`
	Position   Vector3    `json:"position"`
	HitRadius  float64    `json:"hitRadius"`
	NearRadius float64    `json:"nearRadius"`
	IsHit      bool       `json:"isHit"`
}

// Countdown is the remaining mission time as displayed to the pilot.
type Countdown struct {
	Minutes int `json:"m"`
	Seconds int `json:"s"`
}
