// pkg/core/telemetry.go
package core

import "time"

// StatusLine is emitted by the control loop once per tick.
type StatusLine struct {
	RunUUID    string     `json:"run"`
	Tick       uint       `json:"tick"`
	Time       time.Time  `json:"time"`
	HeadingDeg float64    `json:"heading"`
	Position   Vector3    `json:"position"`
	Velocity   float64    `json:"velocity"`
	NearestID  WaypointID `json:"nearestId"`
	Nearest    Vector3    `json:"nearest"`
	Remaining  Countdown  `json:"remaining"`
	Hazard     bool       `json:"hazard"`
}

// WaypointEventKind distinguishes waypoint lifecycle events.
type WaypointEventKind string

const (
	WaypointSpawned WaypointEventKind = "spawn"
	WaypointHit     WaypointEventKind = "hit"
)

// WaypointEvent records a waypoint being spawned or hit.
type WaypointEvent struct {
	RunUUID   string            `json:"run"`
	Tick      uint              `json:"tick"`
	Time      time.Time         `json:"time"`
	Kind      WaypointEventKind `json:"kind"`
	Waypoint  Waypoint          `json:"waypoint"`
	HitsCount int               `json:"hits"`
}

// HazardEvent records a transition into or out of a hazard condition.
type HazardEvent struct {
	RunUUID  string    `json:"run"`
	Tick     uint      `json:"tick"`
	Time     time.Time `json:"time"`
	Active   bool      `json:"active"`
	Reason   string    `json:"reason"`
	Position Vector3   `json:"position"`
	Velocity float64   `json:"velocity"`
}
