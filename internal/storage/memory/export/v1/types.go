// Package v1 contains the v1 export format for a recorded navsim run.
package v1

import (
	"time"

	"github.com/tiltpilot/navsim/pkg/core"
)

// FormatVersion is written into every export.
const FormatVersion = "1"

// Export is the root JSON structure for v1 format
type Export struct {
	Version        string            `json:"version"`
	RunUUID        string            `json:"run"`
	Name           string            `json:"name"`
	SensorType     string            `json:"sensor"`
	StartTime      time.Time         `json:"startTime"`
	EndTime        time.Time         `json:"endTime"`
	TotalWaypoints int               `json:"totalWaypoints"`
	Outcome        core.RunOutcome   `json:"outcome"`
	Ticks          uint              `json:"ticks"`
	HitsCount      int               `json:"hits"`
	Start          core.VehicleState `json:"start"`
	Final          core.VehicleState `json:"final"`
	Remaining      core.Countdown    `json:"remaining"`
	Track          string            `json:"track"`
	Samples        []Sample          `json:"samples"`
	Waypoints      []Waypoint        `json:"waypoints"`
	Events         [][]any           `json:"events"`
}

// Sample is one status line, flattened.
type Sample struct {
	Tick     uint    `json:"tick"`
	Elapsed  float64 `json:"t"`
	Heading  float64 `json:"heading"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Velocity float64 `json:"velocity"`
	Nearest  int     `json:"nearest"`
	Hazard   bool    `json:"hazard,omitempty"`
}

// Waypoint is a waypoint with the ticks it was spawned and hit on.
type Waypoint struct {
	ID        int          `json:"id"`
	Position  core.Vector3 `json:"position"`
	HitRadius float64      `json:"hitRadius"`
	SpawnTick uint         `json:"spawnTick"`
	HitTick   *uint        `json:"hitTick,omitempty"`
}
