// pkg/core/run.go
package core

import "time"

// RunOutcome describes how a run ended.
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeAborted   RunOutcome = "aborted"
	OutcomeFailed    RunOutcome = "failed"
)

// Run describes one simulator session from start-up to termination.
type Run struct {
	ID             uint           `json:"-"`
	RunUUID        string         `json:"run"`
	Name           string         `json:"name"`
	StartTime      time.Time      `json:"startTime"`
	TotalWaypoints int            `json:"totalWaypoints"`
	SensorType     string         `json:"sensor"`
	StartState     VehicleState   `json:"startState"`
	Config         map[string]any `json:"config,omitempty"`
}

// RunSummary is produced once when a run terminates.
type RunSummary struct {
	RunUUID          string       `json:"run"`
	EndTime          time.Time    `json:"endTime"`
	Ticks            uint         `json:"ticks"`
	HitsCount        int          `json:"hits"`
	WaypointsSpawned int          `json:"spawned"`
	Outcome          RunOutcome   `json:"outcome"`
	Final            VehicleState `json:"final"`
	Remaining        Countdown    `json:"remaining"`
}
