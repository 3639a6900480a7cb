// Package convert maps between core run types and the GORM models.
package convert

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/tiltpilot/navsim/internal/geo"
	"github.com/tiltpilot/navsim/internal/model"
	"github.com/tiltpilot/navsim/pkg/core"
)

// configToJSON converts the run config snapshot to datatypes.JSON for DB storage.
func configToJSON(cfg map[string]any) datatypes.JSON {
	if len(cfg) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

func countdownSeconds(c core.Countdown) int {
	return c.Minutes*60 + c.Seconds
}

// CoreToRun converts a core.Run to a GORM model.Run.
// core.Run.ID maps to the GORM primary key and is zero for a new run.
func CoreToRun(r core.Run) model.Run {
	return model.Run{
		ID:             r.ID,
		RunUUID:        r.RunUUID,
		Name:           r.Name,
		SensorType:     r.SensorType,
		StartTime:      r.StartTime,
		TotalWaypoints: r.TotalWaypoints,
		StartPosition:  geo.PointFromVector(r.StartState.Position),
		StartHeading:   r.StartState.Heading,
		StartVelocity:  r.StartState.Velocity,
		Config:         configToJSON(r.Config),
	}
}

// ApplySummary copies the end-of-run fields onto an existing run row.
func ApplySummary(dst *model.Run, s core.RunSummary) {
	end := s.EndTime
	dst.EndTime = &end
	dst.Outcome = string(s.Outcome)
	dst.Ticks = s.Ticks
	dst.HitsCount = s.HitsCount
	dst.WaypointsSpawned = s.WaypointsSpawned
	dst.FinalPosition = geo.PointFromVector(s.Final.Position)
	dst.FinalHeading = s.Final.Heading
	dst.FinalVelocity = s.Final.Velocity
	dst.RemainingSeconds = countdownSeconds(s.Remaining)
}

// CoreToStatusRecord converts a core.StatusLine to a GORM model.StatusRecord.
func CoreToStatusRecord(s core.StatusLine, runID uint) model.StatusRecord {
	return model.StatusRecord{
		Time:              s.Time,
		RunID:             runID,
		Tick:              s.Tick,
		Position:          geo.PointFromVector(s.Position),
		Altitude:          s.Position.Z,
		HeadingDeg:        s.HeadingDeg,
		Velocity:          s.Velocity,
		NearestWaypointID: int(s.NearestID),
		NearestPosition:   geo.PointFromVector(s.Nearest),
		RemainingSeconds:  countdownSeconds(s.Remaining),
		Hazard:            s.Hazard,
	}
}

// CoreToWaypointRecord converts a core.WaypointEvent to a GORM model.WaypointRecord.
func CoreToWaypointRecord(e core.WaypointEvent, runID uint) model.WaypointRecord {
	return model.WaypointRecord{
		Time:       e.Time,
		RunID:      runID,
		Tick:       e.Tick,
		Kind:       string(e.Kind),
		WaypointID: int(e.Waypoint.ID),
		Position:   geo.PointFromVector(e.Waypoint.Position),
		HitRadius:  e.Waypoint.HitRadius,
		NearRadius: e.Waypoint.NearRadius,
		HitsCount:  e.HitsCount,
	}
}

// CoreToHazardRecord converts a core.HazardEvent to a GORM model.HazardRecord.
func CoreToHazardRecord(e core.HazardEvent, runID uint) model.HazardRecord {
	return model.HazardRecord{
		Time:     e.Time,
		RunID:    runID,
		Tick:     e.Tick,
		Active:   e.Active,
		Reason:   e.Reason,
		Position: geo.PointFromVector(e.Position),
		Velocity: e.Velocity,
	}
}
