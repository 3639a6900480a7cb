package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/tiltpilot/navsim/internal/geo"
	"github.com/tiltpilot/navsim/internal/model"
	"github.com/tiltpilot/navsim/pkg/core"
)

func pointToVector(p geom.Point) core.Vector3 {
	v, _ := geo.VectorFromPoint(p)
	return v
}

func secondsToCountdown(total int) core.Countdown {
	if total < 0 {
		total = 0
	}
	return core.Countdown{Minutes: total / 60, Seconds: total % 60}
}

// RunToCore converts a GORM Run to a core.Run. The summary is nil while the
// run has no end time.
func RunToCore(r model.Run) (core.Run, *core.RunSummary) {
	var cfg map[string]any
	if len(r.Config) > 0 {
		_ = json.Unmarshal(r.Config, &cfg)
	}

	run := core.Run{
		ID:             r.ID,
		RunUUID:        r.RunUUID,
		Name:           r.Name,
		StartTime:      r.StartTime,
		TotalWaypoints: r.TotalWaypoints,
		SensorType:     r.SensorType,
		StartState: core.VehicleState{
			Position: pointToVector(r.StartPosition),
			Heading:  r.StartHeading,
			Velocity: r.StartVelocity,
		},
		Config: cfg,
	}
	if r.EndTime == nil {
		return run, nil
	}

	return run, &core.RunSummary{
		RunUUID:          r.RunUUID,
		EndTime:          *r.EndTime,
		Ticks:            r.Ticks,
		HitsCount:        r.HitsCount,
		WaypointsSpawned: r.WaypointsSpawned,
		Outcome:          core.RunOutcome(r.Outcome),
		Final: core.VehicleState{
			Position: pointToVector(r.FinalPosition),
			Heading:  r.FinalHeading,
			Velocity: r.FinalVelocity,
		},
		Remaining: secondsToCountdown(r.RemainingSeconds),
	}
}

// StatusRecordToCore converts a GORM StatusRecord to a core.StatusLine.
func StatusRecordToCore(s model.StatusRecord, runUUID string) core.StatusLine {
	return core.StatusLine{
		RunUUID:    runUUID,
		Tick:       s.Tick,
		Time:       s.Time,
		HeadingDeg: s.HeadingDeg,
		Position:   pointToVector(s.Position),
		Velocity:   s.Velocity,
		NearestID:  core.WaypointID(s.NearestWaypointID),
		Nearest:    pointToVector(s.NearestPosition),
		Remaining:  secondsToCountdown(s.RemainingSeconds),
		Hazard:     s.Hazard,
	}
}

// WaypointRecordToCore converts a GORM WaypointRecord to a core.WaypointEvent.
func WaypointRecordToCore(w model.WaypointRecord, runUUID string) core.WaypointEvent {
	kind := core.WaypointEventKind(w.Kind)
	return core.WaypointEvent{
		RunUUID: runUUID,
		Tick:    w.Tick,
		Time:    w.Time,
		Kind:    kind,
		Waypoint: core.Waypoint{
			ID:         core.WaypointID(w.WaypointID),
			Position:   pointToVector(w.Position),
			HitRadius:  w.HitRadius,
			NearRadius: w.NearRadius,
			IsHit:      kind == core.WaypointHit,
		},
		HitsCount: w.HitsCount,
	}
}
