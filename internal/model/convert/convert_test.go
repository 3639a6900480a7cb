package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiltpilot/navsim/pkg/core"
)

func TestCoreToRun(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := core.Run{
		RunUUID:        "0b8f5c1e-1111-4c3a-9f00-000000000001",
		Name:           "bench",
		StartTime:      start,
		TotalWaypoints: 3,
		SensorType:     "synthetic",
		StartState: core.VehicleState{
			Position: core.Vector3{X: 50, Y: 50, Z: 2000},
			Velocity: 300,
		},
		Config: map[string]any{"hitRadius": 200.0},
	}

	m := CoreToRun(run)

	assert.Equal(t, run.RunUUID, m.RunUUID)
	assert.Equal(t, "synthetic", m.SensorType)
	assert.Equal(t, 3, m.TotalWaypoints)
	assert.Nil(t, m.EndTime)

	coord, ok := m.StartPosition.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 50.0, coord.XY.X)
	assert.Equal(t, 2000.0, coord.Z)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal(m.Config, &cfg))
	assert.Equal(t, 200.0, cfg["hitRadius"])
}

func TestCoreToRun_EmptyConfig(t *testing.T) {
	m := CoreToRun(core.Run{})
	assert.Equal(t, "{}", string(m.Config))
}

func TestRunRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	original := core.Run{
		ID:             7,
		RunUUID:        "run-7",
		StartTime:      start,
		TotalWaypoints: 2,
		StartState:     core.VehicleState{Position: core.Vector3{X: 1, Y: 2, Z: 3}, Velocity: 300},
	}
	summary := core.RunSummary{
		RunUUID:          "run-7",
		EndTime:          start.Add(90 * time.Second),
		Ticks:            9000,
		HitsCount:        2,
		WaypointsSpawned: 3,
		Outcome:          core.OutcomeCompleted,
		Final:            core.VehicleState{Position: core.Vector3{X: 900, Y: 800, Z: 1500}, Heading: 1.5, Velocity: 280},
		Remaining:        core.Countdown{Minutes: 0, Seconds: 30},
	}

	m := CoreToRun(original)
	ApplySummary(&m, summary)

	gotRun, gotSummary := RunToCore(m)
	assert.Equal(t, original.ID, gotRun.ID)
	assert.Equal(t, original.StartState, gotRun.StartState)
	require.NotNil(t, gotSummary)
	assert.Equal(t, summary, *gotSummary)
}

func TestRunToCore_OpenRunHasNoSummary(t *testing.T) {
	_, s := RunToCore(CoreToRun(core.Run{RunUUID: "open"}))
	assert.Nil(t, s)
}

func TestStatusRecordRoundTrip(t *testing.T) {
	line := core.StatusLine{
		RunUUID:    "run-1",
		Tick:       42,
		Time:       time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
		HeadingDeg: 12.5,
		Position:   core.Vector3{X: 100, Y: 200, Z: 1999},
		Velocity:   299.5,
		NearestID:  2,
		Nearest:    core.Vector3{X: 300, Y: 400, Z: 2000},
		Remaining:  core.Countdown{Minutes: 1, Seconds: 5},
		Hazard:     true,
	}

	rec := CoreToStatusRecord(line, 9)
	assert.Equal(t, uint(9), rec.RunID)
	assert.Equal(t, 1999.0, rec.Altitude)
	assert.Equal(t, 65, rec.RemainingSeconds)

	assert.Equal(t, line, StatusRecordToCore(rec, "run-1"))
}

func TestCoreToWaypointRecord(t *testing.T) {
	ev := core.WaypointEvent{
		Tick: 10,
		Kind: core.WaypointHit,
		Waypoint: core.Waypoint{
			ID:         3,
			Position:   core.Vector3{X: 10, Y: 20, Z: 30},
			HitRadius:  200,
			NearRadius: 400,
			IsHit:      true,
		},
		HitsCount: 1,
	}

	rec := CoreToWaypointRecord(ev, 4)
	assert.Equal(t, "hit", rec.Kind)
	assert.Equal(t, 3, rec.WaypointID)
	assert.Equal(t, uint(4), rec.RunID)
	assert.Equal(t, 400.0, rec.NearRadius)
	assert.Equal(t, 1, rec.HitsCount)

	back := WaypointRecordToCore(rec, "r1")
	assert.Equal(t, "r1", back.RunUUID)
	ev.RunUUID = "r1"
	assert.Equal(t, ev, back)
}

func TestWaypointRecordToCore_SpawnIsUnhit(t *testing.T) {
	ev := core.WaypointEvent{
		Kind:     core.WaypointSpawned,
		Waypoint: core.Waypoint{ID: 1, Position: core.Vector3{X: 1, Y: 2, Z: 3}, HitRadius: 200, NearRadius: 400},
	}
	back := WaypointRecordToCore(CoreToWaypointRecord(ev, 1), "")
	assert.False(t, back.Waypoint.IsHit)
	assert.Equal(t, ev.Waypoint, back.Waypoint)
}

func TestCoreToHazardRecord(t *testing.T) {
	ev := core.HazardEvent{Tick: 5, Active: true, Reason: "x", Position: core.Vector3{X: -1, Y: 5, Z: 2000}, Velocity: 300}

	rec := CoreToHazardRecord(ev, 1)
	assert.True(t, rec.Active)
	assert.Equal(t, "x", rec.Reason)
	coord, ok := rec.Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, -1.0, coord.XY.X)
}

func TestSecondsToCountdown_ClampsNegative(t *testing.T) {
	assert.Equal(t, core.Countdown{}, secondsToCountdown(-5))
	assert.Equal(t, core.Countdown{Minutes: 2, Seconds: 1}, secondsToCountdown(121))
}
