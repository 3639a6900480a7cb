package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/database"
	"github.com/tiltpilot/navsim/internal/storage"
	gormstorage "github.com/tiltpilot/navsim/internal/storage/gorm"
	"github.com/tiltpilot/navsim/internal/storage/memory"
	"github.com/tiltpilot/navsim/pkg/core"
)

var runStart = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// record plays a short run with one hit and one open waypoint into b.
func record(t *testing.T, b storage.Backend) {
	t.Helper()
	run := &core.Run{
		RunUUID:        "r1",
		Name:           "bench",
		StartTime:      runStart,
		TotalWaypoints: 2,
		StartState:     core.VehicleState{Position: core.Vector3{X: 50, Y: 50, Z: 2000}, Velocity: 300},
	}
	require.NoError(t, b.StartRun(run))

	first := core.Waypoint{ID: 0, Position: core.Vector3{X: 60, Y: 50, Z: 2000}, HitRadius: 200, NearRadius: 400}
	second := core.Waypoint{ID: 1, Position: core.Vector3{X: 900, Y: 700, Z: 2000}, HitRadius: 200, NearRadius: 400}

	require.NoError(t, b.RecordWaypointEvent(&core.WaypointEvent{RunUUID: "r1", Kind: core.WaypointSpawned, Waypoint: first}))
	for i := uint(1); i <= 5; i++ {
		require.NoError(t, b.RecordStatus(&core.StatusLine{
			RunUUID:  "r1",
			Tick:     i,
			Time:     runStart.Add(time.Duration(i) * 10 * time.Millisecond),
			Position: core.Vector3{X: 50 + 1.5*float64(i), Y: 50, Z: 2000},
			Velocity: 300,
		}))
	}
	first.IsHit = true
	require.NoError(t, b.RecordWaypointEvent(&core.WaypointEvent{RunUUID: "r1", Tick: 1, Kind: core.WaypointHit, Waypoint: first, HitsCount: 1}))
	require.NoError(t, b.RecordWaypointEvent(&core.WaypointEvent{RunUUID: "r1", Tick: 1, Kind: core.WaypointSpawned, Waypoint: second, HitsCount: 1}))

	require.NoError(t, b.EndRun(&core.RunSummary{
		RunUUID: "r1",
		EndTime: runStart.Add(time.Second),
		Ticks:   5,
		Outcome: core.OutcomeAborted,
	}))
}

func assertTrack(t *testing.T, track *Track) {
	t.Helper()
	assert.Equal(t, "bench", track.Name)
	assert.Equal(t, core.OutcomeAborted, track.Outcome)
	require.Len(t, track.Points, 6, "start position plus five samples")
	assert.InDelta(t, 7.5, track.Length(), 1e-9)
	require.Len(t, track.Waypoints, 2)
	assert.True(t, track.Waypoints[0].Hit)
	assert.False(t, track.Waypoints[1].Hit)
	assert.Equal(t, 900.0, track.Waypoints[1].Position.X)
}

func TestLoadExport(t *testing.T) {
	b := memory.New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true})
	require.NoError(t, b.Init())
	record(t, b)

	track, err := Load(b.ExportedFilePath(), "")
	require.NoError(t, err)
	assertTrack(t, track)
}

func TestLoadDatabase(t *testing.T) {
	db, err := database.OpenSQLite(database.NamedMemoryDSN(t.Name()))
	require.NoError(t, err)
	b := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: zerolog.Nop(), FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	record(t, b)
	require.NoError(t, b.Close())

	path := filepath.Join(t.TempDir(), "bench.db")
	require.NoError(t, database.DumpMemoryDBToDisk(db, path))

	track, err := Load(path, "r1")
	require.NoError(t, err)
	assertTrack(t, track)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, err)
}

func TestRenderTrack(t *testing.T) {
	track := &Track{
		Name:    "bench",
		Outcome: core.OutcomeCompleted,
		Points:  []core.Vector3{{X: 50, Y: 50}, {X: 100, Y: 80}, {X: 150, Y: 150}},
		Waypoints: []TrackWaypoint{
			{ID: 0, Position: core.Vector3{X: 150, Y: 150}, HitRadius: 200, Hit: true},
			{ID: 1, Position: core.Vector3{X: 1200, Y: 900}, HitRadius: 200},
		},
	}
	out := filepath.Join(t.TempDir(), "track.png")

	require.NoError(t, RenderTrack(track, out, DefaultOptions()))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRenderTrack_Empty(t *testing.T) {
	err := RenderTrack(&Track{}, filepath.Join(t.TempDir(), "x.png"), DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyTrack)
}

func TestWaypointsFromEvents(t *testing.T) {
	wp := core.Waypoint{ID: 2, Position: core.Vector3{X: 1}}
	got := waypointsFromEvents([]core.WaypointEvent{
		{Kind: core.WaypointSpawned, Waypoint: wp},
		{Kind: core.WaypointHit, Waypoint: wp},
	})
	require.Len(t, got, 1)
	assert.True(t, got[0].Hit)
	assert.Equal(t, 2, got[0].ID)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "r9", title(&Track{RunUUID: "r9"}))
	assert.Equal(t, "bench (failed)", title(&Track{Name: "bench", Outcome: core.OutcomeFailed}))
}
