// Package report renders recorded runs.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tiltpilot/navsim/internal/database"
	"github.com/tiltpilot/navsim/internal/geo"
	gormstorage "github.com/tiltpilot/navsim/internal/storage/gorm"
	v1 "github.com/tiltpilot/navsim/internal/storage/memory/export/v1"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Track is a run reduced to what the plot needs.
type Track struct {
	Name      string
	RunUUID   string
	Outcome   core.RunOutcome
	Points    []core.Vector3
	Waypoints []TrackWaypoint
}

// TrackWaypoint is a waypoint with its final hit state.
type TrackWaypoint struct {
	ID        int
	Position  core.Vector3
	HitRadius float64
	Hit       bool
}

// Length is the horizontal distance flown.
func (t *Track) Length() float64 {
	return geo.HorizontalLength(t.Points)
}

// Load reads a track from a memory backend export (.json, .json.gz) or a
// SQLite dump (.db). runUUID selects a run inside a dump; empty means the
// latest.
func Load(path, runUUID string) (*Track, error) {
	if strings.EqualFold(filepath.Ext(path), ".db") {
		return LoadDatabase(path, runUUID)
	}
	return LoadExport(path)
}

// LoadExport reads a memory backend export.
func LoadExport(path string) (*Track, error) {
	export, err := v1.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load export %s: %w", path, err)
	}

	t := &Track{
		Name:    export.Name,
		RunUUID: export.RunUUID,
		Outcome: export.Outcome,
		Points:  export.TrackPositions(),
	}
	for _, wp := range export.Waypoints {
		t.Waypoints = append(t.Waypoints, TrackWaypoint{
			ID:        wp.ID,
			Position:  wp.Position,
			HitRadius: wp.HitRadius,
			Hit:       wp.HitTick != nil,
		})
	}
	return t, nil
}

// LoadDatabase reads a run from a SQLite dump.
func LoadDatabase(path, runUUID string) (*Track, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	rec, err := gormstorage.LoadRun(db, runUUID)
	if err != nil {
		return nil, err
	}

	t := &Track{
		Name:    rec.Run.Name,
		RunUUID: rec.Run.RunUUID,
		Points:  make([]core.Vector3, 0, len(rec.Status)+1),
	}
	if rec.Summary != nil {
		t.Outcome = rec.Summary.Outcome
	}
	t.Points = append(t.Points, rec.Run.StartState.Position)
	for _, s := range rec.Status {
		t.Points = append(t.Points, s.Position)
	}
	t.Waypoints = waypointsFromEvents(rec.Waypoints)
	return t, nil
}

// waypointsFromEvents folds spawn and hit events into one entry per waypoint
// in id order.
func waypointsFromEvents(events []core.WaypointEvent) []TrackWaypoint {
	index := make(map[int]int)
	var out []TrackWaypoint
	for _, e := range events {
		id := int(e.Waypoint.ID)
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, TrackWaypoint{
				ID:        id,
				Position:  e.Waypoint.Position,
				HitRadius: e.Waypoint.HitRadius,
			})
		}
		if e.Kind == core.WaypointHit {
			out[i].Hit = true
		}
	}
	return out
}
