package v1

import (
	"cmp"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/tiltpilot/navsim/internal/geo"
	"github.com/tiltpilot/navsim/pkg/core"
)

// RunData contains all the data needed to build an export
type RunData struct {
	Run            *core.Run
	Summary        *core.RunSummary
	Status         []core.StatusLine
	WaypointEvents []core.WaypointEvent
	HazardEvents   []core.HazardEvent
}

// Build creates an Export from the run data
func Build(data *RunData) Export {
	export := Export{
		Version:   FormatVersion,
		Samples:   make([]Sample, 0, len(data.Status)),
		Waypoints: make([]Waypoint, 0),
		Events:    make([][]any, 0),
	}

	if data.Run != nil {
		export.RunUUID = data.Run.RunUUID
		export.Name = data.Run.Name
		export.SensorType = data.Run.SensorType
		export.StartTime = data.Run.StartTime
		export.TotalWaypoints = data.Run.TotalWaypoints
		export.Start = data.Run.StartState
	}
	if data.Summary != nil {
		export.EndTime = data.Summary.EndTime
		export.Outcome = data.Summary.Outcome
		export.Ticks = data.Summary.Ticks
		export.HitsCount = data.Summary.HitsCount
		export.Final = data.Summary.Final
		export.Remaining = data.Summary.Remaining
	}

	track := make([]core.Vector3, 0, len(data.Status)+1)
	if data.Run != nil {
		track = append(track, data.Run.StartState.Position)
	}
	for _, s := range data.Status {
		track = append(track, s.Position)
		export.Samples = append(export.Samples, Sample{
			Tick:     s.Tick,
			Elapsed:  s.Time.Sub(export.StartTime).Seconds(),
			Heading:  s.HeadingDeg,
			X:        s.Position.X,
			Y:        s.Position.Y,
			Z:        s.Position.Z,
			Velocity: s.Velocity,
			Nearest:  int(s.NearestID),
			Hazard:   s.Hazard,
		})
	}
	export.Track = geo.TrackWKT(track)

	// Waypoints keyed by ID, ordered by ID.
	byID := make(map[core.WaypointID]*Waypoint)
	for _, e := range data.WaypointEvents {
		wp, ok := byID[e.Waypoint.ID]
		if !ok {
			wp = &Waypoint{
				ID:        int(e.Waypoint.ID),
				Position:  e.Waypoint.Position,
				HitRadius: e.Waypoint.HitRadius,
			}
			byID[e.Waypoint.ID] = wp
		}
		switch e.Kind {
		case core.WaypointSpawned:
			wp.SpawnTick = e.Tick
		case core.WaypointHit:
			tick := e.Tick
			wp.HitTick = &tick
		}
		// Format: [tick, kind, waypointId, hitsCount]
		export.Events = append(export.Events, []any{e.Tick, string(e.Kind), int(e.Waypoint.ID), e.HitsCount})
	}
	for _, wp := range byID {
		export.Waypoints = append(export.Waypoints, *wp)
	}
	slices.SortFunc(export.Waypoints, func(a, b Waypoint) int { return cmp.Compare(a.ID, b.ID) })

	// Format: [tick, "hazard"|"clear", reason]
	for _, h := range data.HazardEvents {
		kind := "clear"
		if h.Active {
			kind = "hazard"
		}
		export.Events = append(export.Events, []any{h.Tick, kind, h.Reason})
	}
	slices.SortStableFunc(export.Events, func(a, b []any) int {
		return cmp.Compare(a[0].(uint), b[0].(uint))
	})

	return export
}

// FileName returns the export file name for a run.
func FileName(run *core.Run, compressed bool) string {
	name := "run"
	if run != nil && run.Name != "" {
		name = strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(run.Name)
	}
	stamp := "unknown"
	if run != nil {
		stamp = run.StartTime.Format("20060102_150405")
	}
	if compressed {
		return fmt.Sprintf("%s_%s.json.gz", name, stamp)
	}
	return fmt.Sprintf("%s_%s.json", name, stamp)
}

// Load reads an export written by the memory backend. Gzip is detected from
// the file suffix.
func Load(path string) (Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return Export{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return Export{}, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return Export{}, fmt.Errorf("decode export: %w", err)
	}
	return export, nil
}

// TrackPositions returns the decoded flight track, falling back to the
// samples when the WKT track is absent.
func (e Export) TrackPositions() []core.Vector3 {
	if e.Track != "" {
		if track, err := geo.ParseTrackWKT(e.Track); err == nil {
			return track
		}
	}
	out := make([]core.Vector3, len(e.Samples))
	for i, s := range e.Samples {
		out[i] = core.Vector3{X: s.X, Y: s.Y, Z: s.Z}
	}
	return out
}
