// Package influxstorage writes run telemetry as InfluxDB points.
package influxstorage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/influx"
	"github.com/tiltpilot/navsim/internal/storage"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Measurement names.
const (
	MeasurementRun      = "run"
	MeasurementStatus   = "status"
	MeasurementWaypoint = "waypoint"
	MeasurementHazard   = "hazard"
)

// ConnectTimeout bounds the initial ping.
const ConnectTimeout = 5 * time.Second

// Backend implements storage.Backend on an influx.Manager.
type Backend struct {
	mgr    *influx.Manager
	bucket string

	mu  sync.Mutex
	run *core.Run
}

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Exportable = (*Backend)(nil)
)

// New creates a backend writing to cfg.Bucket. The backup file lives in
// cfg.BackupDir.
func New(cfg config.InfluxConfig, log zerolog.Logger) *Backend {
	backup := ""
	if cfg.BackupDir != "" {
		backup = filepath.Join(cfg.BackupDir, fmt.Sprintf("influx_backup_%s.lp.gz", time.Now().Format("20060102_150405")))
	}
	return &Backend{
		mgr:    influx.NewManager(cfg, log, backup),
		bucket: cfg.Bucket,
	}
}

// Init connects to the server or opens the backup file.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	return b.mgr.Connect(ctx)
}

// Close flushes pending points.
func (b *Backend) Close() error {
	return b.mgr.Close()
}

// ExportedFilePath returns the backup file when the server was unreachable.
func (b *Backend) ExportedFilePath() string {
	if b.mgr.IsValid {
		return ""
	}
	return b.mgr.BackupPath
}

func (b *Backend) active() (*core.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return nil, storage.ErrNoActiveRun
	}
	return b.run, nil
}

func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	b.run = run
	b.mu.Unlock()
	return b.mgr.WritePoint(b.bucket, RunStartPoint(run))
}

func (b *Backend) EndRun(summary *core.RunSummary) error {
	if _, err := b.active(); err != nil {
		return err
	}
	if err := b.mgr.WritePoint(b.bucket, RunEndPoint(summary)); err != nil {
		return err
	}
	b.mu.Lock()
	b.run = nil
	b.mu.Unlock()
	return b.mgr.Flush()
}

func (b *Backend) RecordStatus(s *core.StatusLine) error {
	if _, err := b.active(); err != nil {
		return err
	}
	return b.mgr.WritePoint(b.bucket, StatusPoint(s))
}

func (b *Backend) RecordWaypointEvent(e *core.WaypointEvent) error {
	if _, err := b.active(); err != nil {
		return err
	}
	return b.mgr.WritePoint(b.bucket, WaypointPoint(e))
}

func (b *Backend) RecordHazardEvent(e *core.HazardEvent) error {
	if _, err := b.active(); err != nil {
		return err
	}
	return b.mgr.WritePoint(b.bucket, HazardPoint(e))
}

// addPosition adds the xyz fields and puts tags and fields in key order.
func addPosition(p *influxdb2_write.Point, v core.Vector3) *influxdb2_write.Point {
	return p.AddField("x", v.X).AddField("y", v.Y).AddField("z", v.Z).SortTags().SortFields()
}

// RunStartPoint marks the start of a run.
func RunStartPoint(r *core.Run) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementRun).
		AddTag("run", r.RunUUID).
		AddTag("sensor", r.SensorType).
		AddTag("event", "start").
		AddField("name", r.Name).
		AddField("total_waypoints", r.TotalWaypoints).
		AddField("velocity", r.StartState.Velocity).
		SetTime(r.StartTime)
	return addPosition(p, r.StartState.Position)
}

// RunEndPoint marks the end of a run.
func RunEndPoint(s *core.RunSummary) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementRun).
		AddTag("run", s.RunUUID).
		AddTag("event", "end").
		AddTag("outcome", string(s.Outcome)).
		AddField("ticks", s.Ticks).
		AddField("hits", s.HitsCount).
		AddField("spawned", s.WaypointsSpawned).
		AddField("heading", s.Final.Heading).
		AddField("velocity", s.Final.Velocity).
		AddField("remaining_s", s.Remaining.Minutes*60+s.Remaining.Seconds).
		SetTime(s.EndTime)
	return addPosition(p, s.Final.Position)
}

// StatusPoint converts a status line.
func StatusPoint(s *core.StatusLine) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementStatus).
		AddTag("run", s.RunUUID).
		AddField("tick", s.Tick).
		AddField("heading", s.HeadingDeg).
		AddField("velocity", s.Velocity).
		AddField("nearest_id", int(s.NearestID)).
		AddField("remaining_s", s.Remaining.Minutes*60+s.Remaining.Seconds).
		AddField("hazard", s.Hazard).
		SetTime(s.Time)
	return addPosition(p, s.Position)
}

// WaypointPoint converts a waypoint spawn or hit.
func WaypointPoint(e *core.WaypointEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementWaypoint).
		AddTag("run", e.RunUUID).
		AddTag("kind", string(e.Kind)).
		AddField("tick", e.Tick).
		AddField("id", int(e.Waypoint.ID)).
		AddField("hits", e.HitsCount).
		SetTime(e.Time)
	return addPosition(p, e.Waypoint.Position)
}

// HazardPoint converts a hazard transition.
func HazardPoint(e *core.HazardEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementHazard).
		AddTag("run", e.RunUUID).
		AddTag("reason", e.Reason).
		AddField("tick", e.Tick).
		AddField("active", e.Active).
		AddField("velocity", e.Velocity).
		SetTime(e.Time)
	return addPosition(p, e.Position)
}
