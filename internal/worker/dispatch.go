package worker

import (
	"fmt"

	"github.com/tiltpilot/navsim/internal/dispatcher"
	"github.com/tiltpilot/navsim/internal/telemetry"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Queue sizes for the buffered handlers.
const (
	StatusBufferSize   = 10000
	WaypointBufferSize = 1000
	HazardBufferSize   = 1000
)

// RegisterHandlers registers all telemetry handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Run lifecycle - sync (records need the run to exist, summary needs every record)
	d.Register(telemetry.CmdRunStart, m.handleRunStart, dispatcher.Logged())
	d.Register(telemetry.CmdRunEnd, m.handleRunEnd, dispatcher.Logged())

	// High-volume status lines - buffered, dropped when full
	d.Register(telemetry.CmdStatus, m.handleStatus, dispatcher.Buffered(StatusBufferSize))

	// Events - buffered, never dropped
	d.Register(telemetry.CmdWaypointSpawn, m.handleWaypoint, dispatcher.Buffered(WaypointBufferSize), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(telemetry.CmdWaypointHit, m.handleWaypoint, dispatcher.Buffered(WaypointBufferSize), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(telemetry.CmdHazard, m.handleHazard, dispatcher.Buffered(HazardBufferSize), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleRunStart(e dispatcher.Event) (any, error) {
	run, ok := e.Payload.(*core.Run)
	if !ok {
		return nil, fmt.Errorf("run start: unexpected payload %T", e.Payload)
	}
	if err := m.backend.StartRun(run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	m.deps.Logger.Info("Run recording started", "run", run.RunUUID, "name", run.Name)
	return nil, nil
}

func (m *Manager) handleRunEnd(e dispatcher.Event) (any, error) {
	summary, ok := e.Payload.(*core.RunSummary)
	if !ok {
		return nil, fmt.Errorf("run end: unexpected payload %T", e.Payload)
	}
	if err := m.backend.EndRun(summary); err != nil {
		return nil, fmt.Errorf("failed to end run: %w", err)
	}
	if path := m.ExportedFilePath(); path != "" {
		m.deps.Logger.Info("Run exported", "run", summary.RunUUID, "path", path)
	}
	return nil, nil
}

func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	s, ok := e.Payload.(*core.StatusLine)
	if !ok {
		return nil, fmt.Errorf("status: unexpected payload %T", e.Payload)
	}
	if err := m.backend.RecordStatus(s); err != nil {
		return nil, fmt.Errorf("failed to record status: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleWaypoint(e dispatcher.Event) (any, error) {
	w, ok := e.Payload.(*core.WaypointEvent)
	if !ok {
		return nil, fmt.Errorf("waypoint: unexpected payload %T", e.Payload)
	}
	if err := m.backend.RecordWaypointEvent(w); err != nil {
		return nil, fmt.Errorf("failed to record waypoint event: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleHazard(e dispatcher.Event) (any, error) {
	h, ok := e.Payload.(*core.HazardEvent)
	if !ok {
		return nil, fmt.Errorf("hazard: unexpected payload %T", e.Payload)
	}
	if err := m.backend.RecordHazardEvent(h); err != nil {
		return nil, fmt.Errorf("failed to record hazard event: %w", err)
	}
	return nil, nil
}
