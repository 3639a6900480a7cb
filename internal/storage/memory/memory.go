// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/storage"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Backend stores run telemetry in memory and exports it to JSON when the
// run ends.
type Backend struct {
	cfg     config.MemoryConfig
	run     *core.Run
	summary *core.RunSummary

	status         []core.StatusLine
	waypointEvents []core.WaypointEvent
	hazardEvents   []core.HazardEvent

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Exportable = (*Backend)(nil)
)

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run and discards anything recorded before.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	run.ID = b.idCounter

	b.run = run
	b.summary = nil
	b.status = nil
	b.waypointEvents = nil
	b.hazardEvents = nil
	b.lastExportPath = ""

	return nil
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun(summary *core.RunSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return storage.ErrNoActiveRun
	}
	b.summary = summary
	return b.exportJSON()
}

// RecordStatus appends a status line.
func (b *Backend) RecordStatus(s *core.StatusLine) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return storage.ErrNoActiveRun
	}
	b.status = append(b.status, *s)
	return nil
}

// RecordWaypointEvent appends a waypoint spawn or hit.
func (b *Backend) RecordWaypointEvent(e *core.WaypointEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return storage.ErrNoActiveRun
	}
	b.waypointEvents = append(b.waypointEvents, *e)
	return nil
}

// RecordHazardEvent appends a hazard transition.
func (b *Backend) RecordHazardEvent(e *core.HazardEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return storage.ErrNoActiveRun
	}
	b.hazardEvents = append(b.hazardEvents, *e)
	return nil
}

// StatusCount returns the number of status lines recorded for the run.
func (b *Backend) StatusCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.status)
}

// ExportedFilePath returns the path of the last export, or "" if none.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
