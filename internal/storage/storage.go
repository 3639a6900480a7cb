// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/tiltpilot/navsim/pkg/core"
)

// ErrUnknownBackend is returned for an unrecognised storage.type.
var ErrUnknownBackend = errors.New("unknown storage backend")

// ErrNoActiveRun is returned when a record arrives outside StartRun/EndRun.
var ErrNoActiveRun = errors.New("no active run")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run) error
	EndRun(summary *core.RunSummary) error

	// Telemetry recording
	RecordStatus(s *core.StatusLine) error
	RecordWaypointEvent(e *core.WaypointEvent) error
	RecordHazardEvent(e *core.HazardEvent) error
}

// Exportable is an optional interface for backends that write a run export
// file when the run ends.
type Exportable interface {
	ExportedFilePath() string
}

// Names of the built-in backends.
const (
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeWebSocket = "websocket"
	TypeInflux    = "influx"
)
