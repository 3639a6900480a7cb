package worker

import (
	"log/slog"

	"github.com/tiltpilot/navsim/internal/model"
	"github.com/tiltpilot/navsim/internal/storage"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger *slog.Logger
}

// Manager routes dispatcher events into a storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// QueueLengthProvider is an optional interface that backends can implement
// to expose their pending write queues for monitoring.
type QueueLengthProvider interface {
	QueueLengths() model.WriteQueueLengths
}

// QueueLengths returns the backend's pending writes, or zeros if the
// backend doesn't queue.
func (m *Manager) QueueLengths() model.WriteQueueLengths {
	if p, ok := m.backend.(QueueLengthProvider); ok {
		return p.QueueLengths()
	}
	return model.WriteQueueLengths{}
}

// ExportedFilePath returns the backend's export file, if it writes one.
func (m *Manager) ExportedFilePath() string {
	if e, ok := m.backend.(storage.Exportable); ok {
		return e.ExportedFilePath()
	}
	return ""
}
