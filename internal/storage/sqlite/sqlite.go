// Package sqlitestorage implements storage.Backend on an in-memory SQLite
// database that is periodically dumped to disk via VACUUM INTO. Writes go
// through the embedded GORM backend.
package sqlitestorage

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tiltpilot/navsim/internal/database"
	"github.com/tiltpilot/navsim/internal/storage"
	gormstorage "github.com/tiltpilot/navsim/internal/storage/gorm"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpDir      string
	// DSN overrides the shared in-memory database, mainly for tests.
	DSN string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	dumpPath string
	dumpMu   sync.Mutex

	stopChan  chan struct{}
	done      chan struct{}
	closeOnce   sync.Once
	initialized bool
}

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Exportable = (*Backend)(nil)
)

// New creates a new SQLite storage backend.
func New(cfg Config, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: log,
		}),
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpDir != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}

	b.initialized = true
	return nil
}

// Close stops the dump goroutine, writes a last dump and closes the embedded GORM backend.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		if !b.initialized {
			return
		}
		<-b.done
		if err = b.Backend.Close(); err != nil {
			return
		}
		err = b.Dump()
	})
	return err
}

// StartRun records the run and points the dump file at it.
func (b *Backend) StartRun(run *core.Run) error {
	if err := b.Backend.StartRun(run); err != nil {
		return err
	}
	if b.cfg.DumpDir != "" {
		b.mu.Lock()
		b.dumpPath = filepath.Join(b.cfg.DumpDir, DumpFileName(run))
		b.mu.Unlock()
	}
	return nil
}

// EndRun writes the summary then dumps immediately so the file is complete.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	if err := b.Backend.EndRun(summary); err != nil {
		return err
	}
	return b.Dump()
}

// ExportedFilePath returns the current dump file, empty before the first run.
func (b *Backend) ExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// Dump vacuums the in-memory database to the current dump file. It is a no-op
// when no run has started or no dump directory is configured.
func (b *Backend) Dump() error {
	path := b.ExportedFilePath()
	if path == "" {
		return nil
	}
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, path); err != nil {
		return err
	}
	b.log.Debug().Str("path", path).Dur("duration", time.Since(start)).Msg("Dumped to disk")
	return nil
}

// DumpFileName returns name_YYYYMMDD_HHMMSS.db for run.
func DumpFileName(run *core.Run) string {
	name := run.Name
	if name == "" {
		name = "navsim"
	}
	return fmt.Sprintf("%s_%s.db", name, run.StartTime.Format("20060102_150405"))
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Backend.Flush()
			if err := b.Dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}
