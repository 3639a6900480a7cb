// Package gormstorage implements storage.Backend on GORM with internal
// write queues drained by a background writer goroutine. The sqlite and
// postgres backends embed it and only differ in how the *gorm.DB is made.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tiltpilot/navsim/internal/database"
	"github.com/tiltpilot/navsim/internal/model"
	"github.com/tiltpilot/navsim/internal/model/convert"
	"github.com/tiltpilot/navsim/internal/queue"
	"github.com/tiltpilot/navsim/internal/storage"
	"github.com/tiltpilot/navsim/pkg/core"
)

// DefaultFlushInterval is how often the writer drains the queues.
const DefaultFlushInterval = 2 * time.Second

// DefaultBatchSize caps the rows written per table per flush.
const DefaultBatchSize = 5000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        zerolog.Logger
	FlushInterval time.Duration
	BatchSize     int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Statuses  *queue.Queue[model.StatusRecord]
	Waypoints *queue.Queue[model.WaypointRecord]
	Hazards   *queue.Queue[model.HazardRecord]
}

func newQueues() *queues {
	return &queues{
		Statuses:  queue.New[model.StatusRecord](),
		Waypoints: queue.New[model.WaypointRecord](),
		Hazards:   queue.New[model.HazardRecord](),
	}
}

func (q *queues) lengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		Statuses:  uint32(q.Statuses.Len()),
		Waypoints: uint32(q.Waypoints.Len()),
		Hazards:   uint32(q.Hazards.Len()),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues
	runID  atomic.Uint64

	// flushMu serialises the writer goroutine with EndRun's final flush.
	flushMu sync.Mutex

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}

	if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	return nil
}

// StartRun inserts the run row synchronously so its ID can stamp every queued record.
func (b *Backend) StartRun(run *core.Run) error {
	gormRun := convert.CoreToRun(*run)
	gormRun.ID = 0
	if err := b.deps.DB.Create(&gormRun).Error; err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.ID = gormRun.ID
	b.runID.Store(uint64(gormRun.ID))
	b.deps.Logger.Info().Str("run", run.RunUUID).Uint("id", gormRun.ID).Msg("Run started")
	return nil
}

// EndRun flushes pending records and writes the summary onto the run row.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	runID := uint(b.runID.Load())
	if runID == 0 {
		return storage.ErrNoActiveRun
	}

	b.Flush()

	var gormRun model.Run
	if err := b.deps.DB.First(&gormRun, runID).Error; err != nil {
		return fmt.Errorf("failed to load run %d: %w", runID, err)
	}
	convert.ApplySummary(&gormRun, *summary)
	if err := b.deps.DB.Save(&gormRun).Error; err != nil {
		return fmt.Errorf("failed to update run %d: %w", runID, err)
	}

	b.runID.Store(0)
	b.deps.Logger.Info().
		Str("run", summary.RunUUID).
		Str("outcome", string(summary.Outcome)).
		Int("hits", summary.HitsCount).
		Msg("Run ended")
	return nil
}

// RecordStatus converts and queues a status line.
func (b *Backend) RecordStatus(s *core.StatusLine) error {
	runID := uint(b.runID.Load())
	if runID == 0 {
		return storage.ErrNoActiveRun
	}
	b.queues.Statuses.Push(convert.CoreToStatusRecord(*s, runID))
	return nil
}

// RecordWaypointEvent converts and queues a waypoint spawn or hit.
func (b *Backend) RecordWaypointEvent(e *core.WaypointEvent) error {
	runID := uint(b.runID.Load())
	if runID == 0 {
		return storage.ErrNoActiveRun
	}
	b.queues.Waypoints.Push(convert.CoreToWaypointRecord(*e, runID))
	return nil
}

// RecordHazardEvent converts and queues a hazard transition.
func (b *Backend) RecordHazardEvent(e *core.HazardEvent) error {
	runID := uint(b.runID.Load())
	if runID == 0 {
		return storage.ErrNoActiveRun
	}
	b.queues.Hazards.Push(convert.CoreToHazardRecord(*e, runID))
	return nil
}

// QueueLengths reports how many records are waiting for the writer.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return b.queues.lengths()
}

// Flush drains every queue into the database now.
func (b *Backend) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	pending := b.queues.lengths()
	if pending.Statuses+pending.Waypoints+pending.Hazards == 0 {
		return
	}

	start := time.Now()
	for !b.queues.Statuses.Empty() {
		if !writeQueue(b.deps.DB, b.queues.Statuses, b.deps.BatchSize, "status records", b.deps.Logger) {
			break
		}
	}
	writeQueue(b.deps.DB, b.queues.Waypoints, 0, "waypoint records", b.deps.Logger)
	writeQueue(b.deps.DB, b.queues.Hazards, 0, "hazard records", b.deps.Logger)

	perf := model.WriterPerformance{
		Time:                time.Now(),
		RunID:               uint(b.runID.Load()),
		WriteQueueLengths:   pending,
		LastWriteDurationMs: float32(time.Since(start).Microseconds()) / 1000,
	}
	if err := b.deps.DB.Create(&perf).Error; err != nil {
		b.deps.Logger.Warn().Err(err).Msg("Failed to record writer performance")
	}
}

// writeQueue writes up to limit items from a queue to the database in a
// transaction. Failed items go back on the queue. Returns false on failure.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], limit int, name string, log zerolog.Logger) bool {
	if q.Empty() {
		return true
	}

	items := q.Take(limit)
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("table", name).Int("count", len(items)).Msg("Error creating records")
		tx.Rollback()
		q.Push(items...)
		return false
	}
	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Str("table", name).Msg("Error committing records")
		q.Push(items...)
		return false
	}

	log.Debug().Str("table", name).Int("count", len(items)).Msg("Wrote records")
	return true
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
