// internal/storage/memory/memory_test.go
package memory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/storage"
	v1 "github.com/tiltpilot/navsim/internal/storage/memory/export/v1"
	"github.com/tiltpilot/navsim/pkg/core"
)

func newRun() *core.Run {
	return &core.Run{
		RunUUID:        "abc",
		Name:           "Test Run",
		StartTime:      time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		TotalWaypoints: 2,
		StartState:     core.VehicleState{Position: core.Vector3{X: 50, Y: 50, Z: 2000}, Velocity: 300},
	}
}

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestStartRun_AssignsIDAndResets(t *testing.T) {
	b := New(config.MemoryConfig{})

	run := newRun()
	if err := b.StartRun(run); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if run.ID != 1 {
		t.Errorf("expected run ID 1, got %d", run.ID)
	}

	_ = b.RecordStatus(&core.StatusLine{Tick: 1})
	if b.StatusCount() != 1 {
		t.Fatalf("expected 1 status line, got %d", b.StatusCount())
	}

	second := newRun()
	_ = b.StartRun(second)
	if second.ID != 2 {
		t.Errorf("expected run ID 2, got %d", second.ID)
	}
	if b.StatusCount() != 0 {
		t.Errorf("expected status to be reset, got %d", b.StatusCount())
	}
}

func TestRecordWithoutRun(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.RecordStatus(&core.StatusLine{}); !errors.Is(err, storage.ErrNoActiveRun) {
		t.Errorf("expected ErrNoActiveRun, got %v", err)
	}
	if err := b.RecordWaypointEvent(&core.WaypointEvent{}); !errors.Is(err, storage.ErrNoActiveRun) {
		t.Errorf("expected ErrNoActiveRun, got %v", err)
	}
	if err := b.RecordHazardEvent(&core.HazardEvent{}); !errors.Is(err, storage.ErrNoActiveRun) {
		t.Errorf("expected ErrNoActiveRun, got %v", err)
	}
	if err := b.EndRun(&core.RunSummary{}); !errors.Is(err, storage.ErrNoActiveRun) {
		t.Errorf("expected ErrNoActiveRun, got %v", err)
	}
}

func TestExportedFilePath(t *testing.T) {
	b := New(config.MemoryConfig{})
	if path := b.ExportedFilePath(); path != "" {
		t.Errorf("expected empty path before export, got %s", path)
	}
}

func TestEndRun_WritesCompressedExport(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})

	_ = b.StartRun(newRun())
	_ = b.RecordWaypointEvent(&core.WaypointEvent{Kind: core.WaypointSpawned, Waypoint: core.Waypoint{ID: 0}})
	_ = b.RecordStatus(&core.StatusLine{Tick: 1, Position: core.Vector3{X: 51.5, Y: 50, Z: 2000}})
	_ = b.RecordStatus(&core.StatusLine{Tick: 2, Position: core.Vector3{X: 53, Y: 50, Z: 2000}})
	_ = b.RecordHazardEvent(&core.HazardEvent{Tick: 2, Active: true, Reason: "reversed"})

	if err := b.EndRun(&core.RunSummary{Ticks: 2, Outcome: core.OutcomeAborted}); err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}

	path := b.ExportedFilePath()
	if filepath.Dir(path) != dir {
		t.Errorf("expected export in %s, got %s", dir, path)
	}
	if !strings.HasSuffix(path, "Test_Run_20260115_103000.json.gz") {
		t.Errorf("unexpected export name: %s", path)
	}

	export, err := v1.Load(path)
	if err != nil {
		t.Fatalf("failed to load export: %v", err)
	}
	if export.RunUUID != "abc" {
		t.Errorf("expected run abc, got %s", export.RunUUID)
	}
	if export.Outcome != core.OutcomeAborted {
		t.Errorf("expected aborted outcome, got %s", export.Outcome)
	}
	if len(export.Samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(export.Samples))
	}
	if len(export.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(export.Events))
	}
	if len(export.TrackPositions()) != 3 {
		t.Errorf("expected 3 track points, got %d", len(export.TrackPositions()))
	}
}

func TestEndRun_UncompressedExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	b := New(config.MemoryConfig{OutputDir: dir})

	_ = b.StartRun(newRun())
	if err := b.EndRun(&core.RunSummary{}); err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}

	path := b.ExportedFilePath()
	if !strings.HasSuffix(path, ".json") {
		t.Errorf("expected .json suffix, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export not written: %v", err)
	}
}

func TestConcurrentRecording(t *testing.T) {
	b := New(config.MemoryConfig{})
	_ = b.StartRun(newRun())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.RecordStatus(&core.StatusLine{Tick: uint(i*100 + j)})
			}
		}(i)
	}
	wg.Wait()

	if b.StatusCount() != 1000 {
		t.Errorf("expected 1000 status lines, got %d", b.StatusCount())
	}
}
