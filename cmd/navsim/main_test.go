package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/storage"
	influxstorage "github.com/tiltpilot/navsim/internal/storage/influx"
	"github.com/tiltpilot/navsim/internal/storage/memory"
	sqlitestorage "github.com/tiltpilot/navsim/internal/storage/sqlite"
	wsstorage "github.com/tiltpilot/navsim/internal/storage/websocket"
	"github.com/tiltpilot/navsim/pkg/core"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCmd  string
		wantRest []string
	}{
		{"empty", nil, "run", nil},
		{"leading flag", []string{"--seed", "3"}, "run", []string{"--seed", "3"}},
		{"explicit run", []string{"run", "--sensor", "serial"}, "run", []string{"--sensor", "serial"}},
		{"plot", []string{"Plot", "a.json"}, "plot", []string{"a.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, rest := splitCommand(tt.args)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestExecute_Version(t *testing.T) {
	var out bytes.Buffer
	code := execute(context.Background(), []string{"version"}, &out, io.Discard)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out.String(), AppName+" "+Version)
}

func TestExecute_UnknownCommand(t *testing.T) {
	var errOut bytes.Buffer
	code := execute(context.Background(), []string{"fly"}, io.Discard, &errOut)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut.String(), `unknown command "fly"`)
	assert.Contains(t, errOut.String(), "--waypoints")
}

func TestExecute_RunRejectsArguments(t *testing.T) {
	t.Cleanup(viper.Reset)
	code := execute(context.Background(), []string{"run", "extra"}, io.Discard, io.Discard)
	assert.Equal(t, exitUsage, code)
}

func TestPlotFileName(t *testing.T) {
	assert.Equal(t, "runs/navsim_1.png", plotFileName("runs/navsim_1.json.gz"))
	assert.Equal(t, "navsim.png", plotFileName("navsim.json"))
	assert.Equal(t, "dump.png", plotFileName("dump.db"))
}

func TestCreateStorageBackend(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	dir := t.TempDir()
	zlog := zerolog.Nop()
	logger := newDiscardLogger()

	tests := []struct {
		typ  string
		want storage.Backend
	}{
		{"", &memory.Backend{}},
		{storage.TypeMemory, &memory.Backend{}},
		{storage.TypeSQLite, &sqlitestorage.Backend{}},
		{storage.TypeWebSocket, &wsstorage.Backend{}},
		{storage.TypeInflux, &influxstorage.Backend{}},
	}
	for _, tt := range tests {
		t.Run("type="+tt.typ, func(t *testing.T) {
			cfg := config.StorageConfig{
				Type:   tt.typ,
				Memory: config.MemoryConfig{OutputDir: dir},
				SQLite: config.SQLiteConfig{DumpDir: dir},
			}
			b, err := createStorageBackend(cfg, zlog, logger)
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestCreateStorageBackend_Unknown(t *testing.T) {
	_, err := createStorageBackend(config.StorageConfig{Type: "tape"}, zerolog.Nop(), newDiscardLogger())
	assert.ErrorIs(t, err, storage.ErrUnknownBackend)
	assert.Contains(t, err.Error(), `"tape"`)
}

func TestOpenSensor_Unknown(t *testing.T) {
	_, err := openSensor(context.Background(), config.SensorConfig{Type: "gyro"}, 1, newDiscardLogger())
	assert.ErrorIs(t, err, errUnknownSensor)
}

func TestOpenSensor_Synthetic(t *testing.T) {
	src, err := openSensor(context.Background(), config.SensorConfig{Type: sensorSynthetic, Divisor: 1000}, 1, newDiscardLogger())
	require.NoError(t, err)
	defer src.close()

	assert.InDelta(t, 1.0, src.sampler.GravityReference(), 1e-9)
	tilt, err := src.sampler.SampleTilt(context.Background())
	require.NoError(t, err)
	assert.True(t, tilt.IsFinite())
}

func TestPlotCommand(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()

	b := memory.New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Init())
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, b.StartRun(&core.Run{
		RunUUID:    "p1",
		Name:       "plotted",
		StartTime:  start,
		StartState: core.VehicleState{Position: core.Vector3{X: 50, Y: 50, Z: 2000}},
	}))
	for i := uint(1); i <= 3; i++ {
		require.NoError(t, b.RecordStatus(&core.StatusLine{
			RunUUID:  "p1",
			Tick:     i,
			Time:     start.Add(time.Duration(i) * time.Second),
			Position: core.Vector3{X: 50 + 10*float64(i), Y: 50, Z: 2000},
		}))
	}
	require.NoError(t, b.EndRun(&core.RunSummary{RunUUID: "p1", Outcome: core.OutcomeCompleted}))
	export := b.ExportedFilePath()
	require.NotEmpty(t, export)

	out := filepath.Join(dir, "track.png")
	var stdout bytes.Buffer
	code := execute(context.Background(), []string{"plot", "--config", dir, "-o", out, export}, &stdout, io.Discard)
	require.Equal(t, exitOK, code)
	assert.FileExists(t, out)
	assert.Contains(t, stdout.String(), "4 points")
}

func TestPlotCommand_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	var errOut bytes.Buffer
	code := execute(context.Background(), []string{"plot", filepath.Join(t.TempDir(), "nope.json")}, io.Discard, &errOut)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut.String(), "nope.json")
}

func TestPlotCommand_NeedsOneFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	assert.Equal(t, exitUsage, execute(context.Background(), []string{"plot"}, io.Discard, io.Discard))
}

func TestRunCommand_SyntheticRunIsRecorded(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	recordings := filepath.Join(dir, "recordings")
	statusFile := filepath.Join(dir, "status.json")
	cfg := `{
  "logsDir": "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `",
  "sim": {"tickDelay": "1ms"},
  "storage": {"type": "memory", "memory": {"outputDir": "` + filepath.ToSlash(recordings) + `", "compressOutput": false}},
  "monitor": {"enabled": true, "interval": "20ms", "statusFile": "` + filepath.ToSlash(statusFile) + `"}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(cfg), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	code := execute(ctx, []string{"--config", dir, "--seed", "7", "--log-level", "warn"}, io.Discard, io.Discard)
	require.Equal(t, exitOK, code)

	exports, err := filepath.Glob(filepath.Join(recordings, "*.json"))
	require.NoError(t, err)
	assert.Len(t, exports, 1)
	assert.FileExists(t, statusFile)

	logs, err := filepath.Glob(filepath.Join(dir, "logs", AppName+".*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRunCommand_RejectsInvalidRadii(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName),
		[]byte(`{"sim": {"hitRadius": 500, "nearRadius": 400}}`), 0o644))

	var errOut bytes.Buffer
	code := execute(context.Background(), []string{"--config", dir}, io.Discard, &errOut)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut.String(), "sim.nearRadius")
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
