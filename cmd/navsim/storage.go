package main

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/storage"
	influxstorage "github.com/tiltpilot/navsim/internal/storage/influx"
	"github.com/tiltpilot/navsim/internal/storage/memory"
	pgstorage "github.com/tiltpilot/navsim/internal/storage/postgres"
	sqlitestorage "github.com/tiltpilot/navsim/internal/storage/sqlite"
	wsstorage "github.com/tiltpilot/navsim/internal/storage/websocket"
)

// createStorageBackend builds the backend named by cfg.Type. The persistence
// backends log through zerolog; the websocket streamer uses slog.
func createStorageBackend(cfg config.StorageConfig, zlog zerolog.Logger, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case storage.TypePostgres:
		backend, err := pgstorage.New(config.GetDBConfig(), zlog)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres backend: %w", err)
		}
		logger.Info("Postgres storage backend initialized")
		return backend, nil

	case storage.TypeSQLite:
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpDir:      cfg.SQLite.DumpDir,
		}, zlog)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dump_dir", cfg.SQLite.DumpDir)
		return backend, nil

	case storage.TypeWebSocket:
		api := config.GetAPIConfig()
		wsCfg := wsstorage.ConfigFromServer(api.ServerURL, api.APIKey)
		logger.Info("WebSocket storage backend initialized", "url", wsCfg.URL)
		return wsstorage.New(wsCfg, logger), nil

	case storage.TypeInflux:
		influxCfg := config.GetInfluxConfig()
		logger.Info("InfluxDB storage backend initialized", "host", influxCfg.Host, "bucket", influxCfg.Bucket)
		return influxstorage.New(influxCfg, zlog), nil

	case storage.TypeMemory, "":
		logger.Info("Memory storage backend initialized", "output_dir", cfg.Memory.OutputDir)
		return memory.New(cfg.Memory), nil

	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.Type)
	}
}
