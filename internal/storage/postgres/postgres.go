// Package postgres implements storage.Backend on PostgreSQL. Writes go
// through the shared GORM backend with its internal queues and DB writer goroutine.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/database"
	"github.com/tiltpilot/navsim/internal/storage"
	gormstorage "github.com/tiltpilot/navsim/internal/storage/gorm"
)

// MaxOpenConns bounds the Postgres connection pool.
const MaxOpenConns = 10

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
}

var _ storage.Backend = (*Backend)(nil)

// New connects to Postgres and validates the connection.
func New(cfg config.DBConfig, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to Postgres")

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: log,
		}),
		cfg: cfg,
	}, nil
}

// Close stops the writer and releases the connection pool.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
