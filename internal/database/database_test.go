package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/model"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db",
		Port:     "5433",
		Username: "nav",
		Password: "pw",
		Database: "runs",
	})
	assert.Equal(t, "host=db port=5433 user=nav password=pw dbname=runs sslmode=disable", dsn)
}

func TestSetup_CreatesSchemaOnce(t *testing.T) {
	db, err := OpenSQLite(NamedMemoryDSN(t.Name()))
	require.NoError(t, err)

	require.NoError(t, Setup(db, zerolog.Nop()))
	require.NoError(t, Setup(db, zerolog.Nop()))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}

	var count int64
	require.NoError(t, db.Model(&model.NavsimInfo{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSQLite(NamedMemoryDSN(t.Name()))
	require.NoError(t, err)
	require.NoError(t, Setup(db, zerolog.Nop()))
	require.NoError(t, db.Create(&model.Run{RunUUID: "dumped"}).Error)

	path := filepath.Join(t.TempDir(), "navsim.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	onDisk, err := OpenSQLite(path)
	require.NoError(t, err)
	var run model.Run
	require.NoError(t, onDisk.Where("run_uuid = ?", "dumped").First(&run).Error)
	assert.Equal(t, "dumped", run.RunUUID)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := OpenSQLite(NamedMemoryDSN(t.Name()))
	require.NoError(t, err)
	assert.ErrorIs(t, DumpMemoryDBToDisk(db, ""), errNoDumpPath)
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)
}

func TestManager_DumpWithoutPath(t *testing.T) {
	m := NewManager(zerolog.Nop())
	db, err := OpenSQLite(NamedMemoryDSN(t.Name()))
	require.NoError(t, err)
	m.DB = db

	assert.Error(t, m.DumpMemoryToDisk())
	assert.NoError(t, m.Close())
}
