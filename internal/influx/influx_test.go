package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiltpilot/navsim/internal/config"
)

func unreachable() config.InfluxConfig {
	return config.InfluxConfig{Host: "127.0.0.1", Port: "1", Protocol: "http", Org: "navsim", Bucket: "navsim"}
}

func TestServerURL(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	assert.Equal(t, "http://127.0.0.1:1", m.ServerURL())
	assert.Equal(t, []string{"navsim"}, m.BucketNames)
}

func TestWritePoint_BeforeConnect(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	err := m.WritePoint("navsim", influxdb2_write.NewPointWithMeasurement("status"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnect_FallsBackToBackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(unreachable(), zerolog.Nop(), path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	p := influxdb2_write.NewPointWithMeasurement("status").
		AddTag("run", "r1").
		AddField("tick", 7).
		SetTime(time.Unix(0, 1000))
	require.NoError(t, m.WritePoint("navsim", p))
	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	sc := bufio.NewScanner(gz)
	require.True(t, sc.Scan())
	assert.Equal(t, "status,run=r1 tick=7i 1000", sc.Text())
}

func TestConnect_NoBackupPath(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, m.Connect(ctx))
}
