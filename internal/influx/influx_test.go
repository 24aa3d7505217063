package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adventurelime/explorer/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	s := NewSink(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.ErrorIs(t, s.Connect(context.Background()), ErrDisabled)
	assert.NoError(t, s.Close())
}

func TestConnect_UnreachableFallsBackToBackup(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")
	viper.Set("influx.bucket", "exploration")

	backup := filepath.Join(t.TempDir(), "backup.lp.gz")
	s := NewSink(zerolog.Nop(), backup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	assert.False(t, s.IsValid)

	require.NoError(t, s.RecordProgress(core.Status{
		SessionID:     "abc",
		XP:            175,
		Level:         1,
		UnlockedTiles: 4,
		Coverage:      0.003,
	}))
	require.NoError(t, s.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	line := string(data)
	assert.Contains(t, line, "exploration,session=abc")
	assert.Contains(t, line, "xp=175i")
	assert.Contains(t, line, "unlocked_tiles=4i")
}

func TestWritePoint_NoBackend(t *testing.T) {
	s := NewSink(zerolog.Nop(), "")
	err := s.WritePoint(influxdb2_write.NewPointWithMeasurement(Measurement))
	assert.Error(t, err)
}

func TestProgressPoint(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := ProgressPoint(core.Status{SessionID: "s", Level: 3, Coverage: 0.5}, at)

	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, at, p.Time())
	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "session", p.TagList()[0].Key)

	fields := make(map[string]any)
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(3), fields["level"])
	assert.Equal(t, 0.5, fields["coverage"])
}
