package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"grid": { "tileEdge": 25 },
		"storage": { "type": "sqlite", "sqlite": { "path": "/tmp/x.db" } }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 25.0, Grid().TileEdge)
	cfg := Storage()
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, "/tmp/x.db", cfg.SQLite.Path)
	assert.Equal(t, "./progress", cfg.File.Dir, "unset nested keys keep their defaults")
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	g := Grid()
	assert.Equal(t, 43.661, g.Region.Center.Lat)
	assert.Equal(t, -79.395, g.Region.Center.Lon)
	assert.Equal(t, 0.018, g.Region.LatSpan)
	assert.Equal(t, 0.020, g.Region.LonSpan)
	assert.Equal(t, 50.0, g.TileEdge)

	a := Analyzer()
	assert.Equal(t, 5.0, a.MovementThreshold)
	assert.Equal(t, 5.0, a.SampleSpacing)
	assert.Equal(t, 0.4, a.UnlockThreshold)
	assert.Equal(t, 15*time.Second, a.Interval)

	p := Progression()
	assert.Equal(t, 25, p.TileReward)
	assert.Equal(t, 150, p.POIReward)

	assert.Equal(t, 500*time.Millisecond, Render().Debounce)
	assert.Equal(t, "file", Storage().Type)
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "explorer", viper.GetString("otel.serviceName"))
	assert.Equal(t, 10000, GetInt("ingest.bufferSize"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
	assert.Equal(t, 50.0, Grid().TileEdge, "defaults apply even without a file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("EXPLORER_GRID_TILEEDGE", "100")

	require.NoError(t, Load(writeConfig(t, `{}`)))
	assert.Equal(t, 100.0, Grid().TileEdge)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Cleanup(func() { os.Unsetenv("EXPLORER_LOGLEVEL") })

	dir := writeConfig(t, `{}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EXPLORER_LOGLEVEL=warn\n"), 0644))

	require.NoError(t, Load(dir))
	assert.Equal(t, "warn", GetString("logLevel"))
}

func TestPOIs(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"pois": [
			{ "id": "robarts", "name": "Robarts Library", "point": { "lat": 43.6644, "lon": -79.3997 }, "radius": 30 }
		]
	}`)))

	pois, err := POIs()
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, "robarts", pois[0].ID)
	assert.Equal(t, 43.6644, pois[0].Point.Lat)
	assert.Equal(t, 30.0, pois[0].Radius)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"zero tile edge", "grid.tileEdge", 0},
		{"negative lat span", "region.latSpan", -1},
		{"zero lon span", "region.lonSpan", 0},
		{"polar region", "region.center.lat", 89.0},
		{"zero sample spacing", "analyzer.sampleSpacing", 0},
		{"threshold above one", "analyzer.unlockThreshold", 1.5},
		{"unknown storage", "storage.type", "s3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			setDefaults()
			viper.Set(tt.key, tt.val)

			err := Validate()
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	setDefaults()
	assert.NoError(t, Validate())
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testString", "value")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	viper.Set("testDuration", "2s")

	assert.Equal(t, "value", GetString("testString"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.True(t, GetBool("testBool"))
	assert.Equal(t, 2*time.Second, GetDuration("testDuration"))
}
