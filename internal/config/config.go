package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adventurelime/explorer/pkg/core"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileName is the file Load looks for in the config directory.
const ConfigFileName = "explorer.cfg.json"

// GridSettings holds the tile grid parameters.
type GridSettings struct {
	Region   core.Region
	TileEdge float64
}

// AnalyzerSettings holds the tile analysis parameters.
type AnalyzerSettings struct {
	MovementThreshold float64
	SampleSpacing     float64
	UnlockThreshold   float64
	Interval          time.Duration
}

// StorageConfig holds persistence backend settings.
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	File     FileConfig     `json:"file" mapstructure:"file"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// FileConfig holds JSON file backend settings.
type FileConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// SQLiteConfig holds sqlite backend settings.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds postgres backend settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// ProgressionSettings holds XP reward amounts.
type ProgressionSettings struct {
	TileReward int
	POIReward  int
}

// RenderSettings holds render notification settings.
type RenderSettings struct {
	Debounce       time.Duration
	WebsocketURL   string
	WebsocketToken string
}

// Load reads configuration from the JSON file in configDir and sets default values.
// A .env file in configDir is loaded into the environment first; EXPLORER_* variables override file values.
func Load(configDir string) error {
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	setDefaults()

	viper.SetEnvPrefix("EXPLORER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./explorerlogs")
	viper.SetDefault("logMaxSizeMB", 20)
	viper.SetDefault("logMaxBackups", 5)

	// St. George campus, University of Toronto
	viper.SetDefault("region.center.lat", 43.661)
	viper.SetDefault("region.center.lon", -79.395)
	viper.SetDefault("region.latSpan", 0.018)
	viper.SetDefault("region.lonSpan", 0.020)
	viper.SetDefault("grid.tileEdge", 50.0)

	viper.SetDefault("analyzer.movementThreshold", 5.0)
	viper.SetDefault("analyzer.sampleSpacing", 5.0)
	viper.SetDefault("analyzer.unlockThreshold", 0.4)
	viper.SetDefault("analyzer.interval", "15s")

	viper.SetDefault("progression.tileReward", 25)
	viper.SetDefault("progression.poiReward", 150)

	viper.SetDefault("achievements.catalogFile", "")

	viper.SetDefault("render.debounce", "500ms")
	viper.SetDefault("render.websocketUrl", "")
	viper.SetDefault("render.websocketToken", "")

	viper.SetDefault("storage.type", "file")
	viper.SetDefault("storage.file.dir", "./progress")
	viper.SetDefault("storage.file.compress", false)
	viper.SetDefault("storage.sqlite.path", "./progress/explorer.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "explorer")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "explorer-metrics")
	viper.SetDefault("influx.bucket", "exploration")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "explorer")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("ingest.bufferSize", 10000)
}

// Grid returns the grid settings.
func Grid() GridSettings {
	return GridSettings{
		Region: core.Region{
			Center: core.GeoPoint{
				Lat: viper.GetFloat64("region.center.lat"),
				Lon: viper.GetFloat64("region.center.lon"),
			},
			LatSpan: viper.GetFloat64("region.latSpan"),
			LonSpan: viper.GetFloat64("region.lonSpan"),
		},
		TileEdge: viper.GetFloat64("grid.tileEdge"),
	}
}

// Analyzer returns the analyzer settings.
func Analyzer() AnalyzerSettings {
	return AnalyzerSettings{
		MovementThreshold: viper.GetFloat64("analyzer.movementThreshold"),
		SampleSpacing:     viper.GetFloat64("analyzer.sampleSpacing"),
		UnlockThreshold:   viper.GetFloat64("analyzer.unlockThreshold"),
		Interval:          viper.GetDuration("analyzer.interval"),
	}
}

// Progression returns the reward settings.
func Progression() ProgressionSettings {
	return ProgressionSettings{
		TileReward: viper.GetInt("progression.tileReward"),
		POIReward:  viper.GetInt("progression.poiReward"),
	}
}

// Render returns the render notification settings.
func Render() RenderSettings {
	return RenderSettings{
		Debounce:       viper.GetDuration("render.debounce"),
		WebsocketURL:   viper.GetString("render.websocketUrl"),
		WebsocketToken: viper.GetString("render.websocketToken"),
	}
}

// Storage returns the persistence backend settings.
func Storage() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		File: FileConfig{
			Dir:      viper.GetString("storage.file.dir"),
			Compress: viper.GetBool("storage.file.compress"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
	}
}

// POIs returns the configured points of interest.
func POIs() ([]core.POI, error) {
	var pois []core.POI
	if !viper.IsSet("pois") {
		return pois, nil
	}
	if err := viper.UnmarshalKey("pois", &pois); err != nil {
		return nil, fmt.Errorf("decoding pois: %w", err)
	}
	return pois, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
