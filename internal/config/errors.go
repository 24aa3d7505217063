package config

import "fmt"

// ConfigurationError reports a malformed or missing setting. It is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Key, e.Reason)
}

// Validate checks the settings the engine cannot run without.
func Validate() error {
	g := Grid()
	switch {
	case g.Region.LatSpan <= 0:
		return &ConfigurationError{Key: "region.latSpan", Reason: "must be positive"}
	case g.Region.LonSpan <= 0:
		return &ConfigurationError{Key: "region.lonSpan", Reason: "must be positive"}
	case g.Region.Center.Lat-g.Region.LatSpan/2 < -85 || g.Region.Center.Lat+g.Region.LatSpan/2 > 85:
		return &ConfigurationError{Key: "region.center.lat", Reason: "region must stay within ±85° latitude"}
	case g.Region.Center.Lon-g.Region.LonSpan/2 < -180 || g.Region.Center.Lon+g.Region.LonSpan/2 > 180:
		return &ConfigurationError{Key: "region.center.lon", Reason: "region must stay within ±180° longitude"}
	case g.TileEdge <= 0:
		return &ConfigurationError{Key: "grid.tileEdge", Reason: "must be positive"}
	}

	a := Analyzer()
	switch {
	case a.SampleSpacing <= 0:
		return &ConfigurationError{Key: "analyzer.sampleSpacing", Reason: "must be positive"}
	case a.MovementThreshold < 0:
		return &ConfigurationError{Key: "analyzer.movementThreshold", Reason: "must not be negative"}
	case a.UnlockThreshold <= 0 || a.UnlockThreshold > 1:
		return &ConfigurationError{Key: "analyzer.unlockThreshold", Reason: "must be in (0, 1]"}
	case a.Interval <= 0:
		return &ConfigurationError{Key: "analyzer.interval", Reason: "must be positive"}
	}

	switch Storage().Type {
	case "file", "sqlite", "postgres":
	default:
		return &ConfigurationError{Key: "storage.type", Reason: fmt.Sprintf("unknown storage type %q", Storage().Type)}
	}

	return nil
}
