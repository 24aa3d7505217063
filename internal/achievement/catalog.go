package achievement

import (
	"bytes"
	"fmt"
	"os"

	"github.com/adventurelime/explorer/pkg/core"
	"gopkg.in/yaml.v3"
)

// DefaultCatalog returns the built-in achievements.
func DefaultCatalog() []core.Achievement {
	return []core.Achievement{
		{ID: "map_10", Title: "Getting Started", Description: "Explore 10% of the map", Kind: core.KindCoverage, Target: 0.1},
		{ID: "poi_5", Title: "Explorer", Description: "Visit 5 points of interest", Kind: core.KindPOI, Target: 5},
		{ID: "poi_10", Title: "Social Caterpillar", Description: "Visit 10 points of interest", Kind: core.KindPOI, Target: 10},
	}
}

type catalogFile struct {
	Achievements []core.Achievement `yaml:"achievements"`
}

// LoadCatalog reads achievements from a YAML file. An empty path returns the default catalog.
func LoadCatalog(path string) ([]core.Achievement, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading achievement catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) ([]core.Achievement, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding achievement catalog: %w", err)
	}
	if len(f.Achievements) == 0 {
		return nil, fmt.Errorf("achievement catalog is empty")
	}

	seen := make(map[string]struct{}, len(f.Achievements))
	for i, a := range f.Achievements {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement %d: missing id", i)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("achievement %q: duplicate id", a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.Kind != core.KindCoverage && a.Kind != core.KindPOI {
			return nil, fmt.Errorf("achievement %q: unknown kind %q", a.ID, a.Kind)
		}
		if a.Target <= 0 {
			return nil, fmt.Errorf("achievement %q: target must be positive", a.ID)
		}
		if a.Kind == core.KindCoverage && a.Target > 1 {
			return nil, fmt.Errorf("achievement %q: coverage target must be at most 1", a.ID)
		}
	}
	return f.Achievements, nil
}
