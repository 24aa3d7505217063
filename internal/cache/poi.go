// Package cache holds lookup tables read on the ingestion path.
package cache

import (
	"sort"
	"sync"

	"github.com/adventurelime/explorer/pkg/core"
)

// DefaultPOIRadius applies to points of interest configured without a radius, in metres.
const DefaultPOIRadius = 30.0

// DistanceFunc returns the distance between two points in metres.
type DistanceFunc func(a, b core.GeoPoint) float64

// POICache keeps the configured points of interest for proximity checks on every recorded fix.
type POICache struct {
	mu       sync.RWMutex
	pois     map[string]core.POI
	distance DistanceFunc
}

// NewPOICache creates a cache using distance for proximity checks.
func NewPOICache(distance DistanceFunc) *POICache {
	return &POICache{
		pois:     make(map[string]core.POI),
		distance: distance,
	}
}

// Add inserts or replaces a POI. A non-positive radius is replaced with DefaultPOIRadius.
func (c *POICache) Add(p core.POI) {
	if p.Radius <= 0 {
		p.Radius = DefaultPOIRadius
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pois[p.ID] = p
}

// Get returns the POI with the given id.
func (c *POICache) Get(id string) (core.POI, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pois[id]
	return p, ok
}

// Len returns the number of cached POIs.
func (c *POICache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pois)
}

// All returns every POI sorted by id.
func (c *POICache) All() []core.POI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.POI, 0, len(c.pois))
	for _, p := range c.pois {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Within returns the POIs whose radius contains pt, sorted by id.
func (c *POICache) Within(pt core.GeoPoint) []core.POI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.POI
	for _, p := range c.pois {
		if c.distance(pt, p.Point) <= p.Radius {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reset removes all POIs.
func (c *POICache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pois = make(map[string]core.POI)
}
