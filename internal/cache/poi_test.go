package cache

import (
	"math"
	"sync"
	"testing"

	"github.com/adventurelime/explorer/internal/geo"
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// planar treats lat/lon as metres.
func planar(a, b core.GeoPoint) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

func TestPOICache_AddGet(t *testing.T) {
	c := NewPOICache(planar)
	c.Add(core.POI{ID: "library", Name: "Robarts", Radius: 40})
	c.Add(core.POI{ID: "gym"})

	p, ok := c.Get("library")
	require.True(t, ok)
	assert.Equal(t, "Robarts", p.Name)
	assert.Equal(t, 40.0, p.Radius)

	gym, ok := c.Get("gym")
	require.True(t, ok)
	assert.Equal(t, DefaultPOIRadius, gym.Radius)

	_, ok = c.Get("pool")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestPOICache_Within(t *testing.T) {
	c := NewPOICache(planar)
	c.Add(core.POI{ID: "b", Point: core.GeoPoint{Lat: 0, Lon: 0}, Radius: 10})
	c.Add(core.POI{ID: "a", Point: core.GeoPoint{Lat: 5, Lon: 0}, Radius: 10})
	c.Add(core.POI{ID: "far", Point: core.GeoPoint{Lat: 100, Lon: 100}, Radius: 10})

	hits := c.Within(core.GeoPoint{Lat: 2, Lon: 0})
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)

	// the radius boundary counts as inside
	assert.Len(t, c.Within(core.GeoPoint{Lat: -10, Lon: 0}), 1)
	assert.Empty(t, c.Within(core.GeoPoint{Lat: 50, Lon: 50}))
}

func TestPOICache_WithinProjectedDistance(t *testing.T) {
	proj := geo.NewProjection(core.GeoPoint{Lat: 43.652, Lon: -79.405}, 43.661)
	c := NewPOICache(proj.Distance)
	c.Add(core.POI{ID: "library", Point: core.GeoPoint{Lat: 43.6645, Lon: -79.3997}, Radius: 30})

	// about 11 m north
	assert.Len(t, c.Within(core.GeoPoint{Lat: 43.6646, Lon: -79.3997}), 1)
	// about 110 m north
	assert.Empty(t, c.Within(core.GeoPoint{Lat: 43.6655, Lon: -79.3997}))
}

func TestPOICache_AllAndReset(t *testing.T) {
	c := NewPOICache(planar)
	c.Add(core.POI{ID: "z"})
	c.Add(core.POI{ID: "m"})

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "m", all[0].ID)

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestPOICache_Concurrent(t *testing.T) {
	c := NewPOICache(planar)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Add(core.POI{ID: string(rune('a' + i))})
		}(i)
		go func() {
			defer wg.Done()
			c.Within(core.GeoPoint{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, c.Len())
}
