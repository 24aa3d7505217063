package grid

import (
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/dgraph-io/ristretto/v2"
	geom "github.com/peterstace/simplefeatures/geom"
)

type polygonCache struct {
	cache *ristretto.Cache[string, geom.Polygon]
}

func newPolygonCache(tiles int) (*polygonCache, error) {
	if tiles < 1 {
		tiles = 1
	}
	cache, err := ristretto.NewCache[string, geom.Polygon](&ristretto.Config[string, geom.Polygon]{
		NumCounters: int64(tiles) * 10,
		MaxCost:     int64(tiles),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &polygonCache{cache: cache}, nil
}

func (c *polygonCache) close() {
	c.cache.Close()
}

// Polygon returns the lon/lat outline of tile id for rendering. Outlines are memoized.
func (idx *Index) Polygon(id core.TileID) (geom.Polygon, bool) {
	tile, ok := idx.Tile(id)
	if !ok {
		return geom.Polygon{}, false
	}
	key := id.String()
	if poly, found := idx.polygons.cache.Get(key); found {
		return poly, true
	}
	poly := idx.proj.RectPolygon(tile.Bounds)
	idx.polygons.cache.Set(key, poly, 1)
	return poly, true
}
