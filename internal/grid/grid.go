// Package grid partitions a bounded region into fixed-size square tiles.
package grid

import (
	"fmt"
	"math"

	"github.com/adventurelime/explorer/internal/config"
	"github.com/adventurelime/explorer/internal/geo"
	"github.com/adventurelime/explorer/pkg/core"
)

// Index maps coordinates to tiles. It is immutable after Configure and safe for concurrent use.
type Index struct {
	region core.Region
	edge   float64
	proj   *geo.Projection

	width  float64
	height float64
	rows   int
	cols   int
	tiles  []core.TileDefinition

	polygons *polygonCache
}

// Configure generates the tiles covering region, row-major from the south-west corner.
// Identical inputs always produce identical ids.
func Configure(region core.Region, edge float64) (*Index, error) {
	if region.LatSpan <= 0 || region.LonSpan <= 0 {
		return nil, &config.ConfigurationError{Key: "region", Reason: "span must be positive"}
	}
	if edge <= 0 || math.IsNaN(edge) || math.IsInf(edge, 0) {
		return nil, &config.ConfigurationError{Key: "grid.tileEdge", Reason: "must be a positive number"}
	}

	proj := geo.ForRegion(region)
	width, height := proj.ToXY(region.NorthEast())
	if width <= 0 || height <= 0 {
		return nil, &config.ConfigurationError{Key: "region", Reason: "projected region is empty"}
	}

	idx := &Index{
		region: region,
		edge:   edge,
		proj:   proj,
		width:  width,
		height: height,
		rows:   int(math.Ceil(height / edge)),
		cols:   int(math.Ceil(width / edge)),
	}

	idx.tiles = make([]core.TileDefinition, 0, idx.rows*idx.cols)
	for row := 0; row < idx.rows; row++ {
		for col := 0; col < idx.cols; col++ {
			idx.tiles = append(idx.tiles, core.TileDefinition{
				ID: core.TileID{Row: row, Col: col},
				Bounds: core.Rect{
					MinX: float64(col) * edge,
					MinY: float64(row) * edge,
					MaxX: math.Min(float64(col+1)*edge, width),
					MaxY: math.Min(float64(row+1)*edge, height),
				},
			})
		}
	}

	cache, err := newPolygonCache(len(idx.tiles))
	if err != nil {
		return nil, fmt.Errorf("creating polygon cache: %w", err)
	}
	idx.polygons = cache

	return idx, nil
}

// Locate returns the tile containing p, or false when p is outside the region.
func (idx *Index) Locate(p core.GeoPoint) (core.TileID, bool) {
	if !idx.region.Contains(p) {
		return core.TileID{}, false
	}
	x, y := idx.proj.ToXY(p)
	return idx.LocateXY(x, y)
}

// LocateXY returns the tile containing the planar point (x, y) in metres from the origin.
// Interior boundaries belong to the tile whose lower edge they lie on; the far edges of the
// region clamp into the last row and column.
func (idx *Index) LocateXY(x, y float64) (core.TileID, bool) {
	if math.IsNaN(x) || math.IsNaN(y) || x < 0 || y < 0 || x > idx.width || y > idx.height {
		return core.TileID{}, false
	}
	col := int(math.Floor(x / idx.edge))
	row := int(math.Floor(y / idx.edge))
	if col >= idx.cols {
		col = idx.cols - 1
	}
	if row >= idx.rows {
		row = idx.rows - 1
	}
	return core.TileID{Row: row, Col: col}, true
}

// Tile returns the definition for id.
func (idx *Index) Tile(id core.TileID) (core.TileDefinition, bool) {
	if !idx.Has(id) {
		return core.TileDefinition{}, false
	}
	return idx.tiles[id.Row*idx.cols+id.Col], true
}

// Has reports whether id belongs to this grid.
func (idx *Index) Has(id core.TileID) bool {
	return id.Row >= 0 && id.Row < idx.rows && id.Col >= 0 && id.Col < idx.cols
}

// Tiles returns a copy of all tile definitions in row-major order.
func (idx *Index) Tiles() []core.TileDefinition {
	out := make([]core.TileDefinition, len(idx.tiles))
	copy(out, idx.tiles)
	return out
}

// Len returns the number of tiles.
func (idx *Index) Len() int {
	return len(idx.tiles)
}

// Dimensions returns the row and column counts.
func (idx *Index) Dimensions() (rows, cols int) {
	return idx.rows, idx.cols
}

// Edge returns the configured tile edge length in metres.
func (idx *Index) Edge() float64 {
	return idx.edge
}

// Region returns the configured region.
func (idx *Index) Region() core.Region {
	return idx.region
}

// Projection returns the planar projection the grid is laid out in.
func (idx *Index) Projection() *geo.Projection {
	return idx.proj
}

// Close releases the polygon cache.
func (idx *Index) Close() {
	idx.polygons.close()
}
