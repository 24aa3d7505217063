// Package render feeds path and tile updates to the map collaborator.
package render

import (
	"sort"

	"github.com/adventurelime/explorer/internal/grid"
	"github.com/adventurelime/explorer/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Renderer draws the recorded path and the tile overlay. Implementations must be safe to call
// from a timer goroutine.
type Renderer interface {
	RenderPath(points []core.GeoPoint) error
	RenderTiles(tiles []TileView) error
}

// TileView is a touched tile with its state and lon/lat outline.
type TileView struct {
	ID      core.TileID
	State   core.TileState
	Outline geom.Polygon
}

// Views builds the views of every tile in states that belongs to idx, in row-major order.
func Views(idx *grid.Index, states map[core.TileID]core.TileState) []TileView {
	out := make([]TileView, 0, len(states))
	for id, st := range states {
		poly, ok := idx.Polygon(id)
		if !ok {
			continue
		}
		out = append(out, TileView{ID: id, State: st, Outline: poly})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Row != out[j].ID.Row {
			return out[i].ID.Row < out[j].ID.Row
		}
		return out[i].ID.Col < out[j].ID.Col
	})
	return out
}

// Nop discards everything.
type Nop struct{}

func (Nop) RenderPath([]core.GeoPoint) error { return nil }
func (Nop) RenderTiles([]TileView) error     { return nil }
