package geo

import (
	"github.com/adventurelime/explorer/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// PathLineString builds a lon/lat line string from a recorded path for the render collaborator.
// Paths with fewer than two points yield an empty line string.
func PathLineString(points []core.GeoPoint) geom.LineString {
	if len(points) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(points)*2)
	for _, pt := range points {
		flat = append(flat, pt.Lon, pt.Lat)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// PathLength returns the planar length of the path in metres.
func (p *Projection) PathLength(points []core.GeoPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	flat := make([]float64, 0, len(points)*2)
	for _, pt := range points {
		x, y := p.ToXY(pt)
		flat = append(flat, x, y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)).Length()
}

// RectPolygon converts a planar rectangle back to a closed lon/lat polygon, counter-clockwise from
// the south-west corner.
func (p *Projection) RectPolygon(r core.Rect) geom.Polygon {
	sw := p.FromXY(r.MinX, r.MinY)
	se := p.FromXY(r.MaxX, r.MinY)
	ne := p.FromXY(r.MaxX, r.MaxY)
	nw := p.FromXY(r.MinX, r.MaxY)
	ring := geom.NewLineString(geom.NewSequence([]float64{
		sw.Lon, sw.Lat,
		se.Lon, se.Lat,
		ne.Lon, ne.Lat,
		nw.Lon, nw.Lat,
		sw.Lon, sw.Lat,
	}, geom.DimXY))
	return geom.NewPolygon([]geom.LineString{ring})
}
