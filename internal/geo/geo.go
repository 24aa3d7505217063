package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/adventurelime/explorer/pkg/core"
	"github.com/wroge/wgs84"
)

// Coordinates are projected with EPSG:3857 and rescaled by cos(reference latitude) so one planar
// unit is one ground metre around the region. The region is small enough that the residual
// scale error across it is negligible for tile quantization.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParseCoordinate parses a "lat,lon" string into a core.GeoPoint.
func ParseCoordinate(coords string) (core.GeoPoint, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	return ValidatePoint(core.GeoPoint{Lat: lat, Lon: lon})
}

// ValidatePoint rejects non-finite or out-of-range coordinates.
func ValidatePoint(p core.GeoPoint) (core.GeoPoint, error) {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return core.GeoPoint{}, ErrInvalidCoordinates
	}
	return p, nil
}

// Projection maps geographic points to planar metres relative to an origin and back.
type Projection struct {
	origin  core.GeoPoint
	originX float64
	originY float64
	scale   float64

	forward func(a, b, c float64) (float64, float64, float64)
	inverse func(a, b, c float64) (float64, float64, float64)
}

// NewProjection returns a projection whose (0,0) is origin, scaled to ground metres at refLat.
func NewProjection(origin core.GeoPoint, refLat float64) *Projection {
	epsg := wgs84.EPSG()
	p := &Projection{
		origin:  origin,
		scale:   math.Cos(refLat * math.Pi / 180),
		forward: epsg.Transform(4326, 3857),
		inverse: epsg.Transform(3857, 4326),
	}
	p.originX, p.originY, _ = p.forward(origin.Lon, origin.Lat, 0)
	return p
}

// ForRegion returns the projection anchored at the region's south-west corner.
func ForRegion(r core.Region) *Projection {
	return NewProjection(r.SouthWest(), r.Center.Lat)
}

// Origin returns the geographic point mapped to (0,0).
func (p *Projection) Origin() core.GeoPoint {
	return p.origin
}

// ToXY projects a point to planar metres east (x) and north (y) of the origin.
func (p *Projection) ToXY(pt core.GeoPoint) (x, y float64) {
	mx, my, _ := p.forward(pt.Lon, pt.Lat, 0)
	return (mx - p.originX) * p.scale, (my - p.originY) * p.scale
}

// FromXY is the inverse of ToXY.
func (p *Projection) FromXY(x, y float64) core.GeoPoint {
	lon, lat, _ := p.inverse(x/p.scale+p.originX, y/p.scale+p.originY, 0)
	return core.GeoPoint{Lat: lat, Lon: lon}
}

// Distance returns the planar distance between a and b in metres.
func (p *Projection) Distance(a, b core.GeoPoint) float64 {
	ax, ay := p.ToXY(a)
	bx, by := p.ToXY(b)
	return math.Hypot(bx-ax, by-ay)
}
