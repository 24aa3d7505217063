// pkg/core/geo.go
package core

import (
	"fmt"
	"time"
)

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" mapstructure:"lat"`
	Lon float64 `json:"lon" mapstructure:"lon"`
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Fix is a single location sample from the location provider.
// Timestamp and Accuracy are carried for logging only.
type Fix struct {
	Point     GeoPoint
	Timestamp time.Time
	Accuracy  float64
}

// Region is the bounded rectangle the grid covers, given as a centre and a span in degrees.
type Region struct {
	Center  GeoPoint `json:"center" mapstructure:"center"`
	LatSpan float64  `json:"latSpan" mapstructure:"latSpan"`
	LonSpan float64  `json:"lonSpan" mapstructure:"lonSpan"`
}

// SouthWest returns the region origin.
func (r Region) SouthWest() GeoPoint {
	return GeoPoint{Lat: r.Center.Lat - r.LatSpan/2, Lon: r.Center.Lon - r.LonSpan/2}
}

// NorthEast returns the corner opposite the origin.
func (r Region) NorthEast() GeoPoint {
	return GeoPoint{Lat: r.Center.Lat + r.LatSpan/2, Lon: r.Center.Lon + r.LonSpan/2}
}

// Contains reports whether p lies inside the region, edges included.
func (r Region) Contains(p GeoPoint) bool {
	sw, ne := r.SouthWest(), r.NorthEast()
	return p.Lat >= sw.Lat && p.Lat <= ne.Lat && p.Lon >= sw.Lon && p.Lon <= ne.Lon
}

// Rect is an axis-aligned rectangle in planar metres.
type Rect struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Contains reports whether (x, y) lies in the half-open rectangle [Min, Max).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}
