// pkg/core/poi.go
package core

// POI is a point of interest that is discovered by walking within Radius metres of it.
type POI struct {
	ID     string   `json:"id" mapstructure:"id"`
	Name   string   `json:"name" mapstructure:"name"`
	Point  GeoPoint `json:"point" mapstructure:"point"`
	Radius float64  `json:"radius" mapstructure:"radius"`
}
