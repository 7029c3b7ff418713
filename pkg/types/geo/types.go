// Package geo defines the shared geospatial value types exchanged between the
// domain, application, and interface layers: coordinates, GeoJSON features,
// and camera movements.  No behavior beyond construction and validation lives
// here.
package geo

import (
	"encoding/json"
	"math"
)

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint constructs a Point.
func NewPoint(lat, lng float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// IsValid reports whether the point is finite and inside the WGS84 envelope
// (lat in [-90, 90], lng in [-180, 180]).
func (p Point) IsValid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// FeatureProperties carries the styling and identity attributes attached to a
// map point.  Field names mirror the wire contract consumed by the renderer.
type FeatureProperties struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	PostalCode   string  `json:"postal_code,omitempty"`
	ProductType  string  `json:"product_type"`
	Color        string  `json:"color"`
	Size         float64 `json:"size"`
	Status       string  `json:"status"`
	RegisteredAt string  `json:"registered_at,omitempty"`

	// Cluster attributes, present only on cluster features produced by the
	// map engine.
	Cluster    bool   `json:"cluster,omitempty"`
	ClusterID  uint64 `json:"cluster_id,omitempty"`
	PointCount int    `json:"point_count,omitempty"`
}

// Geometry is a GeoJSON point or polygon geometry.  Both variants serialize
// under the standard "coordinates" key; the two fields exist because their
// nesting depth differs by type.
type Geometry struct {
	Type string `json:"type"`

	// Coordinates is [lng, lat] for Type == "Point".
	Coordinates []float64 `json:"-"`

	// Polygon is a list of closed linear rings for Type == "Polygon".
	Polygon [][][2]float64 `json:"-"`
}

// MarshalJSON emits standard GeoJSON geometry.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.Type == "Polygon" {
		return json.Marshal(struct {
			Type        string         `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		}{g.Type, g.Polygon})
	}
	return json.Marshal(struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates,omitempty"`
	}{g.Type, g.Coordinates})
}

// UnmarshalJSON decodes the "coordinates" key into the field matching the
// geometry type.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Type = raw.Type
	g.Coordinates = nil
	g.Polygon = nil
	if len(raw.Coordinates) == 0 {
		return nil
	}
	if raw.Type == "Polygon" {
		return json.Unmarshal(raw.Coordinates, &g.Polygon)
	}
	return json.Unmarshal(raw.Coordinates, &g.Coordinates)
}

// Feature is a single GeoJSON feature.
type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   Geometry          `json:"geometry"`
}

// NewPointFeature constructs a GeoJSON point feature at p.
func NewPointFeature(p Point, props FeatureProperties) Feature {
	return Feature{
		Type:       "Feature",
		Properties: props,
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{p.Lng, p.Lat},
		},
	}
}

// Location returns the feature's coordinate.  The second return value is
// false when the geometry is not a well-formed point.
func (f Feature) Location() (Point, bool) {
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) != 2 {
		return Point{}, false
	}
	p := Point{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]}
	return p, p.IsValid()
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps features in a FeatureCollection.  A nil slice
// becomes an empty (never null) features array on the wire.
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// Polygon is a single closed linear ring, as produced by the circle
// approximation in internal/domain/geo.
type Polygon [][2]float64

// ToFeature wraps the polygon in a GeoJSON feature.
func (p Polygon) ToFeature() Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:    "Polygon",
			Polygon: [][][2]float64{p},
		},
	}
}

// CameraMove describes a flyTo request issued to the map engine.
type CameraMove struct {
	Center     Point   `json:"center"`
	Zoom       float64 `json:"zoom"`
	DurationMS int     `json:"duration_ms"`
}
