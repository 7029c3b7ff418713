// Package geo implements the spherical-geometry primitives used by the map
// layers: great-circle distance, radius-circle polygon generation, and
// coordinate validation.
package geo

import (
	"math"

	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

const (
	// earthRadiusMeters is the mean Earth radius used for haversine distance.
	earthRadiusMeters = 6371e3

	// metersPerMile converts statute miles to meters.
	metersPerMile = 1609.34

	// Degrees-to-kilometer scale factors for the equirectangular circle
	// approximation.  One degree of longitude spans 111.320 km at the equator
	// and shrinks with cos(latitude); one degree of latitude spans 110.574 km
	// everywhere.
	kmPerDegreeLngAtEquator = 111.320
	kmPerDegreeLat          = 110.574

	// circleSegments is the number of vertices used to approximate a circle.
	circleSegments = 64
)

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b geo.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// MilesToMeters converts a distance in statute miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * metersPerMile
}

// CirclePolygon approximates a circle of the given radius (in meters) around
// center as a closed 64-segment polygon ring.  The approximation is
// equirectangular: longitude offsets are scaled by cos(latitude), which is
// accurate enough for display radii of a few hundred kilometers away from the
// poles.  The returned ring's last vertex repeats the first.
func CirclePolygon(center geo.Point, radiusMeters float64) geo.Polygon {
	radiusKm := radiusMeters / 1000

	distanceLngDeg := radiusKm / (kmPerDegreeLngAtEquator * math.Cos(center.Lat*math.Pi/180))
	distanceLatDeg := radiusKm / kmPerDegreeLat

	ring := make(geo.Polygon, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		theta := (float64(i) / float64(circleSegments)) * (2 * math.Pi)
		x := distanceLngDeg * math.Cos(theta)
		y := distanceLatDeg * math.Sin(theta)
		ring = append(ring, [2]float64{center.Lng + x, center.Lat + y})
	}
	ring = append(ring, ring[0])
	return ring
}

// WithinRadius reports whether candidate lies within radiusMeters of center
// by great-circle distance.
func WithinRadius(center, candidate geo.Point, radiusMeters float64) bool {
	return HaversineMeters(center, candidate) <= radiusMeters
}

// ZoomForRadiusMiles returns the camera zoom that frames a radius circle of
// the given size: zoom 13 at 5 miles, one level out per doubling, clamped to
// the range [6, 13].
func ZoomForRadiusMiles(miles float64) float64 {
	if miles <= 0 {
		return 13
	}
	zoom := 13 - math.Log2(miles/5)
	return math.Max(6, math.Min(13, zoom))
}
