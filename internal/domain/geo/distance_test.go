package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geotypes "github.com/mapplot/customer-atlas/pkg/types/geo"
)

func TestHaversineMeters_KnownDistances(t *testing.T) {
	nyc := geotypes.Point{Lat: 40.7128, Lng: -74.0060}
	la := geotypes.Point{Lat: 34.0522, Lng: -118.2437}

	// NYC to LA is roughly 3936 km.
	d := HaversineMeters(nyc, la)
	assert.InDelta(t, 3.936e6, d, 20e3)

	assert.Zero(t, HaversineMeters(nyc, nyc))
	assert.InDelta(t, HaversineMeters(nyc, la), HaversineMeters(la, nyc), 1e-6)
}

func TestHaversineMeters_SmallDistance(t *testing.T) {
	a := geotypes.Point{Lat: 39.8, Lng: -98.5}
	b := geotypes.Point{Lat: 39.8, Lng: -98.501}

	// 0.001 deg of longitude at ~40°N is roughly 85 m.
	d := HaversineMeters(a, b)
	assert.InDelta(t, 85.5, d, 1.5)
}

func TestMilesToMeters(t *testing.T) {
	assert.InDelta(t, 1609.34, MilesToMeters(1), 1e-9)
	assert.InDelta(t, 40233.5, MilesToMeters(25), 0.01)
}

func TestCirclePolygon_ClosedRing(t *testing.T) {
	center := geotypes.Point{Lat: 39.8, Lng: -98.5}
	ring := CirclePolygon(center, MilesToMeters(25))

	require.Len(t, ring, 65)
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestCirclePolygon_VerticesNearRadius(t *testing.T) {
	center := geotypes.Point{Lat: 39.8, Lng: -98.5}
	radius := MilesToMeters(25)
	ring := CirclePolygon(center, radius)

	for _, v := range ring {
		d := HaversineMeters(center, geotypes.Point{Lng: v[0], Lat: v[1]})
		// The equirectangular approximation stays within ~2% at mid latitudes.
		assert.InEpsilon(t, radius, d, 0.02)
	}
}

func TestWithinRadius(t *testing.T) {
	center := geotypes.Point{Lat: 39.8, Lng: -98.5}
	near := geotypes.Point{Lat: 39.81, Lng: -98.51}
	far := geotypes.Point{Lat: 45.0, Lng: -98.5}

	assert.True(t, WithinRadius(center, near, MilesToMeters(5)))
	assert.False(t, WithinRadius(center, far, MilesToMeters(5)))
	assert.True(t, WithinRadius(center, center, 0))
}

func TestZoomForRadiusMiles(t *testing.T) {
	assert.Equal(t, float64(13), ZoomForRadiusMiles(5))
	assert.Equal(t, float64(12), ZoomForRadiusMiles(10))
	assert.InDelta(t, 10.678, ZoomForRadiusMiles(25), 0.01)

	// Clamped at both ends.
	assert.Equal(t, float64(13), ZoomForRadiusMiles(1))
	assert.Equal(t, float64(6), ZoomForRadiusMiles(10000))
	assert.Equal(t, float64(13), ZoomForRadiusMiles(0))
	assert.False(t, math.IsNaN(ZoomForRadiusMiles(-3)))
}
