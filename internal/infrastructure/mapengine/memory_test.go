package mapengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

func newLoadedEngine() *MemoryEngine {
	e := NewMemoryEngine(geo.Point{Lat: 39.8, Lng: -98.5}, 3, nil)
	e.Load()
	return e
}

func pointFeature(id string, lat, lng, size float64) geo.Feature {
	return geo.NewPointFeature(geo.Point{Lat: lat, Lng: lng}, geo.FeatureProperties{
		ID:   id,
		Size: size,
	})
}

func TestEngine_NotReadyRejectsSources(t *testing.T) {
	e := NewMemoryEngine(geo.Point{}, 3, nil)

	err := e.AddSource(SourceSpec{ID: "customers"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEngineNotReady))

	e.Load()
	assert.NoError(t, e.AddSource(SourceSpec{ID: "customers"}))
}

func TestEngine_LoadEventFiresOnce(t *testing.T) {
	e := NewMemoryEngine(geo.Point{}, 3, nil)
	var loads int
	e.On(EventLoad, func(string) { loads++ })

	e.Load()
	e.Load()
	assert.Equal(t, 1, loads)
	assert.True(t, e.Ready())
}

func TestEngine_SourceLifecycle(t *testing.T) {
	e := newLoadedEngine()

	require.NoError(t, e.AddSource(SourceSpec{ID: "customers"}))
	assert.True(t, e.HasSource("customers"))

	// Duplicate source id is a conflict.
	err := e.AddSource(SourceSpec{ID: "customers"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	require.NoError(t, e.AddLayer(LayerSpec{ID: "points", Type: "circle", Source: "customers"}))
	assert.True(t, e.HasLayer("points"))

	// Removing the source removes dependent layers.
	require.NoError(t, e.RemoveSource("customers"))
	assert.False(t, e.HasSource("customers"))
	assert.False(t, e.HasLayer("points"))

	err = e.SetSourceData("customers", geo.NewFeatureCollection(nil))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSourceNotFound))
}

func TestEngine_LayerRequiresSource(t *testing.T) {
	e := newLoadedEngine()
	err := e.AddLayer(LayerSpec{ID: "orphan", Type: "circle", Source: "missing"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSourceNotFound))

	// Removing an absent layer is a no-op.
	assert.NoError(t, e.RemoveLayer("orphan"))
}

func TestEngine_ClusteringAtLowZoom(t *testing.T) {
	e := newLoadedEngine()

	// Two nearby points plus one far away.  At zoom 3 the nearby pair lands
	// in one grid cell and clusters.
	features := []geo.Feature{
		pointFeature("a", 39.80, -98.50, 12),
		pointFeature("b", 39.81, -98.51, 12),
		pointFeature("c", 34.05, -118.24, 12),
	}
	require.NoError(t, e.AddSource(SourceSpec{
		ID:              "customers",
		Data:            geo.NewFeatureCollection(features),
		Cluster:         true,
		ClusterRadiusPx: 25,
		ClusterMaxZoom:  16,
	}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "clusters", Type: "circle", Source: "customers", Filter: FilterClusters}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "points", Type: "circle", Source: "customers", Filter: FilterPoints}))

	// Query at the centroid of the nearby pair.
	hits, err := e.QueryFeatures(geo.Point{Lat: 39.805, Lng: -98.505}, "clusters")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	cluster := hits[0]
	assert.True(t, cluster.Properties.Cluster)
	assert.Equal(t, 2, cluster.Properties.PointCount)
	assert.NotZero(t, cluster.Properties.ClusterID)

	// The far point renders unclustered.
	hits, err = e.QueryFeatures(geo.Point{Lat: 34.05, Lng: -118.24}, "points")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].Properties.ID)
}

func TestEngine_ClusterLeaves(t *testing.T) {
	e := newLoadedEngine()

	features := []geo.Feature{
		pointFeature("a", 39.80, -98.50, 12),
		pointFeature("b", 39.81, -98.51, 12),
	}
	require.NoError(t, e.AddSource(SourceSpec{
		ID:              "customers",
		Data:            geo.NewFeatureCollection(features),
		Cluster:         true,
		ClusterRadiusPx: 25,
		ClusterMaxZoom:  16,
	}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "clusters", Type: "circle", Source: "customers", Filter: FilterClusters}))

	hits, err := e.QueryFeatures(geo.Point{Lat: 39.805, Lng: -98.505}, "clusters")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	clusterID := hits[0].Properties.ClusterID

	leaves, err := e.ClusterLeaves("customers", clusterID, 10, 0)
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, "a", leaves[0].Properties.ID)
	assert.Equal(t, "b", leaves[1].Properties.ID)

	// Pagination.
	leaves, err = e.ClusterLeaves("customers", clusterID, 1, 1)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "b", leaves[0].Properties.ID)

	// Offset past the end yields an empty slice, not an error.
	leaves, err = e.ClusterLeaves("customers", clusterID, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, leaves)

	// Unknown cluster id.
	_, err = e.ClusterLeaves("customers", 999999, 10, 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClusterNotFound))
}

func TestEngine_ClusterExpansionZoom(t *testing.T) {
	e := newLoadedEngine()

	features := []geo.Feature{
		pointFeature("a", 39.80, -98.50, 12),
		pointFeature("b", 39.81, -98.51, 12),
	}
	require.NoError(t, e.AddSource(SourceSpec{
		ID:              "customers",
		Data:            geo.NewFeatureCollection(features),
		Cluster:         true,
		ClusterRadiusPx: 25,
		ClusterMaxZoom:  16,
	}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "clusters", Type: "circle", Source: "customers", Filter: FilterClusters}))

	hits, err := e.QueryFeatures(geo.Point{Lat: 39.805, Lng: -98.505}, "clusters")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	zoom, err := e.ClusterExpansionZoom("customers", hits[0].Properties.ClusterID)
	require.NoError(t, err)
	assert.Greater(t, zoom, float64(3))
	assert.LessOrEqual(t, zoom, float64(17))
}

func TestEngine_CoLocatedPointsNeverSplit(t *testing.T) {
	e := newLoadedEngine()

	features := []geo.Feature{
		pointFeature("a", 39.80, -98.50, 12),
		pointFeature("b", 39.80, -98.50, 12),
		pointFeature("c", 39.80, -98.50, 12),
	}
	require.NoError(t, e.AddSource(SourceSpec{
		ID:              "customers",
		Data:            geo.NewFeatureCollection(features),
		Cluster:         true,
		ClusterRadiusPx: 25,
		ClusterMaxZoom:  16,
	}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "clusters", Type: "circle", Source: "customers", Filter: FilterClusters}))

	hits, err := e.QueryFeatures(geo.Point{Lat: 39.80, Lng: -98.50}, "clusters")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	zoom, err := e.ClusterExpansionZoom("customers", hits[0].Properties.ClusterID)
	require.NoError(t, err)
	assert.Equal(t, float64(17), zoom) // just past the clustering ceiling
}

func TestEngine_SetSourceDataInvalidatesClusters(t *testing.T) {
	e := newLoadedEngine()

	features := []geo.Feature{
		pointFeature("a", 39.80, -98.50, 12),
		pointFeature("b", 39.81, -98.51, 12),
	}
	require.NoError(t, e.AddSource(SourceSpec{
		ID:              "customers",
		Data:            geo.NewFeatureCollection(features),
		Cluster:         true,
		ClusterRadiusPx: 25,
		ClusterMaxZoom:  16,
	}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "clusters", Type: "circle", Source: "customers", Filter: FilterClusters}))

	hits, err := e.QueryFeatures(geo.Point{Lat: 39.805, Lng: -98.505}, "clusters")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	staleID := hits[0].Properties.ClusterID

	var sourceEvents int
	e.On(EventSourceData, func(string) { sourceEvents++ })

	require.NoError(t, e.SetSourceData("customers", geo.NewFeatureCollection(nil)))
	assert.Equal(t, 1, sourceEvents)

	_, err = e.ClusterLeaves("customers", staleID, 10, 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClusterNotFound))
}

func TestEngine_FlyToUpdatesCamera(t *testing.T) {
	e := newLoadedEngine()

	var moves int
	e.On(EventMove, func(string) { moves++ })

	e.FlyTo(geo.CameraMove{Center: geo.Point{Lat: 40.7, Lng: -74.0}, Zoom: 10.68, DurationMS: 1500})

	cam := e.Camera()
	assert.Equal(t, 40.7, cam.Center.Lat)
	assert.Equal(t, -74.0, cam.Center.Lng)
	assert.Equal(t, 10.68, cam.Zoom)
	assert.Equal(t, 1, moves)
}

func TestEngine_QueryHonorsLayerFilter(t *testing.T) {
	e := newLoadedEngine()

	features := []geo.Feature{pointFeature("solo", 39.80, -98.50, 12)}
	require.NoError(t, e.AddSource(SourceSpec{
		ID:              "customers",
		Data:            geo.NewFeatureCollection(features),
		Cluster:         true,
		ClusterRadiusPx: 25,
		ClusterMaxZoom:  16,
	}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "clusters", Type: "circle", Source: "customers", Filter: FilterClusters}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "points", Type: "circle", Source: "customers", Filter: FilterPoints}))
	require.NoError(t, e.AddLayer(LayerSpec{ID: "fill", Type: "fill", Source: "customers"}))

	// A single point never appears in a cluster layer.
	hits, err := e.QueryFeatures(geo.Point{Lat: 39.80, Lng: -98.50}, "clusters")
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Non-point layer types are skipped by hit testing.
	hits, err = e.QueryFeatures(geo.Point{Lat: 39.80, Lng: -98.50}, "fill")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = e.QueryFeatures(geo.Point{Lat: 39.80, Lng: -98.50}, "points")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "solo", hits[0].Properties.ID)
}
