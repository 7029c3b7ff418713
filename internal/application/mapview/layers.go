package mapview

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/infrastructure/mapengine"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// Source and layer identifiers.  One source per product group so each group
// clusters independently and keeps its own color ramp.
const (
	SourceSATE       = "customers-sate"
	SourceAudioSight = "customers-audiosight"
	SourceOther      = "customers-other"

	LayerClustersSATE       = "clusters-sate"
	LayerClustersAudioSight = "clusters-audiosight"
	LayerClustersOther      = "clusters-other"

	LayerCountSATE       = "cluster-count-sate"
	LayerCountAudioSight = "cluster-count-audiosight"
	LayerCountOther      = "cluster-count-other"

	LayerPointsSATE       = "points-sate"
	LayerPointsAudioSight = "points-audiosight"
	LayerPointsOther      = "points-other"
)

// View modes.  Customer mode renders the map read-only: cluster and point
// interactions are disabled.
const (
	ViewModeAdmin    = "admin"
	ViewModeCustomer = "customer"
)

// clusterLayerSources pairs each cluster layer with its source, in the fixed
// order clicks are resolved.
var clusterLayerSources = []struct{ layer, source string }{
	{LayerClustersSATE, SourceSATE},
	{LayerClustersAudioSight, SourceAudioSight},
	{LayerClustersOther, SourceOther},
}

var pointLayers = []string{LayerPointsSATE, LayerPointsAudioSight, LayerPointsOther}

// expansionState tracks the cluster-expansion flow.  Any failure drops the
// flow back to idle so a half-resolved expansion is never surfaced.
type expansionState int

const (
	expansionIdle expansionState = iota
	expansionClusterClicked
	expansionLeavesResolved
	expansionDisplayed
)

// ClusterExpansion is the resolved result of a cluster click: the cluster's
// member features plus the camera target that splits it apart.
type ClusterExpansion struct {
	Anchor     geo.Point     `json:"anchor"`
	PointCount int           `json:"point_count"`
	Leaves     []geo.Feature `json:"leaves"`
	TargetZoom float64       `json:"target_zoom"`
}

// PointSelection is the resolved result of a point click.  When more than the
// co-location threshold of features share the clicked location, Aggregated is
// true and Features lists all of them; otherwise Features holds the single
// clicked feature.
type PointSelection struct {
	Aggregated bool          `json:"aggregated"`
	Features   []geo.Feature `json:"features"`
}

// LayerManager owns the engine's customer sources and layers: creation after
// engine readiness, wholesale data refresh, and click resolution.
type LayerManager struct {
	engine mapengine.Engine
	cfg    config.MapConfig
	logger logging.Logger

	mu       sync.Mutex
	viewMode string
	state    expansionState
	ready    bool
}

// NewLayerManager constructs a LayerManager.  Call Init before any other
// method.
func NewLayerManager(engine mapengine.Engine, cfg config.MapConfig, logger logging.Logger) *LayerManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LayerManager{
		engine:   engine,
		cfg:      cfg,
		logger:   logger.Named("layers"),
		viewMode: ViewModeAdmin,
	}
}

// Init waits for the engine to become ready, bounded by the configured retry
// budget, then creates all sources and layers.  A not-ready engine after the
// final retry is an ErrCodeEngineInitFailed.
func (m *LayerManager) Init(ctx context.Context) error {
	if err := m.waitReady(ctx); err != nil {
		return err
	}

	for _, sourceID := range []string{SourceSATE, SourceAudioSight, SourceOther} {
		err := m.engine.AddSource(mapengine.SourceSpec{
			ID:              sourceID,
			Data:            geo.NewFeatureCollection(nil),
			Cluster:         true,
			ClusterRadiusPx: m.cfg.ClusterRadiusPx,
			ClusterMaxZoom:  m.cfg.ClusterMaxZoom,
		})
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeEngineInitFailed, "failed to create source").
				WithDetail(sourceID)
		}
	}

	layers := []mapengine.LayerSpec{
		{ID: LayerClustersSATE, Type: "circle", Source: SourceSATE, Filter: mapengine.FilterClusters,
			Paint: clusterPaint("#3b82f6")},
		{ID: LayerCountSATE, Type: "symbol", Source: SourceSATE, Filter: mapengine.FilterClusters,
			Paint: map[string]interface{}{"text-color": "#ffffff"}},
		{ID: LayerClustersAudioSight, Type: "circle", Source: SourceAudioSight, Filter: mapengine.FilterClusters,
			Paint: clusterPaint("#ef4444")},
		{ID: LayerCountAudioSight, Type: "symbol", Source: SourceAudioSight, Filter: mapengine.FilterClusters,
			Paint: map[string]interface{}{"text-color": "#ffffff"}},
		{ID: LayerClustersOther, Type: "circle", Source: SourceOther, Filter: mapengine.FilterClusters,
			Paint: clusterPaint("#10b981")},
		{ID: LayerCountOther, Type: "symbol", Source: SourceOther, Filter: mapengine.FilterClusters,
			Paint: map[string]interface{}{"text-color": "#ffffff"}},
		{ID: LayerPointsSATE, Type: "circle", Source: SourceSATE, Filter: mapengine.FilterPoints,
			Paint: map[string]interface{}{"circle-color": "#3b82f6", "circle-stroke-width": 1.5}},
		{ID: LayerPointsAudioSight, Type: "circle", Source: SourceAudioSight, Filter: mapengine.FilterPoints,
			Paint: map[string]interface{}{"circle-color": "#ef4444", "circle-stroke-width": 2.5}},
		{ID: LayerPointsOther, Type: "circle", Source: SourceOther, Filter: mapengine.FilterPoints,
			Paint: map[string]interface{}{"circle-stroke-width": 1.5}},
	}
	for _, spec := range layers {
		if err := m.engine.AddLayer(spec); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeEngineInitFailed, "failed to create layer").
				WithDetail(spec.ID)
		}
	}

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()

	m.logger.Info("map layers initialized",
		logging.Int("sources", 3),
		logging.Int("layers", len(layers)),
	)
	return nil
}

// clusterPaint mirrors the display color ramp: clusters deepen toward the
// product color as point counts grow.
func clusterPaint(baseColor string) map[string]interface{} {
	return map[string]interface{}{
		"circle-color":        baseColor,
		"circle-stroke-color": "#fff",
		"circle-stroke-width": 2,
		"circle-opacity":      0.85,
	}
}

// waitReady polls engine readiness up to the configured attempt budget.
func (m *LayerManager) waitReady(ctx context.Context) error {
	attempts := m.cfg.ReadyRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval := m.cfg.ReadyRetryInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	for i := 0; i < attempts; i++ {
		if m.engine.Ready() {
			return nil
		}
		m.logger.Debug("engine not ready, retrying", logging.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeEngineInitFailed, "engine readiness wait canceled")
		case <-time.After(interval):
		}
	}

	return apperrors.New(apperrors.ErrCodeEngineInitFailed, "engine did not become ready").
		WithDetail("retry budget exhausted")
}

// Ready reports whether Init has completed.
func (m *LayerManager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// SetViewMode switches between admin and customer view.  Unknown modes are
// coerced to admin.
func (m *LayerManager) SetViewMode(mode string) {
	if mode != ViewModeCustomer {
		mode = ViewModeAdmin
	}
	m.mu.Lock()
	m.viewMode = mode
	m.mu.Unlock()
}

// ViewMode returns the active view mode.
func (m *LayerManager) ViewMode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewMode
}

// Refresh replaces all three sources' data wholesale from the given feature
// set.  Features with out-of-range coordinates were already dropped by the
// builder; Refresh partitions the remainder by marker color.
func (m *LayerManager) Refresh(features []geo.Feature) error {
	if !m.Ready() {
		return apperrors.New(apperrors.ErrCodeEngineNotReady, "layers not initialized")
	}

	sate, audiosight, other := Partition(features)

	for _, part := range []struct {
		sourceID string
		features []geo.Feature
	}{
		{SourceSATE, sate},
		{SourceAudioSight, audiosight},
		{SourceOther, other},
	} {
		if err := m.engine.SetSourceData(part.sourceID, geo.NewFeatureCollection(part.features)); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeLayerRefreshFailed, "failed to refresh source").
				WithDetail(part.sourceID)
		}
	}

	m.logger.Debug("sources refreshed",
		logging.Int("sate", len(sate)),
		logging.Int("audiosight", len(audiosight)),
		logging.Int("other", len(other)),
	)
	return nil
}

// HandleClusterClick resolves a click on a cluster marker: it finds the
// cluster under the cursor, loads its member features, and computes the
// camera zoom that splits it.  Interactions are disabled in customer view.
// A click that hits no cluster returns (nil, nil).  Any resolution failure
// returns an error and leaves no partial result.
func (m *LayerManager) HandleClusterClick(p geo.Point) (*ClusterExpansion, error) {
	if m.ViewMode() == ViewModeCustomer {
		return nil, nil
	}

	m.setState(expansionIdle)

	for _, pair := range clusterLayerSources {
		layerID, sourceID := pair.layer, pair.source
		hits, err := m.engine.QueryFeatures(p, layerID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeExpansionUnresolved, "cluster hit test failed")
		}
		if len(hits) == 0 {
			continue
		}

		hit := hits[0]
		if !hit.Properties.Cluster || hit.Properties.ClusterID == 0 {
			continue
		}
		m.setState(expansionClusterClicked)

		anchor, _ := hit.Location()
		leaves, err := m.engine.ClusterLeaves(sourceID, hit.Properties.ClusterID, hit.Properties.PointCount, 0)
		if err != nil {
			m.setState(expansionIdle)
			return nil, apperrors.Wrap(err, apperrors.ErrCodeExpansionUnresolved, "failed to load cluster leaves")
		}
		m.setState(expansionLeavesResolved)

		targetZoom, err := m.engine.ClusterExpansionZoom(sourceID, hit.Properties.ClusterID)
		if err != nil {
			// The expansion zoom is advisory: fall back to two levels past the
			// current camera rather than abandoning the resolved leaves.
			targetZoom = m.engine.Camera().Zoom + 2
		}
		m.setState(expansionDisplayed)

		return &ClusterExpansion{
			Anchor:     anchor,
			PointCount: hit.Properties.PointCount,
			Leaves:     leaves,
			TargetZoom: targetZoom,
		}, nil
	}

	return nil, nil
}

// HandlePointClick resolves a click on an unclustered marker.  All point
// layers are queried and features co-located with the clicked one (within the
// configured epsilon) are gathered; when their number exceeds the co-location
// threshold an aggregated selection is returned, otherwise the single nearest
// feature.  Interactions are disabled in customer view.
func (m *LayerManager) HandlePointClick(p geo.Point) (*PointSelection, error) {
	if m.ViewMode() == ViewModeCustomer {
		return nil, nil
	}

	var anchor *geo.Point
	var atLocation []geo.Feature

	for _, layerID := range pointLayers {
		hits, err := m.engine.QueryFeatures(p, layerID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "point hit test failed")
		}
		for _, f := range hits {
			loc, ok := f.Location()
			if !ok {
				continue
			}
			if anchor == nil {
				anchor = &loc
			}
			if math.Abs(loc.Lng-anchor.Lng) < m.cfg.CoLocationEpsilonDeg &&
				math.Abs(loc.Lat-anchor.Lat) < m.cfg.CoLocationEpsilonDeg {
				atLocation = append(atLocation, f)
			}
		}
	}

	if anchor == nil {
		return nil, nil
	}

	if len(atLocation) > m.cfg.CoLocationThreshold {
		return &PointSelection{Aggregated: true, Features: atLocation}, nil
	}
	return &PointSelection{Aggregated: false, Features: atLocation[:1]}, nil
}

func (m *LayerManager) setState(s expansionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
