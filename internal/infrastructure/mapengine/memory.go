package mapengine

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

const (
	// tileSize is the web-mercator tile edge in pixels.
	tileSize = 512

	// hitSlopPx widens feature hit testing so near-misses still register.
	hitSlopPx = 4

	// clusterHitRadiusPx is the hit-test radius for cluster markers.
	clusterHitRadiusPx = 18
)

// clusterEntry records one rendered cluster: its synthetic feature plus the
// indices of the source features it absorbs.
type clusterEntry struct {
	feature geo.Feature
	members []int
}

// zoomIndex is the clustered view of a source at one integer zoom level.
type zoomIndex struct {
	rendered []geo.Feature
	clusters map[uint64]*clusterEntry
}

type memorySource struct {
	spec    SourceSpec
	indices map[int]*zoomIndex // lazily built per integer zoom
	nextID  uint64             // monotonically increasing cluster id ordinal
}

// MemoryEngine is an in-process Engine implementation.  It clusters point
// features on a web-mercator pixel grid, supports hit testing against the
// current camera, and applies camera moves synchronously.
type MemoryEngine struct {
	mu       sync.RWMutex
	ready    bool
	sources  map[string]*memorySource
	layers   map[string]LayerSpec
	order    []string // layer insertion order, later layers hit-test first
	camera   CameraState
	handlers map[string][]EventHandler
	logger   logging.Logger
}

// NewMemoryEngine constructs an engine positioned at the given camera.  The
// engine starts in the not-ready state; call Load to complete initialization.
func NewMemoryEngine(center geo.Point, zoom float64, logger logging.Logger) *MemoryEngine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MemoryEngine{
		sources:  make(map[string]*memorySource),
		layers:   make(map[string]LayerSpec),
		camera:   CameraState{Center: center, Zoom: zoom},
		handlers: make(map[string][]EventHandler),
		logger:   logger.Named("mapengine"),
	}
}

// Load completes engine initialization, marks it ready, and fires the load
// event.  Calling Load more than once is a no-op.
func (e *MemoryEngine) Load() {
	e.mu.Lock()
	if e.ready {
		e.mu.Unlock()
		return
	}
	e.ready = true
	e.mu.Unlock()

	e.logger.Debug("engine loaded")
	e.emit(EventLoad)
}

// Ready implements Engine.
func (e *MemoryEngine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// On implements Engine.
func (e *MemoryEngine) On(event string, handler EventHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	e.handlers[event] = append(e.handlers[event], handler)
	e.mu.Unlock()
}

func (e *MemoryEngine) emit(event string) {
	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.handlers[event]...)
	e.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}

// AddSource implements Engine.
func (e *MemoryEngine) AddSource(spec SourceSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return apperrors.New(apperrors.ErrCodeEngineNotReady, "engine is not ready")
	}
	if _, exists := e.sources[spec.ID]; exists {
		return apperrors.New(apperrors.CodeConflict, "source already exists").WithDetail(spec.ID)
	}

	e.sources[spec.ID] = &memorySource{
		spec:    spec,
		indices: make(map[int]*zoomIndex),
	}
	return nil
}

// SetSourceData implements Engine.
func (e *MemoryEngine) SetSourceData(sourceID string, data geo.FeatureCollection) error {
	e.mu.Lock()
	src, ok := e.sources[sourceID]
	if !ok {
		e.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeSourceNotFound, "source not found").WithDetail(sourceID)
	}
	src.spec.Data = data
	src.indices = make(map[int]*zoomIndex)
	e.mu.Unlock()

	e.emit(EventSourceData)
	return nil
}

// RemoveSource implements Engine.
func (e *MemoryEngine) RemoveSource(sourceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sources[sourceID]; !ok {
		return apperrors.New(apperrors.ErrCodeSourceNotFound, "source not found").WithDetail(sourceID)
	}
	delete(e.sources, sourceID)

	kept := e.order[:0]
	for _, id := range e.order {
		if e.layers[id].Source == sourceID {
			delete(e.layers, id)
			continue
		}
		kept = append(kept, id)
	}
	e.order = kept
	return nil
}

// HasSource implements Engine.
func (e *MemoryEngine) HasSource(sourceID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.sources[sourceID]
	return ok
}

// AddLayer implements Engine.
func (e *MemoryEngine) AddLayer(spec LayerSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return apperrors.New(apperrors.ErrCodeEngineNotReady, "engine is not ready")
	}
	if _, ok := e.sources[spec.Source]; !ok {
		return apperrors.New(apperrors.ErrCodeSourceNotFound, "layer references unknown source").
			WithDetail(fmt.Sprintf("layer=%s source=%s", spec.ID, spec.Source))
	}
	if _, exists := e.layers[spec.ID]; exists {
		return apperrors.New(apperrors.CodeConflict, "layer already exists").WithDetail(spec.ID)
	}

	e.layers[spec.ID] = spec
	e.order = append(e.order, spec.ID)
	return nil
}

// RemoveLayer implements Engine.
func (e *MemoryEngine) RemoveLayer(layerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.layers[layerID]; !ok {
		return nil
	}
	delete(e.layers, layerID)
	for i, id := range e.order {
		if id == layerID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// HasLayer implements Engine.
func (e *MemoryEngine) HasLayer(layerID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.layers[layerID]
	return ok
}

// FlyTo implements Engine.  The move is applied immediately; DurationMS is
// recorded for observability only.
func (e *MemoryEngine) FlyTo(move geo.CameraMove) {
	e.mu.Lock()
	e.camera = CameraState{Center: move.Center, Zoom: move.Zoom}
	e.mu.Unlock()

	e.logger.Debug("camera moved",
		logging.Float64("lng", move.Center.Lng),
		logging.Float64("lat", move.Center.Lat),
		logging.Float64("zoom", move.Zoom),
		logging.Int("duration_ms", move.DurationMS),
	)
	e.emit(EventMove)
}

// Camera implements Engine.
func (e *MemoryEngine) Camera() CameraState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.camera
}

// project converts a coordinate to world pixel space at the given zoom.
func project(p geo.Point, zoom float64) (x, y float64) {
	worldSize := tileSize * math.Pow(2, zoom)
	x = (p.Lng + 180) / 360 * worldSize
	sinLat := math.Sin(p.Lat * math.Pi / 180)
	y = (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * worldSize
	return x, y
}

// indexAt returns the zoom index for src at the given integer zoom, building
// it if necessary.  Caller must hold e.mu for writing.
func (e *MemoryEngine) indexAt(src *memorySource, zoom int) *zoomIndex {
	if idx, ok := src.indices[zoom]; ok {
		return idx
	}

	idx := &zoomIndex{clusters: make(map[uint64]*clusterEntry)}
	features := src.spec.Data.Features

	if !src.spec.Cluster || zoom > src.spec.ClusterMaxZoom {
		idx.rendered = append(idx.rendered, features...)
		src.indices[zoom] = idx
		return idx
	}

	cellSize := src.spec.ClusterRadiusPx
	if cellSize <= 0 {
		cellSize = 25
	}

	type cell struct{ cx, cy int }
	grid := make(map[cell][]int)
	var cellOrder []cell
	for i, f := range features {
		loc, ok := f.Location()
		if !ok {
			continue
		}
		x, y := project(loc, float64(zoom))
		c := cell{int(math.Floor(x / cellSize)), int(math.Floor(y / cellSize))}
		if _, seen := grid[c]; !seen {
			cellOrder = append(cellOrder, c)
		}
		grid[c] = append(grid[c], i)
	}

	for _, c := range cellOrder {
		members := grid[c]
		if len(members) == 1 {
			idx.rendered = append(idx.rendered, features[members[0]])
			continue
		}

		var sumLng, sumLat float64
		for _, m := range members {
			loc, _ := features[m].Location()
			sumLng += loc.Lng
			sumLat += loc.Lat
		}
		centroid := geo.Point{
			Lng: sumLng / float64(len(members)),
			Lat: sumLat / float64(len(members)),
		}

		src.nextID++
		clusterID := uint64(zoom+1)<<40 | src.nextID
		clusterFeature := geo.NewPointFeature(centroid, geo.FeatureProperties{
			Cluster:    true,
			ClusterID:  clusterID,
			PointCount: len(members),
		})

		idx.rendered = append(idx.rendered, clusterFeature)
		idx.clusters[clusterID] = &clusterEntry{
			feature: clusterFeature,
			members: append([]int(nil), members...),
		}
	}

	src.indices[zoom] = idx
	return idx
}

// layerMatches reports whether a feature passes a layer's filter.
func layerMatches(filter FeatureFilter, f geo.Feature) bool {
	switch filter {
	case FilterClusters:
		return f.Properties.Cluster
	case FilterPoints:
		return !f.Properties.Cluster
	default:
		return true
	}
}

// QueryFeatures implements Engine.  Features are hit-tested in pixel space at
// the camera's current zoom; matches are returned nearest first.  Layers not
// bound to point-rendering types ("circle", "symbol") are skipped.
func (e *MemoryEngine) QueryFeatures(p geo.Point, layerIDs ...string) ([]geo.Feature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return nil, apperrors.New(apperrors.ErrCodeEngineNotReady, "engine is not ready")
	}

	zoom := int(math.Floor(e.camera.Zoom))
	px, py := project(p, float64(zoom))

	type hit struct {
		feature geo.Feature
		dist    float64
	}
	var hits []hit

	for _, layerID := range layerIDs {
		layer, ok := e.layers[layerID]
		if !ok {
			continue
		}
		if layer.Type != "circle" && layer.Type != "symbol" {
			continue
		}
		src, ok := e.sources[layer.Source]
		if !ok {
			continue
		}

		idx := e.indexAt(src, zoom)
		for _, f := range idx.rendered {
			if !layerMatches(layer.Filter, f) {
				continue
			}
			loc, ok := f.Location()
			if !ok {
				continue
			}
			fx, fy := project(loc, float64(zoom))
			dist := math.Hypot(fx-px, fy-py)

			radius := f.Properties.Size
			if f.Properties.Cluster {
				radius = clusterHitRadiusPx
			}
			if radius <= 0 {
				radius = 8
			}
			if dist <= radius+hitSlopPx {
				hits = append(hits, hit{feature: f, dist: dist})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]geo.Feature, len(hits))
	for i, h := range hits {
		out[i] = h.feature
	}
	return out, nil
}

// findCluster resolves a cluster id within a source.  Cluster ids encode the
// zoom they were built at, so resolution does not depend on the camera.
// Caller must hold e.mu for writing.
func (e *MemoryEngine) findCluster(src *memorySource, clusterID uint64) (*clusterEntry, bool) {
	zoom := int(clusterID>>40) - 1
	if zoom < 0 {
		return nil, false
	}
	idx, ok := src.indices[zoom]
	if !ok {
		return nil, false
	}
	entry, ok := idx.clusters[clusterID]
	return entry, ok
}

// ClusterLeaves implements Engine.
func (e *MemoryEngine) ClusterLeaves(sourceID string, clusterID uint64, limit, offset int) ([]geo.Feature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, ok := e.sources[sourceID]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeSourceNotFound, "source not found").WithDetail(sourceID)
	}
	entry, ok := e.findCluster(src, clusterID)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeClusterNotFound, "cluster not found").
			WithDetail(fmt.Sprintf("source=%s cluster_id=%d", sourceID, clusterID))
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(entry.members) {
		return []geo.Feature{}, nil
	}
	end := len(entry.members)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]geo.Feature, 0, end-offset)
	for _, m := range entry.members[offset:end] {
		out = append(out, src.spec.Data.Features[m])
	}
	return out, nil
}

// ClusterExpansionZoom implements Engine.  It returns the smallest integer
// zoom at which the cluster's members separate into more than one marker.
// Fully co-located members never separate; for those the zoom just past the
// clustering ceiling is returned.
func (e *MemoryEngine) ClusterExpansionZoom(sourceID string, clusterID uint64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, ok := e.sources[sourceID]
	if !ok {
		return 0, apperrors.New(apperrors.ErrCodeSourceNotFound, "source not found").WithDetail(sourceID)
	}
	entry, ok := e.findCluster(src, clusterID)
	if !ok {
		return 0, apperrors.New(apperrors.ErrCodeClusterNotFound, "cluster not found").
			WithDetail(fmt.Sprintf("source=%s cluster_id=%d", sourceID, clusterID))
	}

	cellSize := src.spec.ClusterRadiusPx
	if cellSize <= 0 {
		cellSize = 25
	}

	baseZoom := int(clusterID>>40) - 1
	for zoom := baseZoom + 1; zoom <= src.spec.ClusterMaxZoom; zoom++ {
		cells := make(map[[2]int]struct{})
		for _, m := range entry.members {
			loc, ok := src.spec.Data.Features[m].Location()
			if !ok {
				continue
			}
			x, y := project(loc, float64(zoom))
			cells[[2]int{int(math.Floor(x / cellSize)), int(math.Floor(y / cellSize))}] = struct{}{}
			if len(cells) > 1 {
				return float64(zoom), nil
			}
		}
	}

	return float64(src.spec.ClusterMaxZoom + 1), nil
}

var _ Engine = (*MemoryEngine)(nil)
