// Package mapengine defines the map rendering-engine contract used by the
// application layer, plus an in-process implementation that supports source
// management, point clustering, hit testing, and camera control without an
// attached display.
package mapengine

import (
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// Event names emitted by an Engine.
const (
	EventLoad       = "load"
	EventMove       = "move"
	EventSourceData = "sourcedata"
)

// SourceSpec describes a GeoJSON source.  When Cluster is true the engine
// groups point features within ClusterRadiusPx of each other (in screen
// pixels) up to ClusterMaxZoom.
type SourceSpec struct {
	ID              string
	Data            geo.FeatureCollection
	Cluster         bool
	ClusterRadiusPx float64
	ClusterMaxZoom  int
}

// LayerSpec describes a styled rendering layer bound to a source.  Filter
// restricts the layer to clustered or unclustered features; Paint carries
// engine-opaque style properties.
type LayerSpec struct {
	ID     string
	Type   string // "circle" | "fill" | "line" | "symbol"
	Source string
	Filter FeatureFilter
	Paint  map[string]interface{}
}

// FeatureFilter selects which of a source's features a layer renders.
type FeatureFilter int

const (
	// FilterAll renders every feature.
	FilterAll FeatureFilter = iota
	// FilterClusters renders only cluster features.
	FilterClusters
	// FilterPoints renders only unclustered point features.
	FilterPoints
)

// CameraState is the engine's current viewport.
type CameraState struct {
	Center geo.Point
	Zoom   float64
}

// EventHandler receives engine events.  Handlers run synchronously on the
// goroutine that triggered the event.
type EventHandler func(event string)

// Engine is the rendering-engine contract.  Implementations must be safe for
// concurrent use.
type Engine interface {
	// Ready reports whether the engine has finished loading and can accept
	// sources and layers.
	Ready() bool

	// AddSource registers a GeoJSON source.  Adding a source whose ID already
	// exists returns a conflict error.
	AddSource(spec SourceSpec) error

	// SetSourceData replaces a source's data wholesale.  Cluster indices are
	// invalidated and rebuilt lazily.
	SetSourceData(sourceID string, data geo.FeatureCollection) error

	// RemoveSource removes a source and every layer bound to it.
	RemoveSource(sourceID string) error

	// HasSource reports whether the source exists.
	HasSource(sourceID string) bool

	// AddLayer registers a rendering layer.  The referenced source must exist.
	AddLayer(spec LayerSpec) error

	// RemoveLayer removes a layer.  Removing an absent layer is a no-op.
	RemoveLayer(layerID string) error

	// HasLayer reports whether the layer exists.
	HasLayer(layerID string) bool

	// QueryFeatures returns the features of the given layers rendered at the
	// current camera position that hit-test against p, nearest first.
	QueryFeatures(p geo.Point, layerIDs ...string) ([]geo.Feature, error)

	// ClusterLeaves returns up to limit member features of a cluster,
	// starting at offset.
	ClusterLeaves(sourceID string, clusterID uint64, limit, offset int) ([]geo.Feature, error)

	// ClusterExpansionZoom returns the smallest zoom at which the cluster
	// splits apart.
	ClusterExpansionZoom(sourceID string, clusterID uint64) (float64, error)

	// FlyTo animates the camera to the target position.  The in-process
	// implementation applies the move immediately and records the animation
	// duration for observability.
	FlyTo(move geo.CameraMove)

	// Camera returns the current viewport.
	Camera() CameraState

	// On registers a handler for the named event.
	On(event string, handler EventHandler)
}
