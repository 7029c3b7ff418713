package mapview

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mapplot/customer-atlas/internal/application/filter"
	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/domain/customer"
	domaingeo "github.com/mapplot/customer-atlas/internal/domain/geo"
	"github.com/mapplot/customer-atlas/internal/infrastructure/mapengine"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// Radius overlay source and layer identifiers.
const (
	SourceRadius       = "zip-radius"
	LayerRadiusCircle  = "zip-radius-circle"
	LayerRadiusOutline = "zip-radius-outline"
)

// Geocoder resolves a postal code to a representative coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, postalCode string) (geo.Point, error)
}

// CleanPostalCode strips every non-digit character and reports whether what
// remains is a well-formed 5-digit US postal code.
func CleanPostalCode(raw string) (string, bool) {
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	clean := sb.String()
	return clean, len(clean) == 5
}

// RadiusQuery is one radius-search request.
type RadiusQuery struct {
	// PostalCode is the raw user input; it is cleaned before geocoding.
	PostalCode string

	// Miles is the search radius.  Non-positive values use the configured
	// default.
	Miles float64

	// Base carries the non-radius filter predicates (states, statuses, dates,
	// products) that the in-area count must still respect.
	Base filter.Criteria

	// Customers is the full normalized customer set the count runs over.
	Customers []customer.Customer
}

// RadiusResult is the current radius-search state.
type RadiusResult struct {
	// Active is true when a geocoded center is being displayed.
	Active bool `json:"active"`

	// Center is the geocoded coordinate, nil when inactive.
	Center *geo.Point `json:"center,omitempty"`

	// Count is the number of matching customers within the radius.  It is nil
	// when no search ran or the geocoder failed, and zero when the postal
	// code produced no geocoding result.
	Count *int `json:"count,omitempty"`

	// Miles is the radius the result was computed for.
	Miles float64 `json:"miles"`

	// Generation identifies which SetQuery call produced this result.
	Generation uint64 `json:"generation"`
}

// RadiusController runs the debounced postal-code radius search: geocode,
// count customers in the area, draw the radius circle, and move the camera.
// Rapid successive queries are coalesced by the debounce window and resolved
// last-write-wins: a query's results are discarded if a newer query was
// issued while it was in flight.
type RadiusController struct {
	geocoder Geocoder
	engine   mapengine.Engine
	filters  *filter.Engine
	cfg      config.RadiusConfig
	logger   logging.Logger

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	result     RadiusResult

	// base and customers are the snapshot the in-area count runs over.  They
	// are replaced by SetQuery and by Rebase, so a resolution that completes
	// after a dataset refresh counts against the refreshed data, never the
	// snapshot it was scheduled with.
	base      filter.Criteria
	customers []customer.Customer
}

// NewRadiusController constructs a RadiusController.
func NewRadiusController(
	geocoder Geocoder,
	engine mapengine.Engine,
	filters *filter.Engine,
	cfg config.RadiusConfig,
	logger logging.Logger,
) *RadiusController {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RadiusController{
		geocoder: geocoder,
		engine:   engine,
		filters:  filters,
		cfg:      cfg,
		logger:   logger.Named("radius"),
	}
}

// SetQuery schedules a radius search after the debounce window.  A blank or
// malformed postal code clears the search immediately.  The returned
// generation identifies the request; results from superseded generations are
// never applied.
func (r *RadiusController) SetQuery(q RadiusQuery) uint64 {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.base = q.Base
	r.customers = q.Customers
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	clean, ok := CleanPostalCode(q.PostalCode)
	if !ok {
		r.result = RadiusResult{Generation: gen}
		r.mu.Unlock()
		r.clearCircle()
		r.logger.Debug("radius search cleared", logging.String("postal_code", q.PostalCode))
		return gen
	}

	if q.Miles <= 0 {
		q.Miles = r.cfg.DefaultMiles
	}

	debounce := r.cfg.Debounce
	if debounce <= 0 {
		debounce = time.Millisecond
	}
	r.timer = time.AfterFunc(debounce, func() {
		r.resolve(gen, clean, q)
	})
	r.mu.Unlock()
	return gen
}

// Result returns the current radius-search state.
func (r *RadiusController) Result() RadiusResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Rebase replaces the dataset snapshot after a refresh or criteria change and
// recomputes the in-area count for an active search.  In-flight resolutions
// pick up the replaced snapshot, so their results always reflect the newest
// dataset.
func (r *RadiusController) Rebase(base filter.Criteria, customers []customer.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.base = base
	r.customers = customers

	if !r.result.Active || r.result.Center == nil {
		return
	}
	criteria := base
	criteria.RadiusCenter = r.result.Center
	criteria.RadiusMeters = domaingeo.MilesToMeters(r.result.Miles)
	count := r.filters.Count(customers, criteria)
	r.result.Count = &count
}

// resolve executes a scheduled query.  It geocodes, applies the count, draws
// the circle, and flies the camera, unless a newer generation superseded it.
func (r *RadiusController) resolve(gen uint64, postalCode string, q RadiusQuery) {
	ctx := context.Background()
	center, err := r.geocoder.Geocode(ctx, postalCode)

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		r.logger.Debug("discarding superseded radius result",
			logging.String("postal_code", postalCode))
		return
	}

	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeGeocodeNoResult) {
			zero := 0
			r.result = RadiusResult{Count: &zero, Miles: q.Miles, Generation: gen}
		} else {
			r.result = RadiusResult{Miles: q.Miles, Generation: gen}
		}
		r.mu.Unlock()
		r.clearCircle()
		r.logger.Warn("radius geocode failed",
			logging.String("postal_code", postalCode),
			logging.Err(err),
		)
		return
	}

	radiusMeters := domaingeo.MilesToMeters(q.Miles)

	criteria := r.base
	criteria.RadiusCenter = &center
	criteria.RadiusMeters = radiusMeters
	count := r.filters.Count(r.customers, criteria)

	r.result = RadiusResult{
		Active:     true,
		Center:     &center,
		Count:      &count,
		Miles:      q.Miles,
		Generation: gen,
	}
	r.mu.Unlock()

	r.drawCircle(center, radiusMeters)
	r.engine.FlyTo(geo.CameraMove{
		Center:     center,
		Zoom:       domaingeo.ZoomForRadiusMiles(q.Miles),
		DurationMS: int(r.cfg.FlyDuration / time.Millisecond),
	})

	r.logger.Info("radius search resolved",
		logging.String("postal_code", postalCode),
		logging.Float64("miles", q.Miles),
		logging.Int("count", count),
	)
}

// drawCircle replaces the radius overlay with a circle polygon around center.
func (r *RadiusController) drawCircle(center geo.Point, radiusMeters float64) {
	r.clearCircle()

	circle := domaingeo.CirclePolygon(center, radiusMeters)
	if err := r.engine.AddSource(mapengine.SourceSpec{
		ID:   SourceRadius,
		Data: geo.NewFeatureCollection([]geo.Feature{circle.ToFeature()}),
	}); err != nil {
		r.logger.Warn("failed to add radius source", logging.Err(err))
		return
	}

	layers := []mapengine.LayerSpec{
		{ID: LayerRadiusCircle, Type: "fill", Source: SourceRadius,
			Paint: map[string]interface{}{"fill-color": "#3b82f6", "fill-opacity": 0.15}},
		{ID: LayerRadiusOutline, Type: "line", Source: SourceRadius,
			Paint: map[string]interface{}{"line-color": "#3b82f6", "line-width": 3, "line-opacity": 0.8}},
	}
	for _, spec := range layers {
		if err := r.engine.AddLayer(spec); err != nil {
			r.logger.Warn("failed to add radius layer",
				logging.String("layer", spec.ID),
				logging.Err(err),
			)
		}
	}
}

// clearCircle removes the radius overlay if present.
func (r *RadiusController) clearCircle() {
	if !r.engine.HasSource(SourceRadius) {
		return
	}
	_ = r.engine.RemoveLayer(LayerRadiusCircle)
	_ = r.engine.RemoveLayer(LayerRadiusOutline)
	_ = r.engine.RemoveSource(SourceRadius)
}
