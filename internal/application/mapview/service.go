package mapview

import (
	"context"
	"sync"
	"time"

	"github.com/mapplot/customer-atlas/internal/application/filter"
	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/domain/customer"
	domaingeo "github.com/mapplot/customer-atlas/internal/domain/geo"
	"github.com/mapplot/customer-atlas/internal/domain/product"
	"github.com/mapplot/customer-atlas/internal/infrastructure/mapengine"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// CRMClient reads customer and product data from the backend.
type CRMClient interface {
	FetchCustomers(ctx context.Context) ([]customer.RawRecord, error)
	FetchProducts(ctx context.Context) ([]product.Product, error)
}

// Counts summarizes the dataset under the active filters.
type Counts struct {
	Total    int  `json:"total"`
	Filtered int  `json:"filtered"`
	InRadius *int `json:"in_radius,omitempty"`
}

// Service is the map-view orchestrator.  It owns the normalized dataset, the
// active filter criteria, and the presentation pipeline from customers to
// engine layers.
type Service struct {
	crm        CRMClient
	normalizer *customer.Normalizer
	engine     mapengine.Engine
	layers     *LayerManager
	radius     *RadiusController
	filters    *filter.Engine
	metrics    *prommetrics.Metrics
	logger     logging.Logger
	cfg        *config.Config

	mu         sync.RWMutex
	customers  []customer.Customer
	classifier *product.Classifier
	builder    *FeatureBuilder
	criteria   filter.Criteria
	refreshGen uint64
}

// NewService wires the map-view orchestrator.
func NewService(
	crm CRMClient,
	engine mapengine.Engine,
	layers *LayerManager,
	radius *RadiusController,
	filters *filter.Engine,
	metrics *prommetrics.Metrics,
	cfg *config.Config,
	logger logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	classifier := product.NewClassifier(nil)
	return &Service{
		crm:        crm,
		normalizer: customer.NewNormalizer(),
		engine:     engine,
		layers:     layers,
		radius:     radius,
		filters:    filters,
		metrics:    metrics,
		logger:     logger.Named("mapview"),
		cfg:        cfg,
		classifier: classifier,
		builder:    NewFeatureBuilder(classifier, logger),
	}
}

// Start initializes the engine layers and performs the initial dataset load.
func (s *Service) Start(ctx context.Context) error {
	if err := s.layers.Init(ctx); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Refresh pulls customers and products from the backend, renormalizes, and
// repaints the map under the active criteria.  Concurrent refreshes are
// resolved last-write-wins: a refresh whose fetch was overtaken by a newer
// one discards its results.
func (s *Service) Refresh(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	s.refreshGen++
	gen := s.refreshGen
	s.mu.Unlock()

	raws, err := s.crm.FetchCustomers(ctx)
	if err != nil {
		s.metrics.DatasetRefreshTotal.WithLabelValues("fetch_error").Inc()
		return apperrors.Wrap(err, apperrors.ErrCodeCustomerFetchFailed, "failed to fetch customers")
	}

	catalog, err := s.crm.FetchProducts(ctx)
	if err != nil {
		// The built-in catalog keeps the map functional when the product list
		// is unavailable.
		s.logger.Warn("product catalog fetch failed, using fallback", logging.Err(err))
		catalog = product.FallbackCatalog()
	}

	normalized := s.normalizer.NormalizeAll(raws)
	classifier := product.NewClassifier(catalog)

	s.mu.Lock()
	if gen != s.refreshGen {
		s.mu.Unlock()
		s.metrics.DatasetRefreshTotal.WithLabelValues("superseded").Inc()
		s.logger.Debug("discarding superseded dataset refresh")
		return nil
	}
	s.customers = normalized
	s.classifier = classifier
	s.builder = NewFeatureBuilder(classifier, s.logger)
	base := s.criteria
	s.mu.Unlock()

	// Rebase before repainting so an active radius search (and any geocode
	// still in flight) counts against the refreshed dataset.
	s.radius.Rebase(base, normalized)

	s.mu.Lock()
	features := s.builder.Build(s.displayedLocked())
	s.mu.Unlock()

	if err := s.repaint(features); err != nil {
		s.metrics.DatasetRefreshTotal.WithLabelValues("repaint_error").Inc()
		return err
	}

	s.metrics.DatasetRefreshTotal.WithLabelValues("ok").Inc()
	s.metrics.DatasetRefreshSeconds.Observe(time.Since(start).Seconds())
	s.metrics.CustomersLoaded.Set(float64(len(normalized)))

	s.logger.Info("dataset refreshed",
		logging.Int("customers", len(normalized)),
		logging.Int("displayed", len(features)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// repaint partitions features and pushes them to the engine, recording the
// per-group gauge.
func (s *Service) repaint(features []geo.Feature) error {
	if err := s.layers.Refresh(features); err != nil {
		return err
	}
	sate, audiosight, other := Partition(features)
	s.metrics.FeaturesDisplayed.WithLabelValues("sate").Set(float64(len(sate)))
	s.metrics.FeaturesDisplayed.WithLabelValues("audiosight").Set(float64(len(audiosight)))
	s.metrics.FeaturesDisplayed.WithLabelValues("other").Set(float64(len(other)))
	return nil
}

// SetCriteria replaces the active filter criteria and repaints the map.
// The radius predicate is managed by RadiusSearch, so any radius fields on
// the incoming criteria are ignored.
func (s *Service) SetCriteria(c filter.Criteria) (Counts, error) {
	c.RadiusCenter = nil
	c.RadiusMeters = 0

	s.mu.Lock()
	s.criteria = c
	s.radius.Rebase(c, s.customers)
	displayed := s.displayedLocked()
	features := s.builder.Build(displayed)
	counts := s.countsLocked()
	s.mu.Unlock()

	if err := s.repaint(features); err != nil {
		return Counts{}, err
	}
	return counts, nil
}

// Criteria returns the active filter criteria.
func (s *Service) Criteria() filter.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// ResetFilters clears every filter predicate and the radius search, then
// repaints.
func (s *Service) ResetFilters() (Counts, error) {
	s.radius.SetQuery(RadiusQuery{})
	return s.SetCriteria(filter.Criteria{})
}

// displayedLocked returns the customers visible on the map: those passing the
// active criteria, intersected with the radius area when a search is active.
// Caller must hold s.mu.
func (s *Service) displayedLocked() []customer.Customer {
	criteria := s.criteria
	if res := s.radius.Result(); res.Active && res.Center != nil {
		criteria.RadiusCenter = res.Center
		criteria.RadiusMeters = domaingeo.MilesToMeters(res.Miles)
	}
	return s.filters.Apply(s.customers, criteria)
}

// countsLocked computes the dataset counts.  Caller must hold s.mu.
func (s *Service) countsLocked() Counts {
	counts := Counts{
		Total:    len(s.customers),
		Filtered: s.filters.Count(s.customers, s.criteria),
	}
	if res := s.radius.Result(); res.Count != nil {
		counts.InRadius = res.Count
	}
	return counts
}

// GetCounts returns the dataset counts under the active filters.
func (s *Service) GetCounts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

// StateOptions returns the distinct states in the dataset.
func (s *Service) StateOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter.StateOptions(s.customers)
}

// ProductOptions returns the filterable product names.
func (s *Service) ProductOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classifier.Names()
}

// DisplayedCustomers returns the customers currently visible on the map.
func (s *Service) DisplayedCustomers() []customer.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayedLocked()
}

// RecipientsInArea returns the displayed customers that have an email
// address, for bulk outreach to the visible area.
func (s *Service) RecipientsInArea() []customer.Customer {
	displayed := s.DisplayedCustomers()
	out := make([]customer.Customer, 0, len(displayed))
	for _, c := range displayed {
		if c.Email != "" {
			out = append(out, c)
		}
	}
	return out
}

// ClusterClick resolves a click at p against the cluster layers.
func (s *Service) ClusterClick(p geo.Point) (*ClusterExpansion, error) {
	exp, err := s.layers.HandleClusterClick(p)
	switch {
	case err != nil:
		s.metrics.ClusterExpansionsTotal.WithLabelValues("error").Inc()
	case exp != nil:
		s.metrics.ClusterExpansionsTotal.WithLabelValues("ok").Inc()
	default:
		s.metrics.ClusterExpansionsTotal.WithLabelValues("miss").Inc()
	}
	return exp, err
}

// PointClick resolves a click at p against the point layers.
func (s *Service) PointClick(p geo.Point) (*PointSelection, error) {
	return s.layers.HandlePointClick(p)
}

// RadiusSearch schedules a debounced radius search around the given postal
// code, counted against the active non-radius criteria.
func (s *Service) RadiusSearch(postalCode string, miles float64) uint64 {
	s.mu.RLock()
	base := s.criteria
	base.RadiusCenter = nil
	base.RadiusMeters = 0
	customers := s.customers
	s.mu.RUnlock()

	gen := s.radius.SetQuery(RadiusQuery{
		PostalCode: postalCode,
		Miles:      miles,
		Base:       base,
		Customers:  customers,
	})
	s.metrics.RadiusSearchesTotal.WithLabelValues("scheduled").Inc()
	return gen
}

// RadiusResult returns the current radius-search state.
func (s *Service) RadiusResult() RadiusResult {
	return s.radius.Result()
}

// FlyToCustomer moves the camera to a customer's location at street-level
// zoom, used after a new registration.
func (s *Service) FlyToCustomer(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.ID != id {
			continue
		}
		loc, ok := c.Location()
		if !ok {
			return apperrors.New(apperrors.ErrCodeInvalidCoordinate, "customer has no mappable location").
				WithDetail(id)
		}
		s.engine.FlyTo(geo.CameraMove{Center: loc, Zoom: 15, DurationMS: 2500})
		return nil
	}
	return apperrors.New(apperrors.ErrCodeCustomerNotFound, "customer not found").WithDetail(id)
}

// SetViewMode switches the interaction mode.
func (s *Service) SetViewMode(mode string) { s.layers.SetViewMode(mode) }

// ViewMode returns the active interaction mode.
func (s *Service) ViewMode() string { return s.layers.ViewMode() }
