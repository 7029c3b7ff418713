// Package prometheus defines the service's metric instruments.  All metrics
// share the "atlas" namespace and are registered against an injected
// registerer so tests can use isolated registries.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "atlas"

// Metrics holds every instrument the application layers record into.
type Metrics struct {
	// DatasetRefreshTotal counts dataset refresh attempts by outcome.
	DatasetRefreshTotal *prometheus.CounterVec

	// DatasetRefreshSeconds observes end-to-end refresh latency.
	DatasetRefreshSeconds prometheus.Histogram

	// CustomersLoaded tracks the size of the current normalized dataset.
	CustomersLoaded prometheus.Gauge

	// FeaturesDisplayed tracks the number of features currently on the map,
	// by source group.
	FeaturesDisplayed *prometheus.GaugeVec

	// RadiusSearchesTotal counts radius searches by outcome.
	RadiusSearchesTotal *prometheus.CounterVec

	// GeocodeCacheTotal counts geocode cache lookups by result.
	GeocodeCacheTotal *prometheus.CounterVec

	// ClusterExpansionsTotal counts cluster click resolutions by outcome.
	ClusterExpansionsTotal *prometheus.CounterVec

	// HTTPRequestSeconds observes HTTP handler latency by route and status.
	HTTPRequestSeconds *prometheus.HistogramVec
}

// New constructs and registers all instruments against reg.  Passing
// prometheus.DefaultRegisterer wires them into the default /metrics output.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DatasetRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_refresh_total",
			Help:      "Dataset refresh attempts by outcome.",
		}, []string{"outcome"}),

		DatasetRefreshSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_refresh_seconds",
			Help:      "End-to-end dataset refresh latency.",
			Buckets:   prometheus.DefBuckets,
		}),

		CustomersLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "customers_loaded",
			Help:      "Number of customers in the current normalized dataset.",
		}),

		FeaturesDisplayed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features_displayed",
			Help:      "Features currently on the map, by source group.",
		}, []string{"group"}),

		RadiusSearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "radius_searches_total",
			Help:      "Radius searches by outcome.",
		}, []string{"outcome"}),

		GeocodeCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),

		ClusterExpansionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_expansions_total",
			Help:      "Cluster click resolutions by outcome.",
		}, []string{"outcome"}),

		HTTPRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "HTTP handler latency by route and status.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "status"}),
	}

	reg.MustRegister(
		m.DatasetRefreshTotal,
		m.DatasetRefreshSeconds,
		m.CustomersLoaded,
		m.FeaturesDisplayed,
		m.RadiusSearchesTotal,
		m.GeocodeCacheTotal,
		m.ClusterExpansionsTotal,
		m.HTTPRequestSeconds,
	)
	return m
}
