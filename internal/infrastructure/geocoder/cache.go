package geocoder

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mapplot/customer-atlas/internal/infrastructure/database/redis"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/prometheus"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// Resolver is the geocoding contract the cache decorates.
type Resolver interface {
	Geocode(ctx context.Context, postalCode string) (geo.Point, error)
}

// Store is the cache backend contract; *redis.Cache satisfies it.
type Store interface {
	Get(ctx context.Context, key string, out interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Cached decorates a Resolver with a persistent cache and in-flight request
// coalescing.  Postal-code coordinates essentially never change, so cached
// entries are trusted for the full configured TTL; concurrent lookups for the
// same code share one upstream call.
type Cached struct {
	inner   Resolver
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *prommetrics.Metrics
	logger  logging.Logger
}

// NewCached wraps resolver with the given cache store.  metrics may be nil.
func NewCached(resolver Resolver, store Store, ttl time.Duration, metrics *prommetrics.Metrics, logger logging.Logger) *Cached {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cached{
		inner:   resolver,
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.Named("geocache"),
	}
}

// Geocode resolves a postal code, serving from cache when possible.  Cache
// transport failures degrade to a direct upstream call; only successful
// resolutions are cached.
func (c *Cached) Geocode(ctx context.Context, postalCode string) (geo.Point, error) {
	key := "geocode:" + postalCode

	var cached geo.Point
	err := c.store.Get(ctx, key, &cached)
	if err == nil {
		c.count("hit")
		return cached, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		c.logger.Warn("geocode cache read failed, falling through",
			logging.String("postal_code", postalCode),
			logging.Err(err),
		)
	}
	c.count("miss")

	v, err, _ := c.group.Do(postalCode, func() (interface{}, error) {
		p, err := c.inner.Geocode(ctx, postalCode)
		if err != nil {
			return geo.Point{}, err
		}
		if setErr := c.store.Set(ctx, key, p, c.ttl); setErr != nil {
			c.logger.Warn("geocode cache write failed",
				logging.String("postal_code", postalCode),
				logging.Err(setErr),
			)
		}
		return p, nil
	})
	if err != nil {
		return geo.Point{}, err
	}
	return v.(geo.Point), nil
}

func (c *Cached) count(result string) {
	if c.metrics != nil {
		c.metrics.GeocodeCacheTotal.WithLabelValues(result).Inc()
	}
}
