package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/infrastructure/database/redis"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.GeocoderConfig{
		BaseURL: baseURL,
		Country: "us",
		Timeout: 2 * time.Second,
	}, nil)
}

func TestGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/us/66601", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"post code": "66601",
			"places": [{"place name": "Topeka", "latitude": "39.0483", "longitude": "-95.6878", "state abbreviation": "KS"}]
		}`))
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).Geocode(context.Background(), "66601")
	require.NoError(t, err)
	assert.InDelta(t, 39.0483, p.Lat, 1e-9)
	assert.InDelta(t, -95.6878, p.Lng, 1e-9)
}

func TestGeocode_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Geocode(context.Background(), "99999")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGeocodeNoResult))
}

func TestGeocode_EmptyPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"post code": "66601", "places": []}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Geocode(context.Background(), "66601")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGeocodeNoResult))
}

func TestGeocode_MalformedCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"places": [{"latitude": "north", "longitude": "west"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Geocode(context.Background(), "66601")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGeocodeFailed))
}

func TestGeocode_RejectsShortCode(t *testing.T) {
	_, err := newTestClient("http://unused").Geocode(context.Background(), "123")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidPostalCode))
}

func TestGeocode_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Geocode(context.Background(), "66601")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGeocodeFailed))
}

// memStore is an in-memory Store for exercising the cache decorator.
type memStore struct {
	mu   sync.Mutex
	data map[string]geo.Point
}

func newMemStore() *memStore { return &memStore{data: make(map[string]geo.Point)} }

func (s *memStore) Get(_ context.Context, key string, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	*(out.(*geo.Point)) = p
	return nil
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	p, ok := value.(geo.Point)
	if !ok {
		return redis.ErrCacheMiss
	}
	s.mu.Lock()
	s.data[key] = p
	s.mu.Unlock()
	return nil
}

// countingResolver counts upstream calls.
type countingResolver struct {
	calls int64
	point geo.Point
	err   error
}

func (r *countingResolver) Geocode(_ context.Context, _ string) (geo.Point, error) {
	atomic.AddInt64(&r.calls, 1)
	if r.err != nil {
		return geo.Point{}, r.err
	}
	return r.point, nil
}

func TestCached_ServesFromCacheAfterFirstCall(t *testing.T) {
	upstream := &countingResolver{point: geo.Point{Lat: 39.05, Lng: -95.68}}
	cached := NewCached(upstream, newMemStore(), time.Hour, nil, nil)

	for i := 0; i < 3; i++ {
		p, err := cached.Geocode(context.Background(), "66601")
		require.NoError(t, err)
		assert.Equal(t, upstream.point, p)
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&upstream.calls))
}

func TestCached_ErrorsNotCached(t *testing.T) {
	upstream := &countingResolver{err: apperrors.New(apperrors.ErrCodeGeocodeNoResult, "nope")}
	cached := NewCached(upstream, newMemStore(), time.Hour, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := cached.Geocode(context.Background(), "99999")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeGeocodeNoResult))
	}
	assert.EqualValues(t, 2, atomic.LoadInt64(&upstream.calls))
}
