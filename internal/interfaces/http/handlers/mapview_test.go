package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapplot/customer-atlas/internal/application/filter"
	"github.com/mapplot/customer-atlas/internal/application/mapview"
	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/domain/customer"
	"github.com/mapplot/customer-atlas/internal/domain/product"
	"github.com/mapplot/customer-atlas/internal/infrastructure/mapengine"
	prommetrics "github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/prometheus"
	atlashttp "github.com/mapplot/customer-atlas/internal/interfaces/http"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

type fakeCRM struct {
	customers []customer.RawRecord
	products  []product.Product
}

func (c *fakeCRM) FetchCustomers(_ context.Context) ([]customer.RawRecord, error) {
	return c.customers, nil
}

func (c *fakeCRM) FetchProducts(_ context.Context) ([]product.Product, error) {
	return c.products, nil
}

type fakeGeocoder struct {
	points map[string]geo.Point
}

func (g *fakeGeocoder) Geocode(_ context.Context, postalCode string) (geo.Point, error) {
	if p, ok := g.points[postalCode]; ok {
		return p, nil
	}
	return geo.Point{}, context.Canceled
}

func f64(v float64) *float64 { return &v }

func testRecords() []customer.RawRecord {
	return []customer.RawRecord{
		{ID: "ks-1", Name: "Topeka Audio", State: "KS", PostalCode: "66601",
			Email: "topeka@example.com", Status: "customer",
			ProductsInterested: []string{"AudioSight"}, RegisteredAt: "2023-04-02",
			Latitude: f64(39.04), Longitude: f64(-95.68)},
		{ID: "ca-1", Name: "LA Rehab", State: "CA", Status: "lead",
			ProductsInterested: []string{"SATE"}, RegisteredAt: "2024-01-20",
			Latitude: f64(34.05), Longitude: f64(-118.24)},
		{ID: "tx-1", Name: "Austin Hearing", State: "TX", Status: "customer",
			RegisteredAt: "2021-11-05"},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.Server.Mode = "test"
	cfg.Map.ReadyRetryInterval = time.Millisecond
	cfg.Radius.Debounce = time.Millisecond

	engine := mapengine.NewMemoryEngine(
		geo.Point{Lat: cfg.Map.DefaultCenterLat, Lng: cfg.Map.DefaultCenterLng},
		cfg.Map.DefaultZoom, nil,
	)
	engine.Load()

	layers := mapview.NewLayerManager(engine, cfg.Map, nil)
	filters := filter.NewEngine()
	geocoder := &fakeGeocoder{points: map[string]geo.Point{"66601": {Lat: 39.04, Lng: -95.68}}}
	radius := mapview.NewRadiusController(geocoder, engine, filters, cfg.Radius, nil)
	registry := prometheus.NewRegistry()
	metrics := prommetrics.New(registry)

	svc := mapview.NewService(&fakeCRM{customers: testRecords()},
		engine, layers, radius, filters, metrics, cfg, nil)
	require.NoError(t, svc.Start(context.Background()))

	return atlashttp.NewRouter(cfg.Server, atlashttp.RouterDeps{
		Service:  svc,
		Metrics:  metrics,
		Registry: registry,
		Logger:   nil,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode(t, w)["status"])

	w = doJSON(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "atlas_customers_loaded")
}

func TestGetCounts(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/api/v1/map/counts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 3, body["filtered"])
}

func TestSetFilters_NarrowsCounts(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPut, "/api/v1/map/filters",
		map[string]interface{}{"states": []string{"KS"}})
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode(t, w)["counts"].(map[string]interface{})
	assert.EqualValues(t, 3, counts["total"])
	assert.EqualValues(t, 1, counts["filtered"])

	// The criteria round-trips on GET.
	w = doJSON(t, h, http.MethodGet, "/api/v1/map/filters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	criteria := decode(t, w)["criteria"].(map[string]interface{})
	assert.Equal(t, []interface{}{"KS"}, criteria["states"])
}

func TestSetFilters_RejectsMalformedBody(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/map/filters",
		bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "COMMON_002", errBody["code"])
}

func TestResetFilters(t *testing.T) {
	h := newTestRouter(t)

	doJSON(t, h, http.MethodPut, "/api/v1/map/filters",
		map[string]interface{}{"states": []string{"KS"}})

	w := doJSON(t, h, http.MethodDelete, "/api/v1/map/filters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode(t, w)["counts"].(map[string]interface{})
	assert.EqualValues(t, 3, counts["filtered"])
}

func TestFilterOptions(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/api/v1/map/options/states", nil)
	require.Equal(t, http.StatusOK, w.Code)
	states := decode(t, w)["states"].([]interface{})
	require.Len(t, states, 3)
	first := states[0].(map[string]interface{})
	assert.Equal(t, "CA", first["code"])
	assert.Equal(t, "California", first["name"])

	w = doJSON(t, h, http.MethodGet, "/api/v1/map/options/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := decode(t, w)["products"].([]interface{})
	assert.NotEmpty(t, products)
}

func TestListCustomersAndRecipients(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/api/v1/map/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	customers := decode(t, w)["customers"].([]interface{})
	assert.Len(t, customers, 3)

	// Only one record carries an email address.
	w = doJSON(t, h, http.MethodGet, "/api/v1/map/recipients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestClusterClick_Miss(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/map/clicks/cluster",
		map[string]float64{"lat": 0, "lng": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["hit"])
}

func TestPointClick_Hit(t *testing.T) {
	h := newTestRouter(t)

	// The two located customers are far apart, so each renders unclustered.
	w := doJSON(t, h, http.MethodPost, "/api/v1/map/clicks/point",
		map[string]float64{"lat": 34.05, "lng": -118.24})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, true, body["hit"])
	sel := body["selection"].(map[string]interface{})
	assert.Equal(t, false, sel["aggregated"])
}

func TestRadiusSearch_Lifecycle(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/map/radius",
		map[string]interface{}{"postal_code": "66601", "miles": 25})
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		w := doJSON(t, h, http.MethodGet, "/api/v1/map/radius", nil)
		if w.Code != http.StatusOK {
			return false
		}
		return decode(t, w)["active"] == true
	}, time.Second, 5*time.Millisecond)

	w = doJSON(t, h, http.MethodGet, "/api/v1/map/radius", nil)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 25, body["miles"])
}

func TestRadiusSearch_RejectsNegativeMiles(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/map/radius",
		map[string]interface{}{"postal_code": "66601", "miles": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "GEO_005", errBody["code"])
}

func TestFlyToCustomer(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/map/customers/ks-1/fly-to", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// tx-1 has no coordinates.
	w = doJSON(t, h, http.MethodPost, "/api/v1/map/customers/tx-1/fly-to", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/v1/map/customers/nope/fly-to", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	errBody := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "CUST_003", errBody["code"])
}

func TestViewMode_RoundTrip(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/api/v1/map/view-mode", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", decode(t, w)["mode"])

	w = doJSON(t, h, http.MethodPut, "/api/v1/map/view-mode",
		map[string]string{"mode": "customer"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "customer", decode(t, w)["mode"])
}

func TestRefresh(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/map/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode(t, w)["counts"].(map[string]interface{})
	assert.EqualValues(t, 3, counts["total"])
}
