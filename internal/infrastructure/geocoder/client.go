// Package geocoder resolves US postal codes to coordinates via the
// Zippopotam.us API, with a Redis-backed caching decorator in cache.go.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// response mirrors the Zippopotam.us payload; coordinates arrive as strings.
type response struct {
	PostCode string `json:"post code"`
	Places   []struct {
		PlaceName string `json:"place name"`
		Longitude string `json:"longitude"`
		Latitude  string `json:"latitude"`
		State     string `json:"state abbreviation"`
	} `json:"places"`
}

// Client geocodes postal codes against the configured provider.
type Client struct {
	cfg    config.GeocoderConfig
	http   *http.Client
	logger logging.Logger
}

// NewClient constructs a geocoder client from configuration.
func NewClient(cfg config.GeocoderConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("geocoder"),
	}
}

// Geocode resolves a 5-digit postal code to the coordinate of its first
// listed place.  A 404 from the provider is an ErrCodeGeocodeNoResult;
// transport and decoding failures are ErrCodeGeocodeFailed.
func (c *Client) Geocode(ctx context.Context, postalCode string) (geo.Point, error) {
	if len(postalCode) != 5 {
		return geo.Point{}, apperrors.New(apperrors.ErrCodeInvalidPostalCode, "postal code must be 5 digits").
			WithDetail(postalCode)
	}

	url := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.Country, postalCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return geo.Point{}, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build geocode request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "customer-atlas/"+config.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return geo.Point{}, apperrors.Wrap(err, apperrors.ErrCodeGeocodeFailed, "geocode request failed").
			WithDetail(postalCode)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return geo.Point{}, apperrors.New(apperrors.ErrCodeGeocodeNoResult, "no geocode result").
			WithDetail(postalCode)
	}
	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, apperrors.New(apperrors.ErrCodeGeocodeFailed, "geocoder returned non-200").
			WithDetail(fmt.Sprintf("postal_code=%s status=%d", postalCode, resp.StatusCode))
	}

	var payload response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return geo.Point{}, apperrors.Wrap(err, apperrors.ErrCodeGeocodeFailed, "failed to decode geocode response")
	}
	if len(payload.Places) == 0 {
		return geo.Point{}, apperrors.New(apperrors.ErrCodeGeocodeNoResult, "geocode response has no places").
			WithDetail(postalCode)
	}

	lat, latErr := strconv.ParseFloat(payload.Places[0].Latitude, 64)
	lng, lngErr := strconv.ParseFloat(payload.Places[0].Longitude, 64)
	if latErr != nil || lngErr != nil {
		return geo.Point{}, apperrors.New(apperrors.ErrCodeGeocodeFailed, "geocode response has malformed coordinates").
			WithDetail(postalCode)
	}

	p := geo.Point{Lat: lat, Lng: lng}
	if !p.IsValid() {
		return geo.Point{}, apperrors.New(apperrors.ErrCodeInvalidCoordinate, "geocode result out of range").
			WithDetail(postalCode)
	}

	c.logger.Debug("geocoded postal code",
		logging.String("postal_code", postalCode),
		logging.Float64("lat", lat),
		logging.Float64("lng", lng),
	)
	return p, nil
}
