// Package crm implements the HTTP client for the CRM backend that owns
// customer and product storage.  This service is a read-only consumer.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/domain/customer"
	"github.com/mapplot/customer-atlas/internal/domain/product"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
)

// maxResponseBytes bounds backend response bodies; the largest production
// dataset serializes well under this.
const maxResponseBytes = 64 << 20

// Client talks to the CRM backend API.
type Client struct {
	cfg    config.BackendConfig
	http   *http.Client
	logger logging.Logger
}

// NewClient constructs a backend client from configuration.
func NewClient(cfg config.BackendConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("crm"),
	}
}

// FetchCustomers retrieves the full raw customer list.
func (c *Client) FetchCustomers(ctx context.Context) ([]customer.RawRecord, error) {
	var records []customer.RawRecord
	if err := c.getJSON(ctx, c.cfg.CustomersPath, &records); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeCustomerFetchFailed, "failed to fetch customers")
	}
	c.logger.Debug("fetched customers", logging.Int("count", len(records)))
	return records, nil
}

// FetchProducts retrieves the product catalog.
func (c *Client) FetchProducts(ctx context.Context) ([]product.Product, error) {
	var catalog []product.Product
	if err := c.getJSON(ctx, c.cfg.ProductsPath, &catalog); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProductFetchFailed, "failed to fetch product catalog")
	}
	c.logger.Debug("fetched products", logging.Int("count", len(catalog)))
	return catalog, nil
}

// getJSON performs a GET against the backend and decodes the JSON response
// into out.  Every request carries a generated request id for correlation
// with backend logs.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to build backend request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeExternalService, "backend request failed").
			WithDetail(url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.New(apperrors.ErrCodeExternalService, "backend returned non-200").
			WithDetail(fmt.Sprintf("url=%s status=%d body=%q", url, resp.StatusCode, body))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	if err := dec.Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to decode backend response").
			WithDetail(url)
	}
	return nil
}
