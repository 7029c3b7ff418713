package customer

import (
	"strings"
	"time"

	"github.com/mapplot/customer-atlas/internal/domain/product"
)

// Placeholder values substituted for blank fields during normalization.
const (
	UnknownName    = "Unknown Customer"
	UnknownAddress = "Unknown Address"
	UnknownCity    = "Unknown"
	UnknownState   = "XX"
	UnknownZip     = "00000"

	defaultStatus       = "new"
	defaultCustomerType = "customer"
	defaultSource       = "unknown"
)

// Normalizer converts raw backend rows into Customer records.  The clock is
// injectable so tests can pin the registration-date fallback.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a Normalizer using the system clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock returns a Normalizer with a fixed clock for tests.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize converts a single raw record into a Customer.  Blank fields are
// replaced with placeholders, the name falls back to the company name, the
// product list is coerced into a flat slice (defaulting to ["Unknown"]), and
// the registration date falls back to the creation date and then to today.
// Normalization is idempotent: feeding a normalized record back through
// produces the same result.
func (n *Normalizer) Normalize(raw RawRecord) Customer {
	name := firstNonBlank(raw.Name, raw.Company, UnknownName)

	customerID := raw.ClaimedBy
	if strings.TrimSpace(customerID) == "" {
		customerID = raw.ID
	}

	products := product.NormalizeList(raw.ProductsInterested)
	if len(products) == 0 {
		products = []string{"Unknown"}
	}

	return Customer{
		ID:           raw.ID,
		CustomerID:   customerID,
		Name:         name,
		Address:      firstNonBlank(raw.Address, UnknownAddress),
		City:         firstNonBlank(raw.City, UnknownCity),
		State:        firstNonBlank(raw.State, UnknownState),
		ZipCode:      firstNonBlank(raw.PostalCode, UnknownZip),
		Email:        strings.TrimSpace(raw.Email),
		Latitude:     raw.Latitude,
		Longitude:    raw.Longitude,
		Products:     products,
		RegisteredAt: n.registrationDate(raw),
		Status:       firstNonBlank(raw.Status, defaultStatus),
		CustomerType: firstNonBlank(raw.CustomerType, defaultCustomerType),
		SourceSystem: firstNonBlank(raw.SourceSystem, defaultSource),
	}
}

// NormalizeAll converts a batch of raw records.  A nil input yields an empty,
// non-nil slice.
func (n *Normalizer) NormalizeAll(raws []RawRecord) []Customer {
	out := make([]Customer, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Normalize(raw))
	}
	return out
}

// registrationDate picks the registration date: registered_at, then
// created_at, then today.  Timestamps are truncated to their date portion.
func (n *Normalizer) registrationDate(raw RawRecord) string {
	for _, candidate := range []string{raw.RegisteredAt, raw.CreatedAt} {
		if strings.TrimSpace(candidate) != "" {
			return dateOnly(candidate)
		}
	}
	return n.now().Format("2006-01-02")
}

// dateOnly strips the time portion from an ISO-8601 timestamp.
func dateOnly(ts string) string {
	if idx := strings.IndexByte(ts, 'T'); idx >= 0 {
		return ts[:idx]
	}
	return ts
}

func firstNonBlank(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}
