// Package customer defines the normalized customer record and the
// normalization rules that coerce raw CRM backend rows into it.
package customer

import (
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// Customer is a fully-normalized customer record.  Every field is populated:
// normalization substitutes placeholder values for anything the backend left
// blank, so downstream code never needs nil checks.
type Customer struct {
	ID           string   `json:"id"`
	CustomerID   string   `json:"customer_id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	ZipCode      string   `json:"zip_code"`
	Email        string   `json:"email,omitempty"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Products     []string `json:"products_interested"`
	RegisteredAt string   `json:"registered_at"` // yyyy-mm-dd
	Status       string   `json:"status"`
	CustomerType string   `json:"customer_type"`
	SourceSystem string   `json:"source_system"`
}

// HasCoordinates reports whether both latitude and longitude are present.
// Records without coordinates are retained for list views but never mapped.
func (c *Customer) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Location returns the customer's position and whether it is present and
// within valid coordinate bounds.
func (c *Customer) Location() (geo.Point, bool) {
	if !c.HasCoordinates() {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: *c.Latitude, Lng: *c.Longitude}
	return p, p.IsValid()
}

// RawRecord is a customer row as returned by the CRM backend, before
// normalization.  Optional fields are pointers or interface{} so that absent
// and empty values can be told apart where it matters.
type RawRecord struct {
	ID                 string      `json:"id"`
	ClaimedBy          string      `json:"claimed_by"`
	Name               string      `json:"name"`
	Company            string      `json:"company"`
	Address            string      `json:"address"`
	City               string      `json:"city"`
	State              string      `json:"state"`
	PostalCode         string      `json:"postal_code"`
	Email              string      `json:"email"`
	Latitude           *float64    `json:"latitude"`
	Longitude          *float64    `json:"longitude"`
	ProductsInterested interface{} `json:"products_interested"`
	RegisteredAt       string      `json:"registered_at"`
	CreatedAt          string      `json:"created_at"`
	Status             string      `json:"status"`
	CustomerType       string      `json:"customer_type"`
	SourceSystem       string      `json:"source_system"`
}
