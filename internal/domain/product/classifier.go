// Package product implements the product catalog and the marker-styling
// rules derived from it: interest-list normalization, product-type
// classification, and the color/size mappings used by the map layers.
package product

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MultipleProductsType is the synthetic product type assigned to customers
// interested in more than one catalog product.
const MultipleProductsType = "Multiple Products"

// Marker colors.  Known catalog products carry reserved colors; dynamically
// added products receive palette colors by catalog position; anything else
// falls back to gray.
const (
	colorMultiple = "#8b5cf6"
	colorUnknown  = "#6b7280"
)

var reservedColors = map[string]string{
	"audiosight": "#ef4444",
	"sate":       "#3b82f6",
	"armrehab":   "#10b981",
}

var fallbackPalette = []string{"#f59e0b", "#ec4899", "#14b8a6", "#f97316"}

// Marker sizes by customer status.
var statusSizes = map[string]int{
	"customer": 12,
	"prospect": 10,
	"lead":     8,
}

const defaultSize = 8

// Product is a single catalog entry.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FallbackCatalog returns the built-in catalog used when the backend's
// product list cannot be loaded.
func FallbackCatalog() []Product {
	return []Product{
		{ID: "audiosight", Name: "AudioSight", Description: "Audio and hearing assessment technology"},
		{ID: "sate", Name: "SATE", Description: "Speech and auditory training equipment"},
	}
}

// NormalizeList coerces a raw product-interest value into a flat string
// slice.  Upstream records carry the field in several shapes: a proper list,
// a JSON-encoded list embedded in a string, a bare product name, or nothing
// at all.
func NormalizeList(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		var maybeList []interface{}
		if err := json.Unmarshal([]byte(v), &maybeList); err == nil {
			out := make([]string, 0, len(maybeList))
			for _, item := range maybeList {
				out = append(out, fmt.Sprintf("%v", item))
			}
			return out
		}
		return []string{v}
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// Classifier resolves product types, colors, and marker sizes against a
// catalog.  Lookups are case-insensitive; results use catalog casing.
type Classifier struct {
	catalog []Product
	byLower map[string]int // lowercase name → catalog index
}

// NewClassifier builds a Classifier over the given catalog.  An empty or nil
// catalog falls back to the built-in one.
func NewClassifier(catalog []Product) *Classifier {
	if len(catalog) == 0 {
		catalog = FallbackCatalog()
	}
	byLower := make(map[string]int, len(catalog))
	for i, p := range catalog {
		byLower[strings.ToLower(p.Name)] = i
	}
	return &Classifier{catalog: catalog, byLower: byLower}
}

// Catalog returns the classifier's catalog.
func (c *Classifier) Catalog() []Product { return c.catalog }

// Names returns the catalog product names in catalog order.
func (c *Classifier) Names() []string {
	names := make([]string, len(c.catalog))
	for i, p := range c.catalog {
		names[i] = p.Name
	}
	return names
}

// Classify determines the display product type for a raw interest value.
// More than one catalog match yields MultipleProductsType; exactly one match
// yields that product's canonical name; no matches yields the first listed
// interest verbatim, or "Other" when the list is empty.
func (c *Classifier) Classify(raw interface{}) string {
	interests := NormalizeList(raw)

	canonical := make([]string, 0, len(interests))
	matched := make([]string, 0, len(interests))
	for _, name := range interests {
		if idx, ok := c.byLower[strings.ToLower(name)]; ok {
			canonical = append(canonical, c.catalog[idx].Name)
			matched = append(matched, c.catalog[idx].Name)
		} else {
			canonical = append(canonical, name)
		}
	}

	if len(matched) > 1 {
		return MultipleProductsType
	}
	if len(matched) == 1 {
		return matched[0]
	}
	if len(canonical) > 0 {
		return canonical[0]
	}
	return "Other"
}

// ColorFor returns the marker color for a product type: the reserved color
// for known products, a palette color by catalog position for other catalog
// entries, purple for MultipleProductsType, and gray for everything else.
func (c *Classifier) ColorFor(productType string) string {
	if productType == MultipleProductsType {
		return colorMultiple
	}

	lower := strings.ToLower(productType)
	if color, ok := reservedColors[lower]; ok {
		return color
	}

	if idx, ok := c.byLower[lower]; ok {
		return fallbackPalette[idx%len(fallbackPalette)]
	}

	return colorUnknown
}

// SizeFor returns the marker radius in pixels for a customer status.
func SizeFor(status string) int {
	if size, ok := statusSizes[status]; ok {
		return size
	}
	return defaultSize
}
