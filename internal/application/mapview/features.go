// Package mapview orchestrates the map presentation pipeline: building
// GeoJSON features from normalized customers, managing engine sources and
// layers, resolving cluster and point interactions, and running the
// postal-code radius search.
package mapview

import (
	"github.com/mapplot/customer-atlas/internal/domain/customer"
	"github.com/mapplot/customer-atlas/internal/domain/product"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// Colors used to partition features across the per-product sources.
const (
	colorSATE       = "#3b82f6"
	colorAudioSight = "#ef4444"
)

// FeatureBuilder converts customers into styled GeoJSON point features.
type FeatureBuilder struct {
	classifier *product.Classifier
	logger     logging.Logger
}

// NewFeatureBuilder constructs a FeatureBuilder over the given catalog
// classifier.
func NewFeatureBuilder(classifier *product.Classifier, logger logging.Logger) *FeatureBuilder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FeatureBuilder{
		classifier: classifier,
		logger:     logger.Named("features"),
	}
}

// Build converts customers into point features.  Customers without
// coordinates, or with coordinates outside the WGS84 envelope, are dropped.
// Each feature carries the customer's classified product type, marker color,
// and status-derived marker size.
func (b *FeatureBuilder) Build(customers []customer.Customer) []geo.Feature {
	features := make([]geo.Feature, 0, len(customers))
	dropped := 0

	for _, c := range customers {
		loc, ok := c.Location()
		if !ok {
			dropped++
			continue
		}

		productType := b.classifier.Classify(c.Products)
		features = append(features, geo.NewPointFeature(loc, geo.FeatureProperties{
			ID:           c.ID,
			Name:         c.Name,
			Address:      c.Address,
			City:         c.City,
			State:        c.State,
			PostalCode:   c.ZipCode,
			ProductType:  productType,
			Color:        b.classifier.ColorFor(productType),
			Size:         float64(product.SizeFor(c.Status)),
			Status:       c.Status,
			RegisteredAt: c.RegisteredAt,
		}))
	}

	if dropped > 0 {
		b.logger.Warn("dropped customers without valid coordinates",
			logging.Int("dropped", dropped),
			logging.Int("kept", len(features)),
		)
	}
	return features
}

// Partition splits features into the three per-product source groups: SATE
// (blue), AudioSight (red), and everything else.
func Partition(features []geo.Feature) (sate, audiosight, other []geo.Feature) {
	sate = make([]geo.Feature, 0, len(features))
	audiosight = make([]geo.Feature, 0, len(features))
	other = make([]geo.Feature, 0, len(features))

	for _, f := range features {
		switch f.Properties.Color {
		case colorSATE:
			sate = append(sate, f)
		case colorAudioSight:
			audiosight = append(audiosight, f)
		default:
			other = append(other, f)
		}
	}
	return sate, audiosight, other
}
