package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapplot/customer-atlas/internal/domain/customer"
	"github.com/mapplot/customer-atlas/internal/domain/product"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

func f64(v float64) *float64 { return &v }

func TestBuild_StylesFeatures(t *testing.T) {
	b := NewFeatureBuilder(product.NewClassifier(nil), nil)

	features := b.Build([]customer.Customer{
		{
			ID: "c1", Name: "Acme", City: "Topeka", State: "KS", ZipCode: "66601",
			Status: "customer", Products: []string{"AudioSight"}, RegisteredAt: "2023-04-02",
			Latitude: f64(39.04), Longitude: f64(-95.68),
		},
		{
			ID: "c2", Name: "Globex", Status: "lead", Products: []string{"AudioSight", "SATE"},
			Latitude: f64(37.69), Longitude: f64(-97.34),
		},
	})

	require.Len(t, features, 2)

	first := features[0]
	assert.Equal(t, "c1", first.Properties.ID)
	assert.Equal(t, "AudioSight", first.Properties.ProductType)
	assert.Equal(t, "#ef4444", first.Properties.Color)
	assert.Equal(t, float64(12), first.Properties.Size)
	assert.Equal(t, "2023-04-02", first.Properties.RegisteredAt)

	second := features[1]
	assert.Equal(t, product.MultipleProductsType, second.Properties.ProductType)
	assert.Equal(t, "#8b5cf6", second.Properties.Color)
	assert.Equal(t, float64(8), second.Properties.Size)
}

func TestBuild_DropsInvalidCoordinates(t *testing.T) {
	b := NewFeatureBuilder(product.NewClassifier(nil), nil)

	features := b.Build([]customer.Customer{
		{ID: "no-coords"},
		{ID: "bad-lat", Latitude: f64(95), Longitude: f64(-95)},
		{ID: "bad-lng", Latitude: f64(39), Longitude: f64(200)},
		{ID: "ok", Latitude: f64(39), Longitude: f64(-95)},
	})

	require.Len(t, features, 1)
	assert.Equal(t, "ok", features[0].Properties.ID)
}

func TestPartition_ByColor(t *testing.T) {
	mk := func(id, color string) geo.Feature {
		return geo.NewPointFeature(geo.Point{Lat: 39, Lng: -95}, geo.FeatureProperties{ID: id, Color: color})
	}

	sate, audiosight, other := Partition([]geo.Feature{
		mk("s1", "#3b82f6"),
		mk("a1", "#ef4444"),
		mk("o1", "#10b981"),
		mk("o2", "#8b5cf6"),
		mk("s2", "#3b82f6"),
	})

	assert.Len(t, sate, 2)
	assert.Len(t, audiosight, 1)
	assert.Len(t, other, 2)
	assert.Equal(t, "o2", other[1].Properties.ID)
}

func TestPartition_EmptyInput(t *testing.T) {
	sate, audiosight, other := Partition(nil)
	assert.Empty(t, sate)
	assert.Empty(t, audiosight)
	assert.Empty(t, other)
	assert.NotNil(t, sate)
}
