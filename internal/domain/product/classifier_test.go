package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeList(t *testing.T) {
	assert.Equal(t, []string{"AudioSight", "SATE"}, NormalizeList([]string{"AudioSight", "SATE"}))
	assert.Equal(t, []string{"AudioSight"}, NormalizeList([]interface{}{"AudioSight"}))

	// A JSON-encoded list inside a string is decoded.
	assert.Equal(t, []string{"AudioSight", "SATE"}, NormalizeList(`["AudioSight","SATE"]`))

	// A bare string that is not a JSON list stays a one-element list,
	// including strings that parse as non-list JSON.
	assert.Equal(t, []string{"AudioSight"}, NormalizeList("AudioSight"))
	assert.Equal(t, []string{"42"}, NormalizeList("42"))

	assert.Empty(t, NormalizeList(nil))
	assert.Equal(t, []string{"7"}, NormalizeList(7))
}

func TestClassify(t *testing.T) {
	c := NewClassifier(nil) // built-in catalog: AudioSight, SATE

	assert.Equal(t, "AudioSight", c.Classify([]string{"AudioSight"}))
	assert.Equal(t, "AudioSight", c.Classify([]string{"audiosight"})) // canonical casing restored
	assert.Equal(t, MultipleProductsType, c.Classify([]string{"AudioSight", "sate"}))

	// Unmatched interests pass through verbatim.
	assert.Equal(t, "WidgetPro", c.Classify([]string{"WidgetPro"}))
	assert.Equal(t, "WidgetPro", c.Classify([]string{"WidgetPro", "GadgetMax"}))

	// Duplicate catalog matches still count as multiple.
	assert.Equal(t, MultipleProductsType, c.Classify([]string{"AudioSight", "AUDIOSIGHT"}))

	assert.Equal(t, "Other", c.Classify(nil))
	assert.Equal(t, "Other", c.Classify([]string{}))
}

func TestColorFor(t *testing.T) {
	catalog := []Product{
		{ID: "audiosight", Name: "AudioSight"},
		{ID: "sate", Name: "SATE"},
		{ID: "armrehab", Name: "ArmRehab"},
		{ID: "widgetpro", Name: "WidgetPro"},
		{ID: "gadgetmax", Name: "GadgetMax"},
	}
	c := NewClassifier(catalog)

	assert.Equal(t, "#ef4444", c.ColorFor("AudioSight"))
	assert.Equal(t, "#3b82f6", c.ColorFor("SATE"))
	assert.Equal(t, "#10b981", c.ColorFor("ArmRehab"))
	assert.Equal(t, "#8b5cf6", c.ColorFor(MultipleProductsType))

	// Reserved colors win regardless of casing.
	assert.Equal(t, "#ef4444", c.ColorFor("audiosight"))

	// Catalog products without reserved colors get palette colors by position.
	assert.Equal(t, "#f97316", c.ColorFor("WidgetPro")) // index 3
	assert.Equal(t, "#f59e0b", c.ColorFor("GadgetMax")) // index 4 wraps to 0

	// Off-catalog product types fall back to gray.
	assert.Equal(t, "#6b7280", c.ColorFor("Mystery"))
}

func TestSizeFor(t *testing.T) {
	assert.Equal(t, 12, SizeFor("customer"))
	assert.Equal(t, 10, SizeFor("prospect"))
	assert.Equal(t, 8, SizeFor("lead"))
	assert.Equal(t, 8, SizeFor("new"))
	assert.Equal(t, 8, SizeFor(""))
}

func TestFallbackCatalog(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, []string{"AudioSight", "SATE"}, c.Names())
	assert.Len(t, c.Catalog(), 2)
}
