package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/harvester/internal/schema"
)

func catalogSchema() schema.ParsingSchema {
	s := schema.ParsingSchema{
		SchemaID:      "catalog-v1",
		SourceID:      "acme",
		StartURL:      "https://shop.example.com/catalog",
		ItemContainer: "div.product-card",
		Fields: []schema.FieldDefinition{
			{Name: "name", Type: schema.TypeString, Method: schema.MethodCSS, Selector: "h2.product-name", Required: true},
			{Name: "price", Type: schema.TypeFloat, Method: schema.MethodCSS, Selector: "span.price@data-raw", Required: true, Transformations: []string{"extract_number"}},
			{Name: "url", Type: schema.TypeURL, Method: schema.MethodCSS, Selector: "a.product-link@href", Transformations: []string{"absolute_url"}},
		},
	}
	s.ApplyDefaults()
	return s
}

const catalogHTML = `<html><body>
<div class="product-card">
  <h2 class="product-name">Widget</h2>
  <span class="price" data-raw="1,234.56">$1,234.56</span>
  <a class="product-link" href="/items/widget">view</a>
</div>
<div class="product-card">
  <h2 class="product-name">Gadget</h2>
  <span class="price" data-raw="99.00">$99.00</span>
  <a class="product-link" href="/items/gadget">view</a>
</div>
<div class="product-card">
  <h2 class="product-name">Gizmo</h2>
  <span class="price" data-raw="10.00">$10.00</span>
  <a class="product-link" href="/items/gizmo">view</a>
</div>
</body></html>`

func TestS1_CatalogExtraction(t *testing.T) {
	base, _ := url.Parse("https://shop.example.com/catalog")
	core := NewCore()
	res, err := core.Extract([]byte(catalogHTML), catalogSchema(), base)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordsExtracted)
	assert.Equal(t, 3, res.RecordsValid)
	assert.Equal(t, 0, res.RecordsRejected)
	assert.Equal(t, "https://shop.example.com/items/widget", res.Records[0]["url"])
	assert.Equal(t, 1234.56, res.Records[0]["price"])
}

const missingPriceHTML = `<html><body>
<div class="product-card">
  <h2 class="product-name">Widget</h2>
  <span class="price" data-raw="1,234.56">$1,234.56</span>
</div>
<div class="product-card">
  <h2 class="product-name">Gadget</h2>
</div>
<div class="product-card">
  <h2 class="product-name">Gizmo</h2>
  <span class="price" data-raw="10.00">$10.00</span>
</div>
</body></html>`

func TestS2_RequiredFieldMissing(t *testing.T) {
	base, _ := url.Parse("https://shop.example.com/catalog")
	core := NewCore()
	res, err := core.Extract([]byte(missingPriceHTML), catalogSchema(), base)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordsExtracted)
	assert.Equal(t, 2, res.RecordsValid)
	assert.Equal(t, 1, res.RecordsRejected)
	assert.Equal(t, res.RecordsExtracted, res.RecordsValid+res.RecordsRejected) // invariant 1
}

func TestS3_FallbackRescue(t *testing.T) {
	s := catalogSchema()
	s.Fields[1].FallbackSelectors = []string{"span.alternate-price@data-raw"}
	html := `<div class="product-card">
	  <h2 class="product-name">Widget</h2>
	  <span class="alternate-price" data-raw="50.00">$50</span>
	  <a class="product-link" href="/items/widget">view</a>
	</div>`
	base, _ := url.Parse("https://shop.example.com/catalog")
	core := NewCore()
	res, err := core.Extract([]byte(html), s, base)
	require.NoError(t, err)
	require.Equal(t, 1, res.RecordsValid)
	assert.Equal(t, 50.0, res.Records[0]["price"])
}

func TestFallback_PrimaryWinsWhenPresent(t *testing.T) {
	s := catalogSchema()
	s.Fields[1].FallbackSelectors = []string{"span.alternate-price@data-raw"}
	html := `<div class="product-card">
	  <h2 class="product-name">Widget</h2>
	  <span class="price" data-raw="1.00">$1</span>
	  <span class="alternate-price" data-raw="999.00">$999</span>
	  <a class="product-link" href="/items/widget">view</a>
	</div>`
	base, _ := url.Parse("https://shop.example.com/catalog")
	core := NewCore()
	res, err := core.Extract([]byte(html), s, base)
	require.NoError(t, err)
	require.Equal(t, 1, res.RecordsValid)
	assert.Equal(t, 1.0, res.Records[0]["price"]) // fallback never consulted (invariant 2)
}

func TestJSONPathExtraction(t *testing.T) {
	s := schema.ParsingSchema{
		SchemaID: "jp", SourceID: "acme", StartURL: "https://x",
		Fields: []schema.FieldDefinition{
			{Name: "sku", Type: schema.TypeString, Method: schema.MethodJSONPath, Selector: "offers.sku", Required: true},
		},
	}
	s.ApplyDefaults()
	html := `<html><head><script type="application/ld+json">{"offers":{"sku":"ABC-123"}}</script></head><body></body></html>`
	core := NewCore()
	res, err := core.Extract([]byte(html), s, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.RecordsValid)
	assert.Equal(t, "ABC-123", res.Records[0]["sku"])
}

func TestRegexExtraction(t *testing.T) {
	s := schema.ParsingSchema{
		SchemaID: "rx", SourceID: "acme", StartURL: "https://x",
		Fields: []schema.FieldDefinition{
			{Name: "id", Type: schema.TypeString, Method: schema.MethodRegex, Selector: `data-id="(\d+)"`, Required: true},
		},
	}
	s.ApplyDefaults()
	html := `<div data-id="42">hello</div>`
	core := NewCore()
	res, err := core.Extract([]byte(html), s, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.RecordsValid)
	assert.Equal(t, "42", res.Records[0]["id"])
}
