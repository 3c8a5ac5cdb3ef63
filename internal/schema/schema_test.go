package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() ParsingSchema {
	return ParsingSchema{
		SchemaID:      "catalog-v1",
		SourceID:      "acme",
		StartURL:      "https://shop.example.com/catalog",
		ItemContainer: "div.product-card",
		Fields: []FieldDefinition{
			{Name: "name", Type: TypeString, Method: MethodCSS, Selector: "h2.product-name", Required: true},
			{Name: "price", Type: TypeFloat, Method: MethodCSS, Selector: "span.price@data-raw", Required: true, Transformations: []string{"extract_number"}},
			{Name: "url", Type: TypeURL, Method: MethodCSS, Selector: "a.product-link@href", Transformations: []string{"absolute_url"}},
		},
	}
}

func TestApplyDefaultsAndValidate(t *testing.T) {
	s := sampleSchema()
	s.ApplyDefaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, "1.0.0", s.Version)
	assert.Equal(t, ModeHTTP, s.Mode)
	assert.Equal(t, 1, s.MinFieldsRequired)
}

func TestValidate_DuplicateFieldName(t *testing.T) {
	s := sampleSchema()
	s.ApplyDefaults()
	s.Fields = append(s.Fields, s.Fields[0])
	assert.Error(t, s.Validate())
}

func TestValidate_DedupKeyMustExist(t *testing.T) {
	s := sampleSchema()
	s.ApplyDefaults()
	s.DedupKeys = []string{"does_not_exist"}
	assert.Error(t, s.Validate())
}

func TestValidate_BadSemver(t *testing.T) {
	s := sampleSchema()
	s.Version = "v1"
	assert.Error(t, s.Validate())
}

func TestPaginationApplyDefaults(t *testing.T) {
	p := PaginationRule{Type: PaginationNextButton, Selector: "a.next"}
	p.ApplyDefaults()
	assert.Equal(t, 1, p.ParamStart)
	assert.Equal(t, 10, p.MaxPages)
	require.NoError(t, p.Validate())
}

func TestPaginationValidate_MissingSelector(t *testing.T) {
	p := PaginationRule{Type: PaginationNextButton}
	p.ApplyDefaults()
	assert.Error(t, p.Validate())
}
