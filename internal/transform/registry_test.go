package transform

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_EmptyChainIsIdentity(t *testing.T) {
	assert.Equal(t, "  spaced  ", Apply("  spaced  ", nil, Context{}))
}

func TestApply_TrimIsIdempotent(t *testing.T) {
	once := Apply("  hi  ", []string{"trim"}, Context{})
	twice := Apply("  hi  ", []string{"trim", "trim"}, Context{})
	assert.Equal(t, once, twice)
	assert.Equal(t, "hi", once)
}

func TestExtractNumber_FormatSymmetric(t *testing.T) {
	a := extractNumberTransform("1,234.56", Context{})
	b := extractNumberTransform("1.234,56", Context{})
	assert.Equal(t, a, b)
	assert.Equal(t, "1234.56", a)
}

func TestExtractNumber_CommaAsDecimal(t *testing.T) {
	assert.Equal(t, "12.50", extractNumberTransform("12,50", Context{}))
}

func TestExtractNumber_CommaAsThousands(t *testing.T) {
	assert.Equal(t, "1200", extractNumberTransform("1,200", Context{}))
}

func TestExtractPrice(t *testing.T) {
	p, ok := ExtractPrice("$1,234.56")
	require.True(t, ok)
	assert.Equal(t, 1234.56, p.Amount)
	assert.Equal(t, "USD", p.Currency)
}

func TestParseDate_UnknownFormatReturnsInputUnchanged(t *testing.T) {
	assert.Equal(t, "not-a-date", parseDateTransform("not-a-date", Context{}))
}

func TestParseDate_KnownFormat(t *testing.T) {
	assert.Equal(t, "2024-03-05", parseDateTransform("05.03.2024", Context{}))
}

func TestToBool(t *testing.T) {
	cases := map[string]string{
		"true":       "true",
		"в наличии":  "true",
		"out of stock": "false",
		"0":          "false",
		"banana":     "true",
		"":           "false",
	}
	for in, want := range cases {
		assert.Equal(t, want, toBoolTransform(in, Context{}), "input %q", in)
	}
}

func TestAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://example.com/catalog/")
	require.NoError(t, err)
	ctx := Context{BaseURL: base}
	assert.Equal(t, "https://example.com/catalog/item/1", absoluteURLTransform("item/1", ctx))
	assert.Equal(t, "https://example.com/absolute", absoluteURLTransform("https://example.com/absolute", ctx))
	assert.Equal(t, "https://cdn.example.com/x.png", absoluteURLTransform("//cdn.example.com/x.png", ctx))
}

func TestRegexReplaceSubstrParams(t *testing.T) {
	assert.Equal(t, "123", Apply("price: 123 usd", []string{"regex:\\d+"}, Context{}))
	assert.Equal(t, "new value", Apply("old value", []string{"replace:old:new"}, Context{}))
	assert.Equal(t, "ell", Apply("hello", []string{"substr:1:4"}, Context{}))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("trim"))
	assert.True(t, Known("regex:.*"))
	assert.False(t, Known("not_a_real_transform"))
}
