package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHref_ResolvesRelativeHrefAgainstBase(t *testing.T) {
	base, err := url.Parse("https://example.com/list")
	require.NoError(t, err)

	html := []byte(`<html><body><a class="next-page" href="/list?page=2">Next</a></body></html>`)
	got, ok := ResolveHref(html, "a.next-page", base)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/list?page=2", got)
}

func TestResolveHref_MissingElementMisses(t *testing.T) {
	base, _ := url.Parse("https://example.com/list")
	html := []byte(`<html><body></body></html>`)
	_, ok := ResolveHref(html, "a.next-page", base)
	assert.False(t, ok)
}

func TestResolveHref_EmptyHrefMisses(t *testing.T) {
	base, _ := url.Parse("https://example.com/list")
	html := []byte(`<html><body><a class="next-page" href="">Next</a></body></html>`)
	_, ok := ResolveHref(html, "a.next-page", base)
	assert.False(t, ok)
}

func TestResolveHref_JavascriptHrefMisses(t *testing.T) {
	base, _ := url.Parse("https://example.com/list")
	html := []byte(`<html><body><a class="next-page" href="javascript:void(0)">Next</a></body></html>`)
	_, ok := ResolveHref(html, "a.next-page", base)
	assert.False(t, ok)
}
