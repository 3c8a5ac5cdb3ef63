package extract

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/99souls/harvester/internal/schema"
)

func newByteReader(b []byte) io.Reader { return bytes.NewReader(b) }

// ResolveHref finds the first element matching selector in rawHTML and
// resolves its href attribute against base, for pagination strategies that
// drive the next page from a link's href rather than a URL template. An
// empty href or a "javascript:" pseudo-link is reported as no match.
func ResolveHref(rawHTML []byte, selector string, base *url.URL) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(newByteReader(rawHTML))
	if err != nil {
		return "", false
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	href, ok := sel.Attr("href")
	if !ok {
		return "", false
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	if base == nil {
		return href, true
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	return resolved.String(), true
}

// extractField resolves one field's raw string value against a record root,
// trying the primary selector first and then fallback_selectors in order;
// the first non-null result wins.
func (c *Core) extractField(root *goquery.Selection, rawHTML []byte, field schema.FieldDefinition, baseURL *url.URL) (string, bool) {
	if v, ok := extractWithSelector(root, rawHTML, field.Method, field.Selector, field.Attribute); ok {
		return v, true
	}
	for _, fallback := range field.FallbackSelectors {
		if v, ok := extractWithSelector(root, rawHTML, field.Method, fallback, field.Attribute); ok {
			return v, true
		}
	}
	return "", false
}

func extractWithSelector(root *goquery.Selection, rawHTML []byte, method schema.Method, selector, attribute string) (string, bool) {
	switch method {
	case schema.MethodCSS:
		selector, attribute = splitAttrShorthand(selector, attribute)
		return extractCSS(root, selector, attribute)
	case schema.MethodXPath:
		return extractXPath(root, selector, attribute)
	case schema.MethodRegex:
		return extractRegex(rawHTML, selector)
	case schema.MethodJSONPath:
		return extractJSONPath(rawHTML, selector)
	default:
		return "", false
	}
}

// splitAttrShorthand implements the CSS `selector@attr` shorthand: the
// suffix after the last '@' becomes the attribute to read, overriding any
// explicit Attribute set on the field for this selector attempt.
func splitAttrShorthand(selector, attribute string) (string, string) {
	if idx := strings.LastIndex(selector, "@"); idx >= 0 {
		return selector[:idx], selector[idx+1:]
	}
	return selector, attribute
}

func extractCSS(root *goquery.Selection, selector, attribute string) (string, bool) {
	sel := root
	if selector != "" {
		sel = root.Find(selector)
	}
	if sel.Length() == 0 {
		return "", false
	}
	if attribute != "" {
		v, ok := sel.Attr(attribute)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}
	text := strings.TrimSpace(sel.First().Text())
	if text == "" {
		return "", false
	}
	return text, true
}

func extractXPath(root *goquery.Selection, expr, attribute string) (string, bool) {
	if root.Length() == 0 {
		return "", false
	}
	node := root.Get(0)
	nodes, err := htmlquery.QueryAll(node, expr)
	if err != nil || len(nodes) == 0 {
		return "", false
	}
	target := nodes[0]
	if attribute != "" {
		v := htmlquery.SelectAttr(target, attribute)
		if v == "" {
			return "", false
		}
		return v, true
	}
	text := strings.TrimSpace(htmlquery.InnerText(target))
	if text == "" {
		return "", false
	}
	return text, true
}

func extractRegex(rawHTML []byte, pattern string) (string, bool) {
	re, err := regexpCompileDotAll(pattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(string(rawHTML))
	if m == nil {
		return "", false
	}
	if len(m) > 1 && m[1] != "" {
		return m[1], true
	}
	return m[0], true
}

func extractJSONPath(rawHTML []byte, path string) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return "", false
	}
	for _, node := range htmlquery.Find(doc, `//script[@type="application/json" or @type="application/ld+json"]`) {
		content := htmlquery.InnerText(node)
		if !json.Valid([]byte(content)) {
			continue
		}
		return jsonPathLookup(content, path)
	}
	return "", false
}
