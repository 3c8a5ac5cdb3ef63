// Package transform implements the closed registry of pure transformation
// functions applied to raw extracted values before type coercion.
package transform

import (
	"net/url"
	"strconv"
	"strings"
)

// Context carries the optional base URL used by URL-resolving transforms.
type Context struct {
	BaseURL *url.URL
}

// Func is a single named transform. It receives the current string value and
// returns the transformed string. Transforms never error: an input they
// cannot meaningfully act on is returned unchanged.
type Func func(value string, ctx Context) string

var registry = map[string]Func{
	"trim":                trimTransform,
	"lowercase":           lowercaseTransform,
	"uppercase":           uppercaseTransform,
	"capitalize":          capitalizeTransform,
	"title":               titleTransform,
	"normalize_whitespace": normalizeWhitespaceTransform,
	"remove_newlines":     removeNewlinesTransform,
	"extract_number":      extractNumberTransform,
	"extract_int":         extractIntTransform,
	"extract_float":       extractFloatTransform,
	"extract_price":       extractPriceTransform,
	"absolute_url":        absoluteURLTransform,
	"extract_domain":      extractDomainTransform,
	"parse_date":          parseDateTransform,
	"parse_datetime":      parseDatetimeTransform,
	"strip_html":          stripHTMLTransform,
	"decode_entities":     decodeEntitiesTransform,
	"to_bool":             toBoolTransform,
	"parse_json":          parseJSONTransform,
}

// Apply runs an ordered chain of named transforms, left to right. Unknown
// names and parameterized transforms (regex:/replace:/substr:) are dispatched
// here. Applying an empty chain is the identity.
func Apply(value string, chain []string, ctx Context) string {
	for _, name := range chain {
		value = applyOne(value, name, ctx)
	}
	return value
}

func applyOne(value, name string, ctx Context) string {
	switch {
	case strings.HasPrefix(name, "regex:"):
		return applyRegexParam(value, strings.TrimPrefix(name, "regex:"))
	case strings.HasPrefix(name, "replace:"):
		return applyReplaceParam(value, strings.TrimPrefix(name, "replace:"))
	case strings.HasPrefix(name, "substr:"):
		return applySubstrParam(value, strings.TrimPrefix(name, "substr:"))
	}
	if fn, ok := registry[name]; ok {
		return fn(value, ctx)
	}
	// Unknown transform names are a no-op; nothing is logged for them.
	return value
}

// Known reports whether name is a registered transform (including the
// parameterized regex:/replace:/substr: families). Schema validation does
// not call it: an unknown transform name in a schema is accepted at load
// time and is a no-op at extraction time.
func Known(name string) bool {
	if strings.HasPrefix(name, "regex:") || strings.HasPrefix(name, "replace:") || strings.HasPrefix(name, "substr:") {
		return true
	}
	_, ok := registry[name]
	return ok
}

func trimTransform(v string, _ Context) string { return strings.TrimSpace(v) }
func lowercaseTransform(v string, _ Context) string { return strings.ToLower(v) }
func uppercaseTransform(v string, _ Context) string { return strings.ToUpper(v) }

func capitalizeTransform(v string, _ Context) string {
	if v == "" {
		return v
	}
	r := []rune(v)
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

func titleTransform(v string, _ Context) string {
	words := strings.Fields(v)
	for i, w := range words {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		words[i] = strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}

func normalizeWhitespaceTransform(v string, _ Context) string {
	return strings.Join(strings.Fields(v), " ")
}

func removeNewlinesTransform(v string, _ Context) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}

func applyRegexParam(v, param string) string {
	pattern, group := splitParam2(param)
	g := 0
	if group != "" {
		if n, err := strconv.Atoi(group); err == nil {
			g = n
		}
	}
	return regexSearch(v, pattern, g)
}

func applyReplaceParam(v, param string) string {
	old, repl := splitParam2(param)
	return strings.ReplaceAll(v, old, repl)
}

func applySubstrParam(v, param string) string {
	startStr, endStr := splitParam2(param)
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return v
	}
	if start < 0 {
		start = 0
	}
	r := []rune(v)
	if start > len(r) {
		start = len(r)
	}
	end := len(r)
	if endStr != "" {
		if n, err := strconv.Atoi(endStr); err == nil {
			end = n
		}
	}
	if end > len(r) {
		end = len(r)
	}
	if end < start {
		end = start
	}
	return string(r[start:end])
}

// splitParam2 splits a colon-delimited parameter string into at most two
// parts, mirroring the reference implementation's `str.split(":", 1)` /
// `split(":")` behavior for regex:/replace:/substr: transforms.
func splitParam2(param string) (string, string) {
	parts := strings.SplitN(param, ":", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
