package transform

import (
	"encoding/json"
	"html"
	"net/url"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func stripHTMLTransform(v string, _ Context) string {
	return tagPattern.ReplaceAllString(v, "")
}

func decodeEntitiesTransform(v string, _ Context) string {
	return html.UnescapeString(v)
}

func absoluteURLTransform(v string, ctx Context) string {
	if v == "" {
		return v
	}
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return v
	}
	if ctx.BaseURL == nil {
		return v
	}
	if strings.HasPrefix(v, "//") {
		return ctx.BaseURL.Scheme + ":" + v
	}
	ref, err := url.Parse(v)
	if err != nil {
		return v
	}
	return ctx.BaseURL.ResolveReference(ref).String()
}

func extractDomainTransform(v string, _ Context) string {
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		// Fall back to treating the raw value as a bare host/path.
		u2, err2 := url.Parse("//" + v)
		if err2 != nil {
			return v
		}
		u = u2
	}
	return u.Hostname()
}

var truthyTokens = map[string]struct{}{
	"true": {}, "yes": {}, "1": {}, "on": {},
	"да": {}, "есть": {}, "в наличии": {}, "in stock": {},
}

var falsyTokens = map[string]struct{}{
	"false": {}, "no": {}, "0": {}, "off": {},
	"нет": {}, "отсутствует": {}, "out of stock": {},
}

func toBoolTransform(v string, _ Context) string {
	folded := strings.ToLower(strings.TrimSpace(v))
	if _, ok := truthyTokens[folded]; ok {
		return "true"
	}
	if _, ok := falsyTokens[folded]; ok {
		return "false"
	}
	if folded != "" {
		return "true"
	}
	return "false"
}

func parseJSONTransform(v string, _ Context) string {
	var out any
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return v
	}
	reencoded, err := json.Marshal(out)
	if err != nil {
		return v
	}
	return string(reencoded)
}

func regexSearch(v, pattern string, group int) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return v
	}
	m := re.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	if group < len(m) {
		return m[group]
	}
	return m[0]
}
