package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

func regexpCompileDotAll(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?s)" + pattern)
}

// jsonPathLookup evaluates a minimal dotted/indexed path (e.g. "a.b[0].c")
// against the first successfully-decoded JSON blob in content. Hand-rolled
// rather than pulling in a full JSON-path library for this narrow a need.
func jsonPathLookup(content, path string) (string, bool) {
	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return "", false
	}
	cur := doc
	for _, segment := range splitPath(path) {
		name, index, hasIndex := splitIndex(segment)
		if name != "" {
			m, ok := cur.(map[string]any)
			if !ok {
				return "", false
			}
			cur, ok = m[name]
			if !ok {
				return "", false
			}
		}
		if hasIndex {
			arr, ok := cur.([]any)
			if !ok || index < 0 || index >= len(arr) {
				return "", false
			}
			cur = arr[index]
		}
	}
	return stringifyJSONValue(cur)
}

// splitPath splits a dotted path into raw segments, each of which may carry
// a trailing [n] index, e.g. "items[0]" -> one segment "items[0]".
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// splitIndex extracts an optional "[n]" suffix from a path segment.
func splitIndex(segment string) (name string, index int, hasIndex bool) {
	name = segment
	for strings.HasSuffix(name, "]") {
		open := strings.LastIndex(name, "[")
		if open < 0 {
			break
		}
		n, err := strconv.Atoi(name[open+1 : len(name)-1])
		if err != nil {
			break
		}
		index = n
		hasIndex = true
		name = name[:open]
	}
	return name, index, hasIndex
}

func stringifyJSONValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}
