package extract

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/99souls/harvester/internal/schema"
	"github.com/99souls/harvester/internal/transform"
)

func applyTransformations(raw string, field schema.FieldDefinition, baseURL *url.URL) string {
	ctx := transform.Context{BaseURL: baseURL}
	return transform.Apply(raw, field.Transformations, ctx)
}

// coerce converts a transformed string value to the field's declared type.
// A value that cannot be coerced is treated as null rather than surfaced as
// an error, letting default/validation handling in the caller take over.
func coerce(value string, t schema.FieldType) any {
	switch t {
	case schema.TypeString, schema.TypeDatetime, schema.TypeURL:
		return value
	case schema.TypeInteger:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			if f, ferr := strconv.ParseFloat(value, 64); ferr == nil {
				return int64(f)
			}
			return nil
		}
		return n
	case schema.TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil
		}
		return f
	case schema.TypeBoolean:
		folded := strings.ToLower(strings.TrimSpace(value))
		switch folded {
		case "true", "1", "yes":
			return true
		case "false", "0", "no", "":
			return false
		default:
			return true
		}
	case schema.TypeList:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	case schema.TypeJSON:
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return nil
		}
		return decoded
	default:
		return value
	}
}
