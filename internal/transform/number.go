package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numberJunk = regexp.MustCompile(`[^\d.,\-]`)

// normalizeNumber disambiguates thousands/decimal separators per the rule
// used throughout the reference implementation: if both ',' and '.' appear,
// whichever occurs last in the string is the decimal separator and the other
// is a thousands separator (stripped); if only ',' appears, it is treated as
// the decimal separator when exactly two digits follow it, otherwise as a
// thousands separator.
func normalizeNumber(raw string) (string, bool) {
	cleaned := numberJunk.ReplaceAllString(raw, "")
	if cleaned == "" {
		return "", false
	}

	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	var normalized string
	switch {
	case hasComma && hasDot:
		lastComma := strings.LastIndex(cleaned, ",")
		lastDot := strings.LastIndex(cleaned, ".")
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(cleaned[:lastComma], ".", "")
			normalized = strings.ReplaceAll(normalized, ",", "")
			normalized += "." + cleaned[lastComma+1:]
		} else {
			normalized = strings.ReplaceAll(cleaned[:lastDot], ",", "")
			normalized = strings.ReplaceAll(normalized, ".", "")
			normalized += "." + cleaned[lastDot+1:]
		}
	case hasComma:
		lastComma := strings.LastIndex(cleaned, ",")
		trailing := len(cleaned) - lastComma - 1
		if trailing == 2 {
			normalized = strings.ReplaceAll(cleaned[:lastComma], ",", "") + "." + cleaned[lastComma+1:]
		} else {
			normalized = strings.ReplaceAll(cleaned, ",", "")
		}
	default:
		normalized = cleaned
	}

	if negative {
		normalized = "-" + normalized
	}
	return normalized, true
}

func extractNumberTransform(v string, _ Context) string {
	n, ok := normalizeNumber(v)
	if !ok {
		return v
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func extractIntTransform(v string, ctx Context) string {
	n := extractNumberTransform(v, ctx)
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return v
	}
	return strconv.FormatInt(int64(f), 10)
}

func extractFloatTransform(v string, ctx Context) string {
	return extractNumberTransform(v, ctx)
}

var currencySymbols = map[string]string{
	"$":  "USD",
	"€":  "EUR",
	"£":  "GBP",
	"¥":  "JPY",
	"₽":  "RUB",
	"₴":  "UAH",
	"zł": "PLN",
	"kr": "SEK",
}

// Price is the structured result of the extract_price transform.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

func extractPriceTransform(v string, ctx Context) string {
	p, ok := ExtractPrice(v)
	if !ok {
		return v
	}
	if p.Currency != "" {
		return fmt.Sprintf(`{"amount":%s,"currency":"%s"}`, strconv.FormatFloat(p.Amount, 'f', -1, 64), p.Currency)
	}
	return fmt.Sprintf(`{"amount":%s}`, strconv.FormatFloat(p.Amount, 'f', -1, 64))
}

// ExtractPrice parses an amount and optional currency code out of a raw
// price string, applying the same number-disambiguation rule as
// extract_number.
func ExtractPrice(v string) (Price, bool) {
	var currency string
	for sym, code := range currencySymbols {
		if strings.Contains(v, sym) {
			currency = code
			break
		}
	}
	n, ok := normalizeNumber(v)
	if !ok {
		return Price{}, false
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return Price{}, false
	}
	return Price{Amount: f, Currency: currency}, true
}
