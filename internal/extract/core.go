// Package extract implements the schema-driven Extraction Core: selector
// resolution (CSS/XPath/regex/JSON-path), the transformation pipeline, type
// coercion, and record validation.
package extract

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/99souls/harvester/internal/schema"
)

// Result is the outcome of running the extraction core over one document.
type Result struct {
	Records         []Record
	RejectedRecords []Record
	RecordsExtracted int
	RecordsValid     int
	RecordsRejected  int
	FieldsExtracted  map[string]int
	FieldsMissing    map[string]int
}

// Record is one name -> typed value map produced from a single record root.
type Record map[string]any

// Core runs the extraction algorithm: parse once, locate record roots,
// resolve each field's value through its selector chain, apply
// transformations, coerce to the declared type, validate, and reject
// records that fall below min_fields_required.
type Core struct{}

// NewCore constructs an Extraction Core. It carries no state: every method
// is a pure, deterministic function of its (document, schema) input.
func NewCore() *Core { return &Core{} }

// Extract parses html and yields validated records plus extraction
// statistics, bound to baseURL for URL-resolving transforms and relative
// link handling.
func (c *Core) Extract(html []byte, s schema.ParsingSchema, baseURL *url.URL) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(newByteReader(html))
	if err != nil {
		return Result{}, err
	}

	res := Result{
		FieldsExtracted: make(map[string]int),
		FieldsMissing:   make(map[string]int),
	}

	var roots []*goquery.Selection
	if s.ItemContainer != "" {
		doc.Find(s.ItemContainer).Each(func(_ int, sel *goquery.Selection) {
			roots = append(roots, sel)
		})
	} else {
		roots = []*goquery.Selection{doc.Selection}
	}

	for _, root := range roots {
		record, valid := c.extractRecord(root, html, s, baseURL, &res)
		res.RecordsExtracted++
		if valid {
			res.Records = append(res.Records, record)
			res.RecordsValid++
		} else {
			res.RejectedRecords = append(res.RejectedRecords, record)
			res.RecordsRejected++
		}
	}

	return res, nil
}

func (c *Core) extractRecord(root *goquery.Selection, rawHTML []byte, s schema.ParsingSchema, baseURL *url.URL, stats *Result) (Record, bool) {
	record := make(Record, len(s.Fields))

	for _, field := range s.Fields {
		value, found := c.extractField(root, rawHTML, field, baseURL)
		if found {
			stats.FieldsExtracted[field.Name]++
		} else {
			stats.FieldsMissing[field.Name]++
		}

		var final any = nil
		if found {
			transformed := applyTransformations(value, field, baseURL)
			if re, _ := field.CompiledValidation(); re != nil && !re.MatchString(transformed) {
				final = field.Default
			} else {
				final = coerce(transformed, field.Type)
			}
		}
		if final == nil && field.Default != nil {
			final = field.Default
		}
		record[field.Name] = final
	}

	return record, validateRecord(record, s)
}

func validateRecord(record Record, s schema.ParsingSchema) bool {
	nonNullRequired := 0
	for _, field := range s.Fields {
		if !field.Required {
			continue
		}
		if record[field.Name] != nil {
			nonNullRequired++
		} else {
			return false
		}
	}
	return nonNullRequired >= s.MinFieldsRequired
}
