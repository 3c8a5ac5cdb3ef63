package transform

import "time"

// dateLayouts mirrors the reference implementation's ordered format list for
// date-only values.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// datetimeLayouts mirrors the reference implementation's ordered format list
// for timestamped values.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04",
	"02/01/2006 15:04:05",
}

func parseDateTransform(v string, _ Context) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	// On total parse failure the transform returns the input unchanged,
	// matching the reference implementation: a non-date string should still
	// flow through default/validation handling rather than abort extraction.
	return v
}

func parseDatetimeTransform(v string, _ Context) string {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return v
}
