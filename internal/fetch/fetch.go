// Package fetch implements the two fetcher modes: a Colly-backed HTTP
// fetcher for static pages and a go-rod-backed browser fetcher for pages
// that require JavaScript rendering and scripted navigation.
package fetch

import (
	"context"
	"net/url"
	"time"

	"github.com/99souls/harvester/internal/schema"
)

// Request describes one fetch attempt against a single target URL.
type Request struct {
	TargetURL     string
	Headers       map[string]string
	Cookies       []CookieParam
	ProxyURL      string
	Timeout       time.Duration
	NavigationSteps []schema.NavigationStep
	StepCeiling   time.Duration
	TakeScreenshot bool
}

// CookieParam carries one cookie to be set before navigation.
type CookieParam struct {
	Name, Value, Domain, Path string
}

// Result carries everything the extraction core and the result envelope
// need out of a single fetch.
type Result struct {
	HTML            []byte
	FinalURL        *url.URL
	StatusCode      int
	Headers         map[string]string
	DurationMS      int64
	BytesDownloaded int64
	ScreenshotPNG   []byte
	NavigationError *NavigationError
}

// NavigationError records which navigation step failed and whether it was
// marked optional in the schema.
type NavigationError struct {
	StepIndex int
	Action    schema.NavigationAction
	Optional  bool
	Timeout   bool
	Err       error
}

func (e *NavigationError) Error() string {
	if e == nil || e.Err == nil {
		return "navigation step failed"
	}
	return e.Err.Error()
}

// Fetcher performs a single-page fetch for one task attempt.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
	Close() error
}
