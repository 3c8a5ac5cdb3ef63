package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/debug"
)

// HTTPPolicy holds the defaults applied to the Colly collector that each
// Fetch call builds.
type HTTPPolicy struct {
	DefaultTimeout time.Duration
	UserAgent      string
	MaxBodyBytes   int64
}

// HTTPFetcher fetches pages with a plain HTTP client, generalized from a
// single hard-coded collector into a per-request configurable fetch,
// matching how the scenario requires per-task headers, proxy, and cookies.
type HTTPFetcher struct {
	policy    HTTPPolicy
	completed int64
	failed    int64
	bytes     int64
}

// NewHTTPFetcher validates policy and returns an HTTPFetcher.
func NewHTTPFetcher(policy HTTPPolicy) (*HTTPFetcher, error) {
	if policy.DefaultTimeout <= 0 {
		return nil, fmt.Errorf("default_timeout must be positive, got %v", policy.DefaultTimeout)
	}
	if policy.UserAgent == "" {
		policy.UserAgent = "Mozilla/5.0 (compatible; HarvesterBot/1.0)"
	}
	return &HTTPFetcher{policy: policy}, nil
}

// Fetch performs one request, honoring req.Timeout over the fetcher's
// default, and req.Headers/Cookies/ProxyURL for this attempt only — the
// collector is built fresh per call so concurrent fetches never share
// mutable state and per-task proxy/header overrides stay isolated.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	u, err := url.Parse(req.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target url %q: %w", req.TargetURL, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.policy.DefaultTimeout
	}

	c := colly.NewCollector(colly.Debugger(&debug.LogDebugger{}))
	c.SetRequestTimeout(timeout)
	c.UserAgent = f.policy.UserAgent

	if req.ProxyURL != "" {
		proxyURL, perr := url.Parse(req.ProxyURL)
		if perr != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", req.ProxyURL, perr)
		}
		c.WithTransport(&http.Transport{Proxy: http.ProxyURL(proxyURL)})
	}

	for _, ck := range req.Cookies {
		c.OnRequest(func(r *colly.Request) {
			r.Headers.Add("Cookie", fmt.Sprintf("%s=%s", ck.Name, ck.Value))
		})
	}

	for k, v := range req.Headers {
		k, v := k, v
		c.OnRequest(func(r *colly.Request) { r.Headers.Set(k, v) })
	}

	result := &Result{Headers: make(map[string]string)}
	start := time.Now()

	c.OnResponse(func(r *colly.Response) {
		result.HTML = r.Body
		result.StatusCode = r.StatusCode
		result.FinalURL = r.Request.URL
		result.BytesDownloaded = int64(len(r.Body))
		if r.Headers != nil {
			for key, values := range *r.Headers {
				if len(values) > 0 {
					result.Headers[key] = values[0]
				}
			}
		}
		atomic.AddInt64(&f.completed, 1)
		atomic.AddInt64(&f.bytes, result.BytesDownloaded)
	})

	var fetchErr error
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		atomic.AddInt64(&f.failed, 1)
	})

	visitDone := make(chan error, 1)
	go func() { visitDone <- c.Visit(u.String()) }()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-visitDone:
		if err != nil {
			return nil, fmt.Errorf("fetch %q: %w", u.String(), err)
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	result.DurationMS = time.Since(start).Milliseconds()
	if result.FinalURL == nil {
		result.FinalURL = u
	}
	return result, nil
}

// Close is a no-op: the HTTP fetcher holds no long-lived resources between
// calls.
func (f *HTTPFetcher) Close() error { return nil }

// Stats reports cumulative counters across every Fetch call on this
// instance.
func (f *HTTPFetcher) Stats() (completed, failed, bytes int64) {
	return atomic.LoadInt64(&f.completed), atomic.LoadInt64(&f.failed), atomic.LoadInt64(&f.bytes)
}
