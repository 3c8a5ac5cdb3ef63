package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/99souls/harvester/internal/schema"
	"github.com/99souls/harvester/internal/task"
)

// BrowserPolicy configures the shared headless Chrome instance and the
// bounded pool of pages drawn from it.
type BrowserPolicy struct {
	MaxSessions    int
	Headless       bool
	DefaultTimeout time.Duration
	ViewportWidth  int
	ViewportHeight int
	StealthInitScript string
}

// BrowserFetcher executes schema-driven navigation steps against a pool of
// pages carved from one shared browser, adapted from the incognito-context
// session pool pattern into a bounded semaphore sized to browser_sessions.
type BrowserFetcher struct {
	policy  BrowserPolicy
	browser *rod.Browser
	sem     chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewBrowserFetcher launches (or connects to) a Chrome instance and
// prepares a session pool bounded by policy.MaxSessions.
func NewBrowserFetcher(policy BrowserPolicy) (*BrowserFetcher, error) {
	if policy.MaxSessions <= 0 {
		policy.MaxSessions = 5
	}
	if policy.DefaultTimeout <= 0 {
		policy.DefaultTimeout = 60 * time.Second
	}
	if policy.ViewportWidth == 0 {
		policy.ViewportWidth = 1920
	}
	if policy.ViewportHeight == 0 {
		policy.ViewportHeight = 1080
	}

	controlURL, err := launcher.New().Headless(policy.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &BrowserFetcher{
		policy:  policy,
		browser: browser,
		sem:     make(chan struct{}, policy.MaxSessions),
	}, nil
}

// acquire blocks until a session slot is free or ctx is cancelled.
func (f *BrowserFetcher) acquire(ctx context.Context) error {
	select {
	case f.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *BrowserFetcher) release() { <-f.sem }

// Fetch opens a fresh incognito page, applies req.Cookies (req.Headers is
// not applied in browser mode), runs the
// schema's navigation steps in order, and returns the rendered HTML (plus a
// screenshot when requested). A non-optional step failure is reported via
// Result.NavigationError rather than as a Go error, so the worker can
// classify it against the error taxonomy (TIMEOUT vs SELECTOR_NOT_FOUND)
// instead of losing that distinction behind a generic wrapped error.
func (f *BrowserFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	defer f.release()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.policy.DefaultTimeout
	}
	stepCeiling := req.StepCeiling
	if stepCeiling <= 0 {
		stepCeiling = 10 * time.Second
	}

	incognito, err := f.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width: f.policy.ViewportWidth, Height: f.policy.ViewportHeight, DeviceScaleFactor: 1,
	}).Call(page); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if f.policy.StealthInitScript != "" {
		if _, err := page.EvalOnNewDocument(f.policy.StealthInitScript); err != nil {
			return nil, fmt.Errorf("install stealth init script: %w", err)
		}
	}

	if len(req.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(req.Cookies))
		for _, ck := range req.Cookies {
			params = append(params, &proto.NetworkCookieParam{Name: ck.Name, Value: ck.Value, Domain: ck.Domain, Path: ck.Path})
		}
		if err := page.SetCookies(params); err != nil {
			return nil, fmt.Errorf("set cookies: %w", err)
		}
	}

	start := time.Now()

	if err := page.Timeout(timeout).Navigate(req.TargetURL); err != nil {
		return nil, fmt.Errorf("navigate to %q: %w", req.TargetURL, err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for load %q: %w", req.TargetURL, err)
	}

	for i, step := range req.NavigationSteps {
		if navErr := f.runStep(page, step, stepCeiling); navErr != nil {
			navErr.StepIndex = i
			navErr.Action = step.Action
			navErr.Optional = step.Optional
			if step.Optional {
				continue
			}
			partial, htmlErr := page.HTML()
			res := &Result{NavigationError: navErr, DurationMS: time.Since(start).Milliseconds()}
			if htmlErr == nil {
				res.HTML = []byte(partial)
			}
			return res, nil
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html: %w", err)
	}

	result := &Result{
		HTML:       []byte(html),
		StatusCode: 200,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if info, err := page.Info(); err == nil {
		result.Headers = map[string]string{"title": info.Title}
	}

	if req.TakeScreenshot {
		png, err := page.Screenshot(true, nil)
		if err == nil {
			result.ScreenshotPNG = png
		}
	}

	return result, nil
}

// runStep executes one of the schema's eight navigation actions against
// page, enforcing the per-step ceiling.
func (f *BrowserFetcher) runStep(page *rod.Page, step schema.NavigationStep, ceiling time.Duration) *NavigationError {
	p := page.Timeout(ceiling)
	wait := time.Duration(step.WaitMS) * time.Millisecond

	var err error
	switch step.Action {
	case schema.ActionGoto:
		err = p.Navigate(step.Target)
	case schema.ActionClick:
		var el *rod.Element
		el, err = p.Element(step.Target)
		if err == nil {
			err = el.Click(proto.InputMouseButtonLeft, 1)
		}
	case schema.ActionScroll:
		_, err = p.Evaluate(&rod.EvalOptions{
			JS:           `() => window.scrollTo(0, document.body.scrollHeight)`,
			ByValue:      true,
			AwaitPromise: true,
		})
	case schema.ActionWait:
		if step.WaitFor != "" {
			_, err = p.Element(step.WaitFor)
		}
	case schema.ActionInput:
		var el *rod.Element
		el, err = p.Element(step.Target)
		if err == nil {
			err = el.Input(step.Value)
		}
	case schema.ActionHover:
		var el *rod.Element
		el, err = p.Element(step.Target)
		if err == nil {
			err = el.Hover()
		}
	case schema.ActionSelect:
		var el *rod.Element
		el, err = p.Element(step.Target)
		if err == nil {
			err = el.Select([]string{step.Value}, true, rod.SelectorTypeText)
		}
	case schema.ActionScreenshot:
		_, err = p.Screenshot(true, nil)
	default:
		err = fmt.Errorf("unknown navigation action %q", step.Action)
	}

	if wait > 0 {
		time.Sleep(wait)
	}

	if err != nil {
		return &NavigationError{Timeout: isTimeoutErr(err), Err: err}
	}
	return nil
}

func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(interface{ Timeout() bool })
	if ok {
		return true
	}
	return ctxDeadlineExceeded(err)
}

func ctxDeadlineExceeded(err error) bool {
	return err == context.DeadlineExceeded
}

// Close tears down the shared browser; in-flight fetches should have
// completed first.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.browser.Close()
}

// classify maps a NavigationError onto the task error taxonomy: timeouts
// become TIMEOUT, anything else on a required step becomes
// SELECTOR_NOT_FOUND (the common case: element never appeared).
func (e *NavigationError) classify() task.ErrorCode {
	if e.Timeout {
		return task.CodeTimeout
	}
	return task.CodeSelectorNotFound
}

// Classify exposes the taxonomy mapping for the worker loop.
func (e *NavigationError) Classify() task.ErrorCode { return e.classify() }
