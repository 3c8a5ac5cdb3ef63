// Package worker implements the Worker Loop: consume a task message, resolve
// its schema, fetch its target, extract records, persist them, spawn any
// pagination child task, publish a result envelope, and acknowledge.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/99souls/harvester/internal/bus"
	"github.com/99souls/harvester/internal/extract"
	"github.com/99souls/harvester/internal/fetch"
	"github.com/99souls/harvester/internal/ratelimit"
	"github.com/99souls/harvester/internal/schema"
	"github.com/99souls/harvester/internal/schemacache"
	"github.com/99souls/harvester/internal/storage"
	"github.com/99souls/harvester/internal/task"
)

// Worker drains one task stream (HTTP or browser mode), running every task
// to completion before acking it. One Worker instance corresponds to one
// consumer identity on the bus.
type Worker struct {
	id          string
	useBrowser  bool
	bus         *bus.Client
	fetcher     fetch.Fetcher
	core        *extract.Core
	schemas     *schemacache.Cache
	limiter     ratelimit.RateLimiter
	bronze      *storage.BronzeWriter
	trash       *storage.TrashWriter
	logger      *zap.Logger
	concurrency int
}

// Config bundles a Worker's dependencies.
type Config struct {
	WorkerID    string
	UseBrowser  bool
	Bus         *bus.Client
	Fetcher     fetch.Fetcher
	Core        *extract.Core
	Schemas     *schemacache.Cache
	Limiter     ratelimit.RateLimiter
	Bronze      *storage.BronzeWriter
	Trash       *storage.TrashWriter
	Logger      *zap.Logger
	Concurrency int
}

// New builds a Worker from cfg, defaulting Concurrency to 1 and Logger to a
// no-op logger when unset.
func New(cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Worker{
		id: cfg.WorkerID, useBrowser: cfg.UseBrowser, bus: cfg.Bus, fetcher: cfg.Fetcher,
		core: cfg.Core, schemas: cfg.Schemas, limiter: cfg.Limiter, bronze: cfg.Bronze,
		trash: cfg.Trash, logger: cfg.Logger, concurrency: cfg.Concurrency,
	}
}

// Loader adapts a schema source (the schema service, or a static test
// fixture) to schemacache.Loader; workers never talk to the schema service
// directly, only through the cache's read-through seam.
type Loader = schemacache.Loader

// Run blocks, repeatedly consuming up to w.concurrency task deliveries and
// processing each batch under an errgroup bounded to w.concurrency, until
// ctx is cancelled. A panic or error in one delivery's processing never
// aborts its batch-mates: processDelivery itself never returns an error.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := w.bus.ConsumeTasks(ctx, w.useBrowser, int64(w.concurrency), 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("consume tasks failed", zap.Error(err))
			continue
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(w.concurrency)
		for _, d := range deliveries {
			d := d
			eg.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						w.logger.Error("panic processing delivery", zap.Any("panic", r), zap.String("delivery_id", d.ID))
					}
				}()
				w.processDelivery(egCtx, d)
				return nil
			})
		}
		_ = eg.Wait()
	}
}

func (w *Worker) processDelivery(ctx context.Context, d bus.Delivery) {
	var msg task.Message
	if err := json.Unmarshal(d.Envelope.Payload, &msg); err != nil {
		w.logger.Warn("malformed task payload, dropping", zap.Error(err), zap.String("delivery_id", d.ID))
		w.ack(ctx, d.ID)
		return
	}

	env, childMsgs := w.process(ctx, msg)

	if payload, err := json.Marshal(env); err != nil {
		w.logger.Error("marshal result envelope failed", zap.Error(err), zap.String("task_id", msg.TaskID))
	} else if _, err := w.bus.PublishResult(ctx, payload); err != nil {
		w.logger.Error("publish result failed", zap.Error(err), zap.String("task_id", msg.TaskID))
	}
	for _, child := range childMsgs {
		payload, err := json.Marshal(child)
		if err != nil {
			w.logger.Error("marshal child task failed", zap.Error(err), zap.String("task_id", child.TaskID))
			continue
		}
		if _, err := w.bus.PublishTask(ctx, w.useBrowser, child.Priority, time.Duration(child.TTLSeconds)*time.Second, payload); err != nil {
			w.logger.Error("publish child task failed", zap.Error(err), zap.String("task_id", child.TaskID))
		}
	}
	if env.Status == task.ResultFailed && !env.ShouldRetry() {
		if payload, err := json.Marshal(msg); err != nil {
			w.logger.Error("marshal dlq payload failed", zap.Error(err), zap.String("task_id", msg.TaskID))
		} else if _, err := w.bus.PublishDLQ(ctx, payload); err != nil {
			w.logger.Error("publish dlq failed", zap.Error(err), zap.String("task_id", msg.TaskID))
		}
	}

	w.ack(ctx, d.ID)
}

func (w *Worker) ack(ctx context.Context, id string) {
	stream := w.bus.TaskStreamName(w.useBrowser)
	if err := w.bus.Ack(ctx, stream, id); err != nil {
		w.logger.Warn("ack failed", zap.Error(err), zap.String("delivery_id", id))
	}
}

// process runs the full pipeline for one task message and returns the
// completed result envelope plus any pagination child-task messages to
// publish alongside it.
func (w *Worker) process(ctx context.Context, msg task.Message) (task.ResultEnvelope, []task.Message) {
	start := time.Now().UTC()
	rb := task.NewResultBuilder(msg.TaskID, msg.RunID).SetStarted(start).SetWorkerID(w.id).SetCurrentPage(msg.PageNumber)

	s, err := w.schemas.Get(ctx, msg.SchemaID, msg.SchemaVersion)
	if err != nil {
		rb.AddError(task.NewError(task.CodeParseError, fmt.Sprintf("resolve schema: %v", err)))
		return rb.BuildFailed(time.Now().UTC()), nil
	}

	targetURL := msg.TargetURL
	domain := hostOf(targetURL)

	permit, err := w.limiter.Acquire(ctx, domain)
	if err != nil {
		rb.AddError(task.NewError(task.CodeRateLimited, fmt.Sprintf("acquire rate limit permit: %v", err)))
		return rb.BuildRetry(time.Now().UTC()), nil
	}
	defer permit.Release()

	req := fetch.Request{
		TargetURL:       targetURL,
		Headers:         mergeHeaders(s.RequestHeaders, msg.Headers),
		Cookies:         toCookieParams(msg.Cookies),
		ProxyURL:        "", // resolved from msg.ProxyProfileID by a profile resolver, not modeled here
		Timeout:         30 * time.Second,
		NavigationSteps: s.NavigationSteps,
		StepCeiling:     10 * time.Second,
		TakeScreenshot:  false,
	}

	fetchStart := time.Now()
	result, err := w.fetcher.Fetch(ctx, req)
	duration := time.Since(fetchStart)
	rb.SetDuration(duration).IncrementRequests()

	fb := ratelimit.Feedback{Latency: duration}
	if result != nil {
		fb.StatusCode = result.StatusCode
	}
	if err != nil {
		fb.Err = err
	}
	w.limiter.Feedback(domain, fb)

	if err != nil {
		rb.AddError(task.NewError(task.CodeConnectionError, err.Error()))
		return rb.BuildRetry(time.Now().UTC()), nil
	}

	rb.SetHTTPStatus(result.StatusCode).AddBytesDownloaded(result.BytesDownloaded)

	if result.NavigationError != nil {
		ne := result.NavigationError
		if ne.Optional {
			w.logger.Info("optional navigation step failed, continuing", zap.Int("step", ne.StepIndex), zap.String("task_id", msg.TaskID))
		} else {
			detail := task.ErrorDetail{Code: ne.Classify(), Message: ne.Error(), IsRetryable: true}
			rb.AddError(detail)
			w.writeTrash(msg.TaskID, result, "navigation step failed")
			return rb.BuildRetry(time.Now().UTC()), nil
		}
	}

	if result.StatusCode != 0 && !isSuccessStatus(result.StatusCode) {
		httpErr := task.NewHTTPError(result.StatusCode, fmt.Sprintf("unexpected status %d", result.StatusCode))
		rb.AddError(httpErr)
		w.writeTrash(msg.TaskID, result, "non-success http status")
		if httpErr.IsRetryable {
			return rb.BuildRetry(time.Now().UTC()), nil
		}
		return rb.BuildFailed(time.Now().UTC()), nil
	}

	baseURL, _ := url.Parse(targetURL)
	if result.FinalURL != nil {
		baseURL = result.FinalURL
	}

	extraction, err := w.core.Extract(result.HTML, s, baseURL)
	if err != nil {
		rb.AddError(task.NewError(task.CodeParseError, err.Error()))
		w.writeTrash(msg.TaskID, result, "parse failure")
		return rb.BuildFailed(time.Now().UTC()), nil
	}

	stats := task.ExtractionStats{
		RecordsExtracted: extraction.RecordsExtracted,
		RecordsValid:     extraction.RecordsValid,
		RecordsRejected:  extraction.RecordsRejected,
		FieldsExtracted:  extraction.FieldsExtracted,
		FieldsMissing:    extraction.FieldsMissing,
	}
	rb.SetExtractionStats(stats)

	now := time.Now().UTC()
	if len(extraction.Records) > 0 {
		bronzePath, err := w.bronze.Write(s.SourceID, s.SchemaID, msg.TaskID, msg.RunID, msg.PageNumber, extraction.Records, now)
		if err != nil {
			w.logger.Error("bronze write failed", zap.Error(err), zap.String("task_id", msg.TaskID))
		} else {
			rb.SetBronzePath(bronzePath)
		}
	}
	if extraction.RecordsRejected > 0 {
		w.writeTrashRejected(msg.TaskID, s, extraction, now)
	}

	var children []task.Message
	if s.Pagination != nil && s.Pagination.Type != schema.PaginationNone {
		nextURL, hasNext := nextPageURL(*s.Pagination, result.HTML, baseURL, msg.PageNumber)
		if hasNext && msg.PageNumber < s.Pagination.MaxPages {
			rb.SetPagination(true, nextURL)
			children = append(children, msg.ChildTask(nextURL, msg.PageNumber+1, uuid.NewString(), uuid.NewString()))
		}
	}

	if extraction.RecordsValid == 0 {
		return rb.BuildPartial(time.Now().UTC()), children
	}
	return rb.BuildSuccess(time.Now().UTC()), children
}

func (w *Worker) writeTrash(taskID string, result *fetch.Result, reason string) {
	if result == nil {
		return
	}
	now := time.Now().UTC()
	if len(result.HTML) > 0 {
		if _, _, err := w.trash.WriteHTMLArtifact(taskID, result.HTML, now); err != nil {
			w.logger.Warn("trash artifact write failed", zap.Error(err))
		}
	}
	if len(result.ScreenshotPNG) > 0 {
		if _, err := w.trash.WriteArtifact(taskID, "screenshot.png", result.ScreenshotPNG, now); err != nil {
			w.logger.Warn("trash screenshot write failed", zap.Error(err))
		}
	}
	w.logger.Info("wrote trash artifacts", zap.String("task_id", taskID), zap.String("reason", reason))
}

func (w *Worker) writeTrashRejected(taskID string, s schema.ParsingSchema, extraction extract.Result, now time.Time) {
	if len(extraction.RejectedRecords) == 0 {
		return
	}
	rejected := make([]storage.RejectedRecord, 0, len(extraction.RejectedRecords))
	for _, rec := range extraction.RejectedRecords {
		rejected = append(rejected, storage.RejectedRecord{
			TaskID: taskID,
			Reason: fmt.Sprintf("below min_fields_required=%d", s.MinFieldsRequired),
			Fields: rec,
		})
	}
	if _, err := w.trash.WriteRejected(taskID, rejected, now); err != nil {
		w.logger.Warn("trash rejected write failed", zap.Error(err))
	}
}

func isSuccessStatus(status int) bool { return status >= 200 && status < 300 }

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

func mergeHeaders(schemaHeaders, taskHeaders map[string]string) map[string]string {
	merged := make(map[string]string, len(schemaHeaders)+len(taskHeaders))
	for k, v := range schemaHeaders {
		merged[k] = v
	}
	for k, v := range taskHeaders {
		merged[k] = v
	}
	return merged
}

func toCookieParams(cookies []task.Cookie) []fetch.CookieParam {
	out := make([]fetch.CookieParam, len(cookies))
	for i, c := range cookies {
		out[i] = fetch.CookieParam{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}
	}
	return out
}

// nextPageURL computes the next page's target and reports whether a next
// page plausibly exists. page_param builds the URL from a template;
// next_button/load_more read the fetched page's anchor href via the rule's
// selector and resolve it against current, skipping pagination when the
// href is empty or a "javascript:" pseudo-link. infinite_scroll has no
// next-URL to precompute and is driven entirely by navigation_steps.
func nextPageURL(rule schema.PaginationRule, rawHTML []byte, current *url.URL, pageNumber int) (string, bool) {
	if current == nil {
		return "", false
	}
	switch rule.Type {
	case schema.PaginationPageParam:
		next := *current
		q := next.Query()
		q.Set(rule.ParamName, fmt.Sprintf("%d", rule.ParamStart+(pageNumber)*rule.ParamStep))
		next.RawQuery = q.Encode()
		return next.String(), true
	case schema.PaginationNextButton, schema.PaginationLoadMore:
		return extract.ResolveHref(rawHTML, rule.Selector, current)
	default:
		return "", false
	}
}
