package task

import "time"

// ResultStatus is the terminal status a worker reports for one run.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
	ResultRetry   ResultStatus = "retry"
)

// Metrics carries the execution measurements of one run.
type Metrics struct {
	DurationMS      int64 `json:"duration_ms"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
	RequestsCount   int   `json:"requests_count"`
	PagesProcessed  int   `json:"pages_processed"`
	DNSLookupMS     int64 `json:"dns_lookup_ms,omitempty"`
	ConnectionMS    int64 `json:"connection_ms,omitempty"`
	TTFBMS          int64 `json:"ttfb_ms,omitempty"`
}

// Pointers carries storage locations produced by this run.
type Pointers struct {
	BronzePath     string            `json:"delta_path,omitempty"`
	RawHTMLPath    string            `json:"raw_html_path,omitempty"`
	ScreenshotPath string            `json:"screenshot_path,omitempty"`
	Artifacts      map[string]string `json:"artifacts,omitempty"`
}

// ExtractionStats summarizes what the Extraction Core produced for this run.
type ExtractionStats struct {
	RecordsExtracted  int            `json:"records_extracted"`
	RecordsValid      int            `json:"records_valid"`
	RecordsRejected   int            `json:"records_rejected"`
	RecordsDeduplicated int          `json:"records_deduplicated,omitempty"`
	FieldsExtracted   map[string]int `json:"fields_extracted,omitempty"`
	FieldsMissing     map[string]int `json:"fields_missing,omitempty"`
}

// ResultEnvelope is the message a worker publishes on the results channel.
type ResultEnvelope struct {
	TaskID        string          `json:"task_id"`
	RunID         string          `json:"run_id"`
	Status        ResultStatus    `json:"status"`
	HTTPStatus    int             `json:"http_status,omitempty"`
	Metrics       Metrics         `json:"metrics"`
	Pointers      Pointers        `json:"pointers"`
	Extraction    ExtractionStats `json:"extraction"`
	HasNextPage   bool            `json:"has_next_page"`
	NextPageURL   string          `json:"next_page_url,omitempty"`
	CurrentPage   int             `json:"current_page"`
	Errors        []ErrorDetail   `json:"errors,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   time.Time       `json:"completed_at"`
	WorkerID      string          `json:"worker_id,omitempty"`
}

// IsSuccess mirrors the reference implementation's computed property: both
// success and partial results count as a "successful" run for dashboards.
func (r ResultEnvelope) IsSuccess() bool {
	return r.Status == ResultSuccess || r.Status == ResultPartial
}

// ShouldRetry reports whether the run failed for a retryable reason.
func (r ResultEnvelope) ShouldRetry() bool {
	if r.Status != ResultFailed {
		return false
	}
	for _, e := range r.Errors {
		if e.IsRetryable {
			return true
		}
	}
	return false
}

// ResultBuilder incrementally assembles a ResultEnvelope across a worker's
// fetch -> extract -> paginate pipeline.
type ResultBuilder struct {
	env ResultEnvelope
}

// NewResultBuilder starts a builder bound to one task/run identity.
func NewResultBuilder(taskID, runID string) *ResultBuilder {
	return &ResultBuilder{env: ResultEnvelope{TaskID: taskID, RunID: runID}}
}

func (b *ResultBuilder) SetStarted(t time.Time) *ResultBuilder   { b.env.StartedAt = t; return b }
func (b *ResultBuilder) SetWorkerID(id string) *ResultBuilder    { b.env.WorkerID = id; return b }
func (b *ResultBuilder) SetHTTPStatus(s int) *ResultBuilder      { b.env.HTTPStatus = s; return b }
func (b *ResultBuilder) SetCurrentPage(p int) *ResultBuilder     { b.env.CurrentPage = p; return b }

func (b *ResultBuilder) AddBytesDownloaded(n int64) *ResultBuilder {
	b.env.Metrics.BytesDownloaded += n
	return b
}

func (b *ResultBuilder) IncrementRequests() *ResultBuilder {
	b.env.Metrics.RequestsCount++
	return b
}

func (b *ResultBuilder) SetDuration(d time.Duration) *ResultBuilder {
	b.env.Metrics.DurationMS = d.Milliseconds()
	return b
}

func (b *ResultBuilder) SetExtractionStats(stats ExtractionStats) *ResultBuilder {
	b.env.Extraction = stats
	return b
}

func (b *ResultBuilder) SetBronzePath(path string) *ResultBuilder {
	b.env.Pointers.BronzePath = path
	return b
}

func (b *ResultBuilder) SetRawHTMLPath(path string) *ResultBuilder {
	b.env.Pointers.RawHTMLPath = path
	return b
}

func (b *ResultBuilder) SetScreenshotPath(path string) *ResultBuilder {
	b.env.Pointers.ScreenshotPath = path
	return b
}

func (b *ResultBuilder) SetPagination(hasNext bool, nextURL string) *ResultBuilder {
	b.env.HasNextPage = hasNext
	b.env.NextPageURL = nextURL
	return b
}

func (b *ResultBuilder) AddError(e ErrorDetail) *ResultBuilder {
	b.env.Errors = append(b.env.Errors, e)
	return b
}

func (b *ResultBuilder) build(status ResultStatus, completed time.Time) ResultEnvelope {
	b.env.Status = status
	b.env.CompletedAt = completed
	return b.env
}

// BuildSuccess finalizes the envelope as SUCCESS.
func (b *ResultBuilder) BuildSuccess(completed time.Time) ResultEnvelope {
	return b.build(ResultSuccess, completed)
}

// BuildPartial finalizes the envelope as PARTIAL.
func (b *ResultBuilder) BuildPartial(completed time.Time) ResultEnvelope {
	return b.build(ResultPartial, completed)
}

// BuildFailed finalizes the envelope as FAILED.
func (b *ResultBuilder) BuildFailed(completed time.Time) ResultEnvelope {
	return b.build(ResultFailed, completed)
}

// BuildRetry finalizes the envelope as RETRY.
func (b *ResultBuilder) BuildRetry(completed time.Time) ResultEnvelope {
	return b.build(ResultRetry, completed)
}
