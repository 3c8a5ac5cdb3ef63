// Package task defines the Task/Task Run/Result Envelope data model and the
// task lifecycle state machine.
package task

import "time"

// Status is the closed set of task lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSuccess   Status = "SUCCESS"
	StatusPartial   Status = "PARTIAL"
	StatusFailed    Status = "FAILED"
	StatusRetry     Status = "RETRY"
	StatusCancelled Status = "CANCELLED"
	StatusDLQ       Status = "DLQ"
)

// Mode selects which fetcher/queue handles a task.
type Mode string

const (
	ModeHTTP    Mode = "http"
	ModeBrowser Mode = "browser"
)

// Task is the coordinator's authoritative record of one unit of extraction
// work. Workers receive an immutable copy inside the task message; they
// never mutate this record directly.
type Task struct {
	TaskID          string         `json:"task_id"`
	SourceID        string         `json:"source_id"`
	TargetURL       string         `json:"target_url"`
	SchemaID        string         `json:"schema_id"`
	SchemaVersion   string         `json:"schema_version"`
	Mode            Mode           `json:"mode"`
	Status          Status         `json:"status"`
	Priority        int            `json:"priority"`
	MaxAttempts     int            `json:"max_attempts"`
	CurrentAttempt  int            `json:"current_attempt"`
	ParentTaskID    string         `json:"parent_task_id,omitempty"`
	BranchID        string         `json:"branch_id,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	PageNumber      int            `json:"page_number"`
	MaxPages        int            `json:"max_pages,omitempty"`
	ProxyProfileID  string         `json:"proxy_profile_id,omitempty"`
	SessionProfileID string        `json:"session_profile_id,omitempty"`
	Cookies         []Cookie       `json:"cookies,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	RequiresJS      bool           `json:"requires_js,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ScheduledAt      *time.Time     `json:"scheduled_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// Cookie is a single cookie carried on a task, applied to the browser
// context or HTTP request before fetch.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Message is the wire envelope published to the task queue. It carries a
// fresh run_id per attempt, distinct from the task's stable identity.
type Message struct {
	TaskID          string            `json:"task_id"`
	RunID           string            `json:"run_id"`
	SourceID        string            `json:"source_id"`
	TargetURL       string            `json:"target_url"`
	Mode            Mode              `json:"mode"`
	SchemaID        string            `json:"schema_id"`
	SchemaVersion   string            `json:"schema_version"`
	Priority        int               `json:"priority"`
	MaxAttempts     int               `json:"max_attempts"`
	TTLSeconds      int               `json:"ttl_seconds"`
	TimeoutSeconds  int               `json:"timeout_seconds"`
	ProxyProfileID  string            `json:"proxy_profile_id,omitempty"`
	SessionProfileID string           `json:"session_profile_id,omitempty"`
	Context         map[string]any    `json:"context,omitempty"`
	Cookies         []Cookie          `json:"cookies,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	PageNumber      int               `json:"page_number"`
	MaxPages        int               `json:"max_pages,omitempty"`
	ParentTaskID    string            `json:"parent_task_id,omitempty"`
	BranchID        string            `json:"branch_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ScheduledAt     *time.Time        `json:"scheduled_at,omitempty"`
	Attempt         int               `json:"attempt"`
}

// ChildTask builds the message for a pagination-spawned child task,
// inheriting identity and session fields from the parent: children only
// ever originate from the worker that just handled the parent.
func (m Message) ChildTask(targetURL string, pageNumber int, runID, taskID string) Message {
	child := m
	child.TaskID = taskID
	child.RunID = runID
	child.TargetURL = targetURL
	child.ParentTaskID = m.TaskID
	child.PageNumber = pageNumber
	child.Attempt = 0
	child.CreatedAt = m.CreatedAt
	return child
}

// NextAttempt builds the message for a retry: same task identity, a fresh
// run_id, and an incremented attempt counter.
func (m Message) NextAttempt(runID string) Message {
	next := m
	next.RunID = runID
	next.Attempt++
	return next
}

// Run is one row per execution attempt of a task.
type Run struct {
	TaskID           string     `json:"task_id"`
	RunID            string     `json:"run_id"`
	Attempt          int        `json:"attempt"`
	HTTPStatus       int        `json:"http_status,omitempty"`
	DurationMS       int64      `json:"duration_ms,omitempty"`
	BytesDownloaded  int64      `json:"bytes_downloaded,omitempty"`
	RequestsCount    int        `json:"requests_count,omitempty"`
	PagesProcessed   int        `json:"pages_processed,omitempty"`
	RecordsExtracted int        `json:"records_extracted,omitempty"`
	RecordsValid     int        `json:"records_valid,omitempty"`
	RecordsRejected  int        `json:"records_rejected,omitempty"`
	BronzePath       string     `json:"bronze_path,omitempty"`
	RawHTMLPath      string     `json:"raw_html_path,omitempty"`
	ScreenshotPath   string     `json:"screenshot_path,omitempty"`
	Errors           []ErrorDetail `json:"errors,omitempty"`
	WorkerID         string     `json:"worker_id,omitempty"`
	Status           Status     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      time.Time  `json:"completed_at"`
}
