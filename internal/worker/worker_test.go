package worker

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/harvester/internal/extract"
	"github.com/99souls/harvester/internal/fetch"
	"github.com/99souls/harvester/internal/ratelimit"
	"github.com/99souls/harvester/internal/schema"
	"github.com/99souls/harvester/internal/schemacache"
	"github.com/99souls/harvester/internal/storage"
	"github.com/99souls/harvester/internal/task"
)

type stubFetcher struct {
	result *fetch.Result
	err    error
}

func (f *stubFetcher) Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error) {
	return f.result, f.err
}
func (f *stubFetcher) Close() error { return nil }

type staticLoader struct{ s schema.ParsingSchema }

func (l staticLoader) Load(ctx context.Context, schemaID, version string) (schema.ParsingSchema, error) {
	return l.s, nil
}

func catalogSchema() schema.ParsingSchema {
	s := schema.ParsingSchema{
		SchemaID: "catalog-v1", Version: "1.0.0", SourceID: "src-1", StartURL: "https://example.com",
		ItemContainer:     ".item",
		MinFieldsRequired: 1,
		Fields: []schema.FieldDefinition{
			{Name: "title", Type: schema.TypeString, Method: schema.MethodCSS, Selector: "h2", Required: true},
		},
	}
	s.ApplyDefaults()
	return s
}

func newTestWorker(t *testing.T, f fetch.Fetcher, s schema.ParsingSchema) *Worker {
	t.Helper()
	bronzeDir := t.TempDir()
	trashDir := t.TempDir()
	return New(Config{
		WorkerID: "worker-1",
		Fetcher:  f,
		Core:     extract.NewCore(),
		Schemas:  schemacache.New(staticLoader{s: s}),
		Limiter:  ratelimit.NewAdaptiveRateLimiter(ratelimit.Config{Enabled: false}),
		Bronze:   storage.NewBronzeWriter(bronzeDir),
		Trash:    storage.NewTrashWriter(trashDir),
	})
}

func testMessage() task.Message {
	return task.Message{
		TaskID: "task-1", RunID: "run-1", SourceID: "src-1", TargetURL: "https://example.com/list",
		SchemaID: "catalog-v1", SchemaVersion: "1.0.0", MaxAttempts: 3,
	}
}

const sampleHTML = `<html><body><div class="item"><h2>Widget</h2></div><div class="item"><h2>Gadget</h2></div></body></html>`

func TestProcess_SuccessWritesBronze(t *testing.T) {
	s := catalogSchema()
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(sampleHTML), StatusCode: 200}}
	w := newTestWorker(t, f, s)

	env, children := w.process(context.Background(), testMessage())
	assert.Equal(t, task.ResultSuccess, env.Status)
	assert.Equal(t, 2, env.Extraction.RecordsValid)
	assert.NotEmpty(t, env.Pointers.BronzePath)
	assert.Empty(t, children)

	data, err := os.ReadFile(env.Pointers.BronzePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Widget")
}

func TestProcess_NonSuccessStatusIsRetryable(t *testing.T) {
	s := catalogSchema()
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(sampleHTML), StatusCode: 503}}
	w := newTestWorker(t, f, s)

	env, _ := w.process(context.Background(), testMessage())
	assert.Equal(t, task.ResultRetry, env.Status)
	require.Len(t, env.Errors, 1)
	assert.True(t, env.Errors[0].IsRetryable)
}

func TestProcess_NonRetryableStatusFails(t *testing.T) {
	s := catalogSchema()
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(sampleHTML), StatusCode: 404}}
	w := newTestWorker(t, f, s)

	env, _ := w.process(context.Background(), testMessage())
	assert.Equal(t, task.ResultFailed, env.Status)
}

func TestProcess_NavigationStepFailureIsRetryable(t *testing.T) {
	s := catalogSchema()
	f := &stubFetcher{result: &fetch.Result{
		HTML:       []byte(sampleHTML),
		StatusCode: 200,
		NavigationError: &fetch.NavigationError{
			StepIndex: 0, Action: schema.ActionClick, Timeout: false,
			Err: assertError{"selector never appeared"},
		},
	}}
	w := newTestWorker(t, f, s)

	env, _ := w.process(context.Background(), testMessage())
	assert.Equal(t, task.ResultRetry, env.Status)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, task.CodeSelectorNotFound, env.Errors[0].Code)
	assert.True(t, env.Errors[0].IsRetryable)
}

func TestProcess_OptionalNavigationStepFailureContinues(t *testing.T) {
	s := catalogSchema()
	f := &stubFetcher{result: &fetch.Result{
		HTML:       []byte(sampleHTML),
		StatusCode: 200,
		NavigationError: &fetch.NavigationError{
			StepIndex: 0, Action: schema.ActionClick, Optional: true,
			Err: assertError{"ignored"},
		},
	}}
	w := newTestWorker(t, f, s)

	env, _ := w.process(context.Background(), testMessage())
	assert.Equal(t, task.ResultSuccess, env.Status)
	assert.Empty(t, env.Errors)
}

func TestProcess_PaginationSpawnsChildTask(t *testing.T) {
	s := catalogSchema()
	s.Pagination = &schema.PaginationRule{Type: schema.PaginationPageParam, ParamName: "page", MaxPages: 5}
	s.Pagination.ApplyDefaults()
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(sampleHTML), StatusCode: 200}}
	w := newTestWorker(t, f, s)

	msg := testMessage()
	msg.PageNumber = 1
	env, children := w.process(context.Background(), msg)
	assert.Equal(t, task.ResultSuccess, env.Status)
	assert.True(t, env.HasNextPage)
	require.Len(t, children, 1)
	assert.Equal(t, 2, children[0].PageNumber)
	assert.Equal(t, "task-1", children[0].ParentTaskID)
}

func TestProcess_NextButtonPaginationResolvesHrefAndSpawnsChild(t *testing.T) {
	s := catalogSchema()
	s.Pagination = &schema.PaginationRule{Type: schema.PaginationNextButton, Selector: "a.next-page", MaxPages: 10}
	s.Pagination.ApplyDefaults()
	html := sampleHTML[:len(sampleHTML)-len("</body></html>")] + `<a class="next-page" href="/list?page=2">Next</a></body></html>`
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(html), StatusCode: 200}}
	w := newTestWorker(t, f, s)

	msg := testMessage()
	msg.PageNumber = 1
	env, children := w.process(context.Background(), msg)
	assert.True(t, env.HasNextPage)
	assert.Equal(t, "https://example.com/list?page=2", env.NextPageURL)
	require.Len(t, children, 1)
	assert.Equal(t, 2, children[0].PageNumber)
	assert.Equal(t, "task-1", children[0].ParentTaskID)
}

func TestProcess_NextButtonMissingHrefSkipsPagination(t *testing.T) {
	s := catalogSchema()
	s.Pagination = &schema.PaginationRule{Type: schema.PaginationNextButton, Selector: "a.next-page", MaxPages: 10}
	s.Pagination.ApplyDefaults()
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(sampleHTML), StatusCode: 200}}
	w := newTestWorker(t, f, s)

	msg := testMessage()
	msg.PageNumber = 1
	env, children := w.process(context.Background(), msg)
	assert.False(t, env.HasNextPage)
	assert.Empty(t, children)
}

func TestProcess_NextButtonJavascriptHrefSkipsPagination(t *testing.T) {
	s := catalogSchema()
	s.Pagination = &schema.PaginationRule{Type: schema.PaginationNextButton, Selector: "a.next-page", MaxPages: 10}
	s.Pagination.ApplyDefaults()
	html := sampleHTML[:len(sampleHTML)-len("</body></html>")] + `<a class="next-page" href="javascript:void(0)">Next</a></body></html>`
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(html), StatusCode: 200}}
	w := newTestWorker(t, f, s)

	msg := testMessage()
	msg.PageNumber = 1
	env, children := w.process(context.Background(), msg)
	assert.False(t, env.HasNextPage)
	assert.Empty(t, children)
}

func TestProcess_ZeroRecordsExtractedIsPartial(t *testing.T) {
	s := catalogSchema()
	f := &stubFetcher{result: &fetch.Result{HTML: []byte(`<html><body></body></html>`), StatusCode: 200}}
	w := newTestWorker(t, f, s)

	env, _ := w.process(context.Background(), testMessage())
	assert.Equal(t, task.ResultPartial, env.Status)
	assert.Equal(t, 0, env.Extraction.RecordsExtracted)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
