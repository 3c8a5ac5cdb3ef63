package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/harvester/internal/task"
)

func newTestTask(taskID string) task.Task {
	return task.Task{
		TaskID:      taskID,
		SourceID:    "src-1",
		TargetURL:   "https://example.com",
		SchemaID:    "catalog-v1",
		MaxAttempts: 3,
	}
}

func TestCreate_QueuesNewTask(t *testing.T) {
	c := New(NewMemStore(), nil)
	created, err := c.Create(context.Background(), newTestTask("task-1"))
	require.NoError(t, err)
	assert.Equal(t, task.StatusQueued, created.Status)
}

func TestIngestResult_AppliesSuccessTransition(t *testing.T) {
	store := NewMemStore()
	c := New(store, nil)
	_, err := c.Create(context.Background(), newTestTask("task-2"))
	require.NoError(t, err)

	env := task.ResultEnvelope{
		TaskID:      "task-2",
		RunID:       "run-1",
		Status:      task.ResultSuccess,
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}
	run, err := c.IngestResult(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, task.StatusSuccess, run.Status)

	got, err := c.Get(context.Background(), "task-2")
	require.NoError(t, err)
	assert.Equal(t, task.StatusSuccess, got.Status)
	assert.Equal(t, 1, got.CurrentAttempt)
	assert.NotNil(t, got.CompletedAt)
}

func TestIngestResult_DuplicateRunIDIsNoOp(t *testing.T) {
	store := NewMemStore()
	c := New(store, nil)
	_, err := c.Create(context.Background(), newTestTask("task-3"))
	require.NoError(t, err)

	env := task.ResultEnvelope{
		TaskID:      "task-3",
		RunID:       "run-dup",
		Status:      task.ResultSuccess,
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}
	_, err = c.IngestResult(context.Background(), env)
	require.NoError(t, err)

	got, err := c.Get(context.Background(), "task-3")
	require.NoError(t, err)
	require.Equal(t, 1, got.CurrentAttempt)

	// Redelivery of the same run_id must not increment the attempt counter
	// or re-apply the transition a second time.
	_, err = c.IngestResult(context.Background(), env)
	require.NoError(t, err)

	got, err = c.Get(context.Background(), "task-3")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentAttempt)
	assert.Equal(t, task.StatusSuccess, got.Status)

	runs, err := c.Runs(context.Background(), "task-3")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestIngestResult_DispatchesQueuedTaskThroughRunningToTerminal(t *testing.T) {
	store := NewMemStore()
	c := New(store, nil)
	created, err := c.Create(context.Background(), newTestTask("task-dispatch"))
	require.NoError(t, err)
	require.Equal(t, task.StatusQueued, created.Status)

	env := task.ResultEnvelope{
		TaskID:      "task-dispatch",
		RunID:       "run-1",
		Status:      task.ResultFailed,
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}
	run, err := c.IngestResult(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, run.Status)

	got, err := c.Get(context.Background(), "task-dispatch")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
}

func TestIngestResult_RetryExhaustedMaxAttemptsGoesToDLQ(t *testing.T) {
	store := NewMemStore()
	c := New(store, nil)
	tk := newTestTask("task-4")
	tk.MaxAttempts = 1
	_, err := c.Create(context.Background(), tk)
	require.NoError(t, err)

	env := task.ResultEnvelope{
		TaskID:      "task-4",
		RunID:       "run-1",
		Status:      task.ResultRetry,
		StartedAt:   time.Now().UTC(),
		CompletedAt: time.Now().UTC(),
	}
	_, err = c.IngestResult(context.Background(), env)
	require.NoError(t, err)

	got, err := c.Get(context.Background(), "task-4")
	require.NoError(t, err)
	assert.Equal(t, task.StatusDLQ, got.Status)
}

func TestRetry_ResetsAttemptAndRequeues(t *testing.T) {
	store := NewMemStore()
	c := New(store, nil)
	tk := newTestTask("task-5")
	created, err := c.Create(context.Background(), tk)
	require.NoError(t, err)
	created.Status = task.StatusFailed
	created.CurrentAttempt = 3
	require.NoError(t, store.UpdateTask(context.Background(), created))

	retried, err := c.Retry(context.Background(), "task-5")
	require.NoError(t, err)
	assert.Equal(t, task.StatusQueued, retried.Status)
	assert.Equal(t, 0, retried.CurrentAttempt)
}

func TestRetry_RejectsNonTerminalTask(t *testing.T) {
	c := New(NewMemStore(), nil)
	_, err := c.Create(context.Background(), newTestTask("task-6"))
	require.NoError(t, err)

	_, err = c.Retry(context.Background(), "task-6")
	assert.Error(t, err)
}

func TestCancel_TerminalSinkRejectsFurtherCancel(t *testing.T) {
	c := New(NewMemStore(), nil)
	_, err := c.Create(context.Background(), newTestTask("task-7"))
	require.NoError(t, err)

	cancelled, err := c.Cancel(context.Background(), "task-7")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCancelled, cancelled.Status)

	_, err = c.Cancel(context.Background(), "task-7")
	assert.Error(t, err)
}

func TestList_FiltersByStatus(t *testing.T) {
	store := NewMemStore()
	c := New(store, nil)
	_, err := c.Create(context.Background(), newTestTask("task-8"))
	require.NoError(t, err)
	t2 := newTestTask("task-9")
	require.NoError(t, store.CreateTask(context.Background(), t2))

	queued, err := c.List(context.Background(), ListFilter{Status: task.StatusQueued})
	require.NoError(t, err)
	assert.Len(t, queued, 1)

	pending, err := c.List(context.Background(), ListFilter{Status: task.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStats_CountsByStatus(t *testing.T) {
	c := New(NewMemStore(), nil)
	_, err := c.Create(context.Background(), newTestTask("task-10"))
	require.NoError(t, err)
	_, err = c.Create(context.Background(), newTestTask("task-11"))
	require.NoError(t, err)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[task.StatusQueued])
}
