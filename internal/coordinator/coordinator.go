package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/99souls/harvester/internal/task"
)

// Coordinator owns task lifecycle transitions on top of a Store. It does
// not publish to the message bus itself — callers (the API server, the
// worker loop) do that after a Coordinator call succeeds, keeping the
// lifecycle bookkeeping independent of transport.
type Coordinator struct {
	store  Store
	logger *zap.Logger
}

// New builds a Coordinator over store.
func New(store Store, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{store: store, logger: logger}
}

// Create records a new task in PENDING and immediately advances it to
// QUEUED — a harvest task is only ever created because something intends
// to run it.
func (c *Coordinator) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if err := c.store.CreateTask(ctx, t); err != nil {
		return task.Task{}, fmt.Errorf("coordinator: create task: %w", err)
	}
	if err := task.Transition(&t, task.StatusQueued); err != nil {
		return task.Task{}, fmt.Errorf("coordinator: queue task: %w", err)
	}
	if err := c.store.UpdateTask(ctx, t); err != nil {
		return task.Task{}, fmt.Errorf("coordinator: persist queued task: %w", err)
	}
	return t, nil
}

// IngestResult applies a worker's ResultEnvelope to the owning task. It is
// idempotent on run_id: a duplicate delivery of the same run (a redelivered
// bus message, a worker retrying an ack it never received) is recognized
// via Store.CreateRun's ErrRunExists and treated as a no-op, returning the
// previously recorded run rather than double-applying the transition or
// re-incrementing current_attempt.
func (c *Coordinator) IngestResult(ctx context.Context, env task.ResultEnvelope) (task.Run, error) {
	run := task.Run{
		TaskID:           env.TaskID,
		RunID:            env.RunID,
		HTTPStatus:       env.HTTPStatus,
		DurationMS:       env.Metrics.DurationMS,
		BytesDownloaded:  env.Metrics.BytesDownloaded,
		RequestsCount:    env.Metrics.RequestsCount,
		PagesProcessed:   env.Metrics.PagesProcessed,
		RecordsExtracted: env.Extraction.RecordsExtracted,
		RecordsValid:     env.Extraction.RecordsValid,
		RecordsRejected:  env.Extraction.RecordsRejected,
		BronzePath:       env.Pointers.BronzePath,
		RawHTMLPath:      env.Pointers.RawHTMLPath,
		ScreenshotPath:   env.Pointers.ScreenshotPath,
		Errors:           env.Errors,
		WorkerID:         env.WorkerID,
		StartedAt:        env.StartedAt,
		CompletedAt:      env.CompletedAt,
	}

	t, err := c.store.GetTask(ctx, env.TaskID)
	if err != nil {
		return task.Run{}, fmt.Errorf("coordinator: ingest result: load task: %w", err)
	}
	// A result's arrival is the only signal the coordinator gets that a
	// dispatched task actually ran; fold the QUEUED->RUNNING dispatch edge
	// in here rather than requiring a separate "mark running" call.
	if t.Status == task.StatusQueued {
		if err := task.Transition(&t, task.StatusRunning); err != nil {
			return task.Run{}, fmt.Errorf("coordinator: ingest result: dispatch running: %w", err)
		}
	}
	run.Attempt = t.CurrentAttempt
	run.Status = resultToTaskStatus(env.Status)

	if err := c.store.CreateRun(ctx, run); err != nil {
		if errors.Is(err, ErrRunExists) {
			existing, getErr := c.store.GetRunByRunID(ctx, env.RunID)
			if getErr != nil {
				return task.Run{}, fmt.Errorf("coordinator: ingest result: duplicate run lookup: %w", getErr)
			}
			c.logger.Info("duplicate result ingestion ignored", zap.String("task_id", env.TaskID), zap.String("run_id", env.RunID))
			return existing, nil
		}
		return task.Run{}, fmt.Errorf("coordinator: ingest result: record run: %w", err)
	}

	t.CurrentAttempt++
	if env.HasNextPage {
		// pagination child-task spawn is the worker's responsibility; the
		// coordinator only needs to know this run's page number completed.
	}

	nextStatus := run.Status
	if nextStatus == task.StatusRetry && t.CurrentAttempt >= t.MaxAttempts {
		nextStatus = task.StatusDLQ
	}
	if err := task.Transition(&t, nextStatus); err != nil {
		c.logger.Warn("illegal task transition on result ingestion", zap.Error(err),
			zap.String("task_id", t.TaskID), zap.String("from", string(t.Status)), zap.String("to", string(nextStatus)))
		return run, nil
	}
	if task.IsTerminal(t.Status) {
		now := env.CompletedAt
		t.CompletedAt = &now
	}
	if err := c.store.UpdateTask(ctx, t); err != nil {
		return task.Run{}, fmt.Errorf("coordinator: ingest result: persist task: %w", err)
	}
	return run, nil
}

func resultToTaskStatus(s task.ResultStatus) task.Status {
	switch s {
	case task.ResultSuccess:
		return task.StatusSuccess
	case task.ResultPartial:
		return task.StatusPartial
	case task.ResultRetry:
		return task.StatusRetry
	default:
		return task.StatusFailed
	}
}

// Retry moves a FAILED or DLQ task back to QUEUED, resetting its attempt
// counter for a fresh run_id cycle. Only an operator calls this; workers
// never self-retry past max_attempts.
func (c *Coordinator) Retry(ctx context.Context, taskID string) (task.Task, error) {
	t, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, fmt.Errorf("coordinator: retry: load task: %w", err)
	}
	if t.Status != task.StatusFailed && t.Status != task.StatusDLQ {
		return task.Task{}, fmt.Errorf("coordinator: retry: task %s is %s, not FAILED or DLQ", taskID, t.Status)
	}
	t.CurrentAttempt = 0
	if err := task.Transition(&t, task.StatusQueued); err != nil {
		return task.Task{}, fmt.Errorf("coordinator: retry: %w", err)
	}
	t.CompletedAt = nil
	if err := c.store.UpdateTask(ctx, t); err != nil {
		return task.Task{}, fmt.Errorf("coordinator: retry: persist task: %w", err)
	}
	return t, nil
}

// Cancel moves a task to CANCELLED, the terminal sink state. Cancelling a
// task already in a terminal state is a no-op error, matching the state
// machine's rejection of any outgoing edge from CANCELLED or another
// terminal state.
func (c *Coordinator) Cancel(ctx context.Context, taskID string) (task.Task, error) {
	t, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, fmt.Errorf("coordinator: cancel: load task: %w", err)
	}
	if err := task.Transition(&t, task.StatusCancelled); err != nil {
		return task.Task{}, fmt.Errorf("coordinator: cancel: %w", err)
	}
	now := time.Now().UTC()
	t.CompletedAt = &now
	if err := c.store.UpdateTask(ctx, t); err != nil {
		return task.Task{}, fmt.Errorf("coordinator: cancel: persist task: %w", err)
	}
	return t, nil
}

// Get returns a single task by ID.
func (c *Coordinator) Get(ctx context.Context, taskID string) (task.Task, error) {
	return c.store.GetTask(ctx, taskID)
}

// List returns tasks matching filter.
func (c *Coordinator) List(ctx context.Context, filter ListFilter) ([]task.Task, error) {
	return c.store.ListTasks(ctx, filter)
}

// Runs returns every recorded attempt for a task, oldest first.
func (c *Coordinator) Runs(ctx context.Context, taskID string) ([]task.Run, error) {
	return c.store.ListRuns(ctx, taskID)
}

// Stats summarizes task counts by status.
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	return c.store.Stats(ctx)
}
