// Package coordinator implements the Task Coordinator: task lifecycle
// operations (Create, Ingest Result, Retry, Cancel, List/Get/Stats) backed
// by a pluggable Store. Ingest Result is idempotent on run_id.
package coordinator

import (
	"context"
	"errors"

	"github.com/99souls/harvester/internal/task"
)

// ErrNotFound is returned by Store lookups that find nothing.
var ErrNotFound = errors.New("coordinator: not found")

// ErrRunExists is returned by CreateRun when a run with the same RunID was
// already recorded — the signal the Coordinator uses to treat a duplicate
// Ingest Result as a no-op instead of double-counting an attempt.
var ErrRunExists = errors.New("coordinator: run already recorded")

// Stats summarizes task counts by status, for the read/stats API.
type Stats struct {
	ByStatus map[task.Status]int
	Total    int
}

// ListFilter narrows List to a subset of tasks.
type ListFilter struct {
	SourceID string
	Status   task.Status
	Limit    int
	Offset   int
}

// Store is the durable backing for task and run records. Implementations
// must make CreateTask/CreateRun/UpdateTask individually atomic; the
// Coordinator composes them under its own logic, not a cross-call
// transaction.
type Store interface {
	CreateTask(ctx context.Context, t task.Task) error
	GetTask(ctx context.Context, taskID string) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) error
	ListTasks(ctx context.Context, filter ListFilter) ([]task.Task, error)

	CreateRun(ctx context.Context, r task.Run) error
	GetRunByRunID(ctx context.Context, runID string) (task.Run, error)
	ListRuns(ctx context.Context, taskID string) ([]task.Run, error)

	Stats(ctx context.Context) (Stats, error)
}
