package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/99souls/harvester/internal/task"
)

// PGStore is a jackc/pgx-backed Store, the durable counterpart to MemStore
// for production deployments.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an already-connected pool. Migrations are applied
// separately via golang-migrate before this store is used.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func wrapDBErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" {
		return ErrRunExists
	}
	return fmt.Errorf("coordinator: %s: %w", action, err)
}

func (s *PGStore) CreateTask(ctx context.Context, t task.Task) error {
	contextJSON, err := json.Marshal(t.Context)
	if err != nil {
		return fmt.Errorf("coordinator: marshal task context: %w", err)
	}
	cookiesJSON, err := json.Marshal(t.Cookies)
	if err != nil {
		return fmt.Errorf("coordinator: marshal task cookies: %w", err)
	}
	headersJSON, err := json.Marshal(t.Headers)
	if err != nil {
		return fmt.Errorf("coordinator: marshal task headers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (
			task_id, source_id, target_url, schema_id, schema_version, mode, status,
			priority, max_attempts, current_attempt, parent_task_id, branch_id,
			context, page_number, max_pages, proxy_profile_id, session_profile_id,
			cookies, headers, requires_js, created_at, scheduled_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23
		)`,
		t.TaskID, t.SourceID, t.TargetURL, t.SchemaID, t.SchemaVersion, t.Mode, t.Status,
		t.Priority, t.MaxAttempts, t.CurrentAttempt, t.ParentTaskID, t.BranchID,
		contextJSON, t.PageNumber, t.MaxPages, t.ProxyProfileID, t.SessionProfileID,
		cookiesJSON, headersJSON, t.RequiresJS, t.CreatedAt, t.ScheduledAt, t.CompletedAt,
	)
	return wrapDBErr(err, "create_task")
}

func (s *PGStore) GetTask(ctx context.Context, taskID string) (task.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_id, source_id, target_url, schema_id, schema_version, mode, status,
			priority, max_attempts, current_attempt, parent_task_id, branch_id,
			context, page_number, max_pages, proxy_profile_id, session_profile_id,
			cookies, headers, requires_js, created_at, scheduled_at, completed_at
		FROM tasks WHERE task_id = $1`, taskID)
	return scanTask(row)
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task
	var contextJSON, cookiesJSON, headersJSON []byte
	err := row.Scan(
		&t.TaskID, &t.SourceID, &t.TargetURL, &t.SchemaID, &t.SchemaVersion, &t.Mode, &t.Status,
		&t.Priority, &t.MaxAttempts, &t.CurrentAttempt, &t.ParentTaskID, &t.BranchID,
		&contextJSON, &t.PageNumber, &t.MaxPages, &t.ProxyProfileID, &t.SessionProfileID,
		&cookiesJSON, &headersJSON, &t.RequiresJS, &t.CreatedAt, &t.ScheduledAt, &t.CompletedAt,
	)
	if err != nil {
		return task.Task{}, wrapDBErr(err, "scan_task")
	}
	if len(contextJSON) > 0 {
		_ = json.Unmarshal(contextJSON, &t.Context)
	}
	if len(cookiesJSON) > 0 {
		_ = json.Unmarshal(cookiesJSON, &t.Cookies)
	}
	if len(headersJSON) > 0 {
		_ = json.Unmarshal(headersJSON, &t.Headers)
	}
	return t, nil
}

func (s *PGStore) UpdateTask(ctx context.Context, t task.Task) error {
	contextJSON, _ := json.Marshal(t.Context)
	cookiesJSON, _ := json.Marshal(t.Cookies)
	headersJSON, _ := json.Marshal(t.Headers)

	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = $2, current_attempt = $3, context = $4, completed_at = $5,
			scheduled_at = $6, cookies = $7, headers = $8
		WHERE task_id = $1`,
		t.TaskID, t.Status, t.CurrentAttempt, contextJSON, t.CompletedAt, t.ScheduledAt,
		cookiesJSON, headersJSON,
	)
	if err != nil {
		return wrapDBErr(err, "update_task")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListTasks(ctx context.Context, filter ListFilter) ([]task.Task, error) {
	query := `SELECT task_id, source_id, target_url, schema_id, schema_version, mode, status,
		priority, max_attempts, current_attempt, parent_task_id, branch_id,
		context, page_number, max_pages, proxy_profile_id, session_profile_id,
		cookies, headers, requires_js, created_at, scheduled_at, completed_at
		FROM tasks WHERE 1=1`
	var args []any
	argN := 1
	if filter.SourceID != "" {
		query += fmt.Sprintf(" AND source_id = $%d", argN)
		args = append(args, filter.SourceID)
		argN++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, filter.Status)
		argN++
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
		argN++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(err, "list_tasks")
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *PGStore) CreateRun(ctx context.Context, r task.Run) error {
	errorsJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("coordinator: marshal run errors: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO task_runs (
			task_id, run_id, attempt, http_status, duration_ms, bytes_downloaded,
			requests_count, pages_processed, records_extracted, records_valid,
			records_rejected, bronze_path, raw_html_path, screenshot_path, errors,
			worker_id, status, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		r.TaskID, r.RunID, r.Attempt, r.HTTPStatus, r.DurationMS, r.BytesDownloaded,
		r.RequestsCount, r.PagesProcessed, r.RecordsExtracted, r.RecordsValid,
		r.RecordsRejected, r.BronzePath, r.RawHTMLPath, r.ScreenshotPath, errorsJSON,
		r.WorkerID, r.Status, r.StartedAt, r.CompletedAt,
	)
	return wrapDBErr(err, "create_run")
}

func (s *PGStore) GetRunByRunID(ctx context.Context, runID string) (task.Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_id, run_id, attempt, http_status, duration_ms, bytes_downloaded,
			requests_count, pages_processed, records_extracted, records_valid,
			records_rejected, bronze_path, raw_html_path, screenshot_path, errors,
			worker_id, status, started_at, completed_at
		FROM task_runs WHERE run_id = $1`, runID)
	return scanRun(row)
}

func scanRun(row pgx.Row) (task.Run, error) {
	var r task.Run
	var errorsJSON []byte
	err := row.Scan(
		&r.TaskID, &r.RunID, &r.Attempt, &r.HTTPStatus, &r.DurationMS, &r.BytesDownloaded,
		&r.RequestsCount, &r.PagesProcessed, &r.RecordsExtracted, &r.RecordsValid,
		&r.RecordsRejected, &r.BronzePath, &r.RawHTMLPath, &r.ScreenshotPath, &errorsJSON,
		&r.WorkerID, &r.Status, &r.StartedAt, &r.CompletedAt,
	)
	if err != nil {
		return task.Run{}, wrapDBErr(err, "scan_run")
	}
	if len(errorsJSON) > 0 {
		_ = json.Unmarshal(errorsJSON, &r.Errors)
	}
	return r, nil
}

func (s *PGStore) ListRuns(ctx context.Context, taskID string) ([]task.Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, run_id, attempt, http_status, duration_ms, bytes_downloaded,
			requests_count, pages_processed, records_extracted, records_valid,
			records_rejected, bronze_path, raw_html_path, screenshot_path, errors,
			worker_id, status, started_at, completed_at
		FROM task_runs WHERE task_id = $1 ORDER BY attempt ASC`, taskID)
	if err != nil {
		return nil, wrapDBErr(err, "list_runs")
	}
	defer rows.Close()

	var out []task.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *PGStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return Stats{}, wrapDBErr(err, "task_stats")
	}
	defer rows.Close()

	stats := Stats{ByStatus: make(map[task.Status]int)}
	for rows.Next() {
		var status task.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, wrapDBErr(err, "scan_stats")
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	return stats, nil
}
