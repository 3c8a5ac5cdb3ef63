// Package api exposes the Task Coordinator's read/operator surface over
// HTTP, routed with chi in the style the rest of the example pack uses for
// its own REST layers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/99souls/harvester/internal/coordinator"
	"github.com/99souls/harvester/internal/task"
)

// Handler implements the HTTP layer over a Coordinator.
type Handler struct {
	coordinator *coordinator.Coordinator
	logger      *zap.Logger
}

// NewHandler constructs a Handler over coord.
func NewHandler(coord *coordinator.Coordinator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{coordinator: coord, logger: logger}
}

// Routes returns a chi.Router configured with the coordinator's endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Get("/stats", h.stats)
	r.Post("/tasks", h.createTask)
	r.Get("/tasks", h.listTasks)
	r.Get("/tasks/{id}", h.getTask)
	r.Get("/tasks/{id}/runs", h.listRuns)
	r.Post("/tasks/{id}/retry", h.retryTask)
	r.Post("/tasks/{id}/cancel", h.cancelTask)

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createTaskRequest struct {
	TaskID         string            `json:"task_id"`
	SourceID       string            `json:"source_id"`
	TargetURL      string            `json:"target_url"`
	SchemaID       string            `json:"schema_id"`
	SchemaVersion  string            `json:"schema_version"`
	Mode           task.Mode         `json:"mode"`
	Priority       int               `json:"priority"`
	MaxAttempts    int               `json:"max_attempts"`
	MaxPages       int               `json:"max_pages"`
	Context        map[string]any    `json:"context"`
	Headers        map[string]string `json:"headers"`
	Cookies        []task.Cookie     `json:"cookies"`
	ProxyProfileID string            `json:"proxy_profile_id"`
	RequiresJS     bool              `json:"requires_js"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.TaskID == "" || req.TargetURL == "" || req.SchemaID == "" {
		writeError(w, http.StatusBadRequest, errors.New("task_id, target_url, and schema_id are required"))
		return
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 3
	}
	mode := req.Mode
	if mode == "" {
		mode = task.ModeHTTP
	}

	t := task.Task{
		TaskID: req.TaskID, SourceID: req.SourceID, TargetURL: req.TargetURL,
		SchemaID: req.SchemaID, SchemaVersion: req.SchemaVersion, Mode: mode,
		Priority: req.Priority, MaxAttempts: req.MaxAttempts, MaxPages: req.MaxPages,
		Context: req.Context, Headers: req.Headers, Cookies: req.Cookies,
		ProxyProfileID: req.ProxyProfileID, RequiresJS: req.RequiresJS,
	}

	created, err := h.coordinator.Create(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := coordinator.ListFilter{
		SourceID: q.Get("source_id"),
		Status:   task.Status(q.Get("status")),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	tasks, err := h.coordinator.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.coordinator.Get(r.Context(), id)
	if err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	runs, err := h.coordinator.Runs(r.Context(), id)
	if err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) retryTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.coordinator.Retry(r.Context(), id)
	if err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.coordinator.Cancel(r.Context(), id)
	if err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.coordinator.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) writeCoordinatorError(w http.ResponseWriter, err error) {
	if errors.Is(err, coordinator.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
