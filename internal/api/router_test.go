package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/harvester/internal/coordinator"
	"github.com/99souls/harvester/internal/task"
)

func newTestHandler() *Handler {
	return NewHandler(coordinator.New(coordinator.NewMemStore(), nil), nil)
}

func createTask(t *testing.T, h *Handler, taskID string) task.Task {
	t.Helper()
	body, err := json.Marshal(createTaskRequest{
		TaskID:    taskID,
		SourceID:  "src-1",
		TargetURL: "https://example.com",
		SchemaID:  "catalog-v1",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created task.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	return created
}

func TestHealthz_ReportsOK(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTask_RejectsMissingFields(t *testing.T) {
	h := newTestHandler()
	body, _ := json.Marshal(createTaskRequest{TaskID: "task-1"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTask_DefaultsModeAndMaxAttempts(t *testing.T) {
	h := newTestHandler()
	created := createTask(t, h, "task-2")
	assert.Equal(t, task.ModeHTTP, created.Mode)
	assert.Equal(t, 3, created.MaxAttempts)
	assert.Equal(t, task.StatusQueued, created.Status)
}

func TestGetTask_RoundTripsCreatedTask(t *testing.T) {
	h := newTestHandler()
	createTask(t, h, "task-3")

	req := httptest.NewRequest(http.MethodGet, "/tasks/task-3", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got task.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "task-3", got.TaskID)
}

func TestGetTask_UnknownIDReturnsNotFound(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/tasks/missing", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTask_TransitionsToCancelled(t *testing.T) {
	h := newTestHandler()
	createTask(t, h, "task-4")

	req := httptest.NewRequest(http.MethodPost, "/tasks/task-4/cancel", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got task.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, task.StatusCancelled, got.Status)
}

func TestStats_ReturnsCountsAcrossCreatedTasks(t *testing.T) {
	h := newTestHandler()
	createTask(t, h, "task-5")
	createTask(t, h, "task-6")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats coordinator.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.GreaterOrEqual(t, stats.Total, 2)
}
