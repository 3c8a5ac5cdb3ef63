package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/99souls/harvester/internal/schemaregistry"
)

// SchemaHandler exposes the minimal schema read API that worker
// processes's schemacache falls back to on a cache miss.
type SchemaHandler struct {
	registry *schemaregistry.Registry
	logger   *zap.Logger
}

// NewSchemaHandler constructs a SchemaHandler over registry.
func NewSchemaHandler(registry *schemaregistry.Registry, logger *zap.Logger) *SchemaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaHandler{registry: registry, logger: logger}
}

// Routes returns a chi.Router serving GET /schemas/{id}.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/schemas/{id}", h.getSchema)
	return r
}

func (h *SchemaHandler) getSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version := r.URL.Query().Get("version")

	s, ok := h.registry.Get(id, version)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound(id, version))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s)
}

func errNotFound(id, version string) error {
	if version == "" {
		return &schemaLookupError{id: id}
	}
	return &schemaLookupError{id: id, version: version}
}

type schemaLookupError struct {
	id, version string
}

func (e *schemaLookupError) Error() string {
	if e.version == "" {
		return "schema " + e.id + " not found"
	}
	return "schema " + e.id + "@" + e.version + " not found"
}
