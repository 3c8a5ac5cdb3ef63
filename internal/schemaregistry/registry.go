// Package schemaregistry loads parsing schemas from YAML files on disk into
// an in-memory, read-only lookup table, backing the minimal schema read API
// named as an external interface. Schema authoring (the CRUD surface, the
// LLM-assisted authoring path) is out of scope here; this registry only
// ever serves what was present on disk at startup.
package schemaregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/99souls/harvester/internal/schema"
)

// Registry is a read-only, process-local table of every schema found under
// a root directory at load time, keyed by (schema_id, version).
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]schema.ParsingSchema
}

// Load walks root for *.yaml/*.yml files, each containing one ParsingSchema,
// applying defaults and validating before admitting it to the table. A
// single malformed file fails the whole load — a registry serving a
// partially loaded schema set is worse than refusing to start.
func Load(root string) (*Registry, error) {
	reg := &Registry{byKey: make(map[string]schema.ParsingSchema)}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var s schema.ParsingSchema
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		s.ApplyDefaults()
		if err := s.Validate(); err != nil {
			return fmt.Errorf("validate %s: %w", path, err)
		}
		reg.byKey[key(s.SchemaID, s.Version)] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Get returns the schema registered for (schemaID, version). An empty
// version falls through to any single schema registered for schemaID when
// exactly one version exists; a caller that needs a specific version must
// name it.
func (r *Registry) Get(schemaID, version string) (schema.ParsingSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if version != "" {
		s, ok := r.byKey[key(schemaID, version)]
		return s, ok
	}
	var match schema.ParsingSchema
	found := 0
	for k, s := range r.byKey {
		if s.SchemaID == schemaID {
			match = s
			found++
			_ = k
		}
	}
	return match, found == 1
}

func key(schemaID, version string) string { return schemaID + "@" + version }
