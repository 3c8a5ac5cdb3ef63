// Package schemacache implements the process-local parsing-schema cache:
// a read-through map keyed by (schema_id, version) so every worker avoids
// re-fetching a schema it has already resolved, never caching a miss since
// a schema that doesn't exist yet may be published moments later.
package schemacache

import (
	"context"
	"fmt"
	"sync"

	"github.com/99souls/harvester/internal/schema"
)

// Loader resolves a schema from its system of record (the schema service)
// on a cache miss.
type Loader interface {
	Load(ctx context.Context, schemaID, version string) (schema.ParsingSchema, error)
}

type cacheKey struct {
	schemaID string
	version  string
}

// Cache is a mutex-guarded read-through cache, safe for concurrent use
// across every goroutine in a worker's semaphore pool.
type Cache struct {
	loader Loader
	mu     sync.RWMutex
	byKey  map[cacheKey]schema.ParsingSchema
}

// New constructs a Cache backed by loader.
func New(loader Loader) *Cache {
	return &Cache{loader: loader, byKey: make(map[cacheKey]schema.ParsingSchema)}
}

// Get returns the schema for (schemaID, version), loading and caching it
// on first use. A load failure is never cached — the next Get retries.
func (c *Cache) Get(ctx context.Context, schemaID, version string) (schema.ParsingSchema, error) {
	key := cacheKey{schemaID: schemaID, version: version}

	c.mu.RLock()
	s, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	loaded, err := c.loader.Load(ctx, schemaID, version)
	if err != nil {
		return schema.ParsingSchema{}, fmt.Errorf("schemacache: load %s@%s: %w", schemaID, version, err)
	}
	loaded.ApplyDefaults()
	if err := loaded.Validate(); err != nil {
		return schema.ParsingSchema{}, fmt.Errorf("schemacache: invalid schema %s@%s: %w", schemaID, version, err)
	}

	c.mu.Lock()
	c.byKey[key] = loaded
	c.mu.Unlock()
	return loaded, nil
}

// Invalidate drops a cached entry, used when a schema service push
// notifies this process that a version changed under it.
func (c *Cache) Invalidate(schemaID, version string) {
	c.mu.Lock()
	delete(c.byKey, cacheKey{schemaID: schemaID, version: version})
	c.mu.Unlock()
}

// Size reports the number of cached (schema_id, version) entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}
