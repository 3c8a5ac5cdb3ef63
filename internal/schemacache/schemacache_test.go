package schemacache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/harvester/internal/schema"
)

type fakeLoader struct {
	calls   int64
	fail    bool
	builder func() schema.ParsingSchema
}

func (l *fakeLoader) Load(ctx context.Context, schemaID, version string) (schema.ParsingSchema, error) {
	atomic.AddInt64(&l.calls, 1)
	if l.fail {
		return schema.ParsingSchema{}, errors.New("schema service unavailable")
	}
	return l.builder(), nil
}

func sampleSchema() schema.ParsingSchema {
	return schema.ParsingSchema{
		SchemaID: "catalog-v1", Version: "1.0.0", SourceID: "src-1", StartURL: "https://example.com",
		Fields: []schema.FieldDefinition{{Name: "name", Type: schema.TypeString, Method: schema.MethodCSS, Selector: "h1"}},
	}
}

func TestGet_CachesAfterFirstLoad(t *testing.T) {
	loader := &fakeLoader{builder: sampleSchema}
	cache := New(loader)

	_, err := cache.Get(context.Background(), "catalog-v1", "1.0.0")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "catalog-v1", "1.0.0")
	require.NoError(t, err)

	assert.EqualValues(t, 1, loader.calls)
	assert.Equal(t, 1, cache.Size())
}

func TestGet_DoesNotCacheFailure(t *testing.T) {
	loader := &fakeLoader{fail: true, builder: sampleSchema}
	cache := New(loader)

	_, err := cache.Get(context.Background(), "catalog-v1", "1.0.0")
	assert.Error(t, err)
	_, err = cache.Get(context.Background(), "catalog-v1", "1.0.0")
	assert.Error(t, err)

	assert.EqualValues(t, 2, loader.calls)
	assert.Equal(t, 0, cache.Size())
}

func TestInvalidate(t *testing.T) {
	loader := &fakeLoader{builder: sampleSchema}
	cache := New(loader)

	_, err := cache.Get(context.Background(), "catalog-v1", "1.0.0")
	require.NoError(t, err)
	cache.Invalidate("catalog-v1", "1.0.0")
	assert.Equal(t, 0, cache.Size())

	_, err = cache.Get(context.Background(), "catalog-v1", "1.0.0")
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls)
}
