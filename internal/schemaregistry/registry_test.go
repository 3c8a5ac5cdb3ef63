package schemaregistry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
schema_id: catalog-v1
version: "1.0.0"
source_id: src-1
start_url: https://example.com
item_container: ".item"
min_fields_required: 1
fields:
  - name: title
    type: string
    method: css
    selector: h2
    required: true
`

func writeSchema(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_FindsSchemaByIDAndVersion(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "catalog.yaml", sampleYAML)

	reg, err := Load(dir)
	require.NoError(t, err)

	s, ok := reg.Get("catalog-v1", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, "src-1", s.SourceID)
	assert.Equal(t, ".item", s.ItemContainer)
}

func TestLoad_RejectsInvalidSchema(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "bad.yaml", "schema_id: bad\nversion: \"1.0.0\"\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestGet_FallsBackWhenVersionOmittedAndUnambiguous(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "catalog.yaml", sampleYAML)

	reg, err := Load(dir)
	require.NoError(t, err)

	s, ok := reg.Get("catalog-v1", "")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", s.Version)
}

func TestGet_UnknownSchemaIDMisses(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "catalog.yaml", sampleYAML)

	reg, err := Load(dir)
	require.NoError(t, err)

	_, ok := reg.Get("unknown", "1.0.0")
	assert.False(t, ok)
}
