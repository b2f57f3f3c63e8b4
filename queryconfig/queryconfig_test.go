package queryconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}

func TestLoadParsesFiltersAndQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.yml")
	require.NoError(t, os.WriteFile(path, []byte("filters:\n  open: \"state == 'open'\"\nqueries:\n  id: \"id\"\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "state == 'open'", s.Filters["open"])
	assert.Equal(t, "id", s.Queries["id"])
}

func TestResolvePrefersSidecarFileOverFallback(t *testing.T) {
	repo := t.TempDir()
	sidecar := filepath.Join(repo, ".items/queries")
	require.NoError(t, os.MkdirAll(sidecar, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sidecar, "mine"), []byte("  summary  \n"), 0o644))

	expr, ok := Resolve(repo, ".items/queries", "mine", map[string]string{"mine": "fallback-expr"})
	require.True(t, ok)
	assert.Equal(t, "summary", expr)
}

func TestResolveFallsBackToConfigMap(t *testing.T) {
	repo := t.TempDir()
	expr, ok := Resolve(repo, ".items/queries", "mine", map[string]string{"mine": "fallback-expr"})
	require.True(t, ok)
	assert.Equal(t, "fallback-expr", expr)
}

func TestResolveMissingReturnsFalse(t *testing.T) {
	repo := t.TempDir()
	_, ok := Resolve(repo, ".items/queries", "nope", nil)
	assert.False(t, ok)
}

func TestListReturnsSortedFileNames(t *testing.T) {
	repo := t.TempDir()
	sidecar := filepath.Join(repo, ".items/queries")
	require.NoError(t, os.MkdirAll(sidecar, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sidecar, "b"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sidecar, "a"), []byte("a"), 0o644))

	names, err := List(repo, ".items/queries")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}
