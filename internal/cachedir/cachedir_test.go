package cachedir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootPrefersPkgdbCachedir(t *testing.T) {
	t.Setenv("PKGDB_CACHEDIR", "/tmp/explicit-cache")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	root, err := Root()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit-cache", root)
}

func TestRootFallsBackToXDG(t *testing.T) {
	t.Setenv("PKGDB_CACHEDIR", "")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	root, err := Root()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-cache", "flox", "pkgdb-v0"), root)
}

func TestRootFallsBackToHome(t *testing.T) {
	t.Setenv("PKGDB_CACHEDIR", "")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "/tmp/home")
	root, err := Root()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/home", ".cache", "flox", "pkgdb-v0"), root)
}

func TestPathForCreatesRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "nested", "cache")
	p, err := PathFor(root, "abc123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "abc123.sqlite"), p)
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListFindsFingerprints(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aaa.sqlite"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bbb.sqlite"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0o644))

	got, err := List(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aaa", "bbb"}, got)
}

func TestListMissingRootIsEmpty(t *testing.T) {
	got, err := List(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRebuildEmptyReplacesContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("stale contents"), 0o644))

	require.NoError(t, RebuildEmpty(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
