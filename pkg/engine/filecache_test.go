package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentCache_GetAndReuse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1;"), 0o644))

	c := NewContentCache(0, nil)
	t.Cleanup(func() { _ = c.Close() })

	first, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, "export const a = 1;", string(first))
	assert.Equal(t, 1, c.Size())

	second, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 1, c.Size())
}

func TestContentCache_MissingFile(t *testing.T) {
	c := NewContentCache(0, nil)
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Get(filepath.Join(t.TempDir(), "absent.ts"))
	assert.Error(t, err)
}

func TestContentCache_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.ts")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	c := NewContentCache(0, nil)
	t.Cleanup(func() { _ = c.Close() })

	data, err := c.Get(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestContentCache_InvalidateServesFreshBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.ts")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	c := NewContentCache(0, nil)
	t.Cleanup(func() { _ = c.Close() })

	data, err := c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	require.NoError(t, os.WriteFile(path, []byte("new content"), 0o644))
	c.Invalidate(path)

	data, err = c.Get(path)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestContentCache_MaxFilesServesWithoutCaching(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.ts")
	b := filepath.Join(dir, "b.ts")
	require.NoError(t, os.WriteFile(a, []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("bbb"), 0o644))

	c := NewContentCache(1, nil)
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Get(a)
	require.NoError(t, err)

	data, err := c.Get(b)
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))
	assert.Equal(t, 1, c.Size(), "over-budget reads bypass the cache")
}
