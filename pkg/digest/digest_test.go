package digest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash_StableAndDistinct(t *testing.T) {
	a := ContentHash([]byte("export const x = 1;"))
	b := ContentHash([]byte("export const x = 1;"))
	c := ContentHash([]byte("export const x = 2;"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestPathFanoutHash_Length(t *testing.T) {
	h := PathFanoutHash("/w/src/index.ts")
	assert.Len(t, h, 16)
	assert.Equal(t, h, PathFanoutHash("/w/src/index.ts"))
}

func TestFolderDigest_UnchangedBetweenRuns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("export const a = 1;"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.ts"), []byte("export const b = 2;"), 0o644))

	h := NewFolderHasher(nil, nil)
	first, err := h.Digest(root)
	require.NoError(t, err)
	h.Store(root, first)

	second, err := h.Digest(root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, h.Unchanged(root, second))
}

func TestFolderDigest_ChangesOnFileModification(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1;"), 0o644))

	h := NewFolderHasher(nil, nil)
	first, err := h.Digest(root)
	require.NoError(t, err)
	h.Store(root, first)

	// Bump mtime explicitly: sub-second writes can share a timestamp on
	// coarse-grained filesystems.
	require.NoError(t, os.WriteFile(path, []byte("export const a = 22;"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	second, err := h.Digest(root)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.False(t, h.Unchanged(root, second))
}

func TestFolderDigest_ChangePropagatesUpward(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "deep", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	leaf := filepath.Join(sub, "leaf.ts")
	require.NoError(t, os.WriteFile(leaf, []byte("export const x = 1;"), 0o644))

	h := NewFolderHasher(nil, nil)
	first, err := h.Digest(root)
	require.NoError(t, err)

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(leaf, future, future))

	second, err := h.Digest(root)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "leaf change must surface in the root digest")
}

func TestFolderDigest_ExcludedEntriesIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("export const a = 1;"), 0o644))
	nm := filepath.Join(root, "node_modules")
	require.NoError(t, os.MkdirAll(nm, 0o755))

	exclude := func(path string) bool { return filepath.Base(path) == "node_modules" }
	h := NewFolderHasher(exclude, nil)
	first, err := h.Digest(root)
	require.NoError(t, err)

	// Churn inside the excluded tree must not perturb the digest.
	require.NoError(t, os.WriteFile(filepath.Join(nm, "dep.ts"), []byte("whatever"), 0o644))

	second, err := h.Digest(root)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("x"), 0o644))

	h := NewFolderHasher(nil, nil)
	digest, err := h.Digest(root)
	require.NoError(t, err)
	h.Store(root, digest)

	restored := NewFolderHasher(nil, nil)
	restored.Restore(h.Snapshot())
	assert.True(t, restored.Unchanged(root, digest))
}
