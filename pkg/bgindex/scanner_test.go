package bgindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_FindsSourceFilesAndSkipsExcludes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("export const a = 1;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.json"), []byte("{}"), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep", "index.ts"), []byte("export const x = 1;"), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "c.tsx"), []byte("export const C = () => null;"), 0o644))

	files, err := Scan(root, []string{"**/node_modules/**"}, 0)
	require.NoError(t, err)

	assert.Contains(t, files, filepath.Join(root, "a.ts"))
	assert.Contains(t, files, filepath.Join(root, "src", "c.tsx"))
	assert.NotContains(t, files, filepath.Join(root, "b.json"))
	for _, f := range files {
		assert.NotContains(t, f, "node_modules")
	}
}

func TestScan_HonorsMaxFileSize(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 100)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.ts"), big, 0o644))

	files, err := Scan(root, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScan_ReturnsStableSortedOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.ts", "a.ts", "m.ts"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("export const v = 1;"), 0o644))
	}

	files, err := Scan(root, nil, 0)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.True(t, files[0] < files[1] && files[1] < files[2])
}

func TestValidatePatterns(t *testing.T) {
	assert.NoError(t, ValidatePatterns([]string{"**/node_modules/**"}))
	assert.Error(t, ValidatePatterns([]string{"["}))
}
