package bgindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/symgraph/pkg/digest"
	"github.com/gnana997/symgraph/pkg/extractor"
	"github.com/gnana997/symgraph/pkg/model"
	"github.com/gnana997/symgraph/pkg/parser"
	"github.com/gnana997/symgraph/pkg/shardstore"
)

func newTestIndex(t *testing.T) *BackgroundIndex {
	t.Helper()
	pm := parser.NewParserManager(nil)
	t.Cleanup(func() { _ = pm.Close() })
	ext := extractor.New(pm, nil, 0, nil)
	store := shardstore.New(t.TempDir(), nil)
	return New(store, ext, nil, nil, Options{PoolSize: 2, TaskTimeout: 5 * time.Second})
}

func indexedFile(uri string, symbols []model.Symbol, refs []model.Reference) model.IndexedFile {
	return model.IndexedFile{
		URI:          uri,
		ContentHash:  "cafe",
		Mtime:        1,
		Symbols:      symbols,
		References:   refs,
		ShardVersion: shardstore.ShardVersion,
	}
}

func TestUpdateFile_Idempotent(t *testing.T) {
	b := newTestIndex(t)
	uri := "/w/a.ts"
	file := indexedFile(uri,
		[]model.Symbol{{ID: "aa:Foo", Name: "Foo", Location: model.Location{URI: uri}}},
		[]model.Reference{{SymbolName: "Bar", Location: model.Location{URI: uri, Line: 4}, ScopeID: model.GlobalScopeID}},
	)

	require.NoError(t, b.UpdateFile(uri, file))
	require.NoError(t, b.UpdateFile(uri, file))

	assert.Len(t, b.FindDefinitions("Foo"), 1)
	assert.Len(t, b.FindReferencesByName("Bar", FindReferencesOptions{}), 1)

	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	assert.Len(t, b.symbolNameIndex["Foo"], 1)
	assert.Len(t, b.referenceMap["Bar"], 1)
	assert.Equal(t, uri, b.symbolIdIndex["aa:Foo"])
	assert.Len(t, b.shardMeta, 1)
}

func TestUpdateFile_NoGhostEntries(t *testing.T) {
	b := newTestIndex(t)
	uri := "/w/a.ts"

	r1 := indexedFile(uri,
		[]model.Symbol{{ID: "aa:Old", Name: "Old", Location: model.Location{URI: uri}}},
		[]model.Reference{{SymbolName: "OldRef", Location: model.Location{URI: uri, Line: 1}, ScopeID: model.GlobalScopeID}},
	)
	r2 := indexedFile(uri,
		[]model.Symbol{{ID: "aa:New", Name: "New", Location: model.Location{URI: uri}}},
		[]model.Reference{{SymbolName: "NewRef", Location: model.Location{URI: uri, Line: 2}, ScopeID: model.GlobalScopeID}},
	)

	require.NoError(t, b.UpdateFile(uri, r1))
	require.NoError(t, b.UpdateFile(uri, r2))

	assert.Empty(t, b.FindDefinitions("Old"))
	assert.Empty(t, b.FindReferencesByName("OldRef", FindReferencesOptions{}))
	assert.Len(t, b.FindDefinitions("New"), 1)

	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	assert.NotContains(t, b.symbolIdIndex, "aa:Old")
	assert.NotContains(t, b.symbolNameIndex, "Old")
	assert.NotContains(t, b.referenceMap, "OldRef")
}

func TestUpdateFile_NoGhostsAfterCacheEviction(t *testing.T) {
	// A single-slot body cache guarantees the updated URI's prior body is
	// evicted before the second update, forcing the purge to snapshot from
	// the on-disk shard rather than the cache.
	pm := parser.NewParserManager(nil)
	t.Cleanup(func() { _ = pm.Close() })
	ext := extractor.New(pm, nil, 0, nil)
	b := New(shardstore.New(t.TempDir(), nil), ext, nil, nil, Options{CacheBodies: 1, PoolSize: 2})

	uri := "/w/evicted.ts"
	other := "/w/other.ts"

	require.NoError(t, b.UpdateFile(uri, indexedFile(uri,
		[]model.Symbol{{ID: "ee:Old", Name: "Old", Location: model.Location{URI: uri}}},
		[]model.Reference{{SymbolName: "OldRef", Location: model.Location{URI: uri, Line: 1}, ScopeID: model.GlobalScopeID}},
	)))

	// Touching a second URI evicts the first from the one-slot cache.
	require.NoError(t, b.UpdateFile(other, indexedFile(other,
		[]model.Symbol{{ID: "oo:Other", Name: "Other", Location: model.Location{URI: other}}}, nil)))

	_, cached := b.cache.Get(uri)
	require.False(t, cached, "first URI must have been evicted for this test to prove anything")

	require.NoError(t, b.UpdateFile(uri, indexedFile(uri,
		[]model.Symbol{{ID: "ee:New", Name: "New", Location: model.Location{URI: uri}}},
		[]model.Reference{{SymbolName: "NewRef", Location: model.Location{URI: uri, Line: 2}, ScopeID: model.GlobalScopeID}},
	)))

	assert.Empty(t, b.FindDefinitions("Old"))
	assert.Empty(t, b.FindReferencesByName("OldRef", FindReferencesOptions{}))
	assert.Len(t, b.FindDefinitions("New"), 1)

	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	assert.NotContains(t, b.symbolIdIndex, "ee:Old")
	assert.NotContains(t, b.symbolNameIndex, "Old")
	assert.NotContains(t, b.referenceMap, "OldRef")
}

func TestRemoveFile_PurgesAfterCacheEviction(t *testing.T) {
	pm := parser.NewParserManager(nil)
	t.Cleanup(func() { _ = pm.Close() })
	ext := extractor.New(pm, nil, 0, nil)
	b := New(shardstore.New(t.TempDir(), nil), ext, nil, nil, Options{CacheBodies: 1, PoolSize: 2})

	uri := "/w/gone.ts"
	require.NoError(t, b.UpdateFile(uri, indexedFile(uri,
		[]model.Symbol{{ID: "gg:Gone", Name: "Gone", Location: model.Location{URI: uri}}},
		[]model.Reference{{SymbolName: "GoneRef", Location: model.Location{URI: uri, Line: 1}, ScopeID: model.GlobalScopeID}},
	)))
	require.NoError(t, b.UpdateFile("/w/filler.ts", indexedFile("/w/filler.ts",
		[]model.Symbol{{ID: "ff:Filler", Name: "Filler", Location: model.Location{URI: "/w/filler.ts"}}}, nil)))

	require.NoError(t, b.RemoveFile(uri))

	assert.Empty(t, b.FindDefinitions("Gone"))
	assert.Empty(t, b.FindReferencesByName("GoneRef", FindReferencesOptions{}))

	_, ok, err := b.store.Load(uri)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveFile_PurgesAllTrace(t *testing.T) {
	b := newTestIndex(t)
	uri := "/w/f.ts"

	file := indexedFile(uri,
		[]model.Symbol{
			{ID: "ff:One", Name: "One", Location: model.Location{URI: uri}},
			{ID: "ff:Two", Name: "Two", Location: model.Location{URI: uri, Line: 1}},
		},
		[]model.Reference{
			{SymbolName: "One", Location: model.Location{URI: uri, Line: 5}, ScopeID: model.GlobalScopeID},
			{SymbolName: "helper", Location: model.Location{URI: uri, Line: 6}, ScopeID: model.GlobalScopeID},
			{SymbolName: "helper", Location: model.Location{URI: uri, Line: 9}, ScopeID: model.GlobalScopeID},
		},
	)
	require.NoError(t, b.UpdateFile(uri, file))
	require.NoError(t, b.RemoveFile(uri))

	assert.Empty(t, b.FindDefinitions("One"))
	assert.Empty(t, b.FindDefinitions("Two"))
	assert.Empty(t, b.FindReferencesByName("helper", FindReferencesOptions{}))

	_, ok, err := b.store.Load(uri)
	require.NoError(t, err)
	assert.False(t, ok, "shard must not exist on disk after removal")

	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	assert.NotContains(t, b.shardMeta, uri)
}

func TestEnsureUpToDate_SkipsUnchangedMtime(t *testing.T) {
	b := newTestIndex(t)
	root := t.TempDir()
	require.NoError(t, b.Init(root, ""))

	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1;"), 0o644))

	first := b.EnsureUpToDate(context.Background(), []string{path}, nil, nil)
	assert.Equal(t, 1, first.Dispatched)

	second := b.EnsureUpToDate(context.Background(), []string{path}, nil, nil)
	assert.Equal(t, 0, second.Dispatched, "unchanged mtime must dispatch no work")
	assert.Equal(t, 1, second.Skipped)
}

func TestEnsureUpToDate_ReindexesOnMtimeChange(t *testing.T) {
	b := newTestIndex(t)
	root := t.TempDir()
	require.NoError(t, b.Init(root, ""))

	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1;"), 0o644))
	b.EnsureUpToDate(context.Background(), []string{path}, nil, nil)

	require.NoError(t, os.WriteFile(path, []byte("export const a = 2;"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	result := b.EnsureUpToDate(context.Background(), []string{path}, nil, nil)
	assert.Equal(t, 1, result.Dispatched)
}

func TestEnsureUpToDate_FolderDigestSkip(t *testing.T) {
	pm := parser.NewParserManager(nil)
	t.Cleanup(func() { _ = pm.Close() })
	ext := extractor.New(pm, nil, 0, nil)
	hasher := digest.NewFolderHasher(nil, nil)
	b := New(shardstore.New(t.TempDir(), nil), ext, hasher, nil, Options{PoolSize: 2})

	root := t.TempDir()
	require.NoError(t, b.Init(root, ""))
	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1;"), 0o644))

	first := b.EnsureUpToDate(context.Background(), []string{path}, nil, nil)
	assert.Equal(t, 1, first.Dispatched)

	// Forget the per-file mtime so only the folder digest can justify a
	// skip on the next run.
	b.mapsMu.Lock()
	delete(b.shardMeta, path)
	b.mapsMu.Unlock()

	second := b.EnsureUpToDate(context.Background(), []string{path}, nil, nil)
	assert.Equal(t, 0, second.Dispatched, "unchanged folder digest must skip every file under it")
	assert.Equal(t, 1, second.Skipped)
}

func TestEnsureUpToDate_RemovesStaleAndExcluded(t *testing.T) {
	b := newTestIndex(t)
	root := t.TempDir()
	require.NoError(t, b.Init(root, ""))

	keep := filepath.Join(root, "keep.ts")
	gone := filepath.Join(root, "gone.ts")
	require.NoError(t, os.WriteFile(keep, []byte("export const k = 1;"), 0o644))
	require.NoError(t, os.WriteFile(gone, []byte("export const g = 1;"), 0o644))

	b.EnsureUpToDate(context.Background(), []string{keep, gone}, nil, nil)
	assert.Len(t, b.FindDefinitions("g"), 1)

	// gone.ts disappears from the candidate set: its shard must be purged.
	result := b.EnsureUpToDate(context.Background(), []string{keep}, nil, nil)
	assert.Equal(t, 1, result.Removed)
	assert.Empty(t, b.FindDefinitions("g"))
}

func TestEnsureUpToDate_Cancellation(t *testing.T) {
	b := newTestIndex(t)
	root := t.TempDir()
	require.NoError(t, b.Init(root, ""))

	var paths []string
	for i := 0; i < 5; i++ {
		p := filepath.Join(root, "f"+string(rune('a'+i))+".ts")
		require.NoError(t, os.WriteFile(p, []byte("export const x = 1;"), 0o644))
		paths = append(paths, p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := b.EnsureUpToDate(ctx, paths, nil, nil)
	assert.True(t, result.Cancelled)

	// A fresh run completes and the index ends consistent.
	again := b.EnsureUpToDate(context.Background(), paths, nil, nil)
	assert.False(t, again.Cancelled)
	assert.Len(t, b.FindDefinitions("x"), 5)
}

func TestFindReferencesByName_ImportAwareAlias(t *testing.T) {
	b := newTestIndex(t)

	defURI := "/w/u.ts"
	useURI := "/w/c.ts"

	require.NoError(t, b.UpdateFile(defURI, indexedFile(defURI,
		[]model.Symbol{{ID: "uu:User", Name: "User", Kind: model.KindClass, Location: model.Location{URI: defURI}}},
		nil,
	)))

	useFile := indexedFile(useURI, nil, []model.Reference{
		{SymbolName: "Admin", Location: model.Location{URI: useURI, Line: 1, Character: 14}, ScopeID: model.GlobalScopeID},
	})
	useFile.Imports = []model.Import{{LocalName: "Admin", ExportedName: "User", ModuleSpecifier: "./u"}}
	require.NoError(t, b.UpdateFile(useURI, useFile))

	refs := b.FindReferencesByName("User", FindReferencesOptions{IncludeImportAliases: true})
	require.Len(t, refs, 1)
	assert.Equal(t, "Admin", refs[0].SymbolName)
	assert.Equal(t, useURI, refs[0].Location.URI)

	plain := b.FindReferencesByName("User", FindReferencesOptions{})
	assert.Empty(t, plain, "without the alias path the renamed use is invisible")
}

func TestFindReferencesByName_ExcludeLocal(t *testing.T) {
	b := newTestIndex(t)

	aURI := "/w/a.ts"
	bURI := "/w/b.ts"
	for _, uri := range []string{aURI, bURI} {
		scope := "f"
		if uri == bURI {
			scope = "g"
		}
		require.NoError(t, b.UpdateFile(uri, indexedFile(uri, nil, []model.Reference{
			{SymbolName: "temp", Location: model.Location{URI: uri, Line: 1}, ScopeID: scope, IsLocal: true},
		})))
	}

	excluded := b.FindReferencesByName("temp", FindReferencesOptions{
		ReferenceFilter: model.ReferenceFilter{ExcludeLocal: true},
	})
	assert.Empty(t, excluded)

	all := b.FindReferencesByName("temp", FindReferencesOptions{})
	assert.Len(t, all, 2)
}

func TestInit_RestoresFromMetadata(t *testing.T) {
	pm := parser.NewParserManager(nil)
	t.Cleanup(func() { _ = pm.Close() })
	ext := extractor.New(pm, nil, 0, nil)
	cacheDir := t.TempDir()

	first := New(shardstore.New(cacheDir, nil), ext, nil, nil, Options{PoolSize: 2})
	uri := "/w/persisted.ts"
	require.NoError(t, first.UpdateFile(uri, indexedFile(uri,
		[]model.Symbol{{ID: "pp:Kept", Name: "Kept", Location: model.Location{URI: uri}}},
		[]model.Reference{{SymbolName: "used", Location: model.Location{URI: uri, Line: 2}, ScopeID: model.GlobalScopeID}},
	)))
	require.NoError(t, first.PersistMetadata())

	second := New(shardstore.New(cacheDir, nil), ext, nil, nil, Options{PoolSize: 2})
	require.NoError(t, second.Init("/w", cacheDir))

	assert.Len(t, second.FindDefinitions("Kept"), 1)
	assert.Len(t, second.FindReferencesByName("used", FindReferencesOptions{}), 1)
}

func TestClear_ResetsEverything(t *testing.T) {
	b := newTestIndex(t)
	uri := "/w/x.ts"
	require.NoError(t, b.UpdateFile(uri, indexedFile(uri,
		[]model.Symbol{{ID: "xx:X", Name: "X", Location: model.Location{URI: uri}}}, nil)))

	require.NoError(t, b.Clear())

	assert.Empty(t, b.FindDefinitions("X"))
	assert.Equal(t, 0, b.GetStats().FileCount)
}

func TestGetStats_Counts(t *testing.T) {
	b := newTestIndex(t)
	uri := "/w/s.ts"
	require.NoError(t, b.UpdateFile(uri, indexedFile(uri,
		[]model.Symbol{
			{ID: "ss:A", Name: "A", Location: model.Location{URI: uri}},
			{ID: "ss:B", Name: "B", Location: model.Location{URI: uri}},
		},
		[]model.Reference{{SymbolName: "C", Location: model.Location{URI: uri}, ScopeID: model.GlobalScopeID}},
	)))

	stats := b.GetStats()
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 2, stats.SymbolCount)
	assert.Equal(t, int64(1), stats.FilesIndexed)
}
