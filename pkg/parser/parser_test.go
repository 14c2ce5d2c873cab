package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *ParserManager {
	t.Helper()
	pm := NewParserManager(nil)
	t.Cleanup(func() { _ = pm.Close() })
	return pm
}

func TestParse_EachLanguage(t *testing.T) {
	pm := newTestManager(t)

	cases := []struct {
		lang   Language
		source string
	}{
		{LanguageTypeScript, `const x: number = 1;`},
		{LanguageTSX, `const el = <div className="a">hi</div>;`},
		{LanguageJavaScript, `function f(a, b) { return a + b; }`},
	}

	for _, tc := range cases {
		t.Run(tc.lang.String(), func(t *testing.T) {
			tree, err := pm.Parse([]byte(tc.source), tc.lang)
			require.NoError(t, err)
			defer tree.Close()

			root := tree.RootNode()
			assert.Equal(t, "program", root.GrammarName())
			assert.False(t, root.HasError())
		})
	}
}

func TestParse_UnknownLanguageRejected(t *testing.T) {
	pm := newTestManager(t)
	_, err := pm.Parse([]byte("whatever"), LanguageUnknown)
	assert.Error(t, err)
}

func TestParse_SyntaxErrorsStillYieldTree(t *testing.T) {
	pm := newTestManager(t)

	tree, err := pm.Parse([]byte(`class Broken { method( {`), LanguageTypeScript)
	require.NoError(t, err, "partial trees are returned, not rejected")
	defer tree.Close()

	assert.True(t, tree.RootNode().HasError())
}

func TestParseFile_DetectsGrammarFromPath(t *testing.T) {
	pm := newTestManager(t)

	for _, path := range []string{"a.ts", "b.tsx", "c.js", "d.mjs"} {
		tree, err := pm.ParseFile([]byte(`const ok = 1;`), path)
		require.NoError(t, err, path)
		tree.Close()
	}

	_, err := pm.ParseFile([]byte("# nope"), "readme.md")
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LanguageTypeScript, DetectLanguage("/w/src/app.ts"))
	assert.Equal(t, LanguageTypeScript, DetectLanguage("/w/src/mod.MTS"))
	assert.Equal(t, LanguageTSX, DetectLanguage("/w/src/view.tsx"))
	assert.Equal(t, LanguageJavaScript, DetectLanguage("/w/lib/util.cjs"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("/w/notes.md"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("/w/noext"))
}

func TestIndexable(t *testing.T) {
	assert.True(t, Indexable("/w/a.ts"))
	assert.True(t, Indexable("/w/a.jsx"))
	assert.False(t, Indexable("/w/a.json"))
	assert.False(t, Indexable("/w/.git"))
}

func TestPools_CreatedLazilyPerLanguage(t *testing.T) {
	pm := newTestManager(t)
	assert.Equal(t, 0, pm.GetStats().ParsersCreated)

	tree, err := pm.Parse([]byte(`const a = 1;`), LanguageTypeScript)
	require.NoError(t, err)
	tree.Close()

	stats := pm.GetStats()
	assert.Equal(t, 1, stats.ParsersCreated, "one goroutine needs exactly one parser")
	assert.Equal(t, int64(1), stats.ParsesCalled)

	// A second sequential parse of the same language reuses the parser.
	tree, err = pm.Parse([]byte(`const b = 2;`), LanguageTypeScript)
	require.NoError(t, err)
	tree.Close()
	assert.Equal(t, 1, pm.GetStats().ParsersCreated)

	// A different grammar gets its own pool and parser.
	tree, err = pm.Parse([]byte(`const c = 3;`), LanguageJavaScript)
	require.NoError(t, err)
	tree.Close()
	assert.Equal(t, 2, pm.GetStats().ParsersCreated)
}

func TestClose_ThenReuseCreatesFreshPools(t *testing.T) {
	pm := NewParserManager(nil)

	tree, err := pm.Parse([]byte(`const a = 1;`), LanguageTypeScript)
	require.NoError(t, err)
	tree.Close()

	require.NoError(t, pm.Close())

	// The old parsers were destroyed with their pools; a new parse builds
	// a fresh pool rather than failing.
	tree, err = pm.Parse([]byte(`const b = 2;`), LanguageTypeScript)
	require.NoError(t, err)
	tree.Close()
	_ = pm.Close()
}

func TestConfig_PoolSizeOverride(t *testing.T) {
	pm := NewParserManagerWith(Config{PoolSizePerLanguage: 2}, nil)
	t.Cleanup(func() { _ = pm.Close() })

	tree, err := pm.Parse([]byte(`const a = 1;`), LanguageTypeScript)
	require.NoError(t, err)
	tree.Close()

	assert.Equal(t, 1, pm.GetStats().ParsersCreated)
}
