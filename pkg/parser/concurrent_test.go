package parser

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Concurrency coverage for the permit-semaphore pool: parses from many
// goroutines, mixed grammars, and a pool limit smaller than the goroutine
// count all have to complete without deadlock, and parser creation must
// stay within the configured bound.

func TestConcurrentParse_SingleLanguage(t *testing.T) {
	pm := newTestManager(t)

	const goroutines = 32
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			source := fmt.Sprintf("const value%d: number = %d;", n, n)
			tree, err := pm.Parse([]byte(source), LanguageTypeScript)
			if err != nil {
				errs <- err
				return
			}
			defer tree.Close()
			if tree.RootNode().HasError() {
				errs <- fmt.Errorf("unexpected parse error for goroutine %d", n)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, int64(32), pm.GetStats().ParsesCalled)
}

func TestConcurrentParse_MixedGrammars(t *testing.T) {
	pm := newTestManager(t)

	sources := map[Language]string{
		LanguageTypeScript: `interface Shape { area(): number }`,
		LanguageTSX:        `const View = () => <section>{1 + 1}</section>;`,
		LanguageJavaScript: `module.exports = { ready: true };`,
	}

	var wg sync.WaitGroup
	for lang, source := range sources {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(lang Language, source string) {
				defer wg.Done()
				tree, err := pm.Parse([]byte(source), lang)
				if assert.NoError(t, err) {
					tree.Close()
				}
			}(lang, source)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(24), pm.GetStats().ParsesCalled)
}

func TestConcurrentParse_BoundedByPoolLimit(t *testing.T) {
	pm := NewParserManagerWith(Config{PoolSizePerLanguage: 2}, nil)
	t.Cleanup(func() { _ = pm.Close() })

	const goroutines = 16
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := pm.Parse([]byte(`export const shared = [1, 2, 3];`), LanguageTypeScript)
			if assert.NoError(t, err) {
				tree.Close()
			}
		}()
	}
	wg.Wait()

	created := pm.GetStats().ParsersCreated
	require.LessOrEqual(t, created, 2, "the permit semaphore must cap parser creation at the pool limit")
	require.GreaterOrEqual(t, created, 1)
}

func TestConcurrentPoolCreation_OnePoolPerLanguage(t *testing.T) {
	pm := newTestManager(t)

	// Race many goroutines into the first parse so pool creation itself is
	// contended; the double-checked lock must still yield one pool.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := pm.Parse([]byte(`let raced = true;`), LanguageJavaScript)
			if assert.NoError(t, err) {
				tree.Close()
			}
		}()
	}
	wg.Wait()

	pm.mu.RLock()
	defer pm.mu.RUnlock()
	assert.Len(t, pm.pools, 1)
}
