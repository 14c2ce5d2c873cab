package watch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeIndexer struct {
	mu        sync.Mutex
	reindexed []string
	removed   []string
}

func (f *fakeIndexer) ReindexFile(uri string) error {
	f.mu.Lock()
	f.reindexed = append(f.reindexed, uri)
	f.mu.Unlock()
	return nil
}

func (f *fakeIndexer) RemoveFile(uri string) error {
	f.mu.Lock()
	f.removed = append(f.removed, uri)
	f.mu.Unlock()
	return nil
}

func (f *fakeIndexer) snapshot() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.reindexed...), append([]string{}, f.removed...)
}

func newTestWatcher(t *testing.T, indexer Indexer, debounceMs int) *FileWatcher {
	t.Helper()
	w, err := New(indexer, Options{DebounceMs: debounceMs}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestHandle_ChangedDebouncesThenReindexes(t *testing.T) {
	idx := &fakeIndexer{}
	w := newTestWatcher(t, idx, 20)

	w.Handle("/w/a.ts", EventChanged)
	w.Handle("/w/a.ts", EventChanged) // second trigger resets the timer, not a second reindex

	require.Eventually(t, func() bool {
		reindexed, _ := idx.snapshot()
		return len(reindexed) == 1
	}, time.Second, 5*time.Millisecond)

	reindexed, _ := idx.snapshot()
	assert.Equal(t, []string{"/w/a.ts"}, reindexed)
}

func TestHandle_SaveCancelsDebounceAndReindexesImmediately(t *testing.T) {
	idx := &fakeIndexer{}
	w := newTestWatcher(t, idx, 500)

	w.Handle("/w/a.ts", EventChanged)
	w.Handle("/w/a.ts", EventSaved)

	reindexed, _ := idx.snapshot()
	assert.Equal(t, []string{"/w/a.ts"}, reindexed)
	assert.Equal(t, 0, w.PendingCount())
}

func TestHandle_DeleteCancelsDebounceAndRemoves(t *testing.T) {
	idx := &fakeIndexer{}
	w := newTestWatcher(t, idx, 500)

	w.Handle("/w/a.ts", EventChanged)
	w.Handle("/w/a.ts", EventDeleted)

	_, removed := idx.snapshot()
	assert.Equal(t, []string{"/w/a.ts"}, removed)
	assert.Equal(t, 0, w.PendingCount())

	time.Sleep(20 * time.Millisecond)
	reindexed, _ := idx.snapshot()
	assert.Empty(t, reindexed, "the pending debounce must not fire after delete cancelled it")
}

// overlapIndexer blocks the first ReindexFile call until release is
// closed, so the test can assert the second trigger defers rather than
// running concurrently.
type overlapIndexer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	done    chan struct{}
}

func (o *overlapIndexer) ReindexFile(uri string) error {
	o.mu.Lock()
	o.calls++
	first := o.calls == 1
	o.mu.Unlock()

	if first {
		<-o.release
	}
	select {
	case o.done <- struct{}{}:
	default:
	}
	return nil
}

func (o *overlapIndexer) RemoveFile(uri string) error { return nil }

func TestReindex_OverlapGuardDefersSecondTrigger(t *testing.T) {
	idx := &overlapIndexer{release: make(chan struct{}), done: make(chan struct{}, 4)}
	w := newTestWatcher(t, idx, 5)

	w.Handle("/w/a.ts", EventChanged)
	// Wait for the first reindex to actually start before firing the
	// second trigger, so it observes inProgress == true.
	require.Eventually(t, func() bool {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		return idx.calls == 1
	}, time.Second, time.Millisecond)

	w.Handle("/w/a.ts", EventSaved) // arrives while the first reindex is running

	close(idx.release)

	require.Eventually(t, func() bool {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		return idx.calls == 2
	}, time.Second, 5*time.Millisecond, fmt.Sprintf("expected the deferred trigger to rerun once the first reindex completed"))
}
