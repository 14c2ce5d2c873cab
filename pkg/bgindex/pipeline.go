package bgindex

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/symgraph/pkg/model"
	"github.com/gnana997/symgraph/pkg/workerpool"
)

// ProgressCallback is invoked at file and wave boundaries so a long-running
// EnsureUpToDate call stays cooperative with progress reporting and query
// traffic.
type ProgressCallback func(processed, total int)

// EnsureResult summarizes one EnsureUpToDate run.
type EnsureResult struct {
	Scanned    int
	Dispatched int
	Removed    int
	Skipped    int
	Cancelled  bool
}

// EnsureUpToDate is the main incremental pipeline. allFiles is the
// full candidate file list from FileScanner; excludePatterns is the
// exclusion gate (hard excludes already merged in by the caller).
func (b *BackgroundIndex) EnsureUpToDate(ctx context.Context, allFiles []string, excludePatterns []string, progressCb ProgressCallback) EnsureResult {
	var result EnsureResult

	// 1. Exclusion gate.
	candidates := make([]string, 0, len(allFiles))
	allFilesSet := make(map[string]bool, len(allFiles))
	for _, uri := range allFiles {
		allFilesSet[uri] = true
		if matchesAny(excludePatterns, uri) {
			continue
		}
		candidates = append(candidates, uri)
	}

	// 2. Folder-digest skip (bottom-up, O(1) per unchanged folder).
	toInspect := b.filterByFolderDigest(candidates)

	// 3. mtime compare.
	toDispatch := make([]string, 0, len(toInspect))
	for _, uri := range toInspect {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			return result
		default:
		}

		info, err := os.Stat(uri)
		if err != nil {
			continue
		}
		mtime := info.ModTime().UnixNano()

		b.mapsMu.RLock()
		meta, known := b.shardMeta[uri]
		b.mapsMu.RUnlock()

		if known && meta.Mtime == mtime {
			continue // unchanged mtime dispatches no work
		}
		toDispatch = append(toDispatch, uri)
	}

	// 4. Remove stale shards no longer present in allFiles.
	b.mapsMu.RLock()
	var stale []string
	for uri := range b.shardMeta {
		if !allFilesSet[uri] {
			stale = append(stale, uri)
		}
	}
	b.mapsMu.RUnlock()
	for _, uri := range stale {
		b.RemoveFile(uri)
		result.Removed++
	}

	// 5. Purge previously-indexed files that now match the exclusion gate.
	b.mapsMu.RLock()
	var excluded []string
	for uri := range b.shardMeta {
		if matchesAny(excludePatterns, uri) {
			excluded = append(excluded, uri)
		}
	}
	b.mapsMu.RUnlock()
	for _, uri := range excluded {
		b.RemoveFile(uri)
		result.Removed++
	}

	result.Scanned = len(candidates)
	result.Skipped = len(candidates) - len(toDispatch)

	// 6. Dispatch through WorkerPool; individual failures never halt the
	// batch (Promise.allSettled-equivalent).
	if len(toDispatch) == 0 {
		return result
	}

	pool := b.newWorkerPool()
	pool.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		processed := 0
		for res := range pool.Results() {
			processed++
			if res.Err != nil {
				b.logger.Warn("indexing task failed", "uri", res.URI, "error", res.Err)
				continue
			}
			if file, ok := res.Value.(model.IndexedFile); ok {
				b.UpdateFile(res.URI, file)
				result.Dispatched++
			}
			if progressCb != nil {
				progressCb(processed, len(toDispatch))
			}
		}
	}()

	for _, uri := range toDispatch {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			pool.Stop()
			pool.FinishSubmitting()
			pool.Wait()
			<-done
			return result
		default:
			pool.Submit(workerpool.Task{URI: uri})
		}
	}

	pool.FinishSubmitting()
	pool.Wait()
	<-done

	// 7. Finalization pass for cross-file patterns, then flush metadata so
	// the next startup sees this run's skip tables.
	if b.finalize != nil {
		b.finalize()
	}
	if err := b.PersistMetadata(); err != nil {
		b.logger.Warn("failed to persist index metadata", "error", err)
	}

	return result
}

// indexOneFile is the WorkerPool handler: read the file, extract, return
// the IndexedFile value. It never touches BackgroundIndex's shared state
// directly.
func (b *BackgroundIndex) indexOneFile(ctx context.Context, task workerpool.Task) (any, error) {
	content := task.Buffer
	var mtime int64

	if content == nil {
		data, err := os.ReadFile(task.URI)
		if err != nil {
			return nil, err
		}
		content = data
	}

	if info, err := os.Stat(task.URI); err == nil {
		mtime = info.ModTime().UnixNano()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return b.extractor.Extract(task.URI, content, mtime, time.Now().UnixNano()), nil
}

// filterByFolderDigest recomputes folder digests and drops every candidate
// whose containing folder is unchanged since the previous run. All
// comparisons run against the previous run's table before any new digest
// is committed, so nested candidate folders never shadow each other.
func (b *BackgroundIndex) filterByFolderDigest(candidates []string) []string {
	if b.hasher == nil {
		return candidates
	}

	folders := make(map[string]bool)
	for _, uri := range candidates {
		folders[filepath.Dir(uri)] = true
	}

	unchanged := make(map[string]bool)
	fresh := make(map[string]string, len(folders))
	for folder := range folders {
		newDigest, err := b.hasher.Digest(folder)
		if err != nil {
			continue
		}
		if b.hasher.Unchanged(folder, newDigest) {
			unchanged[folder] = true
		}
		fresh[folder] = newDigest
	}
	for folder, d := range fresh {
		b.hasher.Store(folder, d)
	}

	out := make([]string, 0, len(candidates))
	for _, uri := range candidates {
		if unchanged[filepath.Dir(uri)] {
			continue
		}
		out = append(out, uri)
	}
	return out
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
