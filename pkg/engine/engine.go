// Package engine wires the index tiers, the extractor, the resolvers, and
// the file watcher into one object a host process constructs. It is the
// single coordinator: all BackgroundIndex mutation flows through it, and
// workers only ever hand back IndexedFile values.
package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/symgraph/pkg/bgindex"
	"github.com/gnana997/symgraph/pkg/digest"
	"github.com/gnana997/symgraph/pkg/dynindex"
	"github.com/gnana997/symgraph/pkg/extractor"
	"github.com/gnana997/symgraph/pkg/indexconfig"
	"github.com/gnana997/symgraph/pkg/mergedindex"
	"github.com/gnana997/symgraph/pkg/model"
	"github.com/gnana997/symgraph/pkg/parser"
	"github.com/gnana997/symgraph/pkg/resolve"
	"github.com/gnana997/symgraph/pkg/shardstore"
	"github.com/gnana997/symgraph/pkg/watch"
)

// Engine owns every component of the indexing core.
type Engine struct {
	WorkspaceRoot string
	Config        indexconfig.Config

	Background *bgindex.BackgroundIndex
	Dynamic    *dynindex.DynamicIndex
	Merged     *mergedindex.MergedIndex
	Imports    *resolve.ImportResolver
	Recursive  *resolve.RecursiveResolver
	Watcher    *watch.FileWatcher

	parsers  *parser.ParserManager
	extr     *extractor.Extractor
	store    *shardstore.ShardStore
	hasher   *digest.FolderHasher
	contents *ContentCache
	logger   *slog.Logger

	typeFallback resolve.TypeFallback
}

// Options tunes construction beyond what the config file carries.
type Options struct {
	Hook    extractor.PatternHook // nil for the default no-op hook
	Aliases resolve.AliasTable    // path-alias table from project config
}

// New builds a fully wired Engine rooted at workspaceRoot. Call Init to
// load persisted state before serving queries.
func New(workspaceRoot string, cfg indexconfig.Config, logger *slog.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cacheDir := filepath.Join(workspaceRoot, cfg.CacheDirectory)
	excludes := cfg.AllExcludes()

	jobs := poolSize(cfg.MaxConcurrentJobs)
	parsers := parser.NewParserManagerWith(parser.Config{
		// One parser per worker per grammar, so a full dispatch wave never
		// blocks on parser acquisition.
		PoolSizePerLanguage: jobs,
	}, logger)
	extr := extractor.New(parsers, logger, cfg.MaxIndexedFileSize, opts.Hook)
	store := shardstore.New(cacheDir, logger)
	hasher := digest.NewFolderHasher(func(path string) bool {
		return excludedPath(excludes, path)
	}, nil)

	e := &Engine{
		WorkspaceRoot: workspaceRoot,
		Config:        cfg,
		parsers:       parsers,
		extr:          extr,
		store:         store,
		hasher:        hasher,
		contents:      NewContentCache(4096, logger),
		logger:        logger,
	}

	e.Background = bgindex.New(store, extr, hasher, logger, bgindex.Options{
		PoolSize:    jobs,
		TaskTimeout: 30 * time.Second,
	})
	e.Dynamic = dynindex.New()
	e.Merged = mergedindex.New(e.Dynamic, mergedindex.BackgroundReader{
		FindDefinitions: e.Background.FindDefinitions,
		FindReferencesByName: func(name string) []model.Reference {
			return e.Background.FindReferencesByName(name, bgindex.FindReferencesOptions{})
		},
		GetFileSymbols: e.Background.GetFileSymbols,
	})

	e.Imports = resolve.New(fileExists, opts.Aliases, e.Background.ReExportSource)
	e.Recursive = resolve.NewRecursiveResolver(e.findSymbolForResolver, e.readInitializer, e.hybridFallback())

	watcher, err := watch.New(e, watch.Options{
		DebounceMs:      cfg.DebounceMs,
		ExcludePatterns: excludes,
	}, logger)
	if err != nil {
		return nil, err
	}
	e.Watcher = watcher

	return e, nil
}

// Init loads the persisted index state.
func (e *Engine) Init() error {
	return e.Background.Init(e.WorkspaceRoot, filepath.Join(e.WorkspaceRoot, e.Config.CacheDirectory))
}

// EnsureUpToDate scans the workspace and runs the incremental pipeline.
func (e *Engine) EnsureUpToDate(ctx context.Context, progressCb bgindex.ProgressCallback) (bgindex.EnsureResult, error) {
	files, err := bgindex.Scan(e.WorkspaceRoot, e.Config.AllExcludes(), e.Config.MaxIndexedFileSize)
	if err != nil {
		return bgindex.EnsureResult{}, err
	}
	result := e.Background.EnsureUpToDate(ctx, files, e.Config.AllExcludes(), progressCb)
	return result, nil
}

// StartWatching begins driving re-indexes from filesystem events.
func (e *Engine) StartWatching() error {
	return e.Watcher.Start(e.WorkspaceRoot)
}

// ReindexFile satisfies watch.Indexer: it drops any cached bytes for uri
// and re-extracts it into the background index.
func (e *Engine) ReindexFile(uri string) error {
	e.contents.Invalidate(uri)
	return e.Background.ReindexFile(uri)
}

// RemoveFile satisfies watch.Indexer: it purges uri from every tier.
func (e *Engine) RemoveFile(uri string) error {
	e.contents.Invalidate(uri)
	e.Dynamic.Close(uri)
	return e.Background.RemoveFile(uri)
}

// OpenFile registers uri in the dynamic overlay with the given unsaved
// buffer. Synchronous; intended to be driven by one editor event loop.
func (e *Engine) OpenFile(uri string, content []byte) {
	e.Dynamic.Open(uri, e.extractBuffer(uri, content))
}

// UpdateOpenFile re-indexes an open uri after an edit.
func (e *Engine) UpdateOpenFile(uri string, content []byte) {
	e.Dynamic.Update(uri, e.extractBuffer(uri, content))
}

// CloseFile drops uri from the dynamic overlay.
func (e *Engine) CloseFile(uri string) {
	e.Dynamic.Close(uri)
}

func (e *Engine) extractBuffer(uri string, content []byte) model.IndexedFile {
	return e.extr.Extract(uri, content, time.Now().UnixNano(), time.Now().UnixNano())
}

// Rebuild drops every shard and re-indexes the whole workspace.
func (e *Engine) Rebuild(ctx context.Context) (bgindex.EnsureResult, error) {
	if err := e.Background.Clear(); err != nil {
		return bgindex.EnsureResult{}, err
	}
	e.hasher.Restore(nil)
	return e.EnsureUpToDate(ctx, nil)
}

// ClearCache drops all persisted and resident index state.
func (e *Engine) ClearCache() error {
	return e.Background.Clear()
}

// Stats aggregates counters across components.
type Stats struct {
	Index       bgindex.Stats
	Parser      parser.Stats
	CachedFiles int
	PendingURIs int
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Index:       e.Background.GetStats(),
		Parser:      e.parsers.GetStats(),
		CachedFiles: e.contents.Size(),
		PendingURIs: e.Watcher.PendingCount(),
	}
}

// SetTypeFallback installs the type-backed resolution path used in hybrid
// mode. The engine wraps it with the configured timeout; a slow fallback
// degrades to "no result" rather than stalling the query.
func (e *Engine) SetTypeFallback(fallback resolve.TypeFallback) {
	e.typeFallback = fallback
}

func (e *Engine) hybridFallback() resolve.TypeFallback {
	return func(sym model.Symbol, chain []string) (model.Location, bool) {
		if e.Config.Mode != indexconfig.ModeHybrid || e.typeFallback == nil {
			return model.Location{}, false
		}

		timeout := time.Duration(e.Config.HybridTimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 150 * time.Millisecond
		}

		type answer struct {
			loc model.Location
			ok  bool
		}
		ch := make(chan answer, 1)
		go func() {
			loc, ok := e.typeFallback(sym, chain)
			ch <- answer{loc, ok}
		}()

		select {
		case a := <-ch:
			return a.loc, a.ok
		case <-time.After(timeout):
			e.logger.Debug("type-backed fallback timed out", "symbol", sym.Name)
			return model.Location{}, false
		}
	}
}

// PersistMetadata flushes index bookkeeping; call on clean shutdown.
func (e *Engine) PersistMetadata() error {
	return e.Background.PersistMetadata()
}

// Close stops the watcher, flushes metadata, and releases parsers and
// mapped files.
func (e *Engine) Close() error {
	if err := e.Watcher.Stop(); err != nil {
		e.logger.Warn("watcher stop failed", "error", err)
	}
	if err := e.Background.PersistMetadata(); err != nil {
		e.logger.Warn("metadata flush failed", "error", err)
	}
	if err := e.contents.Close(); err != nil {
		e.logger.Warn("content cache close failed", "error", err)
	}
	return e.parsers.Close()
}

// ContentsOf exposes the content cache read path to the query layer.
func (e *Engine) ContentsOf(uri string) ([]byte, error) {
	return e.contents.Get(uri)
}

func poolSize(configured int) int {
	if configured > 0 {
		if configured > 16 {
			return 16
		}
		return configured
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	if n > 16 {
		n = 16
	}
	return n
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func excludedPath(patterns []string, path string) bool {
	base := filepath.Base(path)
	switch base {
	case "node_modules", ".git", "dist", "build", ".smart-index":
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.PathMatch(p, filepath.ToSlash(path)); ok {
			return true
		}
	}
	return false
}
