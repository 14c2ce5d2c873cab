// Package bgindex implements BackgroundIndex: the persistent,
// workspace-wide index. It owns ShardMetadata and the three inverted maps
// as a single logical owner (single-writer coordinator, multi-reader),
// drives incremental re-indexing through a WorkerPool, and persists shards
// through ShardStore.
package bgindex

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gnana997/symgraph/pkg/digest"
	"github.com/gnana997/symgraph/pkg/extractor"
	"github.com/gnana997/symgraph/pkg/indexerrors"
	"github.com/gnana997/symgraph/pkg/model"
	"github.com/gnana997/symgraph/pkg/shardstore"
	"github.com/gnana997/symgraph/pkg/workerpool"
)

// Stats reports aggregate counters for observability and for the external
// stats() query operation.
type Stats struct {
	FileCount      int
	SymbolCount    int
	ReferenceCount int
	LastScanMs     int64
	FilesIndexed   int64
	FilesSkipped   int64
	FilesFailed    int64
}

// uriLock is a per-URI lock with a reference count, mirroring ShardStore's
// own lock map so updateFile/removeFile never contend across unrelated
// URIs.
type uriLock struct {
	mu   sync.Mutex
	refs int
}

// BackgroundIndex is the single coordinator for workspace-wide symbol data.
// Only it mutates ShardMetadata and the inverted maps; workers consume a
// URI and hand back an IndexedFile value, never touching shared state
// directly.
type BackgroundIndex struct {
	workspaceRoot string
	cacheDir      string

	store     *shardstore.ShardStore
	extractor *extractor.Extractor
	hasher    *digest.FolderHasher
	logger    *slog.Logger

	cache *lru.Cache[string, model.IndexedFile]

	mapsMu          sync.RWMutex
	shardMeta       map[string]model.ShardMetadata
	symbolNameIndex map[string]map[string]bool
	symbolIdIndex   map[string]string
	referenceMap    map[string]map[string]bool
	reExportsByURI  map[string][]model.ReExport
	importsByURI    map[string][]model.Import

	locksMu sync.Mutex
	locks   map[string]*uriLock

	stats Stats

	poolSize    int
	taskTimeout time.Duration

	// finalize, when set, runs after each dispatch wave for cross-file
	// patterns deferred by the framework hook. Internal for now.
	finalize func()
}

// Options configures BackgroundIndex construction.
type Options struct {
	CacheBodies int // size of the lazy shard-body LRU cache
	PoolSize    int
	TaskTimeout time.Duration
}

// New constructs a BackgroundIndex. Init must be called before use.
func New(store *shardstore.ShardStore, ext *extractor.Extractor, hasher *digest.FolderHasher, logger *slog.Logger, opts Options) *BackgroundIndex {
	if logger == nil {
		logger = slog.Default()
	}
	cacheSize := opts.CacheBodies
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, _ := lru.New[string, model.IndexedFile](cacheSize)

	return &BackgroundIndex{
		store:           store,
		extractor:       ext,
		hasher:          hasher,
		logger:          logger,
		cache:           cache,
		shardMeta:       make(map[string]model.ShardMetadata),
		symbolNameIndex: make(map[string]map[string]bool),
		symbolIdIndex:   make(map[string]string),
		referenceMap:    make(map[string]map[string]bool),
		reExportsByURI:  make(map[string][]model.ReExport),
		importsByURI:    make(map[string][]model.Import),
		locks:           make(map[string]*uriLock),
		poolSize:        opts.PoolSize,
		taskTimeout:     opts.TaskTimeout,
	}
}

// Init loads the persisted metadata table, reconstructs the inverted maps
// by loading the shard body for each known URI (bounded-parallel), and
// reconciles the disk tree against the loaded table. On a metadata
// version mismatch the whole cache is dropped and a full rebuild is forced
// on the next EnsureUpToDate. If the metadata file is absent (first run or
// crash between shard writes and the metadata flush), the shard tree
// itself is scanned instead.
func (b *BackgroundIndex) Init(workspaceRoot, cacheDir string) error {
	b.workspaceRoot = workspaceRoot
	b.cacheDir = cacheDir

	meta, ok, err := b.store.LoadMetadata()
	if err != nil {
		var vme *indexerrors.VersionMismatchError
		if errors.As(err, &vme) {
			b.logger.Info("shard format version changed, forcing full rebuild",
				"got", vme.Got, "expected", vme.Expected)
			return b.Clear()
		}
		return err
	}

	if !ok {
		files, err := b.store.LoadAll()
		if err != nil {
			return err
		}
		b.mapsMu.Lock()
		for uri, file := range files {
			b.insertLocked(uri, file)
		}
		b.mapsMu.Unlock()
		return nil
	}

	if b.hasher != nil {
		b.hasher.Restore(meta.FolderDigests)
	}

	var (
		loadMu sync.Mutex
		loaded = make(map[string]model.IndexedFile, len(meta.Shards))
	)
	g := new(errgroup.Group)
	g.SetLimit(maxInitLoaders(b.poolSize))
	for _, sm := range meta.Shards {
		uri := sm.URI
		g.Go(func() error {
			file, ok, err := b.store.Load(uri)
			if err != nil || !ok {
				return nil // missing body: drop the entry, re-index later
			}
			loadMu.Lock()
			loaded[uri] = file
			loadMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	b.mapsMu.Lock()
	known := make([]string, 0, len(loaded))
	for uri, file := range loaded {
		b.insertLocked(uri, file)
		known = append(known, uri)
	}
	b.mapsMu.Unlock()

	if removed, err := b.store.Reconcile(known); err == nil && removed > 0 {
		b.logger.Info("removed stale shards on load", "count", removed)
	}

	return nil
}

func maxInitLoaders(poolSize int) int {
	if poolSize > 0 {
		return poolSize
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

// PersistMetadata flushes the resident ShardMetadata table and the folder
// digest table to the metadata file. Called at the end of an EnsureUpToDate
// run that dispatched work, and on clean shutdown; a run with nothing to
// dispatch, or one that is cancelled, does not flush.
func (b *BackgroundIndex) PersistMetadata() error {
	b.mapsMu.RLock()
	shards := make([]model.ShardMetadata, 0, len(b.shardMeta))
	for _, sm := range b.shardMeta {
		shards = append(shards, sm)
	}
	b.mapsMu.RUnlock()

	meta := shardstore.Metadata{Shards: shards}
	if b.hasher != nil {
		meta.FolderDigests = b.hasher.Snapshot()
	}
	return b.store.SaveMetadata(meta)
}

// ReindexFile re-extracts uri from disk and merges the result, the path
// FileWatcher drives for saves and debounced edits.
func (b *BackgroundIndex) ReindexFile(uri string) error {
	content, err := os.ReadFile(uri)
	if err != nil {
		return &indexerrors.IoError{URI: uri, Op: "read", Err: err}
	}
	var mtime int64
	if info, err := os.Stat(uri); err == nil {
		mtime = info.ModTime().UnixNano()
	}
	file := b.extractor.Extract(uri, content, mtime, time.Now().UnixNano())
	return b.UpdateFile(uri, file)
}

func (b *BackgroundIndex) insertLocked(uri string, file model.IndexedFile) {
	b.shardMeta[uri] = model.ShardMetadata{
		URI:           uri,
		ContentHash:   file.ContentHash,
		Mtime:         file.Mtime,
		SymbolCount:   len(file.Symbols),
		LastIndexedAt: file.LastIndexedAt,
		ShardVersion:  shardstore.ShardVersion,
	}
	b.importsByURI[uri] = file.Imports
	b.reExportsByURI[uri] = file.ReExports

	for _, sym := range file.Symbols {
		b.addToBucket(b.symbolNameIndex, sym.Name, uri)
		b.symbolIdIndex[sym.ID] = uri
	}
	for _, ref := range file.References {
		b.addToBucket(b.referenceMap, ref.SymbolName, uri)
	}
	b.cache.Add(uri, file)
}

func (b *BackgroundIndex) addToBucket(m map[string]map[string]bool, key, uri string) {
	bucket, ok := m[key]
	if !ok {
		bucket = make(map[string]bool)
		m[key] = bucket
	}
	bucket[uri] = true
}

func (b *BackgroundIndex) acquireLock(uri string) *uriLock {
	b.locksMu.Lock()
	lock, ok := b.locks[uri]
	if !ok {
		lock = &uriLock{}
		b.locks[uri] = lock
	}
	lock.refs++
	b.locksMu.Unlock()
	return lock
}

func (b *BackgroundIndex) releaseLock(uri string) {
	b.locksMu.Lock()
	defer b.locksMu.Unlock()
	lock, ok := b.locks[uri]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(b.locks, uri)
	}
}

// newWorkerPool builds the WorkerPool used for one ensureUpToDate wave,
// sized per the derived pool size and the configured task timeout.
func (b *BackgroundIndex) newWorkerPool() *workerpool.Pool {
	return workerpool.New(b.poolSize, b.taskTimeout, b.indexOneFile, b.logger)
}
