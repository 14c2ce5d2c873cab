// Package shardstore persists one shard per indexed file under a
// path-hashed two-level directory fan-out, with atomic writes and
// per-URI locking so readers never observe a partially written shard.
package shardstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gnana997/symgraph/pkg/digest"
	"github.com/gnana997/symgraph/pkg/indexerrors"
	"github.com/gnana997/symgraph/pkg/model"
)

// ShardVersion is the current on-disk shard format version. Readers
// compare against this; any mismatch is treated as "missing".
const ShardVersion = 1

// envelope is the self-describing on-disk wrapper around an IndexedFile.
type envelope struct {
	Version int               `json:"version"`
	File    model.IndexedFile `json:"file"`
}

// refLock is a per-URI lock with a reference count so the lock map entry
// can be reclaimed once no goroutine references it.
type refLock struct {
	mu   sync.RWMutex
	refs int
}

// ShardStore reads and writes shards under <cacheDir>/index/<h[0:2]>/<h[2:4]>/<h>.shard.
type ShardStore struct {
	cacheDir string
	logger   *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*refLock
}

// New creates a ShardStore rooted at cacheDir. The caller is responsible
// for ensuring cacheDir exists (or letting Save create it lazily).
func New(cacheDir string, logger *slog.Logger) *ShardStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShardStore{
		cacheDir: cacheDir,
		logger:   logger,
		locks:    make(map[string]*refLock),
	}
}

// pathFor returns the on-disk shard path for a URI, using its hashed
// fan-out key, and the fan-out directory that must exist before writing.
func (s *ShardStore) pathFor(uri string) (dir, file string) {
	h := digest.PathFanoutHash(uri)
	dir = filepath.Join(s.cacheDir, "index", h[0:2], h[2:4])
	file = filepath.Join(dir, h+".shard")
	return dir, file
}

func (s *ShardStore) acquire(uri string) *refLock {
	s.locksMu.Lock()
	lock, ok := s.locks[uri]
	if !ok {
		lock = &refLock{}
		s.locks[uri] = lock
	}
	lock.refs++
	s.locksMu.Unlock()
	return lock
}

func (s *ShardStore) release(uri string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[uri]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(s.locks, uri)
	}
}

// Save writes the shard for uri atomically: write to a temp file in the
// same directory, then rename, so concurrent Load calls never observe a
// partial write.
func (s *ShardStore) Save(uri string, file model.IndexedFile) error {
	lock := s.acquire(uri)
	defer s.release(uri)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	dir, dest := s.pathFor(uri)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &indexerrors.IoError{URI: uri, Op: "write", Err: err}
	}

	env := envelope{Version: ShardVersion, File: file}
	data, err := json.Marshal(env)
	if err != nil {
		return &indexerrors.IoError{URI: uri, Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "shard-*.tmp")
	if err != nil {
		return &indexerrors.IoError{URI: uri, Op: "write", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &indexerrors.IoError{URI: uri, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &indexerrors.IoError{URI: uri, Op: "write", Err: err}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return &indexerrors.IoError{URI: uri, Op: "write", Err: err}
	}

	return nil
}

// Load reads the shard for uri. A missing file, a corrupt envelope, or a
// version mismatch are all reported as "absent" via ok == false, per the
// contract that readers must treat version drift as if the shard were
// never written.
func (s *ShardStore) Load(uri string) (model.IndexedFile, bool, error) {
	lock := s.acquire(uri)
	defer s.release(uri)
	lock.mu.RLock()
	defer lock.mu.RUnlock()

	_, path := s.pathFor(uri)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.IndexedFile{}, false, nil
		}
		return model.IndexedFile{}, false, &indexerrors.IoError{URI: uri, Op: "read", Err: err}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("corrupt shard, treating as missing", "uri", uri, "error", err)
		return model.IndexedFile{}, false, nil
	}

	if env.Version != ShardVersion {
		s.logger.Debug("shard version mismatch, treating as missing",
			"uri", uri, "got", env.Version, "expected", ShardVersion)
		return model.IndexedFile{}, false, nil
	}

	return env.File, true, nil
}

// Delete removes the shard for uri, if present. Deleting an absent shard
// is not an error.
func (s *ShardStore) Delete(uri string) error {
	lock := s.acquire(uri)
	defer s.release(uri)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	_, path := s.pathFor(uri)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &indexerrors.IoError{URI: uri, Op: "write", Err: err}
	}
	return nil
}

// Clear removes every shard under the index directory.
func (s *ShardStore) Clear() error {
	return os.RemoveAll(filepath.Join(s.cacheDir, "index"))
}

// LoadAll walks the shard tree and decodes every shard whose version
// matches ShardVersion, keyed by the URI embedded in its IndexedFile body.
// Corrupt or version-mismatched shards are silently skipped: the next
// ensureUpToDate pass re-indexes the corresponding URI once it notices the
// shard is effectively missing.
func (s *ShardStore) LoadAll() (map[string]model.IndexedFile, error) {
	paths, err := s.List()
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.IndexedFile, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Version != ShardVersion {
			continue
		}
		out[env.File.URI] = env.File
	}
	return out, nil
}

// Reconcile deletes every shard file on disk that does not belong to one
// of the known URIs; stale files left by a crash are removed on load.
// Returns the number of files removed.
func (s *ShardStore) Reconcile(known []string) (int, error) {
	expected := make(map[string]bool, len(known))
	for _, uri := range known {
		_, path := s.pathFor(uri)
		expected[path] = true
	}

	paths, err := s.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range paths {
		if expected[path] {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			s.logger.Warn("failed to remove stale shard", "path", path, "error", err)
		}
	}
	return removed, nil
}

// List walks the shard tree and returns every shard file path found,
// used on startup to reconcile disk state with ShardMetadata.
func (s *ShardStore) List() ([]string, error) {
	root := filepath.Join(s.cacheDir, "index")
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".shard" {
			out = append(out, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return out, nil
}
