package engine

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// ContentCache provides fast read access to source files via memory
// mapping, with a fallback to plain reads when mmap fails. Query-time
// resolution (token lookup, initializer reads) hits the same few files
// repeatedly, so keeping them mapped avoids re-reading on every request.
//
// Thread-safe: reads take the shared side of an RWMutex; loads and Close
// take the exclusive side.
type ContentCache struct {
	maxFiles int
	logger   *slog.Logger

	mu       sync.RWMutex
	mapped   map[string]mmap.MMap
	fallback map[string][]byte
	files    map[string]*os.File
}

// NewContentCache builds a cache holding at most maxFiles entries
// (0 means unlimited).
func NewContentCache(maxFiles int, logger *slog.Logger) *ContentCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentCache{
		maxFiles: maxFiles,
		logger:   logger,
		mapped:   make(map[string]mmap.MMap),
		fallback: make(map[string][]byte),
		files:    make(map[string]*os.File),
	}
}

// Get returns the file's bytes, mapping it on first access. The returned
// slice must be treated as read-only; it may alias a live mapping.
func (c *ContentCache) Get(path string) ([]byte, error) {
	c.mu.RLock()
	if m, ok := c.mapped[path]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	if b, ok := c.fallback[path]; ok {
		c.mu.RUnlock()
		return b, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.mapped[path]; ok {
		return m, nil
	}
	if b, ok := c.fallback[path]; ok {
		return b, nil
	}

	if c.maxFiles > 0 && len(c.mapped)+len(c.fallback) >= c.maxFiles {
		// Over budget: serve without caching rather than failing the read.
		return os.ReadFile(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	if info.Size() == 0 {
		f.Close()
		c.fallback[path] = nil
		return nil, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		c.logger.Debug("mmap failed, using plain read", "path", path, "error", err)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %q: %w", path, readErr)
		}
		c.fallback[path] = data
		return data, nil
	}

	c.mapped[path] = m
	c.files[path] = f
	return m, nil
}

// Invalidate drops path from the cache, unmapping it if mapped. Called on
// file change and delete events so stale bytes never serve a query.
func (c *ContentCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.mapped[path]; ok {
		if err := m.Unmap(); err != nil {
			c.logger.Warn("failed to unmap file", "path", path, "error", err)
		}
		delete(c.mapped, path)
	}
	if f, ok := c.files[path]; ok {
		f.Close()
		delete(c.files, path)
	}
	delete(c.fallback, path)
}

// Size returns the number of cached entries.
func (c *ContentCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mapped) + len(c.fallback)
}

// Close unmaps every mapping and releases all descriptors.
func (c *ContentCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for path, m := range c.mapped {
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmap %q: %w", path, err)
		}
	}
	for _, f := range c.files {
		f.Close()
	}
	c.mapped = make(map[string]mmap.MMap)
	c.fallback = make(map[string][]byte)
	c.files = make(map[string]*os.File)
	return firstErr
}
