// Package digest computes content hashes for individual files and
// Merkle-style recursive digests for directories, so the incremental
// pipeline can skip unchanged subtrees in O(1) per folder.
package digest

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns a stable hex digest of a file's bytes. xxhash is
// non-cryptographic but fast enough to run on every candidate file during
// a full scan, which is the dominant cost in large workspaces.
func ContentHash(content []byte) string {
	sum := xxhash.Sum64(content)
	return fmt.Sprintf("%016x", sum)
}

// PathFanoutHash returns the hex digest ShardStore uses to compute the
// two-level directory fan-out for a URI.
func PathFanoutHash(uri string) string {
	sum := xxhash.Sum64String(uri)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(b)
}

// entrySignature is what FolderHasher mixes into a directory's digest for
// one child: either a file's name with its mtime and size, or a
// subdirectory's own digest.
type entrySignature struct {
	name   string
	signal string
}

// ExcludeFunc reports whether a path should be left out of digesting
// entirely, mirroring the exclusion gate applied earlier in the pipeline.
type ExcludeFunc func(path string) bool

// FolderHasher computes and caches Merkle-style digests per directory.
// Stored digests make the Unchanged check a single table lookup;
// computing a digest with Digest still walks the folder tree on disk.
type FolderHasher struct {
	exclude ExcludeFunc
	stored  map[string]string
}

// NewFolderHasher builds a hasher using the given exclusion predicate and
// a previously persisted digest table (nil or empty for a cold start).
func NewFolderHasher(exclude ExcludeFunc, stored map[string]string) *FolderHasher {
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	if stored == nil {
		stored = make(map[string]string)
	}
	return &FolderHasher{exclude: exclude, stored: stored}
}

// Unchanged reports whether folderPath's last computed digest equals its
// previously stored one. Callers use this to skip descending into the
// folder entirely during ensureUpToDate.
func (h *FolderHasher) Unchanged(folderPath, newDigest string) bool {
	old, ok := h.stored[folderPath]
	return ok && old == newDigest
}

// Digest recursively computes folderPath's digest, bottom-up, skipping
// excluded entries. It does not read file contents: file signals are
// (name, mtime, size) triples, which is sufficient to detect additions, removals,
// and modifications without hashing every byte on every scan. Digest does
// not touch the stored table — callers compare against the previous run
// via Unchanged first, then commit with Store.
func (h *FolderHasher) Digest(folderPath string) (string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	sigs := make([]entrySignature, 0, len(entries))
	for _, entry := range entries {
		childPath := filepath.Join(folderPath, entry.Name())
		if h.exclude(childPath) {
			continue
		}

		if entry.IsDir() {
			childDigest, err := h.Digest(childPath)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return "", err
			}
			sigs = append(sigs, entrySignature{name: entry.Name(), signal: childDigest})
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		sigs = append(sigs, entrySignature{name: entry.Name(), signal: fileSignal(info)})
	}

	return combine(folderPath, sigs), nil
}

// Store commits folderPath's digest to the table the next Unchanged call
// (and the persisted metadata) will compare against.
func (h *FolderHasher) Store(folderPath, digest string) {
	h.stored[folderPath] = digest
}

func fileSignal(info fs.FileInfo) string {
	return fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size())
}

func combine(folderPath string, sigs []entrySignature) string {
	var sb strings.Builder
	sb.WriteString(folderPath)
	for _, s := range sigs {
		sb.WriteByte('\n')
		sb.WriteString(s.name)
		sb.WriteByte('=')
		sb.WriteString(s.signal)
	}
	return ContentHash([]byte(sb.String()))
}

// Snapshot returns the full stored digest table, for persistence into
// ShardStore's metadata file.
func (h *FolderHasher) Snapshot() map[string]string {
	out := make(map[string]string, len(h.stored))
	for k, v := range h.stored {
		out[k] = v
	}
	return out
}

// Restore replaces the stored digest table with a previously persisted
// one, so the first scan after startup can skip unchanged folders.
func (h *FolderHasher) Restore(stored map[string]string) {
	if stored == nil {
		stored = make(map[string]string)
	}
	h.stored = stored
}
