package bgindex

import (
	"time"

	"github.com/gnana997/symgraph/pkg/model"
)

// UpdateFile replaces uri's index entries: acquire the per-URI lock,
// snapshot and remove the prior entries for uri, insert the new ones,
// then persist the shard. The snapshot must happen before the shard write
// — removeEntriesLocked falls back to the on-disk shard when uri has been
// evicted from the body cache, and writing first would make it purge the
// new names instead of the old ones, leaving ghosts. Remove-then-insert
// under a single write-lock section of the inverted maps means queries
// never observe a half-updated URI. A failed write leaves the maps
// correct; the shard is simply stale until the next run re-indexes it.
func (b *BackgroundIndex) UpdateFile(uri string, file model.IndexedFile) error {
	lock := b.acquireLock(uri)
	defer b.releaseLock(uri)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	b.mapsMu.Lock()
	b.removeEntriesLocked(uri)
	b.insertLocked(uri, file)
	b.stats.FilesIndexed++
	if file.Metadata.Skipped {
		b.stats.FilesSkipped++
	}
	if file.Metadata.ParseFailed {
		b.stats.FilesFailed++
	}
	b.stats.LastScanMs = time.Now().UnixMilli()
	b.mapsMu.Unlock()

	if err := b.store.Save(uri, file); err != nil {
		// Retry once; on persistent failure the in-memory state stays
		// authoritative and the stale shard is re-indexed on next startup.
		if err = b.store.Save(uri, file); err != nil {
			b.logger.Warn("shard write failed, index kept in memory only", "uri", uri, "error", err)
			return err
		}
	}

	return nil
}

// RemoveFile purges every inverted-map entry that referenced uri, then
// deletes its shard. Purge runs first for the same reason UpdateFile
// snapshots first: on a body-cache miss the purge reads the on-disk shard
// to learn which buckets to prune, so the shard must still exist.
func (b *BackgroundIndex) RemoveFile(uri string) error {
	lock := b.acquireLock(uri)
	defer b.releaseLock(uri)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	b.mapsMu.Lock()
	b.removeEntriesLocked(uri)
	b.mapsMu.Unlock()

	b.cache.Remove(uri)

	return b.store.Delete(uri)
}

// removeEntriesLocked drops every trace of uri from the inverted maps. The
// caller must hold mapsMu for writing.
func (b *BackgroundIndex) removeEntriesLocked(uri string) {
	meta, known := b.shardMeta[uri]
	if !known {
		return
	}
	delete(b.shardMeta, uri)
	delete(b.importsByURI, uri)
	delete(b.reExportsByURI, uri)

	if cached, ok := b.cache.Get(uri); ok {
		for _, sym := range cached.Symbols {
			b.removeFromBucket(b.symbolNameIndex, sym.Name, uri)
			delete(b.symbolIdIndex, sym.ID)
		}
		for _, ref := range cached.References {
			b.removeFromBucket(b.referenceMap, ref.SymbolName, uri)
		}
		return
	}

	// Shard body isn't cached; fall back to loading it from disk so the
	// name-keyed buckets can be pruned precisely rather than left stale.
	if prior, ok, err := b.store.Load(uri); err == nil && ok {
		for _, sym := range prior.Symbols {
			b.removeFromBucket(b.symbolNameIndex, sym.Name, uri)
			delete(b.symbolIdIndex, sym.ID)
		}
		for _, ref := range prior.References {
			b.removeFromBucket(b.referenceMap, ref.SymbolName, uri)
		}
		return
	}

	_ = meta // metadata alone cannot reconstruct per-symbol bucket keys
}

func (b *BackgroundIndex) removeFromBucket(m map[string]map[string]bool, key, uri string) {
	bucket, ok := m[key]
	if !ok {
		return
	}
	delete(bucket, uri)
	if len(bucket) == 0 {
		delete(m, key)
	}
}

// Clear drops every shard and resets all in-memory state.
func (b *BackgroundIndex) Clear() error {
	if err := b.store.Clear(); err != nil {
		return err
	}

	b.mapsMu.Lock()
	b.shardMeta = make(map[string]model.ShardMetadata)
	b.symbolNameIndex = make(map[string]map[string]bool)
	b.symbolIdIndex = make(map[string]string)
	b.referenceMap = make(map[string]map[string]bool)
	b.reExportsByURI = make(map[string][]model.ReExport)
	b.importsByURI = make(map[string][]model.Import)
	b.stats = Stats{}
	b.mapsMu.Unlock()

	b.cache.Purge()

	return nil
}
