package bgindex

import "github.com/gnana997/symgraph/pkg/model"

// maxReferenceCandidates caps the number of candidate files walked per
// reference query so tail latency stays bounded on very common names.
const maxReferenceCandidates = 2000

// FindDefinitions returns every Symbol named name across all indexed files,
// loading shard bodies lazily through the LRU cache.
func (b *BackgroundIndex) FindDefinitions(name string) []model.Symbol {
	b.mapsMu.RLock()
	uris := snapshotBucket(b.symbolNameIndex[name])
	b.mapsMu.RUnlock()

	var out []model.Symbol
	for _, uri := range uris {
		file, ok := b.loadBody(uri)
		if !ok {
			continue
		}
		for _, sym := range file.Symbols {
			if sym.Name == name {
				out = append(out, sym)
			}
		}
	}
	return out
}

// FindReferencesOptions controls reference filtering and whether the
// import-aware alias path is consulted.
type FindReferencesOptions struct {
	model.ReferenceFilter
	IncludeImportAliases bool
}

// FindReferencesByName returns every Reference named name that passes the
// filter options. When IncludeImportAliases is set, any file importing
// name under a renamed local L contributes its references to L as well —
// the import-aware reference resolution path.
func (b *BackgroundIndex) FindReferencesByName(name string, opts FindReferencesOptions) []model.Reference {
	names := map[string]bool{name: true}

	if opts.IncludeImportAliases {
		b.mapsMu.RLock()
		for _, imports := range b.importsByURI {
			for _, imp := range imports {
				if imp.ExportedName == name && imp.LocalName != "" && imp.LocalName != name {
					names[imp.LocalName] = true
				}
			}
		}
		b.mapsMu.RUnlock()
	}

	seen := make(map[string]bool)
	var uris []string
	b.mapsMu.RLock()
	for n := range names {
		for uri := range b.referenceMap[n] {
			if !seen[uri] {
				seen[uri] = true
				uris = append(uris, uri)
			}
		}
	}
	b.mapsMu.RUnlock()

	if len(uris) > maxReferenceCandidates {
		uris = uris[:maxReferenceCandidates]
	}

	var out []model.Reference
	for _, uri := range uris {
		if opts.ExcludeURI != "" && uri == opts.ExcludeURI {
			continue
		}
		file, ok := b.loadBody(uri)
		if !ok {
			continue
		}
		for _, ref := range file.References {
			if !names[ref.SymbolName] {
				continue
			}
			if !opts.ReferenceFilter.Matches(ref) {
				continue
			}
			out = append(out, ref)
		}
	}
	return out
}

// GetFileSymbols returns the Symbols recorded for uri, loading the shard
// body lazily if it is not already cached.
func (b *BackgroundIndex) GetFileSymbols(uri string) ([]model.Symbol, bool) {
	file, ok := b.loadBody(uri)
	if !ok {
		return nil, false
	}
	return file.Symbols, true
}

// GetFile returns the full IndexedFile for uri if it is known to the
// index, loading its body lazily if needed.
func (b *BackgroundIndex) GetFile(uri string) (model.IndexedFile, bool) {
	return b.loadBody(uri)
}

// ImportsFor returns the imports recorded for uri. These stay resident, so
// no shard load is needed.
func (b *BackgroundIndex) ImportsFor(uri string) []model.Import {
	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	return b.importsByURI[uri]
}

// ReExportSource reports whether uri re-exports exportedName (directly or
// via a wildcard) and, if so, from which module specifier. Used by
// ImportResolver's barrel-chain following.
func (b *BackgroundIndex) ReExportSource(uri, exportedName string) (string, bool) {
	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()

	for _, re := range b.reExportsByURI[uri] {
		if re.IsWildcard {
			return re.ModuleSpecifier, true
		}
		for _, n := range re.ExportedNames {
			if n == exportedName {
				return re.ModuleSpecifier, true
			}
		}
	}
	return "", false
}

// SymbolNames returns every distinct defined name in the index, the
// candidate universe for fuzzy workspace symbol search.
func (b *BackgroundIndex) SymbolNames() []string {
	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	out := make([]string, 0, len(b.symbolNameIndex))
	for name := range b.symbolNameIndex {
		out = append(out, name)
	}
	return out
}

// URIsDefining returns the set of files defining name, used by the query
// layer for ranking context (e.g. the node_modules penalty).
func (b *BackgroundIndex) URIsDefining(name string) []string {
	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	return snapshotBucket(b.symbolNameIndex[name])
}

// GetStats returns a snapshot of the aggregate counters.
func (b *BackgroundIndex) GetStats() Stats {
	b.mapsMu.RLock()
	defer b.mapsMu.RUnlock()
	stats := b.stats
	stats.FileCount = len(b.shardMeta)
	symbolCount := 0
	for _, meta := range b.shardMeta {
		symbolCount += meta.SymbolCount
	}
	stats.SymbolCount = symbolCount
	referenceCount := 0
	for _, bucket := range b.referenceMap {
		referenceCount += len(bucket)
	}
	stats.ReferenceCount = referenceCount
	return stats
}

// loadBody returns the IndexedFile for uri, consulting the LRU cache
// first and falling back to a disk read through ShardStore on a miss.
func (b *BackgroundIndex) loadBody(uri string) (model.IndexedFile, bool) {
	if cached, ok := b.cache.Get(uri); ok {
		return cached, true
	}

	b.mapsMu.RLock()
	_, known := b.shardMeta[uri]
	b.mapsMu.RUnlock()
	if !known {
		return model.IndexedFile{}, false
	}

	file, ok, err := b.store.Load(uri)
	if err != nil || !ok {
		return model.IndexedFile{}, false
	}
	b.cache.Add(uri, file)
	return file, true
}

func snapshotBucket(bucket map[string]bool) []string {
	out := make([]string, 0, len(bucket))
	for uri := range bucket {
		out = append(out, uri)
	}
	return out
}
