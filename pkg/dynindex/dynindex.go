// Package dynindex implements DynamicIndex: a synchronous,
// single-threaded, in-memory overlay over currently open files. It takes
// priority over the persistent BackgroundIndex at query time.
package dynindex

import "github.com/gnana997/symgraph/pkg/model"

// DynamicIndex holds full IndexedFile records for a small set of open
// URIs. It is not safe for concurrent use: it is intended to be driven by
// one editor event loop, so callers must serialize their own access.
type DynamicIndex struct {
	files map[string]model.IndexedFile

	symbolNameIndex map[string]map[string]bool // name -> set of open URIs
	referenceMap    map[string]map[string]bool // name -> set of open URIs
}

// New creates an empty DynamicIndex.
func New() *DynamicIndex {
	return &DynamicIndex{
		files:           make(map[string]model.IndexedFile),
		symbolNameIndex: make(map[string]map[string]bool),
		referenceMap:    make(map[string]map[string]bool),
	}
}

// Open registers uri as open and indexes its extracted content.
func (d *DynamicIndex) Open(uri string, result model.IndexedFile) {
	d.removeIndexEntries(uri)
	d.files[uri] = result
	d.addIndexEntries(uri, result)
}

// Update re-indexes an already-open uri with fresh content. Semantically
// identical to Open; kept distinct for call-site clarity matching the
// editor's open/update/close event names.
func (d *DynamicIndex) Update(uri string, result model.IndexedFile) {
	d.Open(uri, result)
}

// Close drops uri from the overlay; BackgroundIndex becomes authoritative
// for it again.
func (d *DynamicIndex) Close(uri string) {
	d.removeIndexEntries(uri)
	delete(d.files, uri)
}

// IsOpen reports whether uri currently has an overlay entry.
func (d *DynamicIndex) IsOpen(uri string) bool {
	_, ok := d.files[uri]
	return ok
}

func (d *DynamicIndex) addIndexEntries(uri string, result model.IndexedFile) {
	for _, sym := range result.Symbols {
		bucket, ok := d.symbolNameIndex[sym.Name]
		if !ok {
			bucket = make(map[string]bool)
			d.symbolNameIndex[sym.Name] = bucket
		}
		bucket[uri] = true
	}
	for _, ref := range result.References {
		bucket, ok := d.referenceMap[ref.SymbolName]
		if !ok {
			bucket = make(map[string]bool)
			d.referenceMap[ref.SymbolName] = bucket
		}
		bucket[uri] = true
	}
}

func (d *DynamicIndex) removeIndexEntries(uri string) {
	prior, ok := d.files[uri]
	if !ok {
		return
	}
	for _, sym := range prior.Symbols {
		if bucket, ok := d.symbolNameIndex[sym.Name]; ok {
			delete(bucket, uri)
			if len(bucket) == 0 {
				delete(d.symbolNameIndex, sym.Name)
			}
		}
	}
	for _, ref := range prior.References {
		if bucket, ok := d.referenceMap[ref.SymbolName]; ok {
			delete(bucket, uri)
			if len(bucket) == 0 {
				delete(d.referenceMap, ref.SymbolName)
			}
		}
	}
}

// FindDefinitions returns every Symbol named name across all open files.
func (d *DynamicIndex) FindDefinitions(name string) []model.Symbol {
	var out []model.Symbol
	for uri := range d.symbolNameIndex[name] {
		file := d.files[uri]
		for _, sym := range file.Symbols {
			if sym.Name == name {
				out = append(out, sym)
			}
		}
	}
	return out
}

// FindReferencesByName returns every Reference named name across all open
// files.
func (d *DynamicIndex) FindReferencesByName(name string) []model.Reference {
	var out []model.Reference
	for uri := range d.referenceMap[name] {
		file := d.files[uri]
		for _, ref := range file.References {
			if ref.SymbolName == name {
				out = append(out, ref)
			}
		}
	}
	return out
}

// GetFileSymbols returns the Symbols for uri if it is open.
func (d *DynamicIndex) GetFileSymbols(uri string) ([]model.Symbol, bool) {
	file, ok := d.files[uri]
	if !ok {
		return nil, false
	}
	return file.Symbols, true
}

// GetFile returns the full IndexedFile for uri if it is open.
func (d *DynamicIndex) GetFile(uri string) (model.IndexedFile, bool) {
	file, ok := d.files[uri]
	return file, ok
}

// SymbolNames returns every distinct defined name across open files, for
// the fuzzy search candidate union.
func (d *DynamicIndex) SymbolNames() []string {
	out := make([]string, 0, len(d.symbolNameIndex))
	for name := range d.symbolNameIndex {
		out = append(out, name)
	}
	return out
}

// OpenURIs returns the set of currently open URIs, used by MergedIndex to
// decide which background entries to suppress.
func (d *DynamicIndex) OpenURIs() []string {
	out := make([]string, 0, len(d.files))
	for uri := range d.files {
		out = append(out, uri)
	}
	return out
}
