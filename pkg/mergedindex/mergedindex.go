// Package mergedindex implements MergedIndex: the query facade that
// fans a read out to DynamicIndex and BackgroundIndex and combines the
// results with dynamic-wins-per-URI priority and (name, uri, line,
// character) deduplication.
package mergedindex

import "github.com/gnana997/symgraph/pkg/model"

// DynamicReader is the subset of DynamicIndex's read surface MergedIndex
// needs. Expressed as an interface (rather than importing pkg/dynindex
// directly) so tests can substitute a fake overlay.
type DynamicReader interface {
	FindDefinitions(name string) []model.Symbol
	FindReferencesByName(name string) []model.Reference
	GetFileSymbols(uri string) ([]model.Symbol, bool)
	OpenURIs() []string
}

// BackgroundReader is the subset of BackgroundIndex's read surface
// MergedIndex needs.
type BackgroundReader struct {
	FindDefinitions      func(name string) []model.Symbol
	FindReferencesByName func(name string) []model.Reference
	GetFileSymbols       func(uri string) ([]model.Symbol, bool)
}

// MergedIndex combines a DynamicIndex overlay with a BackgroundIndex.
type MergedIndex struct {
	dynamic    DynamicReader
	background BackgroundReader
}

// New builds a MergedIndex over the given dynamic overlay and background
// read surface.
func New(dynamic DynamicReader, background BackgroundReader) *MergedIndex {
	return &MergedIndex{dynamic: dynamic, background: background}
}

// FindDefinitions returns every Symbol named name, with dynamic-overlay
// symbols for an open URI replacing any background symbol for that same
// URI: dynamic wins per URI.
func (m *MergedIndex) FindDefinitions(name string) []model.Symbol {
	open := m.openSet()

	dynSymbols := m.dynamic.FindDefinitions(name)
	var bgSymbols []model.Symbol
	if m.background.FindDefinitions != nil {
		bgSymbols = m.background.FindDefinitions(name)
	}

	seen := make(map[symbolKey]bool, len(dynSymbols)+len(bgSymbols))
	out := make([]model.Symbol, 0, len(dynSymbols)+len(bgSymbols))

	for _, sym := range dynSymbols {
		key := symbolKeyOf(sym)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sym)
	}
	for _, sym := range bgSymbols {
		if open[sym.Location.URI] {
			continue // dynamic overlay is authoritative for this URI
		}
		key := symbolKeyOf(sym)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sym)
	}

	return out
}

// FindReferencesByName returns every Reference named name, deduplicated by
// (uri, line, character) with dynamic-overlay references for an open URI
// replacing background references for that URI.
func (m *MergedIndex) FindReferencesByName(name string) []model.Reference {
	open := m.openSet()

	dynRefs := m.dynamic.FindReferencesByName(name)
	var bgRefs []model.Reference
	if m.background.FindReferencesByName != nil {
		bgRefs = m.background.FindReferencesByName(name)
	}

	seen := make(map[locKey]bool, len(dynRefs)+len(bgRefs))
	out := make([]model.Reference, 0, len(dynRefs)+len(bgRefs))

	for _, ref := range dynRefs {
		key := locKeyOf(ref.Location)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	for _, ref := range bgRefs {
		if open[ref.Location.URI] {
			continue
		}
		key := locKeyOf(ref.Location)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}

	return out
}

// GetFileSymbols returns uri's Symbols, preferring the dynamic overlay if
// uri is open.
func (m *MergedIndex) GetFileSymbols(uri string) ([]model.Symbol, bool) {
	if syms, ok := m.dynamic.GetFileSymbols(uri); ok {
		return syms, true
	}
	if m.background.GetFileSymbols == nil {
		return nil, false
	}
	return m.background.GetFileSymbols(uri)
}

func (m *MergedIndex) openSet() map[string]bool {
	open := make(map[string]bool)
	for _, uri := range m.dynamic.OpenURIs() {
		open[uri] = true
	}
	return open
}

type symbolKey struct {
	name string
	uri  string
	line uint32
	ch   uint32
}

func symbolKeyOf(sym model.Symbol) symbolKey {
	return symbolKey{name: sym.Name, uri: sym.Location.URI, line: sym.Location.Line, ch: sym.Location.Character}
}

type locKey struct {
	uri  string
	line uint32
	ch   uint32
}

func locKeyOf(loc model.Location) locKey {
	return locKey{uri: loc.URI, line: loc.Line, ch: loc.Character}
}
