// Package query realizes the external query contract: the boundary
// between the indexing core and whatever editor-protocol surface sits in
// front of it. Every operation degrades to an empty result on failure so
// the editor surface stays responsive.
package query

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gnana997/symgraph/pkg/bgindex"
	"github.com/gnana997/symgraph/pkg/engine"
	"github.com/gnana997/symgraph/pkg/fuzzy"
	"github.com/gnana997/symgraph/pkg/model"
)

const (
	// nearDuplicateLines is the window of the same-file near-duplicate
	// filter applied to reference results.
	nearDuplicateLines = 2

	openFileBoost   = 100
	siblingDirBoost = 10
)

// Service answers the query contract over a wired Engine.
type Service struct {
	eng    *engine.Engine
	logger *slog.Logger

	mu         sync.RWMutex
	currentURI string

	// nearDupFilter collapses locations in the same file within
	// nearDuplicateLines of each other. On by default.
	nearDupFilter bool
}

// NewService builds a Service over eng.
func NewService(eng *engine.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{eng: eng, logger: logger, nearDupFilter: true}
}

// SetContext records the file the editor currently has focused, used for
// search ranking boosts.
func (s *Service) SetContext(uri string) {
	s.mu.Lock()
	s.currentURI = uri
	s.mu.Unlock()
}

func (s *Service) contextURI() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentURI
}

// FindDefinitions returns every Symbol named name across the workspace.
func (s *Service) FindDefinitions(ctx context.Context, name string) []model.Symbol {
	if err := ctx.Err(); err != nil {
		return nil
	}
	return s.eng.Merged.FindDefinitions(name)
}

// FindReferences resolves the name at (line, character) in uri and returns
// every referencing Location, applying import-aware alias resolution,
// exact deduplication, and the near-duplicate filter. Import bindings are
// treated as declaration positions: they surface only when
// includeDeclaration is set.
func (s *Service) FindReferences(ctx context.Context, uri string, line, character uint32, includeDeclaration bool) []model.Location {
	if err := ctx.Err(); err != nil {
		return nil
	}

	tok, ok := s.eng.TokenAt(uri, line, character)
	if !ok {
		return nil
	}
	name := tok.Name

	open := make(map[string]bool)
	for _, u := range s.eng.Dynamic.OpenURIs() {
		open[u] = true
	}

	var locations []model.Location

	if includeDeclaration {
		for _, def := range s.eng.Merged.FindDefinitions(name) {
			locations = append(locations, def.Location)
		}
	}

	for _, ref := range s.eng.Dynamic.FindReferencesByName(name) {
		if ref.IsImport && !includeDeclaration {
			continue
		}
		locations = append(locations, ref.Location)
	}

	bgRefs := s.eng.Background.FindReferencesByName(name, bgindex.FindReferencesOptions{
		IncludeImportAliases: true,
	})
	for _, ref := range bgRefs {
		if open[ref.Location.URI] {
			continue // dynamic overlay is authoritative for open files
		}
		if ref.IsImport && !includeDeclaration {
			continue
		}
		locations = append(locations, ref.Location)
	}

	return s.dedupeLocations(locations)
}

// SearchSymbols fuzzy-ranks every defined name against query, applies the
// context boosts, and returns at most limit Symbols.
func (s *Service) SearchSymbols(ctx context.Context, query string, limit int) []model.Symbol {
	if err := ctx.Err(); err != nil || query == "" {
		return nil
	}
	if limit <= 0 {
		limit = 50
	}

	names := unionNames(s.eng.Dynamic.SymbolNames(), s.eng.Background.SymbolNames())
	matches := fuzzy.Rank(query, names, func(name string) string {
		if uris := s.eng.Background.URIsDefining(name); len(uris) > 0 {
			return uris[0]
		}
		return ""
	})

	current := s.contextURI()
	currentDir := filepath.Dir(current)

	type scored struct {
		sym   model.Symbol
		score int
	}
	var out []scored
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			break
		}
		for _, sym := range s.eng.Merged.FindDefinitions(m.Name) {
			score := m.Score
			if current != "" {
				if sym.Location.URI == current {
					score += openFileBoost
				} else if filepath.Dir(sym.Location.URI) == currentDir {
					score += siblingDirBoost
				}
			}
			out = append(out, scored{sym: sym, score: score})
		}
		// Candidate names arrive best-first by fuzzy score; collection stops
		// once the symbol list reaches four times the limit, so later names
		// are not considered, even one a context boost would have lifted
		// into the cut.
		if len(out) >= limit*4 {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	if len(out) > limit {
		out = out[:limit]
	}
	symbols := make([]model.Symbol, len(out))
	for i, sc := range out {
		symbols[i] = sc.sym
	}
	return symbols
}

// GetFileSymbols returns the Symbols recorded for uri.
func (s *Service) GetFileSymbols(ctx context.Context, uri string) []model.Symbol {
	if err := ctx.Err(); err != nil {
		return nil
	}
	syms, _ := s.eng.Merged.GetFileSymbols(uri)
	return syms
}

// FindDefinitionAt is go-to-definition: member-access properties resolve
// through the recursive property-chain resolver; plain identifiers go
// through the merged index with import-resolution filtering.
func (s *Service) FindDefinitionAt(ctx context.Context, uri string, line, character uint32) []model.Location {
	if err := ctx.Err(); err != nil {
		return nil
	}

	tok, ok := s.eng.TokenAt(uri, line, character)
	if !ok {
		return nil
	}

	if tok.IsMemberProperty {
		if loc, ok := s.eng.ResolveChain(uri, tok.BaseName, tok.Chain); ok {
			return []model.Location{loc}
		}
		return nil
	}

	defs := s.eng.Merged.FindDefinitions(tok.Name)
	if len(defs) == 0 {
		return nil
	}

	// Import-resolution filtering: when the file imports this name, keep
	// only definitions in the resolved target module.
	if target := s.importTarget(uri, tok.Name); target != "" {
		var filtered []model.Location
		for _, def := range defs {
			if def.Location.URI == target {
				filtered = append(filtered, def.Location)
			}
		}
		if len(filtered) > 0 {
			return filtered
		}
	}

	locations := make([]model.Location, len(defs))
	for i, def := range defs {
		locations[i] = def.Location
	}
	return locations
}

// importTarget resolves the file uri imports name from, following barrel
// re-exports, or "" when uri does not import name.
func (s *Service) importTarget(uri, name string) string {
	for _, imp := range s.eng.Background.ImportsFor(uri) {
		if imp.LocalName != name {
			continue
		}
		target := s.eng.Imports.Resolve(imp.ModuleSpecifier, uri)
		if target == "" {
			return ""
		}
		exported := imp.ExportedName
		if exported == "" {
			exported = name
		}
		if viaBarrel := s.eng.Imports.FollowReExports(target, exported); viaBarrel != "" {
			return viaBarrel
		}
		return target
	}
	return ""
}

// Rebuild drops the cache and re-indexes the workspace.
func (s *Service) Rebuild(ctx context.Context) (bgindex.EnsureResult, error) {
	return s.eng.Rebuild(ctx)
}

// ClearCache drops every shard and all resident index state.
func (s *Service) ClearCache() error {
	return s.eng.ClearCache()
}

// Stats returns engine-wide counters.
func (s *Service) Stats() engine.Stats {
	return s.eng.Stats()
}

// dedupeLocations removes exact (uri, line, character) duplicates and,
// when the near-duplicate filter is on, any location within
// nearDuplicateLines of an already kept location in the same file.
func (s *Service) dedupeLocations(locations []model.Location) []model.Location {
	sort.SliceStable(locations, func(i, j int) bool {
		a, b := locations[i], locations[j]
		if a.URI != b.URI {
			return a.URI < b.URI
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})

	type exactKey struct {
		uri  string
		line uint32
		ch   uint32
	}
	seen := make(map[exactKey]bool, len(locations))

	var out []model.Location
	lastLineByURI := make(map[string]uint32)

	for _, loc := range locations {
		key := exactKey{loc.URI, loc.Line, loc.Character}
		if seen[key] {
			continue
		}
		seen[key] = true

		if s.nearDupFilter {
			if last, ok := lastLineByURI[loc.URI]; ok && loc.Line-last <= nearDuplicateLines {
				continue
			}
		}
		lastLineByURI[loc.URI] = loc.Line
		out = append(out, loc)
	}
	return out
}

func unionNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
