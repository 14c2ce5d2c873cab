// Package resolve implements cross-file name resolution: ImportResolver
// turns module specifiers into concrete file URIs and follows re-export
// chains, while RecursiveResolver (in recursive.go) resolves property
// chains through object literals, function returns, and aliases.
package resolve

import (
	"path/filepath"
	"strings"
)

const defaultReExportDepthCap = 8

var candidateExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mjs", ".cjs"}

// FileExister is injected so ImportResolver can probe candidate extensions
// without owning filesystem access itself.
type FileExister func(path string) bool

// ReExportLookup answers "does uri re-export exportedName, and if so from
// which module specifier, following a wildcard or a named form?" It is
// satisfied by the background index's shard access.
type ReExportLookup func(uri, exportedName string) (moduleSpecifier string, ok bool)

// AliasTable maps a path-alias prefix (e.g. "@app/") to a base directory,
// derived from project config (tsconfig paths or equivalent).
type AliasTable map[string]string

// ImportResolver resolves module specifiers to concrete file URIs.
type ImportResolver struct {
	exists   FileExister
	aliases  AliasTable
	reExport ReExportLookup
	depthCap int
}

// New builds an ImportResolver. reExport may be nil if the caller only
// needs direct resolution, not FollowReExports.
func New(exists FileExister, aliases AliasTable, reExport ReExportLookup) *ImportResolver {
	return &ImportResolver{
		exists:   exists,
		aliases:  aliases,
		reExport: reExport,
		depthCap: defaultReExportDepthCap,
	}
}

// Resolve turns a module specifier into a file URI, or "" if it cannot be
// resolved (a normal, expected outcome for external packages without a
// readable manifest).
func (r *ImportResolver) Resolve(moduleSpecifier, fromURI string) string {
	switch {
	case strings.HasPrefix(moduleSpecifier, "./") || strings.HasPrefix(moduleSpecifier, "../"):
		return r.resolveRelative(moduleSpecifier, fromURI)
	case r.matchesAlias(moduleSpecifier):
		return r.resolveAlias(moduleSpecifier)
	default:
		return r.resolveBarePackage(moduleSpecifier, fromURI)
	}
}

func (r *ImportResolver) resolveRelative(moduleSpecifier, fromURI string) string {
	dir := filepath.Dir(fromURI)
	base := filepath.Clean(filepath.Join(dir, moduleSpecifier))
	return r.probe(base)
}

func (r *ImportResolver) matchesAlias(moduleSpecifier string) bool {
	for prefix := range r.aliases {
		if strings.HasPrefix(moduleSpecifier, prefix) {
			return true
		}
	}
	return false
}

func (r *ImportResolver) resolveAlias(moduleSpecifier string) string {
	var bestPrefix string
	for prefix := range r.aliases {
		if strings.HasPrefix(moduleSpecifier, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
		}
	}
	if bestPrefix == "" {
		return ""
	}
	rest := strings.TrimPrefix(moduleSpecifier, bestPrefix)
	base := filepath.Clean(filepath.Join(r.aliases[bestPrefix], rest))
	return r.probe(base)
}

// resolveBarePackage looks for the nearest node_modules ancestor and
// resolves against its manifest's declared entry point. Without true
// filesystem package-manifest access this degrades to probing the
// package's own directory under node_modules, which is sufficient for the
// common case of a package whose main entry is index.<ext>.
func (r *ImportResolver) resolveBarePackage(moduleSpecifier, fromURI string) string {
	dir := filepath.Dir(fromURI)
	for {
		candidate := filepath.Join(dir, "node_modules", moduleSpecifier)
		if resolved := r.probe(candidate); resolved != "" {
			return resolved
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// probe tries base as-is, base+extension for each candidate extension,
// the TS source behind an ESM-style .js specifier, and base/index.<ext>.
// With a nil FileExister, base is returned unprobed; otherwise "" is
// returned if nothing matches.
func (r *ImportResolver) probe(base string) string {
	if r.exists == nil {
		return base
	}
	if r.exists(base) {
		return base
	}
	for _, ext := range candidateExtensions {
		if r.exists(base + ext) {
			return base + ext
		}
	}
	if stripped, ok := stripJSExtension(base); ok {
		for _, ext := range candidateExtensions {
			if r.exists(stripped + ext) {
				return stripped + ext
			}
		}
	}
	for _, ext := range candidateExtensions {
		candidate := filepath.Join(base, "index"+ext)
		if r.exists(candidate) {
			return candidate
		}
	}
	return ""
}

// stripJSExtension drops a compiled-output extension (".js", ".mjs", ...)
// so an ESM specifier like "./util.js" can resolve to the "./util.ts"
// source it was emitted from.
func stripJSExtension(base string) (string, bool) {
	for _, ext := range []string{".js", ".jsx", ".mjs", ".cjs"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext), true
		}
	}
	return base, false
}

// FollowReExports resolves exportedName through a chain of barrel
// re-exports starting at uri, bounded by a hard depth cap and a visited
// set to guarantee termination on cyclic re-export graphs.
func (r *ImportResolver) FollowReExports(uri, exportedName string) string {
	if r.reExport == nil {
		return ""
	}
	visited := make(map[string]bool)
	return r.followReExports(uri, exportedName, 0, visited)
}

func (r *ImportResolver) followReExports(uri, exportedName string, depth int, visited map[string]bool) string {
	if depth >= r.depthCap {
		return ""
	}
	if visited[uri] {
		return ""
	}
	visited[uri] = true

	moduleSpecifier, ok := r.reExport(uri, exportedName)
	if !ok {
		return ""
	}

	resolved := r.Resolve(moduleSpecifier, uri)
	if resolved == "" {
		return ""
	}

	// resolved might itself re-export further: keep following until the
	// chain ends, the depth cap is reached, or a file repeats, and fall
	// back to this hop's resolved file when the next hop yields nothing.
	if next := r.followReExports(resolved, exportedName, depth+1, visited); next != "" {
		return next
	}
	return resolved
}
