package extractor

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/gnana997/symgraph/pkg/model"
)

// fileHash returns the 8 hex character fragment of a symbol id derived from
// the file's URI. Stable across edits because it never touches content.
func fileHash(uri string) string {
	sum := xxhash.Sum64String(uri)
	return fmt.Sprintf("%08x", uint32(sum))
}

// sigHash discriminates overloads: methods/functions with the same
// qualified name but different staticness or arity get distinct ids.
func sigHash(kind model.SymbolKind, isStatic bool, parametersCount int) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%s:%v:%d", kind, isStatic, parametersCount))
	return fmt.Sprintf("%04x", uint16(sum))
}

// stableID builds the `{fileHash}:{semanticPath}[#{sigHash}]` id. True
// collisions (identical qualified name and signature) are resolved by the
// walker, which appends a document-order ordinal.
func stableID(uri, fullContainerPath, name string, kind model.SymbolKind, isStatic bool, parametersCount int) string {
	semanticPath := name
	if fullContainerPath != "" {
		semanticPath = fullContainerPath + "." + name
	}

	id := fileHash(uri) + ":" + semanticPath

	switch kind {
	case model.KindFunction, model.KindMethod:
		id += "#" + sigHash(kind, isStatic, parametersCount)
	}

	return id
}
