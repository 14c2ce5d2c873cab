// Package extractor implements SymbolExtractor: a single AST walk
// that produces a file's symbol set, reference set, import set, and
// re-export set, with scope-aware reference classification and
// position-independent stable symbol ids.
package extractor

import (
	"log/slog"

	"github.com/gnana997/symgraph/pkg/digest"
	"github.com/gnana997/symgraph/pkg/indexerrors"
	"github.com/gnana997/symgraph/pkg/intern"
	"github.com/gnana997/symgraph/pkg/model"
	"github.com/gnana997/symgraph/pkg/parser"
)

// Extractor parses and walks one file at a time to build an IndexedFile.
// One interner is shared across every file the Extractor processes so
// repeated names, container paths, and URIs collapse to single instances.
type Extractor struct {
	parsers     *parser.ParserManager
	logger      *slog.Logger
	maxFileSize int64
	hook        PatternHook
	interner    *intern.Table
}

// New builds an Extractor. hook may be nil, in which case NoopHook is used
// and every member-property/call-expression pattern is left for
// RecursiveResolver to resolve at query time.
func New(parsers *parser.ParserManager, logger *slog.Logger, maxFileSize int64, hook PatternHook) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if hook == nil {
		hook = NoopHook{}
	}
	return &Extractor{
		parsers:     parsers,
		logger:      logger,
		maxFileSize: maxFileSize,
		hook:        hook,
		interner:    intern.NewTable(),
	}
}

// Interner exposes the shared string table, for callers that want to
// intern query strings against the same backing set.
func (e *Extractor) Interner() *intern.Table {
	return e.interner
}

// Extract runs the full extraction over one file's content. Parse
// failures never propagate: they degrade to an IndexedFile with
// Metadata.ParseFailed set, so a single malformed file never aborts a
// larger indexing run.
func (e *Extractor) Extract(uri string, content []byte, mtime int64, indexedAt int64) model.IndexedFile {
	if e.maxFileSize > 0 && int64(len(content)) > e.maxFileSize {
		return model.IndexedFile{
			URI:           uri,
			Mtime:         mtime,
			LastIndexedAt: indexedAt,
			Metadata: model.FileMetadata{
				Skipped:    true,
				SkipReason: "file exceeds maxIndexedFileSize",
			},
		}
	}

	lang := parser.DetectLanguage(uri)
	if lang == parser.LanguageUnknown {
		return model.IndexedFile{
			URI:           uri,
			Mtime:         mtime,
			LastIndexedAt: indexedAt,
			Metadata: model.FileMetadata{
				Skipped:    true,
				SkipReason: "unsupported file extension",
			},
		}
	}

	contentHash := digest.ContentHash(content)

	tree, err := e.parsers.Parse(content, lang)
	if err != nil {
		parseErr := &indexerrors.ParseError{URI: uri, Err: err}
		e.logger.Warn("parse failed, producing empty shard", "uri", uri, "error", parseErr)
		return model.IndexedFile{
			URI:           uri,
			ContentHash:   contentHash,
			Mtime:         mtime,
			LastIndexedAt: indexedAt,
			Metadata: model.FileMetadata{
				ParseFailed: true,
				ParseError:  parseErr.Error(),
			},
		}
	}
	defer tree.Close()

	root := tree.RootNode()
	w := newWalker(uri, content, e.hook, e.interner)
	w.run(root)

	return model.IndexedFile{
		URI:           uri,
		ContentHash:   contentHash,
		Mtime:         mtime,
		Symbols:       w.symbols,
		References:    w.references,
		Imports:       w.imports,
		ReExports:     w.reExports,
		LastIndexedAt: indexedAt,
	}
}
