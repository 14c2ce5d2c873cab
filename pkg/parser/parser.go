// Package parser wraps the tree-sitter grammars for TypeScript, TSX, and
// JavaScript behind per-language parser pools, so extraction workers and
// query-time re-parses share a bounded set of CGO parser instances.
package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Config tunes the manager. The zero value derives everything from the
// host machine.
type Config struct {
	// PoolSizePerLanguage bounds concurrent parsers per grammar. 0 derives
	// a CPU-based default; size this at or above the indexing worker count
	// so workers never block waiting for a parser.
	PoolSizePerLanguage int
}

// ParserManager owns one lazily created parser pool per language. Safe
// for concurrent use; callers own returned Trees and must Close them.
type ParserManager struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	pools map[Language]*pool

	parses atomic.Int64
}

// NewParserManager builds a manager with default sizing. Close it to
// release the underlying CGO parsers.
func NewParserManager(logger *slog.Logger) *ParserManager {
	return NewParserManagerWith(Config{}, logger)
}

// NewParserManagerWith builds a manager with explicit configuration.
func NewParserManagerWith(cfg Config, logger *slog.Logger) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParserManager{
		cfg:    cfg,
		logger: logger,
		pools:  make(map[Language]*pool),
	}
}

// Parse parses source with lang's grammar. The returned Tree MUST be
// closed by the caller. A tree containing syntax errors is still returned
// — partial trees are useful — with a warning logged.
func (pm *ParserManager) Parse(source []byte, lang Language) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pm.parses.Add(1)

	pool, err := pm.poolFor(lang)
	if err != nil {
		return nil, err
	}

	parser, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire %s parser: %w", lang, err)
	}
	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("%s parser returned no tree", lang)
	}

	if tree.RootNode().HasError() {
		pm.logger.Warn("parse tree contains errors", "language", lang.String())
	}

	return tree, nil
}

// ParseFile parses source for the grammar its path implies. The returned
// Tree MUST be closed by the caller.
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}
	return pm.Parse(source, lang)
}

// poolFor returns lang's pool, creating it on first use under a
// double-checked lock.
func (pm *ParserManager) poolFor(lang Language) (*pool, error) {
	pm.mu.RLock()
	p, ok := pm.pools[lang]
	pm.mu.RUnlock()
	if ok {
		return p, nil
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if p, ok = pm.pools[lang]; ok {
		return p, nil
	}

	grammar, err := grammarFor(lang)
	if err != nil {
		return nil, err
	}

	limit := getPoolSize(pm.cfg.PoolSizePerLanguage)
	p = newPool(lang, grammar, limit, pm.logger)
	pm.pools[lang] = p

	pm.logger.Debug("created parser pool", "language", lang.String(), "limit", limit)
	return p, nil
}

// grammarFor maps a Language to its compiled tree-sitter grammar.
func grammarFor(lang Language) (unsafe.Pointer, error) {
	switch lang {
	case LanguageTypeScript:
		return ts_typescript.LanguageTypescript(), nil
	case LanguageTSX:
		return ts_typescript.LanguageTSX(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("no grammar for language %s", lang)
	}
}

// Close destroys every pooled parser. The manager cannot be used after.
func (pm *ParserManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, p := range pm.pools {
		p.close()
	}
	pm.pools = make(map[Language]*pool)

	pm.logger.Info("parser manager closed", "parses", pm.parses.Load())
	return nil
}

// Stats reports parser usage counters.
type Stats struct {
	ParsersCreated int
	ParsesCalled   int64
}

// GetStats returns a snapshot of the usage counters.
func (pm *ParserManager) GetStats() Stats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	created := 0
	for _, p := range pm.pools {
		created += p.createdCount()
	}
	return Stats{
		ParsersCreated: created,
		ParsesCalled:   pm.parses.Load(),
	}
}
