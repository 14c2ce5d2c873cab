package parser

import (
	"errors"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// pool bounds concurrent parser use for one grammar. Admission runs
// through a permit channel sized to the pool limit; the parsers
// themselves sit on an idle stack and are created lazily, so a pool for a
// grammar that only ever sees one goroutine holds exactly one parser.
type pool struct {
	lang    Language
	grammar unsafe.Pointer
	logger  *slog.Logger

	permits chan struct{}

	mu      sync.Mutex
	idle    []*ts.Parser
	created int
	closed  bool
}

func newPool(lang Language, grammar unsafe.Pointer, limit int, logger *slog.Logger) *pool {
	permits := make(chan struct{}, limit)
	for i := 0; i < limit; i++ {
		permits <- struct{}{}
	}
	return &pool{
		lang:    lang,
		grammar: grammar,
		logger:  logger,
		permits: permits,
	}
}

// acquire blocks for a permit, then hands out an idle parser or creates
// one. Every successful acquire must be paired with a release.
func (p *pool) acquire() (*ts.Parser, error) {
	<-p.permits

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.permits <- struct{}{}
		return nil, errors.New("parser pool is closed")
	}
	if n := len(p.idle); n > 0 {
		parser := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return parser, nil
	}
	p.mu.Unlock()

	parser := ts.NewParser()
	if parser == nil {
		p.permits <- struct{}{}
		return nil, errors.New("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.grammar)); err != nil {
		parser.Close()
		p.permits <- struct{}{}
		return nil, err
	}

	p.mu.Lock()
	p.created++
	count := p.created
	p.mu.Unlock()

	p.logger.Debug("created pooled parser", "language", p.lang.String(), "count", count)
	return parser, nil
}

// release returns a parser to the idle stack and frees its permit. After
// close, released parsers are destroyed instead of stacked.
func (p *pool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		parser.Close()
		return
	}
	p.idle = append(p.idle, parser)
	p.mu.Unlock()

	p.permits <- struct{}{}
}

// close destroys every idle parser. In-flight parsers are destroyed as
// they are released.
func (p *pool) close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, parser := range idle {
		parser.Close()
	}
	p.logger.Debug("closed parser pool", "language", p.lang.String(), "parsers_closed", len(idle))
}

func (p *pool) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
