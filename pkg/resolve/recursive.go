package resolve

import "github.com/gnana997/symgraph/pkg/model"

const (
	maxRecursiveDepth = 10
	eventsArgumentKey = "events"
)

// VisitKey is the cycle-detection key for the recursive resolver: a
// position in a specific file.
type VisitKey struct {
	URI    string
	Offset int
}

// ObjectProperty is one key/value pair as seen in an object-literal
// initializer, a call's first argument, or a function's return value.
type ObjectProperty struct {
	Key        string
	ValueIsObj bool
	Properties []ObjectProperty // populated when ValueIsObj
	Location   model.Location
}

// Initializer describes what a symbol's declaration was initialized with,
// abstracted away from any particular AST library so this package stays a
// pure graph walk over a small interface.
type Initializer struct {
	Kind          InitializerKind
	ObjectProps   []ObjectProperty   // Kind == InitializerObject
	CallArgObject []ObjectProperty   // Kind == InitializerCall, first-arg object literal, if any
	CallReturns   [][]ObjectProperty // Kind == InitializerCall, one slice per `return <object literal>`
	AliasName     string             // Kind == InitializerIdentifier
}

type InitializerKind int

const (
	InitializerNone InitializerKind = iota
	InitializerObject
	InitializerCall
	InitializerIdentifier
)

// SymbolFinder looks up a symbol's declaration by name, visible from uri.
type SymbolFinder func(name, uri string) (model.Symbol, bool)

// InitializerReader reads the declaration initializer for a symbol.
type InitializerReader func(sym model.Symbol) Initializer

// TypeFallback is the optional type-backed resolution path used only in
// hybrid mode, with a bounded timeout enforced by the caller.
type TypeFallback func(sym model.Symbol, chain []string) (model.Location, bool)

// RecursiveResolver resolves `a.b.c` property chains through object
// literals, function-return objects, and variable aliases.
type RecursiveResolver struct {
	findSymbol   SymbolFinder
	readInit     InitializerReader
	typeFallback TypeFallback
	eventsKey    string
}

// NewRecursiveResolver builds a resolver. typeFallback may be nil, in which
// case step 5 of the algorithm always returns "no result".
func NewRecursiveResolver(findSymbol SymbolFinder, readInit InitializerReader, typeFallback TypeFallback) *RecursiveResolver {
	return &RecursiveResolver{
		findSymbol:   findSymbol,
		readInit:     readInit,
		typeFallback: typeFallback,
		eventsKey:    eventsArgumentKey,
	}
}

// WithEventsKey overrides the caller-configurable "events" argument key
// used in step 3(a) of the algorithm.
func (r *RecursiveResolver) WithEventsKey(key string) *RecursiveResolver {
	r.eventsKey = key
	return r
}

// Resolve walks the chain [head, rest...] starting from base, returning the
// Location of the chain's final property, or false if it cannot be
// resolved within the depth limit.
func (r *RecursiveResolver) Resolve(base model.Symbol, chain []string) (model.Location, bool) {
	visited := make(map[VisitKey]bool)
	return r.resolve(base, chain, 0, visited)
}

func (r *RecursiveResolver) resolve(sym model.Symbol, chain []string, depth int, visited map[VisitKey]bool) (model.Location, bool) {
	if len(chain) == 0 {
		return sym.Location, true
	}
	if depth >= maxRecursiveDepth {
		return model.Location{}, false
	}

	key := VisitKey{URI: sym.Location.URI, Offset: int(sym.Location.Line)<<16 | int(sym.Location.Character)}
	if visited[key] {
		return model.Location{}, false
	}
	visited[key] = true

	head := chain[0]
	rest := chain[1:]

	init := r.readInit(sym)

	switch init.Kind {
	case InitializerObject:
		if loc, ok := r.descendProperties(init.ObjectProps, head, rest, depth, visited); ok {
			return loc, true
		}

	case InitializerCall:
		// The factory's first argument: an "events"-keyed object exposes
		// its keys as the factory result's properties.
		for _, p := range init.CallArgObject {
			if p.Key == r.eventsKey && p.ValueIsObj {
				if loc, ok := r.descendProperties(p.Properties, head, rest, depth, visited); ok {
					return loc, true
				}
			}
		}
		if loc, ok := r.descendProperties(init.CallArgObject, head, rest, depth, visited); ok {
			return loc, true
		}
		for _, ret := range init.CallReturns {
			if loc, ok := r.descendProperties(ret, head, rest, depth, visited); ok {
				return loc, true
			}
		}

	case InitializerIdentifier:
		aliasSym, ok := r.findSymbol(init.AliasName, sym.Location.URI)
		if ok {
			return r.resolve(aliasSym, chain, depth+1, visited)
		}
	}

	if r.typeFallback != nil {
		return r.typeFallback(sym, chain)
	}

	return model.Location{}, false
}

// descendProperties searches props for head; on a match, either returns its
// location (chain exhausted) or recurses into its nested properties.
func (r *RecursiveResolver) descendProperties(props []ObjectProperty, head string, rest []string, depth int, visited map[VisitKey]bool) (model.Location, bool) {
	for _, p := range props {
		if p.Key != head {
			continue
		}
		if len(rest) == 0 {
			return p.Location, true
		}
		if !p.ValueIsObj {
			return model.Location{}, false
		}
		return r.descendInto(p.Properties, rest, depth+1, visited)
	}
	return model.Location{}, false
}

func (r *RecursiveResolver) descendInto(props []ObjectProperty, chain []string, depth int, visited map[VisitKey]bool) (model.Location, bool) {
	if len(chain) == 0 {
		return model.Location{}, false
	}
	head := chain[0]
	rest := chain[1:]
	return r.descendProperties(props, head, rest, depth, visited)
}
