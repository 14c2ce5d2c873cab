package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/symgraph/pkg/model"
)

func symAt(uri string, line uint32, name string) model.Symbol {
	return model.Symbol{Name: name, Location: model.Location{URI: uri, Line: line}}
}

func TestResolve_ObjectLiteralProperty(t *testing.T) {
	base := symAt("/w/obj.ts", 0, "config")
	propLoc := model.Location{URI: "/w/obj.ts", Line: 2, Character: 4}

	readInit := func(sym model.Symbol) Initializer {
		if sym.Name == "config" {
			return Initializer{
				Kind: InitializerObject,
				ObjectProps: []ObjectProperty{
					{Key: "port", Location: propLoc},
				},
			}
		}
		return Initializer{}
	}
	r := NewRecursiveResolver(nil, readInit, nil)

	loc, ok := r.Resolve(base, []string{"port"})
	require.True(t, ok)
	assert.Equal(t, propLoc, loc)
}

func TestResolve_NestedObjectChain(t *testing.T) {
	base := symAt("/w/deep.ts", 0, "settings")
	leafLoc := model.Location{URI: "/w/deep.ts", Line: 5, Character: 8}

	readInit := func(sym model.Symbol) Initializer {
		return Initializer{
			Kind: InitializerObject,
			ObjectProps: []ObjectProperty{
				{
					Key:        "network",
					ValueIsObj: true,
					Location:   model.Location{URI: "/w/deep.ts", Line: 1},
					Properties: []ObjectProperty{
						{Key: "timeout", Location: leafLoc},
					},
				},
			},
		}
	}
	r := NewRecursiveResolver(nil, readInit, nil)

	loc, ok := r.Resolve(base, []string{"network", "timeout"})
	require.True(t, ok)
	assert.Equal(t, leafLoc, loc)
}

func TestResolve_FactoryEventsArgument(t *testing.T) {
	// const Group = createActionGroup({ source: "S", events: { opened: ... } })
	base := symAt("/w/act.ts", 0, "Group")
	openedLoc := model.Location{URI: "/w/act.ts", Line: 0, Character: 58}

	readInit := func(sym model.Symbol) Initializer {
		return Initializer{
			Kind: InitializerCall,
			CallArgObject: []ObjectProperty{
				{Key: "source", Location: model.Location{URI: "/w/act.ts", Line: 0, Character: 40}},
				{
					Key:        "events",
					ValueIsObj: true,
					Location:   model.Location{URI: "/w/act.ts", Line: 0, Character: 50},
					Properties: []ObjectProperty{
						{Key: "opened", Location: openedLoc},
					},
				},
			},
		}
	}
	r := NewRecursiveResolver(nil, readInit, nil)

	loc, ok := r.Resolve(base, []string{"opened"})
	require.True(t, ok)
	assert.Equal(t, openedLoc, loc, "must land on the opened key, not the Group declaration")
}

func TestResolve_ConfigurableEventsKey(t *testing.T) {
	base := symAt("/w/act.ts", 0, "Group")
	loc := model.Location{URI: "/w/act.ts", Line: 1, Character: 2}

	readInit := func(sym model.Symbol) Initializer {
		return Initializer{
			Kind: InitializerCall,
			CallArgObject: []ObjectProperty{
				{Key: "handlers", ValueIsObj: true, Properties: []ObjectProperty{
					{Key: "clicked", Location: loc},
				}},
			},
		}
	}
	r := NewRecursiveResolver(nil, readInit, nil).WithEventsKey("handlers")

	got, ok := r.Resolve(base, []string{"clicked"})
	require.True(t, ok)
	assert.Equal(t, loc, got)
}

func TestResolve_FunctionReturnObject(t *testing.T) {
	base := symAt("/w/fact.ts", 0, "api")
	getLoc := model.Location{URI: "/w/fact.ts", Line: 4, Character: 4}

	readInit := func(sym model.Symbol) Initializer {
		return Initializer{
			Kind: InitializerCall,
			CallReturns: [][]ObjectProperty{
				{{Key: "get", Location: getLoc}},
			},
		}
	}
	r := NewRecursiveResolver(nil, readInit, nil)

	loc, ok := r.Resolve(base, []string{"get"})
	require.True(t, ok)
	assert.Equal(t, getLoc, loc)
}

func TestResolve_IdentifierAliasHop(t *testing.T) {
	alias := symAt("/w/alias.ts", 3, "shortcut")
	origin := symAt("/w/alias.ts", 0, "original")
	propLoc := model.Location{URI: "/w/alias.ts", Line: 1, Character: 2}

	findSymbol := func(name, uri string) (model.Symbol, bool) {
		if name == "original" {
			return origin, true
		}
		return model.Symbol{}, false
	}
	readInit := func(sym model.Symbol) Initializer {
		switch sym.Name {
		case "shortcut":
			return Initializer{Kind: InitializerIdentifier, AliasName: "original"}
		case "original":
			return Initializer{Kind: InitializerObject, ObjectProps: []ObjectProperty{
				{Key: "field", Location: propLoc},
			}}
		}
		return Initializer{}
	}
	r := NewRecursiveResolver(findSymbol, readInit, nil)

	loc, ok := r.Resolve(alias, []string{"field"})
	require.True(t, ok)
	assert.Equal(t, propLoc, loc)
}

func TestResolve_AliasCycleTerminates(t *testing.T) {
	a := symAt("/w/cycle.ts", 0, "a")
	b := symAt("/w/cycle.ts", 1, "b")

	findSymbol := func(name, uri string) (model.Symbol, bool) {
		switch name {
		case "a":
			return a, true
		case "b":
			return b, true
		}
		return model.Symbol{}, false
	}
	readInit := func(sym model.Symbol) Initializer {
		switch sym.Name {
		case "a":
			return Initializer{Kind: InitializerIdentifier, AliasName: "b"}
		default:
			return Initializer{Kind: InitializerIdentifier, AliasName: "a"}
		}
	}
	r := NewRecursiveResolver(findSymbol, readInit, nil)

	_, ok := r.Resolve(a, []string{"anything"})
	assert.False(t, ok)
}

func TestResolve_DepthLimit(t *testing.T) {
	// Each hop aliases to a fresh symbol on a new line, never cycling, so
	// only the depth cap can stop the walk.
	findSymbol := func(name, uri string) (model.Symbol, bool) {
		return symAt("/w/deep.ts", uint32(len(name)), name+"x"), true
	}
	readInit := func(sym model.Symbol) Initializer {
		return Initializer{Kind: InitializerIdentifier, AliasName: sym.Name + "x"}
	}
	r := NewRecursiveResolver(findSymbol, readInit, nil)

	_, ok := r.Resolve(symAt("/w/deep.ts", 0, "s"), []string{"p"})
	assert.False(t, ok)
}

func TestResolve_TypeFallbackConsulted(t *testing.T) {
	base := symAt("/w/hybrid.ts", 0, "opaque")
	fallbackLoc := model.Location{URI: "/w/hybrid.ts", Line: 9}

	readInit := func(sym model.Symbol) Initializer { return Initializer{} }
	fallback := func(sym model.Symbol, chain []string) (model.Location, bool) {
		return fallbackLoc, true
	}
	r := NewRecursiveResolver(nil, readInit, fallback)

	loc, ok := r.Resolve(base, []string{"prop"})
	require.True(t, ok)
	assert.Equal(t, fallbackLoc, loc)
}

func TestResolve_NoFallbackReturnsFalse(t *testing.T) {
	readInit := func(sym model.Symbol) Initializer { return Initializer{} }
	r := NewRecursiveResolver(nil, readInit, nil)

	_, ok := r.Resolve(symAt("/w/none.ts", 0, "mystery"), []string{"prop"})
	assert.False(t, ok)
}

func TestResolve_EmptyChainReturnsBase(t *testing.T) {
	base := symAt("/w/base.ts", 2, "thing")
	r := NewRecursiveResolver(nil, func(model.Symbol) Initializer { return Initializer{} }, nil)

	loc, ok := r.Resolve(base, nil)
	require.True(t, ok)
	assert.Equal(t, base.Location, loc)
}
