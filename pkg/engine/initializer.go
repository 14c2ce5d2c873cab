package engine

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/symgraph/pkg/model"
	"github.com/gnana997/symgraph/pkg/resolve"
)

// readInitializer is the engine's InitializerReader: it re-parses the
// symbol's file (through the content cache and the pooled parsers) and
// classifies what the declaration was initialized with, in the shape
// RecursiveResolver walks.
func (e *Engine) readInitializer(sym model.Symbol) resolve.Initializer {
	content, err := e.contents.Get(sym.Location.URI)
	if err != nil || len(content) == 0 {
		return resolve.Initializer{}
	}

	tree, err := e.parsers.ParseFile(content, sym.Location.URI)
	if err != nil {
		return resolve.Initializer{}
	}
	defer tree.Close()

	decl := declaratorAt(tree.RootNode(), sym.Location.Line, sym.Location.Character)
	if decl == nil {
		return resolve.Initializer{}
	}

	value := decl.ChildByFieldName("value")
	if value == nil {
		return resolve.Initializer{}
	}

	switch value.GrammarName() {
	case "object":
		return resolve.Initializer{
			Kind:        resolve.InitializerObject,
			ObjectProps: collectObjectProps(value, content, sym.Location.URI),
		}

	case "call_expression":
		init := resolve.Initializer{Kind: resolve.InitializerCall}
		if args := value.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
			if first := args.NamedChild(0); first != nil && first.GrammarName() == "object" {
				init.CallArgObject = collectObjectProps(first, content, sym.Location.URI)
			}
		}
		if callee := value.ChildByFieldName("function"); callee != nil && callee.GrammarName() == "identifier" {
			init.CallReturns = functionReturnObjects(tree.RootNode(), string(callee.Utf8Text(content)), content, sym.Location.URI)
		}
		return init

	case "identifier":
		return resolve.Initializer{
			Kind:      resolve.InitializerIdentifier,
			AliasName: string(value.Utf8Text(content)),
		}
	}

	return resolve.Initializer{}
}

// declaratorAt finds the variable_declarator whose declaration starts at
// (line, char), climbing from the innermost named node at that point.
func declaratorAt(root *ts.Node, line, char uint32) *ts.Node {
	point := ts.Point{Row: uint(line), Column: uint(char)}
	node := root.NamedDescendantForPointRange(point, point)
	for node != nil {
		if node.GrammarName() == "variable_declarator" {
			return node
		}
		node = node.Parent()
	}
	return nil
}

// collectObjectProps flattens an object literal into the resolver's
// property shape, recursing into nested object values.
func collectObjectProps(obj *ts.Node, source []byte, uri string) []resolve.ObjectProperty {
	var props []resolve.ObjectProperty
	count := obj.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := obj.NamedChild(i)
		if child == nil {
			continue
		}

		switch child.GrammarName() {
		case "pair":
			keyNode := child.ChildByFieldName("key")
			valueNode := child.ChildByFieldName("value")
			if keyNode == nil {
				continue
			}
			prop := resolve.ObjectProperty{
				Key:      propertyKeyText(keyNode, source),
				Location: nodeLocation(keyNode, uri),
			}
			if valueNode != nil && valueNode.GrammarName() == "object" {
				prop.ValueIsObj = true
				prop.Properties = collectObjectProps(valueNode, source, uri)
			}
			props = append(props, prop)

		case "shorthand_property_identifier":
			props = append(props, resolve.ObjectProperty{
				Key:      string(child.Utf8Text(source)),
				Location: nodeLocation(child, uri),
			})

		case "method_definition":
			keyNode := child.ChildByFieldName("name")
			if keyNode == nil {
				continue
			}
			props = append(props, resolve.ObjectProperty{
				Key:      propertyKeyText(keyNode, source),
				Location: nodeLocation(keyNode, uri),
			})
		}
	}
	return props
}

// functionReturnObjects finds the same-file function declaration named
// calleeName and collects the properties of every `return { ... }` in its
// body. Cross-file callees resolve through the alias/import path instead.
func functionReturnObjects(root *ts.Node, calleeName string, source []byte, uri string) [][]resolve.ObjectProperty {
	fn := findFunctionDeclaration(root, calleeName, source)
	if fn == nil {
		return nil
	}
	body := fn.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var returns [][]resolve.ObjectProperty
	collectReturnObjects(body, source, uri, &returns)
	return returns
}

func findFunctionDeclaration(node *ts.Node, name string, source []byte) *ts.Node {
	if node.GrammarName() == "function_declaration" {
		if n := node.ChildByFieldName("name"); n != nil && string(n.Utf8Text(source)) == name {
			return node
		}
	}
	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if found := findFunctionDeclaration(child, name, source); found != nil {
			return found
		}
	}
	return nil
}

func collectReturnObjects(node *ts.Node, source []byte, uri string, out *[][]resolve.ObjectProperty) {
	if node.GrammarName() == "return_statement" {
		count := node.NamedChildCount()
		for i := uint(0); i < count; i++ {
			if child := node.NamedChild(i); child != nil && child.GrammarName() == "object" {
				*out = append(*out, collectObjectProps(child, source, uri))
			}
		}
		return
	}
	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		if child := node.NamedChild(i); child != nil {
			collectReturnObjects(child, source, uri, out)
		}
	}
}

func propertyKeyText(keyNode *ts.Node, source []byte) string {
	text := string(keyNode.Utf8Text(source))
	if keyNode.GrammarName() == "string" && len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}

func nodeLocation(node *ts.Node, uri string) model.Location {
	pos := node.StartPosition()
	return model.Location{URI: uri, Line: uint32(pos.Row), Character: uint32(pos.Column)}
}

// ResolveChain resolves `base.chain[0].chain[1]...` from uri through the
// recursive property-chain resolver, the go-to-definition path for member
// accesses.
func (e *Engine) ResolveChain(uri, base string, chain []string) (model.Location, bool) {
	sym, ok := e.findSymbolForResolver(base, uri)
	if !ok {
		return model.Location{}, false
	}
	return e.Recursive.Resolve(sym, chain)
}

// findSymbolForResolver is the engine's SymbolFinder: same-file symbols
// win, then workspace-wide definitions, then definitions reached through
// the file's imports (following barrel re-exports).
func (e *Engine) findSymbolForResolver(name, uri string) (model.Symbol, bool) {
	if syms, ok := e.Merged.GetFileSymbols(uri); ok {
		for _, sym := range syms {
			if sym.Name == name {
				return sym, true
			}
		}
	}

	defs := e.Merged.FindDefinitions(name)
	if len(defs) == 0 {
		return model.Symbol{}, false
	}

	// Prefer the definition the file actually imports.
	for _, imp := range e.Background.ImportsFor(uri) {
		if imp.LocalName != name {
			continue
		}
		target := e.Imports.Resolve(imp.ModuleSpecifier, uri)
		if target == "" {
			continue
		}
		exported := imp.ExportedName
		if exported == "" {
			exported = name
		}
		if viaBarrel := e.Imports.FollowReExports(target, exported); viaBarrel != "" {
			target = viaBarrel
		}
		for _, def := range defs {
			if def.Location.URI == target {
				return def, true
			}
		}
	}

	return defs[0], true
}
