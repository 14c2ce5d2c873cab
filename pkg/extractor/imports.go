package extractor

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/symgraph/pkg/model"
)

// handleImportStatement covers ES-module import forms:
//
//	import D from "m"                 -> default
//	import * as NS from "m"           -> namespace
//	import { X, Y as Z } from "m"     -> named (with rename)
//	import "m"                        -> side-effect only, no binding
//
// Every bound local name is also recorded in the current (file-root) scope
// so later references resolve to it, and is emitted as a Reference with
// IsImport = true at its binding position.
func (w *walker) handleImportStatement(node *ts.Node) {
	sourceNode := node.ChildByFieldName("source")
	moduleSpecifier := trimQuotes(w.text(sourceNode))

	clause := findChildByType(node, "import_clause")
	if clause == nil {
		// Bare `import "m"` for side effects only.
		return
	}

	count := clause.ChildCount()
	for i := uint(0); i < count; i++ {
		child := clause.Child(i)
		if child == nil {
			continue
		}

		switch child.GrammarName() {
		case "identifier":
			// default import
			localName := w.text(child)
			w.bindImport(child, localName, model.Import{
				LocalName:       localName,
				ModuleSpecifier: moduleSpecifier,
				IsDefault:       true,
			})

		case "namespace_import":
			nameNode := child.NamedChild(0)
			localName := w.text(nameNode)
			w.bindImport(nameNode, localName, model.Import{
				LocalName:       localName,
				ModuleSpecifier: moduleSpecifier,
				IsNamespace:     true,
			})

		case "named_imports":
			w.handleNamedImports(child, moduleSpecifier)
		}
	}
}

func (w *walker) handleNamedImports(node *ts.Node, moduleSpecifier string) {
	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		spec := node.NamedChild(i)
		if spec == nil || spec.GrammarName() != "import_specifier" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		aliasNode := spec.ChildByFieldName("alias")

		exportedName := w.text(nameNode)
		localName := exportedName
		bindingNode := nameNode
		if aliasNode != nil {
			localName = w.text(aliasNode)
			bindingNode = aliasNode
		}

		imp := model.Import{
			LocalName:       localName,
			ModuleSpecifier: moduleSpecifier,
		}
		if localName != exportedName {
			imp.ExportedName = exportedName
		}
		w.bindImport(bindingNode, localName, imp)
	}
}

func (w *walker) bindImport(bindingNode *ts.Node, localName string, imp model.Import) {
	localName = w.interner.Intern(localName)
	imp.LocalName = w.interner.Intern(imp.LocalName)
	imp.ModuleSpecifier = w.interner.Intern(imp.ModuleSpecifier)
	w.scopes.Bind(localName)
	w.imports = append(w.imports, imp)
	w.references = append(w.references, model.Reference{
		SymbolName:    localName,
		Location:      w.locationOf(bindingNode),
		Range:         w.rangeOf(bindingNode),
		ContainerName: w.scopes.ContainerName(),
		IsImport:      true,
		ScopeID:       w.scopes.CurrentScopeID(),
		IsLocal:       true,
	})
}

// handleExportStatement covers `export <decl>`, `export { X, Y as Z }`,
// `export { X } from "m"`, and `export * from "m"`. Exported local
// declarations are walked normally; export-ness is not tracked on Symbol,
// callers treat anything reachable from symbolNameIndex as visible.
func (w *walker) handleExportStatement(node *ts.Node) {
	sourceNode := node.ChildByFieldName("source")

	if sourceNode != nil {
		moduleSpecifier := trimQuotes(w.text(sourceNode))

		if isWildcardExport(node) {
			w.reExports = append(w.reExports, model.ReExport{
				ModuleSpecifier: moduleSpecifier,
				IsWildcard:      true,
			})
			return
		}

		if exportClause := findChildByType(node, "export_clause"); exportClause != nil {
			names := collectExportSpecifierNames(exportClause, w.source)
			w.reExports = append(w.reExports, model.ReExport{
				ModuleSpecifier: moduleSpecifier,
				ExportedNames:   names,
			})
			return
		}
	}

	decl := node.ChildByFieldName("declaration")
	if decl != nil {
		w.walk(decl)
		return
	}

	w.walkChildren(node)
}

func isWildcardExport(node *ts.Node) bool {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child != nil && child.GrammarName() == "*" {
			return true
		}
	}
	return false
}

func collectExportSpecifierNames(clause *ts.Node, source []byte) []string {
	var names []string
	count := clause.NamedChildCount()
	for i := uint(0); i < count; i++ {
		spec := clause.NamedChild(i)
		if spec == nil || spec.GrammarName() != "export_specifier" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode != nil {
			names = append(names, string(nameNode.Utf8Text(source)))
		}
	}
	return names
}

// requireSpecifier reports whether value is a `require("m")` call and, if
// so, the module specifier m.
func requireSpecifier(value *ts.Node, source []byte) (string, bool) {
	if value == nil || value.GrammarName() != "call_expression" {
		return "", false
	}
	callee := value.ChildByFieldName("function")
	if callee == nil || callee.GrammarName() != "identifier" || string(callee.Utf8Text(source)) != "require" {
		return "", false
	}
	args := value.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", false
	}
	first := args.NamedChild(0)
	if first == nil || first.GrammarName() != "string" {
		return "", false
	}
	return trimQuotes(string(first.Utf8Text(source))), true
}

// handleRequireDeclarator captures the CommonJS forms:
//
//	const NS = require("m")           -> namespace-style binding
//	const { X, Y: Z } = require("m")  -> named bindings (with rename)
func (w *walker) handleRequireDeclarator(nameNode *ts.Node, moduleSpecifier string) {
	if nameNode == nil {
		return
	}

	switch nameNode.GrammarName() {
	case "identifier":
		localName := w.text(nameNode)
		w.bindImport(nameNode, localName, model.Import{
			LocalName:       localName,
			ModuleSpecifier: moduleSpecifier,
			IsNamespace:     true,
			IsCJS:           true,
		})

	case "object_pattern":
		count := nameNode.NamedChildCount()
		for i := uint(0); i < count; i++ {
			prop := nameNode.NamedChild(i)
			if prop == nil {
				continue
			}
			switch prop.Kind() {
			case "shorthand_property_identifier_pattern":
				localName := w.text(prop)
				w.bindImport(prop, localName, model.Import{
					LocalName:       localName,
					ModuleSpecifier: moduleSpecifier,
					IsCJS:           true,
				})
			case "pair_pattern":
				keyNode := prop.ChildByFieldName("key")
				valNode := prop.ChildByFieldName("value")
				exportedName := w.text(keyNode)
				localName := w.text(valNode)
				if localName == "" {
					continue
				}
				imp := model.Import{
					LocalName:       localName,
					ModuleSpecifier: moduleSpecifier,
					IsCJS:           true,
				}
				if exportedName != localName {
					imp.ExportedName = exportedName
				}
				w.bindImport(valNode, localName, imp)
			}
		}
	}
}

// recordDynamicImport captures `import("m")`. Dynamic imports introduce no
// local binding, so only the Import record is emitted.
func (w *walker) recordDynamicImport(call *ts.Node) bool {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.GrammarName() != "import" {
		return false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return false
	}
	first := args.NamedChild(0)
	if first == nil || first.GrammarName() != "string" {
		return false
	}
	w.imports = append(w.imports, model.Import{
		ModuleSpecifier: trimQuotes(w.text(first)),
		IsDynamic:       true,
	})
	return true
}

// bindPatternIdentifiers registers every identifier introduced by a
// destructuring pattern as a local binding in the current scope.
func (w *walker) bindPatternIdentifiers(pattern *ts.Node) {
	switch pattern.GrammarName() {
	case "identifier", "shorthand_property_identifier_pattern":
		name := w.text(pattern)
		if name != "" {
			w.scopes.Bind(name)
		}
		return
	case "pair_pattern":
		if val := pattern.ChildByFieldName("value"); val != nil {
			w.bindPatternIdentifiers(val)
		}
		return
	}
	count := pattern.NamedChildCount()
	for i := uint(0); i < count; i++ {
		if child := pattern.NamedChild(i); child != nil {
			w.bindPatternIdentifiers(child)
		}
	}
}

func findChildByType(node *ts.Node, grammarName string) *ts.Node {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child != nil && child.GrammarName() == grammarName {
			return child
		}
	}
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
