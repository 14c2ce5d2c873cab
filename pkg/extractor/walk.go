package extractor

import (
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/symgraph/pkg/intern"
	"github.com/gnana997/symgraph/pkg/model"
)

// declarationTypes mirrors tree-sitter-typescript/javascript grammar node
// kinds that introduce a named declaration.
var declarationTypes = map[string]model.SymbolKind{
	"function_declaration":   model.KindFunction,
	"class_declaration":      model.KindClass,
	"interface_declaration":  model.KindInterface,
	"type_alias_declaration": model.KindTypeAlias,
	"enum_declaration":       model.KindEnum,
}

// walker performs the extraction walk: classifying identifiers,
// tracking scopes, and collecting symbols/references/imports/re-exports.
type walker struct {
	uri      string
	source   []byte
	scopes   *ScopeTracker
	hook     PatternHook
	interner *intern.Table

	symbols    []model.Symbol
	references []model.Reference
	imports    []model.Import
	reExports  []model.ReExport

	idOrdinals map[string]int
}

func newWalker(uri string, source []byte, hook PatternHook, interner *intern.Table) *walker {
	if hook == nil {
		hook = NoopHook{}
	}
	if interner == nil {
		interner = intern.NewTable()
	}
	return &walker{
		uri:        interner.Intern(uri),
		source:     source,
		scopes:     NewScopeTracker(),
		hook:       hook,
		interner:   interner,
		idOrdinals: make(map[string]int),
	}
}

func (w *walker) text(n *ts.Node) string {
	if n == nil {
		return ""
	}
	return string(n.Utf8Text(w.source))
}

func (w *walker) locationOf(n *ts.Node) model.Location {
	pos := n.StartPosition()
	return model.Location{URI: w.uri, Line: uint32(pos.Row), Character: uint32(pos.Column)}
}

func (w *walker) rangeOf(n *ts.Node) model.Range {
	start := n.StartPosition()
	end := n.EndPosition()
	return model.Range{
		StartLine:      uint32(start.Row),
		StartCharacter: uint32(start.Column),
		EndLine:        uint32(end.Row),
		EndCharacter:   uint32(end.Column),
	}
}

// run walks the whole tree starting at root.
func (w *walker) run(root *ts.Node) {
	w.walk(root)
}

func (w *walker) walk(node *ts.Node) {
	if node == nil {
		return
	}

	switch node.GrammarName() {
	case "function_declaration", "generator_function_declaration":
		w.walkNamedScopeDecl(node, model.KindFunction)
		return

	case "class_declaration":
		w.walkClass(node)
		return

	case "interface_declaration", "type_alias_declaration", "enum_declaration":
		w.walkSimpleDecl(node, declarationTypes[node.GrammarName()])
		return

	case "method_definition":
		w.walkMethod(node)
		return

	case "public_field_definition", "property_signature":
		w.walkFieldDecl(node)
		return

	case "variable_declarator":
		w.walkVariableDeclarator(node)
		return

	case "arrow_function", "function_expression", "generator_function":
		w.scopes.Enter("")
		w.bindParameters(node.ChildByFieldName("parameters"))
		w.walkChildrenSkipping(node, "parameters")
		w.scopes.Exit()
		return

	case "import_statement":
		w.handleImportStatement(node)
		return

	case "export_statement":
		w.handleExportStatement(node)
		return

	case "member_expression":
		w.walkMemberExpression(node)
		return

	case "call_expression":
		w.walkCallExpression(node)
		return

	case "identifier", "shorthand_property_identifier", "type_identifier":
		w.recordReference(node)
		return
	}

	w.walkChildren(node)
}

func (w *walker) walkChildren(node *ts.Node) {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		w.walk(node.Child(i))
	}
}

func (w *walker) walkChildrenSkipping(node *ts.Node, skipField string) {
	skip := node.ChildByFieldName(skipField)
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child != nil && skip != nil && child.StartByte() == skip.StartByte() && child.EndByte() == skip.EndByte() {
			continue
		}
		w.walk(child)
	}
}

// walkNamedScopeDecl handles function declarations: record the Symbol,
// enter a named scope, bind parameters, walk the body.
func (w *walker) walkNamedScopeDecl(node *ts.Node, kind model.SymbolKind) {
	nameNode := node.ChildByFieldName("name")
	name := w.text(nameNode)
	if name == "" {
		w.scopes.Enter("")
		w.bindParameters(node.ChildByFieldName("parameters"))
		w.walkChildrenSkipping(node, "parameters")
		w.scopes.Exit()
		return
	}

	paramsNode := node.ChildByFieldName("parameters")
	paramCount := countParameters(paramsNode)

	w.addSymbol(nameNode, node, name, kind, false, paramCount)

	w.scopes.Enter(name)
	w.bindParameters(paramsNode)
	w.walkChildrenSkipping(node, "name")
	w.scopes.Exit()
}

func (w *walker) walkSimpleDecl(node *ts.Node, kind model.SymbolKind) {
	nameNode := node.ChildByFieldName("name")
	name := w.text(nameNode)
	if name != "" {
		w.addSymbol(nameNode, node, name, kind, false, 0)
	}
	w.walkChildrenSkipping(node, "name")
}

func (w *walker) walkClass(node *ts.Node) {
	nameNode := node.ChildByFieldName("name")
	name := w.text(nameNode)
	if name != "" {
		w.addSymbol(nameNode, node, name, model.KindClass, false, 0)
	}
	w.scopes.Enter(name)
	w.walkChildrenSkipping(node, "name")
	w.scopes.Exit()
}

func (w *walker) walkMethod(node *ts.Node) {
	nameNode := node.ChildByFieldName("name")
	name := w.text(nameNode)
	isStatic := hasModifierChild(node, "static")
	paramsNode := node.ChildByFieldName("parameters")
	paramCount := countParameters(paramsNode)

	if name != "" && !isComputed(node) {
		w.addSymbol(nameNode, node, name, model.KindMethod, isStatic, paramCount)
	}

	w.scopes.Enter(name)
	w.bindParameters(paramsNode)
	w.walkChildrenSkipping(node, "name")
	w.scopes.Exit()
}

func (w *walker) walkFieldDecl(node *ts.Node) {
	nameNode := node.ChildByFieldName("name")
	name := w.text(nameNode)
	if name != "" && !isComputed(node) {
		isStatic := hasModifierChild(node, "static")
		var meta map[string]any
		if m := w.hook.OnPropertyDefinition(node, w.source); m != nil {
			meta = m
		}
		sym := w.buildSymbol(nameNode, node, name, model.KindProperty, isStatic, 0)
		sym.Metadata = meta
		w.emit(sym)
	}
	w.walkChildrenSkipping(node, "name")
}

// walkVariableDeclarator handles `const x = ...` / `let y = ...`. The
// declarator's own scope-binding happens in the enclosing scope; its value
// expression is walked normally (function/arrow expressions there open
// their own nested scope). CommonJS require() initializers are captured as
// imports instead of plain variables.
func (w *walker) walkVariableDeclarator(node *ts.Node) {
	nameNode := node.ChildByFieldName("name")
	valueNode := node.ChildByFieldName("value")

	if spec, ok := requireSpecifier(valueNode, w.source); ok {
		w.handleRequireDeclarator(nameNode, spec)
		return
	}

	if nameNode != nil && nameNode.GrammarName() != "identifier" {
		// Destructuring pattern: bind each introduced identifier without
		// minting a symbol named after the whole pattern text.
		w.bindPatternIdentifiers(nameNode)
		if valueNode != nil {
			w.walk(valueNode)
		}
		return
	}

	name := w.text(nameNode)
	if name == "" {
		w.walkChildren(node)
		return
	}

	kind := model.KindVariable
	if declKind := enclosingDeclarationKeyword(node); declKind == "const" {
		kind = model.KindConstant
	}

	w.addSymbol(nameNode, node, name, kind, false, 0)
	w.scopes.Bind(name)

	if valueNode != nil {
		w.walk(valueNode)
	}
}

// walkMemberExpression records only the object head (`a` in `a.b.c`) as a
// Reference unless the framework hook opts into surfacing the property.
func (w *walker) walkMemberExpression(node *ts.Node) {
	object := node.ChildByFieldName("object")
	property := node.ChildByFieldName("property")

	w.walk(object)

	if property == nil {
		return
	}
	if property.GrammarName() != "property_identifier" && property.GrammarName() != "identifier" {
		w.walk(property)
		return
	}

	objectName := ""
	if object != nil && (object.GrammarName() == "identifier" || object.GrammarName() == "this") {
		objectName = w.text(object)
	}

	if w.hook.OnMemberProperty(objectName, w.text(property)) {
		w.recordReference(property)
	}
}

// walkCallExpression invokes the framework-pattern hook for each call, then
// continues walking arguments normally. Dynamic import() calls are captured
// as imports here since they are syntactically call expressions.
func (w *walker) walkCallExpression(node *ts.Node) {
	if w.recordDynamicImport(node) {
		return
	}

	virtualSymbols, _ := w.hook.OnCallExpression(node, w.source)
	for _, vs := range virtualSymbols {
		vs.Location.URI = w.uri
		id := w.disambiguate(stableID(w.uri, vs.FullContainerPath, vs.Name, vs.Kind, vs.IsStatic, vs.ParametersCount))
		w.symbols = append(w.symbols, model.Symbol{
			ID:                id,
			Name:              w.interner.Intern(vs.Name),
			Kind:              vs.Kind,
			Location:          vs.Location,
			Range:             vs.Range,
			ContainerName:     vs.ContainerName,
			FullContainerPath: vs.FullContainerPath,
			IsStatic:          vs.IsStatic,
			ParametersCount:   vs.ParametersCount,
			Metadata:          vs.Metadata,
		})
	}

	w.walkChildren(node)
}

// recordReference classifies a leaf identifier as a Reference, tagging
// scope locality.
func (w *walker) recordReference(node *ts.Node) {
	name := w.text(node)
	if name == "" || isReservedWord(name) {
		return
	}

	isLocal, scopeID := w.scopes.Resolve(name)

	ref := model.Reference{
		SymbolName:    w.interner.Intern(name),
		Location:      w.locationOf(node),
		Range:         w.rangeOf(node),
		ContainerName: w.interner.Intern(w.scopes.ContainerName()),
		ScopeID:       w.interner.Intern(scopeID),
		IsLocal:       isLocal,
	}
	w.references = append(w.references, ref)
}

func (w *walker) bindParameters(paramsNode *ts.Node) {
	if paramsNode == nil {
		return
	}
	count := paramsNode.NamedChildCount()
	for i := uint(0); i < count; i++ {
		param := paramsNode.NamedChild(i)
		if param == nil {
			continue
		}
		nameNode := param.ChildByFieldName("pattern")
		if nameNode == nil {
			nameNode = param.ChildByFieldName("name")
		}
		if nameNode == nil && (param.GrammarName() == "identifier") {
			nameNode = param
		}
		if nameNode == nil {
			continue
		}
		name := w.text(nameNode)
		if name == "" {
			continue
		}
		w.addSymbol(nameNode, param, name, model.KindParameter, false, 0)
		w.scopes.Bind(name)
	}
}

func (w *walker) addSymbol(nameNode, declNode *ts.Node, name string, kind model.SymbolKind, isStatic bool, paramCount int) {
	sym := w.buildSymbol(nameNode, declNode, name, kind, isStatic, paramCount)
	w.emit(sym)
}

func (w *walker) buildSymbol(nameNode, declNode *ts.Node, name string, kind model.SymbolKind, isStatic bool, paramCount int) model.Symbol {
	name = w.interner.Intern(name)
	containerName := w.interner.Intern(w.scopes.ContainerName())
	fullContainerPath := w.interner.Intern(w.scopes.ContainerPath())

	id := w.disambiguate(stableID(w.uri, fullContainerPath, name, kind, isStatic, paramCount))

	var rng model.Range
	var loc model.Location
	if declNode != nil {
		rng = w.rangeOf(declNode)
		loc = w.locationOf(declNode)
	} else {
		rng = w.rangeOf(nameNode)
		loc = w.locationOf(nameNode)
	}

	return model.Symbol{
		ID:                id,
		Name:              name,
		Kind:              kind,
		Location:          loc,
		Range:             rng,
		ContainerName:     containerName,
		FullContainerPath: fullContainerPath,
		IsStatic:          isStatic,
		ParametersCount:   paramCount,
	}
}

func (w *walker) emit(sym model.Symbol) {
	w.symbols = append(w.symbols, sym)
}

// disambiguate appends an ordinal suffix only when the exact same id was
// already assigned in this file (same qualified name AND same signature),
// so ids stay stable in document order for true collisions and untouched
// otherwise.
func (w *walker) disambiguate(id string) string {
	ord := w.idOrdinals[id]
	w.idOrdinals[id] = ord + 1
	if ord > 0 {
		return fmt.Sprintf("%s~%d", id, ord)
	}
	return id
}

func countParameters(paramsNode *ts.Node) int {
	if paramsNode == nil {
		return 0
	}
	return int(paramsNode.NamedChildCount())
}

func hasModifierChild(node *ts.Node, keyword string) bool {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child != nil && child.GrammarName() == keyword {
			return true
		}
	}
	return false
}

func isComputed(node *ts.Node) bool {
	nameNode := node.ChildByFieldName("name")
	return nameNode != nil && nameNode.GrammarName() == "computed_property_name"
}

// enclosingDeclarationKeyword walks up from a variable_declarator to the
// lexical_declaration/variable_declaration that introduced it and returns
// its leading keyword ("const", "let", or "var").
func enclosingDeclarationKeyword(node *ts.Node) string {
	parent := node.Parent()
	if parent == nil {
		return "let"
	}
	first := parent.Child(0)
	if first == nil {
		return "let"
	}
	return first.GrammarName()
}

var reservedWords = map[string]bool{
	"this": true, "super": true, "undefined": true, "null": true,
	"true": true, "false": true, "arguments": true,
}

func isReservedWord(name string) bool {
	return reservedWords[name]
}
