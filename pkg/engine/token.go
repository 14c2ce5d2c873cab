package engine

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// Token describes the identifier under a cursor position, with enough
// member-chain context for the query layer to choose between a plain
// definition lookup and the recursive property-chain path.
type Token struct {
	Name string

	// BaseName and Chain are set when the token sits inside a member
	// expression `base.p1.p2...`: Chain holds the property names from the
	// base up to and including this token.
	BaseName string
	Chain    []string

	// IsMemberProperty is true when the token is one of the property
	// links, not the base itself.
	IsMemberProperty bool
}

// TokenAt resolves the identifier at (line, character) in uri, or ok ==
// false if the position is not on an identifier.
func (e *Engine) TokenAt(uri string, line, character uint32) (Token, bool) {
	content, err := e.contents.Get(uri)
	if err != nil || len(content) == 0 {
		return Token{}, false
	}

	tree, err := e.parsers.ParseFile(content, uri)
	if err != nil {
		return Token{}, false
	}
	defer tree.Close()

	point := ts.Point{Row: uint(line), Column: uint(character)}
	node := tree.RootNode().NamedDescendantForPointRange(point, point)
	if node == nil {
		return Token{}, false
	}

	switch node.GrammarName() {
	case "identifier", "property_identifier", "shorthand_property_identifier", "type_identifier":
	default:
		return Token{}, false
	}

	tok := Token{Name: string(node.Utf8Text(content))}

	outer := outermostMemberExpression(node)
	if outer == nil {
		return tok, true
	}

	base, links := flattenMemberChain(outer, content)
	if base == "" {
		return tok, true
	}

	tok.BaseName = base
	for i, link := range links {
		if link.node.StartByte() == node.StartByte() {
			tok.Chain = chainNames(links[:i+1])
			tok.IsMemberProperty = true
			break
		}
	}
	return tok, true
}

type chainLink struct {
	name string
	node *ts.Node
}

func outermostMemberExpression(node *ts.Node) *ts.Node {
	var outer *ts.Node
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if cur.GrammarName() == "member_expression" {
			outer = cur
			continue
		}
		break
	}
	return outer
}

// flattenMemberChain turns a member_expression tree into its base
// identifier name and the ordered property links. A non-identifier base
// (a call, a parenthesized expression) yields "" and the caller falls
// back to plain lookup.
func flattenMemberChain(member *ts.Node, source []byte) (string, []chainLink) {
	object := member.ChildByFieldName("object")
	property := member.ChildByFieldName("property")
	if property == nil {
		return "", nil
	}

	link := chainLink{name: string(property.Utf8Text(source)), node: property}

	if object == nil {
		return "", nil
	}
	switch object.GrammarName() {
	case "identifier":
		return string(object.Utf8Text(source)), []chainLink{link}
	case "member_expression":
		base, links := flattenMemberChain(object, source)
		if base == "" {
			return "", nil
		}
		return base, append(links, link)
	default:
		return "", nil
	}
}

func chainNames(links []chainLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.name
	}
	return out
}
