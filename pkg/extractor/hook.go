package extractor

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/symgraph/pkg/model"
)

// PatternHook is the framework-pattern extension point: it is invoked on
// every CallExpression and PropertyDefinition encountered during the walk
// so an implementation can recognize well-known factory patterns and
// annotate the resulting Symbol with framework metadata, optionally
// producing virtual child symbols. A hook never influences stable-id
// assignment: ids for virtual symbols follow the same rules as any other
// symbol.
type PatternHook interface {
	// OnCallExpression may return virtual child symbols (e.g. camelCased
	// event names) and metadata for the symbol the call initializes.
	OnCallExpression(call *ts.Node, source []byte) ([]VirtualSymbol, map[string]any)

	// OnPropertyDefinition is invoked on class property/field definitions.
	OnPropertyDefinition(node *ts.Node, source []byte) map[string]any

	// OnMemberProperty is consulted for member-expression chains `a.b`: if
	// it returns true, `b` is recorded as its own Reference rather than
	// being left for RecursiveResolver at query time.
	OnMemberProperty(objectName, propertyName string) bool
}

// VirtualSymbol is a symbol a hook synthesizes that has no dedicated
// declaration node of its own. The walker assigns its stable id.
type VirtualSymbol struct {
	Name              string
	Kind              model.SymbolKind
	ContainerName     string
	FullContainerPath string
	IsStatic          bool
	ParametersCount   int
	Location          model.Location
	Range             model.Range
	Metadata          map[string]any
}

// NoopHook is the default hook: it recognizes nothing and defers every
// property-chain lookup to RecursiveResolver.
type NoopHook struct{}

func (NoopHook) OnCallExpression(*ts.Node, []byte) ([]VirtualSymbol, map[string]any) {
	return nil, nil
}

func (NoopHook) OnPropertyDefinition(*ts.Node, []byte) map[string]any { return nil }

func (NoopHook) OnMemberProperty(string, string) bool { return false }

// EventsFactoryHook recognizes factory calls whose first argument carries
// an "events" object (for example createActionGroup) and expands the
// event keys into camelCased virtual child symbols, annotated so query
// surfaces can tell them apart from declared symbols.
type EventsFactoryHook struct {
	// Factories is the set of callee names to recognize.
	Factories map[string]bool
	// EventsKey defaults to "events".
	EventsKey string
}

// NewEventsFactoryHook recognizes the given factory callee names.
func NewEventsFactoryHook(factories ...string) *EventsFactoryHook {
	set := make(map[string]bool, len(factories))
	for _, f := range factories {
		set[f] = true
	}
	return &EventsFactoryHook{Factories: set, EventsKey: "events"}
}

func (h *EventsFactoryHook) OnCallExpression(call *ts.Node, source []byte) ([]VirtualSymbol, map[string]any) {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.GrammarName() != "identifier" {
		return nil, nil
	}
	name := string(callee.Utf8Text(source))
	if !h.Factories[name] {
		return nil, nil
	}

	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil, nil
	}
	obj := args.NamedChild(0)
	if obj == nil || obj.GrammarName() != "object" {
		return nil, nil
	}

	eventsKey := h.EventsKey
	if eventsKey == "" {
		eventsKey = "events"
	}

	var virtuals []VirtualSymbol
	count := obj.NamedChildCount()
	for i := uint(0); i < count; i++ {
		pair := obj.NamedChild(i)
		if pair == nil || pair.GrammarName() != "pair" {
			continue
		}
		keyNode := pair.ChildByFieldName("key")
		valueNode := pair.ChildByFieldName("value")
		if keyNode == nil || string(stripKeyQuotes(keyNode.Utf8Text(source))) != eventsKey {
			continue
		}
		if valueNode == nil || valueNode.GrammarName() != "object" {
			continue
		}
		virtuals = append(virtuals, h.eventSymbols(valueNode, source)...)
	}

	if len(virtuals) == 0 {
		return nil, nil
	}
	return virtuals, map[string]any{"framework": name}
}

func (h *EventsFactoryHook) eventSymbols(events *ts.Node, source []byte) []VirtualSymbol {
	var out []VirtualSymbol
	count := events.NamedChildCount()
	for i := uint(0); i < count; i++ {
		pair := events.NamedChild(i)
		if pair == nil || pair.GrammarName() != "pair" {
			continue
		}
		keyNode := pair.ChildByFieldName("key")
		if keyNode == nil {
			continue
		}
		key := string(stripKeyQuotes(keyNode.Utf8Text(source)))
		if key == "" {
			continue
		}
		pos := keyNode.StartPosition()
		end := keyNode.EndPosition()
		out = append(out, VirtualSymbol{
			Name: camelCase(key),
			Kind: model.KindProperty,
			Location: model.Location{
				Line:      uint32(pos.Row),
				Character: uint32(pos.Column),
			},
			Range: model.Range{
				StartLine:      uint32(pos.Row),
				StartCharacter: uint32(pos.Column),
				EndLine:        uint32(end.Row),
				EndCharacter:   uint32(end.Column),
			},
			Metadata: map[string]any{"event": key},
		})
	}
	return out
}

func (h *EventsFactoryHook) OnPropertyDefinition(*ts.Node, []byte) map[string]any { return nil }

func (h *EventsFactoryHook) OnMemberProperty(string, string) bool { return false }

func stripKeyQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// camelCase turns "Opened Dialog" or "opened-dialog" into "openedDialog";
// already-camelCased keys pass through unchanged.
func camelCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	})
	if len(parts) == 0 {
		return s
	}
	var sb strings.Builder
	for i, part := range parts {
		if i == 0 {
			sb.WriteString(strings.ToLower(part[:1]) + part[1:])
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return sb.String()
}
