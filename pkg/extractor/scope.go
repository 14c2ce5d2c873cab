package extractor

import (
	"strings"

	"github.com/gnana997/symgraph/pkg/model"
)

// scopeFrame is one lexical scope entered during the AST walk: a function,
// method, arrow function, or class body.
type scopeFrame struct {
	name     string // enclosing declaration name, "" for anonymous functions
	bindings map[string]bool
}

// ScopeTracker tracks lexical scopes during the AST walk so references can
// be classified local-vs-global and tagged with the canonical scope id
// their binding belongs to.
type ScopeTracker struct {
	stack []*scopeFrame
}

// NewScopeTracker returns a tracker starting at file top level.
func NewScopeTracker() *ScopeTracker {
	return &ScopeTracker{stack: make([]*scopeFrame, 0, 8)}
}

// Enter pushes a new scope named by the enclosing declaration (or "" for
// anonymous functions/arrows).
func (t *ScopeTracker) Enter(name string) {
	t.stack = append(t.stack, &scopeFrame{name: name, bindings: make(map[string]bool)})
}

// Exit pops the current scope.
func (t *ScopeTracker) Exit() {
	if len(t.stack) == 0 {
		return
	}
	t.stack = t.stack[:len(t.stack)-1]
}

// Bind records name as introduced in the current scope (a parameter or a
// local declaration).
func (t *ScopeTracker) Bind(name string) {
	if len(t.stack) == 0 {
		return
	}
	t.stack[len(t.stack)-1].bindings[name] = true
}

// CurrentScopeID joins the enclosing declaration names with "::", or
// returns the global scope id at file top level.
func (t *ScopeTracker) CurrentScopeID() string {
	if len(t.stack) == 0 {
		return model.GlobalScopeID
	}
	parts := make([]string, 0, len(t.stack))
	for _, f := range t.stack {
		if f.name != "" {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return model.GlobalScopeID
	}
	return strings.Join(parts, "::")
}

// Resolve reports whether name was bound in the current scope chain
// (innermost-first) and, if so, the scope id of the binding scope.
func (t *ScopeTracker) Resolve(name string) (isLocal bool, scopeID string) {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].bindings[name] {
			return true, t.scopeIDUpTo(i)
		}
	}
	return false, model.GlobalScopeID
}

func (t *ScopeTracker) scopeIDUpTo(idx int) string {
	parts := make([]string, 0, idx+1)
	for i := 0; i <= idx; i++ {
		if t.stack[i].name != "" {
			parts = append(parts, t.stack[i].name)
		}
	}
	if len(parts) == 0 {
		return model.GlobalScopeID
	}
	return strings.Join(parts, "::")
}

// ContainerPath returns the dotted qualified path of the enclosing named
// scopes ("" at file top level), used as Symbol.FullContainerPath. Scope
// ids join with "::"; container paths join with "." per the data model.
func (t *ScopeTracker) ContainerPath() string {
	parts := make([]string, 0, len(t.stack))
	for _, f := range t.stack {
		if f.name != "" {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, ".")
}

// ContainerName returns the nearest enclosing named scope, used as
// Symbol.ContainerName / Reference.ContainerName.
func (t *ScopeTracker) ContainerName() string {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].name != "" {
			return t.stack[i].name
		}
	}
	return ""
}
