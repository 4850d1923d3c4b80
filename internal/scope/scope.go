// Package scope builds per-module symbol catalogs: a scope tree mirroring
// Python's lexical structure, insertion-ordered symbol tables, and the
// raw references later passes resolve against them.
package scope

import (
	"symphony/internal/parser"
)

type ScopeKind uint8

const (
	ScopeModule ScopeKind = iota
	ScopeClass
	ScopeFunction
	ScopeComprehension
)

type SymbolKind uint8

const (
	SymVariable SymbolKind = iota
	SymFunction
	SymClass
	SymImport
	SymParam
)

func (k SymbolKind) String() string {
	switch k {
	case SymVariable:
		return "variable"
	case SymFunction:
		return "function"
	case SymClass:
		return "class"
	case SymImport:
		return "import"
	case SymParam:
		return "parameter"
	}
	return "unknown"
}

// Ref is a read reference paired with the scope it occurs in, so the
// resolver can replay the lexical chain from the exact point of use.
type Ref struct {
	Node  parser.NodeID
	Scope *Scope
}

// Symbol is one bound name. Top-level symbols (module scope) are the
// units the merge selects, orders, renames and emits; nested symbols
// exist for resolution only.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Scope  *Scope
	Node   parser.NodeID
	Module string
	Path   string
	Line   int
	Order  int

	// Bindings are all nodes that bind this name, the defining node
	// first. Variable reassignment and redefinition append here so a
	// rename can rewrite every site.
	Bindings []parser.NodeID

	// Carrier is the enclosing statement when the definition lives inside
	// a compound statement (a def under "if", an import under "try").
	// NoNode when the definition stands alone.
	Carrier parser.NodeID

	// Unit marks symbols the merge emits individually: module-scope
	// functions and classes standing on their own, and variables bound by
	// plain module-level assignments. Everything else rides along with
	// its enclosing statement or the import block.
	Unit bool

	// import bindings
	ImportModule   string
	ImportSymbol   string
	ImportRelative int
	External       bool

	// ResolvedModule is the absolute module the import reaches, set at
	// load time for internal imports.
	ResolvedModule string

	// Inner is the body scope of functions and classes.
	Inner *Scope

	// Refs are all references inside this symbol's definition, including
	// nested functions and methods. Deps is filled by the resolver.
	Refs []Ref
	Deps []*Symbol

	// NewName is set by conflict resolution; empty means keep Name.
	NewName string

	// ModuleIndex orders symbols across modules (set at load time).
	ModuleIndex int
}

// Rendered returns the name the symbol carries in merged output.
func (s *Symbol) Rendered() string {
	if s.NewName != "" {
		return s.NewName
	}
	return s.Name
}

type Scope struct {
	Kind     ScopeKind
	Node     parser.NodeID
	Parent   *Scope
	Children []*Scope

	names     []string
	symbols   map[string]*Symbol
	globals   map[string]bool
	nonlocals map[string]bool
}

func newScope(kind ScopeKind, node parser.NodeID, parent *Scope) *Scope {
	s := &Scope{
		Kind:    kind,
		Node:    node,
		Parent:  parent,
		symbols: make(map[string]*Symbol),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Lookup finds a name in this scope only, not the chain.
func (s *Scope) Lookup(name string) *Symbol {
	return s.symbols[name]
}

// Names returns bound names in insertion order.
func (s *Scope) Names() []string {
	return s.names
}

func (s *Scope) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.symbols[name])
	}
	return out
}

// IsGlobal reports whether the scope declared the name global.
func (s *Scope) IsGlobal(name string) bool {
	return s.globals[name]
}

// IsNonlocal reports whether the scope declared the name nonlocal.
func (s *Scope) IsNonlocal(name string) bool {
	return s.nonlocals[name]
}

func (s *Scope) bind(sym *Symbol) {
	if _, seen := s.symbols[sym.Name]; !seen {
		s.names = append(s.names, sym.Name)
	}
	s.symbols[sym.Name] = sym
	sym.Scope = s
}

// Duplicate records a top-level name defined more than once where
// redefinition is not plain variable reassignment.
type Duplicate struct {
	Name  string
	Kind  SymbolKind
	Lines []int
}
