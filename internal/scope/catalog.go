package scope

import (
	"strings"

	"symphony/internal/parser"
)

// Catalog is the complete symbol model of one module.
type Catalog struct {
	Path   string
	QName  string
	Store  *parser.Store
	Module *Scope

	// Imports lists every import binding at any depth, in source order.
	Imports []*Symbol

	// Futures collects __future__ feature names.
	Futures []string

	// Wildcards holds the lines of "from x import *" statements.
	Wildcards []int

	// Duplicates are top-level names defined more than once where the
	// redefinition is not plain variable reassignment.
	Duplicates []Duplicate

	// InitStmts are module-level statements with import-time effects that
	// no single symbol owns: calls, loops, try blocks. They are preserved
	// in source order when the module contributes to a merge.
	InitStmts []parser.NodeID

	// TopRefs are the references those init statements make.
	TopRefs []Ref

	// Guards are __main__ guard blocks; GuardRefs their references.
	Guards    []parser.NodeID
	GuardRefs []Ref

	// Targets maps resolved reference nodes to the internal symbols they
	// reach, filled by the resolver.
	Targets map[parser.NodeID]Target

	byNode map[parser.NodeID]*Scope
	order  int
}

// Target is where a resolved reference lands. Parts counts how many
// leading segments of the reference the symbol's name replaces: 1 for a
// plain name, more when an attribute chain collapses through module
// bindings.
type Target struct {
	Sym   *Symbol
	Parts int
}

// Build catalogs a parsed module. qname is the module's dotted name
// within its project.
func Build(store *parser.Store, qname string) *Catalog {
	c := &Catalog{
		Path:    store.Path,
		QName:   qname,
		Store:   store,
		Targets: make(map[parser.NodeID]Target),
		byNode:  make(map[parser.NodeID]*Scope),
	}
	c.Module = newScope(ScopeModule, store.Root(), nil)
	c.byNode[store.Root()] = c.Module

	w := &walker{c: c, store: store}
	for _, id := range store.Node(store.Root()).Children {
		w.top(id)
	}
	return c
}

// ScopeOf returns the scope a definition node opens, or the scope a
// scope-opening node belongs to. Constant-time.
func (c *Catalog) ScopeOf(id parser.NodeID) *Scope {
	return c.byNode[id]
}

// TopSymbols returns the module-scope symbols in definition order.
func (c *Catalog) TopSymbols() []*Symbol {
	return c.Module.Symbols()
}

// EntryGuard returns the first __main__ guard, or NoNode.
func (c *Catalog) EntryGuard() parser.NodeID {
	if len(c.Guards) == 0 {
		return parser.NoNode
	}
	return c.Guards[0]
}

type walker struct {
	c     *Catalog
	store *parser.Store
}

// top handles one module-level node.
func (w *walker) top(id parser.NodeID) {
	n := w.store.Node(id)
	switch n.Kind {
	case parser.KindStatement:
		if n.Doc {
			return
		}
		if w.pureAssignment(n) {
			w.assignUnit(id, n)
			return
		}
		w.c.InitStmts = append(w.c.InitStmts, id)
		for _, child := range n.Children {
			w.walkNode(child, w.c.Module, &w.c.TopRefs, id)
		}
	case parser.KindMainGuard:
		w.c.Guards = append(w.c.Guards, id)
		for _, child := range n.Children {
			w.walkNode(child, w.c.Module, &w.c.GuardRefs, id)
		}
	default:
		w.walkNode(id, w.c.Module, &w.c.TopRefs, parser.NoNode)
	}
}

// pureAssignment reports whether a statement is a plain assignment with
// no nested statements or definitions. Such statements become variable
// units; anything else stays init code.
func (w *walker) pureAssignment(n *parser.Node) bool {
	hasBinding := false
	for _, child := range n.Children {
		switch w.store.Node(child).Kind {
		case parser.KindAssign:
			hasBinding = true
		case parser.KindName, parser.KindAttribute,
			parser.KindLambda, parser.KindComprehension:
		default:
			return false
		}
	}
	return hasBinding
}

// assignUnit binds the targets of a plain module-level assignment as
// emittable variable symbols sharing the statement as carrier.
func (w *walker) assignUnit(id parser.NodeID, n *parser.Node) {
	var refs []Ref
	var bound []*Symbol
	for _, child := range n.Children {
		cn := w.store.Node(child)
		if cn.Kind == parser.KindAssign {
			sym := w.bindVar(child, w.c.Module, id)
			sym.Unit = true
			bound = append(bound, sym)
			continue
		}
		w.walkNode(child, w.c.Module, &refs, id)
	}
	for _, sym := range bound {
		sym.Refs = append(sym.Refs, refs...)
	}
}

// walkNode dispatches one node: bindings go to scope, references to
// sink, definitions open child scopes.
func (w *walker) walkNode(id parser.NodeID, sc *Scope, sink *[]Ref, carrier parser.NodeID) {
	n := w.store.Node(id)
	switch n.Kind {
	case parser.KindImport, parser.KindFromImport:
		w.importSyms(id, sc, carrier)
	case parser.KindFunction:
		w.def(id, SymFunction, sc, sink, carrier)
	case parser.KindClass:
		w.def(id, SymClass, sc, sink, carrier)
	case parser.KindAssign:
		w.bindVar(id, sc, carrier)
	case parser.KindName, parser.KindAttribute:
		*sink = append(*sink, Ref{Node: id, Scope: sc})
	case parser.KindGlobal, parser.KindNonlocal:
		// scope redirection was applied by prescan; the declared names
		// still resolve as references so renames can rewrite them
		for _, child := range n.Children {
			*sink = append(*sink, Ref{Node: child, Scope: sc})
		}
	case parser.KindLambda:
		w.closure(id, ScopeFunction, sc, sink)
	case parser.KindComprehension:
		w.closure(id, ScopeComprehension, sc, sink)
	case parser.KindStatement, parser.KindMainGuard:
		for _, child := range n.Children {
			w.walkNode(child, sc, sink, carrier)
		}
	}
}

func (w *walker) importSyms(id parser.NodeID, sc *Scope, carrier parser.NodeID) {
	n := w.store.Node(id)
	if n.Kind == parser.KindImport {
		name := n.Parts[0]
		if n.Alias != "" {
			name = n.Alias
		}
		sym := w.define(sc, SymImport, name, id, carrier, n.Line)
		sym.ImportModule = n.Name
		w.c.Imports = append(w.c.Imports, sym)
		return
	}

	if n.Name == "__future__" {
		for _, item := range n.Children {
			w.c.Futures = append(w.c.Futures, w.store.Node(item).Name)
		}
		return
	}
	if n.Wildcard {
		w.c.Wildcards = append(w.c.Wildcards, n.Line)
		return
	}
	for _, item := range n.Children {
		in := w.store.Node(item)
		name := in.Name
		if in.Alias != "" {
			name = in.Alias
		}
		sym := w.define(sc, SymImport, name, item, carrier, in.Line)
		sym.ImportModule = n.Name
		sym.ImportSymbol = in.Name
		sym.ImportRelative = n.Relative
		w.c.Imports = append(w.c.Imports, sym)
	}
}

// def catalogs a function or class definition: a symbol in the current
// scope, a child scope for the body, and references rolled up to the
// nearest module-scope owner.
func (w *walker) def(id parser.NodeID, kind SymbolKind, sc *Scope, sink *[]Ref, carrier parser.NodeID) {
	n := w.store.Node(id)
	sym := w.define(sc, kind, n.Name, id, carrier, n.Line)
	sym.Unit = sc == w.c.Module && carrier == parser.NoNode

	inner := ScopeFunction
	if kind == SymClass {
		inner = ScopeClass
	}
	body := newScope(inner, id, sc)
	w.c.byNode[id] = body
	if sym.Inner == nil {
		sym.Inner = body
	}

	// module-scope symbols own their references; nested definitions roll
	// up to the enclosing owner
	refSink := sink
	if sc == w.c.Module {
		refSink = &sym.Refs
	}

	// decorators, defaults, annotations and bases evaluate in the
	// enclosing scope
	for _, outer := range n.Outer {
		w.walkNode(outer, sc, refSink, carrier)
	}
	for _, param := range n.Params {
		pn := w.store.Node(param)
		w.define(body, SymParam, pn.Name, param, parser.NoNode, pn.Line)
	}

	w.prescan(n.Children, body)
	for _, child := range n.Children {
		w.walkNode(child, body, refSink, carrier)
	}

	// a definition carried by an init statement or guard executes with
	// that statement, so its needs surface there too
	if sc == w.c.Module && carrier != parser.NoNode {
		*sink = append(*sink, sym.Refs...)
	}
}

// closure handles lambdas and comprehensions: a child scope whose
// references still roll up to the enclosing owner.
func (w *walker) closure(id parser.NodeID, kind ScopeKind, sc *Scope, sink *[]Ref) {
	n := w.store.Node(id)
	body := newScope(kind, id, sc)
	w.c.byNode[id] = body

	for _, outer := range n.Outer {
		w.walkNode(outer, sc, sink, parser.NoNode)
	}
	for _, param := range n.Params {
		pn := w.store.Node(param)
		w.define(body, SymParam, pn.Name, param, parser.NoNode, pn.Line)
	}
	for _, child := range n.Children {
		w.walkNode(child, body, sink, parser.NoNode)
	}
}

// prescan applies global/nonlocal declarations, which cover their whole
// scope regardless of position. Nested scopes are not entered.
func (w *walker) prescan(children []parser.NodeID, sc *Scope) {
	for _, id := range children {
		n := w.store.Node(id)
		switch n.Kind {
		case parser.KindGlobal:
			if sc.globals == nil {
				sc.globals = make(map[string]bool)
			}
			for _, name := range n.Parts {
				sc.globals[name] = true
			}
		case parser.KindNonlocal:
			if sc.nonlocals == nil {
				sc.nonlocals = make(map[string]bool)
			}
			for _, name := range n.Parts {
				sc.nonlocals[name] = true
			}
		case parser.KindStatement:
			w.prescan(n.Children, sc)
		}
	}
}

// bindVar binds an assignment target, honoring global and nonlocal
// redirection.
func (w *walker) bindVar(id parser.NodeID, sc *Scope, carrier parser.NodeID) *Symbol {
	n := w.store.Node(id)
	target := sc
	switch {
	case sc.IsGlobal(n.Name):
		target = w.c.Module
	case sc.IsNonlocal(n.Name):
		target = enclosingFunction(sc, n.Name)
	}
	return w.define(target, SymVariable, n.Name, id, carrier, n.Line)
}

// enclosingFunction finds the nearest outer function scope binding name,
// falling back to the nearest outer function scope.
func enclosingFunction(sc *Scope, name string) *Scope {
	var fallback *Scope
	for cur := sc.Parent; cur != nil; cur = cur.Parent {
		if cur.Kind != ScopeFunction {
			continue
		}
		if fallback == nil {
			fallback = cur
		}
		if cur.Lookup(name) != nil {
			return cur
		}
	}
	if fallback != nil {
		return fallback
	}
	return sc
}

// define binds a name, keeping the first binding as the symbol of record
// and flagging top-level redefinitions that are not variable
// reassignment.
func (w *walker) define(sc *Scope, kind SymbolKind, name string, node, carrier parser.NodeID, line int) *Symbol {
	if existing := sc.Lookup(name); existing != nil {
		if sc == w.c.Module && !w.rebindable(existing, kind, node, carrier) {
			w.recordDuplicate(existing, line)
		}
		existing.Bindings = append(existing.Bindings, node)
		return existing
	}
	sym := &Symbol{
		Name:     name,
		Kind:     kind,
		Node:     node,
		Bindings: []parser.NodeID{node},
		Carrier:  carrier,
		Module:   w.c.QName,
		Path:     w.c.Path,
		Line:     line,
		Order:    w.c.order,
	}
	w.c.order++
	sc.bind(sym)
	return sym
}

// rebindable: re-assigning a variable is normal Python, and an import
// may bind an already bound name when one side sits under a carrier
// statement (the try/except fallback pattern) or when a plain import
// extends an already bound package, as in "import a" then "import a.b".
// Everything else clashing at top level is a duplicate.
func (w *walker) rebindable(existing *Symbol, kind SymbolKind, node, carrier parser.NodeID) bool {
	if existing.Kind == SymVariable && kind == SymVariable {
		return true
	}
	if existing.Kind != SymImport || kind != SymImport {
		return false
	}
	if existing.Carrier != parser.NoNode || carrier != parser.NoNode {
		return true
	}
	n := w.store.Node(node)
	return n.Kind == parser.KindImport && n.Alias == "" &&
		existing.ImportSymbol == "" && existing.Name == topOf(existing.ImportModule) &&
		n.Name != existing.ImportModule
}

func topOf(qname string) string {
	if i := strings.IndexByte(qname, '.'); i >= 0 {
		return qname[:i]
	}
	return qname
}

func (w *walker) recordDuplicate(sym *Symbol, line int) {
	for i := range w.c.Duplicates {
		if w.c.Duplicates[i].Name == sym.Name {
			w.c.Duplicates[i].Lines = append(w.c.Duplicates[i].Lines, line)
			return
		}
	}
	w.c.Duplicates = append(w.c.Duplicates, Duplicate{
		Name:  sym.Name,
		Kind:  sym.Kind,
		Lines: []int{sym.Line, line},
	})
}
