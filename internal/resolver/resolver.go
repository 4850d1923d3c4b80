// Package resolver binds references to symbols: the lexical chain first,
// builtins last, and attribute chains walked through import bindings into
// other modules.
package resolver

import (
	"strings"

	"symphony/internal/parser"
	"symphony/internal/scope"
)

// ModuleSet exposes the catalogs of a loaded project. A nil ModuleSet
// resolves a module in isolation, treating every import as opaque; the
// audit pipeline runs that way.
type ModuleSet interface {
	Module(qname string) *scope.Catalog
}

// Unresolved is a reference no scope, import or builtin accounts for.
type Unresolved struct {
	Name string
	Line int
	Path string
}

type Resolver struct {
	modules  ModuleSet
	builtins map[string]bool
}

// New builds a resolver. extra names extend the builtin registry, for
// projects that rely on injected globals.
func New(modules ModuleSet, extra []string) *Resolver {
	builtins := make(map[string]bool, len(pythonBuiltins)+len(extra))
	for name := range pythonBuiltins {
		builtins[name] = true
	}
	for _, name := range extra {
		builtins[name] = true
	}
	return &Resolver{modules: modules, builtins: builtins}
}

// Resolve binds every reference in the catalog, filling cat.Targets and
// the Deps of module-scope symbols. The returned list holds references
// nothing accounts for, deduplicated by name and line.
func (r *Resolver) Resolve(cat *scope.Catalog) []Unresolved {
	var out []Unresolved
	seen := make(map[Unresolved]bool)

	resolve := func(refs []scope.Ref, owner *scope.Symbol) {
		for _, ref := range refs {
			tgt, miss := r.resolveRef(cat, ref)
			if miss != nil {
				if !seen[*miss] {
					seen[*miss] = true
					out = append(out, *miss)
				}
				continue
			}
			if tgt.Sym == nil {
				continue
			}
			cat.Targets[ref.Node] = tgt
			if owner != nil && tgt.Sym != owner && tgt.Sym.Kind != scope.SymImport {
				owner.Deps = append(owner.Deps, tgt.Sym)
			}
		}
	}

	for _, sym := range cat.TopSymbols() {
		resolve(sym.Refs, sym)
	}
	resolve(cat.TopRefs, nil)
	resolve(cat.GuardRefs, nil)
	return out
}

func (r *Resolver) resolveRef(cat *scope.Catalog, ref scope.Ref) (scope.Target, *Unresolved) {
	n := cat.Store.Node(ref.Node)
	head := n.Parts[0]

	sym := lookupChain(ref.Scope, head)
	if sym == nil {
		if r.builtins[head] {
			return scope.Target{}, nil
		}
		return scope.Target{}, &Unresolved{Name: head, Line: n.Line, Path: cat.Path}
	}

	if sym.Kind == scope.SymImport {
		return r.resolveImport(cat, sym, n)
	}
	// only module-scope symbols are merge units; locals need no record
	if sym.Scope.Kind != scope.ScopeModule {
		return scope.Target{}, nil
	}
	if sym.Kind == scope.SymClass && len(n.Parts) > 1 && !n.Write && !r.classMemberOK(cat, sym, n.Parts[1]) {
		return scope.Target{}, &Unresolved{
			Name: strings.Join(n.Parts[:2], "."),
			Line: n.Line,
			Path: cat.Path,
		}
	}
	return scope.Target{Sym: sym, Parts: 1}, nil
}

// classMemberOK validates an attribute against a class defined in the
// project. Accepted sources are the class body and self-attribute
// assignments in its methods. Decorated classes and classes with base
// classes are not checked, their members can come from anywhere.
func (r *Resolver) classMemberOK(cat *scope.Catalog, cls *scope.Symbol, attr string) bool {
	if cls.Inner == nil || strings.HasPrefix(attr, "__") {
		return true
	}
	owner := cat
	if r.modules != nil && cls.Module != cat.QName {
		if m := r.modules.Module(cls.Module); m != nil {
			owner = m
		}
	}
	if len(owner.Store.Node(cls.Node).Outer) > 0 {
		return true
	}
	if cls.Inner.Lookup(attr) != nil {
		return true
	}
	for _, ref := range cls.Refs {
		parts := owner.Store.Node(ref.Node).Parts
		if len(parts) >= 2 && parts[0] == "self" && parts[1] == attr {
			return true
		}
	}
	return writesAttr(owner, cls.Name, attr)
}

// writesAttr reports whether the class's own module assigns Cls.attr
// anywhere, which creates the member at runtime.
func writesAttr(owner *scope.Catalog, clsName, attr string) bool {
	match := func(refs []scope.Ref) bool {
		for _, ref := range refs {
			n := owner.Store.Node(ref.Node)
			if n.Write && len(n.Parts) >= 2 && n.Parts[0] == clsName && n.Parts[1] == attr {
				return true
			}
		}
		return false
	}
	if match(owner.TopRefs) || match(owner.GuardRefs) {
		return true
	}
	for _, sym := range owner.TopSymbols() {
		if match(sym.Refs) {
			return true
		}
	}
	return false
}

// resolveImport follows an import binding, walking any remaining
// attribute parts through module catalogs. External imports resolve
// without a target; the import block preserves their bindings.
func (r *Resolver) resolveImport(cat *scope.Catalog, sym *scope.Symbol, n *parser.Node) (scope.Target, *Unresolved) {
	// external bindings stay in the output, but their references are
	// still targeted so alias renames can reach them
	if r.modules == nil || sym.External {
		return scope.Target{Sym: sym, Parts: 1}, nil
	}
	cur := r.modules.Module(sym.ResolvedModule)
	if cur == nil {
		return scope.Target{Sym: sym, Parts: 1}, nil
	}

	if sym.ImportSymbol != "" {
		member, sub, ok := r.member(cur, sym.ImportSymbol, 0)
		if !ok {
			return scope.Target{}, &Unresolved{Name: n.Parts[0], Line: n.Line, Path: cat.Path}
		}
		if member != nil {
			if member.Kind == scope.SymClass && len(n.Parts) > 1 && !n.Write &&
				!r.classMemberOK(cat, member, n.Parts[1]) {
				return scope.Target{}, &Unresolved{
					Name: strings.Join(n.Parts[:2], "."),
					Line: n.Line,
					Path: cat.Path,
				}
			}
			return scope.Target{Sym: member, Parts: 1}, nil
		}
		if sub == nil {
			return scope.Target{}, nil
		}
		cur = sub
	}

	for consumed := 1; consumed < len(n.Parts); consumed++ {
		member, sub, ok := r.member(cur, n.Parts[consumed], 0)
		if !ok {
			return scope.Target{}, &Unresolved{
				Name: strings.Join(n.Parts[:consumed+1], "."),
				Line: n.Line,
				Path: cat.Path,
			}
		}
		if member != nil {
			if member.Kind == scope.SymClass && consumed+1 < len(n.Parts) && !n.Write &&
				!r.classMemberOK(cat, member, n.Parts[consumed+1]) {
				return scope.Target{}, &Unresolved{
					Name: strings.Join(n.Parts[:consumed+2], "."),
					Line: n.Line,
					Path: cat.Path,
				}
			}
			return scope.Target{Sym: member, Parts: consumed + 1}, nil
		}
		if sub == nil {
			return scope.Target{}, nil
		}
		cur = sub
	}
	// the reference denotes the module object itself
	return scope.Target{}, nil
}

// member looks up name in a module: a direct symbol, a submodule, or a
// re-export followed to its origin. ok is false when the module has no
// such member. A (nil, nil, true) result means the name reaches an
// external binding the merge leaves alone.
func (r *Resolver) member(cat *scope.Catalog, name string, depth int) (*scope.Symbol, *scope.Catalog, bool) {
	m := cat.Module.Lookup(name)
	if m == nil {
		if sub := r.modules.Module(cat.QName + "." + name); sub != nil {
			return nil, sub, true
		}
		return nil, nil, false
	}
	if m.Kind != scope.SymImport {
		return m, nil, true
	}
	if m.External || depth > 8 {
		return nil, nil, true
	}
	next := r.modules.Module(m.ResolvedModule)
	if next == nil {
		return nil, nil, true
	}
	if m.ImportSymbol == "" {
		return nil, next, true
	}
	return r.member(next, m.ImportSymbol, depth+1)
}

// lookupChain resolves a name from its innermost scope outward. Class
// scopes are visible only to code directly in the class body, and
// global/nonlocal declarations redirect the walk.
func lookupChain(start *scope.Scope, name string) *scope.Symbol {
	for sc := start; sc != nil; sc = sc.Parent {
		if sc.Kind == scope.ScopeClass && sc != start {
			continue
		}
		if sc.IsGlobal(name) {
			top := sc
			for top.Parent != nil {
				top = top.Parent
			}
			return top.Lookup(name)
		}
		if sc.IsNonlocal(name) {
			for cur := sc.Parent; cur != nil; cur = cur.Parent {
				if cur.Kind != scope.ScopeFunction {
					continue
				}
				if sym := cur.Lookup(name); sym != nil {
					return sym
				}
			}
			return nil
		}
		if sym := sc.Lookup(name); sym != nil {
			return sym
		}
	}
	return nil
}
