// Package graph selects the symbols a merge needs and orders them so
// every definition precedes its first use.
package graph

import (
	"sort"

	"symphony/internal/project"
	"symphony/internal/scope"
)

// Graph is the dependency closure of a program, seeded from the entry
// module's top-level code and __main__ guard. Only what the entry
// actually reaches is selected.
type Graph struct {
	// Selected are the emittable units in the closure.
	Selected []*scope.Symbol

	// ModulesUsed lists contributing modules in discovery order. Their
	// init statements and import bindings ride along with the merge even
	// when no individual unit was selected from them.
	ModulesUsed []string

	edges map[*scope.Symbol][]*scope.Symbol
}

// Build walks the resolved project into a closure. Including a module
// pulls its plain top-level assignments and the needs of its init
// statements, because both run at import time; functions and classes
// join only when referenced.
func Build(p *project.Project) *Graph {
	b := &closureBuilder{
		proj:     p,
		graph:    &Graph{edges: make(map[*scope.Symbol][]*scope.Symbol)},
		selected: make(map[*scope.Symbol]bool),
		included: make(map[string]bool),
	}

	b.includeModule(p.Entry)
	entry := p.Module(p.Entry)
	for _, ref := range entry.GuardRefs {
		if t, ok := entry.Targets[ref.Node]; ok {
			b.need(t.Sym)
		}
	}

	for len(b.queue) > 0 {
		sym := b.queue[0]
		b.queue = b.queue[1:]
		for _, dep := range sym.Deps {
			b.need(dep)
			// ordering edges only cross module boundaries: within one
			// module the original source order is already valid Python,
			// and keeping it legal permits mutual recursion
			if dep.Unit && dep.Module != sym.Module {
				b.edge(sym, dep)
			}
		}
	}

	for _, qname := range p.Order {
		if b.included[qname] {
			b.graph.ModulesUsed = append(b.graph.ModulesUsed, qname)
		}
	}
	return b.graph
}

// Deps returns the recorded ordering edges of a selected symbol.
func (g *Graph) Deps(sym *scope.Symbol) []*scope.Symbol {
	return g.edges[sym]
}

type closureBuilder struct {
	proj     *project.Project
	graph    *Graph
	selected map[*scope.Symbol]bool
	included map[string]bool
	queue    []*scope.Symbol
}

func (b *closureBuilder) includeModule(qname string) {
	if b.included[qname] {
		return
	}
	b.included[qname] = true
	cat := b.proj.Module(qname)
	if cat == nil {
		return
	}

	for _, sym := range cat.TopSymbols() {
		if sym.Unit && sym.Kind == scope.SymVariable {
			b.selectUnit(sym)
		}
	}
	for _, ref := range cat.TopRefs {
		if t, ok := cat.Targets[ref.Node]; ok {
			b.need(t.Sym)
		}
	}

	// importing a module runs it, so internal imports chain module
	// inclusion even when no symbol is picked from them
	for _, imp := range cat.Imports {
		if imp.External {
			continue
		}
		target := imp.ResolvedModule
		if b.proj.Module(imp.ImportModule) != nil {
			target = imp.ImportModule
		}
		if target != "" {
			b.includeModule(target)
		}
	}
}

func (b *closureBuilder) need(sym *scope.Symbol) {
	if sym == nil {
		return
	}
	if !sym.Unit {
		// carried by its module's init statements
		b.includeModule(sym.Module)
		return
	}
	b.selectUnit(sym)
	b.includeModule(sym.Module)
}

func (b *closureBuilder) selectUnit(sym *scope.Symbol) {
	if b.selected[sym] {
		return
	}
	b.selected[sym] = true
	b.graph.Selected = append(b.graph.Selected, sym)
	b.queue = append(b.queue, sym)
}

func (b *closureBuilder) edge(from, to *scope.Symbol) {
	for _, existing := range b.graph.edges[from] {
		if existing == to {
			return
		}
	}
	b.graph.edges[from] = append(b.graph.edges[from], to)
}

func sortSymbols(syms []*scope.Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		if syms[i].ModuleIndex != syms[j].ModuleIndex {
			return syms[i].ModuleIndex < syms[j].ModuleIndex
		}
		return syms[i].Order < syms[j].Order
	})
}
