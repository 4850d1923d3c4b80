package graph

import (
	"fmt"
	"strings"

	"symphony/internal/scope"
)

// CircularDependencyError names every symbol on a definition-order cycle
// so the report points at real code, not an internal state.
type CircularDependencyError struct {
	Members []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency among symbols: %s",
		strings.Join(e.Members, " -> "))
}

// Order returns the selected symbols with every dependency before its
// dependents. Ties keep discovery order, so output stays stable across
// runs. A dependency cycle aborts with its members named.
func (g *Graph) Order() ([]*scope.Symbol, error) {
	roots := make([]*scope.Symbol, len(g.Selected))
	copy(roots, g.Selected)
	sortSymbols(roots)

	o := &orderer{
		graph:   g,
		visited: make(map[*scope.Symbol]bool),
		onStack: make(map[*scope.Symbol]bool),
	}
	for _, sym := range roots {
		if !o.visited[sym] {
			if err := o.visit(sym, nil); err != nil {
				return nil, err
			}
		}
	}
	return o.out, nil
}

type orderer struct {
	graph   *Graph
	visited map[*scope.Symbol]bool
	onStack map[*scope.Symbol]bool
	out     []*scope.Symbol
}

func (o *orderer) visit(sym *scope.Symbol, path []*scope.Symbol) error {
	o.visited[sym] = true
	o.onStack[sym] = true
	path = append(path, sym)

	deps := make([]*scope.Symbol, len(o.graph.edges[sym]))
	copy(deps, o.graph.edges[sym])
	sortSymbols(deps)

	for _, next := range deps {
		if o.onStack[next] {
			return cycleError(path, next)
		}
		if !o.visited[next] {
			if err := o.visit(next, path); err != nil {
				return err
			}
		}
	}

	o.onStack[sym] = false
	o.out = append(o.out, sym)
	return nil
}

func cycleError(path []*scope.Symbol, start *scope.Symbol) error {
	begin := 0
	for i, sym := range path {
		if sym == start {
			begin = i
			break
		}
	}
	members := make([]string, 0, len(path)-begin)
	for _, sym := range path[begin:] {
		members = append(members, sym.Module+"."+sym.Name)
	}
	return &CircularDependencyError{Members: members}
}
