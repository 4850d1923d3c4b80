// Package rename resolves name collisions between merged modules. Names
// stay untouched unless two modules claim the same one; then every
// claimant takes a module-qualified name, leaving no bare binding of
// the contested name behind.
package rename

import (
	"fmt"
	"sort"
	"strings"

	"symphony/internal/graph"
	"symphony/internal/project"
	"symphony/internal/scope"
)

// occupant is one claim on a top-level name in the merged output.
// Identical external imports from several modules share one occupant;
// the extras ride along as shadows and take the same rename.
type occupant struct {
	sym     *scope.Symbol
	shadows []*scope.Symbol
}

// Apply assigns qualified names to all claimants of a contested name,
// in module discovery order so suffix assignment is deterministic.
// Returns the number of renamed bindings.
func Apply(g *graph.Graph, p *project.Project) int {
	selected := make(map[*scope.Symbol]bool, len(g.Selected))
	for _, sym := range g.Selected {
		selected[sym] = true
	}

	groups := make(map[string][]*occupant)
	external := make(map[string]*occupant)
	var names []string

	claim := func(name string, occ *occupant) {
		if _, seen := groups[name]; !seen {
			names = append(names, name)
		}
		groups[name] = append(groups[name], occ)
	}

	for _, qname := range g.ModulesUsed {
		for _, sym := range p.Module(qname).TopSymbols() {
			switch {
			case sym.Kind == scope.SymImport:
				if !sym.External {
					// internal imports dissolve during the merge
					continue
				}
				key := sym.Name + "\x00" + sym.ImportModule + "\x00" + sym.ImportSymbol
				if occ, ok := external[key]; ok {
					occ.shadows = append(occ.shadows, sym)
					continue
				}
				occ := &occupant{sym: sym}
				external[key] = occ
				claim(sym.Name, occ)
			case sym.Unit:
				if selected[sym] {
					claim(sym.Name, &occupant{sym: sym})
				}
			default:
				// carried bindings are emitted with their statements
				claim(sym.Name, &occupant{sym: sym})
			}
		}
	}

	used := make(map[string]bool, len(names))
	for _, name := range names {
		used[name] = true
	}

	renamed := 0
	for _, name := range names {
		occs := groups[name]
		if len(occs) < 2 {
			continue
		}
		sort.SliceStable(occs, func(i, j int) bool {
			if occs[i].sym.ModuleIndex != occs[j].sym.ModuleIndex {
				return occs[i].sym.ModuleIndex < occs[j].sym.ModuleIndex
			}
			return occs[i].sym.Order < occs[j].sym.Order
		})
		for _, occ := range occs {
			newName := qualified(occ.sym.Module, name, used)
			used[newName] = true
			occ.sym.NewName = newName
			for _, shadow := range occ.shadows {
				shadow.NewName = newName
			}
			renamed++
		}
	}
	return renamed
}

// qualified derives the replacement name, suffixing only when even the
// qualified form is taken.
func qualified(module, name string, used map[string]bool) string {
	base := moduleKey(module) + "_" + name
	candidate := base
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
	return candidate
}

func moduleKey(qname string) string {
	return strings.ReplaceAll(qname, ".", "_")
}
