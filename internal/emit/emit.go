// Package emit renders the merged file. Definitions are copied from
// their original sources as byte spans, with renames and import
// collapses applied as span edits, so untouched code survives the merge
// byte for byte.
package emit

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"symphony/internal/graph"
	"symphony/internal/parser"
	"symphony/internal/project"
	"symphony/internal/scope"
)

// Render produces the merged output: __future__ imports, deduplicated
// external imports, ordered definitions with provenance comments, module
// init code in import order, and the entry's __main__ guard last.
func Render(p *project.Project, g *graph.Graph, ordered []*scope.Symbol) []byte {
	r := &renderer{
		proj:    p,
		edits:   make(map[string][]edit),
		emitted: make(map[string]bool),
	}
	for _, qname := range g.ModulesUsed {
		r.edits[qname] = collectEdits(p.Module(qname))
	}

	if len(p.Futures) > 0 {
		fmt.Fprintf(&r.buf, "from __future__ import %s\n\n", strings.Join(p.Futures, ", "))
	}

	for _, line := range externalImports(p, g) {
		r.buf.WriteString(line)
		r.buf.WriteByte('\n')
	}
	if r.buf.Len() > 0 {
		r.buf.WriteByte('\n')
	}

	for _, sym := range ordered {
		r.symbol(sym)
	}

	for _, qname := range initOrder(p, g.ModulesUsed) {
		r.initSection(qname)
	}

	entry := p.Module(p.Entry)
	if guard := entry.EntryGuard(); guard != parser.NoNode {
		n := entry.Store.Node(guard)
		r.buf.WriteString(r.apply(entry, n.Start, n.End))
		r.buf.WriteByte('\n')
	}

	out := bytes.TrimRight(r.buf.Bytes(), "\n")
	return append(out, '\n')
}

type renderer struct {
	proj    *project.Project
	buf     bytes.Buffer
	edits   map[string][]edit
	emitted map[string]bool
}

type edit struct {
	start, end uint
	text       string
}

func (r *renderer) symbol(sym *scope.Symbol) {
	cat := r.proj.Module(sym.Module)
	span := sym.Node
	if sym.Carrier != parser.NoNode {
		span = sym.Carrier
	}
	n := cat.Store.Node(span)
	key := fmt.Sprintf("%s:%d", sym.Module, n.Start)
	if r.emitted[key] {
		return
	}
	r.emitted[key] = true

	fmt.Fprintf(&r.buf, "# From %s\n", r.relPath(cat))
	r.buf.WriteString(r.apply(cat, n.Start, n.End))
	r.buf.WriteString("\n\n")
}

func (r *renderer) initSection(qname string) {
	cat := r.proj.Module(qname)
	var pending []parser.NodeID
	for _, id := range cat.InitStmts {
		n := cat.Store.Node(id)
		key := fmt.Sprintf("%s:%d", qname, n.Start)
		if r.emitted[key] {
			continue
		}
		r.emitted[key] = true
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return
	}

	fmt.Fprintf(&r.buf, "# From %s\n", r.relPath(cat))
	for _, id := range pending {
		n := cat.Store.Node(id)
		r.buf.WriteString(r.apply(cat, n.Start, n.End))
		r.buf.WriteByte('\n')
	}
	r.buf.WriteByte('\n')
}

// apply returns the span text with every edit inside it applied.
func (r *renderer) apply(cat *scope.Catalog, start, end uint) string {
	text := string(cat.Store.Source[start:end])
	for _, e := range r.edits[cat.QName] {
		if e.start < start || e.end > end {
			continue
		}
		text = text[:e.start-start] + e.text + text[e.end-start:]
	}
	return text
}

func (r *renderer) relPath(cat *scope.Catalog) string {
	rel, err := filepath.Rel(r.proj.Root, cat.Path)
	if err != nil {
		return cat.Path
	}
	return filepath.ToSlash(rel)
}

// collectEdits gathers reference rewrites and binding renames for one
// module, sorted back to front so applying them never shifts earlier
// offsets.
func collectEdits(cat *scope.Catalog) []edit {
	var out []edit
	seen := make(map[[2]uint]bool)

	add := func(start, end uint, text string) {
		if string(cat.Store.Source[start:end]) == text {
			return
		}
		key := [2]uint{start, end}
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, edit{start: start, end: end, text: text})
	}

	for refNode, tgt := range cat.Targets {
		n := cat.Store.Node(refNode)
		if tgt.Parts <= 1 {
			add(n.NameStart, n.NameEnd, tgt.Sym.Rendered())
			continue
		}
		consumed := uint(len(strings.Join(n.Parts[:tgt.Parts], ".")))
		add(n.Start, n.Start+consumed, tgt.Sym.Rendered())
	}

	for _, sym := range cat.TopSymbols() {
		if sym.NewName == "" {
			continue
		}
		for _, id := range sym.Bindings {
			bn := cat.Store.Node(id)
			if bn.NameEnd > bn.NameStart {
				add(bn.NameStart, bn.NameEnd, sym.NewName)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].start > out[j].start })
	return out
}

// externalImports renders the surviving import block: every external
// binding from contributing modules, first occurrence wins, aliases
// preserved or renamed.
func externalImports(p *project.Project, g *graph.Graph) []string {
	var lines []string
	seen := make(map[string]bool)

	for _, qname := range g.ModulesUsed {
		for _, sym := range p.Module(qname).TopSymbols() {
			if sym.Kind != scope.SymImport || !sym.External || sym.Carrier != parser.NoNode {
				continue
			}
			line := importLine(sym)
			if seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return lines
}

func importLine(sym *scope.Symbol) string {
	rendered := sym.Rendered()
	if sym.ImportSymbol != "" {
		if rendered != sym.ImportSymbol {
			return fmt.Sprintf("from %s import %s as %s", sym.ImportModule, sym.ImportSymbol, rendered)
		}
		return fmt.Sprintf("from %s import %s", sym.ImportModule, sym.ImportSymbol)
	}
	if rendered != topOf(sym.ImportModule) {
		return fmt.Sprintf("import %s as %s", sym.ImportModule, rendered)
	}
	return "import " + sym.ImportModule
}

func topOf(qname string) string {
	if i := strings.IndexByte(qname, '.'); i >= 0 {
		return qname[:i]
	}
	return qname
}

// initOrder sequences contributing modules the way Python would run
// them: a module's internal imports execute before its own body, so
// dependencies come first and the entry last.
func initOrder(p *project.Project, used []string) []string {
	inUse := make(map[string]bool, len(used))
	for _, q := range used {
		inUse[q] = true
	}
	visited := make(map[string]bool)
	var out []string

	var visit func(qname string)
	visit = func(qname string) {
		if visited[qname] || !inUse[qname] {
			return
		}
		visited[qname] = true
		for _, imp := range p.Module(qname).Imports {
			if imp.External {
				continue
			}
			target := imp.ResolvedModule
			if p.Module(imp.ImportModule) != nil {
				target = imp.ImportModule
			}
			visit(target)
		}
		out = append(out, qname)
	}

	visit(p.Entry)
	for _, q := range used {
		visit(q)
	}
	return out
}
