// Package project loads a multi-file Python program: the entry module,
// every internal module reachable through its imports, and the
// resolution of those imports to absolute module names.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"symphony/internal/parser"
	"symphony/internal/scope"
)

// Project is a loaded program. Modules maps absolute dotted names to
// catalogs; Order preserves discovery order starting at the entry.
type Project struct {
	Root    string
	Entry   string
	Modules map[string]*scope.Catalog
	Order   []string

	// Futures is the union of __future__ features across all modules,
	// first occurrence first.
	Futures []string

	packages map[string]bool
}

// Module implements the resolver's module set.
func (p *Project) Module(qname string) *scope.Catalog { return p.Modules[qname] }

// Catalogs returns the loaded modules in discovery order.
func (p *Project) Catalogs() []*scope.Catalog {
	out := make([]*scope.Catalog, 0, len(p.Order))
	for _, qname := range p.Order {
		out = append(out, p.Modules[qname])
	}
	return out
}

// IsPackage reports whether the module is a package __init__.
func (p *Project) IsPackage(qname string) bool { return p.packages[qname] }

// Load parses the entry file and follows its internal imports
// transitively. Modules matching an exclude pattern are left as external
// imports. Wildcard and dynamic imports abort the load.
func Load(ps *parser.Parser, entryPath, root string, excludes []glob.Glob) (*Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	entryPath, err = filepath.Abs(entryPath)
	if err != nil {
		return nil, fmt.Errorf("resolving entry path: %w", err)
	}

	entryQ, entryPkg, err := moduleName(root, entryPath)
	if err != nil {
		return nil, err
	}

	l := &loader{
		parser:   ps,
		root:     root,
		excludes: excludes,
		proj: &Project{
			Root:     root,
			Entry:    entryQ,
			Modules:  make(map[string]*scope.Catalog),
			packages: make(map[string]bool),
		},
	}

	if err := l.loadFile(entryPath, entryQ, entryPkg); err != nil {
		return nil, err
	}
	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		if _, done := l.proj.Modules[next]; done {
			continue
		}
		path, isPkg, ok := l.resolvePath(next)
		if !ok {
			continue
		}
		if err := l.loadFile(path, next, isPkg); err != nil {
			return nil, err
		}
	}

	l.collectFutures()
	return l.proj, nil
}

type loader struct {
	parser   *parser.Parser
	root     string
	excludes []glob.Glob
	proj     *Project
	queue    []string
}

func (l *loader) loadFile(path, qname string, isPkg bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading module %s: %w", qname, err)
	}
	store, err := l.parser.ParseFile(path, content)
	if err != nil {
		return err
	}
	if len(store.Dynamics) > 0 {
		d := store.Dynamics[0]
		return &UnsupportedConstructError{
			Path:      path,
			Line:      d.Line,
			Construct: "dynamic import (" + d.Name + ")",
		}
	}

	cat := scope.Build(store, qname)
	if len(cat.Wildcards) > 0 {
		return &UnsupportedConstructError{
			Path:      path,
			Line:      cat.Wildcards[0],
			Construct: "wildcard import",
		}
	}

	idx := len(l.proj.Order)
	for _, sym := range cat.TopSymbols() {
		sym.ModuleIndex = idx
	}
	l.proj.Modules[qname] = cat
	l.proj.Order = append(l.proj.Order, qname)
	if isPkg {
		l.proj.packages[qname] = true
	}

	return l.scanImports(cat, isPkg)
}

// scanImports classifies each import binding as internal or external and
// queues internal targets for loading.
func (l *loader) scanImports(cat *scope.Catalog, isPkg bool) error {
	for _, imp := range cat.Imports {
		var err error
		switch {
		case imp.ImportRelative > 0:
			err = l.relativeImport(cat, imp, isPkg)
		case imp.ImportSymbol != "":
			err = l.fromImport(cat, imp)
		default:
			err = l.plainImport(cat, imp)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) relativeImport(cat *scope.Catalog, imp *scope.Symbol, isPkg bool) error {
	base, ok := relativeBase(cat.QName, isPkg, imp.ImportRelative)
	if !ok {
		return &MissingModuleError{
			Module: strings.Repeat(".", imp.ImportRelative) + imp.ImportModule,
			From:   cat.Path,
			Line:   imp.Line,
		}
	}

	moduleQ := imp.ImportModule
	if base != "" && moduleQ != "" {
		moduleQ = base + "." + moduleQ
	} else if base != "" {
		moduleQ = base
	}

	if moduleQ == "" {
		// "from . import x" at the project root: the binding denotes the
		// sibling module itself
		if !l.exists(imp.ImportSymbol) {
			return &MissingModuleError{
				Module: "." + imp.ImportSymbol,
				From:   cat.Path,
				Line:   imp.Line,
			}
		}
		imp.ResolvedModule = imp.ImportSymbol
		imp.ImportSymbol = ""
		l.queue = append(l.queue, imp.ResolvedModule)
		return nil
	}

	if !l.exists(moduleQ) {
		return &MissingModuleError{
			Module: strings.Repeat(".", imp.ImportRelative) + imp.ImportModule,
			From:   cat.Path,
			Line:   imp.Line,
		}
	}
	imp.ResolvedModule = moduleQ
	l.queue = append(l.queue, moduleQ)
	if imp.ImportSymbol != "" && l.exists(moduleQ+"."+imp.ImportSymbol) {
		l.queue = append(l.queue, moduleQ+"."+imp.ImportSymbol)
	}
	return nil
}

func (l *loader) fromImport(cat *scope.Catalog, imp *scope.Symbol) error {
	moduleQ := imp.ImportModule
	if l.exists(moduleQ) {
		imp.ResolvedModule = moduleQ
		l.queue = append(l.queue, moduleQ)
		l.queuePrefixes(moduleQ)
		if l.exists(moduleQ + "." + imp.ImportSymbol) {
			l.queue = append(l.queue, moduleQ+"."+imp.ImportSymbol)
		}
		return nil
	}
	if l.exists(topOf(moduleQ)) {
		return &MissingModuleError{Module: moduleQ, From: cat.Path, Line: imp.Line}
	}
	imp.External = true
	return nil
}

func (l *loader) plainImport(cat *scope.Catalog, imp *scope.Symbol) error {
	full := imp.ImportModule
	if l.exists(full) {
		top := topOf(full)
		if imp.Name == top {
			imp.ResolvedModule = top
		} else {
			// aliased: the binding denotes the full dotted module
			imp.ResolvedModule = full
		}
		l.queue = append(l.queue, full)
		l.queuePrefixes(full)
		return nil
	}
	if l.exists(topOf(full)) {
		return &MissingModuleError{Module: full, From: cat.Path, Line: imp.Line}
	}
	imp.External = true
	return nil
}

func (l *loader) queuePrefixes(qname string) {
	parts := strings.Split(qname, ".")
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		if l.exists(prefix) {
			l.queue = append(l.queue, prefix)
		}
	}
}

func (l *loader) exists(qname string) bool {
	if qname == "" {
		return false
	}
	_, _, ok := l.resolvePath(qname)
	return ok
}

func (l *loader) resolvePath(qname string) (string, bool, bool) {
	base := filepath.Join(l.root, filepath.FromSlash(strings.ReplaceAll(qname, ".", "/")))
	if fi, err := os.Stat(base + ".py"); err == nil && !fi.IsDir() {
		if l.excluded(base + ".py") {
			return "", false, false
		}
		return base + ".py", false, true
	}
	init := filepath.Join(base, "__init__.py")
	if _, err := os.Stat(init); err == nil {
		if l.excluded(init) {
			return "", false, false
		}
		return init, true, true
	}
	return "", false, false
}

func (l *loader) excluded(path string) bool {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range l.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (l *loader) collectFutures() {
	seen := make(map[string]bool)
	for _, qname := range l.proj.Order {
		for _, feature := range l.proj.Modules[qname].Futures {
			if !seen[feature] {
				seen[feature] = true
				l.proj.Futures = append(l.proj.Futures, feature)
			}
		}
	}
}

func topOf(qname string) string {
	if i := strings.IndexByte(qname, '.'); i >= 0 {
		return qname[:i]
	}
	return qname
}

// relativeBase strips relative-import dots from a module's own name.
// Inside a package __init__, one dot already means the package itself.
func relativeBase(qname string, isPkg bool, level int) (string, bool) {
	var parts []string
	if qname != "" {
		parts = strings.Split(qname, ".")
	}
	drop := level
	if isPkg {
		drop = level - 1
	}
	if drop > len(parts) {
		return "", false
	}
	return strings.Join(parts[:len(parts)-drop], "."), true
}

// moduleName derives the dotted module name of a file, skipping leading
// directories that are not packages.
func moduleName(root, path string) (string, bool, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false, fmt.Errorf("entry %s is outside project root %s", path, root)
	}

	parts := strings.Split(rel, string(os.PathSeparator))
	start := 0
	for i := 0; i < len(parts)-1; i++ {
		marker := filepath.Join(root, filepath.Join(parts[:i+1]...), "__init__.py")
		if _, err := os.Stat(marker); os.IsNotExist(err) {
			start = i + 1
		} else {
			break
		}
	}
	parts = parts[start:]

	last := strings.TrimSuffix(parts[len(parts)-1], ".py")
	if last == "__init__" {
		return strings.Join(parts[:len(parts)-1], "."), true, nil
	}
	parts[len(parts)-1] = last
	return strings.Join(parts, "."), false, nil
}
