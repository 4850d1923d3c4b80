// Package merge drives the whole pipeline: load, resolve, select,
// order, rename, render.
package merge

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"

	"symphony/internal/emit"
	"symphony/internal/graph"
	"symphony/internal/observability"
	"symphony/internal/parser"
	"symphony/internal/project"
	"symphony/internal/rename"
	"symphony/internal/resolver"
)

// DuplicateDefinitionError reports a top-level name defined twice in one
// module where redefinition is not variable reassignment.
type DuplicateDefinitionError struct {
	Path  string
	Name  string
	Lines []int
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("%s: duplicate definition of %q (lines %v)", e.Path, e.Name, e.Lines)
}

// UnresolvedReferenceError aborts a merge whose output would raise
// NameError at runtime.
type UnresolvedReferenceError struct {
	Misses []resolver.Unresolved
}

func (e *UnresolvedReferenceError) Error() string {
	first := e.Misses[0]
	if len(e.Misses) == 1 {
		return fmt.Sprintf("unresolved reference %q at %s:%d", first.Name, first.Path, first.Line)
	}
	return fmt.Sprintf("%d unresolved references, first %q at %s:%d",
		len(e.Misses), first.Name, first.Path, first.Line)
}

type Options struct {
	Excludes      []glob.Glob
	ExtraBuiltins []string
}

// Result carries the rendered output and the counts the run history and
// metrics record.
type Result struct {
	Output  []byte
	Modules int
	Symbols int
	Renamed int
}

// Run merges the program rooted at entryPath into one file.
func Run(ps *parser.Parser, entryPath, root string, opts Options) (*Result, error) {
	start := time.Now()
	p, err := project.Load(ps, entryPath, root, opts.Excludes)
	if err != nil {
		return nil, err
	}
	start = observeStage("load", start)

	for _, cat := range p.Catalogs() {
		if len(cat.Duplicates) > 0 {
			d := cat.Duplicates[0]
			return nil, &DuplicateDefinitionError{Path: cat.Path, Name: d.Name, Lines: d.Lines}
		}
	}

	r := resolver.New(p, opts.ExtraBuiltins)
	var misses []resolver.Unresolved
	for _, cat := range p.Catalogs() {
		misses = append(misses, r.Resolve(cat)...)
	}
	if len(misses) > 0 {
		return nil, &UnresolvedReferenceError{Misses: misses}
	}
	start = observeStage("resolve", start)

	g := graph.Build(p)
	ordered, err := g.Order()
	if err != nil {
		return nil, err
	}
	start = observeStage("order", start)

	renamed := rename.Apply(g, p)
	output := emit.Render(p, g, ordered)
	observeStage("render", start)

	return &Result{
		Output:  output,
		Modules: len(g.ModulesUsed),
		Symbols: len(g.Selected),
		Renamed: renamed,
	}, nil
}

func observeStage(stage string, start time.Time) time.Time {
	now := time.Now()
	observability.StageDuration.WithLabelValues(stage).Observe(now.Sub(start).Seconds())
	return now
}
