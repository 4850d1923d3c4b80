package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *Store {
	t.Helper()
	store, err := New().ParseFile("test.py", []byte(src))
	require.NoError(t, err)
	return store
}

func topLevel(s *Store, kind Kind) []*Node {
	var out []*Node
	for _, id := range s.Node(s.Root()).Children {
		if n := s.Node(id); n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func TestParseFileSyntaxError(t *testing.T) {
	_, err := New().ParseFile("broken.py", []byte("def f(:\n    pass\n"))
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "broken.py", parseErr.Path)
	assert.Equal(t, 1, parseErr.Line)
}

func TestImportStatements(t *testing.T) {
	store := parse(t, "import os\nimport numpy as np, sys\n")

	imports := topLevel(store, KindImport)
	require.Len(t, imports, 3)

	assert.Equal(t, "os", imports[0].Name)
	assert.Equal(t, "numpy", imports[1].Name)
	assert.Equal(t, "np", imports[1].Alias)
	assert.Equal(t, "sys", imports[2].Name)
	assert.Equal(t, 2, imports[2].Line)
}

func TestFromImports(t *testing.T) {
	store := parse(t, `from os.path import join as pjoin, exists
from . import helper
from ..pkg.sub import thing
from __future__ import annotations
from mod import *
`)

	from := topLevel(store, KindFromImport)
	require.Len(t, from, 5)

	assert.Equal(t, "os.path", from[0].Name)
	require.Len(t, from[0].Children, 2)
	first := store.Node(from[0].Children[0])
	assert.Equal(t, "join", first.Name)
	assert.Equal(t, "pjoin", first.Alias)
	assert.Equal(t, "exists", store.Node(from[0].Children[1]).Name)

	assert.Equal(t, 1, from[1].Relative)
	assert.Equal(t, "", from[1].Name)
	assert.Equal(t, "helper", store.Node(from[1].Children[0]).Name)

	assert.Equal(t, 2, from[2].Relative)
	assert.Equal(t, "pkg.sub", from[2].Name)

	assert.Equal(t, "__future__", from[3].Name)
	assert.Equal(t, "annotations", store.Node(from[3].Children[0]).Name)

	assert.True(t, from[4].Wildcard)
}

func TestFunctionDefinition(t *testing.T) {
	src := `@deco
def handler(x, y=fallback, *args, key: Hint = other, **kw):
    return x
`
	store := parse(t, src)

	fns := topLevel(store, KindFunction)
	require.Len(t, fns, 1)
	fn := fns[0]

	assert.Equal(t, "handler", fn.Name)
	assert.Equal(t, "handler", string([]byte(src)[fn.NameStart:fn.NameEnd]))
	// span covers the decorator so emission keeps it
	assert.Equal(t, uint(0), fn.Start)

	var params []string
	for _, id := range fn.Params {
		params = append(params, store.Node(id).Name)
	}
	assert.Equal(t, []string{"x", "y", "args", "key", "kw"}, params)

	var outer []string
	for _, id := range fn.Outer {
		outer = append(outer, store.Node(id).Name)
	}
	assert.Equal(t, []string{"deco", "fallback", "Hint", "other"}, outer)
}

func TestClassDefinition(t *testing.T) {
	store := parse(t, `class Processor(Base, metaclass=Meta):
    def run(self):
        self.count += 1
`)

	classes := topLevel(store, KindClass)
	require.Len(t, classes, 1)
	cls := classes[0]

	assert.Equal(t, "Processor", cls.Name)

	var outer []string
	for _, id := range cls.Outer {
		outer = append(outer, store.Node(id).Name)
	}
	assert.Equal(t, []string{"Base", "Meta"}, outer)

	require.Len(t, cls.Children, 1)
	method := store.Node(cls.Children[0])
	assert.Equal(t, KindFunction, method.Kind)
	assert.Equal(t, "run", method.Name)
}

func TestAssignmentTargets(t *testing.T) {
	store := parse(t, "a, b = pair()\nc += delta\nobj.field = c\n")

	stmts := topLevel(store, KindStatement)
	require.Len(t, stmts, 3)

	names := func(n *Node, kind Kind) []string {
		var out []string
		for _, id := range n.Children {
			if c := store.Node(id); c.Kind == kind {
				out = append(out, c.Name)
			}
		}
		return out
	}

	assert.Equal(t, []string{"a", "b"}, names(stmts[0], KindAssign))
	assert.Equal(t, []string{"pair"}, names(stmts[0], KindName))

	// augmented assignment reads and re-binds its target
	assert.Equal(t, []string{"c"}, names(stmts[1], KindAssign))
	assert.Equal(t, []string{"c", "delta"}, names(stmts[1], KindName))

	// attribute targets are reads of the base object, not bindings
	assert.Empty(t, names(stmts[2], KindAssign))
}

func TestForLoopBindsTargets(t *testing.T) {
	store := parse(t, "for i, item in enumerate(rows):\n    use(item)\n")

	stmts := topLevel(store, KindStatement)
	require.Len(t, stmts, 1)

	var binds, refs []string
	for _, id := range stmts[0].Children {
		switch n := store.Node(id); n.Kind {
		case KindAssign:
			binds = append(binds, n.Name)
		case KindName:
			refs = append(refs, n.Name)
		}
	}
	assert.Equal(t, []string{"i", "item"}, binds)
	assert.Contains(t, refs, "enumerate")
	assert.Contains(t, refs, "rows")
	assert.Contains(t, refs, "use")
}

func TestMainGuard(t *testing.T) {
	store := parse(t, `if __name__ == '__main__':
    main()
if __name__ == "__main__" or debug:
    other()
`)

	guards := topLevel(store, KindMainGuard)
	require.Len(t, guards, 1)
	require.Len(t, guards[0].Children, 1)

	// the compound condition stays an ordinary statement
	assert.Len(t, topLevel(store, KindStatement), 1)
}

func TestAttributeChains(t *testing.T) {
	store := parse(t, "value = config.server.port\nother = fn().attr\n")

	stmts := topLevel(store, KindStatement)
	require.Len(t, stmts, 2)

	var attrs []*Node
	for _, id := range stmts[0].Children {
		if n := store.Node(id); n.Kind == KindAttribute {
			attrs = append(attrs, n)
		}
	}
	require.Len(t, attrs, 1)
	assert.Equal(t, []string{"config", "server", "port"}, attrs[0].Parts)
	assert.Equal(t, "config", attrs[0].Name)

	// chains rooted at a call dissolve into the call's references
	var names []string
	for _, id := range stmts[1].Children {
		if n := store.Node(id); n.Kind == KindName {
			names = append(names, n.Name)
		}
	}
	assert.Contains(t, names, "fn")
}

func TestComprehensionScopes(t *testing.T) {
	store := parse(t, "result = [f(x) for x in source if x > limit]\n")

	stmts := topLevel(store, KindStatement)
	require.Len(t, stmts, 1)

	var comp *Node
	for _, id := range stmts[0].Children {
		if n := store.Node(id); n.Kind == KindComprehension {
			comp = n
		}
	}
	require.NotNil(t, comp)

	require.Len(t, comp.Params, 1)
	assert.Equal(t, "x", store.Node(comp.Params[0]).Name)

	// only the first iterable evaluates in the enclosing scope
	require.Len(t, comp.Outer, 1)
	assert.Equal(t, "source", store.Node(comp.Outer[0]).Name)

	var inner []string
	for _, id := range comp.Children {
		inner = append(inner, store.Node(id).Name)
	}
	assert.Contains(t, inner, "f")
	assert.Contains(t, inner, "limit")
}

func TestGlobalAndNonlocal(t *testing.T) {
	store := parse(t, `def bump():
    global counter
    counter = counter + 1
`)

	fns := topLevel(store, KindFunction)
	require.Len(t, fns, 1)

	decl := store.Node(fns[0].Children[0])
	assert.Equal(t, KindGlobal, decl.Kind)
	assert.Equal(t, []string{"counter"}, decl.Parts)
}

func TestDynamicImportDetection(t *testing.T) {
	store := parse(t, "import importlib\nmod = importlib.import_module('x')\nother = __import__('y')\n")

	require.Len(t, store.Dynamics, 2)
	assert.Equal(t, "importlib.import_module", store.Dynamics[0].Name)
	assert.Equal(t, 2, store.Dynamics[0].Line)
	assert.Equal(t, "__import__", store.Dynamics[1].Name)
}

func TestModuleDocstringMarked(t *testing.T) {
	store := parse(t, "\"\"\"Module doc.\"\"\"\nx = 1\n")

	stmts := topLevel(store, KindStatement)
	require.Len(t, stmts, 2)
	assert.True(t, stmts[0].Doc)
	assert.False(t, stmts[1].Doc)
}

func TestNestedImportsSurface(t *testing.T) {
	store := parse(t, `try:
    import fast_json
except ImportError:
    import json as fast_json
`)

	stmts := topLevel(store, KindStatement)
	require.Len(t, stmts, 1)

	var nested []string
	for _, id := range stmts[0].Children {
		if n := store.Node(id); n.Kind == KindImport {
			nested = append(nested, n.Name)
		}
	}
	assert.Equal(t, []string{"fast_json", "json"}, nested)
}

func TestAttributeTargetsMarkedAsWrites(t *testing.T) {
	store := parse(t, "cfg.value = 1\nx = cfg.value\n")

	var writes, reads []string
	for i := 0; i < store.Len(); i++ {
		n := store.Node(NodeID(i))
		if n.Kind != KindAttribute {
			continue
		}
		if n.Write {
			writes = append(writes, n.Name)
		} else {
			reads = append(reads, n.Name)
		}
	}
	assert.Equal(t, []string{"cfg"}, writes)
	assert.Equal(t, []string{"cfg"}, reads)
}
