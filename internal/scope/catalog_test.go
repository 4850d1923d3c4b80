package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symphony/internal/parser"
)

func catalog(t *testing.T, src string) *Catalog {
	t.Helper()
	store, err := parser.New().ParseFile("mod.py", []byte(src))
	require.NoError(t, err)
	return Build(store, "mod")
}

func TestTopSymbolsInOrder(t *testing.T) {
	c := catalog(t, `import os

LIMIT = 10

def work(): pass

class Runner: pass
`)

	syms := c.TopSymbols()
	require.Len(t, syms, 4)

	assert.Equal(t, "os", syms[0].Name)
	assert.Equal(t, SymImport, syms[0].Kind)
	assert.False(t, syms[0].Unit)

	assert.Equal(t, "LIMIT", syms[1].Name)
	assert.Equal(t, SymVariable, syms[1].Kind)
	assert.True(t, syms[1].Unit)

	assert.Equal(t, "work", syms[2].Name)
	assert.Equal(t, SymFunction, syms[2].Kind)
	assert.True(t, syms[2].Unit)

	assert.Equal(t, "Runner", syms[3].Name)
	assert.Equal(t, SymClass, syms[3].Kind)
}

func TestDuplicateDetection(t *testing.T) {
	c := catalog(t, `def handle(): pass

x = 1
x = 2

def handle(): pass

x = "now a def clash"

def x(): pass
`)

	require.Len(t, c.Duplicates, 2)

	assert.Equal(t, "handle", c.Duplicates[0].Name)
	assert.Equal(t, []int{1, 6}, c.Duplicates[0].Lines)

	assert.Equal(t, "x", c.Duplicates[1].Name)
	assert.Equal(t, []int{3, 10}, c.Duplicates[1].Lines)
}

func TestRepeatedImportIsDuplicate(t *testing.T) {
	c := catalog(t, `import os
import os
`)

	require.Len(t, c.Duplicates, 1)
	assert.Equal(t, "os", c.Duplicates[0].Name)
	assert.Equal(t, SymImport, c.Duplicates[0].Kind)
	assert.Equal(t, []int{1, 2}, c.Duplicates[0].Lines)
}

func TestRepeatedAliasedImportIsDuplicate(t *testing.T) {
	c := catalog(t, `import numpy as np
import numpy.linalg as np
`)

	require.Len(t, c.Duplicates, 1)
	assert.Equal(t, "np", c.Duplicates[0].Name)
}

func TestSubmoduleImportExtendsBinding(t *testing.T) {
	c := catalog(t, `import os
import os.path
`)

	assert.Empty(t, c.Duplicates)
	os := c.Module.Lookup("os")
	require.NotNil(t, os)
	assert.Len(t, os.Bindings, 2)
}

func TestFallbackImportRebinds(t *testing.T) {
	c := catalog(t, `try:
    import ujson as json
except ImportError:
    import json
`)

	assert.Empty(t, c.Duplicates)
}

func TestGlobalRedirectsBinding(t *testing.T) {
	c := catalog(t, `def bump():
    global counter
    counter = 1
`)

	counter := c.Module.Lookup("counter")
	require.NotNil(t, counter)
	assert.Equal(t, SymVariable, counter.Kind)

	bump := c.Module.Lookup("bump")
	require.NotNil(t, bump)
	assert.Nil(t, bump.Inner.Lookup("counter"))
}

func TestNonlocalRedirectsBinding(t *testing.T) {
	c := catalog(t, `def outer():
    state = 0
    def inner():
        nonlocal state
        state = 1
    return inner
`)

	outer := c.Module.Lookup("outer")
	require.NotNil(t, outer)

	state := outer.Inner.Lookup("state")
	require.NotNil(t, state)

	inner := outer.Inner.Lookup("inner")
	require.NotNil(t, inner)
	assert.Nil(t, inner.Inner.Lookup("state"))
}

func TestImportBindings(t *testing.T) {
	c := catalog(t, `import numpy as np
from os.path import join as pjoin
from .sibling import helper
from __future__ import annotations
from junk import *
`)

	np := c.Module.Lookup("np")
	require.NotNil(t, np)
	assert.Equal(t, "numpy", np.ImportModule)

	pjoin := c.Module.Lookup("pjoin")
	require.NotNil(t, pjoin)
	assert.Equal(t, "os.path", pjoin.ImportModule)
	assert.Equal(t, "join", pjoin.ImportSymbol)

	helper := c.Module.Lookup("helper")
	require.NotNil(t, helper)
	assert.Equal(t, "sibling", helper.ImportModule)
	assert.Equal(t, 1, helper.ImportRelative)

	assert.Equal(t, []string{"annotations"}, c.Futures)
	assert.Equal(t, []int{5}, c.Wildcards)
	assert.Len(t, c.Imports, 3)
}

func TestInitStatementsVersusUnits(t *testing.T) {
	c := catalog(t, `"""Doc, dropped."""
value = compute()
configure(value)
for row in rows:
    handle(row)
`)

	// the bare call and the loop are init code; the assignment is a unit
	require.Len(t, c.InitStmts, 2)

	value := c.Module.Lookup("value")
	require.NotNil(t, value)
	assert.True(t, value.Unit)
	require.Len(t, value.Refs, 1)
	assert.Equal(t, "compute", c.Store.Node(value.Refs[0].Node).Name)

	// loop variable binds at module scope but rides with its statement
	row := c.Module.Lookup("row")
	require.NotNil(t, row)
	assert.False(t, row.Unit)

	var topNames []string
	for _, ref := range c.TopRefs {
		topNames = append(topNames, c.Store.Node(ref.Node).Name)
	}
	assert.Equal(t, []string{"configure", "value", "rows", "handle", "row"}, topNames)
}

func TestGuardRefsSeparate(t *testing.T) {
	c := catalog(t, `def main(): pass

if __name__ == "__main__":
    main()
`)

	require.Len(t, c.Guards, 1)
	require.Len(t, c.GuardRefs, 1)
	assert.Equal(t, "main", c.Store.Node(c.GuardRefs[0].Node).Name)
	assert.Empty(t, c.TopRefs)
}

func TestRefsRollUpToOwner(t *testing.T) {
	c := catalog(t, `def outer(x=fallback):
    def inner():
        return deep_helper()
    return inner() + shallow_helper()
`)

	outer := c.Module.Lookup("outer")
	require.NotNil(t, outer)

	var names []string
	for _, ref := range outer.Refs {
		names = append(names, c.Store.Node(ref.Node).Name)
	}
	assert.Contains(t, names, "fallback")
	assert.Contains(t, names, "deep_helper")
	assert.Contains(t, names, "shallow_helper")
	assert.Empty(t, c.TopRefs)
}

func TestClassScopeMembers(t *testing.T) {
	c := catalog(t, `class Runner:
    retries = 3

    def run(self):
        return self.retries
`)

	runner := c.Module.Lookup("Runner")
	require.NotNil(t, runner)
	require.NotNil(t, runner.Inner)
	assert.Equal(t, ScopeClass, runner.Inner.Kind)

	assert.NotNil(t, runner.Inner.Lookup("retries"))
	run := runner.Inner.Lookup("run")
	require.NotNil(t, run)
	assert.NotNil(t, run.Inner.Lookup("self"))
}

func TestConditionalDefinitionCarried(t *testing.T) {
	c := catalog(t, `try:
    import ujson as fast
except ImportError:
    import json as fast

if debug_mode:
    def trace(msg):
        emit(msg)
`)

	fast := c.Module.Lookup("fast")
	require.NotNil(t, fast)
	assert.Equal(t, SymImport, fast.Kind)
	assert.NotEqual(t, parser.NoNode, fast.Carrier)

	trace := c.Module.Lookup("trace")
	require.NotNil(t, trace)
	assert.False(t, trace.Unit)

	// the carried definition's needs surface with its statement
	var topNames []string
	for _, ref := range c.TopRefs {
		topNames = append(topNames, c.Store.Node(ref.Node).Name)
	}
	assert.Contains(t, topNames, "emit")
	assert.Contains(t, topNames, "debug_mode")
}
