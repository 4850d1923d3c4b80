package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symphony/internal/parser"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestLoadFollowsImports(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":  "from utils import helper\n\nhelper()\n",
		"utils.py": "import base\n\ndef helper():\n    return base.value()\n",
		"base.py":  "def value():\n    return 1\n",
	})

	p, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.NoError(t, err)

	assert.Equal(t, "main", p.Entry)
	assert.Equal(t, []string{"main", "utils", "base"}, p.Order)

	helper := p.Module("main").Module.Lookup("helper")
	require.NotNil(t, helper)
	assert.Equal(t, "utils", helper.ResolvedModule)
	assert.False(t, helper.External)

	base := p.Module("utils").Module.Lookup("base")
	require.NotNil(t, base)
	assert.Equal(t, "base", base.ResolvedModule)
}

func TestExternalImportsClassified(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py": "import os\nfrom collections import OrderedDict\n",
	})

	p, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.NoError(t, err)

	for _, name := range []string{"os", "OrderedDict"} {
		sym := p.Module("main").Module.Lookup(name)
		require.NotNil(t, sym, name)
		assert.True(t, sym.External, name)
	}
}

func TestRelativeImports(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":          "from pkg.mod import run\n",
		"pkg/__init__.py":  "from .mod import run\n",
		"pkg/mod.py":       "from . import extra\nfrom .extra import piece\n\ndef run():\n    return piece() + extra.piece()\n",
		"pkg/extra.py":     "def piece():\n    return 2\n",
	})

	p, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.NoError(t, err)

	assert.True(t, p.IsPackage("pkg"))
	require.Contains(t, p.Modules, "pkg.mod")
	require.Contains(t, p.Modules, "pkg.extra")

	mod := p.Module("pkg.mod")
	extra := mod.Module.Lookup("extra")
	require.NotNil(t, extra)
	assert.Equal(t, "pkg", extra.ResolvedModule)
	assert.Equal(t, "extra", extra.ImportSymbol)

	piece := mod.Module.Lookup("piece")
	require.NotNil(t, piece)
	assert.Equal(t, "pkg.extra", piece.ResolvedModule)
	assert.Equal(t, "piece", piece.ImportSymbol)
}

func TestRootRelativeImportBindsModule(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":   "from . import helper\n\nhelper.go_time()\n",
		"helper.py": "def go_time():\n    return 1\n",
	})

	p, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.NoError(t, err)

	sym := p.Module("main").Module.Lookup("helper")
	require.NotNil(t, sym)
	assert.Equal(t, "helper", sym.ResolvedModule)
	assert.Equal(t, "", sym.ImportSymbol)
}

func TestMissingInternalModule(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":         "from pkg.absent import thing\n",
		"pkg/__init__.py": "",
	})

	_, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.Error(t, err)

	var missing *MissingModuleError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "pkg.absent", missing.Module)
	assert.Equal(t, 1, missing.Line)
}

func TestMissingRelativeModule(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py": "from .nowhere import thing\n",
	})

	_, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.Error(t, err)

	var missing *MissingModuleError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, ".nowhere", missing.Module)
}

func TestWildcardImportRejected(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py": "from helper import *\n",
	})

	_, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.Error(t, err)

	var unsupported *UnsupportedConstructError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "wildcard import", unsupported.Construct)
	assert.Equal(t, 1, unsupported.Line)
}

func TestDynamicImportRejected(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py": "import importlib\n\nmod = importlib.import_module('x')\n",
	})

	_, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.Error(t, err)

	var unsupported *UnsupportedConstructError
	require.True(t, errors.As(err, &unsupported))
	assert.Contains(t, unsupported.Construct, "dynamic import")
	assert.Equal(t, 3, unsupported.Line)
}

func TestExcludedModulesStayExternal(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":           "import generated\n",
		"generated.py":      "def thing():\n    return 1\n",
	})

	excludes := []glob.Glob{glob.MustCompile("generated*")}
	p, err := Load(parser.New(), filepath.Join(root, "main.py"), root, excludes)
	require.NoError(t, err)

	sym := p.Module("main").Module.Lookup("generated")
	require.NotNil(t, sym)
	assert.True(t, sym.External)
	assert.NotContains(t, p.Modules, "generated")
}

func TestFuturesCollected(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":  "from __future__ import annotations\nimport utils\n",
		"utils.py": "from __future__ import annotations, division\n",
	})

	p, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"annotations", "division"}, p.Futures)
}

func TestModuleIndexFollowsDiscovery(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":  "import second\n\ndef top(): pass\n",
		"second.py": "def deep(): pass\n",
	})

	p, err := Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Module("main").Module.Lookup("top").ModuleIndex)
	assert.Equal(t, 1, p.Module("second").Module.Lookup("deep").ModuleIndex)
}
