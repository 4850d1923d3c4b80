package rename

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symphony/internal/graph"
	"symphony/internal/parser"
	"symphony/internal/project"
	"symphony/internal/resolver"
)

func buildGraph(t *testing.T, files map[string]string) (*graph.Graph, *project.Project) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	p, err := project.Load(parser.New(), filepath.Join(root, "main.py"), root, nil)
	require.NoError(t, err)

	r := resolver.New(p, nil)
	for _, cat := range p.Catalogs() {
		require.Empty(t, r.Resolve(cat))
	}
	return graph.Build(p), p
}

func TestNoCollisionNoRename(t *testing.T) {
	g, p := buildGraph(t, map[string]string{
		"main.py":  "from utils import helper\n\nhelper()\n",
		"utils.py": "def helper():\n    return 1\n",
	})

	assert.Equal(t, 0, Apply(g, p))
	helper := p.Module("utils").Module.Lookup("helper")
	assert.Equal(t, "helper", helper.Rendered())
}

func TestCollisionRenamesEveryClaimant(t *testing.T) {
	g, p := buildGraph(t, map[string]string{
		"main.py": `from alpha import process as a_process
from beta import process as b_process

a_process()
b_process()
`,
		"alpha.py": "def process():\n    return 'a'\n",
		"beta.py":  "def process():\n    return 'b'\n",
	})

	assert.Equal(t, 2, Apply(g, p))

	alpha := p.Module("alpha").Module.Lookup("process")
	beta := p.Module("beta").Module.Lookup("process")
	assert.Equal(t, "alpha_process", alpha.Rendered())
	assert.Equal(t, "beta_process", beta.Rendered())
}

func TestQualifiedNameAlreadyTaken(t *testing.T) {
	g, p := buildGraph(t, map[string]string{
		"main.py": `from alpha import value as av
from beta import value as bv
from gamma import beta_value

print(av, bv, beta_value)
`,
		"alpha.py": "value = 1\n",
		"beta.py":  "value = 2\n",
		"gamma.py": "beta_value = 3\n",
	})

	require.Equal(t, 2, Apply(g, p))
	alpha := p.Module("alpha").Module.Lookup("value")
	beta := p.Module("beta").Module.Lookup("value")
	assert.Equal(t, "alpha_value", alpha.Rendered())
	assert.Equal(t, "beta_value_2", beta.Rendered())
}

func TestPackageModuleKey(t *testing.T) {
	g, p := buildGraph(t, map[string]string{
		"main.py": `from helper import run as top_run
from pkg.helper import run as pkg_run

top_run()
pkg_run()
`,
		"helper.py":        "def run():\n    return 1\n",
		"pkg/__init__.py":  "",
		"pkg/helper.py":    "def run():\n    return 2\n",
	})

	require.Equal(t, 2, Apply(g, p))
	top := p.Module("helper").Module.Lookup("run")
	inner := p.Module("pkg.helper").Module.Lookup("run")
	assert.Equal(t, "helper_run", top.Rendered())
	assert.Equal(t, "pkg_helper_run", inner.Rendered())
}

func TestSharedExternalImportIsOneClaim(t *testing.T) {
	g, p := buildGraph(t, map[string]string{
		"main.py": `import os
from utils import here

here(os.sep)
`,
		"utils.py": "import os\n\ndef here(s):\n    return os.path.abspath(s)\n",
	})

	assert.Equal(t, 0, Apply(g, p))
}

func TestExternalAliasCollision(t *testing.T) {
	g, p := buildGraph(t, map[string]string{
		"main.py": `from counts import np
from arrays import total

print(np, total)
`,
		"counts.py": "np = 40\n",
		"arrays.py": "import numpy as np\n\ndef total(x):\n    return np.sum(x)\n",
	})

	require.Equal(t, 2, Apply(g, p))

	variable := p.Module("counts").Module.Lookup("np")
	imported := p.Module("arrays").Module.Lookup("np")
	assert.Equal(t, "counts_np", variable.Rendered())
	assert.Equal(t, "arrays_np", imported.Rendered())
}
