package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symphony.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
project_key = "demo"
output_suffix = "_bundle"
exclude = ["vendor/**", "generated*"]
extra_builtins = ["reveal_type"]

[history]
enabled = false
path = "runs.db"

[watch]
debounce = "250ms"
max_runs_per_second = 4.0

[observability]
metrics_addr = ":9090"
otlp_endpoint = "localhost:4317"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.ProjectKey)
	assert.Equal(t, "_bundle", cfg.OutputSuffix)
	assert.Equal(t, []string{"vendor/**", "generated*"}, cfg.Exclude)
	assert.Equal(t, []string{"reveal_type"}, cfg.ExtraBuiltins)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "runs.db", cfg.History.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 4.0, cfg.Watch.MaxRunsPerSecond)
	assert.Equal(t, ":9090", cfg.Observability.MetricsAddr)
	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.ProjectKey)
	assert.Equal(t, "_merged", cfg.OutputSuffix)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 2.0, cfg.Watch.MaxRunsPerSecond)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, ".symphony/history.db", cfg.History.Path)
	assert.Empty(t, cfg.Observability.MetricsAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestCompiledExcludes(t *testing.T) {
	cfg := Default()
	cfg.Exclude = []string{"vendor/**", "generated*"}

	globs, err := cfg.CompiledExcludes()
	require.NoError(t, err)
	require.Len(t, globs, 2)

	assert.True(t, globs[0].Match("vendor/pkg/mod.py"))
	assert.True(t, globs[1].Match("generated_pb2.py"))
	assert.False(t, globs[1].Match("src/generated_pb2.py"))
}

func TestCompiledExcludesBadPattern(t *testing.T) {
	cfg := Default()
	cfg.Exclude = []string{"[unclosed"}

	_, err := cfg.CompiledExcludes()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")
}
