package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

type Config struct {
	ProjectKey    string   `toml:"project_key"`
	OutputSuffix  string   `toml:"output_suffix"`
	Exclude       []string `toml:"exclude"`
	ExtraBuiltins []string `toml:"extra_builtins"`

	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// MaxRunsPerSecond throttles merge reruns during editor save storms.
	MaxRunsPerSecond float64 `toml:"max_runs_per_second"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

func Default() *Config {
	return &Config{
		ProjectKey:   "default",
		OutputSuffix: "_merged",
		History: History{
			Enabled: true,
			Path:    ".symphony/history.db",
		},
		Watch: Watch{
			Debounce:         500 * time.Millisecond,
			MaxRunsPerSecond: 2,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRunsPerSecond <= 0 {
		cfg.Watch.MaxRunsPerSecond = 2
	}
	if cfg.OutputSuffix == "" {
		cfg.OutputSuffix = "_merged"
	}
	if cfg.ProjectKey == "" {
		cfg.ProjectKey = "default"
	}

	return cfg, nil
}

// CompiledExcludes compiles the exclude patterns once so every load and
// watch event matches against the same set.
func (c *Config) CompiledExcludes() ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(c.Exclude))
	for _, pattern := range c.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
