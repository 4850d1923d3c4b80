package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"symphony/internal/audit"
	"symphony/internal/config"
	"symphony/internal/graph"
	"symphony/internal/history"
	"symphony/internal/merge"
	"symphony/internal/observability"
	"symphony/internal/parser"
	"symphony/internal/project"
	"symphony/internal/watcher"
)

type App struct {
	Config  *config.Config
	Parser  *parser.Parser
	Auditor *audit.Auditor

	store    *history.Store
	excludes []glob.Glob
	outPath  string
	watcher  *watcher.Watcher
}

func NewApp(cfg *config.Config, outPath string) (*App, error) {
	excludes, err := cfg.CompiledExcludes()
	if err != nil {
		return nil, err
	}

	ps := parser.New()
	app := &App{
		Config:   cfg,
		Parser:   ps,
		Auditor:  audit.New(ps, cfg.ExtraBuiltins),
		excludes: excludes,
		outPath:  outPath,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		app.store = store
	}

	return app, nil
}

func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close run history", "error", err)
	}
}

// Merge runs the pipeline once, resolving imports against root, and
// writes the merged file next to the entry or to the configured output
// path.
func (a *App) Merge(ctx context.Context, entry, root string) (string, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Merge",
		trace.WithAttributes(attribute.String("entry", entry)))
	defer span.End()

	start := time.Now()

	res, err := merge.Run(a.Parser, entry, root, merge.Options{
		Excludes:      a.excludes,
		ExtraBuiltins: a.Config.ExtraBuiltins,
	})
	if err != nil {
		observability.MergesTotal.WithLabelValues("failed").Inc()
		a.record(history.Run{
			Mode:      history.ModeMerge,
			Entry:     entry,
			Duration:  time.Since(start),
			ErrorKind: classifyError(err),
			Detail:    err.Error(),
		})
		return "", err
	}

	outPath := a.outputPath(entry)
	if err := os.WriteFile(outPath, res.Output, 0o644); err != nil {
		observability.MergesTotal.WithLabelValues("failed").Inc()
		a.record(history.Run{
			Mode:      history.ModeMerge,
			Entry:     entry,
			Duration:  time.Since(start),
			ErrorKind: "io",
			Detail:    err.Error(),
		})
		return "", err
	}

	a.selfAudit(ctx, outPath, res.Output)

	observability.MergesTotal.WithLabelValues("ok").Inc()
	observability.MergedModules.Set(float64(res.Modules))
	observability.MergedSymbols.Set(float64(res.Symbols))
	observability.RenamedSymbols.Set(float64(res.Renamed))

	a.record(history.Run{
		Mode:     history.ModeMerge,
		Entry:    entry,
		Duration: time.Since(start),
		Modules:  res.Modules,
		Symbols:  res.Symbols,
		Renamed:  res.Renamed,
	})

	slog.Info("merge complete",
		"entry", entry,
		"output", outPath,
		"modules", res.Modules,
		"symbols", res.Symbols,
		"renamed", res.Renamed,
		"duration", time.Since(start).Round(time.Millisecond))
	return outPath, nil
}

// Audit checks a single file and prints the report. The returned bool
// is the verdict.
func (a *App) Audit(ctx context.Context, path string) (bool, error) {
	_, span := observability.Tracer.Start(ctx, "app.Audit",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	start := time.Now()
	source, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	report := a.Auditor.Audit(path, source)
	fmt.Print(report.String())

	verdict := "passed"
	errorKind := ""
	if report.ParseFailed {
		verdict = "failed"
		errorKind = "parse"
	} else if !report.Passed() {
		verdict = "failed"
	}
	observability.AuditsTotal.WithLabelValues(verdict).Inc()

	a.record(history.Run{
		Mode:      history.ModeAudit,
		Entry:     path,
		Duration:  time.Since(start),
		Symbols:   report.Symbols,
		Errors:    report.Errors(),
		Warnings:  report.Warnings(),
		ErrorKind: errorKind,
	})

	return report.Passed(), nil
}

// Watch merges once, then re-merges on every source change under the
// project root.
func (a *App) Watch(ctx context.Context, entry, root string) error {
	if _, err := a.Merge(ctx, entry, root); err != nil {
		slog.Error("initial merge failed", "error", err)
	}

	excludes := a.excludes

	// The merged file must never retrigger a run.
	outGlob, err := glob.Compile("*"+a.Config.OutputSuffix+".py", '/')
	if err == nil {
		excludes = append(excludes, outGlob)
	}
	if a.outPath != "" {
		if g, err := glob.Compile(filepath.Base(a.outPath), '/'); err == nil {
			excludes = append(excludes, g)
		}
	}

	w, err := watcher.New(root, a.Config.Watch.Debounce, a.Config.Watch.MaxRunsPerSecond, excludes, func(paths []string) {
		slog.Info("detected changes", "count", len(paths))
		if _, err := a.Merge(ctx, entry, root); err != nil {
			slog.Error("merge failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	a.watcher = w

	return w.Start()
}

func (a *App) record(run history.Run) {
	if a.store == nil {
		return
	}
	run.ProjectKey = a.Config.ProjectKey
	if _, err := a.store.Record(run); err != nil {
		observability.HistoryWritesTotal.WithLabelValues("failed").Inc()
		slog.Warn("failed to record run", "error", err)
		return
	}
	observability.HistoryWritesTotal.WithLabelValues("ok").Inc()
}

// selfAudit reruns the audit pipeline over the merged output. The merge
// already validated every input, so findings here point at emitter bugs
// and are worth a loud warning.
func (a *App) selfAudit(ctx context.Context, outPath string, output []byte) {
	_, span := observability.Tracer.Start(ctx, "app.selfAudit")
	defer span.End()

	report := a.Auditor.Audit(outPath, output)
	if report.Passed() {
		slog.Debug("merged output passed self-audit", "path", outPath)
		return
	}
	slog.Warn("merged output failed self-audit",
		"path", outPath,
		"errors", report.Errors(),
		"warnings", report.Warnings())
	for _, f := range report.Findings {
		slog.Warn("self-audit finding", "kind", f.Kind, "line", f.Line, "message", f.Message)
	}
}

func (a *App) outputPath(entry string) string {
	if a.outPath != "" {
		return a.outPath
	}
	stem := strings.TrimSuffix(entry, filepath.Ext(entry))
	return stem + a.Config.OutputSuffix + ".py"
}

func classifyError(err error) string {
	var (
		parseErr       *parser.ParseError
		duplicateErr   *merge.DuplicateDefinitionError
		unresolvedErr  *merge.UnresolvedReferenceError
		cycleErr       *graph.CircularDependencyError
		unsupportedErr *project.UnsupportedConstructError
		missingErr     *project.MissingModuleError
	)
	switch {
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &duplicateErr):
		return "duplicate"
	case errors.As(err, &unresolvedErr):
		return "unresolved"
	case errors.As(err, &cycleErr):
		return "circular"
	case errors.As(err, &unsupportedErr):
		return "unsupported"
	case errors.As(err, &missingErr):
		return "missing-module"
	default:
		return "io"
	}
}
