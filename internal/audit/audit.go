// Package audit statically validates a single Python file in three
// stages: the symbol table, reference resolution, and pattern checks.
// It shares the parser and scope machinery with the merge but never
// needs the rest of the project on disk.
package audit

import (
	"fmt"

	"symphony/internal/parser"
	"symphony/internal/resolver"
	"symphony/internal/scope"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Finding struct {
	Stage    string
	Kind     string
	Message  string
	Line     int
	Severity Severity
}

// Report is the full outcome of one audit. A failed parse is its own
// record: without a tree none of the stages can run.
type Report struct {
	Path        string
	ParseFailed bool
	ParseError  string
	Symbols     int
	Findings    []Finding
}

// Passed reports whether the file is clean of errors. Warnings do not
// fail an audit.
func (r *Report) Passed() bool {
	if r.ParseFailed {
		return false
	}
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

func (r *Report) Errors() int   { return r.count(SeverityError) }
func (r *Report) Warnings() int { return r.count(SeverityWarning) }

func (r *Report) count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Check is one pattern rule of the third stage. Checks are additive:
// registering a new one never changes the first two stages.
type Check interface {
	Name() string
	Check(cat *scope.Catalog) []Finding
}

type Auditor struct {
	parser   *parser.Parser
	resolver *resolver.Resolver
	checks   []Check
}

// New builds an auditor with the shipped pattern checks. extra names
// extend the builtin registry.
func New(ps *parser.Parser, extra []string) *Auditor {
	return &Auditor{
		parser:   ps,
		resolver: resolver.New(nil, extra),
		checks: []Check{
			mainGuardCheck{},
			relativeImportCheck{},
			conditionalImportCheck{},
			wildcardImportCheck{},
		},
	}
}

// Register adds a pattern check to the third stage.
func (a *Auditor) Register(c Check) {
	a.checks = append(a.checks, c)
}

// Audit runs all three stages over one file.
func (a *Auditor) Audit(path string, source []byte) *Report {
	report := &Report{Path: path}

	store, err := a.parser.ParseFile(path, source)
	if err != nil {
		report.ParseFailed = true
		report.ParseError = err.Error()
		return report
	}

	cat := scope.Build(store, "")
	report.Symbols = len(cat.TopSymbols())

	// stage 1: duplicate top-level definitions
	for _, dup := range cat.Duplicates {
		report.Findings = append(report.Findings, Finding{
			Stage:    "symbols",
			Kind:     "duplicate-definition",
			Message:  fmt.Sprintf("%s %q defined more than once (lines %v)", dup.Kind, dup.Name, dup.Lines),
			Line:     dup.Lines[0],
			Severity: SeverityError,
		})
	}

	// stage 2: reference resolution
	for _, miss := range a.resolver.Resolve(cat) {
		report.Findings = append(report.Findings, Finding{
			Stage:    "references",
			Kind:     "unresolved-reference",
			Message:  fmt.Sprintf("name %q is not defined", miss.Name),
			Line:     miss.Line,
			Severity: SeverityError,
		})
	}

	// stage 3: pattern checks
	for _, check := range a.checks {
		report.Findings = append(report.Findings, check.Check(cat)...)
	}
	return report
}
