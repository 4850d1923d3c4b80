package audit

import (
	"fmt"

	"symphony/internal/parser"
	"symphony/internal/scope"
)

// mainGuardCheck flags more than one __main__ guard. A single guard is
// normal; a second one means the file was stitched together badly.
type mainGuardCheck struct{}

func (mainGuardCheck) Name() string { return "main-guard" }

func (mainGuardCheck) Check(cat *scope.Catalog) []Finding {
	if len(cat.Guards) <= 1 {
		return nil
	}
	var out []Finding
	for _, id := range cat.Guards[1:] {
		n := cat.Store.Node(id)
		out = append(out, Finding{
			Stage:    "patterns",
			Kind:     "multiple-main-guards",
			Message:  fmt.Sprintf("extra __main__ guard at line %d", n.Line),
			Line:     n.Line,
			Severity: SeverityError,
		})
	}
	return out
}

// relativeImportCheck warns about relative imports. They only work when
// the file lives inside the package it was written for.
type relativeImportCheck struct{}

func (relativeImportCheck) Name() string { return "relative-import" }

func (relativeImportCheck) Check(cat *scope.Catalog) []Finding {
	var out []Finding
	for _, imp := range cat.Imports {
		if imp.ImportRelative == 0 {
			continue
		}
		out = append(out, Finding{
			Stage:    "patterns",
			Kind:     "relative-import",
			Message:  fmt.Sprintf("relative import of %q", imp.Name),
			Line:     imp.Line,
			Severity: SeverityWarning,
		})
	}
	return out
}

// conditionalImportCheck warns about imports nested under try blocks or
// conditionals. Their bindings may not exist at runtime.
type conditionalImportCheck struct{}

func (conditionalImportCheck) Name() string { return "conditional-import" }

func (conditionalImportCheck) Check(cat *scope.Catalog) []Finding {
	var out []Finding
	for _, imp := range cat.Imports {
		if imp.Carrier == parser.NoNode {
			continue
		}
		out = append(out, Finding{
			Stage:    "patterns",
			Kind:     "conditional-import",
			Message:  fmt.Sprintf("import of %q is conditional", imp.Name),
			Line:     imp.Line,
			Severity: SeverityWarning,
		})
	}
	return out
}

// wildcardImportCheck warns about "from x import *". The names it binds
// cannot be tracked statically.
type wildcardImportCheck struct{}

func (wildcardImportCheck) Name() string { return "wildcard-import" }

func (wildcardImportCheck) Check(cat *scope.Catalog) []Finding {
	var out []Finding
	for _, line := range cat.Wildcards {
		out = append(out, Finding{
			Stage:    "patterns",
			Kind:     "wildcard-import",
			Message:  "wildcard import hides its bindings",
			Line:     line,
			Severity: SeverityWarning,
		})
	}
	return out
}
