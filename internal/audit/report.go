package audit

import (
	"fmt"
	"strings"
)

// String renders the report with errors and warnings grouped under
// their own headings, one finding per line, and a verdict at the end.
// A heading is omitted when its group is empty.
func (r *Report) String() string {
	var b strings.Builder

	if r.ParseFailed {
		fmt.Fprintf(&b, "%s: parse failed: %s\n", r.Path, r.ParseError)
		fmt.Fprintf(&b, "%s: FAIL\n", r.Path)
		return b.String()
	}

	r.section(&b, "errors", SeverityError)
	r.section(&b, "warnings", SeverityWarning)

	verdict := "OK"
	if !r.Passed() {
		verdict = "FAIL"
	}
	fmt.Fprintf(&b, "%s: %s (%d symbols, %d errors, %d warnings)\n",
		r.Path, verdict, r.Symbols, r.Errors(), r.Warnings())
	return b.String()
}

func (r *Report) section(b *strings.Builder, title string, sev Severity) {
	wrote := false
	for _, f := range r.Findings {
		if f.Severity != sev {
			continue
		}
		if !wrote {
			fmt.Fprintf(b, "=== %s ===\n", title)
			wrote = true
		}
		fmt.Fprintf(b, "%s:%d: %s [%s/%s]\n", r.Path, f.Line, f.Message, f.Stage, f.Kind)
	}
}
