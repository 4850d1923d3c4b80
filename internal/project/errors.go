package project

import "fmt"

// UnsupportedConstructError marks source the merge refuses to guess
// about: wildcard and dynamic imports.
type UnsupportedConstructError struct {
	Path      string
	Line      int
	Construct string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("%s:%d: unsupported construct: %s", e.Path, e.Line, e.Construct)
}

// MissingModuleError marks an import that should be internal but has no
// file under the project root.
type MissingModuleError struct {
	Module string
	From   string
	Line   int
}

func (e *MissingModuleError) Error() string {
	return fmt.Sprintf("%s:%d: module %q not found in project", e.From, e.Line, e.Module)
}
