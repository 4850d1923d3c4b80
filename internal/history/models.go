package history

import "time"

const SchemaVersion = 1

const (
	ModeMerge = "merge"
	ModeAudit = "audit"
)

// Run is one recorded pipeline invocation, merge or audit.
type Run struct {
	ID         string
	ProjectKey string
	Mode       string
	Entry      string
	Timestamp  time.Time
	Duration   time.Duration

	// merge counters
	Modules int
	Symbols int
	Renamed int

	// audit counters
	Errors   int
	Warnings int

	// ErrorKind classifies a failed run (parse, duplicate, unresolved,
	// circular, io). Empty on success.
	ErrorKind string
	Detail    string
}

func (r Run) Failed() bool { return r.ErrorKind != "" }
