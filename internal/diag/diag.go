package diag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/maraichr/batislens/internal/workspace"
)

// ProblemKind is the machine-readable class of a diagnostic.
type ProblemKind string

const (
	MissingType            ProblemKind = "missingType"
	NoWritableProperty     ProblemKind = "noWritableProperty"
	MissingTypeHandler     ProblemKind = "missingTypeHandler"
	MissingStatementMethod ProblemKind = "missingStatementMethod"
	MissingResultMap       ProblemKind = "missingResultMap"
	MissingSQL             ProblemKind = "missingSql"
	MissingNamespace       ProblemKind = "missingNamespace"
	NamespaceMandatory     ProblemKind = "namespaceMandatory"
	Deprecated             ProblemKind = "deprecated"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Diagnostic is a single reported problem. Offset and Length are byte
// positions in the file content.
type Diagnostic struct {
	File     workspace.File `json:"-"`
	Path     string         `json:"path"`
	Offset   int            `json:"offset"`
	Length   int            `json:"length"`
	Kind     ProblemKind    `json:"kind"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
}

// Sink receives diagnostics.
type Sink interface {
	Report(file workspace.File, offset, length int, kind ProblemKind, severity Severity, message string)
}

// Collector is a Sink that keeps every report. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (c *Collector) Report(file workspace.File, offset, length int, kind ProblemKind, severity Severity, message string) {
	c.mu.Lock()
	c.items = append(c.items, Diagnostic{
		File:     file,
		Path:     file.Path,
		Offset:   offset,
		Length:   length,
		Kind:     kind,
		Severity: severity,
		Message:  message,
	})
	c.mu.Unlock()
}

// Diagnostics returns the collected diagnostics ordered by file then offset.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	out := append([]Diagnostic(nil), c.items...)
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// Kinds returns the problem kinds in report order; handy in tests.
func (c *Collector) Kinds() []ProblemKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ProblemKind, len(c.items))
	for i, d := range c.items {
		out[i] = d.Kind
	}
	return out
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(file workspace.File, offset, length int, kind ProblemKind, severity Severity, message string)

func (f SinkFunc) Report(file workspace.File, offset, length int, kind ProblemKind, severity Severity, message string) {
	f(file, offset, length, kind, severity, message)
}
