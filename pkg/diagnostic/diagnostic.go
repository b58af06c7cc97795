// Package diagnostic defines the error/warning value shared by every stage
// of the kooixc pipeline. Stages accumulate diagnostics rather than
// stopping at the first one (except lex/parse and the interpreter, which
// are fatal-on-first).
package diagnostic

import (
	"fmt"
	"sort"

	"github.com/telagod/kooixc/pkg/position"
)

// Severity is the level of a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a single error or warning tied to a source span.
type Diagnostic struct {
	Severity Severity
	Message  string
	Span     position.Span
}

// NewError builds an error-severity Diagnostic.
func NewError(span position.Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Error, Message: fmt.Sprintf(format, args...), Span: span}
}

// NewWarning builds a warning-severity Diagnostic.
func NewWarning(span position.Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Warning, Message: fmt.Sprintf(format, args...), Span: span}
}

// Render formats the diagnostic as "<level>[line:col]: <message>" against
// the given source buffer, a stable shape callers can substring-match in
// tests.
func (d Diagnostic) Render(src string) string {
	line, col := position.LineCol(src, d.Span.Start)
	return fmt.Sprintf("%s[%d:%d]: %s", d.Severity, line, col, d.Message)
}

// Bag is an accumulator of diagnostics produced by a single analysis pass.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic to the bag.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Errorf appends an error-severity diagnostic.
func (b *Bag) Errorf(span position.Span, format string, args ...any) {
	b.Add(NewError(span, format, args...))
}

// Warnf appends a warning-severity diagnostic.
func (b *Bag) Warnf(span position.Span, format string, args ...any) {
	b.Add(NewWarning(span, format, args...))
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any warning-severity diagnostic was recorded.
func (b *Bag) HasWarnings() bool {
	for _, d := range b.items {
		if d.Severity == Warning {
			return true
		}
	}
	return false
}

// Diagnostics returns the accumulated diagnostics sorted by span start so
// output is deterministic regardless of check ordering.
func (b *Bag) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out
}
