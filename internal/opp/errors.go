package opp

import (
	"fmt"
	"strings"
)

// Kind classifies every failure the pipeline can report. The set is closed;
// each Kind is itself an error so callers can test with errors.Is.
type Kind string

const (
	MissingField        Kind = "missing field"
	MalformedDescriptor Kind = "malformed descriptor"
	UnknownTier         Kind = "unknown tier"
	StructuralMismatch  Kind = "structural mismatch"
	NumericParseError   Kind = "numeric parse error"
	SanityLimitExceeded Kind = "sanity limit exceeded"
	ContractViolation   Kind = "contract violation"
)

func (k Kind) Error() string { return string(k) }

// Error is a Kind plus enough context to find the defect in the source.
type Error struct {
	Kind Kind
	// Field names the positional field, when one applies.
	Field string
	// Index is the token position, or -1.
	Index int
	// Snippet is the offending source text, trimmed.
	Snippet string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Field != "" {
		if e.Index >= 0 {
			fmt.Fprintf(&b, ": %s (token %d)", e.Field, e.Index)
		} else {
			fmt.Fprintf(&b, ": %s", e.Field)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Snippet != "" {
		fmt.Fprintf(&b, " in %q", e.Snippet)
	}
	return b.String()
}

// Unwrap exposes both the Kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an *Error without a positional field.
func Errorf(kind Kind, snippet string, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Index:   -1,
		Snippet: compact(snippet),
		Err:     fmt.Errorf(format, args...),
	}
}

func fieldError(kind Kind, f field, snippet string, err error) *Error {
	return &Error{
		Kind:    kind,
		Field:   f.name,
		Index:   f.index,
		Snippet: compact(snippet),
		Err:     err,
	}
}

const maxSnippet = 120

// compact folds whitespace runs so multi-line rows fit on one report line.
func compact(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}
