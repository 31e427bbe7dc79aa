// Package errors implements the four-kind error taxonomy of spec §7 and a
// Rust-style caret renderer for surfacing them at the CLI boundary, adapted
// from the teacher's internal/errors package.
package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the four fatal error categories spec §7 names.
type Kind int

const (
	// ParseErrorKind is malformed source or textual IR; carries a byte offset.
	ParseErrorKind Kind = iota
	// VerificationErrorKind is a broken IR invariant from §3.
	VerificationErrorKind
	// UnsupportedConstructKind is a statement variant a specific backend does
	// not handle.
	UnsupportedConstructKind
	// InternalInvariantKind is an Analyzer query on a torn state, or a pass
	// returning an ill-formed function; intended to be unreachable.
	InternalInvariantKind
)

func (k Kind) String() string {
	switch k {
	case ParseErrorKind:
		return "parse error"
	case VerificationErrorKind:
		return "verification error"
	case UnsupportedConstructKind:
		return "unsupported construct"
	case InternalInvariantKind:
		return "internal invariant violation"
	default:
		return "error"
	}
}

// Position is a 1-based line/column location plus a byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// CompilerError is a structured, user-facing diagnostic.
type CompilerError struct {
	Kind     Kind
	Message  string
	Position Position
	Length   int
	Notes    []string
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("%s: %s (%d:%d)", e.Kind, e.Message, e.Position.Line, e.Position.Column)
}

// NewInternalInvariant wraps msg as an InternalInvariantKind CompilerError with
// a captured stack trace, per SPEC_FULL.md §2's use of pkg/errors for
// unreachable-in-principle failures.
func NewInternalInvariant(msg string, args ...interface{}) error {
	ce := &CompilerError{Kind: InternalInvariantKind, Message: fmt.Sprintf(msg, args...)}
	return pkgerrors.WithStack(ce)
}

// Reporter formats CompilerErrors against the source they were raised from.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter builds a Reporter over filename's source text.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders err with a caret underline beneath the offending column,
// mirroring kanso/internal/errors/reporter.go's layout.
func (r *Reporter) Format(err *CompilerError) string {
	var out strings.Builder

	levelColor := r.colorFor(err.Kind)
	dim := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	out.WriteString(fmt.Sprintf("%s: %s\n", levelColor(err.Kind.String()), err.Message))

	width := lineNumberWidth(err.Position.Line)
	indent := strings.Repeat(" ", width)
	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, err.Position.Line, err.Position.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if err.Position.Line > 0 && err.Position.Line <= len(r.lines) {
		line := r.lines[err.Position.Line-1]
		out.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%*d", width, err.Position.Line)), dim("│"), line))
		out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker(err.Position.Column, err.Length)))
	}

	for _, note := range err.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note))
	}

	out.WriteString("\n")
	return out.String()
}

func (r *Reporter) colorFor(k Kind) func(...interface{}) string {
	switch k {
	case UnsupportedConstructKind:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func marker(column, length int) string {
	if length <= 0 {
		length = 1
	}
	if column < 1 {
		column = 1
	}
	markerColor := color.New(color.FgRed, color.Bold).SprintFunc()
	return strings.Repeat(" ", column-1) + markerColor(strings.Repeat("^", length))
}

func lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		return 3
	}
	return width
}
