package textir

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	irerrors "kiln/internal/ir/errors"
)

var moduleParser = participle.MustBuild[Module](
	participle.Lexer(textIRLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(6),
)

// ParseModule parses the textual IR source for a whole module.
func ParseModule(name, source string) (*Module, error) {
	mod, err := moduleParser.ParseString(name, source)
	if err != nil {
		return nil, reportParseError(source, err)
	}
	return mod, nil
}

// reportParseError appends the offending source line and a caret under the
// error column to the message, and returns a CompilerError carrying the line,
// column and byte offset, per spec §7's parse-error kind. An error that is not
// a participle.Error becomes an internal-invariant error instead.
func reportParseError(src string, err error) error {
	pe, ok := err.(participle.Error)
	if !ok {
		return irerrors.NewInternalInvariant("textir: unexpected parser failure: %s", err)
	}
	pos := pe.Position()
	lines := strings.Split(src, "\n")
	var snippet string
	if pos.Line >= 1 && pos.Line <= len(lines) {
		line := lines[pos.Line-1]
		caret := strings.Repeat(" ", max(pos.Column-1, 0)) + "^"
		snippet = fmt.Sprintf("\n%s\n%s", line, color.HiRedString(caret))
	}
	return &irerrors.CompilerError{
		Kind:    irerrors.ParseErrorKind,
		Message: pe.Message() + snippet,
		Position: irerrors.Position{
			Line:   pos.Line,
			Column: pos.Column,
			Offset: pos.Offset,
		},
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
