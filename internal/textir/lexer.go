// Package textir implements the line-oriented textual IR format of spec §6:
// a parser (participle, stateful lexer) and printer over internal/ir's
// Module/FunctionDefinition, used for round-trip tests and driver I/O.
// Grounded on the teacher's grammar package (lexer.go's stateful rule list,
// grammar.go's tagged-struct grammar, printer.go's StringWithIndent
// convention) — the teacher's own split between a hand-rolled internal/parser
// and a participle-based grammar package is mirrored here by reserving
// participle for this declarative, already-lowered IR syntax.
package textir

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var textIRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `//[^\n]*`, nil},
		{"Register", `%[A-Za-z_][A-Za-z0-9_]*`, nil},
		{"Global", `@[A-Za-z_][A-Za-z0-9_]*`, nil},
		{"Ident", `[A-Za-z_][A-Za-z0-9_]*`, nil},
		{"Integer", `-?0x[0-9a-fA-F]+|-?[0-9]+`, nil},
		{"Arrow", `->`, nil},
		{"Punctuation", `[{}()\[\],.:;=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
