package frontend

import (
	"fmt"
	"strconv"
)

// ParseError is a syntax error with a location, matching spec §7's parse-
// error kind.
type ParseError struct {
	Message  string
	Position Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (%d:%d)", e.Message, e.Position.Line, e.Position.Column)
}

// Parser is a hand-rolled recursive-descent parser over a Token stream, with
// a precedence-climbing expression parser, in the style of the teacher's
// internal/parser/parser_pratt.go.
type Parser struct {
	tokens  []Token
	current int
	errors  []*ParseError
}

// ParseSource scans and parses source in one call, returning every parse
// error encountered. Parsing continues after an error without
// resynchronizing: a failed expectation consumes no token, and an unexpected
// token in expression position is skipped.
func ParseSource(source string) (*Program, []*ParseError) {
	scanner := NewScanner(source)
	tokens, scanErrs := scanner.ScanTokens()
	p := &Parser{tokens: tokens}
	for _, se := range scanErrs {
		p.errors = append(p.errors, &ParseError{Message: se.Message, Position: se.Position})
	}
	program := p.parseProgram()
	return program, p.errors
}

func (p *Parser) peek() Token      { return p.tokens[p.current] }
func (p *Parser) previous() Token  { return p.tokens[p.current-1] }
func (p *Parser) isAtEnd() bool    { return p.peek().Type == EOF }
func (p *Parser) check(t TokenType) bool {
	if p.isAtEnd() {
		return t == EOF
	}
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(t TokenType, msg string) Token {
	if p.check(t) {
		return p.advance()
	}
	p.errors = append(p.errors, &ParseError{Message: msg, Position: p.peek().Position})
	return p.peek()
}

func (p *Parser) parseProgram() *Program {
	prog := &Program{}
	for !p.isAtEnd() {
		switch {
		case p.check(KW_STRUCT):
			prog.Structs = append(prog.Structs, p.parseStruct())
		case p.check(KW_FN):
			prog.Functions = append(prog.Functions, p.parseFunction())
		default:
			p.errors = append(p.errors, &ParseError{Message: "expected 'struct' or 'fn'", Position: p.peek().Position})
			p.advance()
		}
	}
	return prog
}

func (p *Parser) parseStruct() *StructDecl {
	p.expect(KW_STRUCT, "expected 'struct'")
	name := p.expect(IDENT, "expected struct name").Lexeme
	p.expect(LEFT_BRACE, "expected '{'")
	decl := &StructDecl{Name: name}
	for !p.check(RIGHT_BRACE) && !p.isAtEnd() {
		fname := p.expect(IDENT, "expected field name").Lexeme
		p.expect(COLON, "expected ':'")
		ftype := p.parseTypeRef()
		decl.Fields = append(decl.Fields, FieldDecl{Name: fname, Type: ftype})
		if !p.match(COMMA) {
			break
		}
	}
	p.expect(RIGHT_BRACE, "expected '}'")
	return decl
}

func (p *Parser) parseTypeRef() TypeRef {
	name := p.expect(IDENT, "expected a type name").Lexeme
	return TypeRef{Name: name}
}

func (p *Parser) parseFunction() *FunctionDecl {
	p.expect(KW_FN, "expected 'fn'")
	name := p.expect(IDENT, "expected function name").Lexeme
	p.expect(LEFT_PAREN, "expected '('")
	fn := &FunctionDecl{Name: name}
	for !p.check(RIGHT_PAREN) && !p.isAtEnd() {
		pname := p.expect(IDENT, "expected parameter name").Lexeme
		p.expect(COLON, "expected ':'")
		ptype := p.parseTypeRef()
		fn.Parameters = append(fn.Parameters, ParamDecl{Name: pname, Type: ptype})
		if !p.match(COMMA) {
			break
		}
	}
	p.expect(RIGHT_PAREN, "expected ')'")
	if p.match(ARROW) {
		fn.ReturnType = p.parseTypeRef()
	}
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseBlock() []Stmt {
	p.expect(LEFT_BRACE, "expected '{'")
	var stmts []Stmt
	for !p.check(RIGHT_BRACE) && !p.isAtEnd() {
		stmts = append(stmts, p.parseStatement())
	}
	p.expect(RIGHT_BRACE, "expected '}'")
	return stmts
}

func (p *Parser) parseStatement() Stmt {
	switch {
	case p.match(KW_LET):
		name := p.expect(IDENT, "expected variable name").Lexeme
		var t TypeRef
		if p.match(COLON) {
			t = p.parseTypeRef()
		}
		p.expect(ASSIGN, "expected '='")
		init := p.parseExpression()
		p.expect(SEMICOLON, "expected ';'")
		return &LetStmt{Name: name, Type: t, Init: init}
	case p.match(KW_IF):
		return p.parseIf()
	case p.match(KW_WHILE):
		cond := p.parseExpression()
		body := p.parseBlock()
		return &WhileStmt{Cond: cond, Body: body}
	case p.match(KW_RETURN):
		if p.check(SEMICOLON) {
			p.advance()
			return &ReturnStmt{}
		}
		v := p.parseExpression()
		p.expect(SEMICOLON, "expected ';'")
		return &ReturnStmt{Value: v}
	default:
		expr := p.parseExpression()
		if p.match(ASSIGN) {
			value := p.parseExpression()
			p.expect(SEMICOLON, "expected ';'")
			return &AssignStmt{Target: expr, Value: value}
		}
		p.expect(SEMICOLON, "expected ';'")
		return &ExprStmt{Expr: expr}
	}
}

func (p *Parser) parseIf() Stmt {
	cond := p.parseExpression()
	then := p.parseBlock()
	var elseBody []Stmt
	if p.match(KW_ELSE) {
		if p.check(KW_IF) {
			p.advance()
			elseBody = []Stmt{p.parseIf()}
		} else {
			elseBody = p.parseBlock()
		}
	}
	return &IfStmt{Cond: cond, Then: then, Else: elseBody}
}

// Precedence levels, lowest to highest, for the Pratt-style expression parser.
var binaryPrecedence = map[TokenType]int{
	PIPE: 1, CARET: 2, AMP: 3,
	EQ: 4, NE: 4,
	LT: 5, LE: 5, GT: 5, GE: 5,
	SHL: 6, SHR: 6,
	PLUS: 7, MINUS: 7,
	STAR: 8, SLASH: 8, PERCENT: 8,
}

var binaryOpText = map[TokenType]string{
	PIPE: "|", CARET: "^", AMP: "&",
	EQ: "==", NE: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=",
	SHL: "<<", SHR: ">>", PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
}

func (p *Parser) parseExpression() Expr {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for {
		prec, ok := binaryPrecedence[p.peek().Type]
		if !ok || prec < minPrec {
			break
		}
		opTok := p.advance()
		right := p.parseBinary(prec + 1)
		left = &BinaryExpr{Op: binaryOpText[opTok.Type], Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.match(MINUS) {
		return &UnaryExpr{Op: "-", Operand: p.parseUnary()}
	}
	if p.match(BANG) {
		return &UnaryExpr{Op: "!", Operand: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for p.match(DOT) {
		field := p.expect(IDENT, "expected field name").Lexeme
		expr = &FieldExpr{Base: expr, Field: field}
	}
	return expr
}

func (p *Parser) parsePrimary() Expr {
	switch {
	case p.match(INT_LITERAL):
		v, _ := strconv.ParseInt(p.previous().Lexeme, 10, 64)
		return &IntLiteral{Value: v}
	case p.match(KW_TRUE):
		return &BoolLiteral{Value: true}
	case p.match(KW_FALSE):
		return &BoolLiteral{Value: false}
	case p.match(IDENT):
		name := p.previous().Lexeme
		if p.match(LEFT_PAREN) {
			call := &CallExpr{Callee: name}
			for !p.check(RIGHT_PAREN) && !p.isAtEnd() {
				call.Arguments = append(call.Arguments, p.parseExpression())
				if !p.match(COMMA) {
					break
				}
			}
			p.expect(RIGHT_PAREN, "expected ')'")
			return call
		}
		return &IdentExpr{Name: name}
	case p.match(LEFT_PAREN):
		e := p.parseExpression()
		p.expect(RIGHT_PAREN, "expected ')'")
		return e
	default:
		p.errors = append(p.errors, &ParseError{Message: "expected an expression", Position: p.peek().Position})
		p.advance()
		return &IntLiteral{Value: 0}
	}
}
