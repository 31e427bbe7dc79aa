package frontend

// Program is the whole parsed source: struct declarations followed by
// function declarations.
type Program struct {
	Structs   []*StructDecl
	Functions []*FunctionDecl
}

// StructDecl declares an aggregate type and its fields, in order.
type StructDecl struct {
	Name   string
	Fields []FieldDecl
}

// FieldDecl is one struct field.
type FieldDecl struct {
	Name string
	Type TypeRef
}

// TypeRef is a parsed, not-yet-resolved type name: either a built-in integer
// width or a struct name, resolved against the struct table during lowering.
type TypeRef struct {
	Name string // "i8".."i64", "u8".."u64", or a struct name
}

// FunctionDecl is one source-level function.
type FunctionDecl struct {
	Name       string
	Parameters []ParamDecl
	ReturnType TypeRef
	Body       []Stmt
}

// ParamDecl is one formal parameter.
type ParamDecl struct {
	Name string
	Type TypeRef
}

// Stmt is the tagged variant of every statement form the language supports.
type Stmt interface{ isStmt() }

// LetStmt declares a local and initializes it.
type LetStmt struct {
	Name string
	Type TypeRef
	Init Expr
}

func (*LetStmt) isStmt() {}

// AssignStmt assigns to an already-declared local, or to a field of one.
type AssignStmt struct {
	Target Expr // IdentExpr or FieldExpr
	Value  Expr
}

func (*AssignStmt) isStmt() {}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // nil for if-without-else
}

func (*IfStmt) isStmt() {}

// WhileStmt loops while Cond holds.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
}

func (*WhileStmt) isStmt() {}

// ReturnStmt returns from the enclosing function, optionally with a value.
type ReturnStmt struct {
	Value Expr // nil for a bare return
}

func (*ReturnStmt) isStmt() {}

// ExprStmt evaluates an expression for its side effects (a call).
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) isStmt() {}

// Expr is the tagged variant of every expression form.
type Expr interface{ isExpr() }

// IntLiteral is a literal integer constant.
type IntLiteral struct {
	Value int64
}

func (*IntLiteral) isExpr() {}

// BoolLiteral is a literal true/false.
type BoolLiteral struct {
	Value bool
}

func (*BoolLiteral) isExpr() {}

// IdentExpr references a local, parameter, or global by name.
type IdentExpr struct {
	Name string
}

func (*IdentExpr) isExpr() {}

// FieldExpr accesses Field on Base.
type FieldExpr struct {
	Base  Expr
	Field string
}

func (*FieldExpr) isExpr() {}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryExpr) isExpr() {}

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	Op      string
	Operand Expr
}

func (*UnaryExpr) isExpr() {}

// CallExpr calls a named function with Arguments.
type CallExpr struct {
	Callee    string
	Arguments []Expr
}

func (*CallExpr) isExpr() {}
