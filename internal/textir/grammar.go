package textir

// Module is the top-level production: an unordered mix of type, global, and
// function declarations, matching spec §6's textual IR surface plus the
// type/global declarations needed to round-trip a whole ir.Module rather than
// just a single function.
type Module struct {
	Items []*TopLevel `@@*`
}

type TopLevel struct {
	Type     *TypeDecl     `  @@`
	Global   *GlobalDecl   `| @@`
	Function *FunctionDecl `| @@`
}

// TypeRef is a bare type name: an integer width (i8..i64, u8..u64), "address",
// "none", or a struct name.
type TypeRef struct {
	Name string `@Ident`
}

// TypeDecl declares a struct's field layout.
type TypeDecl struct {
	Name   string      `"type" @Ident "{"`
	Fields []*FieldDecl `@@* "}"`
}

type FieldDecl struct {
	Name string   `@Ident ":"`
	Type *TypeRef `@@ ","`
}

// GlobalDecl declares a module-level constant.
type GlobalDecl struct {
	Name  string   `"global" @Global ":"`
	Type  *TypeRef `@@ "="`
	Value string   `@Integer ";"`
}

// Operand is any value usable as a Quantity: a register, a global, or an
// integer literal.
type Operand struct {
	Register *string `  @Register`
	Global   *string `| @Global`
	Integer  *string `| @Integer`
}

// FunctionDecl is one function: `fn <name>(<type> %p, ...) -> <type> { ... }`.
type FunctionDecl struct {
	Name       string       `"fn" @Ident "("`
	Params     []*ParamDecl `[ @@ { "," @@ } ] ")"`
	ReturnType *TypeRef     `"->" @@`
	Blocks     []*BlockDecl `"{" @@* "}"`
}

type ParamDecl struct {
	Type *TypeRef `@@`
	Name string   `@Register`
}

// BlockDecl is one labelled basic block: phis, then statements, then exactly
// one terminator.
type BlockDecl struct {
	Name  string     `@Ident ":"`
	Stmts []*StmtDecl `@@*`
	Term  *TermDecl   `@@`
}

// StmtDecl is the tagged variant of every non-terminator statement form.
type StmtDecl struct {
	Phi       *PhiDecl       `  @@`
	Alloca    *AllocaDecl    `| @@`
	Store     *StoreDecl     `| @@`
	Load      *LoadDecl      `| @@`
	LoadField *LoadFieldDecl `| @@`
	SetField  *SetFieldDecl  `| @@`
	Call      *CallDecl      `| @@`
	Binary    *BinaryDecl    `| @@`
	Unary     *UnaryDecl     `| @@`
}

type PhiDecl struct {
	Result  string           `@Register "=" "phi"`
	Type    *TypeRef         `@@`
	Sources []*PhiSourceDecl `@@ { "," @@ }`
}

type PhiSourceDecl struct {
	Value *Operand `"[" @@`
	Block string   `"," @Ident "]"`
}

type AllocaDecl struct {
	Result string   `@Register "=" "alloca"`
	Type   *TypeRef `@@`
}

// StoreDecl matches spec's `store <type> %v, address %p`.
type StoreDecl struct {
	Type    *TypeRef `"store" @@`
	Value   *Operand `@@ ","`
	Address *Operand `"address" @@`
}

// LoadDecl matches spec's `%t = load <type> %p`.
type LoadDecl struct {
	Result  string   `@Register "=" "load"`
	Type    *TypeRef `@@`
	Address *Operand `@@`
}

// FieldAccessDecl is one step of a field_chain: `<ParentType>[<index>]`.
type FieldAccessDecl struct {
	ParentType string `@Ident "["`
	FieldIndex string `@Integer "]"`
}

type LoadFieldDecl struct {
	Result string             `@Register "=" "load_field"`
	Type   *TypeRef           `@@ ","`
	Source *Operand           `@@ ","`
	Chain  []*FieldAccessDecl `@@ { "." @@ }`
}

type SetFieldDecl struct {
	Result     string             `@Register "=" "set_field"`
	Type       *TypeRef           `@@ ","`
	Source     *Operand           `@@ ","`
	OriginRoot *Operand           `@@ ","`
	Chain      []*FieldAccessDecl `@@ { "." @@ }`
}

// CallDecl covers both a result-producing call and a bare call for side effect.
type CallDecl struct {
	Result *string    `[ @Register "=" ]`
	Type   *TypeRef   `"call" @@`
	Callee string     `@Ident "("`
	Args   []*Operand `[ @@ { "," @@ } ] ")"`
}

type BinaryDecl struct {
	Result string   `@Register "="`
	Op     string   `@( "add" | "sub" | "eq" | "ne" | "slt" | "sle" | "sgt" | "sge" | "or" | "xor" | "and" | "sll" | "srl" | "sra" )`
	Type   *TypeRef `@@`
	Left   *Operand `@@ ","`
	Right  *Operand `@@`
}

type UnaryDecl struct {
	Result  string   `@Register "="`
	Op      string   `@( "neg" | "not" | "bitnot" )`
	Type    *TypeRef `@@`
	Operand *Operand `@@`
}

// TermDecl is the tagged variant of every terminator form.
type TermDecl struct {
	Jump   *JumpDecl   `  @@`
	Branch *BranchDecl `| @@`
	Ret    *RetDecl    `| @@`
}

type JumpDecl struct {
	Target string `"j" @Ident`
}

type BranchDecl struct {
	Kind  string   `@( "beq" | "bne" | "blt" | "bge" )`
	Left  *Operand `@@ ","`
	Right *Operand `@@ ","`
	Then  string   `@Ident ","`
	Else  string   `@Ident`
}

type RetDecl struct {
	Value *Operand `"ret" [ @@ ]`
}
