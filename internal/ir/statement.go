package ir

import "fmt"

// Statement is the tagged variant of every instruction a basic block can contain.
// Each concrete type carries its own capability set: Defs reports the register it
// assigns (if any), Uses enumerates the registers it reads, and RewriteUses lets a
// pass substitute operands in place without a type switch at the call site.
type Statement interface {
	isStatement()
	// Defs returns the register this statement assigns, if any.
	Defs() (RegisterName, bool)
	// Uses returns every register this statement reads, in operand order.
	Uses() []RegisterName
	// RewriteUses replaces each used register found in subst with its mapped
	// Quantity, leaving registers absent from subst untouched.
	RewriteUses(subst map[RegisterName]Quantity)
	String() string
}

// Terminator is a Statement that ends a basic block and names its successors.
type Terminator interface {
	Statement
	isTerminator()
	// Successors returns the names of blocks control may transfer to, in a fixed,
	// meaningful order (e.g. Branch: [then, else]).
	Successors() []string
}

func usesFromQuantities(qs ...Quantity) []RegisterName {
	var out []RegisterName
	for _, q := range qs {
		if q == nil {
			continue
		}
		if r, ok := AsRegister(q); ok {
			out = append(out, r)
		}
	}
	return out
}

func rewriteQuantity(q Quantity, subst map[RegisterName]Quantity) Quantity {
	if q == nil {
		return nil
	}
	if r, ok := AsRegister(q); ok {
		if repl, found := subst[r]; found {
			return repl
		}
	}
	return q
}

// Alloca reserves stack storage for a value of Type and assigns its address to
// Result.
type Alloca struct {
	Result RegisterName
	Type   Type
}

func (*Alloca) isStatement()                            {}
func (a *Alloca) Defs() (RegisterName, bool)            { return a.Result, true }
func (a *Alloca) Uses() []RegisterName                  { return nil }
func (a *Alloca) RewriteUses(map[RegisterName]Quantity) {}
func (a *Alloca) String() string {
	return fmt.Sprintf("%%%s = alloca %s", a.Result, a.Type)
}

// Load reads the value at an address into Result.
type Load struct {
	Result  RegisterName
	Address Quantity
	Type    Type
}

func (*Load) isStatement()                 {}
func (l *Load) Defs() (RegisterName, bool) { return l.Result, true }
func (l *Load) Uses() []RegisterName       { return usesFromQuantities(l.Address) }
func (l *Load) RewriteUses(subst map[RegisterName]Quantity) {
	l.Address = rewriteQuantity(l.Address, subst)
}
func (l *Load) String() string {
	return fmt.Sprintf("%%%s = load %s, %s", l.Result, l.Type, l.Address)
}

// Store writes Value to the memory at Address. Stores define no register.
type Store struct {
	Type    Type
	Address Quantity
	Value   Quantity
}

func (*Store) isStatement()                 {}
func (s *Store) Defs() (RegisterName, bool) { return "", false }
func (s *Store) Uses() []RegisterName       { return usesFromQuantities(s.Address, s.Value) }
func (s *Store) RewriteUses(subst map[RegisterName]Quantity) {
	s.Address = rewriteQuantity(s.Address, subst)
	s.Value = rewriteQuantity(s.Value, subst)
}
func (s *Store) String() string {
	return fmt.Sprintf("store %s %s, %s", s.Type, s.Value, s.Address)
}

// BinaryOperation is the operator of a BinaryCalculate statement.
type BinaryOperation int

const (
	Add BinaryOperation = iota
	Sub
	LessThan
	LessOrEqualThan
	GreaterThan
	GreaterOrEqualThan
	Equal
	NotEqual
	Or
	Xor
	And
	LogicalShiftLeft
	LogicalShiftRight
	ArithmeticShiftRight
)

var binaryOperationNames = map[BinaryOperation]string{
	Add:                  "add",
	Sub:                  "sub",
	LessThan:             "lt",
	LessOrEqualThan:      "le",
	GreaterThan:          "gt",
	GreaterOrEqualThan:   "ge",
	Equal:                "eq",
	NotEqual:             "ne",
	Or:                   "or",
	Xor:                  "xor",
	And:                  "and",
	LogicalShiftLeft:     "shl",
	LogicalShiftRight:    "lshr",
	ArithmeticShiftRight: "ashr",
}

func (op BinaryOperation) String() string {
	if s, ok := binaryOperationNames[op]; ok {
		return s
	}
	return "unknown"
}

// Inverse returns the operation that holds exactly when op does not, for the
// comparison operators; it panics on a non-comparison operand since no caller
// needs it for arithmetic/bitwise operations.
func (op BinaryOperation) Inverse() BinaryOperation {
	switch op {
	case LessThan:
		return GreaterOrEqualThan
	case GreaterOrEqualThan:
		return LessThan
	case LessOrEqualThan:
		return GreaterThan
	case GreaterThan:
		return LessOrEqualThan
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	default:
		panic(fmt.Sprintf("ir: %s has no inverse", op))
	}
}

// BinaryCalculate computes Left Op Right into Result, whose type is Type. The
// lowerer gives every result its left operand's type; the comparisons that
// FixIrreducible emits have a u1 Type over wider operands.
type BinaryCalculate struct {
	Result RegisterName
	Op     BinaryOperation
	Type   Type
	Left   Quantity
	Right  Quantity
}

func (*BinaryCalculate) isStatement()                 {}
func (b *BinaryCalculate) Defs() (RegisterName, bool) { return b.Result, true }
func (b *BinaryCalculate) Uses() []RegisterName {
	return usesFromQuantities(b.Left, b.Right)
}
func (b *BinaryCalculate) RewriteUses(subst map[RegisterName]Quantity) {
	b.Left = rewriteQuantity(b.Left, subst)
	b.Right = rewriteQuantity(b.Right, subst)
}
func (b *BinaryCalculate) String() string {
	return fmt.Sprintf("%%%s = %s %s %s, %s", b.Result, b.Op, b.Type, b.Left, b.Right)
}

// UnaryOperation is the operator of a UnaryCalculate statement.
type UnaryOperation int

const (
	Neg UnaryOperation = iota
	Not
	BitNot
)

var unaryOperationNames = map[UnaryOperation]string{
	Neg:    "neg",
	Not:    "not",
	BitNot: "bitnot",
}

func (op UnaryOperation) String() string {
	if s, ok := unaryOperationNames[op]; ok {
		return s
	}
	return "unknown"
}

// UnaryCalculate computes Op Operand into Result, preserving Operand's Type.
type UnaryCalculate struct {
	Result  RegisterName
	Op      UnaryOperation
	Type    Type
	Operand Quantity
}

func (*UnaryCalculate) isStatement()                 {}
func (u *UnaryCalculate) Defs() (RegisterName, bool) { return u.Result, true }
func (u *UnaryCalculate) Uses() []RegisterName       { return usesFromQuantities(u.Operand) }
func (u *UnaryCalculate) RewriteUses(subst map[RegisterName]Quantity) {
	u.Operand = rewriteQuantity(u.Operand, subst)
}
func (u *UnaryCalculate) String() string {
	return fmt.Sprintf("%%%s = %s %s %s", u.Result, u.Op, u.Type, u.Operand)
}

// FieldAccess is one step of a field_chain: the struct type being indexed into
// and the static field index within it.
type FieldAccess struct {
	ParentType string
	FieldIndex int
}

// LoadField reads the field named by FieldChain, applied in order to the
// aggregate at Source, into Result. LeafType is the chain's final field type.
type LoadField struct {
	Result     RegisterName
	Source     Quantity
	FieldChain []FieldAccess
	LeafType   Type
}

func (*LoadField) isStatement()                 {}
func (f *LoadField) Defs() (RegisterName, bool) { return f.Result, true }
func (f *LoadField) Uses() []RegisterName       { return usesFromQuantities(f.Source) }
func (f *LoadField) RewriteUses(subst map[RegisterName]Quantity) {
	f.Source = rewriteQuantity(f.Source, subst)
}
func (f *LoadField) String() string {
	return fmt.Sprintf("%%%s = load_field %s, %s, %s", f.Result, f.Source, formatFieldChain(f.FieldChain), f.LeafType)
}

// SetField produces, in Target, a new aggregate equal to OriginRoot with the
// field named by FieldChain replaced by Source. It never mutates OriginRoot in
// place, per spec §9's resolution of the field_chain/origin_root ambiguity.
type SetField struct {
	Target     RegisterName
	Source     Quantity
	OriginRoot Quantity
	FieldChain []FieldAccess
	FinalType  Type
}

func (*SetField) isStatement()                 {}
func (f *SetField) Defs() (RegisterName, bool) { return f.Target, true }
func (f *SetField) Uses() []RegisterName {
	return usesFromQuantities(f.OriginRoot, f.Source)
}
func (f *SetField) RewriteUses(subst map[RegisterName]Quantity) {
	f.OriginRoot = rewriteQuantity(f.OriginRoot, subst)
	f.Source = rewriteQuantity(f.Source, subst)
}
func (f *SetField) String() string {
	return fmt.Sprintf("%%%s = set_field %s, %s, %s, %s", f.Target, f.Source, f.OriginRoot, formatFieldChain(f.FieldChain), f.FinalType)
}

func formatFieldChain(chain []FieldAccess) string {
	s := ""
	for i, fa := range chain {
		if i > 0 {
			s += "."
		}
		s += fmt.Sprintf("%s[%d]", fa.ParentType, fa.FieldIndex)
	}
	return s
}

// Call invokes Callee with Arguments. Result is absent (empty, false) when the
// callee's return type is None.
type Call struct {
	Result    RegisterName
	HasResult bool
	Callee    string
	Arguments []Quantity
	Type      Type
}

func (*Call) isStatement()                 {}
func (c *Call) Defs() (RegisterName, bool) { return c.Result, c.HasResult }
func (c *Call) Uses() []RegisterName       { return usesFromQuantities(c.Arguments...) }
func (c *Call) RewriteUses(subst map[RegisterName]Quantity) {
	for i, a := range c.Arguments {
		c.Arguments[i] = rewriteQuantity(a, subst)
	}
}
func (c *Call) String() string {
	if c.HasResult {
		return fmt.Sprintf("%%%s = call %s(%s)", c.Result, c.Callee, joinQuantities(c.Arguments))
	}
	return fmt.Sprintf("call %s(%s)", c.Callee, joinQuantities(c.Arguments))
}

func joinQuantities(qs []Quantity) string {
	s := ""
	for i, q := range qs {
		if i > 0 {
			s += ", "
		}
		s += q.String()
	}
	return s
}

// PhiSource is one (predecessor block, incoming value) pair of a Phi.
type PhiSource struct {
	FromBlock string
	Value     Quantity
}

// Phi selects among Sources based on which predecessor block control arrived
// from. Phi statements must form the leading run of a block's Content.
type Phi struct {
	Result  RegisterName
	Type    Type
	Sources []PhiSource
}

func (*Phi) isStatement()                 {}
func (p *Phi) Defs() (RegisterName, bool) { return p.Result, true }
func (p *Phi) Uses() []RegisterName {
	qs := make([]Quantity, len(p.Sources))
	for i, s := range p.Sources {
		qs[i] = s.Value
	}
	return usesFromQuantities(qs...)
}
func (p *Phi) RewriteUses(subst map[RegisterName]Quantity) {
	for i := range p.Sources {
		p.Sources[i].Value = rewriteQuantity(p.Sources[i].Value, subst)
	}
}
func (p *Phi) String() string {
	s := fmt.Sprintf("%%%s = phi %s ", p.Result, p.Type)
	for i, src := range p.Sources {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("[%s: %s]", src.FromBlock, src.Value)
	}
	return s
}

// Jump unconditionally transfers control to Target.
type Jump struct {
	Target string
}

func (*Jump) isStatement()                            {}
func (*Jump) isTerminator()                           {}
func (j *Jump) Defs() (RegisterName, bool)            { return "", false }
func (j *Jump) Uses() []RegisterName                  { return nil }
func (j *Jump) RewriteUses(map[RegisterName]Quantity) {}
func (j *Jump) Successors() []string                  { return []string{j.Target} }
func (j *Jump) String() string                        { return fmt.Sprintf("jump %s", j.Target) }

// BranchKind is the comparison a Branch performs between Left and Right.
type BranchKind int

const (
	BranchEQ BranchKind = iota
	BranchNE
	BranchLT
	BranchGE
)

var branchKindNames = map[BranchKind]string{
	BranchEQ: "eq",
	BranchNE: "ne",
	BranchLT: "lt",
	BranchGE: "ge",
}

func (k BranchKind) String() string {
	if s, ok := branchKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Inverse returns the kind that holds exactly when k does not.
func (k BranchKind) Inverse() BranchKind {
	switch k {
	case BranchEQ:
		return BranchNE
	case BranchNE:
		return BranchEQ
	case BranchLT:
		return BranchGE
	case BranchGE:
		return BranchLT
	default:
		panic("ir: unknown BranchKind")
	}
}

// Branch transfers control to Then if Left Kind Right holds, else to Else.
type Branch struct {
	Kind  BranchKind
	Left  Quantity
	Right Quantity
	Then  string
	Else  string
}

func (*Branch) isStatement()                 {}
func (*Branch) isTerminator()                {}
func (b *Branch) Defs() (RegisterName, bool) { return "", false }
func (b *Branch) Uses() []RegisterName       { return usesFromQuantities(b.Left, b.Right) }
func (b *Branch) RewriteUses(subst map[RegisterName]Quantity) {
	b.Left = rewriteQuantity(b.Left, subst)
	b.Right = rewriteQuantity(b.Right, subst)
}
func (b *Branch) Successors() []string { return []string{b.Then, b.Else} }
func (b *Branch) String() string {
	return fmt.Sprintf("branch %s %s, %s, %s, %s", b.Kind, b.Left, b.Right, b.Then, b.Else)
}

// Ret returns from the function, optionally with a Value. A nil Value denotes a
// None-typed return.
type Ret struct {
	Value Quantity
}

func (*Ret) isStatement()                 {}
func (*Ret) isTerminator()                {}
func (r *Ret) Defs() (RegisterName, bool) { return "", false }
func (r *Ret) Uses() []RegisterName       { return usesFromQuantities(r.Value) }
func (r *Ret) RewriteUses(subst map[RegisterName]Quantity) {
	r.Value = rewriteQuantity(r.Value, subst)
}
func (r *Ret) Successors() []string { return nil }

// AliasDef is a transient marker statement recording that a load's result
// register aliases another Quantity; passes that introduce it must remove it
// before returning so the final IR never contains an AliasDef.
type AliasDef struct {
	Result RegisterName
	Value  Quantity
}

func (*AliasDef) isStatement()                            {}
func (a *AliasDef) Defs() (RegisterName, bool)            { return a.Result, true }
func (a *AliasDef) Uses() []RegisterName                  { return nil }
func (a *AliasDef) RewriteUses(map[RegisterName]Quantity) {}
func (a *AliasDef) String() string {
	return fmt.Sprintf("%%%s = alias %s", a.Result, a.Value)
}

func (r *Ret) String() string {
	if r.Value == nil {
		return "ret"
	}
	return fmt.Sprintf("ret %s", r.Value)
}
