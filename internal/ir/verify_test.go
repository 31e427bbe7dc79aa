package ir

import (
	"strings"
	"testing"
)

func i32() Type { return IntegerType{Signed: true, Width: 32} }

// fAddOneAndReturn builds the already-lifted form of scenario 1: fn f(a:i32)->i32
// { let b = 1; let c = a + b; return c; }.
func fAddOneAndReturn() *FunctionDefinition {
	entry := &BasicBlock{
		Name: "f_entry",
		Content: []Statement{
			&BinaryCalculate{Result: "c", Op: Add, Type: i32(), Left: Register("a"), Right: NumberLiteral(1)},
			&Ret{Value: Register("c")},
		},
	}
	return &FunctionDefinition{
		Header: FunctionHeader{
			Name:       "f",
			Parameters: []Parameter{{Name: "a", Type: i32()}},
			ReturnType: i32(),
		},
		Content: []*BasicBlock{entry},
	}
}

func TestVerify_SimpleAssignment(t *testing.T) {
	if err := Verify(fAddOneAndReturn()); err != nil {
		t.Fatalf("unexpected verification error: %v", err)
	}
}

func TestVerify_MissingTerminator(t *testing.T) {
	fn := fAddOneAndReturn()
	fn.Content[0].Content = fn.Content[0].Content[:1]
	if err := Verify(fn); err == nil {
		t.Fatalf("expected a verification error for a block with no terminator")
	}
}

func TestVerify_DoubleDefinition(t *testing.T) {
	fn := fAddOneAndReturn()
	fn.Content[0].Content = append([]Statement{&Alloca{Result: "c", Type: i32()}}, fn.Content[0].Content...)
	if err := Verify(fn); err == nil {
		t.Fatalf("expected a verification error for a register defined twice")
	}
}

// ifElseMergeFunction builds scenario 2: a single-slot x written on both sides of
// a branch, joined by a phi after Mem2Reg.
func ifElseMergeFunction() *FunctionDefinition {
	entry := &BasicBlock{
		Name:    "entry",
		Content: []Statement{&Branch{Kind: BranchEQ, Left: Register("cond"), Right: NumberLiteral(0), Then: "then_block", Else: "else_block"}},
	}
	thenBlock := &BasicBlock{Name: "then_block", Content: []Statement{&Jump{Target: "join"}}}
	elseBlock := &BasicBlock{Name: "else_block", Content: []Statement{&Jump{Target: "join"}}}
	join := &BasicBlock{
		Name: "join",
		Content: []Statement{
			&Phi{Result: "x", Type: i32(), Sources: []PhiSource{
				{FromBlock: "then_block", Value: NumberLiteral(1)},
				{FromBlock: "else_block", Value: NumberLiteral(2)},
			}},
			&Ret{Value: Register("x")},
		},
	}
	return &FunctionDefinition{
		Header:  FunctionHeader{Name: "g", Parameters: []Parameter{{Name: "cond", Type: i32()}}, ReturnType: i32()},
		Content: []*BasicBlock{entry, thenBlock, elseBlock, join},
	}
}

func TestVerify_IfElseMerge(t *testing.T) {
	if err := Verify(ifElseMergeFunction()); err != nil {
		t.Fatalf("unexpected verification error: %v", err)
	}
}

func TestVerify_PhiMissingPredecessor(t *testing.T) {
	fn := ifElseMergeFunction()
	join := fn.Content[3]
	phi := join.Content[0].(*Phi)
	phi.Sources = phi.Sources[:1]
	if err := Verify(fn); err == nil {
		t.Fatalf("expected a verification error for an incomplete phi")
	}
}

func TestVerify_TerminatorNamesUnknownBlock(t *testing.T) {
	fn := fAddOneAndReturn()
	fn.Content[0].Content[1] = &Jump{Target: "nowhere"}
	if err := Verify(fn); err == nil {
		t.Fatalf("expected a verification error for a jump to an unknown block")
	}
}

func TestBinaryOperationInverse(t *testing.T) {
	pairs := map[BinaryOperation]BinaryOperation{
		LessThan:           GreaterOrEqualThan,
		GreaterOrEqualThan: LessThan,
		Equal:              NotEqual,
		NotEqual:           Equal,
	}
	for op, want := range pairs {
		if got := op.Inverse(); got != want {
			t.Fatalf("expected %v.Inverse() == %v, got %v", op, want, got)
		}
		if got := want.Inverse(); got != op {
			t.Fatalf("expected %v.Inverse() == %v, got %v", want, op, got)
		}
	}
}

func TestPrintFunction(t *testing.T) {
	out := PrintFunction(fAddOneAndReturn())
	if out == "" {
		t.Fatalf("expected non-empty printed output")
	}
}

func TestPrintModule(t *testing.T) {
	mod := &Module{
		Types:     []*TypeDefinition{{Name: "Pair", Fields: []Type{i32(), i32()}, FieldNames: map[string]int{"a": 0, "b": 1}}},
		Globals:   []*GlobalDefinition{{Name: "counter", Type: i32(), InitialValue: 7}},
		Functions: []*FunctionDefinition{fAddOneAndReturn()},
	}
	out := PrintModule(mod)
	for _, want := range []string{"type Pair", "global @counter", "fn f("} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in printed module, got:\n%s", want, out)
		}
	}
}
