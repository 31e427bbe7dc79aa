package passes

import (
	"testing"

	"kiln/internal/ir"
	"kiln/internal/ir/analysis"
	"kiln/internal/ir/edit"
)

func i32() ir.Type { return ir.IntegerType{Signed: true, Width: 32} }

// simpleAssignment builds spec §8 scenario 1 in its pre-Mem2Reg, Alloca-based
// form: fn f(a:i32)->i32 { let b:i32 = 1; let c:i32 = a + b; return c; }.
func simpleAssignment() *ir.FunctionDefinition {
	entry := &ir.BasicBlock{Name: "f_entry", Content: []ir.Statement{
		&ir.Alloca{Result: "b_slot", Type: i32()},
		&ir.Store{Type: i32(), Address: ir.Register("b_slot"), Value: ir.NumberLiteral(1)},
		&ir.Alloca{Result: "c_slot", Type: i32()},
		&ir.Load{Result: "b_val", Address: ir.Register("b_slot"), Type: i32()},
		&ir.BinaryCalculate{Result: "sum", Op: ir.Add, Type: i32(), Left: ir.Register("a"), Right: ir.Register("b_val")},
		&ir.Store{Type: i32(), Address: ir.Register("c_slot"), Value: ir.Register("sum")},
		&ir.Load{Result: "c_val", Address: ir.Register("c_slot"), Type: i32()},
		&ir.Ret{Value: ir.Register("c_val")},
	}}
	return &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "f", Parameters: []ir.Parameter{{Name: "a", Type: i32()}}, ReturnType: i32()},
		Content: []*ir.BasicBlock{entry},
	}
}

func TestMem2Reg_SimpleAssignment(t *testing.T) {
	fn := simpleAssignment()
	e := edit.NewEditor(fn)
	changed, err := (MemoryToRegister{}).Run(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatalf("expected Mem2Reg to report a change")
	}
	for _, b := range fn.Content {
		for _, s := range b.Content {
			switch s.(type) {
			case *ir.Alloca, *ir.Load, *ir.Store:
				t.Fatalf("expected no memory statements after Mem2Reg, found %s", s)
			}
		}
	}
	if err := ir.Verify(fn); err != nil {
		t.Fatalf("function invalid after Mem2Reg: %v", err)
	}
}

// ifElseMergeSource builds scenario 2 pre-lift: a single slot x written 1/2 on
// each side of a branch, loaded after the join.
func ifElseMergeSource() *ir.FunctionDefinition {
	entry := &ir.BasicBlock{Name: "entry", Content: []ir.Statement{
		&ir.Alloca{Result: "x_slot", Type: i32()},
		&ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("cond"), Right: ir.NumberLiteral(0), Then: "then_block", Else: "else_block"},
	}}
	thenB := &ir.BasicBlock{Name: "then_block", Content: []ir.Statement{
		&ir.Store{Type: i32(), Address: ir.Register("x_slot"), Value: ir.NumberLiteral(1)},
		&ir.Jump{Target: "join"},
	}}
	elseB := &ir.BasicBlock{Name: "else_block", Content: []ir.Statement{
		&ir.Store{Type: i32(), Address: ir.Register("x_slot"), Value: ir.NumberLiteral(2)},
		&ir.Jump{Target: "join"},
	}}
	join := &ir.BasicBlock{Name: "join", Content: []ir.Statement{
		&ir.Load{Result: "x_val", Address: ir.Register("x_slot"), Type: i32()},
		&ir.Ret{Value: ir.Register("x_val")},
	}}
	return &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "g", Parameters: []ir.Parameter{{Name: "cond", Type: i32()}}, ReturnType: i32()},
		Content: []*ir.BasicBlock{entry, thenB, elseB, join},
	}
}

func TestMem2Reg_IfElseMerge(t *testing.T) {
	fn := ifElseMergeSource()
	e := edit.NewEditor(fn)
	if _, err := (MemoryToRegister{}).Run(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	join := fn.BlockByName("join")
	if join == nil {
		t.Fatalf("expected join block to survive")
	}
	if len(join.Content) == 0 {
		t.Fatalf("expected join block to retain statements")
	}

	phi, ok := join.Content[0].(*ir.Phi)
	if !ok {
		t.Fatalf("expected join to begin with a phi, got %T", join.Content[0])
	}
	if len(phi.Sources) != 2 {
		t.Fatalf("expected 2 phi sources, got %d", len(phi.Sources))
	}
	if err := ir.Verify(fn); err != nil {
		t.Fatalf("function invalid after Mem2Reg: %v", err)
	}
}

func TestFixIrreducible_ResolvesMultiEntrySCC(t *testing.T) {
	b0 := &ir.BasicBlock{Name: "bb0", Content: []ir.Statement{
		&ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("p"), Right: ir.NumberLiteral(0), Then: "bb1", Else: "bb2"},
	}}
	b1 := &ir.BasicBlock{Name: "bb1", Content: []ir.Statement{&ir.Jump{Target: "bb2"}}}
	b2 := &ir.BasicBlock{Name: "bb2", Content: []ir.Statement{&ir.Jump{Target: "bb1"}}}
	fn := &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "irred", Parameters: []ir.Parameter{{Name: "p", Type: i32()}}, ReturnType: ir.NoneType{}},
		Content: []*ir.BasicBlock{b0, b1, b2},
	}

	e := edit.NewEditor(fn)
	changed, err := (FixIrreducible{}).Run(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatalf("expected FixIrreducible to report a change")
	}

	cfg := analysis.BuildControlFlowGraph(fn)
	for _, scc := range analysis.TopLevelSccs(cfg) {
		if scc.IsTrivial() {
			continue
		}
		if !scc.Reducible(cfg) {
			t.Fatalf("expected every SCC to be reducible after FixIrreducible, found %v with entries %v", scc.Blocks, scc.EntryNodes(cfg))
		}
	}

	// Reapplying should be a no-op fixpoint.
	e2 := edit.NewEditor(fn)
	changed2, err := (FixIrreducible{}).Run(e2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed2 {
		t.Fatalf("expected FixIrreducible to be a no-op once no SCC is irreducible")
	}
}

func TestFixIrreducible_DispatcherShape(t *testing.T) {
	b0 := &ir.BasicBlock{Name: "bb0", Content: []ir.Statement{
		&ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("p"), Right: ir.NumberLiteral(0), Then: "bb1", Else: "bb2"},
	}}
	b1 := &ir.BasicBlock{Name: "bb1", Content: []ir.Statement{&ir.Jump{Target: "bb2"}}}
	b2 := &ir.BasicBlock{Name: "bb2", Content: []ir.Statement{&ir.Jump{Target: "bb1"}}}
	fn := &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "irred", Parameters: []ir.Parameter{{Name: "p", Type: i32()}}, ReturnType: ir.NoneType{}},
		Content: []*ir.BasicBlock{b0, b1, b2},
	}

	e := edit.NewEditor(fn)
	if _, err := (FixIrreducible{}).Run(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dispatcher := fn.BlockByName("dispatch_0")
	if dispatcher == nil {
		t.Fatalf("expected a dispatch_0 block, got blocks %v", func() []string {
			var names []string
			for _, b := range fn.Content {
				names = append(names, b.Name)
			}
			return names
		}())
	}
	phi, ok := dispatcher.Content[0].(*ir.Phi)
	if !ok {
		t.Fatalf("expected the dispatcher to begin with a predicate phi, got %T", dispatcher.Content[0])
	}
	if len(phi.Sources) != 3 {
		t.Fatalf("expected one phi source per redirected predecessor (bb0, bb1, bb2), got %v", phi.Sources)
	}
	sourceBy := make(map[string]ir.Quantity, len(phi.Sources))
	for _, src := range phi.Sources {
		sourceBy[src.FromBlock] = src.Value
	}
	if _, ok := sourceBy["bb0"].(ir.Register); !ok {
		t.Fatalf("expected bb0's source to be its extracted branch condition, got %v", sourceBy["bb0"])
	}
	if sourceBy["bb1"] != ir.NumberLiteral(0) || sourceBy["bb2"] != ir.NumberLiteral(1) {
		t.Fatalf("expected constant sources 0 from bb1 (it targets bb2) and 1 from bb2 (it targets bb1), got %v", sourceBy)
	}
	branch, ok := dispatcher.Terminator().(*ir.Branch)
	if !ok {
		t.Fatalf("expected the dispatcher to end in a Branch, got %T", dispatcher.Terminator())
	}
	if branch.Kind != ir.BranchNE || branch.Then != "bb1" || branch.Else != "bb2" {
		t.Fatalf("expected Branch(NE, p, 0, bb1, bb2), got %s", branch)
	}
	if err := ir.Verify(fn); err != nil {
		t.Fatalf("function invalid after FixIrreducible: %v", err)
	}
}

func TestRemoveOnlyOnceStore(t *testing.T) {
	fn := simpleAssignment()
	e := edit.NewEditor(fn)
	if _, err := (RemoveOnlyOnceStore{}).Run(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range fn.Content {
		for _, s := range b.Content {
			if _, ok := s.(*ir.Alloca); ok {
				t.Fatalf("expected allocas with a dominating single store to be removed, found %s", s)
			}
		}
	}
}

func TestRemoveUnusedRegister(t *testing.T) {
	entry := &ir.BasicBlock{Name: "entry", Content: []ir.Statement{
		&ir.BinaryCalculate{Result: "unused", Op: ir.Add, Type: i32(), Left: ir.NumberLiteral(1), Right: ir.NumberLiteral(2)},
		&ir.Ret{},
	}}
	fn := &ir.FunctionDefinition{Header: ir.FunctionHeader{Name: "f", ReturnType: ir.NoneType{}}, Content: []*ir.BasicBlock{entry}}
	e := edit.NewEditor(fn)
	changed, err := (RemoveUnusedRegister{}).Run(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatalf("expected a change")
	}
	if len(fn.Content[0].Content) != 1 {
		t.Fatalf("expected only the Ret to remain, got %d statements", len(fn.Content[0].Content))
	}
}

func TestTopologicalSort_EntryFirst(t *testing.T) {
	entry := &ir.BasicBlock{Name: "entry", Content: []ir.Statement{&ir.Jump{Target: "mid"}}}
	mid := &ir.BasicBlock{Name: "mid", Content: []ir.Statement{&ir.Ret{}}}
	fn := &ir.FunctionDefinition{Header: ir.FunctionHeader{Name: "f", ReturnType: ir.NoneType{}}, Content: []*ir.BasicBlock{mid, entry}}
	fn.Content[0], fn.Content[1] = entry, mid
	e := edit.NewEditor(fn)
	if _, err := (TopologicalSort{}).Run(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn.Content[0].Name != "entry" {
		t.Fatalf("expected entry first, got %s", fn.Content[0].Name)
	}
}

// TestOrderedSuccessors_OnlyPredecessorFirst exercises spec §4.7's first tie-
// break directly: among h's two successors, "b" has no predecessor besides
// h while "a" also has "x" as a predecessor, so "b" must sort first even
// though it is the Else target and "a" is Then.
func TestOrderedSuccessors_OnlyPredecessorFirst(t *testing.T) {
	x := &ir.BasicBlock{Name: "x", Content: []ir.Statement{&ir.Jump{Target: "a"}}}
	h := &ir.BasicBlock{Name: "h", Content: []ir.Statement{
		&ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("p"), Right: ir.NumberLiteral(0), Then: "a", Else: "b"},
	}}
	a := &ir.BasicBlock{Name: "a", Content: []ir.Statement{&ir.Ret{}}}
	b := &ir.BasicBlock{Name: "b", Content: []ir.Statement{&ir.Ret{}}}
	fn := &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "f", Parameters: []ir.Parameter{{Name: "p", Type: i32()}}, ReturnType: ir.NoneType{}},
		Content: []*ir.BasicBlock{x, h, a, b},
	}
	cfg := analysis.BuildControlFlowGraph(fn)
	got := orderedSuccessors(cfg, h)
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("expected [b a] (b has no other predecessor), got %v", got)
	}
}

// TestOrderedSuccessors_SameLoopBodyFirst exercises spec §4.7's second tie-
// break: once the only-predecessor tie-break is a draw (both successors have
// exactly one predecessor, the header), the successor inside the header's own
// loop body ("body") sorts before the one outside it ("exit"), even though
// "exit" is the Then target and "body" is Else.
func TestOrderedSuccessors_SameLoopBodyFirst(t *testing.T) {
	header := &ir.BasicBlock{Name: "header", Content: []ir.Statement{
		&ir.Branch{Kind: ir.BranchLT, Left: ir.Register("i"), Right: ir.Register("n"), Then: "exit", Else: "body"},
	}}
	body := &ir.BasicBlock{Name: "body", Content: []ir.Statement{&ir.Jump{Target: "header"}}}
	exit := &ir.BasicBlock{Name: "exit", Content: []ir.Statement{&ir.Ret{}}}
	fn := &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "f", Parameters: []ir.Parameter{{Name: "i", Type: i32()}, {Name: "n", Type: i32()}}, ReturnType: ir.NoneType{}},
		Content: []*ir.BasicBlock{header, body, exit},
	}
	cfg := analysis.BuildControlFlowGraph(fn)
	got := orderedSuccessors(cfg, header)
	if len(got) != 2 || got[0] != "body" || got[1] != "exit" {
		t.Fatalf("expected [body exit] (body shares header's loop), got %v", got)
	}
}
