package analysis

import (
	"testing"

	"kiln/internal/ir"
)

func block(name string, content ...ir.Statement) *ir.BasicBlock {
	return &ir.BasicBlock{Name: name, Content: content}
}

func i32() ir.Type { return ir.IntegerType{Signed: true, Width: 32} }

// diamondFunction builds the scenario-2 if-else-merge CFG: entry branches to
// then/else, both jump to join.
func diamondFunction() *ir.FunctionDefinition {
	entry := block("entry", &ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("cond"), Right: ir.NumberLiteral(0), Then: "then_block", Else: "else_block"})
	thenB := block("then_block", &ir.Jump{Target: "join"})
	elseB := block("else_block", &ir.Jump{Target: "join"})
	join := block("join", &ir.Ret{})
	return &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "diamond", Parameters: []ir.Parameter{{Name: "cond", Type: i32()}}, ReturnType: i32()},
		Content: []*ir.BasicBlock{entry, thenB, elseB, join},
	}
}

func TestControlFlowGraph_Diamond(t *testing.T) {
	cfg := BuildControlFlowGraph(diamondFunction())
	if _, ok := cfg.IndexOf("join"); !ok {
		t.Fatalf("expected join block to exist")
	}
	preds := cfg.PredecessorNames("join")
	if len(preds) != 2 {
		t.Fatalf("expected 2 predecessors of join, got %v", preds)
	}
}

func TestDominators_Diamond(t *testing.T) {
	cfg := BuildControlFlowGraph(diamondFunction())
	dom := BuildDominators(cfg)
	entry, _ := cfg.IndexOf("entry")
	thenIdx, _ := cfg.IndexOf("then_block")
	join, _ := cfg.IndexOf("join")

	if !dom.Dominates(entry, join) {
		t.Fatalf("entry should dominate join")
	}
	if dom.Dominates(thenIdx, join) {
		t.Fatalf("then_block should not dominate join (else_block also reaches it)")
	}
	frontier := dom.Frontier(thenIdx)
	if len(frontier) != 1 {
		t.Fatalf("expected a single-block dominance frontier, got %v", frontier)
	}
	if got := cfg.NameOf(frontier[0]); got != "join" {
		t.Fatalf("expected then_block's dominance frontier to be {join}, got %s", got)
	}
}

// whileLoopFunction builds scenario 3: entry -> header -[cond]-> body -> header,
// header -[!cond]-> exit.
func whileLoopFunction() *ir.FunctionDefinition {
	entry := block("entry", &ir.Jump{Target: "header"})
	header := block("header", &ir.Branch{Kind: ir.BranchLT, Left: ir.Register("i"), Right: ir.Register("n"), Then: "body", Else: "exit"})
	body := block("body", &ir.Jump{Target: "header"})
	exit := block("exit", &ir.Ret{})
	return &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "loop", Parameters: []ir.Parameter{{Name: "n", Type: i32()}}, ReturnType: i32()},
		Content: []*ir.BasicBlock{entry, header, body, exit},
	}
}

func TestBranchQueries_Diamond(t *testing.T) {
	cfg := BuildControlFlowGraph(diamondFunction())
	dom := BuildDominators(cfg)
	entry, _ := cfg.IndexOf("entry")
	thenIdx, _ := cfg.IndexOf("then_block")
	elseIdx, _ := cfg.IndexOf("else_block")
	join, _ := cfg.IndexOf("join")

	if !cfg.BranchDirection(entry, thenIdx) {
		t.Fatalf("then_block should be on the success side of entry's branch")
	}
	if cfg.BranchDirection(entry, elseIdx) {
		t.Fatalf("else_block should not be on the success side of entry's branch")
	}
	if cfg.IsInSameBranchSide(dom, entry, thenIdx, elseIdx) {
		t.Fatalf("then_block and else_block lie on opposite sides of the branch")
	}
	if !cfg.IsInSameBranchSide(dom, entry, elseIdx, join) {
		t.Fatalf("else_block and join both lie outside the success subtree")
	}

	mayPass := cfg.MayPassBlocks(entry, join)
	if len(mayPass) != 4 {
		t.Fatalf("every block lies on some entry-to-join path, got %v", mayPass)
	}
}

func TestRegisterUsage_ActiveBlocks(t *testing.T) {
	fn := whileLoopFunction()
	cfg := BuildControlFlowGraph(fn)
	ru := BuildRegisterUsage(fn, cfg)

	pos, ok := ru.DefinePosition("n")
	if !ok || !pos.IsParameter {
		t.Fatalf("expected n to be defined as a parameter, got %+v", pos)
	}
	header, _ := cfg.IndexOf("header")
	active := ru.RegisterActiveBlocks("n")
	if !active[header] {
		t.Fatalf("expected n to be active in the header (its use site), got %v", active)
	}
}

func TestBackEdges_WhileLoop(t *testing.T) {
	cfg := BuildControlFlowGraph(whileLoopFunction())
	dom := BuildDominators(cfg)
	edges := BackEdges(cfg, dom)
	if len(edges) != 1 {
		t.Fatalf("expected exactly one back edge, got %v", edges)
	}
	body, _ := cfg.IndexOf("body")
	header, _ := cfg.IndexOf("header")
	if edges[0][0] != body || edges[0][1] != header {
		t.Fatalf("expected the back edge to run body->header, got %v", edges[0])
	}
}

// irreducibleFunction builds scenario 4: 0->1, 0->2, 1->2, 2->1.
func irreducibleFunction() *ir.FunctionDefinition {
	b0 := block("bb0", &ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("p"), Right: ir.NumberLiteral(0), Then: "bb1", Else: "bb2"})
	b1 := block("bb1", &ir.Jump{Target: "bb2"})
	b2 := block("bb2", &ir.Jump{Target: "bb1"})
	return &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "irred", Parameters: []ir.Parameter{{Name: "p", Type: i32()}}, ReturnType: ir.NoneType{}},
		Content: []*ir.BasicBlock{b0, b1, b2},
	}
}

func TestFirstIrreducibleSubScc(t *testing.T) {
	cfg := BuildControlFlowGraph(irreducibleFunction())
	scc := FirstIrreducibleSubScc(cfg)
	if scc == nil {
		t.Fatalf("expected an irreducible SCC")
	}
	entries := scc.EntryNodes(cfg)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entry nodes into {bb1,bb2}, got %v", entries)
	}
}

// nestedIrreducibleFunction builds a reducible outer loop (bb_h is the sole
// entry, dominating both bb_a and bb_b) whose body hides a multi-entry
// structure: bb_h->bb_a, bb_h->bb_b, bb_a->bb_h, bb_a->bb_b, bb_b->bb_a. A
// flat Tarjan pass merges all three blocks into one component with a single
// entry (bb_h), reporting it reducible; only decomposing {bb_a, bb_b} on its
// own (after removing the bb_a->bb_h back edge) reveals that bb_a and bb_b
// are each reached directly from bb_h, the irreducible sub-structure
// FirstIrreducibleSubScc must still find.
func nestedIrreducibleFunction() *ir.FunctionDefinition {
	h := block("bb_h", &ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("p"), Right: ir.NumberLiteral(0), Then: "bb_a", Else: "bb_b"})
	a := block("bb_a", &ir.Branch{Kind: ir.BranchEQ, Left: ir.Register("q"), Right: ir.NumberLiteral(0), Then: "bb_h", Else: "bb_b"})
	b := block("bb_b", &ir.Jump{Target: "bb_a"})
	return &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "nested", Parameters: []ir.Parameter{{Name: "p", Type: i32()}, {Name: "q", Type: i32()}}, ReturnType: ir.NoneType{}},
		Content: []*ir.BasicBlock{h, a, b},
	}
}

func TestFirstIrreducibleSubScc_NestedUnderReducibleOuterLoop(t *testing.T) {
	cfg := BuildControlFlowGraph(nestedIrreducibleFunction())

	flat := TopLevelSccs(cfg)
	if len(flat) != 1 {
		t.Fatalf("expected one flat SCC covering all three blocks, got %v", flat)
	}
	if !flat[0].Reducible(cfg) {
		t.Fatalf("expected the flat whole-loop SCC to look reducible from the outside: %v", flat[0].EntryNodes(cfg))
	}

	scc := FirstIrreducibleSubScc(cfg)
	if scc == nil {
		t.Fatalf("expected the nested irreducible {bb_a, bb_b} structure to be found")
	}
	a, _ := cfg.IndexOf("bb_a")
	b, _ := cfg.IndexOf("bb_b")
	if !scc.Contains(a) || !scc.Contains(b) {
		t.Fatalf("expected the irreducible sub-SCC to be {bb_a, bb_b}, got %v", scc.Blocks)
	}
	if scc.Contains(func() int { h, _ := cfg.IndexOf("bb_h"); return h }()) {
		t.Fatalf("expected bb_h, the reducible loop header, to be excluded from the nested irreducible sub-SCC: %v", scc.Blocks)
	}
	entries := scc.EntryNodes(cfg)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entry nodes into {bb_a, bb_b}, got %v", entries)
	}
}

func TestMemoryUsage_StoreDominatesAllLoads(t *testing.T) {
	alloc := &ir.Alloca{Result: "slot", Type: i32()}
	store := &ir.Store{Type: i32(), Address: ir.Register("slot"), Value: ir.NumberLiteral(1)}
	load := &ir.Load{Result: "v", Address: ir.Register("slot"), Type: i32()}
	entry := block("entry", alloc, store, &ir.Jump{Target: "use"})
	use := block("use", load, &ir.Ret{Value: ir.Register("v")})
	fn := &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "f", ReturnType: i32()},
		Content: []*ir.BasicBlock{entry, use},
	}
	cfg := BuildControlFlowGraph(fn)
	dom := BuildDominators(cfg)
	mu := BuildMemoryUsage(fn)
	if !mu.StoreDominatesAllLoads("slot", dom, cfg) {
		t.Fatalf("expected the single dominating store to satisfy the precondition")
	}
}

func TestMemoryUsage_StoreDoesNotDominateAllLoads(t *testing.T) {
	// entry branches; only the then side stores, both sides load: the store
	// does not dominate the else-side load.
	alloc := &ir.Alloca{Result: "slot", Type: i32()}
	entry := block("entry", alloc, &ir.Branch{Kind: ir.BranchEQ, Left: ir.NumberLiteral(0), Right: ir.NumberLiteral(0), Then: "then_block", Else: "else_block"})
	store := &ir.Store{Type: i32(), Address: ir.Register("slot"), Value: ir.NumberLiteral(1)}
	thenB := block("then_block", store, &ir.Jump{Target: "join"})
	elseB := block("else_block", &ir.Jump{Target: "join"})
	load := &ir.Load{Result: "v", Address: ir.Register("slot"), Type: i32()}
	join := block("join", load, &ir.Ret{Value: ir.Register("v")})
	fn := &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "f", ReturnType: i32()},
		Content: []*ir.BasicBlock{entry, thenB, elseB, join},
	}
	cfg := BuildControlFlowGraph(fn)
	dom := BuildDominators(cfg)
	mu := BuildMemoryUsage(fn)
	if mu.StoreDominatesAllLoads("slot", dom, cfg) {
		t.Fatalf("expected the precondition to fail: the join load is reachable without passing the store")
	}
}

func TestMemoryUsage_LoadsDominatedByStoreInBlock(t *testing.T) {
	entry := block("entry",
		&ir.Alloca{Result: "slot", Type: i32()},
		&ir.Store{Type: i32(), Address: ir.Register("slot"), Value: ir.NumberLiteral(1)},
		&ir.Load{Result: "a", Address: ir.Register("slot"), Type: i32()},
		&ir.Load{Result: "b", Address: ir.Register("slot"), Type: i32()},
		&ir.Store{Type: i32(), Address: ir.Register("slot"), Value: ir.NumberLiteral(2)},
		&ir.Load{Result: "c", Address: ir.Register("slot"), Type: i32()},
		&ir.Ret{Value: ir.Register("c")},
	)
	fn := &ir.FunctionDefinition{
		Header:  ir.FunctionHeader{Name: "f", ReturnType: i32()},
		Content: []*ir.BasicBlock{entry},
	}
	mu := BuildMemoryUsage(fn)

	first := mu.Stores("slot")[0]
	got := mu.LoadsDominatedByStoreInBlock("slot", first)
	if len(got) != 2 || got[0].StatementIndex != 2 || got[1].StatementIndex != 3 {
		t.Fatalf("expected the first store to dominate loads a and b only, got %v", got)
	}

	second := mu.Stores("slot")[1]
	got = mu.LoadsDominatedByStoreInBlock("slot", second)
	if len(got) != 1 || got[0].StatementIndex != 5 {
		t.Fatalf("expected the second store to dominate load c only, got %v", got)
	}
}

func TestBindedQueries_WhileLoop(t *testing.T) {
	fn := whileLoopFunction()
	b := NewAnalyzer().Bind(fn)

	sccs := b.Sccs()
	var nonTrivial *Scc
	for _, s := range sccs {
		if !s.IsTrivial() {
			nonTrivial = s
		}
	}
	if nonTrivial == nil {
		t.Fatalf("expected the header/body loop to show up as a non-trivial SCC, got %v", sccs)
	}
	if !nonTrivial.Reducible(b.CFG()) {
		t.Fatalf("expected the natural loop to be reducible")
	}

	if edges := b.BackEdges(); len(edges) != 1 {
		t.Fatalf("expected one back edge, got %v", edges)
	}
	if uses := b.Registers().Uses("n"); len(uses) != 1 {
		t.Fatalf("expected one use of n, got %v", uses)
	}
}

func TestAnalyzerInvalidation(t *testing.T) {
	fn := diamondFunction()
	a := NewAnalyzer()
	b := a.Bind(fn)
	cfg1 := b.CFG()

	fn.Content = append(fn.Content, block("extra", &ir.Ret{}))
	a.OnAction()

	b2 := a.Bind(fn)
	cfg2 := b2.CFG()
	if cfg1.NumBlocks() == cfg2.NumBlocks() {
		t.Fatalf("expected cache invalidation to pick up the new block")
	}
}
