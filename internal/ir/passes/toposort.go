package passes

import (
	"sort"

	"kiln/internal/ir"
	"kiln/internal/ir/analysis"
	"kiln/internal/ir/edit"
)

// TopologicalSort reorders a function's blocks into a DFS preorder over the
// (post-FixIrreducible, therefore reducible) CFG, breaking ties per spec
// §4.7: a successor with no other CFG predecessor comes first, then a
// successor inside the same loop body as the current block, then the
// terminator's own successor order. Blocks not reached from the entry follow,
// each starting a further DFS in original index order, so the ordering is
// deterministic across runs on identical input.
type TopologicalSort struct{}

func (TopologicalSort) Name() string       { return "topo-sort" }
func (TopologicalSort) Need() []string       { return []string{"fix-irreducible"} }
func (TopologicalSort) Invalidate() []string { return nil }

func (TopologicalSort) Run(e *edit.Editor) (bool, error) {
	fn := e.Function()
	if len(fn.Content) == 0 {
		return false, nil
	}
	cfg := analysis.BuildControlFlowGraph(fn)

	originalIndex := make(map[string]int, len(fn.Content))
	for i, b := range fn.Content {
		originalIndex[b.Name] = i
	}

	visited := make(map[string]bool, len(fn.Content))
	var order []*ir.BasicBlock
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		if b == nil || visited[b.Name] {
			return
		}
		visited[b.Name] = true
		order = append(order, b)
		for _, succName := range orderedSuccessors(cfg, b) {
			visit(fn.BlockByName(succName))
		}
	}
	visit(fn.Content[0])

	var remaining []*ir.BasicBlock
	for _, b := range fn.Content {
		if !visited[b.Name] {
			remaining = append(remaining, b)
		}
	}
	sort.Slice(remaining, func(i, j int) bool {
		return originalIndex[remaining[i].Name] < originalIndex[remaining[j].Name]
	})
	for _, b := range remaining {
		visit(b)
	}

	changed := false
	for i, b := range order {
		if fn.Content[i] != b {
			changed = true
			break
		}
	}
	if !changed {
		return false, nil
	}
	if err := e.Submit(&edit.ReplaceContent{Blocks: order}); err != nil {
		return false, err
	}
	return true, nil
}

// orderedSuccessors returns b's terminator successors ordered by spec §4.7's
// two tie-breaks: a successor whose only CFG predecessor is b comes first
// (it can't be reached any other way, so visiting it immediately keeps the
// order closest to a true topological one); among the rest, a successor in
// the same loop body as b (the same innermost non-trivial SCC) comes before
// one outside it, keeping a loop's body contiguous in the final order. Ties
// after both tie-breaks keep the terminator's own successor order.
func orderedSuccessors(cfg *analysis.ControlFlowGraph, b *ir.BasicBlock) []string {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	succs := term.Successors()
	if len(succs) <= 1 {
		return succs
	}
	bi, ok := cfg.IndexOf(b.Name)
	if !ok {
		return succs
	}
	bLoop := analysis.SmallestNonTrivialSccContaining(cfg, bi)

	onlyPredecessor := func(name string) bool {
		si, ok := cfg.IndexOf(name)
		return ok && len(cfg.Predecessors(si)) == 1
	}
	sameLoopBody := func(name string) bool {
		if bLoop == nil {
			return false
		}
		si, ok := cfg.IndexOf(name)
		if !ok {
			return false
		}
		sLoop := analysis.SmallestNonTrivialSccContaining(cfg, si)
		return sLoop != nil && sameBlockSet(sLoop, bLoop)
	}

	ordered := append([]string{}, succs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		iOnly, jOnly := onlyPredecessor(ordered[i]), onlyPredecessor(ordered[j])
		if iOnly != jOnly {
			return iOnly
		}
		iSame, jSame := sameLoopBody(ordered[i]), sameLoopBody(ordered[j])
		if iSame != jSame {
			return iSame
		}
		return false
	})
	return ordered
}

func sameBlockSet(a, b *analysis.Scc) bool {
	if len(a.Blocks) != len(b.Blocks) {
		return false
	}
	for i := range a.Blocks {
		if a.Blocks[i] != b.Blocks[i] {
			return false
		}
	}
	return true
}
