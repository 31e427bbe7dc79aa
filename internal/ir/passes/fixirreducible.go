package passes

import (
	"fmt"

	"kiln/internal/ir"
	"kiln/internal/ir/analysis"
	"kiln/internal/ir/edit"
)

// FixIrreducible converts an irreducible CFG (an SCC reached through more
// than one entry block) into a reducible one by funneling every edge into
// the component's entries through a dispatcher chain. The dispatcher
// re-derives which entry control wants from one-hot predicate registers:
// for each entry e_i except the last, a phi p_i in the first dispatcher
// block carries 1 from predecessors that originally targeted e_i, 0 from
// those that targeted another entry, and the predecessor's own extracted
// branch condition when a single branch targeted two different entries at
// once. Each dispatcher link ends in Branch(NE, p_i, 0, e_i, next), the
// last link falling through to the final entry.
type FixIrreducible struct{}

func (FixIrreducible) Name() string       { return "fix-irreducible" }
func (FixIrreducible) Need() []string       { return []string{"mem2reg"} }
func (FixIrreducible) Invalidate() []string { return []string{"topo-sort", "remove-unused-register"} }

// predicateType is the type of the dispatcher's one-hot predicate and
// condition-extraction registers.
var predicateType = ir.IntegerType{Signed: false, Width: 1}

func (FixIrreducible) Run(e *edit.Editor) (bool, error) {
	changed := false
	dispatcherSeq := 0
	for {
		fn := e.Function()
		bound := e.Bind()
		cfg := bound.CFG()
		scc := analysis.FirstIrreducibleSubScc(cfg)
		if scc == nil {
			break
		}
		blocks, err := fixOneScc(fn, cfg, scc, dispatcherSeq)
		if err != nil {
			return changed, err
		}
		dispatcherSeq++
		if err := e.Submit(&edit.ReplaceContent{Blocks: blocks}); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func fixOneScc(fn *ir.FunctionDefinition, cfg *analysis.ControlFlowGraph, scc *analysis.Scc, seq int) ([]*ir.BasicBlock, error) {
	entries := scc.EntryNodes(cfg)
	k := len(entries)

	blocks := cloneBlocks(fn.Content)
	entryNames := make([]string, k)
	for i, e := range entries {
		entryNames[i] = blocks[e].Name
	}

	dispatcherName := fmt.Sprintf("dispatch_%d", seq)
	// One predicate phi per entry except the last, which is the fall-through.
	phis := make([]*ir.Phi, k-1)
	for i := range phis {
		phis[i] = &ir.Phi{
			Result: ir.RegisterName(fmt.Sprintf("disp_p_%d_%d", seq, i)),
			Type:   predicateType,
		}
	}

	isEntry := func(name string) (int, bool) {
		for i, en := range entryNames {
			if en == name {
				return i, true
			}
		}
		return 0, false
	}

	// addSources appends one source per predicate phi for the redirected
	// predecessor block. valueFor returns the incoming value of p_i.
	addSources := func(from string, valueFor func(i int) ir.Quantity) {
		for i, phi := range phis {
			phi.Sources = append(phi.Sources, ir.PhiSource{FromBlock: from, Value: valueFor(i)})
		}
	}
	constantTarget := func(target int) func(int) ir.Quantity {
		return func(i int) ir.Quantity {
			if i == target {
				return ir.NumberLiteral(1)
			}
			return ir.NumberLiteral(0)
		}
	}

	for bi, b := range blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		switch t := term.(type) {
		case *ir.Jump:
			if idx, ok := isEntry(t.Target); ok {
				addSources(b.Name, constantTarget(idx))
				t.Target = dispatcherName
			}
		case *ir.Branch:
			thenIdx, thenIsEntry := isEntry(t.Then)
			elseIdx, elseIsEntry := isEntry(t.Else)
			switch {
			case thenIsEntry && elseIsEntry && thenIdx == elseIdx:
				// Both sides name the same entry: the condition is moot.
				b.Content[len(b.Content)-1] = &ir.Jump{Target: dispatcherName}
				addSources(b.Name, constantTarget(thenIdx))
			case thenIsEntry && elseIsEntry:
				// The branch picks between two entries; extract its condition
				// so the dispatcher can re-decide it. The then-side entry sees
				// the condition as-is, the else-side entry inverted.
				cond := ir.RegisterName(fmt.Sprintf("disp_c_%d_%d", seq, bi))
				inv := ir.RegisterName(fmt.Sprintf("disp_ci_%d_%d", seq, bi))
				var extracted []ir.Statement
				needCond := thenIdx < k-1
				needInv := elseIdx < k-1
				if needCond {
					extracted = append(extracted, &ir.BinaryCalculate{
						Result: cond, Op: branchKindToBinaryOp(t.Kind), Type: predicateType,
						Left: t.Left, Right: t.Right,
					})
				}
				if needInv {
					extracted = append(extracted, &ir.BinaryCalculate{
						Result: inv, Op: branchKindToBinaryOp(t.Kind.Inverse()), Type: predicateType,
						Left: t.Left, Right: t.Right,
					})
				}
				body := append(b.Content[:len(b.Content)-1:len(b.Content)-1], extracted...)
				b.Content = append(body, &ir.Jump{Target: dispatcherName})
				addSources(b.Name, func(i int) ir.Quantity {
					switch i {
					case thenIdx:
						return ir.Register(cond)
					case elseIdx:
						return ir.Register(inv)
					default:
						return ir.NumberLiteral(0)
					}
				})
			case thenIsEntry:
				t.Then = dispatcherName
				addSources(b.Name, constantTarget(thenIdx))
			case elseIsEntry:
				t.Else = dispatcherName
				addSources(b.Name, constantTarget(elseIdx))
			}
		}
	}

	// The dispatcher chain: the first link holds every predicate phi; each
	// link tests one predicate and falls through to the next, the last one
	// falling through to the final entry.
	linkName := func(i int) string {
		if i == 0 {
			return dispatcherName
		}
		return fmt.Sprintf("%s_check%d", dispatcherName, i)
	}
	var chain []*ir.BasicBlock
	for i := 0; i < k-1; i++ {
		next := entryNames[k-1]
		if i < k-2 {
			next = linkName(i + 1)
		}
		link := &ir.BasicBlock{Name: linkName(i)}
		if i == 0 {
			for _, phi := range phis {
				link.Content = append(link.Content, phi)
			}
		}
		link.Content = append(link.Content, &ir.Branch{
			Kind: ir.BranchNE,
			Left: ir.Register(phis[i].Result), Right: ir.NumberLiteral(0),
			Then: entryNames[i], Else: next,
		})
		chain = append(chain, link)
	}

	return append(blocks, chain...), nil
}

func branchKindToBinaryOp(k ir.BranchKind) ir.BinaryOperation {
	switch k {
	case ir.BranchEQ:
		return ir.Equal
	case ir.BranchNE:
		return ir.NotEqual
	case ir.BranchLT:
		return ir.LessThan
	case ir.BranchGE:
		return ir.GreaterOrEqualThan
	default:
		return ir.Equal
	}
}
