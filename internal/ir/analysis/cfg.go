// Package analysis implements the analyzer framework of spec §4.1: a
// ControlFlowGraph with dominators and dominance frontiers, SCC/loop nesting,
// and register/memory usage, all derived lazily and invalidated by edits.
// Grounded on _examples/tmc-mirror-go.tools/ssa/lift.go's dominator/dominance-
// frontier construction, generalized from a one-shot SSA lift to a cached,
// re-derivable analyzer.
package analysis

import "kiln/internal/ir"

// ControlFlowGraph is the bijection between block names and dense indices,
// plus the successor/predecessor adjacency derived from each block's
// terminator. The graph carries one synthetic exit node past the last real
// block index: every Ret block's single successor. The exit has no name and
// no statements; NumBlocks excludes it so passes iterating real blocks never
// see it.
type ControlFlowGraph struct {
	fn      *ir.FunctionDefinition
	index   map[string]int
	names   []string
	succs   [][]int
	preds   [][]int
	mayPass map[[2]int][]int
}

// BuildControlFlowGraph walks fn's blocks once and records every terminator's
// successor list, plus the reverse (predecessor) adjacency. Jump contributes
// one edge, Branch two (success first), and Ret an edge to the synthetic
// exit.
func BuildControlFlowGraph(fn *ir.FunctionDefinition) *ControlFlowGraph {
	cfg := &ControlFlowGraph{
		fn:    fn,
		index: make(map[string]int, len(fn.Content)),
		names: make([]string, len(fn.Content)),
	}
	for i, b := range fn.Content {
		cfg.index[b.Name] = i
		cfg.names[i] = b.Name
	}
	exit := len(fn.Content)
	cfg.succs = make([][]int, len(fn.Content)+1)
	cfg.preds = make([][]int, len(fn.Content)+1)
	for i, b := range fn.Content {
		term := b.Terminator()
		if term == nil {
			continue
		}
		if _, isRet := term.(*ir.Ret); isRet {
			cfg.succs[i] = append(cfg.succs[i], exit)
			cfg.preds[exit] = append(cfg.preds[exit], i)
			continue
		}
		for _, label := range term.Successors() {
			j, ok := cfg.index[label]
			if !ok {
				continue
			}
			cfg.succs[i] = append(cfg.succs[i], j)
			cfg.preds[j] = append(cfg.preds[j], i)
		}
	}
	return cfg
}

// NumBlocks returns the number of real blocks in the function, excluding the
// synthetic exit.
func (c *ControlFlowGraph) NumBlocks() int { return len(c.names) }

// ExitIndex returns the synthetic exit node's index, one past the last real
// block.
func (c *ControlFlowGraph) ExitIndex() int { return len(c.names) }

// IndexOf returns the dense index of a block name.
func (c *ControlFlowGraph) IndexOf(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// NameOf returns the block name at a dense index; the synthetic exit has no
// name.
func (c *ControlFlowGraph) NameOf(i int) string {
	if i >= len(c.names) {
		return ""
	}
	return c.names[i]
}

// Successors returns the dense indices of block i's successors.
func (c *ControlFlowGraph) Successors(i int) []int { return c.succs[i] }

// Predecessors returns the dense indices of block i's predecessors.
func (c *ControlFlowGraph) Predecessors(i int) []int { return c.preds[i] }

// PredecessorNames returns the predecessor block names of the named block, the
// form used by phi-completeness checks.
func (c *ControlFlowGraph) PredecessorNames(name string) []string {
	i, ok := c.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(c.preds[i]))
	for k, p := range c.preds[i] {
		out[k] = c.names[p]
	}
	return out
}

// EntryIndex is always 0: Content[0] is the entry block, per spec §3.
func (c *ControlFlowGraph) EntryIndex() int { return 0 }
