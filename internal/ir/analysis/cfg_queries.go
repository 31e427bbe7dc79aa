package analysis

import (
	"sort"

	"kiln/internal/ir"
)

// MayPassBlocks returns every block that is reachable from from and can also
// reach to, inclusive of both endpoints. This is a superset of the blocks on
// simple paths from from to to: a block that is only reached by passing
// through to and cycling back is included as well. Memoized per (from, to)
// pair since RegisterUsage calls it once per use on the same cfg.
func (c *ControlFlowGraph) MayPassBlocks(from, to int) []int {
	key := [2]int{from, to}
	if c.mayPass == nil {
		c.mayPass = make(map[[2]int][]int)
	}
	if cached, ok := c.mayPass[key]; ok {
		return cached
	}
	forward := c.reachableForward(from)
	backward := c.reachableBackward(to)
	var out []int
	for b := range forward {
		if backward[b] {
			out = append(out, b)
		}
	}
	sort.Ints(out)
	c.mayPass[key] = out
	return out
}

func (c *ControlFlowGraph) reachableForward(from int) map[int]bool {
	seen := map[int]bool{from: true}
	stack := []int{from}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, w := range c.Successors(v) {
			if !seen[w] {
				seen[w] = true
				stack = append(stack, w)
			}
		}
	}
	return seen
}

func (c *ControlFlowGraph) reachableBackward(to int) map[int]bool {
	seen := map[int]bool{to: true}
	stack := []int{to}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range c.Predecessors(v) {
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return seen
}

// BranchDirection reports whether target is the success (Then) label of the
// Branch terminating branchBlock. False for any other terminator or target.
func (c *ControlFlowGraph) BranchDirection(branchBlock, target int) bool {
	br, ok := c.fn.Content[branchBlock].Terminator().(*ir.Branch)
	if !ok {
		return false
	}
	thenIdx, ok := c.IndexOf(br.Then)
	return ok && thenIdx == target
}

// IsInSameBranchSide reports whether b1 and b2 both lie, or both do not lie,
// in the dominator-tree subtree rooted at branch's Then successor. Blocks
// below that successor (in dominator terms) are the branch's "then side";
// everything else, including the Else side and anything past the join, is
// the complement.
func (c *ControlFlowGraph) IsInSameBranchSide(dom *Dominators, branch, b1, b2 int) bool {
	br, ok := c.fn.Content[branch].Terminator().(*ir.Branch)
	if !ok {
		return true
	}
	thenIdx, ok := c.IndexOf(br.Then)
	if !ok {
		return true
	}
	return dom.Dominates(thenIdx, b1) == dom.Dominates(thenIdx, b2)
}
