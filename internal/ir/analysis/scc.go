package analysis

import "sort"

// Scc is one strongly-connected component of the CFG, identified by its
// member block indices. TopLevel marks the synthetic root component that
// FirstIrreducibleSubScc and SmallestNonTrivialSccContaining seed their
// recursion from: the whole reachable CFG, entered only through the
// function's own entry block.
type Scc struct {
	Blocks   []int
	TopLevel bool
}

// IsTrivial reports whether the component is a single block.
func (s *Scc) IsTrivial() bool { return len(s.Blocks) == 1 }

func (s *Scc) member() map[int]bool {
	m := make(map[int]bool, len(s.Blocks))
	for _, b := range s.Blocks {
		m[b] = true
	}
	return m
}

// Contains reports whether node belongs to s.
func (s *Scc) Contains(node int) bool {
	for _, b := range s.Blocks {
		if b == node {
			return true
		}
	}
	return false
}

// entryEdges returns every (from, to) edge with from outside s and to inside.
func (s *Scc) entryEdges(cfg *ControlFlowGraph) [][2]int {
	member := s.member()
	var edges [][2]int
	for _, b := range s.Blocks {
		for _, p := range cfg.Predecessors(b) {
			if !member[p] {
				edges = append(edges, [2]int{p, b})
			}
		}
	}
	return edges
}

// EntryNodes returns the blocks of s that are reached from outside s: the
// component's entry points. More than one entry makes the component
// irreducible. A TopLevel component (the synthetic whole-CFG root) or a
// singleton always has exactly one entry, itself: the real question of
// whether it hides further irreducibility is answered by decomposing it,
// not by counting its own outside edges.
func (s *Scc) EntryNodes(cfg *ControlFlowGraph) []int {
	if len(s.Blocks) == 0 {
		return nil
	}
	if s.TopLevel || len(s.Blocks) == 1 {
		return []int{s.Blocks[0]}
	}
	seen := make(map[int]bool)
	var entries []int
	for _, e := range s.entryEdges(cfg) {
		if !seen[e[1]] {
			seen[e[1]] = true
			entries = append(entries, e[1])
		}
	}
	if len(entries) == 0 {
		entries = append(entries, s.Blocks[0])
	}
	sort.Ints(entries)
	return entries
}

// Reducible reports whether s has exactly one entry node.
func (s *Scc) Reducible(cfg *ControlFlowGraph) bool {
	return len(s.EntryNodes(cfg)) <= 1
}

// TopLevelSccs computes the strongly-connected components of the reachable
// subgraph of cfg via Tarjan's algorithm, returning them in no particular
// component order (blocks within each are sorted for determinism). This is
// the flat, maximal decomposition: a loop header and an irreducible
// structure nested inside its body still merge into one component here, by
// design (Tarjan cannot do otherwise); FirstIrreducibleSubScc and
// SmallestNonTrivialSccContaining peel that nesting apart on top of this.
func TopLevelSccs(cfg *ControlFlowGraph) []*Scc {
	n := cfg.NumBlocks()
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	counter := 0
	var sccs []*Scc

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range cfg.Successors(v) {
			if w == cfg.ExitIndex() {
				continue
			}
			if index[w] == -1 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Ints(comp)
			sccs = append(sccs, &Scc{Blocks: comp})
		}
	}

	entry := cfg.EntryIndex()
	if index[entry] == -1 {
		strongconnect(entry)
	}
	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}
	return sccs
}

// BackEdges returns every (tail, head) pair where head dominates tail: a
// retreating edge along the dominator tree, the definition of a loop back
// edge for a reducible CFG.
func BackEdges(cfg *ControlFlowGraph, dom *Dominators) [][2]int {
	var edges [][2]int
	for b := 0; b < cfg.NumBlocks(); b++ {
		if !dom.Reachable(b) {
			continue
		}
		for _, s := range cfg.Successors(b) {
			if dom.Reachable(s) && dom.Dominates(s, b) {
				edges = append(edges, [2]int{b, s})
			}
		}
	}
	return edges
}

// wholeCfgScc returns the synthetic TopLevel component spanning every block
// reachable from the entry: the seed FirstIrreducibleSubScc and
// SmallestNonTrivialSccContaining decompose.
func wholeCfgScc(cfg *ControlFlowGraph) *Scc {
	entry := cfg.EntryIndex()
	reached := map[int]bool{entry: true}
	stack := []int{entry}
	var blocks []int
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		blocks = append(blocks, v)
		for _, w := range cfg.Successors(v) {
			if w == cfg.ExitIndex() {
				continue
			}
			if !reached[w] {
				reached[w] = true
				stack = append(stack, w)
			}
		}
	}
	sort.Ints(blocks)
	return &Scc{Blocks: blocks, TopLevel: true}
}

// largestLoopBackEdge finds, among the predecessors of entry that lie inside
// member, the one reached from entry by the longest simple path within
// member, and returns that predecessor: the tail of "the single largest
// back edge into the entry" that childSccs removes before re-deriving SCCs.
// ok is false when entry has no in-member predecessor at all.
func largestLoopBackEdge(cfg *ControlFlowGraph, member map[int]bool, entry int) (tail int, ok bool) {
	var preds []int
	seen := map[int]bool{}
	for b := range member {
		for _, succ := range cfg.Successors(b) {
			if succ == entry && !seen[b] {
				seen[b] = true
				preds = append(preds, b)
			}
		}
	}
	if len(preds) == 0 {
		return 0, false
	}
	sort.Ints(preds)
	best, bestLen := preds[0], -1
	for _, pred := range preds {
		length := longestSimplePathLength(cfg, member, entry, pred)
		if length >= bestLen {
			best, bestLen = pred, length
		}
	}
	return best, true
}

// longestSimplePathLength returns the number of edges in the longest simple
// path from -> to that stays within member, or -1 if none exists.
func longestSimplePathLength(cfg *ControlFlowGraph, member map[int]bool, from, to int) int {
	if from == to {
		for _, succ := range cfg.Successors(from) {
			if succ == from {
				return 1
			}
		}
		return -1
	}
	best := -1
	visited := map[int]bool{from: true}
	var dfs func(cur, length int)
	dfs = func(cur, length int) {
		for _, succ := range cfg.Successors(cur) {
			if !member[succ] || visited[succ] {
				continue
			}
			if succ == to {
				if length+1 > best {
					best = length + 1
				}
				continue
			}
			visited[succ] = true
			dfs(succ, length+1)
			visited[succ] = false
		}
	}
	dfs(from, 0)
	return best
}

// childSccs decomposes s — which must have exactly one entry — into the SCCs
// of its induced subgraph after removing the single back edge found by
// largestLoopBackEdge, via Kosaraju's algorithm seeded at the entry. This is
// what recovers the nesting a flat Tarjan pass collapses: a reducible outer
// loop whose body hides its own multi-entry structure decomposes here into
// a trivial header plus the still-irreducible body. Returns nil if s is not
// reducible (more than one real entry).
func (s *Scc) childSccs(cfg *ControlFlowGraph) []*Scc {
	entries := s.EntryNodes(cfg)
	if len(entries) != 1 {
		return nil
	}
	entry := entries[0]
	member := s.member()

	removeFrom, hasRemoval := largestLoopBackEdge(cfg, member, entry)
	skip := func(a, b int) bool { return hasRemoval && a == removeFrom && b == entry }

	visited := make(map[int]bool, len(s.Blocks))
	var order []int
	var visit1 func(int)
	visit1 = func(v int) {
		visited[v] = true
		for _, w := range cfg.Successors(v) {
			if !member[w] || visited[w] || skip(v, w) {
				continue
			}
			visit1(w)
		}
		order = append(order, v)
	}
	visit1(entry)
	rest := append([]int{}, s.Blocks...)
	sort.Ints(rest)
	for _, b := range rest {
		if !visited[b] {
			visit1(b)
		}
	}

	assigned := make(map[int]bool, len(s.Blocks))
	var children []*Scc
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		if assigned[v] {
			continue
		}
		var comp []int
		var visit2 func(int)
		visit2 = func(u int) {
			assigned[u] = true
			comp = append(comp, u)
			for _, p := range cfg.Predecessors(u) {
				if !member[p] || assigned[p] || skip(p, u) {
					continue
				}
				visit2(p)
			}
		}
		visit2(v)
		sort.Ints(comp)
		children = append(children, &Scc{Blocks: comp})
	}
	return children
}

func sameBlocks(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FirstIrreducibleSubScc returns the first (by sorted block order, depth
// first) multi-entry component found anywhere in the SCC hierarchy rooted at
// the whole CFG, or nil if every level is reducible.
func FirstIrreducibleSubScc(cfg *ControlFlowGraph) *Scc {
	return wholeCfgScc(cfg).firstIrreducibleSubScc(cfg)
}

func (s *Scc) firstIrreducibleSubScc(cfg *ControlFlowGraph) *Scc {
	if s.IsTrivial() {
		return nil
	}
	if !s.Reducible(cfg) {
		return s
	}
	children := s.childSccs(cfg)
	if len(children) == 1 && sameBlocks(children[0].Blocks, s.Blocks) {
		// Decomposition made no progress: removing the single chosen back
		// edge into the entry still leaves the whole component joined (for
		// example, another back edge into the entry remains).
		return nil
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Blocks[0] < children[j].Blocks[0] })
	for _, c := range children {
		if found := c.firstIrreducibleSubScc(cfg); found != nil {
			return found
		}
	}
	return nil
}

// SmallestNonTrivialSccContaining returns the innermost non-trivial (more
// than one block) component in the SCC hierarchy that contains node — the
// loop body node is most tightly nested in — or nil if node lies on no
// cycle at all.
func SmallestNonTrivialSccContaining(cfg *ControlFlowGraph, node int) *Scc {
	for _, top := range TopLevelSccs(cfg) {
		if !top.Contains(node) {
			continue
		}
		if top.IsTrivial() {
			return nil
		}
		return top.smallestNonTrivialContaining(cfg, node)
	}
	return nil
}

func (s *Scc) smallestNonTrivialContaining(cfg *ControlFlowGraph, node int) *Scc {
	if s.IsTrivial() {
		return nil
	}
	if !s.Reducible(cfg) {
		return s
	}
	children := s.childSccs(cfg)
	if len(children) == 1 && sameBlocks(children[0].Blocks, s.Blocks) {
		return s
	}
	for _, c := range children {
		if !c.Contains(node) {
			continue
		}
		if c.IsTrivial() {
			return s
		}
		return c.smallestNonTrivialContaining(cfg, node)
	}
	return s
}
