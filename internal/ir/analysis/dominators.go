package analysis

// Dominators computes the immediate-dominator tree and dominance frontiers of
// a ControlFlowGraph using the Cooper-Harvey-Kennedy iterative data-flow
// algorithm (the same family lift.go's buildDomTree/buildDomFrontier use),
// which converges quickly on the small, low-degree CFGs a single function
// produces and needs no reverse-postorder numbering beyond a DFS.
type Dominators struct {
	cfg     *ControlFlowGraph
	idom    []int // immediate dominator index per block; entry's idom is itself
	rpo     []int // reverse postorder block indices
	order   []int // position of each block index in rpo, or -1 if unreachable
	frontier [][]int
}

// BuildDominators computes dominators and dominance frontiers for cfg.
func BuildDominators(cfg *ControlFlowGraph) *Dominators {
	d := &Dominators{cfg: cfg}
	d.computeReversePostorder()
	d.computeIdom()
	d.computeFrontier()
	return d
}

func (d *Dominators) computeReversePostorder() {
	n := d.cfg.NumBlocks() + 1 // real blocks plus the synthetic exit
	visited := make([]bool, n)
	var post []int
	var visit func(int)
	visit = func(i int) {
		visited[i] = true
		for _, s := range d.cfg.Successors(i) {
			if !visited[s] {
				visit(s)
			}
		}
		post = append(post, i)
	}
	visit(d.cfg.EntryIndex())

	d.rpo = make([]int, len(post))
	for i, b := range post {
		d.rpo[len(post)-1-i] = b
	}
	d.order = make([]int, n)
	for i := range d.order {
		d.order[i] = -1
	}
	for pos, b := range d.rpo {
		d.order[b] = pos
	}
}

func (d *Dominators) computeIdom() {
	n := d.cfg.NumBlocks() + 1
	entry := d.cfg.EntryIndex()
	d.idom = make([]int, n)
	for i := range d.idom {
		d.idom[i] = -1
	}
	d.idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range d.rpo {
			if b == entry {
				continue
			}
			newIdom := -1
			for _, p := range d.cfg.Predecessors(b) {
				if d.order[p] < 0 || d.idom[p] < 0 {
					continue
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = d.intersect(newIdom, p)
			}
			if newIdom != -1 && d.idom[b] != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}
}

func (d *Dominators) intersect(a, b int) int {
	for a != b {
		for d.order[a] > d.order[b] {
			a = d.idom[a]
		}
		for d.order[b] > d.order[a] {
			b = d.idom[b]
		}
	}
	return a
}

func (d *Dominators) computeFrontier() {
	n := d.cfg.NumBlocks() + 1
	d.frontier = make([][]int, n)
	for _, b := range d.rpo {
		// The synthetic exit holds no statements, so it is never a join
		// frontiers (and therefore phi placement) should reach.
		if b == d.cfg.ExitIndex() {
			continue
		}
		preds := d.cfg.Predecessors(b)
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			if d.order[p] < 0 {
				continue
			}
			runner := p
			for runner != d.idom[b] {
				d.frontier[runner] = appendUnique(d.frontier[runner], b)
				runner = d.idom[runner]
			}
		}
	}
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// Dominates reports whether block a dominates block b (reflexively: a
// dominates itself).
func (d *Dominators) Dominates(a, b int) bool {
	if d.order[a] < 0 || d.order[b] < 0 {
		return false
	}
	for b != d.idom[b] {
		if b == a {
			return true
		}
		b = d.idom[b]
	}
	return b == a
}

// ImmediateDominator returns block i's immediate dominator index.
func (d *Dominators) ImmediateDominator(i int) int { return d.idom[i] }

// Frontier returns the dominance frontier of block i.
func (d *Dominators) Frontier(i int) []int { return d.frontier[i] }

// Reachable reports whether block i is reachable from the entry.
func (d *Dominators) Reachable(i int) bool { return d.order[i] >= 0 }
