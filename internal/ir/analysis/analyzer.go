package analysis

import "kiln/internal/ir"

// Analyzer is an immutable, lazily-populated derivation over a function. It
// holds a single once-cell cache, cleared wholesale by OnAction: coarse
// invalidation is the contract of spec §4.1 — any structural edit pays the
// recomputation cost on the next query.
type Analyzer struct {
	cache *derivation
}

type derivation struct {
	cfg *ControlFlowGraph
	dom *Dominators
	reg *RegisterUsage
	mem *MemoryUsage
}

// NewAnalyzer returns an Analyzer with an empty cache.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// OnAction clears the cache. Every mutation made through internal/ir/edit
// calls this before returning so the next Bind recomputes from scratch.
func (a *Analyzer) OnAction() {
	a.cache = nil
}

// Binded is a view holding a shared borrow of a function and its Analyzer;
// every query lives here, per spec §4.1.
type Binded struct {
	fn *ir.FunctionDefinition
	a  *Analyzer
}

// Bind pairs fn with a, populating the cache lazily on first query.
func (a *Analyzer) Bind(fn *ir.FunctionDefinition) *Binded {
	return &Binded{fn: fn, a: a}
}

func (b *Binded) ensure() *derivation {
	if b.a.cache != nil {
		return b.a.cache
	}
	cfg := BuildControlFlowGraph(b.fn)
	d := &derivation{
		cfg: cfg,
		dom: BuildDominators(cfg),
		reg: BuildRegisterUsage(b.fn, cfg),
		mem: BuildMemoryUsage(b.fn),
	}
	b.a.cache = d
	return d
}

// CFG returns the (cached) control-flow graph.
func (b *Binded) CFG() *ControlFlowGraph { return b.ensure().cfg }

// Dominators returns the (cached) dominator tree and frontiers.
func (b *Binded) Dominators() *Dominators { return b.ensure().dom }

// Registers returns the (cached) register usage index.
func (b *Binded) Registers() *RegisterUsage { return b.ensure().reg }

// Memory returns the (cached) memory usage index.
func (b *Binded) Memory() *MemoryUsage { return b.ensure().mem }

// Sccs returns the function's top-level strongly-connected components. This
// is not cached in the once-cell: SCC decomposition is comparatively cheap
// and several passes (FixIrreducible) recompute it mid-pass against a
// function that has not yet gone through OnAction.
func (b *Binded) Sccs() []*Scc {
	return TopLevelSccs(b.ensure().cfg)
}

// BackEdges returns the function's back edges relative to its dominator tree.
func (b *Binded) BackEdges() [][2]int {
	d := b.ensure()
	return BackEdges(d.cfg, d.dom)
}
