package analysis

import "kiln/internal/ir"

// DefPosition locates a register's unique definition: either a function
// parameter (BlockIndex == -1) or a statement within a block.
type DefPosition struct {
	BlockIndex     int
	StatementIndex int
	IsParameter    bool
}

// UsePosition locates one use of a register.
type UsePosition struct {
	BlockIndex     int
	StatementIndex int
}

// RegisterUsage indexes every register's definition and use sites, computed
// once per analysis and invalidated wholesale on any edit.
type RegisterUsage struct {
	defs          map[ir.RegisterName]DefPosition
	uses          map[ir.RegisterName][]UsePosition
	activeBlocks  map[ir.RegisterName]map[int]bool
}

// BuildRegisterUsage walks fn once, recording every Defs()/Uses() site, then
// derives each used register's active-block set as the union of
// cfg.MayPassBlocks(def_block, use_block) over all its uses: every block on
// some path between the definition and a use, not just the use sites
// themselves — the liveness a backend register allocator needs.
func BuildRegisterUsage(fn *ir.FunctionDefinition, cfg *ControlFlowGraph) *RegisterUsage {
	ru := &RegisterUsage{
		defs:         make(map[ir.RegisterName]DefPosition),
		uses:         make(map[ir.RegisterName][]UsePosition),
		activeBlocks: make(map[ir.RegisterName]map[int]bool),
	}
	for _, p := range fn.Header.Parameters {
		ru.defs[p.Name] = DefPosition{BlockIndex: -1, IsParameter: true}
	}
	for bi, b := range fn.Content {
		for si, s := range b.Content {
			if r, ok := s.Defs(); ok {
				ru.defs[r] = DefPosition{BlockIndex: bi, StatementIndex: si}
			}
			for _, r := range s.Uses() {
				ru.uses[r] = append(ru.uses[r], UsePosition{BlockIndex: bi, StatementIndex: si})
			}
		}
	}
	for r, uses := range ru.uses {
		def, ok := ru.defs[r]
		if !ok {
			continue
		}
		defBlock := def.BlockIndex
		if def.IsParameter {
			defBlock = cfg.EntryIndex()
		}
		active := make(map[int]bool)
		for _, u := range uses {
			for _, b := range cfg.MayPassBlocks(defBlock, u.BlockIndex) {
				active[b] = true
			}
		}
		ru.activeBlocks[r] = active
	}
	return ru
}

// DefinePosition returns where r is defined.
func (ru *RegisterUsage) DefinePosition(r ir.RegisterName) (DefPosition, bool) {
	p, ok := ru.defs[r]
	return p, ok
}

// Uses returns every use site of r.
func (ru *RegisterUsage) Uses(r ir.RegisterName) []UsePosition {
	return ru.uses[r]
}

// IsUnused reports whether r has no recorded uses.
func (ru *RegisterUsage) IsUnused(r ir.RegisterName) bool {
	return len(ru.uses[r]) == 0
}

// RegisterActiveBlocks returns every block on some path from r's definition
// to one of its uses: the blocks across which r may still be live.
func (ru *RegisterUsage) RegisterActiveBlocks(r ir.RegisterName) map[int]bool {
	return ru.activeBlocks[r]
}

// SlotPosition locates one Alloca/Store/Load statement touching a memory
// slot (a register produced by Alloca).
type SlotPosition struct {
	BlockIndex     int
	StatementIndex int
}

// MemoryUsage indexes, per Alloca-defined slot register, every Store and Load
// that addresses it directly (no pointer arithmetic exists in this IR, so
// address identity is register identity).
type MemoryUsage struct {
	fn      *ir.FunctionDefinition
	allocas map[ir.RegisterName]SlotPosition
	stores  map[ir.RegisterName][]SlotPosition
	loads   map[ir.RegisterName][]SlotPosition
}

// BuildMemoryUsage walks fn once, recording every Alloca/Store/Load touching
// each slot.
func BuildMemoryUsage(fn *ir.FunctionDefinition) *MemoryUsage {
	mu := &MemoryUsage{
		fn:      fn,
		allocas: make(map[ir.RegisterName]SlotPosition),
		stores:  make(map[ir.RegisterName][]SlotPosition),
		loads:   make(map[ir.RegisterName][]SlotPosition),
	}
	for bi, b := range fn.Content {
		for si, s := range b.Content {
			switch st := s.(type) {
			case *ir.Alloca:
				mu.allocas[st.Result] = SlotPosition{bi, si}
			case *ir.Store:
				if r, ok := ir.AsRegister(st.Address); ok {
					mu.stores[r] = append(mu.stores[r], SlotPosition{bi, si})
				}
			case *ir.Load:
				if r, ok := ir.AsRegister(st.Address); ok {
					mu.loads[r] = append(mu.loads[r], SlotPosition{bi, si})
				}
			}
		}
	}
	return mu
}

// Slots returns every Alloca-defined register that Mem2Reg may consider.
func (mu *MemoryUsage) Slots() []ir.RegisterName {
	out := make([]ir.RegisterName, 0, len(mu.allocas))
	for r := range mu.allocas {
		out = append(out, r)
	}
	return out
}

// Stores returns every Store position that addresses slot.
func (mu *MemoryUsage) Stores(slot ir.RegisterName) []SlotPosition { return mu.stores[slot] }

// Loads returns every Load position that addresses slot.
func (mu *MemoryUsage) Loads(slot ir.RegisterName) []SlotPosition { return mu.loads[slot] }

// LoadsDominatedByStoreInBlock returns the loads of slot in the same block as
// store, appearing after it and before the next store to the same slot, in
// statement order. These are the loads whose value the store fully determines
// without any dominance reasoning.
func (mu *MemoryUsage) LoadsDominatedByStoreInBlock(slot ir.RegisterName, store SlotPosition) []SlotPosition {
	nextStore := -1
	for _, other := range mu.stores[slot] {
		if other.BlockIndex != store.BlockIndex || other.StatementIndex <= store.StatementIndex {
			continue
		}
		if nextStore == -1 || other.StatementIndex < nextStore {
			nextStore = other.StatementIndex
		}
	}
	var out []SlotPosition
	for _, load := range mu.loads[slot] {
		if load.BlockIndex != store.BlockIndex || load.StatementIndex <= store.StatementIndex {
			continue
		}
		if nextStore != -1 && load.StatementIndex > nextStore {
			continue
		}
		out = append(out, load)
	}
	return out
}

// StoreDominatesAllLoads reports whether slot has exactly one store and that
// store reaches every load of slot first: a load in the store's own block
// must come after the store's statement index, and a load in any other block
// must sit in a block that the store's block dominates.
//
// This query gates RemoveOnlyOnceStore: spec §9 flags the pass as unsound
// when a load can reach along a path that never passes the unique store;
// kiln's pass refuses to fire unless this holds, resolving that open
// question by strengthening the precondition rather than leaving it
// undefined.
func (mu *MemoryUsage) StoreDominatesAllLoads(slot ir.RegisterName, dom *Dominators, cfg *ControlFlowGraph) bool {
	stores := mu.stores[slot]
	if len(stores) != 1 {
		return false
	}
	store := stores[0]
	for _, load := range mu.loads[slot] {
		if load.BlockIndex == store.BlockIndex {
			if load.StatementIndex <= store.StatementIndex {
				return false
			}
			continue
		}
		if !dom.Dominates(store.BlockIndex, load.BlockIndex) {
			return false
		}
	}
	return true
}
