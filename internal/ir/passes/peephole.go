package passes

import (
	"kiln/internal/ir"
	"kiln/internal/ir/edit"
)

// compressRenames chases each planned From -> To mapping to its final
// Quantity: one retired load's value can itself be another retired load's
// result (a stored value read back), and RenameLocal substitutes one step
// only.
func compressRenames(renames map[ir.RegisterName]ir.Quantity) []edit.Action {
	var actions []edit.Action
	for from, to := range renames {
		for {
			next, ok := ir.AsRegister(to)
			if !ok {
				break
			}
			repl, found := renames[next]
			if !found {
				break
			}
			to = repl
		}
		actions = append(actions, &edit.RenameLocal{From: from, To: to})
	}
	return actions
}

// RemoveLoadDirectlyAfterStore deletes every Load that follows a Store to
// the same slot within one block before any intervening store, substituting
// the stored value for every use of the load's result — redundant-load
// elimination that needs no dominance reasoning. The whole plan is computed
// before the first Action is submitted, so a failure leaves the function
// untouched.
type RemoveLoadDirectlyAfterStore struct{}

func (RemoveLoadDirectlyAfterStore) Name() string       { return "remove-load-after-store" }
func (RemoveLoadDirectlyAfterStore) Need() []string       { return []string{"mem2reg"} }
func (RemoveLoadDirectlyAfterStore) Invalidate() []string { return []string{"remove-unused-register"} }

func (RemoveLoadDirectlyAfterStore) Run(e *edit.Editor) (bool, error) {
	fn := e.Function()
	mem := e.Bind().Memory()
	renames := make(map[ir.RegisterName]ir.Quantity)
	var removals []edit.RemoveStatement
	for _, slot := range mem.Slots() {
		for _, storePos := range mem.Stores(slot) {
			store := fn.Content[storePos.BlockIndex].Content[storePos.StatementIndex].(*ir.Store)
			for _, loadPos := range mem.LoadsDominatedByStoreInBlock(slot, storePos) {
				loadBlock := fn.Content[loadPos.BlockIndex]
				load := loadBlock.Content[loadPos.StatementIndex].(*ir.Load)
				renames[load.Result] = store.Value
				removals = append(removals, edit.RemoveStatement{Block: loadBlock.Name, Index: loadPos.StatementIndex})
			}
		}
	}
	if len(removals) == 0 {
		return false, nil
	}
	if err := e.SubmitAll(compressRenames(renames)); err != nil {
		return false, err
	}
	if err := e.RemoveStatements(removals); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveOnlyOnceStore promotes a slot with exactly one Store into a plain
// value substitution, but only when analysis.MemoryUsage.StoreDominatesAllLoads
// holds for it: spec §9 flags the unguarded version as unsound when a load
// can reach along a path that never passes the store, so this pass refuses to
// fire rather than risk it, per kiln's resolution of that open question.
type RemoveOnlyOnceStore struct{}

func (RemoveOnlyOnceStore) Name() string       { return "remove-only-once-store" }
func (RemoveOnlyOnceStore) Need() []string       { return []string{"mem2reg"} }
func (RemoveOnlyOnceStore) Invalidate() []string { return []string{"remove-unused-register"} }

func (RemoveOnlyOnceStore) Run(e *edit.Editor) (bool, error) {
	fn := e.Function()
	bound := e.Bind()
	cfg := bound.CFG()
	dom := bound.Dominators()
	mem := bound.Memory()

	renames := make(map[ir.RegisterName]ir.Quantity)
	var removals []edit.RemoveStatement

	for _, slot := range mem.Slots() {
		stores := mem.Stores(slot)
		if len(stores) != 1 {
			continue
		}
		if isEscaping(fn, slot) {
			continue
		}
		if !mem.StoreDominatesAllLoads(slot, dom, cfg) {
			continue
		}
		storePos := stores[0]
		storeBlock := fn.Content[storePos.BlockIndex]
		store := storeBlock.Content[storePos.StatementIndex].(*ir.Store)
		removals = append(removals, edit.RemoveStatement{Block: storeBlock.Name, Index: storePos.StatementIndex})

		if allocaBI := allocaBlock(fn.Content, slot); allocaBI >= 0 {
			for si, s := range fn.Content[allocaBI].Content {
				if a, ok := s.(*ir.Alloca); ok && a.Result == slot {
					removals = append(removals, edit.RemoveStatement{Block: fn.Content[allocaBI].Name, Index: si})
				}
			}
		}

		for _, load := range mem.Loads(slot) {
			loadBlock := fn.Content[load.BlockIndex]
			l := loadBlock.Content[load.StatementIndex].(*ir.Load)
			renames[l.Result] = store.Value
			removals = append(removals, edit.RemoveStatement{Block: loadBlock.Name, Index: load.StatementIndex})
		}
	}

	if len(removals) == 0 {
		return false, nil
	}
	if err := e.SubmitAll(compressRenames(renames)); err != nil {
		return false, err
	}
	if err := e.RemoveStatements(removals); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveUnusedRegister deletes any non-terminator, side-effect-free statement
// whose result register has no remaining uses, iterating to a fixpoint since
// removing one dead statement can make its operands' sole definitions dead in
// turn.
type RemoveUnusedRegister struct{}

func (RemoveUnusedRegister) Name() string       { return "remove-unused-register" }
func (RemoveUnusedRegister) Need() []string       { return []string{"mem2reg"} }
func (RemoveUnusedRegister) Invalidate() []string { return nil }

func (RemoveUnusedRegister) Run(e *edit.Editor) (bool, error) {
	fn := e.Function()
	changedOverall := false
	for {
		used := make(map[ir.RegisterName]bool)
		for _, b := range fn.Content {
			for _, s := range b.Content {
				for _, r := range s.Uses() {
					used[r] = true
				}
			}
		}

		var removals []edit.RemoveStatement
		for _, b := range fn.Content {
			for i, s := range b.Content {
				if _, isTerm := s.(ir.Terminator); isTerm {
					continue
				}
				if hasSideEffect(s) {
					continue
				}
				if r, has := s.Defs(); has && !used[r] {
					removals = append(removals, edit.RemoveStatement{Block: b.Name, Index: i})
				}
			}
		}
		if len(removals) == 0 {
			break
		}
		if err := e.RemoveStatements(removals); err != nil {
			return changedOverall, err
		}
		changedOverall = true
	}
	return changedOverall, nil
}

func hasSideEffect(s ir.Statement) bool {
	switch s.(type) {
	case *ir.Store, *ir.Call:
		return true
	default:
		return false
	}
}
