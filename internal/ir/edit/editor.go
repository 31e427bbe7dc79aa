// Package edit implements the sole mutator of a FunctionDefinition: every
// structural change passes, is logged, and applied through an Editor, which
// notifies the bound Analyzer so its cache is invalidated on the next query.
// The counter/cursor bookkeeping is grounded on the teacher's Builder
// (kanso/internal/ir/builder.go), adapted from "build a fresh function" to
// "mutate an existing one."
package edit

import (
	"fmt"

	"kiln/internal/ir"
	"kiln/internal/ir/analysis"
)

// Action is the tagged variant of every mutation the Editor can apply.
type Action interface {
	isAction()
	apply(fn *ir.FunctionDefinition) error
	String() string
}

// InsertStatement inserts Statement at Index within the named block.
type InsertStatement struct {
	Block     string
	Index     int
	Statement ir.Statement
}

func (*InsertStatement) isAction() {}
func (a *InsertStatement) apply(fn *ir.FunctionDefinition) error {
	b := fn.BlockByName(a.Block)
	if b == nil {
		return fmt.Errorf("edit: InsertStatement: no block %q", a.Block)
	}
	if a.Index < 0 || a.Index > len(b.Content) {
		return fmt.Errorf("edit: InsertStatement: index %d out of range for block %q", a.Index, a.Block)
	}
	b.Content = append(b.Content[:a.Index:a.Index], append([]ir.Statement{a.Statement}, b.Content[a.Index:]...)...)
	return nil
}
func (a *InsertStatement) String() string {
	return fmt.Sprintf("InsertStatement(%s[%d], %s)", a.Block, a.Index, a.Statement)
}

// RemoveStatement removes the statement at Index within the named block.
type RemoveStatement struct {
	Block string
	Index int
}

func (*RemoveStatement) isAction() {}
func (a *RemoveStatement) apply(fn *ir.FunctionDefinition) error {
	b := fn.BlockByName(a.Block)
	if b == nil {
		return fmt.Errorf("edit: RemoveStatement: no block %q", a.Block)
	}
	if a.Index < 0 || a.Index >= len(b.Content) {
		return fmt.Errorf("edit: RemoveStatement: index %d out of range for block %q", a.Index, a.Block)
	}
	b.Content = append(b.Content[:a.Index], b.Content[a.Index+1:]...)
	return nil
}
func (a *RemoveStatement) String() string { return fmt.Sprintf("RemoveStatement(%s[%d])", a.Block, a.Index) }

// RenameLocal substitutes every use of From with To across the whole
// function, via each statement's RewriteUses capability.
type RenameLocal struct {
	From ir.RegisterName
	To   ir.Quantity
}

func (*RenameLocal) isAction() {}
func (a *RenameLocal) apply(fn *ir.FunctionDefinition) error {
	subst := map[ir.RegisterName]ir.Quantity{a.From: a.To}
	for _, b := range fn.Content {
		for _, s := range b.Content {
			s.RewriteUses(subst)
		}
	}
	return nil
}
func (a *RenameLocal) String() string { return fmt.Sprintf("RenameLocal(%s -> %s)", a.From, a.To) }

// InsertBasicBlock inserts Block at Index in the function's block list.
type InsertBasicBlock struct {
	Index int
	Block *ir.BasicBlock
}

func (*InsertBasicBlock) isAction() {}
func (a *InsertBasicBlock) apply(fn *ir.FunctionDefinition) error {
	if a.Index < 0 || a.Index > len(fn.Content) {
		return fmt.Errorf("edit: InsertBasicBlock: index %d out of range", a.Index)
	}
	fn.Content = append(fn.Content[:a.Index:a.Index], append([]*ir.BasicBlock{a.Block}, fn.Content[a.Index:]...)...)
	return nil
}
func (a *InsertBasicBlock) String() string {
	return fmt.Sprintf("InsertBasicBlock(%d, %s)", a.Index, a.Block.Name)
}

// RemoveBasicBlock removes the named block. Callers must first redirect every
// predecessor terminator, per spec §9's cyclic-ownership note. The block is
// looked up by name, so removals in one batch need no particular order.
type RemoveBasicBlock struct {
	Block string
}

func (*RemoveBasicBlock) isAction() {}
func (a *RemoveBasicBlock) apply(fn *ir.FunctionDefinition) error {
	for i, b := range fn.Content {
		if b.Name == a.Block {
			fn.Content = append(fn.Content[:i], fn.Content[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("edit: RemoveBasicBlock: no block %q", a.Block)
}
func (a *RemoveBasicBlock) String() string { return fmt.Sprintf("RemoveBasicBlock(%s)", a.Block) }

// ReplaceContent swaps a function's entire block list for a newly computed
// one. Whole-CFG passes (Mem2Reg, FixIrreducible) that must place new blocks,
// retarget many terminators, and delete others in a single atomic step build
// the new block list independently of the live function and submit it as one
// composite Action, matching spec §7's "compute the full plan, then execute
// unconditionally" contract without forcing a whole-topology rewrite through
// single-statement Actions.
type ReplaceContent struct {
	Blocks []*ir.BasicBlock
}

func (*ReplaceContent) isAction() {}
func (a *ReplaceContent) apply(fn *ir.FunctionDefinition) error {
	fn.Content = a.Blocks
	return nil
}
func (a *ReplaceContent) String() string { return fmt.Sprintf("ReplaceContent(%d blocks)", len(a.Blocks)) }

// Editor owns a FunctionDefinition and the Analyzer bound to it. It is the
// sole mutator: every Action is applied through Submit, which eagerly
// performs the edit and then calls OnAction so the analyzer recomputes
// lazily on its next query.
type Editor struct {
	fn       *ir.FunctionDefinition
	analyzer *analysis.Analyzer
	log      []Action
}

// NewEditor wraps fn with a fresh Analyzer.
func NewEditor(fn *ir.FunctionDefinition) *Editor {
	return &Editor{fn: fn, analyzer: analysis.NewAnalyzer()}
}

// Function returns the function under edit.
func (e *Editor) Function() *ir.FunctionDefinition { return e.fn }

// Analyzer returns the bound analyzer.
func (e *Editor) Analyzer() *analysis.Analyzer { return e.analyzer }

// Bind returns a fresh analyzer view over the current function state.
func (e *Editor) Bind() *analysis.Binded { return e.analyzer.Bind(e.fn) }

// Log returns every Action submitted so far, for diagnostics/testing.
func (e *Editor) Log() []Action { return e.log }

// Submit applies a single Action and invalidates the analyzer.
func (e *Editor) Submit(a Action) error {
	if err := a.apply(e.fn); err != nil {
		return err
	}
	e.log = append(e.log, a)
	e.analyzer.OnAction()
	return nil
}

// SubmitAll applies a sequence of Actions in order, stopping at the first
// error. Passes call this once per run with their fully-computed plan, per
// spec §7's "compute the full plan first" contract.
func (e *Editor) SubmitAll(actions []Action) error {
	for _, a := range actions {
		if err := e.Submit(a); err != nil {
			return err
		}
	}
	return nil
}

// RemoveStatements removes every listed (block, index) position, applying
// them in descending index order within each block so earlier removals don't
// shift the indices of later ones.
func (e *Editor) RemoveStatements(positions []RemoveStatement) error {
	byBlock := make(map[string][]int)
	for _, p := range positions {
		byBlock[p.Block] = append(byBlock[p.Block], p.Index)
	}
	for block, indices := range byBlock {
		sortDescending(indices)
		for _, idx := range indices {
			if err := e.Submit(&RemoveStatement{Block: block, Index: idx}); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortDescending(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] > xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// SwapBasicBlock replaces the block named name with replacement in place,
// preserving position.
func (e *Editor) SwapBasicBlock(name string, replacement *ir.BasicBlock) error {
	for i, b := range e.fn.Content {
		if b.Name == name {
			e.fn.Content[i] = replacement
			e.log = append(e.log, &InsertBasicBlock{Index: i, Block: replacement})
			e.analyzer.OnAction()
			return nil
		}
	}
	return fmt.Errorf("edit: SwapBasicBlock: no block %q", name)
}
