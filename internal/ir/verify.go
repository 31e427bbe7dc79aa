package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// VerifyError reports a single broken invariant found by Verify, positioned by
// function and block name for diagnostics (Block is empty for a
// function-level failure).
type VerifyError struct {
	Function string
	Block    string
	Message  string
}

func (e *VerifyError) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("%s: %s", e.Function, e.Message)
	}
	return fmt.Sprintf("%s/%s: %s", e.Function, e.Block, e.Message)
}

// Verify checks every invariant of spec §3/§8 that does not require CFG
// analysis: terminator placement, phi placement, phi completeness against
// static predecessors, single-definition SSA, and CFG label consistency. It
// returns the first violation found, wrapped with a stack trace via pkg/errors
// since a verification failure here means either a malformed lowerer output or
// a buggy pass — both are programmer errors, not user errors.
func Verify(fn *FunctionDefinition) error {
	if len(fn.Content) == 0 {
		return errors.WithStack(&VerifyError{Function: fn.Header.Name, Message: "function has no basic blocks"})
	}

	blockNames := make(map[string]bool, len(fn.Content))
	for _, b := range fn.Content {
		blockNames[b.Name] = true
	}

	preds := predecessorsOf(fn)

	defined := make(map[RegisterName]bool)
	for _, p := range fn.Header.Parameters {
		if defined[p.Name] {
			return errors.WithStack(&VerifyError{fn.Header.Name, "", fmt.Sprintf("parameter %%%s redefines an existing register", p.Name)})
		}
		defined[p.Name] = true
	}

	for _, b := range fn.Content {
		if len(b.Content) == 0 {
			return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, "empty block has no terminator"})
		}
		sawNonPhi := false
		for i, s := range b.Content {
			last := i == len(b.Content)-1
			_, isPhi := s.(*Phi)
			term, isTerm := s.(Terminator)

			if isPhi && sawNonPhi {
				return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, "phi statement follows a non-phi statement"})
			}
			if !isPhi {
				sawNonPhi = true
			}
			if isTerm && !last {
				return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, "terminator is not the last statement"})
			}
			if !isTerm && last {
				return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, "block does not end with a terminator"})
			}

			if msg := untypedOperand(s); msg != "" {
				return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, msg})
			}

			if r, ok := s.Defs(); ok {
				if defined[r] {
					return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, fmt.Sprintf("register %%%s is defined more than once", r)})
				}
				defined[r] = true
			}

			if isTerm {
				for _, label := range term.Successors() {
					if !blockNames[label] {
						return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, fmt.Sprintf("terminator names unknown block %q", label)})
					}
				}
			}

			if phi, ok := s.(*Phi); ok {
				want := make(map[string]bool, len(phi.Sources))
				for _, src := range phi.Sources {
					want[src.FromBlock] = true
				}
				have := preds[b.Name]
				if len(want) != len(have) {
					return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, fmt.Sprintf("phi %%%s source set does not match predecessor set", phi.Result)})
				}
				for p := range have {
					if !want[p] {
						return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, fmt.Sprintf("phi %%%s is missing predecessor %s", phi.Result, p)})
					}
				}
			}
		}
		if term := b.Terminator(); term != nil {
			if _, isRet := term.(*Ret); isRet && len(term.Successors()) != 0 {
				return errors.WithStack(&VerifyError{fn.Header.Name, b.Name, "ret must have no successors"})
			}
		}
	}

	return nil
}

// untypedOperand reports a statement whose Type field was left nil, the
// "untyped operand" verification failure of the error taxonomy. Only the
// statement kinds that carry a type are checked.
func untypedOperand(s Statement) string {
	switch st := s.(type) {
	case *BinaryCalculate:
		if st.Type == nil {
			return fmt.Sprintf("binary calculate %%%s has no type", st.Result)
		}
	case *UnaryCalculate:
		if st.Type == nil {
			return fmt.Sprintf("unary calculate %%%s has no type", st.Result)
		}
	case *Load:
		if st.Type == nil {
			return fmt.Sprintf("load %%%s has no type", st.Result)
		}
	case *Store:
		if st.Type == nil {
			return "store has no type"
		}
	case *Phi:
		if st.Type == nil {
			return fmt.Sprintf("phi %%%s has no type", st.Result)
		}
	}
	return ""
}

// predecessorsOf computes, for every block, the set of block names whose
// terminator names it as a successor. This is the static predecessor set used
// by phi-completeness checking; the full analyzer (internal/ir/analysis) builds
// a richer, cached ControlFlowGraph on top of the same terminator data.
func predecessorsOf(fn *FunctionDefinition) map[string]map[string]bool {
	preds := make(map[string]map[string]bool, len(fn.Content))
	for _, b := range fn.Content {
		preds[b.Name] = make(map[string]bool)
	}
	for _, b := range fn.Content {
		term := b.Terminator()
		if term == nil {
			continue
		}
		for _, succ := range term.Successors() {
			if preds[succ] == nil {
				preds[succ] = make(map[string]bool)
			}
			preds[succ][b.Name] = true
		}
	}
	return preds
}
