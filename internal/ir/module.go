package ir

import "fmt"

// RegisterName is an opaque, function-unique SSA register identifier.
type RegisterName string

// GlobalVariableName is an opaque, module-unique global identifier.
type GlobalVariableName string

// Quantity is an operand used everywhere a value is expected: a register, a global,
// or an integer literal.
type Quantity interface {
	isQuantity()
	String() string
}

// Register wraps a RegisterName as a Quantity.
type Register RegisterName

func (Register) isQuantity() {}
func (r Register) String() string { return "%" + string(r) }

// Global wraps a GlobalVariableName as a Quantity.
type Global GlobalVariableName

func (Global) isQuantity() {}
func (g Global) String() string { return "@" + string(g) }

// NumberLiteral is a constant integer operand.
type NumberLiteral int64

func (NumberLiteral) isQuantity() {}
func (n NumberLiteral) String() string { return fmt.Sprintf("%d", int64(n)) }

// AsRegister reports whether q names a register, and which one.
func AsRegister(q Quantity) (RegisterName, bool) {
	if r, ok := q.(Register); ok {
		return RegisterName(r), true
	}
	return "", false
}

// BasicBlock is a named, ordered sequence of statements ending in exactly one
// terminator, with all Phi statements preceding all other statements.
type BasicBlock struct {
	Name    string
	Content []Statement
}

// Terminator returns the block's terminating statement, or nil if the block is
// malformed (empty, or its last statement is not a terminator).
func (b *BasicBlock) Terminator() Terminator {
	if len(b.Content) == 0 {
		return nil
	}
	t, _ := b.Content[len(b.Content)-1].(Terminator)
	return t
}

// Phis returns the leading run of Phi statements.
func (b *BasicBlock) Phis() []*Phi {
	var out []*Phi
	for _, s := range b.Content {
		p, ok := s.(*Phi)
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}

// FunctionDefinition is a function's signature plus its ordered basic blocks.
// Content[0] is the entry block.
type FunctionDefinition struct {
	Header  FunctionHeader
	Content []*BasicBlock
}

// Entry returns the function's entry block, synthesizing its name
// (<fn>_entry) the first time it is requested without one, per spec §4.4 step 1.
func (f *FunctionDefinition) Entry() *BasicBlock {
	if len(f.Content) == 0 {
		return nil
	}
	entry := f.Content[0]
	if entry.Name == "" {
		entry.Name = f.Header.Name + "_entry"
	}
	return entry
}

// BlockByName looks up a block by name; nil if absent.
func (f *FunctionDefinition) BlockByName(name string) *BasicBlock {
	for _, b := range f.Content {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Module is the ordered sequence of a program's top-level items.
type Module struct {
	Types     []*TypeDefinition
	Globals   []*GlobalDefinition
	Functions []*FunctionDefinition
}

// FunctionByName looks up a function by name; nil if absent.
func (m *Module) FunctionByName(name string) *FunctionDefinition {
	for _, fn := range m.Functions {
		if fn.Header.Name == name {
			return fn
		}
	}
	return nil
}
