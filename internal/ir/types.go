// Package ir defines the typed SSA-form intermediate representation: modules,
// functions, basic blocks, statements, and the operand/type system they share.
package ir

import "fmt"

// Type is the tagged variant of §3: Integer, StructRef, Address, or None. Values are
// held by-value (never behind a pointer) so that primitive types compare equal with
// plain ==, matching spec's "comparable by structural identity for primitives".
type Type interface {
	isType()
	String() string
}

// IntegerType is a signed or unsigned integer of a fixed bit width.
type IntegerType struct {
	Signed bool
	Width  int
}

func (IntegerType) isType() {}
func (t IntegerType) String() string {
	if t.Signed {
		return fmt.Sprintf("i%d", t.Width)
	}
	return fmt.Sprintf("u%d", t.Width)
}

// StructRefType names a struct defined elsewhere in the module. Structs compare equal
// by name, per spec.
type StructRefType struct {
	Name string
}

func (StructRefType) isType() {}
func (t StructRefType) String() string { return t.Name }

// AddressType is a target-independent pointer-sized value: the result of Alloca, and
// the operand type of Load/Store.
type AddressType struct{}

func (AddressType) isType() {}
func (AddressType) String() string { return "address" }

// NoneType is unit/void: the type of a Ret with no value and of Call with no result.
type NoneType struct{}

func (NoneType) isType() {}
func (NoneType) String() string { return "none" }

// addressBits is the assumed width of an Address for size_bits purposes; the
// RISC-V/Wasm backends (out of scope) each round this up to their own pointer width.
const addressBits = 64

// TypeEnv resolves StructRefType names to their field layout, as required by
// size_bits.
type TypeEnv struct {
	Structs map[string]*TypeDefinition
}

// NewTypeEnv builds a TypeEnv from a module's type definitions.
func NewTypeEnv(defs []*TypeDefinition) *TypeEnv {
	env := &TypeEnv{Structs: make(map[string]*TypeDefinition, len(defs))}
	for _, d := range defs {
		env.Structs[d.Name] = d
	}
	return env
}

// SizeBits computes the total bit size of a type. Struct size is the sum of field
// sizes with no padding; the backend is responsible for rounding up to byte
// boundaries, per spec.
func (e *TypeEnv) SizeBits(t Type) int {
	switch v := t.(type) {
	case IntegerType:
		return v.Width
	case AddressType:
		return addressBits
	case NoneType:
		return 0
	case StructRefType:
		def := e.Structs[v.Name]
		if def == nil {
			return 0
		}
		total := 0
		for _, f := range def.Fields {
			total += e.SizeBits(f)
		}
		return total
	default:
		return 0
	}
}

// TypeDefinition is a struct's field layout, by static index after name resolution.
type TypeDefinition struct {
	Name       string
	Fields     []Type
	FieldNames map[string]int
}

// FieldIndex resolves a field name to its static index.
func (d *TypeDefinition) FieldIndex(name string) (int, bool) {
	i, ok := d.FieldNames[name]
	return i, ok
}

// GlobalDefinition is a module-level variable with a constant initializer.
type GlobalDefinition struct {
	Name         GlobalVariableName
	Type         Type
	InitialValue int64
}

// Parameter is one formal parameter of a function.
type Parameter struct {
	Name RegisterName
	Type Type
}

// FunctionHeader is a function's externally-visible signature.
type FunctionHeader struct {
	Name       string
	Parameters []Parameter
	ReturnType Type
}
