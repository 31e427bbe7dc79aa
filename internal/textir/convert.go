package textir

import (
	"fmt"
	"strconv"
	"strings"

	"kiln/internal/ir"
)

// ToIR converts a parsed Module into internal/ir structures.
func ToIR(m *Module) (*ir.Module, error) {
	out := &ir.Module{}
	for _, item := range m.Items {
		switch {
		case item.Type != nil:
			out.Types = append(out.Types, toTypeDefinition(item.Type))
		case item.Global != nil:
			g, err := toGlobal(item.Global)
			if err != nil {
				return nil, err
			}
			out.Globals = append(out.Globals, g)
		case item.Function != nil:
			fn, err := toFunction(item.Function)
			if err != nil {
				return nil, err
			}
			out.Functions = append(out.Functions, fn)
		}
	}
	return out, nil
}

func toTypeDefinition(t *TypeDecl) *ir.TypeDefinition {
	def := &ir.TypeDefinition{Name: t.Name, FieldNames: make(map[string]int, len(t.Fields))}
	for i, f := range t.Fields {
		def.FieldNames[f.Name] = i
		def.Fields = append(def.Fields, toType(f.Type))
	}
	return def
}

func toGlobal(g *GlobalDecl) (*ir.GlobalDefinition, error) {
	v, err := strconv.ParseInt(g.Value, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("textir: bad global initializer %q: %w", g.Value, err)
	}
	return &ir.GlobalDefinition{
		Name:         ir.GlobalVariableName(strings.TrimPrefix(g.Name, "@")),
		Type:         toType(g.Type),
		InitialValue: v,
	}, nil
}

func toType(t *TypeRef) ir.Type {
	if t == nil {
		return ir.NoneType{}
	}
	switch t.Name {
	case "address":
		return ir.AddressType{}
	case "none":
		return ir.NoneType{}
	}
	if width, signed, ok := parseIntTypeName(t.Name); ok {
		return ir.IntegerType{Signed: signed, Width: width}
	}
	return ir.StructRefType{Name: t.Name}
}

func parseIntTypeName(name string) (width int, signed bool, ok bool) {
	if len(name) < 2 {
		return 0, false, false
	}
	switch name[0] {
	case 'i':
		signed = true
	case 'u':
		signed = false
	default:
		return 0, false, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n == 0 {
		return 0, false, false
	}
	return n, signed, true
}

func toFunction(f *FunctionDecl) (*ir.FunctionDefinition, error) {
	header := ir.FunctionHeader{Name: f.Name, ReturnType: toType(f.ReturnType)}
	for _, p := range f.Params {
		header.Parameters = append(header.Parameters, ir.Parameter{
			Name: ir.RegisterName(strings.TrimPrefix(p.Name, "%")),
			Type: toType(p.Type),
		})
	}
	fn := &ir.FunctionDefinition{Header: header}
	for _, b := range f.Blocks {
		block, err := toBlock(b)
		if err != nil {
			return nil, err
		}
		fn.Content = append(fn.Content, block)
	}
	return fn, nil
}

func toBlock(b *BlockDecl) (*ir.BasicBlock, error) {
	block := &ir.BasicBlock{Name: b.Name}
	for _, s := range b.Stmts {
		st, err := toStatement(s)
		if err != nil {
			return nil, err
		}
		block.Content = append(block.Content, st)
	}
	term, err := toTerminator(b.Term)
	if err != nil {
		return nil, err
	}
	block.Content = append(block.Content, term)
	return block, nil
}

func toOperand(o *Operand) ir.Quantity {
	switch {
	case o == nil:
		return nil
	case o.Register != nil:
		return ir.Register(ir.RegisterName(strings.TrimPrefix(*o.Register, "%")))
	case o.Global != nil:
		return ir.Global(ir.GlobalVariableName(strings.TrimPrefix(*o.Global, "@")))
	case o.Integer != nil:
		v, _ := strconv.ParseInt(*o.Integer, 0, 64)
		return ir.NumberLiteral(v)
	default:
		return nil
	}
}

func toFieldChain(chain []*FieldAccessDecl) []ir.FieldAccess {
	out := make([]ir.FieldAccess, len(chain))
	for i, fa := range chain {
		idx, _ := strconv.Atoi(fa.FieldIndex)
		out[i] = ir.FieldAccess{ParentType: fa.ParentType, FieldIndex: idx}
	}
	return out
}

var binaryOpByMnemonic = map[string]ir.BinaryOperation{
	"add": ir.Add, "sub": ir.Sub, "eq": ir.Equal, "ne": ir.NotEqual,
	"slt": ir.LessThan, "sle": ir.LessOrEqualThan, "sgt": ir.GreaterThan, "sge": ir.GreaterOrEqualThan,
	"or": ir.Or, "xor": ir.Xor, "and": ir.And,
	"sll": ir.LogicalShiftLeft, "srl": ir.LogicalShiftRight, "sra": ir.ArithmeticShiftRight,
}

var binaryMnemonicByOp = reverseBinaryMap(binaryOpByMnemonic)

func reverseBinaryMap(m map[string]ir.BinaryOperation) map[ir.BinaryOperation]string {
	out := make(map[ir.BinaryOperation]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

var unaryOpByMnemonic = map[string]ir.UnaryOperation{
	"neg": ir.Neg, "not": ir.Not, "bitnot": ir.BitNot,
}

var unaryMnemonicByOp = map[ir.UnaryOperation]string{
	ir.Neg: "neg", ir.Not: "not", ir.BitNot: "bitnot",
}

var branchKindByMnemonic = map[string]ir.BranchKind{
	"beq": ir.BranchEQ, "bne": ir.BranchNE, "blt": ir.BranchLT, "bge": ir.BranchGE,
}

var branchMnemonicByKind = map[ir.BranchKind]string{
	ir.BranchEQ: "beq", ir.BranchNE: "bne", ir.BranchLT: "blt", ir.BranchGE: "bge",
}

func toStatement(s *StmtDecl) (ir.Statement, error) {
	switch {
	case s.Phi != nil:
		p := &ir.Phi{Result: regName(s.Phi.Result), Type: toType(s.Phi.Type)}
		for _, src := range s.Phi.Sources {
			p.Sources = append(p.Sources, ir.PhiSource{FromBlock: src.Block, Value: toOperand(src.Value)})
		}
		return p, nil

	case s.Alloca != nil:
		return &ir.Alloca{Result: regName(s.Alloca.Result), Type: toType(s.Alloca.Type)}, nil

	case s.Store != nil:
		return &ir.Store{Type: toType(s.Store.Type), Address: toOperand(s.Store.Address), Value: toOperand(s.Store.Value)}, nil

	case s.Load != nil:
		return &ir.Load{Result: regName(s.Load.Result), Address: toOperand(s.Load.Address), Type: toType(s.Load.Type)}, nil

	case s.LoadField != nil:
		return &ir.LoadField{
			Result:     regName(s.LoadField.Result),
			Source:     toOperand(s.LoadField.Source),
			FieldChain: toFieldChain(s.LoadField.Chain),
			LeafType:   toType(s.LoadField.Type),
		}, nil

	case s.SetField != nil:
		return &ir.SetField{
			Target:     regName(s.SetField.Result),
			Source:     toOperand(s.SetField.Source),
			OriginRoot: toOperand(s.SetField.OriginRoot),
			FieldChain: toFieldChain(s.SetField.Chain),
			FinalType:  toType(s.SetField.Type),
		}, nil

	case s.Call != nil:
		c := &ir.Call{Callee: s.Call.Callee, Type: toType(s.Call.Type)}
		if s.Call.Result != nil {
			c.Result = regName(*s.Call.Result)
			c.HasResult = true
		}
		for _, a := range s.Call.Args {
			c.Arguments = append(c.Arguments, toOperand(a))
		}
		return c, nil

	case s.Binary != nil:
		op, ok := binaryOpByMnemonic[s.Binary.Op]
		if !ok {
			return nil, fmt.Errorf("textir: unknown binary mnemonic %q", s.Binary.Op)
		}
		return &ir.BinaryCalculate{Result: regName(s.Binary.Result), Op: op, Type: toType(s.Binary.Type), Left: toOperand(s.Binary.Left), Right: toOperand(s.Binary.Right)}, nil

	case s.Unary != nil:
		op, ok := unaryOpByMnemonic[s.Unary.Op]
		if !ok {
			return nil, fmt.Errorf("textir: unknown unary mnemonic %q", s.Unary.Op)
		}
		return &ir.UnaryCalculate{Result: regName(s.Unary.Result), Op: op, Type: toType(s.Unary.Type), Operand: toOperand(s.Unary.Operand)}, nil

	default:
		return nil, fmt.Errorf("textir: empty statement")
	}
}

func toTerminator(t *TermDecl) (ir.Terminator, error) {
	switch {
	case t.Jump != nil:
		return &ir.Jump{Target: t.Jump.Target}, nil
	case t.Branch != nil:
		kind, ok := branchKindByMnemonic[t.Branch.Kind]
		if !ok {
			return nil, fmt.Errorf("textir: unknown branch mnemonic %q", t.Branch.Kind)
		}
		return &ir.Branch{
			Kind: kind, Left: toOperand(t.Branch.Left), Right: toOperand(t.Branch.Right),
			Then: t.Branch.Then, Else: t.Branch.Else,
		}, nil
	case t.Ret != nil:
		return &ir.Ret{Value: toOperand(t.Ret.Value)}, nil
	default:
		return nil, fmt.Errorf("textir: block has no terminator")
	}
}

func regName(s string) ir.RegisterName {
	return ir.RegisterName(strings.TrimPrefix(s, "%"))
}
