// Package lower translates a frontend.Program into a pre-SSA ir.Module: every
// local gets an Alloca/Store/Load triple (Mem2Reg is responsible for lifting
// them later), and every struct/function name is resolved against the
// program's declared types. Grounded on the teacher's builder.go for its
// monotonic-counter, current-block-cursor bookkeeping style
// (kanso/internal/ir/builder.go's valueCounter/blockCounter/instCounter), and
// on spec §6's synthesized-label convention for if/while lowering.
package lower

import (
	"fmt"

	"kiln/internal/frontend"
	"kiln/internal/ir"
)

// Lowerer holds the counters and symbol tables needed to translate one
// frontend.Program into an ir.Module.
type Lowerer struct {
	structs map[string]*ir.TypeDefinition
	returns map[string]ir.Type
	locals  map[string]localInfo
	blocks  []*ir.BasicBlock
	cur     *ir.BasicBlock
	valueN  int
	labelN  int
}

type localInfo struct {
	slot ir.RegisterName
	typ  ir.Type
}

// Lower translates prog into a Module, resolving struct field layouts and
// function signatures first so function bodies can reference them in any
// order.
func Lower(prog *frontend.Program) (*ir.Module, error) {
	mod := &ir.Module{}
	structTypes := make(map[string]*ir.TypeDefinition, len(prog.Structs))
	for _, sd := range prog.Structs {
		def := &ir.TypeDefinition{Name: sd.Name, FieldNames: make(map[string]int, len(sd.Fields))}
		for i, f := range sd.Fields {
			def.FieldNames[f.Name] = i
			def.Fields = append(def.Fields, resolveType(f.Type, structTypes))
		}
		structTypes[sd.Name] = def
		mod.Types = append(mod.Types, def)
	}

	returnTypes := make(map[string]ir.Type, len(prog.Functions))
	for _, fd := range prog.Functions {
		returnTypes[fd.Name] = resolveType(fd.ReturnType, structTypes)
	}

	for _, fd := range prog.Functions {
		l := &Lowerer{structs: structTypes, returns: returnTypes, locals: make(map[string]localInfo)}
		fn, err := l.lowerFunction(fd)
		if err != nil {
			return nil, err
		}
		mod.Functions = append(mod.Functions, fn)
	}
	return mod, nil
}

func resolveType(t frontend.TypeRef, structs map[string]*ir.TypeDefinition) ir.Type {
	if def, ok := structs[t.Name]; ok {
		return ir.StructRefType{Name: def.Name}
	}
	if width, signed, ok := parseIntType(t.Name); ok {
		return ir.IntegerType{Signed: signed, Width: width}
	}
	return ir.NoneType{}
}

func parseIntType(name string) (width int, signed bool, ok bool) {
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
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false, false
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return 0, false, false
	}
	return n, signed, true
}

// defaultIntType types integer literals where no surrounding declaration
// pins a width.
func defaultIntType() ir.Type { return ir.IntegerType{Signed: true, Width: 32} }

func (l *Lowerer) newBlock(name string) *ir.BasicBlock {
	b := &ir.BasicBlock{Name: name}
	l.blocks = append(l.blocks, b)
	return b
}

// newLabelID mints the <id> of the if_<id>_* / loop_<id>_* label families.
func (l *Lowerer) newLabelID() int {
	id := l.labelN
	l.labelN++
	return id
}

func (l *Lowerer) newReg(hint string) ir.RegisterName {
	r := ir.RegisterName(fmt.Sprintf("%s_%d", hint, l.valueN))
	l.valueN++
	return r
}

func (l *Lowerer) emit(s ir.Statement) {
	l.cur.Content = append(l.cur.Content, s)
}

func (l *Lowerer) lowerFunction(fd *frontend.FunctionDecl) (*ir.FunctionDefinition, error) {
	header := ir.FunctionHeader{Name: fd.Name, ReturnType: resolveType(fd.ReturnType, l.structs)}
	entry := &ir.BasicBlock{Name: fd.Name + "_entry"}
	l.blocks = []*ir.BasicBlock{entry}
	l.cur = entry

	for _, p := range fd.Parameters {
		ptype := resolveType(p.Type, l.structs)
		header.Parameters = append(header.Parameters, ir.Parameter{Name: ir.RegisterName(p.Name), Type: ptype})
		slot := l.newReg(p.Name + "_slot")
		l.emit(&ir.Alloca{Result: slot, Type: ptype})
		l.emit(&ir.Store{Type: ptype, Address: ir.Register(slot), Value: ir.Register(p.Name)})
		l.locals[p.Name] = localInfo{slot: slot, typ: ptype}
	}

	for _, stmt := range fd.Body {
		if err := l.lowerStmt(stmt); err != nil {
			return nil, err
		}
	}

	if l.cur.Terminator() == nil {
		l.emit(&ir.Ret{})
	}

	return &ir.FunctionDefinition{Header: header, Content: l.blocks}, nil
}

func (l *Lowerer) lowerStmt(stmt frontend.Stmt) error {
	switch s := stmt.(type) {
	case *frontend.LetStmt:
		t := resolveType(s.Type, l.structs)
		val, _, err := l.lowerExpr(s.Init)
		if err != nil {
			return err
		}
		slot := l.newReg(s.Name + "_slot")
		l.emit(&ir.Alloca{Result: slot, Type: t})
		l.emit(&ir.Store{Type: t, Address: ir.Register(slot), Value: val})
		l.locals[s.Name] = localInfo{slot: slot, typ: t}
		return nil

	case *frontend.AssignStmt:
		return l.lowerAssign(s)

	case *frontend.ReturnStmt:
		if s.Value == nil {
			l.emit(&ir.Ret{})
			return nil
		}
		val, _, err := l.lowerExpr(s.Value)
		if err != nil {
			return err
		}
		l.emit(&ir.Ret{Value: val})
		return nil

	case *frontend.ExprStmt:
		_, _, err := l.lowerExpr(s.Expr)
		return err

	case *frontend.IfStmt:
		return l.lowerIf(s)

	case *frontend.WhileStmt:
		return l.lowerWhile(s)

	default:
		return fmt.Errorf("lower: unsupported statement %T", stmt)
	}
}

func (l *Lowerer) lowerAssign(s *frontend.AssignStmt) error {
	val, _, err := l.lowerExpr(s.Value)
	if err != nil {
		return err
	}
	switch target := s.Target.(type) {
	case *frontend.IdentExpr:
		info, ok := l.locals[target.Name]
		if !ok {
			return fmt.Errorf("lower: assignment to undeclared local %q", target.Name)
		}
		l.emit(&ir.Store{Type: info.typ, Address: ir.Register(info.slot), Value: val})
		return nil

	case *frontend.FieldExpr:
		// A field write reads the current aggregate, produces a new one with
		// the field replaced, and stores it back; SetField never mutates the
		// origin in place.
		root, chain, finalType, err := l.resolveFieldTarget(target)
		if err != nil {
			return err
		}
		current := l.newReg(root.name + "_val")
		l.emit(&ir.Load{Result: current, Address: ir.Register(root.info.slot), Type: root.info.typ})
		updated := l.newReg(root.name + "_upd")
		l.emit(&ir.SetField{
			Target:     updated,
			Source:     val,
			OriginRoot: ir.Register(current),
			FieldChain: chain,
			FinalType:  finalType,
		})
		l.emit(&ir.Store{Type: root.info.typ, Address: ir.Register(root.info.slot), Value: ir.Register(updated)})
		return nil

	default:
		return fmt.Errorf("lower: unsupported assignment target %T", s.Target)
	}
}

func (l *Lowerer) lowerIf(s *frontend.IfStmt) error {
	id := l.newLabelID()
	thenBlock := l.newBlock(fmt.Sprintf("if_%d_success", id))
	var elseBlock *ir.BasicBlock
	if s.Else != nil {
		elseBlock = l.newBlock(fmt.Sprintf("if_%d_fail", id))
	}
	joinBlock := l.newBlock(fmt.Sprintf("if_%d_end", id))
	elseTarget := joinBlock.Name
	if elseBlock != nil {
		elseTarget = elseBlock.Name
	}

	kind, left, right, err := l.lowerCondition(s.Cond)
	if err != nil {
		return err
	}
	l.emit(&ir.Branch{Kind: kind, Left: left, Right: right, Then: thenBlock.Name, Else: elseTarget})

	l.cur = thenBlock
	for _, st := range s.Then {
		if err := l.lowerStmt(st); err != nil {
			return err
		}
	}
	if l.cur.Terminator() == nil {
		l.emit(&ir.Jump{Target: joinBlock.Name})
	}

	if elseBlock != nil {
		l.cur = elseBlock
		for _, st := range s.Else {
			if err := l.lowerStmt(st); err != nil {
				return err
			}
		}
		if l.cur.Terminator() == nil {
			l.emit(&ir.Jump{Target: joinBlock.Name})
		}
	}

	l.cur = joinBlock
	return nil
}

func (l *Lowerer) lowerWhile(s *frontend.WhileStmt) error {
	id := l.newLabelID()
	condBlock := l.newBlock(fmt.Sprintf("loop_%d_condition", id))
	bodyBlock := l.newBlock(fmt.Sprintf("loop_%d_success", id))
	exitBlock := l.newBlock(fmt.Sprintf("loop_%d_fail", id))

	l.emit(&ir.Jump{Target: condBlock.Name})

	l.cur = condBlock
	kind, left, right, err := l.lowerCondition(s.Cond)
	if err != nil {
		return err
	}
	l.emit(&ir.Branch{Kind: kind, Left: left, Right: right, Then: bodyBlock.Name, Else: exitBlock.Name})

	l.cur = bodyBlock
	for _, st := range s.Body {
		if err := l.lowerStmt(st); err != nil {
			return err
		}
	}
	if l.cur.Terminator() == nil {
		l.emit(&ir.Jump{Target: condBlock.Name})
	}

	l.cur = exitBlock
	return nil
}

// lowerCondition lowers an expression used as a branch condition into a
// direct comparison when the expression is an ==, !=, < or >= comparison
// (the four Branch kinds), or into a not-equal-zero test against the lowered
// value otherwise (<= and > included).
func (l *Lowerer) lowerCondition(e frontend.Expr) (ir.BranchKind, ir.Quantity, ir.Quantity, error) {
	if bin, ok := e.(*frontend.BinaryExpr); ok {
		if kind, ok := comparisonKind(bin.Op); ok {
			left, _, err := l.lowerExpr(bin.Left)
			if err != nil {
				return 0, nil, nil, err
			}
			right, _, err := l.lowerExpr(bin.Right)
			if err != nil {
				return 0, nil, nil, err
			}
			return kind, left, right, nil
		}
	}
	val, _, err := l.lowerExpr(e)
	if err != nil {
		return 0, nil, nil, err
	}
	return ir.BranchNE, val, ir.NumberLiteral(0), nil
}

func comparisonKind(op string) (ir.BranchKind, bool) {
	switch op {
	case "==":
		return ir.BranchEQ, true
	case "!=":
		return ir.BranchNE, true
	case "<":
		return ir.BranchLT, true
	case ">=":
		return ir.BranchGE, true
	default:
		return 0, false
	}
}

// lowerExpr emits the statements computing e and returns the resulting
// operand together with its type, so enclosing statements can carry it.
func (l *Lowerer) lowerExpr(e frontend.Expr) (ir.Quantity, ir.Type, error) {
	switch ex := e.(type) {
	case *frontend.IntLiteral:
		return ir.NumberLiteral(ex.Value), defaultIntType(), nil

	case *frontend.BoolLiteral:
		if ex.Value {
			return ir.NumberLiteral(1), defaultIntType(), nil
		}
		return ir.NumberLiteral(0), defaultIntType(), nil

	case *frontend.IdentExpr:
		info, ok := l.locals[ex.Name]
		if !ok {
			return ir.Register(ex.Name), defaultIntType(), nil
		}
		result := l.newReg(ex.Name + "_val")
		l.emit(&ir.Load{Result: result, Address: ir.Register(info.slot), Type: info.typ})
		return ir.Register(result), info.typ, nil

	case *frontend.FieldExpr:
		base, _, err := l.lowerExpr(ex.Base)
		if err != nil {
			return nil, nil, err
		}
		structName, fieldIdx, leafType, err := l.resolveField(ex)
		if err != nil {
			return nil, nil, err
		}
		result := l.newReg("field_val")
		l.emit(&ir.LoadField{
			Result:     result,
			Source:     base,
			FieldChain: []ir.FieldAccess{{ParentType: structName, FieldIndex: fieldIdx}},
			LeafType:   leafType,
		})
		return ir.Register(result), leafType, nil

	case *frontend.UnaryExpr:
		operand, typ, err := l.lowerExpr(ex.Operand)
		if err != nil {
			return nil, nil, err
		}
		op := ir.Neg
		if ex.Op == "!" {
			op = ir.Not
		}
		result := l.newReg("unop")
		l.emit(&ir.UnaryCalculate{Result: result, Op: op, Type: typ, Operand: operand})
		return ir.Register(result), typ, nil

	case *frontend.BinaryExpr:
		left, leftType, err := l.lowerExpr(ex.Left)
		if err != nil {
			return nil, nil, err
		}
		right, _, err := l.lowerExpr(ex.Right)
		if err != nil {
			return nil, nil, err
		}
		op, err := binaryOp(ex.Op)
		if err != nil {
			return nil, nil, err
		}
		result := l.newReg("binop")
		l.emit(&ir.BinaryCalculate{Result: result, Op: op, Type: leftType, Left: left, Right: right})
		return ir.Register(result), leftType, nil

	case *frontend.CallExpr:
		var args []ir.Quantity
		for _, a := range ex.Arguments {
			v, _, err := l.lowerExpr(a)
			if err != nil {
				return nil, nil, err
			}
			args = append(args, v)
		}
		retType, ok := l.returns[ex.Callee]
		if !ok {
			retType = defaultIntType()
		}
		if _, isNone := retType.(ir.NoneType); isNone {
			l.emit(&ir.Call{Callee: ex.Callee, Arguments: args, Type: retType})
			return nil, retType, nil
		}
		result := l.newReg("call")
		l.emit(&ir.Call{Result: result, HasResult: true, Callee: ex.Callee, Arguments: args, Type: retType})
		return ir.Register(result), retType, nil

	default:
		return nil, nil, fmt.Errorf("lower: unsupported expression %T", e)
	}
}

type fieldRoot struct {
	name string
	info localInfo
}

// resolveFieldTarget walks a possibly nested field expression down to its
// root local, returning the full field chain from the root's struct type to
// the assigned leaf.
func (l *Lowerer) resolveFieldTarget(ex *frontend.FieldExpr) (fieldRoot, []ir.FieldAccess, ir.Type, error) {
	// Collect fields innermost-last while walking to the root identifier.
	var fields []string
	base := frontend.Expr(ex)
	for {
		fe, ok := base.(*frontend.FieldExpr)
		if !ok {
			break
		}
		fields = append([]string{fe.Field}, fields...)
		base = fe.Base
	}
	ident, ok := base.(*frontend.IdentExpr)
	if !ok {
		return fieldRoot{}, nil, nil, fmt.Errorf("lower: field assignment on a non-identifier base is not supported")
	}
	info, ok := l.locals[ident.Name]
	if !ok {
		return fieldRoot{}, nil, nil, fmt.Errorf("lower: field assignment on undeclared local %q", ident.Name)
	}

	var chain []ir.FieldAccess
	cur := info.typ
	for _, field := range fields {
		structType, ok := cur.(ir.StructRefType)
		if !ok {
			return fieldRoot{}, nil, nil, fmt.Errorf("lower: %q is not a struct along the chain to %q", ident.Name, field)
		}
		def := l.structs[structType.Name]
		idx, ok := def.FieldIndex(field)
		if !ok {
			return fieldRoot{}, nil, nil, fmt.Errorf("lower: struct %q has no field %q", structType.Name, field)
		}
		chain = append(chain, ir.FieldAccess{ParentType: structType.Name, FieldIndex: idx})
		cur = def.Fields[idx]
	}
	return fieldRoot{name: ident.Name, info: info}, chain, cur, nil
}

func (l *Lowerer) resolveField(ex *frontend.FieldExpr) (string, int, ir.Type, error) {
	ident, ok := ex.Base.(*frontend.IdentExpr)
	if !ok {
		return "", 0, nil, fmt.Errorf("lower: field access on a non-identifier base is not supported")
	}
	info, ok := l.locals[ident.Name]
	if !ok {
		return "", 0, nil, fmt.Errorf("lower: field access on undeclared local %q", ident.Name)
	}
	structType, ok := info.typ.(ir.StructRefType)
	if !ok {
		return "", 0, nil, fmt.Errorf("lower: %q is not a struct", ident.Name)
	}
	def := l.structs[structType.Name]
	idx, ok := def.FieldIndex(ex.Field)
	if !ok {
		return "", 0, nil, fmt.Errorf("lower: struct %q has no field %q", structType.Name, ex.Field)
	}
	return structType.Name, idx, def.Fields[idx], nil
}

func binaryOp(op string) (ir.BinaryOperation, error) {
	switch op {
	case "+":
		return ir.Add, nil
	case "-":
		return ir.Sub, nil
	case "<":
		return ir.LessThan, nil
	case "<=":
		return ir.LessOrEqualThan, nil
	case ">":
		return ir.GreaterThan, nil
	case ">=":
		return ir.GreaterOrEqualThan, nil
	case "==":
		return ir.Equal, nil
	case "!=":
		return ir.NotEqual, nil
	case "|":
		return ir.Or, nil
	case "^":
		return ir.Xor, nil
	case "&":
		return ir.And, nil
	case "<<":
		return ir.LogicalShiftLeft, nil
	case ">>":
		return ir.ArithmeticShiftRight, nil
	default:
		return 0, fmt.Errorf("lower: unsupported operator %q", op)
	}
}
