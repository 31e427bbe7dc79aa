package textir

import (
	"fmt"
	"strings"

	"kiln/internal/ir"
)

// PrintModule renders a whole module in the textual IR format, types and
// globals first, then functions — the inverse of ToIR(ParseModule(...)).
func PrintModule(m *ir.Module) string {
	var b strings.Builder
	for _, t := range m.Types {
		printType(&b, t)
	}
	for _, g := range m.Globals {
		printGlobal(&b, g)
	}
	for _, fn := range m.Functions {
		PrintFunction(&b, fn)
	}
	return b.String()
}

func printType(b *strings.Builder, t *ir.TypeDefinition) {
	fmt.Fprintf(b, "type %s {\n", t.Name)
	names := make([]string, len(t.Fields))
	for name, idx := range t.FieldNames {
		names[idx] = name
	}
	for i, f := range t.Fields {
		fmt.Fprintf(b, "  %s: %s,\n", names[i], f)
	}
	b.WriteString("}\n")
}

func printGlobal(b *strings.Builder, g *ir.GlobalDefinition) {
	fmt.Fprintf(b, "global @%s: %s = %d;\n", g.Name, g.Type, g.InitialValue)
}

// PrintFunction renders fn in the textual IR format, one labelled block per
// ir.BasicBlock in Content order.
func PrintFunction(b *strings.Builder, fn *ir.FunctionDefinition) {
	fmt.Fprintf(b, "fn %s(", fn.Header.Name)
	for i, p := range fn.Header.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s %%%s", p.Type, p.Name)
	}
	fmt.Fprintf(b, ") -> %s {\n", fn.Header.ReturnType)
	for _, block := range fn.Content {
		printBlock(b, block)
	}
	b.WriteString("}\n")
}

func printBlock(b *strings.Builder, block *ir.BasicBlock) {
	fmt.Fprintf(b, "%s:\n", block.Name)
	for _, s := range block.Content {
		b.WriteString("  ")
		printStatement(b, s)
		b.WriteString("\n")
	}
}

func printStatement(b *strings.Builder, s ir.Statement) {
	switch st := s.(type) {
	case *ir.Phi:
		fmt.Fprintf(b, "%%%s = phi %s ", st.Result, st.Type)
		for i, src := range st.Sources {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "[%s, %s]", operandText(src.Value), src.FromBlock)
		}
	case *ir.Alloca:
		fmt.Fprintf(b, "%%%s = alloca %s", st.Result, st.Type)
	case *ir.Store:
		fmt.Fprintf(b, "store %s %s, address %s", st.Type, operandText(st.Value), operandText(st.Address))
	case *ir.Load:
		fmt.Fprintf(b, "%%%s = load %s %s", st.Result, st.Type, operandText(st.Address))
	case *ir.LoadField:
		fmt.Fprintf(b, "%%%s = load_field %s, %s, %s", st.Result, st.LeafType, operandText(st.Source), fieldChainText(st.FieldChain))
	case *ir.SetField:
		fmt.Fprintf(b, "%%%s = set_field %s, %s, %s, %s", st.Target, st.FinalType, operandText(st.Source), operandText(st.OriginRoot), fieldChainText(st.FieldChain))
	case *ir.Call:
		if st.HasResult {
			fmt.Fprintf(b, "%%%s = call %s %s(%s)", st.Result, st.Type, st.Callee, joinOperands(st.Arguments))
		} else {
			fmt.Fprintf(b, "call %s %s(%s)", st.Type, st.Callee, joinOperands(st.Arguments))
		}
	case *ir.BinaryCalculate:
		fmt.Fprintf(b, "%%%s = %s %s %s, %s", st.Result, binaryMnemonicByOp[st.Op], st.Type, operandText(st.Left), operandText(st.Right))
	case *ir.UnaryCalculate:
		fmt.Fprintf(b, "%%%s = %s %s %s", st.Result, unaryMnemonicByOp[st.Op], st.Type, operandText(st.Operand))
	case *ir.Jump:
		fmt.Fprintf(b, "j %s", st.Target)
	case *ir.Branch:
		fmt.Fprintf(b, "%s %s, %s, %s, %s", branchMnemonicByKind[st.Kind], operandText(st.Left), operandText(st.Right), st.Then, st.Else)
	case *ir.Ret:
		if st.Value == nil {
			b.WriteString("ret")
		} else {
			fmt.Fprintf(b, "ret %s", operandText(st.Value))
		}
	default:
		fmt.Fprintf(b, "/* unprintable statement %T */", st)
	}
}

func operandText(q ir.Quantity) string {
	if q == nil {
		return ""
	}
	return q.String()
}

func joinOperands(qs []ir.Quantity) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = operandText(q)
	}
	return strings.Join(parts, ", ")
}

func fieldChainText(chain []ir.FieldAccess) string {
	parts := make([]string, len(chain))
	for i, fa := range chain {
		parts[i] = fmt.Sprintf("%s[%d]", fa.ParentType, fa.FieldIndex)
	}
	return strings.Join(parts, ".")
}
