// Package disasm prints human-readable instruction listings for code
// objects, recursing into the code constants of classes and functions.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/zzkshare/pycdc/pkg/decompile"
	"github.com/zzkshare/pycdc/pkg/opcodes"
	"github.com/zzkshare/pycdc/pkg/pycfile"
)

// Listing returns the disassembly of a code object as a string.
func Listing(code *pycfile.Code, mod *pycfile.Module) string {
	var sb strings.Builder
	Write(&sb, code, mod)
	return sb.String()
}

// Write emits the disassembly of a code object, then of every code
// object among its constants, each with its own header.
func Write(w io.Writer, code *pycfile.Code, mod *pycfile.Module) {
	writeCode(w, code, mod, 0)
}

func writeCode(w io.Writer, code *pycfile.Code, mod *pycfile.Module, depth int) {
	pad := strings.Repeat("    ", depth)

	fmt.Fprintf(w, "%s; === %s (%s) ===\n", pad, code.CodeName, code.FileName)
	fmt.Fprintf(w, "%s; args: %d, locals: %d, stack: %d, flags: 0x%04X\n",
		pad, code.ArgCount(), code.Locals, code.StackSize(), code.Flags())

	cur := decompile.NewCursor(code.Bytes(), mod)
	for !cur.AtEnd() {
		offset := cur.Pos()
		op, operand, err := cur.Next()
		if err != nil {
			fmt.Fprintf(w, "%s%-7d ; %v\n", pad, offset, err)
			break
		}
		if !op.HasOperand() {
			fmt.Fprintf(w, "%s%-7d %s\n", pad, offset, op)
			continue
		}
		fmt.Fprintf(w, "%s%-7d %-24s %-6d %s\n", pad, offset, op.String(), operand,
			annotate(code, op, operand, cur.Pos()))
	}

	for _, c := range code.Consts.Values {
		if nested, ok := c.(*pycfile.Code); ok {
			fmt.Fprintf(w, "\n")
			writeCode(w, nested, mod, depth+1)
		}
	}
}

// annotate explains an operand: the pool entry it indexes, the compare
// operator it selects, or the jump target it reaches.
func annotate(code *pycfile.Code, op opcodes.Mnemonic, operand, next int) string {
	switch op {
	case opcodes.LoadConstA:
		return constSummary(code.Const(operand))
	case opcodes.LoadNameA, opcodes.LoadGlobalA, opcodes.StoreNameA, opcodes.StoreGlobalA,
		opcodes.DeleteNameA, opcodes.DeleteGlobalA, opcodes.LoadAttrA, opcodes.StoreAttrA,
		opcodes.DeleteAttrA, opcodes.ImportNameA, opcodes.ImportFromA:
		return code.Name(operand)
	case opcodes.LoadFastA, opcodes.StoreFastA, opcodes.DeleteFastA:
		return code.VarName(operand)
	case opcodes.CompareOpA:
		return strings.TrimSpace(cmpString(operand))
	}
	if op.IsJumpRel() {
		return fmt.Sprintf("(to %d)", next+operand)
	}
	if op.IsJumpAbs() {
		return fmt.Sprintf("(to %d)", operand)
	}
	return ""
}

var cmpNames = []string{
	"<", "<=", "==", "!=", ">", ">=", "in", "not in", "is", "is not",
	"exception match", "BAD",
}

func cmpString(operand int) string {
	if operand >= 0 && operand < len(cmpNames) {
		return cmpNames[operand]
	}
	return "BAD"
}

// constSummary is a one-line rendering of a constant, truncated for
// readability.
func constSummary(obj pycfile.Object) string {
	if obj == nil {
		return "<missing>"
	}
	var text string
	switch v := obj.(type) {
	case pycfile.Int:
		text = fmt.Sprintf("%d", v.Value)
	case pycfile.Int64:
		text = fmt.Sprintf("%d", v.Value)
	case pycfile.Float:
		if v.Text != "" {
			text = v.Text
		} else {
			text = fmt.Sprintf("%g", v.Value)
		}
	case *pycfile.String:
		text = fmt.Sprintf("%q", v.Value)
	case *pycfile.Unicode:
		text = fmt.Sprintf("u%q", v.Value)
	case *pycfile.Tuple:
		parts := make([]string, len(v.Values))
		for i, val := range v.Values {
			parts[i] = constSummary(val)
		}
		text = "(" + strings.Join(parts, ", ") + ")"
	case *pycfile.Code:
		text = fmt.Sprintf("<code %s>", v.CodeName)
	default:
		switch obj.Type() {
		case pycfile.TypeNone:
			text = "None"
		case pycfile.TypeTrue:
			text = "True"
		case pycfile.TypeFalse:
			text = "False"
		default:
			text = fmt.Sprintf("<type %d>", obj.Type())
		}
	}
	if len(text) > 40 {
		text = text[:37] + "..."
	}
	return text
}
