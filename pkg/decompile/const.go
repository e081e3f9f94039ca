package decompile

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/zzkshare/pycdc/pkg/pycfile"
)

// printConst renders a constants-pool value as a source literal for the
// module's language version.
func (r *RenderContext) printConst(obj pycfile.Object) {
	if obj == nil {
		r.printf("None")
		return
	}
	switch v := obj.(type) {
	case pycfile.Int:
		r.printf("%d", v.Value)
	case pycfile.Int64:
		r.printf("%d", v.Value)
	case pycfile.Float:
		if v.Text != "" {
			r.printf("%s", v.Text)
		} else {
			r.printf("%s", strconv.FormatFloat(v.Value, 'g', -1, 64))
		}
	case pycfile.Complex:
		r.printf("(%s+%sj)",
			strconv.FormatFloat(v.Real, 'g', -1, 64),
			strconv.FormatFloat(v.Imag, 'g', -1, 64))
	case pycfile.Long:
		r.printf("%s", formatLong(v))
		if r.mod.Major < 3 {
			r.printf("L")
		}
	case *pycfile.String:
		prefix := byte(0)
		if r.mod.Major == 3 {
			prefix = 'b'
		}
		r.printf("%s", quoteString(v.Value, prefix, false))
	case *pycfile.Unicode:
		prefix := byte('u')
		if r.mod.Major == 3 {
			prefix = 0
		}
		r.printf("%s", quoteString(v.Value, prefix, false))
	case *pycfile.Tuple:
		r.printf("(")
		for i, val := range v.Values {
			if i > 0 {
				r.printf(", ")
			}
			r.printConst(val)
		}
		if len(v.Values) == 1 {
			r.printf(",)")
		} else {
			r.printf(")")
		}
	case *pycfile.List:
		r.printf("[")
		for i, val := range v.Values {
			if i > 0 {
				r.printf(", ")
			}
			r.printConst(val)
		}
		r.printf("]")
	case *pycfile.Dict:
		r.printf("{")
		for i := range v.Keys {
			if i > 0 {
				r.printf(", ")
			}
			r.printConst(v.Keys[i])
			r.printf(": ")
			r.printConst(v.Values[i])
		}
		r.printf("}")
	case *pycfile.Set:
		if v.Frozen {
			r.printf("frozenset([")
		} else {
			r.printf("set([")
		}
		for i, val := range v.Values {
			if i > 0 {
				r.printf(", ")
			}
			r.printConst(val)
		}
		r.printf("])")
	default:
		switch obj.Type() {
		case pycfile.TypeNone:
			r.printf("None")
		case pycfile.TypeTrue:
			r.printf("True")
		case pycfile.TypeFalse:
			r.printf("False")
		case pycfile.TypeEllipsis:
			r.printf("Ellipsis")
		case pycfile.TypeStopIter:
			r.printf("StopIteration")
		default:
			r.printf("<CONST:%d>", obj.Type())
			r.clean = false
		}
	}
}

// printDocString renders a module/class docstring assignment with the
// triple-quoted form and the version-appropriate prefix.
func (r *RenderContext) printDocString(obj pycfile.Object) {
	prefix := byte(0)
	switch obj.Type() {
	case pycfile.TypeString, pycfile.TypeInterned, pycfile.TypeStringRef:
		if r.mod.Major == 3 {
			prefix = 'b'
		}
	case pycfile.TypeUnicode:
		if r.mod.Major < 3 {
			prefix = 'u'
		}
	}
	r.printf("%s", quoteString(pycfile.StringValue(obj), prefix, true))
}

// formatLong converts 15-bit marshal digits to decimal.
func formatLong(l pycfile.Long) string {
	value := new(big.Int)
	shift := new(big.Int)
	digit := new(big.Int)
	for i := len(l.Digits) - 1; i >= 0; i-- {
		shift.Lsh(value, 15)
		digit.SetInt64(int64(l.Digits[i]))
		value.Add(shift, digit)
	}
	if l.Negative {
		value.Neg(value)
	}
	return value.String()
}

// quoteString renders a string literal the way repr would: single
// quotes unless the text contains one and no double quote. triple
// selects the triple-quoted docstring form.
func quoteString(s string, prefix byte, triple bool) string {
	var sb strings.Builder
	if prefix != 0 {
		sb.WriteByte(prefix)
	}

	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	if triple {
		sb.WriteString(strings.Repeat(string(quote), 3))
	} else {
		sb.WriteByte(quote)
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\\':
			sb.WriteString(`\\`)
		case ch == quote && !triple:
			sb.WriteByte('\\')
			sb.WriteByte(ch)
		case ch == '\n':
			if triple {
				sb.WriteByte(ch)
			} else {
				sb.WriteString(`\n`)
			}
		case ch == '\r':
			sb.WriteString(`\r`)
		case ch == '\t':
			sb.WriteString(`\t`)
		case ch < 0x20 || ch == 0x7F:
			sb.WriteString(`\x`)
			const hex = "0123456789abcdef"
			sb.WriteByte(hex[ch>>4])
			sb.WriteByte(hex[ch&0xF])
		default:
			sb.WriteByte(ch)
		}
	}

	if triple {
		sb.WriteString(strings.Repeat(string(quote), 3))
	} else {
		sb.WriteByte(quote)
	}
	return sb.String()
}
