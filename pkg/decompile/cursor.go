package decompile

import (
	"errors"
	"fmt"

	"github.com/zzkshare/pycdc/pkg/opcodes"
	"github.com/zzkshare/pycdc/pkg/pycfile"
)

// ErrMalformedStream marks a truncated instruction or an opcode byte
// unknown to the target version's table.
var ErrMalformedStream = errors.New("decompile: malformed bytecode stream")

// Cursor decodes instructions sequentially from a code buffer using the
// version-specific opcode table. Position reads as the offset of the
// instruction after the last decode, which is the base for relative
// jumps.
type Cursor struct {
	buf   []byte
	table *opcodes.Table
	width int // operand bytes: 2 below 3.6, 1 for wordcode
	word  bool // wordcode pads operand-less instructions to two bytes
	pos   int
}

// NewCursor positions a cursor at the start of the code buffer.
func NewCursor(buf []byte, mod *pycfile.Module) *Cursor {
	return &Cursor{
		buf:   buf,
		table: opcodes.TableFor(mod.Major, mod.Minor),
		width: opcodes.OperandWidth(mod.Major, mod.Minor),
		word:  opcodes.OperandWidth(mod.Major, mod.Minor) == 1,
	}
}

// AtEnd reports whether the stream is exhausted.
func (c *Cursor) AtEnd() bool { return c.pos >= len(c.buf) }

// Pos returns the offset of the next instruction to decode.
func (c *Cursor) Pos() int { return c.pos }

// Next decodes one instruction, folding any EXTENDED_ARG prefixes into
// the returned operand.
func (c *Cursor) Next() (opcodes.Mnemonic, int, error) {
	extended := 0
	for {
		if c.pos >= len(c.buf) {
			return opcodes.Invalid, 0, fmt.Errorf("%w: truncated at offset %d", ErrMalformedStream, c.pos)
		}
		op := c.table.Lookup(c.buf[c.pos])
		if op == opcodes.Invalid {
			return opcodes.Invalid, 0, fmt.Errorf("%w: unknown opcode %d at offset %d", ErrMalformedStream, c.buf[c.pos], c.pos)
		}
		c.pos++

		operand := 0
		if op.HasOperand() {
			if c.pos+c.width > len(c.buf) {
				return opcodes.Invalid, 0, fmt.Errorf("%w: truncated operand at offset %d", ErrMalformedStream, c.pos)
			}
			if c.width == 2 {
				operand = int(c.buf[c.pos]) | int(c.buf[c.pos+1])<<8
			} else {
				operand = int(c.buf[c.pos])
			}
			c.pos += c.width
		} else if c.word {
			// Wordcode keeps every instruction two bytes wide.
			c.pos++
		}

		if op == opcodes.ExtendedArgA {
			if c.width == 2 {
				extended = (extended | operand) << 16
			} else {
				extended = (extended | operand) << 8
			}
			continue
		}
		return op, extended | operand, nil
	}
}
