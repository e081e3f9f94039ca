package decompile

import (
	"errors"
	"testing"

	"github.com/zzkshare/pycdc/pkg/opcodes"
	"github.com/zzkshare/pycdc/pkg/pycfile"
)

func TestCursorShortOperands(t *testing.T) {
	// 2.7: LOAD_CONST 0x0102; RETURN_VALUE
	cur := NewCursor([]byte{100, 0x02, 0x01, 83}, mod27)

	op, arg, err := cur.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if op != opcodes.LoadConstA || arg != 0x0102 {
		t.Errorf("got %s %d, want LOAD_CONST 258", op, arg)
	}
	if cur.Pos() != 3 {
		t.Errorf("Pos() = %d, want 3", cur.Pos())
	}

	op, _, err = cur.Next()
	if err != nil || op != opcodes.ReturnValue {
		t.Errorf("got %s (%v), want RETURN_VALUE", op, err)
	}
	if !cur.AtEnd() {
		t.Error("cursor should be at end")
	}
}

func TestCursorWordcode(t *testing.T) {
	mod36 := &pycfile.Module{Major: 3, Minor: 6}
	// LOAD_CONST 5; RETURN_VALUE (padded)
	cur := NewCursor([]byte{100, 5, 83, 0}, mod36)

	op, arg, err := cur.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if op != opcodes.LoadConstA || arg != 5 {
		t.Errorf("got %s %d, want LOAD_CONST 5", op, arg)
	}
	if cur.Pos() != 2 {
		t.Errorf("Pos() = %d, want 2", cur.Pos())
	}

	op, _, err = cur.Next()
	if err != nil || op != opcodes.ReturnValue {
		t.Errorf("got %s (%v), want RETURN_VALUE", op, err)
	}
	if cur.Pos() != 4 {
		t.Errorf("Pos() = %d, want 4 (wordcode padding)", cur.Pos())
	}
}

func TestCursorExtendedArg(t *testing.T) {
	// 2.7: EXTENDED_ARG 1; LOAD_CONST 2 -> operand 0x10002
	cur := NewCursor([]byte{145, 1, 0, 100, 2, 0}, mod27)
	op, arg, err := cur.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if op != opcodes.LoadConstA || arg != 0x10002 {
		t.Errorf("got %s %#x, want LOAD_CONST 0x10002", op, arg)
	}

	// 3.6: EXTENDED_ARG 1; LOAD_CONST 2 -> operand 0x102
	mod36 := &pycfile.Module{Major: 3, Minor: 6}
	cur = NewCursor([]byte{144, 1, 100, 2}, mod36)
	op, arg, err = cur.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if op != opcodes.LoadConstA || arg != 0x102 {
		t.Errorf("got %s %#x, want LOAD_CONST 0x102", op, arg)
	}
}

func TestCursorUnknownOpcode(t *testing.T) {
	cur := NewCursor([]byte{250}, mod27)
	_, _, err := cur.Next()
	if !errors.Is(err, ErrMalformedStream) {
		t.Errorf("err = %v, want ErrMalformedStream", err)
	}
}

func TestCursorTruncatedOperand(t *testing.T) {
	cur := NewCursor([]byte{100, 1}, mod27)
	_, _, err := cur.Next()
	if !errors.Is(err, ErrMalformedStream) {
		t.Errorf("err = %v, want ErrMalformedStream", err)
	}
}
