package opcodes

import (
	"strings"
	"testing"
)

func TestMnemonicString(t *testing.T) {
	tests := []struct {
		m    Mnemonic
		want string
	}{
		{PopTop, "POP_TOP"},
		{BinaryAdd, "BINARY_ADD"},
		{LoadConstA, "LOAD_CONST"},
		{PopJumpIfFalseA, "POP_JUMP_IF_FALSE"},
		{SetupExceptA, "SETUP_EXCEPT"},
		{EndFinally, "END_FINALLY"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("Mnemonic(%d).String() = %q, want %q", tt.m, got, tt.want)
		}
	}
}

func TestHasOperand(t *testing.T) {
	tests := []struct {
		m    Mnemonic
		want bool
	}{
		{PopTop, false},
		{BinaryAdd, false},
		{ReturnValue, false},
		{LoadConstA, true},
		{JumpForwardA, true},
		{CompareOpA, true},
		{ExtendedArgA, true},
	}
	for _, tt := range tests {
		if got := tt.m.HasOperand(); got != tt.want {
			t.Errorf("%s.HasOperand() = %v, want %v", tt.m, got, tt.want)
		}
	}
}

func TestAllNamesUnique(t *testing.T) {
	seen := make(map[string]Mnemonic)
	for m, info := range mnemonicInfo {
		if prev, dup := seen[info.Name]; dup {
			t.Errorf("name %q used by both %d and %d", info.Name, prev, m)
		}
		seen[info.Name] = m
	}
}

func TestOperandNamingConvention(t *testing.T) {
	for _, info := range mnemonicInfo {
		if info.Operand != strings.HasSuffix(info.Name, "_A") {
			t.Errorf("%s: operand flag %v does not match _A suffix", info.Name, info.Operand)
		}
	}
}

func TestTableFor27(t *testing.T) {
	tbl := TableFor(2, 7)
	tests := []struct {
		code byte
		want Mnemonic
	}{
		{1, PopTop},
		{23, BinaryAdd},
		{20, BinaryMultiply},
		{83, ReturnValue},
		{90, StoreNameA},
		{100, LoadConstA},
		{101, LoadNameA},
		{106, CompareOpA},
		{110, JumpForwardA},
		{113, JumpAbsoluteA},
		{114, PopJumpIfFalseA},
		{120, SetupLoopA},
		{121, SetupExceptA},
		{122, SetupFinallyA},
		{131, CallFunctionA},
		{132, MakeFunctionA},
		{143, SetupWithA},
	}
	for _, tt := range tests {
		if got := tbl.Lookup(tt.code); got != tt.want {
			t.Errorf("2.7 table: opcode %d = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestTableForSelection(t *testing.T) {
	// 2.6 falls back to the 2.2 generation, where 111 is the legacy
	// relative JUMP_IF_FALSE; 2.7 replaces it.
	if got := TableFor(2, 6).Lookup(111); got != JumpIfFalseA {
		t.Errorf("2.6 table: opcode 111 = %s, want JUMP_IF_FALSE", got)
	}
	if got := TableFor(2, 7).Lookup(111); got != JumpIfFalseOrPopA {
		t.Errorf("2.7 table: opcode 111 = %s, want JUMP_IF_FALSE_OR_POP", got)
	}
	// 1.0 has the early call protocol.
	if got := TableFor(1, 0).Lookup(14); got != UnaryCall {
		t.Errorf("1.0 table: opcode 14 = %s, want UNARY_CALL", got)
	}
	// Versions newer than every table use the newest generation.
	if got := TableFor(3, 9).Lookup(100); got != LoadConstA {
		t.Errorf("3.9 table: opcode 100 = %s, want LOAD_CONST", got)
	}
}

func TestUnknownOpcode(t *testing.T) {
	if got := TableFor(3, 0).Lookup(71); got != LoadBuildClass {
		t.Errorf("3.0 table: opcode 71 = %s, want LOAD_BUILD_CLASS", got)
	}
	if got := TableFor(2, 7).Lookup(250); got != Invalid {
		t.Errorf("2.7 table: opcode 250 = %s, want Invalid", got)
	}
}

func TestOperandWidth(t *testing.T) {
	tests := []struct {
		major, minor, want int
	}{
		{1, 5, 2},
		{2, 7, 2},
		{3, 5, 2},
		{3, 6, 1},
		{3, 8, 1},
	}
	for _, tt := range tests {
		if got := OperandWidth(tt.major, tt.minor); got != tt.want {
			t.Errorf("OperandWidth(%d, %d) = %d, want %d", tt.major, tt.minor, got, tt.want)
		}
	}
}
