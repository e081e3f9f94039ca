package pycfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// marshal test helpers: build byte streams the way marshal.c writes them.

func mInt(v int32) []byte {
	buf := []byte{'i'}
	return binary.LittleEndian.AppendUint32(buf, uint32(v))
}

func mString(s string) []byte {
	buf := []byte{'s'}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func mInterned(s string) []byte {
	buf := []byte{'t'}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func mTuple(items ...[]byte) []byte {
	buf := []byte{'('}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(items)))
	for _, item := range items {
		buf = append(buf, item...)
	}
	return buf
}

func mNone() []byte { return []byte{'N'} }

// mCode27 marshals a minimal 2.7-layout code object.
func mCode27(argcount int, bytecode []byte, consts, names, varnames []byte, flags int) []byte {
	buf := []byte{'c'}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(argcount))
	buf = binary.LittleEndian.AppendUint32(buf, 0) // nlocals
	buf = binary.LittleEndian.AppendUint32(buf, 4) // stacksize
	buf = binary.LittleEndian.AppendUint32(buf, uint32(flags))
	buf = append(buf, mString(string(bytecode))...)
	buf = append(buf, consts...)
	buf = append(buf, names...)
	buf = append(buf, varnames...)
	buf = append(buf, mTuple()...) // freevars
	buf = append(buf, mTuple()...) // cellvars
	buf = append(buf, mString("test.py")...)
	buf = append(buf, mString("<module>")...)
	buf = binary.LittleEndian.AppendUint32(buf, 1) // firstlineno
	buf = append(buf, mString("")...)              // lnotab
	return buf
}

func pyc27(body []byte) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, 0x0A0DF303) // 2.7 magic
	buf = binary.LittleEndian.AppendUint32(buf, 0)          // mtime
	return append(buf, body...)
}

func TestLoadMinimalModule(t *testing.T) {
	code := mCode27(0,
		[]byte{100, 0, 0, 83}, // LOAD_CONST 0; RETURN_VALUE
		mTuple(mNone()),
		mTuple(),
		mTuple(),
		0)
	mod, err := Load(bytes.NewReader(pyc27(code)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if mod.Major != 2 || mod.Minor != 7 {
		t.Errorf("version = %d.%d, want 2.7", mod.Major, mod.Minor)
	}
	if mod.Code == nil {
		t.Fatal("no top-level code object")
	}
	if got := mod.Code.StackSize(); got != 4 {
		t.Errorf("StackSize() = %d, want 4", got)
	}
	if got := len(mod.Code.Bytes()); got != 4 {
		t.Errorf("len(Bytes()) = %d, want 4", got)
	}
	if got := mod.Code.Const(0); got == nil || got.Type() != TypeNone {
		t.Errorf("Const(0) = %v, want None", got)
	}
}

func TestLoadBadMagic(t *testing.T) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, 0xDEADBEEF)
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	_, err := Load(bytes.NewReader(buf))
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("Load = %v, want ErrBadMagic", err)
	}
}

func TestLoadTruncated(t *testing.T) {
	code := mCode27(0, []byte{100, 0, 0, 83}, mTuple(mNone()), mTuple(), mTuple(), 0)
	full := pyc27(code)
	_, err := Load(bytes.NewReader(full[:len(full)-6]))
	if err == nil {
		t.Fatal("Load of truncated stream succeeded")
	}
}

func TestMarshalScalars(t *testing.T) {
	code := mCode27(0, []byte{83},
		mTuple(mInt(42), mString("hi"), mTuple(mInt(1))),
		mTuple(), mTuple(), 0)
	mod, err := Load(bytes.NewReader(pyc27(code)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	consts := mod.Code.Consts.Values
	if len(consts) != 3 {
		t.Fatalf("len(consts) = %d, want 3", len(consts))
	}
	if v, ok := consts[0].(Int); !ok || v.Value != 42 {
		t.Errorf("consts[0] = %#v, want Int 42", consts[0])
	}
	if v, ok := consts[1].(*String); !ok || v.Value != "hi" {
		t.Errorf("consts[1] = %#v, want String \"hi\"", consts[1])
	}
	if v, ok := consts[2].(*Tuple); !ok || len(v.Values) != 1 {
		t.Errorf("consts[2] = %#v, want 1-tuple", consts[2])
	}
}

func TestStringRefInterning(t *testing.T) {
	// An interned string followed by a ref back to it.
	ref := []byte{'R'}
	ref = binary.LittleEndian.AppendUint32(ref, 0)
	code := mCode27(0, []byte{83},
		mTuple(mInterned("shared"), ref),
		mTuple(), mTuple(), 0)
	mod, err := Load(bytes.NewReader(pyc27(code)))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	consts := mod.Code.Consts.Values
	if consts[0] != consts[1] {
		t.Error("string ref did not resolve to the interned instance")
	}
	if got := StringValue(consts[1]); got != "shared" {
		t.Errorf("ref value = %q, want \"shared\"", got)
	}
}

func TestVarNameFallback(t *testing.T) {
	c := &Code{
		Names: &Tuple{Values: []Object{NewInterned("n0"), NewInterned("n1")}},
		mod:   &Module{Major: 1, Minor: 2},
	}
	if got := c.VarName(1); got != "n1" {
		t.Errorf("1.2 VarName(1) = %q, want fallback to Name", got)
	}
}

func TestMarkGlobalOrdering(t *testing.T) {
	c := &Code{}
	c.MarkGlobal("b")
	c.MarkGlobal("a")
	c.MarkGlobal("b")
	got := c.Globals()
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Globals() = %v, want [b a]", got)
	}
}

func TestAtLeast(t *testing.T) {
	mod := &Module{Major: 2, Minor: 5}
	tests := []struct {
		major, minor int
		want         bool
	}{
		{2, 5, true},
		{2, 4, true},
		{2, 6, false},
		{1, 9, true},
		{3, 0, false},
	}
	for _, tt := range tests {
		if got := mod.AtLeast(tt.major, tt.minor); got != tt.want {
			t.Errorf("2.5 AtLeast(%d, %d) = %v, want %v", tt.major, tt.minor, got, tt.want)
		}
	}
}
