package ast

import (
	"testing"

	"github.com/zzkshare/pycdc/pkg/pycfile"
)

func TestBinOpStrings(t *testing.T) {
	tests := []struct {
		op   BinOp
		want string
	}{
		{BinAttr, "."},
		{BinPower, " ** "},
		{BinMultiply, " * "},
		{BinAdd, " + "},
		{BinLogAnd, " and "},
		{BinLogOr, " or "},
		{BinIPAdd, " += "},
		{BinIPFloor, " //= "},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("BinOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestBinOpPrecedenceOrder(t *testing.T) {
	// The enum must order tighter-binding operators first; the printer
	// compares ranks numerically.
	ordered := []BinOp{
		BinAttr, BinPower, BinMultiply, BinDivide, BinFloor, BinModulo,
		BinAdd, BinSubtract, BinLShift, BinRShift, BinAnd, BinXor, BinOr,
		BinLogAnd, BinLogOr,
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1] >= ordered[i] {
			t.Errorf("operator rank order broken between %q and %q",
				ordered[i-1].String(), ordered[i].String())
		}
	}
}

func TestIsInplace(t *testing.T) {
	if NewBinary(nil, nil, BinAdd).IsInplace() {
		t.Error("BinAdd reported as inplace")
	}
	if !NewBinary(nil, nil, BinIPAdd).IsInplace() {
		t.Error("BinIPAdd not reported as inplace")
	}
	if !NewBinary(nil, nil, BinIPFloor).IsInplace() {
		t.Error("BinIPFloor not reported as inplace")
	}
}

func TestCompareOpStrings(t *testing.T) {
	cmp := NewCompare(nil, nil, CmpException)
	if got := cmp.OpString(); got != " exception match " {
		t.Errorf("CmpException string = %q", got)
	}
	if got := NewCompare(nil, nil, CmpNotIn).OpString(); got != " not in " {
		t.Errorf("CmpNotIn string = %q", got)
	}
}

func TestNodeKindNil(t *testing.T) {
	if got := NodeKind(nil); got != KindInvalid {
		t.Errorf("NodeKind(nil) = %d, want KindInvalid", got)
	}
	if got := NodeKind(NewName("x")); got != KindName {
		t.Errorf("NodeKind(Name) = %d, want KindName", got)
	}
}

func TestBlockInitState(t *testing.T) {
	blk := NewCondBlock(BlockIf, 10, NewName("c"), false)
	if blk.Inited() != Uninited {
		t.Error("new cond block should start uninited")
	}
	blk.Init(PrePopped)
	if blk.Inited() != PrePopped {
		t.Error("Init(PrePopped) not recorded")
	}
}

func TestIterBlockCondOrdering(t *testing.T) {
	it := NewIterBlock(0, NewName("seq"))
	// Clauses fold innermost-first; AddCond must restore source order.
	it.AddCond(NewName("inner"), false)
	it.AddCond(NewName("outer"), true)
	if len(it.Conds) != 2 {
		t.Fatalf("len(Conds) = %d, want 2", len(it.Conds))
	}
	if it.Conds[0].Cond.(*Name).Ident != "outer" || !it.Conds[0].Negative {
		t.Error("outer clause not first after prepend")
	}
	if it.Conds[1].Cond.(*Name).Ident != "inner" {
		t.Error("inner clause not last after prepend")
	}
}

func TestContainerOffsets(t *testing.T) {
	cont := NewContainerBlock(0, 42)
	if !cont.HasExcept() || cont.HasFinally() {
		t.Error("except-only container misreports sections")
	}
	cont = NewContainerBlock(99, 0)
	if cont.HasExcept() || !cont.HasFinally() {
		t.Error("finally-only container misreports sections")
	}
}

func TestWireRoundTrip(t *testing.T) {
	tree := &NodeList{Nodes: []Node{
		&Store{
			Src:  NewBinary(NewName("a"), &Object{Obj: pycfile.Int{Value: 2}}, BinAdd),
			Dest: NewName("x"),
		},
	}}
	data, err := MarshalAST(tree)
	if err != nil {
		t.Fatalf("MarshalAST failed: %v", err)
	}
	dump, err := UnmarshalDump(data)
	if err != nil {
		t.Fatalf("UnmarshalDump failed: %v", err)
	}
	if dump.Kind != "body" || len(dump.Children) != 1 {
		t.Fatalf("dump root = %+v, want body with one child", dump)
	}
	store := dump.Children[0]
	if store.Kind != "store" || len(store.Children) != 2 {
		t.Fatalf("store dump = %+v", store)
	}
	if store.Children[0].Kind != "binary" || store.Children[0].Label != " + " {
		t.Errorf("binary dump = %+v", store.Children[0])
	}
	if store.Children[1].Kind != "name" || store.Children[1].Label != "x" {
		t.Errorf("dest dump = %+v", store.Children[1])
	}
}

func TestWireDeterministic(t *testing.T) {
	tree := &NodeList{Nodes: []Node{NewName("x")}}
	a, err := MarshalAST(tree)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalAST(tree)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("canonical encoding produced different bytes for the same tree")
	}
}
