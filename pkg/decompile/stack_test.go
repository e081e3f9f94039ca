package decompile

import (
	"testing"

	"github.com/zzkshare/pycdc/pkg/ast"
)

func TestStackPushPop(t *testing.T) {
	s := NewStack(4)
	s.Push(ast.NewName("a"))
	s.Push(ast.NewName("b"))

	if s.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", s.Depth())
	}
	if got := s.Top().(*ast.Name).Ident; got != "b" {
		t.Errorf("Top() = %q, want b", got)
	}
	if got := s.Pop().(*ast.Name).Ident; got != "b" {
		t.Errorf("Pop() = %q, want b", got)
	}
	if got := s.Pop().(*ast.Name).Ident; got != "a" {
		t.Errorf("Pop() = %q, want a", got)
	}
}

func TestStackUnderflowReturnsNil(t *testing.T) {
	s := NewStack(4)
	if s.Pop() != nil {
		t.Error("Pop on empty stack should return nil")
	}
	if s.Top() != nil {
		t.Error("Top on empty stack should return nil")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := NewStack(4)
	s.Push(ast.NewName("a"))
	snap := s.Snapshot()

	s.Push(ast.NewName("b"))
	s.Push(ast.NewName("c"))
	if snap.Depth() != 1 {
		t.Errorf("snapshot depth changed to %d", snap.Depth())
	}

	s.Restore(snap)
	if s.Depth() != 1 {
		t.Fatalf("restored depth = %d, want 1", s.Depth())
	}
	if got := s.Top().(*ast.Name).Ident; got != "a" {
		t.Errorf("restored top = %q, want a", got)
	}
}

func TestHistoryLIFO(t *testing.T) {
	s := NewStack(4)
	var h History

	s.Push(ast.NewName("one"))
	h.Push(s)
	s.Push(ast.NewName("two"))
	h.Push(s)

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	if got := h.Top().Depth(); got != 2 {
		t.Errorf("top snapshot depth = %d, want 2", got)
	}
	h.Pop()
	if got := h.Top().Depth(); got != 1 {
		t.Errorf("after pop, top snapshot depth = %d, want 1", got)
	}
	h.Pop()
	if h.Top() != nil {
		t.Error("exhausted history should report nil top")
	}
	h.Pop() // does not panic on empty
}

func TestHistoryPushSnapshot(t *testing.T) {
	s := NewStack(4)
	s.Push(ast.NewName("x"))
	snap := s.Snapshot()

	var h History
	h.PushSnapshot(snap)
	if h.Len() != 1 || h.Top() != snap {
		t.Error("PushSnapshot must store the snapshot as-is")
	}
	h.PushSnapshot(nil)
	if h.Len() != 1 {
		t.Error("PushSnapshot(nil) must be a no-op")
	}
}
