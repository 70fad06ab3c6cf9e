package cfg

import (
	"testing"

	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

func TestStackStatePushPopPeek(t *testing.T) {
	var s StackState
	if _, ok := s.Pop(); ok {
		t.Fatal("Pop on empty stack should report false")
	}
	s.Push(tstype.I32)
	s.Push(tstype.F64)
	if top, ok := s.Peek(); !ok || top != tstype.F64 {
		t.Fatalf("Peek = (%v, %v), want (F64, true)", top, ok)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	top, ok := s.Pop()
	if !ok || top != tstype.F64 {
		t.Fatalf("Pop = (%v, %v), want (F64, true)", top, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("Len after pop = %d, want 1", s.Len())
	}
}

func TestStackStateCloneIsIndependent(t *testing.T) {
	var s StackState
	s.Push(tstype.I32)
	clone := s.Clone()
	clone.Push(tstype.F64)
	if s.Len() != 1 {
		t.Errorf("mutating the clone affected the original: Len = %d, want 1", s.Len())
	}
	if clone.Len() != 2 {
		t.Errorf("clone.Len() = %d, want 2", clone.Len())
	}
}

func TestStackStateEqual(t *testing.T) {
	var a, b StackState
	a.Push(tstype.I32)
	a.Push(tstype.Bool)
	b.Push(tstype.I32)
	b.Push(tstype.Bool)
	if !a.Equal(b) {
		t.Error("identical stacks should be Equal")
	}
	b.Push(tstype.F32)
	if a.Equal(b) {
		t.Error("stacks of different length should not be Equal")
	}
}
