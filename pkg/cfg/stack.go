// Package cfg partitions a flat instruction sequence into the
// basic-block control-flow graph the verifier (pkg/verify) and the
// lowering engine (pkg/lower) both walk. The shapes
// here (a node-indexed graph built by one pass, consumed by a recursive
// walk in another) mirror the teacher's pkg/rtl + pkg/rtlgen/cfg.go CFG
// builder, generalized from a register-based 3-address CFG to a
// stack-machine one.
package cfg

import "github.com/raymyers/tinysharp-go/pkg/tstype"

// StackState is the verifier's abstract operand stack: an ordered
// sequence of types, not values. The zero value is the empty stack,
// matching the "constructed empty at method entry" lifecycle.
type StackState struct {
	types []tstype.Type
}

// Push appends t to the top of the stack.
func (s *StackState) Push(t tstype.Type) {
	s.types = append(s.types, t)
}

// Pop removes and returns the top type. The second return value is false
// if the stack was empty.
func (s *StackState) Pop() (tstype.Type, bool) {
	if len(s.types) == 0 {
		return 0, false
	}
	n := len(s.types) - 1
	t := s.types[n]
	s.types = s.types[:n]
	return t, true
}

// Peek returns the top type without removing it.
func (s *StackState) Peek() (tstype.Type, bool) {
	if len(s.types) == 0 {
		return 0, false
	}
	return s.types[len(s.types)-1], true
}

// Len returns the number of values currently on the stack.
func (s StackState) Len() int { return len(s.types) }

// Clone returns an independent copy of s, used when a block's exit state
// is handed to more than one successor: resolving a Branch edge walks
// both its fallthrough and target successors from the same exit state.
func (s StackState) Clone() StackState {
	cp := make([]tstype.Type, len(s.types))
	copy(cp, s.types)
	return StackState{types: cp}
}

// Equal reports whether two stack states hold the same types in the same
// order, used to detect join-point divergence.
func (s StackState) Equal(o StackState) bool {
	if len(s.types) != len(o.types) {
		return false
	}
	for i, t := range s.types {
		if t != o.types[i] {
			return false
		}
	}
	return true
}

// Types returns the stack contents, bottom first. Callers must not
// mutate the returned slice.
func (s StackState) Types() []tstype.Type { return s.types }
