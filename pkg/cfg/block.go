package cfg

import "github.com/raymyers/tinysharp-go/pkg/ops"

// EdgeKind is the outgoing edge of a basic block.
type EdgeKind int

const (
	// Return: the block ends in Ret; there is no successor.
	Return EdgeKind = iota
	// Pass: the block falls through to the next block unconditionally
	// (its last op is neither Ret nor a branch).
	Pass
	// Branch: the block ends in a conditional or unconditional branch.
	// Fallthrough is the block-end index (only meaningful for
	// conditional branches; an unconditional Br never enters it).
	Branch
)

func (k EdgeKind) String() string {
	switch k {
	case Return:
		return "return"
	case Pass:
		return "pass"
	case Branch:
		return "branch"
	default:
		return "unknown"
	}
}

// OpBlock is a basic block: a starting instruction index, a contiguous
// run of ops, an outgoing edge, and (once verified) the abstract stack
// observed at block exit.
//
// Fallthrough is stored explicitly on the block rather than derived from
// emission order, so block emission order is irrelevant. pkg/lower
// consults this field instead of assuming "next native block in list
// order".
type OpBlock struct {
	StartIndex   ops.InstructionIndex
	Ops          []ops.Op
	Edge         EdgeKind
	Fallthrough  ops.InstructionIndex // valid when Edge == Branch
	BranchTarget ops.InstructionIndex // valid when Edge == Branch
	state        *StackState          // resolved exit state, nil until verified
}

// EndIndex is the absolute instruction index one past the block's last
// op — the index a Pass edge falls through to.
func (b *OpBlock) EndIndex() ops.InstructionIndex {
	return b.StartIndex + ops.InstructionIndex(len(b.Ops))
}

// State returns the block's resolved exit stack state, or (zero, false)
// if the block has not been resolved yet.
func (b *OpBlock) State() (StackState, bool) {
	if b.state == nil {
		return StackState{}, false
	}
	return *b.state, true
}

// SetState records the block's resolved exit stack state. Called exactly
// once per block by pkg/verify.
func (b *OpBlock) SetState(s StackState) {
	b.state = &s
}

// Resolved reports whether SetState has been called.
func (b *OpBlock) Resolved() bool {
	return b.state != nil
}
