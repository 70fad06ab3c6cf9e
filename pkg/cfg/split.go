package cfg

import (
	"fmt"
	"sort"

	"github.com/raymyers/tinysharp-go/pkg/ops"
)

// MissingBlockAtError is returned when a branch targets an instruction
// index that does not align to a block boundary.
// The loader contract requires branch targets to already point at
// instructions that become block starts after splitting; a target that
// falls inside a block is a malformed method, not something the
// implementer may silently tolerate.
type MissingBlockAtError struct {
	Index ops.InstructionIndex
}

func (e *MissingBlockAtError) Error() string {
	return fmt.Sprintf("branch target %d does not align to a block boundary", e.Index)
}

// Split partitions a flat op-kind sequence into basic blocks. Boundaries
// are {0} ∪ every branch-target index ∪ every index
// immediately after a branch-producing op. It returns MissingBlockAtError
// if any branch target does not land on a resulting block's start index.
func Split(kinds []ops.OpKind) ([]*OpBlock, error) {
	boundarySet := map[ops.InstructionIndex]bool{0: true}
	for i, k := range kinds {
		if target, ok := k.BranchTarget(); ok {
			boundarySet[target] = true
			boundarySet[ops.InstructionIndex(i+1)] = true
		}
	}
	total := ops.InstructionIndex(len(kinds))
	boundaries := make([]ops.InstructionIndex, 0, len(boundarySet)+1)
	for b := range boundarySet {
		if b < total {
			boundaries = append(boundaries, b)
		}
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i] < boundaries[j] })

	blocks := make([]*OpBlock, 0, len(boundaries))
	for i, start := range boundaries {
		end := total
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		blockOps := make([]ops.Op, 0, int(end-start))
		for idx := start; idx < end; idx++ {
			blockOps = append(blockOps, ops.FromKind(kinds[idx]))
		}
		blocks = append(blocks, newBlock(start, blockOps))
	}

	starts := make(map[ops.InstructionIndex]bool, len(blocks))
	for _, b := range blocks {
		starts[b.StartIndex] = true
	}
	for _, k := range kinds {
		if target, ok := k.BranchTarget(); ok {
			if !starts[target] {
				return nil, &MissingBlockAtError{Index: target}
			}
		}
	}
	return blocks, nil
}

func newBlock(start ops.InstructionIndex, blockOps []ops.Op) *OpBlock {
	b := &OpBlock{StartIndex: start, Ops: blockOps}
	if len(blockOps) == 0 {
		b.Edge = Pass
		return b
	}
	last := blockOps[len(blockOps)-1].Kind
	switch {
	case ops.IsReturn(last):
		b.Edge = Return
	case ops.IsUnconditionalBranch(last):
		target, _ := last.BranchTarget()
		b.Edge = Branch
		b.Fallthrough = b.EndIndex() // unreachable fallthrough, recorded but never entered
		b.BranchTarget = target
	case ops.IsConditionalBranch(last):
		target, _ := last.BranchTarget()
		b.Edge = Branch
		b.Fallthrough = b.EndIndex()
		b.BranchTarget = target
	default:
		b.Edge = Pass
	}
	return b
}

// IndexOfBlockStartingAt returns the index into blocks of the block whose
// StartIndex equals at, or -1 if none does. Mirrors the original
// implementation's get_index_of_block_beginig_at.
func IndexOfBlockStartingAt(blocks []*OpBlock, at ops.InstructionIndex) int {
	for i, b := range blocks {
		if b.StartIndex == at {
			return i
		}
	}
	return -1
}
