// Package verify implements the method verifier: per-op abstract stack
// effects and a recursive, memoized walk of the block graph pkg/cfg
// builds. Its shape — a one-pass builder followed by
// a recursive resolver keyed on block index — mirrors the teacher's
// pkg/rtlgen translation pass, generalized from producing RTL
// instructions to resolving operand types.
package verify

import (
	"fmt"
	"io"

	"github.com/raymyers/tinysharp-go/pkg/cfg"
	"github.com/raymyers/tinysharp-go/pkg/ops"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

// Logger receives verifier diagnostics that are not themselves rejection
// errors, such as join-point divergence. A Logger whose Out is nil
// discards them.
type Logger struct {
	Out io.Writer
}

func (l Logger) logf(format string, args ...any) {
	if l.Out == nil {
		return
	}
	fmt.Fprintf(l.Out, format+"\n", args...)
}

// Method is a verified method: its signature, locals, and the resolved
// block graph, ready for pkg/lower to walk.
type Method struct {
	Signature sig.Signature
	Locals    []tstype.Type
	Blocks    []*cfg.OpBlock
}

// Build splits kinds into blocks and verifies them against signature and
// locals, returning the verified Method or the first verification error
// encountered. log receives non-fatal diagnostics (currently: join-point
// divergence).
func Build(signature sig.Signature, locals []tstype.Type, kinds []ops.OpKind, log Logger) (*Method, error) {
	blocks, err := cfg.Split(kinds)
	if err != nil {
		return nil, err
	}
	r := &resolver{
		blocks:     blocks,
		signature:  signature,
		locals:     locals,
		resolved:   make(map[int]bool, len(blocks)),
		entryState: make(map[int]cfg.StackState, len(blocks)),
		log:        log,
	}
	if len(blocks) > 0 {
		if err := r.resolveNode(0, cfg.StackState{}); err != nil {
			return nil, err
		}
	}
	return &Method{Signature: signature, Locals: locals, Blocks: blocks}, nil
}

type resolver struct {
	blocks     []*cfg.OpBlock
	signature  sig.Signature
	locals     []tstype.Type
	resolved   map[int]bool
	entryState map[int]cfg.StackState
	log        Logger
}

// resolveNode resolves the block at blockIdx given the abstract stack
// handed down by its (first) predecessor, then recurses into its
// successors per its edge kind. A block already resolved is not
// revisited; if a later predecessor hands it a different entry state, a
// diagnostic is logged and the recorded entry state wins: join points
// follow a first-predecessor-wins policy.
func (r *resolver) resolveNode(blockIdx int, parentState cfg.StackState) error {
	block := r.blocks[blockIdx]

	if r.resolved[blockIdx] {
		recorded := r.entryState[blockIdx]
		if !recorded.Equal(parentState) {
			r.log.logf(
				"block at instruction %d reached with diverging stack state (recorded entry %v, new entry %v); keeping recorded entry",
				block.StartIndex, recorded.Types(), parentState.Types(),
			)
		}
		return nil
	}
	r.resolved[blockIdx] = true
	r.entryState[blockIdx] = parentState

	state := parentState.Clone()
	for i := range block.Ops {
		absIdx := block.StartIndex + ops.InstructionIndex(i)
		if err := resolveOp(&block.Ops[i], &state, r.signature, r.locals, absIdx); err != nil {
			return err
		}
	}
	block.SetState(state)
	exit, ok := block.State()
	if !ok {
		return &StateUnresolvedNoError{BlockStart: block.StartIndex}
	}

	switch block.Edge {
	case cfg.Return:
		return nil

	case cfg.Pass:
		nextIdx := cfg.IndexOfBlockStartingAt(r.blocks, block.EndIndex())
		if nextIdx < 0 {
			return &MethodFallsOffEndError{BlockStart: block.StartIndex}
		}
		return r.resolveNode(nextIdx, exit)

	case cfg.Branch:
		lastKind := block.Ops[len(block.Ops)-1].Kind
		targetIdx := cfg.IndexOfBlockStartingAt(r.blocks, block.BranchTarget)
		if ops.IsUnconditionalBranch(lastKind) {
			return r.resolveNode(targetIdx, exit)
		}
		fallIdx := cfg.IndexOfBlockStartingAt(r.blocks, block.Fallthrough)
		if fallIdx < 0 {
			return &MethodFallsOffEndError{BlockStart: block.StartIndex}
		}
		if err := r.resolveNode(fallIdx, exit.Clone()); err != nil {
			return err
		}
		return r.resolveNode(targetIdx, exit)

	default:
		return fmt.Errorf("verify: block at %d has unknown edge kind %v", block.StartIndex, block.Edge)
	}
}

// resolveOp applies op's abstract stack effect, mutating state in place
// and recording the resolved type on op itself.
func resolveOp(op *ops.Op, state *cfg.StackState, signature sig.Signature, locals []tstype.Type, index ops.InstructionIndex) error {
	switch k := op.Kind.(type) {

	case ops.LdArg:
		if k.Index < 0 || k.Index >= len(signature.Args) {
			return &ArgIndexOutOfRangeError{Index: k.Index, NumArgs: len(signature.Args)}
		}
		t := signature.Args[k.Index]
		op.Resolve(t)
		state.Push(t)

	case ops.LdcI32:
		op.Resolve(tstype.I32)
		state.Push(tstype.I32)

	case ops.LdNull:
		op.Resolve(tstype.ObjRef)
		state.Push(tstype.ObjRef)

	case ops.LdLoc:
		if k.Index < 0 || k.Index >= len(locals) {
			return &LocalIndexOutOfRangeError{Index: k.Index, NumLocals: len(locals)}
		}
		t := locals[k.Index]
		op.Resolve(t)
		state.Push(t)

	case ops.StLoc:
		if k.Index < 0 || k.Index >= len(locals) {
			return &LocalIndexOutOfRangeError{Index: k.Index, NumLocals: len(locals)}
		}
		v, ok := state.Pop()
		if !ok {
			return &EmptyStackOnOpError{OpIndex: index}
		}
		if v != locals[k.Index] {
			return &LocalVarTypeMismatchError{StackType: v, LocalType: locals[k.Index], Index: k.Index}
		}
		op.Resolve(v)

	case ops.Add, ops.Sub, ops.Mul, ops.Div, ops.Rem,
		ops.And, ops.Or, ops.XOr, ops.Shl, ops.Shr:
		b, okB := state.Pop()
		a, okA := state.Pop()
		if !okA || !okB {
			return &EmptyStackOnOpError{OpIndex: index}
		}
		res, err := binaryOpType(a, b)
		if err != nil {
			return err
		}
		op.Resolve(res)
		state.Push(res)

	case ops.Neg, ops.Not:
		a, ok := state.Pop()
		if !ok {
			return &EmptyStackOnOpError{OpIndex: index}
		}
		res, err := tstype.ArithPromote(a)
		if err != nil {
			return err
		}
		op.Resolve(res)
		state.Push(res)

	case ops.Dup:
		a, ok := state.Peek()
		if !ok {
			return &EmptyStackOnOpError{OpIndex: index}
		}
		state.Push(a)
		op.Resolve(a)

	case ops.Pop:
		a, ok := state.Pop()
		if !ok {
			return &EmptyStackOnOpError{OpIndex: index}
		}
		op.Resolve(a)

	case ops.ConvI8:
		return convert(op, state, index, tstype.I8)
	case ops.ConvU8:
		return convert(op, state, index, tstype.U8)
	case ops.ConvI16:
		return convert(op, state, index, tstype.I16)
	case ops.ConvU16:
		return convert(op, state, index, tstype.U16)
	case ops.ConvI32:
		return convert(op, state, index, tstype.I32)
	case ops.ConvU32:
		return convert(op, state, index, tstype.U32)
	case ops.ConvI64:
		return convert(op, state, index, tstype.I64)
	case ops.ConvU64:
		return convert(op, state, index, tstype.U64)

	case ops.Br:
		// No stack effect; the branch is unconditional.

	case ops.BGE, ops.BLE, ops.BLT, ops.BGT, ops.BEQ, ops.BNE:
		b, okB := state.Pop()
		a, okA := state.Pop()
		if !okA || !okB {
			return &EmptyStackOnOpError{OpIndex: index}
		}
		res, err := binaryOpType(a, b)
		if err != nil {
			return err
		}
		op.Resolve(res)

	case ops.Call:
		args := k.Signature.Args
		popped := make([]tstype.Type, len(args))
		for i := len(args) - 1; i >= 0; i-- {
			v, ok := state.Pop()
			if !ok {
				return &EmptyStackOnOpError{OpIndex: index}
			}
			popped[i] = v
		}
		for i, want := range args {
			if popped[i] != want {
				return &CallArgTypeMismatchError{Index: i, Expected: want, Got: popped[i]}
			}
		}
		op.Resolve(k.Signature.Ret)
		if k.Signature.Ret != tstype.Void {
			state.Push(k.Signature.Ret)
		}

	case ops.Ret:
		if signature.Ret == tstype.Void {
			if state.Len() != 0 {
				top, _ := state.Peek()
				return &WrongReturnTypeError{Expected: tstype.Void, Got: top}
			}
			op.Resolve(tstype.Void)
			return nil
		}
		v, ok := state.Pop()
		if !ok {
			return &WrongReturnTypeError{Expected: signature.Ret, Got: tstype.Void}
		}
		if v != signature.Ret {
			return &WrongReturnTypeError{Expected: signature.Ret, Got: v}
		}
		op.Resolve(v)

	case ops.Nop:
		op.Resolve(tstype.Void)

	default:
		return fmt.Errorf("verify: unhandled op kind %T at instruction %d", k, index)
	}
	return nil
}

// binaryOpType promotes both operands and requires the promoted types to
// match; it is shared by arithmetic/bitwise binaries and the six
// comparison branches, which apply the same rule to their two popped
// operands without pushing a result.
func binaryOpType(a, b tstype.Type) (tstype.Type, error) {
	pa, err := tstype.ArithPromote(a)
	if err != nil {
		return 0, err
	}
	pb, err := tstype.ArithPromote(b)
	if err != nil {
		return 0, err
	}
	if pa != pb {
		return 0, &OpOnMismatchedTypesError{A: pa, B: pb}
	}
	return pa, nil
}

// convert implements the eight ConvXxx ops: pop one arithmetic operand
// (any signedness or width) and push target unconditionally. A
// non-arithmetic source (ObjRef, Char, Bool, IPtr, UPtr) is rejected with
// the same error ArithPromote reports for it.
func convert(op *ops.Op, state *cfg.StackState, index ops.InstructionIndex, target tstype.Type) error {
	src, ok := state.Pop()
	if !ok {
		return &EmptyStackOnOpError{OpIndex: index}
	}
	if _, err := tstype.ArithPromote(src); err != nil {
		return err
	}
	op.Resolve(target)
	state.Push(target)
	return nil
}
