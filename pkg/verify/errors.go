package verify

import (
	"fmt"

	"github.com/raymyers/tinysharp-go/pkg/ops"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

// WrongReturnTypeError: Ret's operand (or absence of one) does not match
// the signature's declared return type.
type WrongReturnTypeError struct {
	Expected tstype.Type
	Got      tstype.Type
}

func (e *WrongReturnTypeError) Error() string {
	return fmt.Sprintf("wrong return type: expected %s, got %s", e.Expected, e.Got)
}

// OpOnMismatchedTypesError: a binary op's two promoted operand types
// differ.
type OpOnMismatchedTypesError struct {
	A, B tstype.Type
}

func (e *OpOnMismatchedTypesError) Error() string {
	return fmt.Sprintf("operation applied to mismatched types %s and %s", e.A, e.B)
}

// LocalVarTypeMismatchError: StLoc's operand does not match the
// declared type of the local it targets.
type LocalVarTypeMismatchError struct {
	StackType tstype.Type
	LocalType tstype.Type
	Index     int
}

func (e *LocalVarTypeMismatchError) Error() string {
	return fmt.Sprintf("local %d expects %s, got %s on the stack", e.Index, e.LocalType, e.StackType)
}

// StateUnresolvedNoError is a defensive error: a block was marked
// resolved but produced no exit state. Reaching this indicates a bug in
// the verifier itself, not in the method under verification.
type StateUnresolvedNoError struct {
	BlockStart ops.InstructionIndex
}

func (e *StateUnresolvedNoError) Error() string {
	return fmt.Sprintf("block at %d resolved without producing an exit stack state", e.BlockStart)
}

// EmptyStackOnOpError: an op popped from an empty abstract stack.
type EmptyStackOnOpError struct {
	OpIndex ops.InstructionIndex
}

func (e *EmptyStackOnOpError) Error() string {
	return fmt.Sprintf("operation at instruction %d popped an empty stack", e.OpIndex)
}

// LocalIndexOutOfRangeError: LdLoc/StLoc referenced a local that does
// not exist, including any local access when the locals list is empty.
type LocalIndexOutOfRangeError struct {
	Index int
	NumLocals int
}

func (e *LocalIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("local index %d out of range (method has %d locals)", e.Index, e.NumLocals)
}

// ArgIndexOutOfRangeError: LdArg referenced an argument that does not
// exist in the signature.
type ArgIndexOutOfRangeError struct {
	Index int
	NumArgs int
}

func (e *ArgIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("argument index %d out of range (signature has %d arguments)", e.Index, e.NumArgs)
}

// MethodFallsOffEndError: a block's Pass edge, or a conditional branch's
// fallthrough, leads past the last instruction, so there is no successor
// block to reach. The final block must therefore end in Ret or Br.
type MethodFallsOffEndError struct {
	BlockStart ops.InstructionIndex
}

func (e *MethodFallsOffEndError) Error() string {
	return fmt.Sprintf("method falls off the end after block at instruction %d with no terminating op", e.BlockStart)
}

// CallArgTypeMismatchError: a Call argument's stack type does not equal
// the declared argument type. Calls require an exact match; there is no
// implicit widening.
type CallArgTypeMismatchError struct {
	Index            int
	Expected, Got tstype.Type
}

func (e *CallArgTypeMismatchError) Error() string {
	return fmt.Sprintf("call argument %d expects %s, got %s", e.Index, e.Expected, e.Got)
}
