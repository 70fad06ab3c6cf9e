// Package ops defines the instruction set of the stack-oriented IR:
// OpKind, the tagged enum of all supported instructions, and Op, an
// instruction carrying an OpKind plus the type resolved for it by
// pkg/verify. Kinds follow the teacher's marker-interface idiom
// (pkg/rtl.Instruction in the teacher repo), generalized from a
// register-CFG instruction set to a stack-machine one.
package ops

import (
	"github.com/raymyers/tinysharp-go/pkg/path"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

// InstructionIndex is an absolute index into a method's flat op sequence.
type InstructionIndex int

// OpKind is the interface every concrete instruction kind implements.
type OpKind interface {
	implOpKind()
	// BranchTarget returns the absolute instruction index this op may
	// branch to, and true, or (0, false) if the op never branches.
	BranchTarget() (InstructionIndex, bool)
}

// --- Arithmetic binary ---

type Add struct{}
type Sub struct{}
type Mul struct{}
type Div struct{}
type Rem struct{}

// --- Bitwise binary ---

type And struct{}
type Or struct{}
type XOr struct{}
type Shl struct{}
type Shr struct{}

// --- Unary ---

type Neg struct{}
type Not struct{}

// --- Stack ---

type Dup struct{}
type Pop struct{}

// --- Constants ---

type LdcI32 struct{ Value int32 }
type LdNull struct{}

// --- Argument / local access ---

type LdArg struct{ Index int }
type LdLoc struct{ Index int }
type StLoc struct{ Index int }

// --- Conversions ---

type ConvI8 struct{}
type ConvU8 struct{}
type ConvI16 struct{}
type ConvU16 struct{}
type ConvI32 struct{}
type ConvU32 struct{}
type ConvI64 struct{}
type ConvU64 struct{}

// --- Control flow ---

type Br struct{ Target InstructionIndex }
type BGE struct{ Target InstructionIndex }
type BLE struct{ Target InstructionIndex }
type BLT struct{ Target InstructionIndex }
type BGT struct{ Target InstructionIndex }
type BEQ struct{ Target InstructionIndex }
type BNE struct{ Target InstructionIndex }

// --- Call / return / nop ---

type Call struct {
	Path      path.MethodPath
	Signature sig.Signature
}
type Ret struct{}
type Nop struct{}

func (Add) implOpKind()    {}
func (Sub) implOpKind()    {}
func (Mul) implOpKind()    {}
func (Div) implOpKind()    {}
func (Rem) implOpKind()    {}
func (And) implOpKind()    {}
func (Or) implOpKind()     {}
func (XOr) implOpKind()    {}
func (Shl) implOpKind()    {}
func (Shr) implOpKind()    {}
func (Neg) implOpKind()    {}
func (Not) implOpKind()    {}
func (Dup) implOpKind()    {}
func (Pop) implOpKind()    {}
func (LdcI32) implOpKind() {}
func (LdNull) implOpKind() {}
func (LdArg) implOpKind()  {}
func (LdLoc) implOpKind()  {}
func (StLoc) implOpKind()  {}
func (ConvI8) implOpKind()  {}
func (ConvU8) implOpKind()  {}
func (ConvI16) implOpKind() {}
func (ConvU16) implOpKind() {}
func (ConvI32) implOpKind() {}
func (ConvU32) implOpKind() {}
func (ConvI64) implOpKind() {}
func (ConvU64) implOpKind() {}
func (Br) implOpKind()  {}
func (BGE) implOpKind() {}
func (BLE) implOpKind() {}
func (BLT) implOpKind() {}
func (BGT) implOpKind() {}
func (BEQ) implOpKind() {}
func (BNE) implOpKind() {}
func (Call) implOpKind() {}
func (Ret) implOpKind()  {}
func (Nop) implOpKind()  {}

func noTarget() (InstructionIndex, bool) { return 0, false }

func (Add) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Sub) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Mul) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Div) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Rem) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (And) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Or) BranchTarget() (InstructionIndex, bool)     { return noTarget() }
func (XOr) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Shl) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Shr) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Neg) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Not) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Dup) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Pop) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (LdcI32) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (LdNull) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (LdArg) BranchTarget() (InstructionIndex, bool)  { return noTarget() }
func (LdLoc) BranchTarget() (InstructionIndex, bool)  { return noTarget() }
func (StLoc) BranchTarget() (InstructionIndex, bool)  { return noTarget() }
func (ConvI8) BranchTarget() (InstructionIndex, bool)  { return noTarget() }
func (ConvU8) BranchTarget() (InstructionIndex, bool)  { return noTarget() }
func (ConvI16) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (ConvU16) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (ConvI32) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (ConvU32) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (ConvI64) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (ConvU64) BranchTarget() (InstructionIndex, bool) { return noTarget() }
func (Call) BranchTarget() (InstructionIndex, bool)    { return noTarget() }
func (Ret) BranchTarget() (InstructionIndex, bool)     { return noTarget() }
func (Nop) BranchTarget() (InstructionIndex, bool)     { return noTarget() }

func (b Br) BranchTarget() (InstructionIndex, bool)  { return b.Target, true }
func (b BGE) BranchTarget() (InstructionIndex, bool) { return b.Target, true }
func (b BLE) BranchTarget() (InstructionIndex, bool) { return b.Target, true }
func (b BLT) BranchTarget() (InstructionIndex, bool) { return b.Target, true }
func (b BGT) BranchTarget() (InstructionIndex, bool) { return b.Target, true }
func (b BEQ) BranchTarget() (InstructionIndex, bool) { return b.Target, true }
func (b BNE) BranchTarget() (InstructionIndex, bool) { return b.Target, true }

// IsUnconditionalBranch reports whether kind is Br (no fallthrough edge).
func IsUnconditionalBranch(kind OpKind) bool {
	_, ok := kind.(Br)
	return ok
}

// IsConditionalBranch reports whether kind is one of the six comparison
// branches.
func IsConditionalBranch(kind OpKind) bool {
	switch kind.(type) {
	case BGE, BLE, BLT, BGT, BEQ, BNE:
		return true
	default:
		return false
	}
}

// IsReturn reports whether kind is Ret.
func IsReturn(kind OpKind) bool {
	_, ok := kind.(Ret)
	return ok
}

// Condition identifies which of the six comparison branches an op is, so
// pkg/verify and pkg/lower can share one table instead of re-deriving it
// from the Go type each time.
type Condition int

const (
	CondGE Condition = iota
	CondLE
	CondLT
	CondGT
	CondEQ
	CondNE
)

// ConditionOf returns the Condition for a conditional-branch OpKind.
func ConditionOf(kind OpKind) (Condition, bool) {
	switch kind.(type) {
	case BGE:
		return CondGE, true
	case BLE:
		return CondLE, true
	case BLT:
		return CondLT, true
	case BGT:
		return CondGT, true
	case BEQ:
		return CondEQ, true
	case BNE:
		return CondNE, true
	default:
		return 0, false
	}
}

// Op is an instruction carrying an OpKind and the type resolved for it by
// verification. ResolvedType is nil until pkg/verify has processed the
// op; for branches it holds the type compared rather than a pushed value.
type Op struct {
	Kind         OpKind
	ResolvedType *tstype.Type
}

// FromKind builds an unresolved Op wrapping kind.
func FromKind(kind OpKind) Op {
	return Op{Kind: kind}
}

// Resolve records t as kind's resolved type.
func (o *Op) Resolve(t tstype.Type) {
	o.ResolvedType = &t
}
