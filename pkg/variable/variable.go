// Package variable wraps the LLVM SSA values produced while lowering a
// method with the signedness discriminant the IR needs but LLVM's own
// integer type does not carry. It is a direct port
// of the original implementation's jit::compile_variable::Variable enum
// from inkwell's IntValue/FloatValue/PointerValue to go-llvm's single
// llvm.Value, generalized with an explicit Kind tag in place of Rust's
// enum variants.
package variable

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

// Kind discriminates what a Variable's underlying llvm.Value means,
// since go-llvm's llvm.Value itself does not distinguish a signed
// integer from an unsigned one.
type Kind int

const (
	Int Kind = iota
	UInt
	Float
	Pointer
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Float:
		return "float"
	case Pointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// Variable is a typed SSA value: the raw llvm.Value plus the
// signedness/float/pointer discriminant lowering needs to pick the right
// LLVM instruction (signed vs. unsigned divide, int vs. float add, ...).
type Variable struct {
	Kind  Kind
	Value llvm.Value
}

// KindOf maps a tstype.Type onto the Variable discriminant it lowers to.
func KindOf(t tstype.Type) (Kind, error) {
	switch tstype.SignednessOf(t) {
	case tstype.Signed:
		return Int, nil
	case tstype.Unsigned:
		return UInt, nil
	case tstype.Floating:
		return Float, nil
	case tstype.Pointerish:
		return Pointer, nil
	default:
		return 0, fmt.Errorf("variable: no lowering kind for type %s", t)
	}
}

// Of builds a Variable by resolving t's Kind.
func Of(t tstype.Type, v llvm.Value) (Variable, error) {
	k, err := KindOf(t)
	if err != nil {
		return Variable{}, err
	}
	return Variable{Kind: k, Value: v}, nil
}

// WithValue returns a copy of v carrying a different underlying
// llvm.Value but the same Kind, mirroring the original's matching_int
// (used after building a new instruction from an existing Variable's
// operands).
func (v Variable) WithValue(nv llvm.Value) Variable {
	return Variable{Kind: v.Kind, Value: nv}
}

// IsInt reports whether v holds a signed or unsigned integer (the two
// kinds LLVM itself represents identically).
func (v Variable) IsInt() bool {
	return v.Kind == Int || v.Kind == UInt
}
