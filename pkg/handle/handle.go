// Package handle provides MethodRef, a typed handle onto a compiled
// method that can be called from Go. It is the real implementation of
// what the original left as MethodRef::call's todo!(): go-llvm exposes
// ExecutionEngine.RunFunction over llvm.GenericValue, which this package
// uses to marshal Go argument values in and the return value back out,
// instead of reconstructing an unsafe extern "C" fn pointer by hand.
//
// The original parameterizes MethodRef over an argument tuple type and a
// return type (Rust trait bounds AsArgTypeList / GetType). Go has no
// tuple types and no variadic generics, so MethodRef here is generic
// only over Ret; arguments are passed as []any and marshaled against the
// method's declared signature by reflection, checked at Call time
// instead of compile time.
package handle

import (
	"fmt"
	"reflect"

	"tinygo.org/x/go-llvm"

	"github.com/raymyers/tinysharp-go/pkg/path"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

// Source is the subset of pkg/runtime.Runtime's surface MethodRef needs:
// looking up a compiled method's LLVM function by mangled path, and the
// execution engine to run it with.
type Source interface {
	Function(p path.MethodPath) (llvm.Value, sig.Signature, bool)
	Engine() llvm.ExecutionEngine
}

// MethodRefError is returned by Resolve when the named method was never
// added to the runtime, or has not been compiled yet.
type MethodRefError struct {
	Path path.MethodPath
}

func (e *MethodRefError) Error() string {
	return fmt.Sprintf("no compiled method at %s", e.Path.Ident())
}

// ArgCountMismatchError is returned by Call when the number of arguments
// passed does not equal the method's declared arity.
type ArgCountMismatchError struct {
	Expected, Got int
}

func (e *ArgCountMismatchError) Error() string {
	return fmt.Sprintf("call expects %d arguments, got %d", e.Expected, e.Got)
}

// ArgTypeMismatchError is returned by Call when a Go argument's kind
// cannot be marshaled to the method's declared type for that argument.
type ArgTypeMismatchError struct {
	Index int
	Want  tstype.Type
	Got   reflect.Kind
}

func (e *ArgTypeMismatchError) Error() string {
	return fmt.Sprintf("argument %d: cannot marshal a Go %s as %s", e.Index, e.Got, e.Want)
}

// MethodRef is a typed handle onto a compiled method; Ret is the Go type
// its return value unmarshals to (e.g. int32, float64).
type MethodRef[Ret any] struct {
	source    Source
	fn        llvm.Value
	signature sig.Signature
}

// Resolve looks up the compiled method at p in source and builds a
// MethodRef for it.
func Resolve[Ret any](source Source, p path.MethodPath) (*MethodRef[Ret], error) {
	fn, signature, ok := source.Function(p)
	if !ok || fn.IsDeclaration() {
		return nil, &MethodRefError{Path: p}
	}
	return &MethodRef[Ret]{source: source, fn: fn, signature: signature}, nil
}

// Call invokes the method through the runtime's JIT execution engine,
// marshaling args against the method's declared signature and
// unmarshaling the result into Ret.
func (m *MethodRef[Ret]) Call(ctx llvm.Context, args ...any) (Ret, error) {
	var zero Ret
	want := m.signature.Args
	if len(args) != len(want) {
		return zero, &ArgCountMismatchError{Expected: len(want), Got: len(args)}
	}
	gvArgs := make([]llvm.GenericValue, len(args))
	for i, a := range args {
		gv, err := toGenericValue(ctx, want[i], a)
		if err != nil {
			if mismatch, ok := err.(*ArgTypeMismatchError); ok {
				mismatch.Index = i
			}
			return zero, err
		}
		gvArgs[i] = gv
	}

	result := m.source.Engine().RunFunction(m.fn, gvArgs)
	return fromGenericValue[Ret](m.signature.Ret, result)
}

func toGenericValue(ctx llvm.Context, t tstype.Type, v any) (llvm.GenericValue, error) {
	rv := reflect.ValueOf(v)
	switch tstype.SignednessOf(t) {
	case tstype.Signed:
		if rv.Kind() < reflect.Int || rv.Kind() > reflect.Int64 {
			return llvm.GenericValue{}, &ArgTypeMismatchError{Want: t, Got: rv.Kind()}
		}
		llvmType, err := llvmIntType(ctx, t)
		if err != nil {
			return llvm.GenericValue{}, err
		}
		return llvm.NewGenericValueFromInt(llvmType, uint64(rv.Int()), true), nil
	case tstype.Unsigned:
		if rv.Kind() < reflect.Uint || rv.Kind() > reflect.Uint64 {
			return llvm.GenericValue{}, &ArgTypeMismatchError{Want: t, Got: rv.Kind()}
		}
		llvmType, err := llvmIntType(ctx, t)
		if err != nil {
			return llvm.GenericValue{}, err
		}
		return llvm.NewGenericValueFromInt(llvmType, rv.Uint(), false), nil
	case tstype.Floating:
		if rv.Kind() != reflect.Float32 && rv.Kind() != reflect.Float64 {
			return llvm.GenericValue{}, &ArgTypeMismatchError{Want: t, Got: rv.Kind()}
		}
		llvmType := ctx.DoubleType()
		if t == tstype.F32 {
			llvmType = ctx.FloatType()
		}
		return llvm.NewGenericValueFromFloat(llvmType, rv.Float()), nil
	default:
		return llvm.GenericValue{}, fmt.Errorf("handle: cannot marshal argument of type %s", t)
	}
}

func llvmIntType(ctx llvm.Context, t tstype.Type) (llvm.Type, error) {
	switch tstype.BitWidth(t) {
	case 8:
		return ctx.Int8Type(), nil
	case 16:
		return ctx.Int16Type(), nil
	case 32:
		return ctx.Int32Type(), nil
	case 64:
		return ctx.Int64Type(), nil
	default:
		return llvm.Type{}, fmt.Errorf("handle: %s has no integer bit width", t)
	}
}

func fromGenericValue[Ret any](t tstype.Type, gv llvm.GenericValue) (Ret, error) {
	var zero Ret
	var out any
	switch tstype.SignednessOf(t) {
	case tstype.Signed:
		out = coerceSignedInt(zero, int64(gv.Int(true)))
	case tstype.Unsigned:
		out = coerceUnsignedInt(zero, gv.Int(false))
	case tstype.Floating:
		llvmType := llvm.GlobalContext().DoubleType()
		if t == tstype.F32 {
			llvmType = llvm.GlobalContext().FloatType()
		}
		out = coerceFloat(zero, gv.Float(llvmType))
	default:
		return zero, fmt.Errorf("handle: cannot unmarshal return type %s", t)
	}
	ret, ok := out.(Ret)
	if !ok {
		return zero, fmt.Errorf("handle: return value %v of type %T is not assignable to %T", out, out, zero)
	}
	return ret, nil
}

func coerceSignedInt(zero any, v int64) any {
	switch zero.(type) {
	case int8:
		return int8(v)
	case int16:
		return int16(v)
	case int32:
		return int32(v)
	case int64:
		return v
	case int:
		return int(v)
	default:
		return v
	}
}

func coerceFloat(zero any, v float64) any {
	switch zero.(type) {
	case float32:
		return float32(v)
	case float64:
		return v
	default:
		return v
	}
}

func coerceUnsignedInt(zero any, v uint64) any {
	switch zero.(type) {
	case uint8:
		return uint8(v)
	case uint16:
		return uint16(v)
	case uint32:
		return uint32(v)
	case uint64:
		return v
	case uint:
		return uint(v)
	default:
		return v
	}
}
