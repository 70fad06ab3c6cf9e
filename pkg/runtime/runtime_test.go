package runtime

import (
	"strings"
	"testing"

	"github.com/raymyers/tinysharp-go/pkg/ops"
	"github.com/raymyers/tinysharp-go/pkg/path"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
	"github.com/raymyers/tinysharp-go/pkg/verify"
)

func addSignature() (sig.Signature, path.MethodPath) {
	s := sig.New([]tstype.Type{tstype.I32, tstype.I32}, tstype.I32)
	return s, path.NewMethodPath("Demo", "Demo.Math", "Calc", "Add", s)
}

func TestInitSingletonGuard(t *testing.T) {
	rt, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := Init(); err != ErrRuntimeAlreadyPresent {
		t.Fatalf("second Init() = %v, want ErrRuntimeAlreadyPresent", err)
	}
	rt.Close()

	rt2, err := Init()
	if err != nil {
		t.Fatalf("Init after Close: %v", err)
	}
	rt2.Close()
}

func TestAddMethodRegistersAndDeclares(t *testing.T) {
	rt, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer rt.Close()

	s, p := addSignature()
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}

	methods := rt.Methods()
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
	if methods[0].Ident != p.Ident() {
		t.Errorf("Ident = %q, want %q", methods[0].Ident, p.Ident())
	}
	if methods[0].Compiled {
		t.Error("a freshly-added method should not be reported compiled")
	}
}

func TestAddMethodRejectsVerificationFailure(t *testing.T) {
	rt, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer rt.Close()

	s := sig.New(nil, tstype.I32)
	p := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Bad", s)
	kinds := []ops.OpKind{ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err == nil {
		t.Error("expected AddMethod to reject a method that returns with an empty stack where I32 is expected")
	}
}

func TestCompileAllCompilesEveryRegisteredMethod(t *testing.T) {
	rt, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer rt.Close()

	s, p := addSignature()
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if err := rt.CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	methods := rt.Methods()
	if !methods[0].Compiled {
		t.Error("method should be marked compiled after CompileAll")
	}
	if _, ok := rt.FunctionAddress(p); !ok {
		t.Error("FunctionAddress should resolve after CompileAll")
	}
}

func TestMethodLookupByPath(t *testing.T) {
	rt, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer rt.Close()

	s, p := addSignature()
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}

	fn, gotSig, ok := rt.Function(p)
	if !ok {
		t.Fatal("Function should find the just-added method")
	}
	if fn.Name() != p.Ident() {
		t.Errorf("fn.Name() = %q, want %q", fn.Name(), p.Ident())
	}
	if !gotSig.Equal(s) {
		t.Errorf("signature = %v, want %v", gotSig, s)
	}

	other := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Missing", s)
	if _, _, ok := rt.Function(other); ok {
		t.Error("Function should not find an unregistered method")
	}
}

func TestFunctionAddressBeforeCompileAllIsAbsent(t *testing.T) {
	rt, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer rt.Close()

	s, p := addSignature()
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if _, ok := rt.FunctionAddress(p); ok {
		t.Error("FunctionAddress should not resolve before CompileAll")
	}
}

func TestModuleStringContainsDeclaredFunction(t *testing.T) {
	rt, err := Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer rt.Close()

	s, p := addSignature()
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if !strings.Contains(rt.Module().String(), p.Ident()) {
		t.Error("module dump should mention the declared function's mangled identifier")
	}
}

func TestAddMethodLogsDivergenceToSuppliedLogger(t *testing.T) {
	var buf strings.Builder
	rt, err := InitWithLogger(verify.Logger{Out: &buf})
	if err != nil {
		t.Fatalf("InitWithLogger: %v", err)
	}
	defer rt.Close()

	s := sig.New([]tstype.Type{tstype.I32}, tstype.Void)
	p := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Diverge", s)
	kinds := []ops.OpKind{
		ops.LdArg{Index: 0},
		ops.LdcI32{Value: 0},
		ops.BGE{Target: 5},
		ops.LdArg{Index: 0},
		ops.Nop{},
		ops.Pop{},
		ops.Ret{},
	}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if !strings.Contains(buf.String(), "diverging") {
		t.Errorf("expected logger to record join-point divergence, got %q", buf.String())
	}
}
