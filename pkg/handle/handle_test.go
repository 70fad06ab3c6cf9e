package handle

import (
	"testing"

	"tinygo.org/x/go-llvm"

	"github.com/raymyers/tinysharp-go/pkg/ops"
	"github.com/raymyers/tinysharp-go/pkg/path"
	"github.com/raymyers/tinysharp-go/pkg/runtime"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
)

func newAddRuntime(t *testing.T) (*runtime.Runtime, path.MethodPath, sig.Signature) {
	t.Helper()
	rt, err := runtime.Init()
	if err != nil {
		t.Fatalf("runtime.Init: %v", err)
	}
	t.Cleanup(rt.Close)

	s := sig.New([]tstype.Type{tstype.I32, tstype.I32}, tstype.I32)
	p := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Add", s)
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if err := rt.CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	return rt, p, s
}

func TestResolveAndCallRoundTrip(t *testing.T) {
	rt, p, _ := newAddRuntime(t)

	ref, err := Resolve[int32](rt, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()
	got, err := ref.Call(ctx, int32(3), int32(4))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 7 {
		t.Errorf("Call(3, 4) = %d, want 7", got)
	}
}

func TestResolveRejectsUnknownMethod(t *testing.T) {
	rt, _, s := newAddRuntime(t)
	missing := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Missing", s)
	if _, err := Resolve[int32](rt, missing); err == nil {
		t.Error("expected an error resolving an unregistered method")
	}
}

func TestCallRejectsArgCountMismatch(t *testing.T) {
	rt, p, _ := newAddRuntime(t)
	ref, err := Resolve[int32](rt, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()
	if _, err := ref.Call(ctx, int32(3)); err == nil {
		t.Error("expected an error when calling with too few arguments")
	} else if _, ok := err.(*ArgCountMismatchError); !ok {
		t.Errorf("err = %T, want *ArgCountMismatchError", err)
	}
}

func TestCallRejectsArgTypeMismatch(t *testing.T) {
	rt, p, _ := newAddRuntime(t)
	ref, err := Resolve[int32](rt, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()
	if _, err := ref.Call(ctx, 3.5, int32(4)); err == nil {
		t.Error("expected an error when passing a float where an int argument is declared")
	} else if _, ok := err.(*ArgTypeMismatchError); !ok {
		t.Errorf("err = %T, want *ArgTypeMismatchError", err)
	}
}

// TestCallAddLargeRandomSweep is the Go counterpart of the original
// implementation's manual random-loop tests (rnd_name and friends): a
// large deterministic sweep of argument pairs run through the same
// compiled method, checked against plain int32 addition's own wraparound
// semantics rather than any fixed table of cases.
func TestCallAddLargeRandomSweep(t *testing.T) {
	rt, p, _ := newAddRuntime(t)
	ref, err := Resolve[int32](rt, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()

	var state uint32 = 0x9E3779B9
	next := func() int32 {
		state = state*1664525 + 1013904223
		return int32(state)
	}

	const iterations = 10000
	for i := 0; i < iterations; i++ {
		a, b := next(), next()
		got, err := ref.Call(ctx, a, b)
		if err != nil {
			t.Fatalf("iteration %d: Call(%d, %d): %v", i, a, b, err)
		}
		if want := a + b; got != want {
			t.Fatalf("iteration %d: Call(%d, %d) = %d, want %d", i, a, b, got, want)
		}
	}
}

// TestCallConvU8Truncates JIT-compiles and runs a real ConvU8, checking
// truncation against the declared LLVM-level semantics rather than just
// the resolved type: 0x1234 truncates to 0x34, and -1 (all bits set)
// truncates to 0xFF.
func TestCallConvU8Truncates(t *testing.T) {
	rt, err := runtime.Init()
	if err != nil {
		t.Fatalf("runtime.Init: %v", err)
	}
	defer rt.Close()

	s := sig.New([]tstype.Type{tstype.I32}, tstype.U8)
	p := path.NewMethodPath("Demo", "Demo.Math", "Calc", "ToU8", s)
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.ConvU8{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if err := rt.CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	ref, err := Resolve[uint8](rt, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()

	cases := []struct {
		in   int32
		want uint8
	}{
		{0x1234, 0x34},
		{-1, 0xFF},
	}
	for _, c := range cases {
		got, err := ref.Call(ctx, c.in)
		if err != nil {
			t.Fatalf("Call(%d): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Call(%#x) = %#x, want %#x", c.in, got, c.want)
		}
	}
}

// TestCallNestedMethodCall registers two methods in one runtime, where the
// caller's body contains a Call op targeting the callee's mangled path,
// and checks the result produced through pkg/runtime.CompileAll's lookup
// closure wiring the caller's Call to the callee's already-declared LLVM
// function.
func TestCallNestedMethodCall(t *testing.T) {
	rt, err := runtime.Init()
	if err != nil {
		t.Fatalf("runtime.Init: %v", err)
	}
	defer rt.Close()

	addSig := sig.New([]tstype.Type{tstype.I32, tstype.I32}, tstype.I32)
	addPath := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Add", addSig)
	addKinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(addSig, nil, addKinds, addPath); err != nil {
		t.Fatalf("AddMethod(Add): %v", err)
	}

	mainSig := sig.New(nil, tstype.I32)
	mainPath := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Main", mainSig)
	mainKinds := []ops.OpKind{
		ops.LdcI32{Value: 3},
		ops.LdcI32{Value: 4},
		ops.Call{Path: addPath, Signature: addSig},
		ops.LdcI32{Value: 3},
		ops.Add{},
		ops.Ret{},
	}
	if err := rt.AddMethod(mainSig, nil, mainKinds, mainPath); err != nil {
		t.Fatalf("AddMethod(Main): %v", err)
	}

	if err := rt.CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	ref, err := Resolve[int32](rt, mainPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()
	got, err := ref.Call(ctx)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 10 {
		t.Errorf("Call() = %d, want 10", got)
	}
}

// TestCallFactorialLoop JIT-compiles and runs a method whose body is a
// real loop (a backward branch to its own header), exercising the
// back-edge path through pkg/verify, pkg/lower, and pkg/runtime together
// rather than at the verifier level alone.
func TestCallFactorialLoop(t *testing.T) {
	rt, err := runtime.Init()
	if err != nil {
		t.Fatalf("runtime.Init: %v", err)
	}
	defer rt.Close()

	s := sig.New([]tstype.Type{tstype.I32}, tstype.I32)
	locals := []tstype.Type{tstype.I32, tstype.I32} // [0]=result, [1]=i
	p := path.NewMethodPath("Demo", "Demo.Math", "Calc", "Factorial", s)
	kinds := []ops.OpKind{
		ops.LdcI32{Value: 1}, // 0
		ops.StLoc{Index: 0},  // 1: result = 1
		ops.LdArg{Index: 0},  // 2
		ops.StLoc{Index: 1},  // 3: i = n
		ops.LdLoc{Index: 1},  // 4: loop header
		ops.LdcI32{Value: 1}, // 5
		ops.BLT{Target: 16},  // 6: if i < 1, exit
		ops.LdLoc{Index: 0},  // 7
		ops.LdLoc{Index: 1},  // 8
		ops.Mul{},            // 9: result *= i
		ops.StLoc{Index: 0},  // 10
		ops.LdLoc{Index: 1},  // 11
		ops.LdcI32{Value: 1}, // 12
		ops.Sub{},            // 13: i -= 1
		ops.StLoc{Index: 1},  // 14
		ops.Br{Target: 4},    // 15: back-edge to the loop header
		ops.LdLoc{Index: 0},  // 16
		ops.Ret{},            // 17
	}
	if err := rt.AddMethod(s, locals, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if err := rt.CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	ref, err := Resolve[int32](rt, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()

	cases := []struct{ n, want int32 }{
		{0, 1}, {1, 1}, {5, 120}, {7, 5040},
	}
	for _, c := range cases {
		got, err := ref.Call(ctx, c.n)
		if err != nil {
			t.Fatalf("Call(%d): %v", c.n, err)
		}
		if got != c.want {
			t.Errorf("Call(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestCallFloatRoundTrip(t *testing.T) {
	rt, err := runtime.Init()
	if err != nil {
		t.Fatalf("runtime.Init: %v", err)
	}
	defer rt.Close()

	s := sig.New([]tstype.Type{tstype.F64, tstype.F64}, tstype.F64)
	p := path.NewMethodPath("Demo", "Demo.Math", "Calc", "AddF", s)
	kinds := []ops.OpKind{ops.LdArg{Index: 0}, ops.LdArg{Index: 1}, ops.Add{}, ops.Ret{}}
	if err := rt.AddMethod(s, nil, kinds, p); err != nil {
		t.Fatalf("AddMethod: %v", err)
	}
	if err := rt.CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	ref, err := Resolve[float64](rt, p)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ctx := llvm.GlobalContext()
	got, err := ref.Call(ctx, 1.5, 2.25)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 3.75 {
		t.Errorf("Call(1.5, 2.25) = %v, want 3.75", got)
	}
}
