// Package runtime is the process-wide JIT container: one LLVM context,
// one module, one execution engine, and the insertion-ordered table of
// every method ever added to it. It is a direct port of the original
// implementation's type_system::runtime module, trading inkwell's
// borrow-checked Context/Module/ExecutionEngine lifetimes (and the
// unsafe "pretend_static" transmute they forced) for go-llvm's owned
// handles, which need no such trick.
package runtime

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"

	"github.com/raymyers/tinysharp-go/pkg/collection"
	"github.com/raymyers/tinysharp-go/pkg/lower"
	"github.com/raymyers/tinysharp-go/pkg/ops"
	"github.com/raymyers/tinysharp-go/pkg/path"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
	"github.com/raymyers/tinysharp-go/pkg/verify"
)

// runtimeCount enforces the single-runtime-per-process invariant (CORE
// SPEC §9's explicit design note) via compare-and-swap, replacing the
// original's unsafe static AtomicUsize with a package-level atomic.Bool.
var runtimeCount atomic.Bool

// ErrRuntimeAlreadyPresent is returned by Init when a Runtime is already
// live in this process.
var ErrRuntimeAlreadyPresent = errors.New("a runtime already exists in this process")

type methodEntry struct {
	ir        []ops.OpKind
	signature sig.Signature
	locals    []tstype.Type
	verified  *verify.Method
	fn        llvm.Value
	fnType    llvm.Type
	compiled  bool
}

// Runtime owns the LLVM context, module, and JIT execution engine for
// every method added to it via AddMethod.
type Runtime struct {
	mu      sync.Mutex
	ctx     llvm.Context
	module  llvm.Module
	engine  llvm.ExecutionEngine
	methods *collection.Keyed[string, *methodEntry]
	log     verify.Logger
}

// Init acquires the process-wide runtime slot and constructs a fresh JIT
// container, or returns ErrRuntimeAlreadyPresent if one is already live.
func Init() (*Runtime, error) {
	return InitWithLogger(verify.Logger{})
}

// InitWithLogger is Init with an explicit verify.Logger for verifier
// diagnostics (join-point divergence) raised while building methods.
func InitWithLogger(log verify.Logger) (*Runtime, error) {
	if !runtimeCount.CompareAndSwap(false, true) {
		return nil, ErrRuntimeAlreadyPresent
	}
	ctx := llvm.NewContext()
	module := ctx.NewModule("runtime")
	engine, err := llvm.NewExecutionEngine(module)
	if err != nil {
		runtimeCount.Store(false)
		return nil, errors.WithStack(err)
	}
	return &Runtime{
		ctx:     ctx,
		module:  module,
		engine:  engine,
		methods: collection.New[string, *methodEntry](),
		log:     log,
	}, nil
}

// Close releases the LLVM resources and the process-wide runtime slot.
// A Runtime must not be used after Close.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine.Dispose()
	r.ctx.Dispose()
	runtimeCount.Store(false)
}

// AddMethod verifies kinds against signature/locals, declares the
// resulting function in the runtime's module under path's mangled
// identifier, and registers it for later compilation. It does not lower
// the method body; call CompileAll for that.
func (r *Runtime) AddMethod(signature sig.Signature, locals []tstype.Type, kinds []ops.OpKind, p path.MethodPath) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	verified, err := verify.Build(signature, locals, kinds, r.log)
	if err != nil {
		return errors.WithStack(err)
	}
	fnType, err := lower.FunctionType(r.ctx, signature)
	if err != nil {
		return errors.WithStack(err)
	}
	fn := llvm.AddFunction(r.module, p.Ident(), fnType)

	r.methods.Insert(p.Ident(), &methodEntry{
		ir:        kinds,
		signature: signature,
		locals:    locals,
		verified:  verified,
		fn:        fn,
		fnType:    fnType,
	})
	return nil
}

// CompileAll lowers every registered, not-yet-compiled method's body into
// the runtime's module. Calls to methods not yet compiled are resolved
// against their already-declared (but possibly not-yet-defined) function,
// matching LLVM's own support for forward-referenced calls within one
// module.
func (r *Runtime) CompileAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lookup := func(ident string) (lower.Callee, bool) {
		ref, ok := r.methods.Lookup(ident)
		if !ok {
			return lower.Callee{}, false
		}
		entry := *r.methods.Get(ref)
		return lower.Callee{Fn: entry.fn, FnType: entry.fnType, Signature: entry.signature}, true
	}

	for _, entry := range r.methods.Values() {
		if entry.compiled {
			continue
		}
		if err := lower.Compile(r.ctx, r.module, entry.fn, entry.verified, lookup); err != nil {
			return errors.WithStack(&MethodCompileError{Ident: entry.fn.Name(), Err: err})
		}
		entry.compiled = true
	}
	if err := llvm.VerifyModule(r.module, llvm.ReturnStatusAction); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// FunctionAddress returns the JIT-compiled entry point for the method
// identified by p, or (0, false) if it has not been added or compiled.
func (r *Runtime) FunctionAddress(p path.MethodPath) (uintptr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.methods.Lookup(p.Ident())
	if !ok {
		return 0, false
	}
	entry := *r.methods.Get(ref)
	if !entry.compiled {
		return 0, false
	}
	return uintptr(r.engine.GetFunctionAddress(p.Ident())), true
}

// MethodInfo is the read-only view of a registered method exposed to
// callers that need per-method details (cmd/tinysharp-jit's --dverify
// dump and its --drun entry lookup) without reaching into Runtime's
// internals.
type MethodInfo struct {
	Ident     string
	Signature sig.Signature
	Locals    []tstype.Type
	Ops       []ops.OpKind
	Verified  *verify.Method
	Compiled  bool
}

// Methods returns every registered method in insertion order.
func (r *Runtime) Methods() []MethodInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MethodInfo, 0, r.methods.Len())
	for _, entry := range r.methods.Values() {
		out = append(out, MethodInfo{
			Ident:     entry.fn.Name(),
			Signature: entry.signature,
			Locals:    entry.locals,
			Ops:       entry.ir,
			Verified:  entry.verified,
			Compiled:  entry.compiled,
		})
	}
	return out
}

// Module exposes the runtime's LLVM module for textual IR dumps
// (cmd/tinysharp-jit's --dllvm flag).
func (r *Runtime) Module() llvm.Module {
	return r.module
}

// Engine exposes the underlying JIT execution engine for pkg/handle's
// MethodRef.Call, which invokes methods through go-llvm's
// GenericValue-based RunFunction rather than raw function pointers (CORE
// SPEC §4 supplement: the original left MethodRef::call as todo!()).
func (r *Runtime) Engine() llvm.ExecutionEngine {
	return r.engine
}

// Function returns the declared LLVM function for the method identified
// by p, whether or not it has been compiled yet, used by pkg/handle to
// call through RunFunction.
func (r *Runtime) Function(p path.MethodPath) (llvm.Value, sig.Signature, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.methods.Lookup(p.Ident())
	if !ok {
		return llvm.Value{}, sig.Signature{}, false
	}
	entry := *r.methods.Get(ref)
	return entry.fn, entry.signature, true
}

// MethodCompileError wraps a lowering failure with the function it
// occurred in, mirroring the original's MethodCompileError.
type MethodCompileError struct {
	Ident string
	Err   error
}

func (e *MethodCompileError) Error() string {
	return "could not compile method " + e.Ident + ": " + e.Err.Error()
}

func (e *MethodCompileError) Unwrap() error { return e.Err }
