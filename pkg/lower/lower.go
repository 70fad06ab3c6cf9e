// Package lower compiles a verified method (pkg/verify.Method) into LLVM
// IR via tinygo.org/x/go-llvm. Its shape — a locals_init preamble block,
// one native block per OpBlock, a per-block virtual operand stack of
// variable-table indices — is a direct generalization of the original
// implementation's ir::method_compiler::MethodCompiler /
// jit::op_compiler, rewritten for go-llvm's value/type handles in place
// of inkwell's, and for the stack-IR's full op set rather than the
// original's Add/Mul/LDArg/LDCI32/Ret/Neg/BGE/BLE/BR/STLoc/LDLoc subset.
package lower

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/raymyers/tinysharp-go/pkg/cfg"
	"github.com/raymyers/tinysharp-go/pkg/ops"
	"github.com/raymyers/tinysharp-go/pkg/sig"
	"github.com/raymyers/tinysharp-go/pkg/tstype"
	"github.com/raymyers/tinysharp-go/pkg/variable"
	"github.com/raymyers/tinysharp-go/pkg/verify"
)

// CompileError wraps any failure during lowering with the instruction
// index it occurred at, so a caller can report which op of which method
// could not be lowered.
type CompileError struct {
	Index ops.InstructionIndex
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("lowering failed at instruction %d: %s", e.Index, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// UnsupportedOperationError is returned for an OpKind that has no
// lowering case in compileOp. ObjRef values are only moved by
// LdNull/Dup/Pop/StLoc/LdLoc/Call/Ret; arithmetic, comparison, and
// conversion on an ObjRef are rejected by pkg/verify before lowering, so
// they never reach this package.
type UnsupportedOperationError struct {
	Kind ops.OpKind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation for lowering: %T", e.Kind)
}

// LLVMType projects a tstype.Type onto the LLVM type pkg/variable values
// of that type carry. Integer family types map onto the native LLVM
// integer of the same bit width (signedness lives in variable.Kind, not
// the LLVM type, matching go-llvm's — and LLVM's — signedness-free
// integer types); ObjRef maps onto an opaque pointer; Void maps onto the
// LLVM void type.
func LLVMType(ctx llvm.Context, t tstype.Type) (llvm.Type, error) {
	switch t {
	case tstype.I8, tstype.U8:
		return ctx.Int8Type(), nil
	case tstype.I16, tstype.U16, tstype.Char:
		return ctx.Int16Type(), nil
	case tstype.I32, tstype.U32, tstype.Bool:
		return ctx.Int32Type(), nil
	case tstype.I64, tstype.U64, tstype.IPtr, tstype.UPtr:
		return ctx.Int64Type(), nil
	case tstype.F32:
		return ctx.FloatType(), nil
	case tstype.F64:
		return ctx.DoubleType(), nil
	case tstype.ObjRef:
		return llvm.PointerType(ctx.Int8Type(), 0), nil
	case tstype.Void:
		return ctx.VoidType(), nil
	default:
		return llvm.Type{}, fmt.Errorf("lower: no LLVM type for %s", t)
	}
}

// FunctionType builds the LLVM function type a method of signature s
// compiles to.
func FunctionType(ctx llvm.Context, s sig.Signature) (llvm.Type, error) {
	params := make([]llvm.Type, len(s.Args))
	for i, a := range s.Args {
		t, err := LLVMType(ctx, a)
		if err != nil {
			return llvm.Type{}, err
		}
		params[i] = t
	}
	ret, err := LLVMType(ctx, s.Ret)
	if err != nil {
		return llvm.Type{}, err
	}
	return llvm.FunctionType(ret, params, false), nil
}

// Callee is what CallLookup resolves a Call op's path to: the callee's
// LLVM function, its LLVM function type (needed for go-llvm's opaque
// pointer-aware CreateCall), and its signature (needed to know how many
// virtual-stack entries to consume).
type Callee struct {
	Fn        llvm.Value
	FnType    llvm.Type
	Signature sig.Signature
}

// CallLookup resolves a mangled method identifier (path.MethodPath.Ident())
// to its already-declared LLVM function. pkg/runtime supplies this by
// closing over its method table.
type CallLookup func(ident string) (Callee, bool)

// Compile lowers method into fn's body. fn must already have been
// declared in module with the function type FunctionType(ctx, method.Signature)
// produces, and must have no basic blocks yet.
func Compile(ctx llvm.Context, module llvm.Module, fn llvm.Value, method *verify.Method, lookup CallLookup) error {
	builder := ctx.NewBuilder()
	defer builder.Dispose()

	mc := &methodCompiler{
		ctx:     ctx,
		module:  module,
		fn:      fn,
		method:  method,
		builder: builder,
		lookup:  lookup,
	}
	return mc.run()
}

type methodCompiler struct {
	ctx       llvm.Context
	module    llvm.Module
	fn        llvm.Value
	method    *verify.Method
	builder   llvm.Builder
	lookup    CallLookup
	variables []variable.Variable
	blocks    []llvm.BasicBlock
}

func (mc *methodCompiler) run() error {
	for i, argType := range mc.method.Signature.Args {
		v, err := variable.Of(argType, mc.fn.Param(i))
		if err != nil {
			return err
		}
		mc.variables = append(mc.variables, v)
	}

	initBlock := llvm.AddBasicBlock(mc.fn, "locals_init")
	mc.builder.SetInsertPointAtEnd(initBlock)
	for _, localType := range mc.method.Locals {
		t, err := LLVMType(mc.ctx, localType)
		if err != nil {
			return err
		}
		ptr := mc.builder.CreateAlloca(t, "")
		mc.variables = append(mc.variables, variable.Variable{Kind: variable.Pointer, Value: ptr})
	}

	mc.blocks = make([]llvm.BasicBlock, len(mc.method.Blocks))
	for i := range mc.method.Blocks {
		mc.blocks[i] = llvm.AddBasicBlock(mc.fn, "")
	}
	if len(mc.blocks) > 0 {
		mc.builder.CreateBr(mc.blocks[0])
	} else {
		mc.builder.CreateRetVoid()
	}

	for i, block := range mc.method.Blocks {
		if err := mc.compileBlock(block, i); err != nil {
			return err
		}
	}
	return nil
}

func (mc *methodCompiler) compileBlock(block *cfg.OpBlock, index int) error {
	mc.builder.SetInsertPointAtEnd(mc.blocks[index])
	var vstack []int
	for i := range block.Ops {
		op := &block.Ops[i]
		absIdx := block.StartIndex + ops.InstructionIndex(i)
		if err := mc.compileOp(op, &vstack); err != nil {
			return &CompileError{Index: absIdx, Err: err}
		}
	}
	if block.Edge == cfg.Pass {
		nextIdx := cfg.IndexOfBlockStartingAt(mc.method.Blocks, block.EndIndex())
		mc.builder.CreateBr(mc.blocks[nextIdx])
	}
	return nil
}

func (mc *methodCompiler) pushVar(t tstype.Type, v llvm.Value, vstack *[]int) error {
	vr, err := variable.Of(t, v)
	if err != nil {
		return err
	}
	mc.variables = append(mc.variables, vr)
	*vstack = append(*vstack, len(mc.variables)-1)
	return nil
}

func (mc *methodCompiler) popVar(vstack *[]int) (variable.Variable, error) {
	s := *vstack
	if len(s) == 0 {
		return variable.Variable{}, fmt.Errorf("lower: internal error, virtual stack underflow")
	}
	idx := s[len(s)-1]
	*vstack = s[:len(s)-1]
	return mc.variables[idx], nil
}

func (mc *methodCompiler) compileOp(op *ops.Op, vstack *[]int) error {
	switch k := op.Kind.(type) {

	case ops.LdArg:
		*vstack = append(*vstack, k.Index)

	case ops.LdcI32:
		v := mc.ctx.Int32Type().ConstInt(uint64(uint32(k.Value)), false)
		return mc.pushVar(tstype.I32, v, vstack)

	case ops.LdNull:
		t, err := LLVMType(mc.ctx, tstype.ObjRef)
		if err != nil {
			return err
		}
		return mc.pushVar(tstype.ObjRef, llvm.ConstNull(t), vstack)

	case ops.LdLoc:
		localIdx := len(mc.method.Signature.Args) + k.Index
		ptrVar := mc.variables[localIdx]
		localType := mc.method.Locals[k.Index]
		t, err := LLVMType(mc.ctx, localType)
		if err != nil {
			return err
		}
		loaded := mc.builder.CreateLoad(t, ptrVar.Value, "")
		return mc.pushVar(localType, loaded, vstack)

	case ops.StLoc:
		v, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		localIdx := len(mc.method.Signature.Args) + k.Index
		ptrVar := mc.variables[localIdx]
		mc.builder.CreateStore(v.Value, ptrVar.Value)

	case ops.Add, ops.Sub, ops.Mul, ops.Div, ops.Rem,
		ops.And, ops.Or, ops.XOr, ops.Shl, ops.Shr:
		b, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		a, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		res, err := mc.buildBinary(k, a, b)
		if err != nil {
			return err
		}
		resType := derefResolvedType(op)
		return mc.pushVar(resType, res, vstack)

	case ops.Neg:
		a, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		var res llvm.Value
		if a.Kind == variable.Float {
			res = mc.builder.CreateFNeg(a.Value, "")
		} else {
			res = mc.builder.CreateNeg(a.Value, "")
		}
		return mc.pushVar(derefResolvedType(op), res, vstack)

	case ops.Not:
		a, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		return mc.pushVar(derefResolvedType(op), mc.builder.CreateNot(a.Value, ""), vstack)

	case ops.Dup:
		s := *vstack
		if len(s) == 0 {
			return fmt.Errorf("lower: internal error, virtual stack underflow")
		}
		*vstack = append(s, s[len(s)-1])

	case ops.Pop:
		_, err := mc.popVar(vstack)
		return err

	case ops.ConvI8:
		return mc.buildConvert(tstype.I8, vstack)
	case ops.ConvU8:
		return mc.buildConvert(tstype.U8, vstack)
	case ops.ConvI16:
		return mc.buildConvert(tstype.I16, vstack)
	case ops.ConvU16:
		return mc.buildConvert(tstype.U16, vstack)
	case ops.ConvI32:
		return mc.buildConvert(tstype.I32, vstack)
	case ops.ConvU32:
		return mc.buildConvert(tstype.U32, vstack)
	case ops.ConvI64:
		return mc.buildConvert(tstype.I64, vstack)
	case ops.ConvU64:
		return mc.buildConvert(tstype.U64, vstack)

	case ops.Br:
		targetIdx := cfg.IndexOfBlockStartingAt(mc.method.Blocks, k.Target)
		mc.builder.CreateBr(mc.blocks[targetIdx])

	case ops.BGE, ops.BLE, ops.BLT, ops.BGT, ops.BEQ, ops.BNE:
		b, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		a, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		cond, _ := ops.ConditionOf(k)
		return mc.buildConditionalBranch(a, b, cond)

	case ops.Call:
		return mc.buildCall(k, vstack)

	case ops.Ret:
		if mc.method.Signature.Ret == tstype.Void {
			mc.builder.CreateRetVoid()
			return nil
		}
		v, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		mc.builder.CreateRet(v.Value)

	case ops.Nop:
		// no-op.

	default:
		return &UnsupportedOperationError{Kind: k}
	}
	return nil
}

func derefResolvedType(op *ops.Op) tstype.Type {
	if op.ResolvedType == nil {
		return tstype.Void
	}
	return *op.ResolvedType
}

func (mc *methodCompiler) buildBinary(kind ops.OpKind, a, b variable.Variable) (llvm.Value, error) {
	if a.Kind == variable.Float {
		switch kind.(type) {
		case ops.Add:
			return mc.builder.CreateFAdd(a.Value, b.Value, ""), nil
		case ops.Sub:
			return mc.builder.CreateFSub(a.Value, b.Value, ""), nil
		case ops.Mul:
			return mc.builder.CreateFMul(a.Value, b.Value, ""), nil
		case ops.Div:
			return mc.builder.CreateFDiv(a.Value, b.Value, ""), nil
		case ops.Rem:
			return mc.builder.CreateFRem(a.Value, b.Value, ""), nil
		default:
			return llvm.Value{}, fmt.Errorf("lower: bitwise op on float operands")
		}
	}
	unsigned := a.Kind == variable.UInt
	switch kind.(type) {
	case ops.Add:
		return mc.builder.CreateAdd(a.Value, b.Value, ""), nil
	case ops.Sub:
		return mc.builder.CreateSub(a.Value, b.Value, ""), nil
	case ops.Mul:
		return mc.builder.CreateMul(a.Value, b.Value, ""), nil
	case ops.Div:
		if unsigned {
			return mc.builder.CreateUDiv(a.Value, b.Value, ""), nil
		}
		return mc.builder.CreateSDiv(a.Value, b.Value, ""), nil
	case ops.Rem:
		if unsigned {
			return mc.builder.CreateURem(a.Value, b.Value, ""), nil
		}
		return mc.builder.CreateSRem(a.Value, b.Value, ""), nil
	case ops.And:
		return mc.builder.CreateAnd(a.Value, b.Value, ""), nil
	case ops.Or:
		return mc.builder.CreateOr(a.Value, b.Value, ""), nil
	case ops.XOr:
		return mc.builder.CreateXor(a.Value, b.Value, ""), nil
	case ops.Shl:
		return mc.builder.CreateShl(a.Value, b.Value, ""), nil
	case ops.Shr:
		if unsigned {
			return mc.builder.CreateLShr(a.Value, b.Value, ""), nil
		}
		return mc.builder.CreateAShr(a.Value, b.Value, ""), nil
	default:
		return llvm.Value{}, fmt.Errorf("lower: %T is not a binary op", kind)
	}
}

// buildConditionalBranch lowers a conditional branch: compares a against
// b with cond (a <cond> b, matching push order value-then-value), then
// branches to the block's declared target or falls through. The
// fallthrough is read from the block's stored Fallthrough field, not
// assumed from emission order.
func (mc *methodCompiler) buildConditionalBranch(a, b variable.Variable, cond ops.Condition) error {
	block := mc.currentMethodBlock()
	targetIdx := cfg.IndexOfBlockStartingAt(mc.method.Blocks, block.BranchTarget)
	fallIdx := cfg.IndexOfBlockStartingAt(mc.method.Blocks, block.Fallthrough)
	target := mc.blocks[targetIdx]
	fallthroughBlock := mc.blocks[fallIdx]

	var cmp llvm.Value
	if a.Kind == variable.Float {
		cmp = mc.builder.CreateFCmp(floatPredicate(cond), a.Value, b.Value, "")
	} else {
		cmp = mc.builder.CreateICmp(intPredicate(cond, a.Kind == variable.UInt), a.Value, b.Value, "")
	}
	mc.builder.CreateCondBr(cmp, target, fallthroughBlock)
	return nil
}

// currentMethodBlock returns the OpBlock whose native block is currently
// being emitted into, found by matching the builder's insertion point.
func (mc *methodCompiler) currentMethodBlock() *cfg.OpBlock {
	cur := mc.builder.GetInsertBlock()
	for i, b := range mc.blocks {
		if b == cur {
			return mc.method.Blocks[i]
		}
	}
	return nil
}

func intPredicate(cond ops.Condition, unsigned bool) llvm.IntPredicate {
	if unsigned {
		switch cond {
		case ops.CondGE:
			return llvm.IntUGE
		case ops.CondLE:
			return llvm.IntULE
		case ops.CondLT:
			return llvm.IntULT
		case ops.CondGT:
			return llvm.IntUGT
		case ops.CondEQ:
			return llvm.IntEQ
		default:
			return llvm.IntNE
		}
	}
	switch cond {
	case ops.CondGE:
		return llvm.IntSGE
	case ops.CondLE:
		return llvm.IntSLE
	case ops.CondLT:
		return llvm.IntSLT
	case ops.CondGT:
		return llvm.IntSGT
	case ops.CondEQ:
		return llvm.IntEQ
	default:
		return llvm.IntNE
	}
}

func floatPredicate(cond ops.Condition) llvm.FloatPredicate {
	switch cond {
	case ops.CondGE:
		return llvm.FloatOGE
	case ops.CondLE:
		return llvm.FloatOLE
	case ops.CondLT:
		return llvm.FloatOLT
	case ops.CondGT:
		return llvm.FloatOGT
	case ops.CondEQ:
		return llvm.FloatOEQ
	default:
		return llvm.FloatONE
	}
}

func (mc *methodCompiler) buildConvert(target tstype.Type, vstack *[]int) error {
	a, err := mc.popVar(vstack)
	if err != nil {
		return err
	}
	targetLLVM, err := LLVMType(mc.ctx, target)
	if err != nil {
		return err
	}
	targetKind, err := variable.KindOf(target)
	if err != nil {
		return err
	}

	var converted llvm.Value
	switch {
	case a.Kind == variable.Float && targetKind == variable.Float:
		converted = mc.builder.CreateFPCast(a.Value, targetLLVM, "")
	case a.Kind == variable.Float:
		if targetKind == variable.UInt {
			converted = mc.builder.CreateFPToUI(a.Value, targetLLVM, "")
		} else {
			converted = mc.builder.CreateFPToSI(a.Value, targetLLVM, "")
		}
	case targetKind == variable.Float:
		if a.Kind == variable.UInt {
			converted = mc.builder.CreateUIToFP(a.Value, targetLLVM, "")
		} else {
			converted = mc.builder.CreateSIToFP(a.Value, targetLLVM, "")
		}
	default:
		converted = mc.builder.CreateIntCast2(a.Value, targetLLVM, a.Kind != variable.UInt, "")
	}
	return mc.pushVar(target, converted, vstack)
}

func (mc *methodCompiler) buildCall(k ops.Call, vstack *[]int) error {
	callee, ok := mc.lookup(k.Path.Ident())
	if !ok {
		return fmt.Errorf("lower: call to unresolved method %s", k.Path.Ident())
	}
	args := make([]llvm.Value, len(callee.Signature.Args))
	for i := len(args) - 1; i >= 0; i-- {
		v, err := mc.popVar(vstack)
		if err != nil {
			return err
		}
		args[i] = v.Value
	}
	result := mc.builder.CreateCall(callee.FnType, callee.Fn, args, "")
	if callee.Signature.Ret == tstype.Void {
		return nil
	}
	return mc.pushVar(callee.Signature.Ret, result, vstack)
}
