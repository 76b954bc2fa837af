package translator

import (
	"fmt"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/errs"
	"github.com/scriptjit/ngjit/internal/irgen"
)

func isCallOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpCALL, bcio.OpCALLINTF, bcio.OpCALLSYS, bcio.OpThiscall1:
		return true
	default:
		return false
	}
}

// emitCallOp resolves a call instruction's target through the call table and
// dispatches to the script or system call emitter. CALLINTF and Thiscall1
// are interface/single-argument-thiscall variants of the same dispatch the
// original groups under one CallEmitter; a script target always goes
// through emitScriptCall regardless of which of the four opcodes requested
// it, matching the original's "one call lowering, opcode only picks the
// calling convention metadata" design.
func (tr *Translator) emitCallOp(fc *funcCtx, in bcio.Instruction) error {
	idx := in.Imm32()
	if idx < 0 || int(idx) >= len(tr.callTable) {
		return &errs.InternalConsistency{
			Condition: fmt.Sprintf("call target index %d out of range [0, %d)", idx, len(tr.callTable)),
			File:      "internal/translator/callemitter.go",
		}
	}
	target := tr.callTable[idx]
	if target.Native != nil {
		tr.emitSystemCall(fc, target)
	} else {
		tr.emitScriptCall(fc, target)
	}
	return nil
}

// emitScriptCall lowers a call to another script function. The VM stack
// already holds everything the callee's native signature needs, pushed by
// the caller's own bytecode in the matching order: the sret pointer first
// (when the callee returns on the stack), then the this pointer (for a
// method), then declared parameters in forward declaration order — none of
// these are invented here, only popped in that order and forwarded.
//
// A virtual target is resolved through script_vtable_lookup against the
// this pointer already popped off the stack, unless the call devirtualizes;
// a non-virtual target is always called directly by its static symbol.
func (tr *Translator) emitScriptCall(fc *funcCtx, target *api.ScriptFunction) {
	block := fc.cur
	f := fc.frame
	t := tr.module.Types

	var args []value.Value
	var retPtr value.Value
	var thisVal value.Value
	if target.Flags.Has(api.FlagDoesReturnOnStack) {
		retPtr = f.PopTyped(block, int64(t.PtrDwords()), tr.types.ToIR(target.ReturnType))
		args = append(args, retPtr)
	}
	if target.IsMethod() {
		thisVal = f.PopTyped(block, int64(t.PtrDwords()), t.VoidPtr)
		args = append(args, thisVal)
	}
	for _, p := range target.Params {
		args = append(args, f.PopTyped(block, int64(p.Type.DwordSize()), tr.types.ToIR(p.Type)))
	}

	retType := tr.nativeReturnType(target)
	paramTypes, paramNames := tr.nativeSignature(target)

	var callee value.Value
	if target.Flags.Has(api.FlagIsVirtual) && !tr.devirtualizable(target) {
		fnType := types.NewFunc(retType, paramTypes...)
		raw := block.NewCall(tr.helpers.ScriptVtableLookup, thisVal, irgen.ConstI32(int32(target.VtableSlot)))
		callee = block.NewBitCast(raw, types.NewPointer(fnType))
	} else {
		callee = tr.module.DeclareFunc(nativeSymbol(target.ID), retType, paramNames, paramTypes)
	}
	result := block.NewCall(callee, args...)

	switch {
	case target.Flags.Has(api.FlagDoesReturnOnStack):
		f.Push(block, retPtr, int64(t.PtrDwords()))
	case target.ReturnType.Kind != api.KindVoid:
		f.Push(block, result, int64(target.ReturnType.DwordSize()))
	}
}

// devirtualizable reports whether a virtual call target can bypass vtable
// resolution and be called by its static symbol instead. Both conditions
// are required: Config.AllowDevirtualization lets the translator consider
// it at all, and the engine must separately have proven the call can't
// actually be overridden at runtime — either the method itself is marked
// final, or its owning class is marked no-inherit. Neither condition alone
// is sufficient: AllowDevirtualization without a final/no-inherit proof
// would statically bind a call an overriding subclass expects to intercept.
func (tr *Translator) devirtualizable(target *api.ScriptFunction) bool {
	if !tr.cfg.AllowDevirtualization() {
		return false
	}
	if target.Flags.Has(api.FlagIsFinal) {
		return true
	}
	return target.Object != nil && target.Object.NoInherit
}

// emitSystemCall lowers a call to a native (system) function according to
// its declared calling convention. As with emitScriptCall, the sret pointer
// and the this pointer are popped off the VM stack rather than sourced from
// any register — the caller's bytecode already arranged them there, sret
// first when DoesReturnOnStack, then this for every object-bound
// convention, then declared parameters in forward order. A VIRTUAL_THISCALL
// target is resolved through the system vtable helper unless devirtualizable
// reports it can be called by its static symbol directly instead.
func (tr *Translator) emitSystemCall(fc *funcCtx, target *api.ScriptFunction) {
	block := fc.cur
	f := fc.frame
	t := tr.module.Types
	native := target.Native

	var retPtr value.Value
	if target.Flags.Has(api.FlagDoesReturnOnStack) {
		retPtr = f.PopTyped(block, int64(t.PtrDwords()), t.VoidPtr)
	}

	var thisVal value.Value
	if target.IsMethod() {
		thisVal = f.PopTyped(block, int64(t.PtrDwords()), t.VoidPtr)
	}

	paramVals := make([]value.Value, len(target.Params))
	for i, p := range target.Params {
		paramVals[i] = f.PopTyped(block, int64(p.Type.DwordSize()), tr.types.ToIR(p.Type))
	}
	paramTypes := paramTypesOf(tr, target)
	retType := tr.types.ToIR(target.ReturnType)

	var args []value.Value
	var argTypes []types.Type
	if target.Flags.Has(api.FlagDoesReturnOnStack) {
		args = append(args, retPtr)
		argTypes = append(argTypes, t.VoidPtr)
	}

	switch native.Conv {
	case api.CDECL:
		args = append(args, paramVals...)
		argTypes = append(argTypes, paramTypes...)
	case api.THISCALL, api.VIRTUAL_THISCALL, api.CDECL_OBJFIRST:
		args = append(args, thisVal)
		argTypes = append(argTypes, t.VoidPtr)
		args = append(args, paramVals...)
		argTypes = append(argTypes, paramTypes...)
	case api.CDECL_OBJLAST:
		args = append(args, paramVals...)
		argTypes = append(argTypes, paramTypes...)
		args = append(args, thisVal)
		argTypes = append(argTypes, t.VoidPtr)
	}

	var callee value.Value
	if native.Conv == api.VIRTUAL_THISCALL && !tr.devirtualizable(target) {
		raw := block.NewCall(tr.helpers.SystemVtableLookup, thisVal, irgen.ConstI32(int32(native.VtableSlot)))
		fnType := types.NewFunc(retType, argTypes...)
		callee = block.NewBitCast(raw, types.NewPointer(fnType))
	} else {
		callee = tr.module.DeclareExtern(native.Symbol, retType, argTypes...)
	}

	result := block.NewCall(callee, args...)
	switch {
	case target.Flags.Has(api.FlagDoesReturnOnStack):
		f.Push(block, retPtr, int64(t.PtrDwords()))
	case target.ReturnType.Kind != api.KindVoid:
		f.Push(block, result, int64(target.ReturnType.DwordSize()))
	}
}

func paramTypesOf(tr *Translator, fn *api.ScriptFunction) []types.Type {
	out := make([]types.Type, len(fn.Params))
	for i, p := range fn.Params {
		out[i] = tr.types.ToIR(p.Type)
	}
	return out
}

// emitReturn lowers RET. A sret function always returns void (the caller
// already holds the output pointer); otherwise the top of stack is popped
// and returned directly. Also records this RET's bytecode offset on fc, for
// the VM entry thunk to embed as the program_pointer write-back — the last
// RET visited in bytecode order wins, matching the original builder.
func (tr *Translator) emitReturn(fc *funcCtx, in bcio.Instruction) error {
	block := fc.cur
	fn := fc.fn

	fc.retOffset = in.Offset

	if fn.Flags.Has(api.FlagDoesReturnOnStack) || fn.ReturnType.Kind == api.KindVoid {
		block.NewRet(nil)
	} else {
		v := fc.frame.PopTyped(block, int64(fn.ReturnType.DwordSize()), tr.types.ToIR(fn.ReturnType))
		block.NewRet(v)
	}
	fc.terminated = true
	return nil
}
