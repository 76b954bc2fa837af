package translator

import (
	"fmt"

	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/errs"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/stackframe"
)

func isObjectOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpALLOC, bcio.OpFREE, bcio.OpREFCPY, bcio.OpRefCpyV:
		return true
	default:
		return false
	}
}

// emitObjectOp lowers object lifetime management: ALLOC's two-branch
// construction contract, FREE's release-or-destruct dispatch, and REFCPY/
// RefCpyV's addref-on-copy.
func (tr *Translator) emitObjectOp(fc *funcCtx, in bcio.Instruction) error {
	switch in.Op {
	case bcio.OpALLOC:
		return tr.emitAlloc(fc, in)
	case bcio.OpFREE:
		return tr.emitFree(fc, in)
	case bcio.OpREFCPY:
		return tr.emitRefCpy(fc, in)
	case bcio.OpRefCpyV:
		return tr.emitRefCpyV(fc, in)
	default:
		return nil
	}
}

// emitAlloc lowers ALLOC's two-branch construction contract. A script-object
// type is constructed through new_script_object: the new pointer is stored
// into the target variable slot that already sits below the constructor's
// argument space, pushed back onto the stack so the ordinary script-call
// path can pop it as the constructor's this, and popped again once the
// constructor returns, so the constructor's arguments and the target slot
// are all consumed.
// A plain value type is allocated by size through the generic alloc helper
// and, when a constructor id is given, dispatched the same way with the
// fresh pointer as this; either way the result is stored into the target
// slot rather than left on the VM stack.
func (tr *Translator) emitAlloc(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	typeID, ctorID := in.TypeIDAndImm32()
	ot := tr.types.ObjectTypeFor(typeID)

	if ot.ScriptObject {
		if ctorID < 0 || int(ctorID) >= len(tr.callTable) {
			return &errs.InternalConsistency{
				Condition: fmt.Sprintf("script-object constructor index %d out of range [0, %d)", ctorID, len(tr.callTable)),
				File:      "internal/translator/object.go",
			}
		}
		ctor := tr.callTable[ctorID]
		var argSpace int64
		for _, p := range ctor.Params {
			argSpace += int64(p.Type.DwordSize())
		}

		enginePtr := irgen.NullPtr(types.NewPointer(t.I8))
		obj := block.NewCall(tr.helpers.NewScriptObject, irgen.ConstI32(typeID), enginePtr)

		// target is the address of the variable the caller's bytecode
		// already arranged below the constructor's argument space; it is
		// read here, not popped, since the constructor call below consumes
		// the argument space but leaves this slot for the explicit Pop that
		// follows.
		targetOffset := f.StackPointer() - stackframe.Offset(argSpace)
		target := f.Load(block, targetOffset, types.NewPointer(t.VoidPtr))
		block.NewStore(obj, target)

		f.Push(block, obj, int64(t.PtrDwords()))
		if err := tr.dispatchMethod(fc, uint32(ctorID), nil); err != nil {
			return err
		}
		f.Pop(int64(t.PtrDwords()))
		return nil
	}

	obj := block.NewCall(tr.helpers.Alloc, t.ConstIptr(int64(ot.SizeInMemory)))
	if ctorID != 0 {
		if err := tr.dispatchMethod(fc, uint32(ctorID), obj); err != nil {
			return err
		}
	}

	target := f.PopTyped(block, int64(t.PtrDwords()), types.NewPointer(t.VoidPtr))
	block.NewStore(obj, target)
	return nil
}

// dispatchMethod calls the call-table entry at index with this as its
// receiver, popping its remaining declared parameters off the VM stack the
// same way an ordinary method call would. Used by ALLOC's constructor
// dispatch and FREE's release/destructor dispatch, which supply a receiver
// explicitly rather than taking one off the stack, except as below.
//
// When this is nil, the receiver is instead popped off the stack (ALLOC's
// script-object branch, which pushes the new pointer for the constructor
// to consume as an ordinary call would).
func (tr *Translator) dispatchMethod(fc *funcCtx, index uint32, this value.Value) error {
	if int(index) >= len(tr.callTable) {
		return &errs.InternalConsistency{
			Condition: fmt.Sprintf("object method index %d out of range [0, %d)", index, len(tr.callTable)),
			File:      "internal/translator/object.go",
		}
	}
	target := tr.callTable[index]
	block := fc.cur
	f := fc.frame
	t := tr.module.Types

	if this == nil {
		this = f.PopTyped(block, int64(t.PtrDwords()), t.VoidPtr)
	}

	args := []value.Value{this}
	for _, p := range target.Params {
		args = append(args, f.PopTyped(block, int64(p.Type.DwordSize()), tr.types.ToIR(p.Type)))
	}

	if target.Native != nil {
		argTypes := append([]types.Type{t.VoidPtr}, paramTypesOf(tr, target)...)
		callee := tr.module.DeclareExtern(target.Native.Symbol, t.Void, argTypes...)
		block.NewCall(callee, args...)
		return nil
	}

	paramTypes, paramNames := tr.nativeSignature(target)
	callee := tr.module.DeclareFunc(nativeSymbol(target.ID), tr.nativeReturnType(target), paramNames, paramTypes)
	block.NewCall(callee, args...)
	return nil
}

// emitFree lowers FREE's release-or-destruct contract. A reference-counted
// type calls its release behavior, when one is registered; any other type
// calls its destructor (if any) and then frees the backing memory.
func (tr *Translator) emitFree(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	typeID, offset := in.TypeIDAndImm32()
	ot := tr.types.ObjectTypeFor(typeID)

	ptr := f.Load(block, stackframe.Offset(offset), t.VoidPtr)

	if ot.Counted {
		if ot.ReleaseFuncIndex == 0 {
			return nil
		}
		return tr.dispatchMethod(fc, ot.ReleaseFuncIndex, ptr)
	}

	if ot.DestructFuncIndex != 0 {
		if err := tr.dispatchMethod(fc, ot.DestructFuncIndex, ptr); err != nil {
			return err
		}
	}
	block.NewCall(tr.helpers.Free, ptr)
	return nil
}

// emitRefCpy lowers REFCPY: pop the new reference, addref it when the type
// is counted, then store it into the destination slot.
func (tr *Translator) emitRefCpy(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	typeID, offset := in.TypeIDAndImm32()
	ot := tr.types.ObjectTypeFor(typeID)

	ptr := f.PopTyped(block, int64(t.PtrDwords()), t.VoidPtr)
	tr.emitAddRef(fc, ot, ptr)
	f.Store(block, stackframe.Offset(offset), ptr)
	return nil
}

// emitRefCpyV lowers RefCpyV, the value-register-sourced twin of REFCPY.
func (tr *Translator) emitRefCpyV(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	typeID, offset := in.TypeIDAndImm32()
	ot := tr.types.ObjectTypeFor(typeID)

	ptr := fc.loadValue(block, t.VoidPtr)
	tr.emitAddRef(fc, ot, ptr)
	f.Store(block, stackframe.Offset(offset), ptr)
	return nil
}

// emitAddRef calls ot's addref behavior on ref through the
// call_object_method trampoline — the indirection this port uses for addref
// specifically, since the callee is resolved from the call table rather
// than known up front the way release/destruct's direct dispatch is.
func (tr *Translator) emitAddRef(fc *funcCtx, ot *api.ObjectType, ref value.Value) {
	if !ot.Counted || ot.AddRefFuncIndex == 0 || int(ot.AddRefFuncIndex) >= len(tr.callTable) {
		return
	}
	target := tr.callTable[ot.AddRefFuncIndex]
	block := fc.cur
	t := tr.module.Types

	var callee value.Value
	if target.Native != nil {
		callee = tr.module.DeclareExtern(target.Native.Symbol, t.Void, t.VoidPtr)
	} else {
		paramTypes, paramNames := tr.nativeSignature(target)
		callee = tr.module.DeclareFunc(nativeSymbol(target.ID), tr.nativeReturnType(target), paramNames, paramTypes)
	}
	methodPtr := block.NewBitCast(callee, t.VoidPtr)
	block.NewCall(tr.helpers.CallObjectMethod, ref, methodPtr)
}

func isMiscOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpNop, bcio.OpSUSPEND, bcio.OpJitEntry, bcio.OpChkNullV, bcio.OpChkRef, bcio.OpChkRefS,
		bcio.OpAllocMem, bcio.OpSetListSize, bcio.OpPshListElmnt:
		return true
	default:
		return false
	}
}

// emitMiscOp lowers the remaining opcodes that carry no meaningful
// control-flow or arithmetic effect once already running as compiled code:
// SUSPEND is the interpreter's cooperative yield check, meaningless inside a
// translated function; JitEntry only marks a recommended re-entry point for
// the interpreter; ChkNullV/ChkRef/ChkRefS are preserved as no-ops, per the
// documented decision not to guess at their historical semantics.
func (tr *Translator) emitMiscOp(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	switch in.Op {
	case bcio.OpNop, bcio.OpSUSPEND, bcio.OpJitEntry, bcio.OpChkNullV, bcio.OpChkRef, bcio.OpChkRefS:
		// no-op

	case bcio.OpAllocMem:
		block.NewCall(tr.helpers.Alloc, t.ConstIptr(0))

	case bcio.OpSetListSize:
		// The original addresses the list object through a stack-relative
		// operand plus a separate (offset, size) dword pair; this decode's
		// (type-id, Imm32) pair can't carry all three, so the type-id is
		// ignored, the list pointer comes from the object register instead
		// (as for PshListElmnt, the other opcode that addresses
		// list-under-construction state) and imm is taken as the element
		// count to store at its header.
		_, imm := in.TypeIDAndImm32()
		dst := fc.loadObject(block, types.NewPointer(t.I32))
		block.NewStore(irgen.ConstI32(imm), dst)

	case bcio.OpPshListElmnt:
		base := fc.loadObject(block, t.VoidPtr)
		idx := irgen.ConstI64(int64(in.Imm32()))
		elem := block.NewGetElementPtr(t.I8, base, idx)
		f.Push(block, elem, int64(t.PtrDwords()))
	}
	return nil
}
