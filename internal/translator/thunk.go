package translator

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/irgen"
)

// vmRegistersType returns the one VmRegisters struct layout every thunk in
// this module shares: the register-file the interpreter populates before
// jumping into compiled code, per §6's VM entry thunk ABI. The field order
// is bit-exact with the spec, not a from-scratch layout:
//
//	{ i32* program_pointer, i32* stack_frame_pointer, i32* stack_pointer,
//	  iptr value_register, void* object_register, void* object_type,
//	  i1 do_process_suspend, void* ctx }
func (tr *Translator) vmRegistersType() *types.StructType {
	if tr.vmRegsCache != nil {
		return tr.vmRegsCache
	}
	t := tr.module.Types
	st := types.NewStruct(
		types.NewPointer(t.I32), // 0: program_pointer
		types.NewPointer(t.I32), // 1: stack_frame_pointer
		types.NewPointer(t.I32), // 2: stack_pointer
		t.Iptr,                  // 3: value_register
		t.VoidPtr,               // 4: object_register
		t.VoidPtr,               // 5: object_type
		t.I1,                    // 6: do_process_suspend
		t.VoidPtr,               // 7: ctx
	)
	st.TypeName = "VmRegisters"
	tr.vmRegsCache = st
	return st
}

// buildThunk emits the VM entry thunk for fn: the symbol ModuleAssembler
// publishes into the caller's FnPtrSlot. Per §4.4's five-step algorithm, it
// (1) reads the stack frame pointer out of the register file, (2) pops
// native's arguments out of it in native ABI order, (3) calls native, (4)
// stores any scalar/object result back into the register file, and (5)
// overwrites the program pointer with retOffset — the bytecode offset of
// this function's (last) RET, recorded during pass two — before returning
// to the interpreter.
func (tr *Translator) buildThunk(fn *api.ScriptFunction, native *ir.Func, retOffset uint32) *ir.Func {
	t := tr.module.Types
	vmRegsType := tr.vmRegistersType()
	vmRegsPtr := types.NewPointer(vmRegsType)

	thunk := tr.module.DeclareFunc(ThunkSymbol(fn.ID), t.Void, []string{"regs", "jitArg"}, []types.Type{vmRegsPtr, t.I64})
	entry := thunk.NewBlock("entry")
	regs := thunk.Params[0]

	frame := entry.NewLoad(types.NewPointer(t.I32), fieldPtr(entry, vmRegsType, regs, 1))
	valueRegPtr := fieldPtr(entry, vmRegsType, regs, 3)
	objectRegPtr := fieldPtr(entry, vmRegsType, regs, 4)

	cumulative := int64(0)
	pop := func(irType types.Type, dwords int64) value.Value {
		elemPtr := entry.NewGetElementPtr(t.I32, frame, irgen.ConstI64(cumulative))
		typed := entry.NewBitCast(elemPtr, types.NewPointer(irType))
		v := entry.NewLoad(irType, typed)
		cumulative += dwords
		return v
	}

	var args []value.Value
	if fn.Flags.Has(api.FlagDoesReturnOnStack) {
		args = append(args, pop(tr.types.ToIR(fn.ReturnType), int64(t.PtrDwords())))
	}
	if fn.IsMethod() {
		thisType := tr.types.ToIR(api.ScriptType{Kind: api.KindObject, TypeID: fn.Object.TypeID})
		args = append(args, pop(thisType, int64(t.PtrDwords())))
	}
	for _, p := range fn.Params {
		args = append(args, pop(tr.types.ToIR(p.Type), int64(p.Type.DwordSize())))
	}

	result := entry.NewCall(native, args...)
	switch {
	case fn.Flags.Has(api.FlagDoesReturnOnStack):
		// native already wrote its result through the sret pointer popped
		// above; nothing further to store.
	case fn.ReturnType.Kind == api.KindObject:
		obj := entry.NewBitCast(result, t.VoidPtr)
		entry.NewStore(obj, objectRegPtr)
	case fn.ReturnType.Kind != api.KindVoid:
		entry.NewStore(widenToI64(entry, result, tr.types.ToIR(fn.ReturnType)), valueRegPtr)
	}

	programPtrField := fieldPtr(entry, vmRegsType, regs, 0)
	retAddr := entry.NewIntToPtr(constant.NewInt(types.I64, int64(retOffset)), types.NewPointer(t.I32))
	entry.NewStore(retAddr, programPtrField)
	entry.NewRet(nil)
	return thunk
}

func fieldPtr(block *ir.Block, st *types.StructType, base value.Value, idx int64) value.Value {
	zero := constant.NewInt(types.I32, 0)
	i := constant.NewInt(types.I32, idx)
	return block.NewGetElementPtr(st, base, zero, i)
}

// widenToI64 adapts a native return value to the register file's single
// 64-bit value_register slot, matching the VM's own value register width.
func widenToI64(block *ir.Block, v value.Value, irType types.Type) value.Value {
	switch tt := irType.(type) {
	case *types.IntType:
		if tt.BitSize == 64 {
			return v
		}
		return block.NewZExt(v, types.I64)
	case *types.FloatType:
		if tt.Kind == types.FloatKindDouble {
			return block.NewBitCast(v, types.I64)
		}
		return block.NewBitCast(block.NewFPExt(v, types.Double), types.I64)
	case *types.PointerType:
		return block.NewPtrToInt(v, types.I64)
	default:
		return constant.NewInt(types.I64, 0)
	}
}
