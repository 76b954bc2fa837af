// Package stackframe models the VM stack of a single translated function:
// parameter slots, local variable region, and temporary push/pop area,
// addressed through a compile-time-only abstract stack pointer. Grounded
// verbatim on the original project's StackFrame (detail/codegen/stackframe.
// {hpp,cpp}): same field layout, same addressing arithmetic, same
// parameter-allocation order.
package stackframe

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/errs"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/typemap"
)

// Offset is a stack offset as defined within the bytecode (AsStackOffset in
// the original). offset <= 0 addresses parameters; 0 < offset <= total
// addresses the storage array, growing downward in VM semantics and upward
// in this physical layout (see PointerTo).
type Offset int64

// Parameter is one entry of the parameter map: where an incoming native
// argument lives once Setup spills it to its own alloca.
type Parameter struct {
	ArgumentIndex int
	Alloca        *ir.InstAlloca
	ScriptTypeID  int32
	DebugName     string
}

// Frame is a per-function, IR-emission-time model of the VM stack. Owned
// exclusively by one translation of one function; destroyed when that
// function's IR is finalized.
type Frame struct {
	fn    *api.ScriptFunction
	types *typemap.Mapper
	t     *irgen.Types

	variableSpace int64
	stackSpace    int64
	totalSpace    int64

	storage    *ir.InstAlloca
	parameters map[Offset]*Parameter

	sp Offset
}

// New returns a Frame for fn. Call Setup before emitting any opcode IR.
func New(fn *api.ScriptFunction, tm *typemap.Mapper, t *irgen.Types) *Frame {
	variableSpace := int64(fn.VariableSpace)
	// 2 pointer slots reserved for exception handling, per the VM's own
	// stack reservation (documented as RESERVED = 2*ptr_dwords in §3).
	reserved := int64(2 * t.PtrDwords())
	stackSpace := int64(fn.StackNeeded) - variableSpace + reserved
	return &Frame{
		fn:            fn,
		types:         tm,
		t:             t,
		variableSpace: variableSpace,
		stackSpace:    stackSpace,
		totalSpace:    variableSpace + stackSpace,
		parameters:    make(map[Offset]*Parameter),
	}
}

func (f *Frame) VariableSpace() int64  { return f.variableSpace }
func (f *Frame) StackSpace() int64     { return f.stackSpace }
func (f *Frame) TotalSpace() int64     { return f.totalSpace }
func (f *Frame) StackPointer() Offset  { return f.sp }
func (f *Frame) EmptyStack() bool      { return f.sp == Offset(f.variableSpace) }

// Setup allocates the storage array, allocates one alloca per parameter,
// stores incoming arguments into them, and sets the stack pointer to
// variableSpace. If the function returns on stack, the first parameter slot
// is named "stackRetPtr". If the function is a method, the next slot is
// "thisPtr". Then each script parameter follows in declaration order.
func (f *Frame) Setup(entry *ir.Block, irFunc *ir.Func) {
	arrType := types.NewArray(uint64(f.totalSpace), f.t.I32.(*types.IntType))
	f.storage = entry.NewAlloca(arrType)
	f.storage.SetName("storage")

	stackOffset := Offset(0)
	argIdx := 0
	allocate := func(st api.ScriptType, name string) {
		irType := f.types.ToIR(st)
		alloca := entry.NewAlloca(irType)
		alloca.SetName(name)
		entry.NewStore(irFunc.Params[argIdx], alloca)

		f.parameters[stackOffset] = &Parameter{
			ArgumentIndex: argIdx,
			Alloca:        alloca,
			ScriptTypeID:  st.TypeID,
			DebugName:     name,
		}

		stackOffset -= Offset(st.DwordSize())
		argIdx++
	}

	if f.fn.Flags.Has(api.FlagDoesReturnOnStack) {
		allocate(f.fn.ReturnType, "stackRetPtr")
	}
	if f.fn.IsMethod() {
		allocate(api.ScriptType{Kind: api.KindObject, TypeID: f.fn.Object.TypeID}, "thisPtr")
	}
	for _, p := range f.fn.Params {
		allocate(p.Type, p.Name)
	}

	f.sp = Offset(f.variableSpace)
}

// Finalize asserts the temporary stack is empty (stack_pointer ==
// variable_space), as required at every function return and at the end of
// translation.
func (f *Frame) Finalize() error {
	if !f.EmptyStack() {
		return internalErr(fmt.Sprintf("stack not empty at Finalize: sp=%d variableSpace=%d", f.sp, f.variableSpace))
	}
	return nil
}

// CheckBounds asserts variable_space <= stack_pointer <= total_space.
func (f *Frame) CheckBounds() error {
	if f.sp < Offset(f.variableSpace) || f.sp > Offset(f.totalSpace) {
		return internalErr(fmt.Sprintf("stack pointer %d out of bounds [%d, %d]", f.sp, f.variableSpace, f.totalSpace))
	}
	return nil
}

// ClampToVariableSpace permits factory-call opcodes (ALLOC, system calls
// that pop into the parameter region) to pop into the parameter region
// without tripping the lower bound. Caller responsibility, per §4.2.
func (f *Frame) ClampToVariableSpace() {
	if f.sp < Offset(f.variableSpace) {
		f.sp = Offset(f.variableSpace)
	}
}

// Push stores value at the new stack pointer after advancing it by dwords.
func (f *Frame) Push(block *ir.Block, value value.Value, dwords int64) {
	f.sp += Offset(dwords)
	f.Store(block, f.sp, value)
}

// Pop retracts the stack pointer by dwords without reading the popped slot.
func (f *Frame) Pop(dwords int64) {
	f.sp -= Offset(dwords)
}

// PopTyped loads the current top of stack as typ, then retracts the stack
// pointer by dwords.
func (f *Frame) PopTyped(block *ir.Block, dwords int64, typ types.Type) value.Value {
	v := f.Load(block, f.sp, typ)
	f.Pop(dwords)
	return v
}

// Top loads the current top-of-stack value as typ without moving the stack
// pointer.
func (f *Frame) Top(block *ir.Block, typ types.Type) value.Value {
	return f.Load(block, f.sp, typ)
}

// Load reads offset as typ, type-punning through a bitcast at the computed
// address.
func (f *Frame) Load(block *ir.Block, offset Offset, typ types.Type) value.Value {
	ptr := f.PointerTo(block, offset, typ)
	return block.NewLoad(typ, ptr)
}

// Store writes value to offset, type-punning through a bitcast at the
// computed address.
func (f *Frame) Store(block *ir.Block, offset Offset, v value.Value) {
	ptr := f.PointerTo(block, offset, v.Type())
	block.NewStore(v, ptr)
}

// PointerTo computes the physical backend pointer for a VM stack offset.
// For offset <= 0 the location is the parameter's own alloca; for offset > 0
// it is `&storage[total_space - offset]`. When pointee is non-nil the raw
// storage pointer (always i32*) is bitcast to a pointer to pointee.
func (f *Frame) PointerTo(block *ir.Block, offset Offset, pointee types.Type) value.Value {
	if offset <= 0 {
		param, ok := f.parameters[offset]
		if !ok {
			panic(internalErr(fmt.Sprintf("no parameter registered at offset %d", offset)))
		}
		if pointee != nil && !types.Equal(param.Alloca.ElemType, pointee) {
			return block.NewBitCast(param.Alloca, types.NewPointer(pointee))
		}
		return param.Alloca
	}

	realOffset := int64(f.totalSpace) - int64(offset)
	if realOffset < 0 || realOffset > f.totalSpace {
		panic(internalErr(fmt.Sprintf("real offset %d out of storage bounds [0, %d]", realOffset, f.totalSpace)))
	}

	idx := constant.NewInt(types.I64, realOffset)
	zero := constant.NewInt(types.I64, 0)
	gep := block.NewGetElementPtr(f.storage.ElemType, f.storage, zero, idx)
	if pointee == nil || types.Equal(f.t.I32, pointee) {
		return gep
	}
	return block.NewBitCast(gep, types.NewPointer(pointee))
}

// StorageAlloca exposes the backing storage alloca, e.g. for debug-info
// attachment.
func (f *Frame) StorageAlloca() *ir.InstAlloca { return f.storage }

func internalErr(condition string) error {
	return &errs.InternalConsistency{Condition: condition, File: "internal/stackframe/stackframe.go"}
}
