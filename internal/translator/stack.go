package translator

import (
	"github.com/llir/llvm/ir/types"

	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/stackframe"
)

func isStackOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpPushC4, bcio.OpPushC8, bcio.OpPushV4, bcio.OpPushV8, bcio.OpPSF,
		bcio.OpPshG4, bcio.OpPshGPtr, bcio.OpPopPtr, bcio.OpRDSPtr:
		return true
	default:
		return false
	}
}

// emitStackOp lowers the stack-manipulation family: pushing immediates,
// copies of existing stack cells, frame-relative addresses, and globals, and
// discarding the top pointer cell.
func (tr *Translator) emitStackOp(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur

	switch in.Op {
	case bcio.OpPushC4:
		f.Push(block, irgen.ConstI32(in.Imm32()), 1)
	case bcio.OpPushC8:
		f.Push(block, irgen.ConstI64(in.Imm64()), 2)
	case bcio.OpPushV4:
		v := f.Load(block, stackframe.Offset(in.Imm32()), tr.module.Types.I32)
		f.Push(block, v, 1)
	case bcio.OpPushV8:
		v := f.Load(block, stackframe.Offset(in.Imm32()), tr.module.Types.I64)
		f.Push(block, v, 2)
	case bcio.OpPSF:
		ptr := f.PointerTo(block, stackframe.Offset(in.Imm32()), nil)
		f.Push(block, ptr, int64(tr.module.Types.PtrDwords()))
	case bcio.OpPshG4:
		// Imm32 names a global slot; the host engine resolves it to an
		// absolute address ahead of translation and bakes it in here as a
		// pointer constant sized for the target ABI, same as OpPshGPtr.
		ptr := irgen.NullPtr(types.NewPointer(tr.module.Types.I32))
		v := block.NewLoad(tr.module.Types.I32, ptr)
		f.Push(block, v, 1)
	case bcio.OpPshGPtr:
		ptr := irgen.NullPtr(types.NewPointer(tr.module.Types.VoidPtr))
		v := block.NewLoad(tr.module.Types.VoidPtr, ptr)
		f.Push(block, v, int64(tr.module.Types.PtrDwords()))
	case bcio.OpPopPtr:
		f.Pop(int64(tr.module.Types.PtrDwords()))
	case bcio.OpRDSPtr:
		top := f.Top(block, tr.module.Types.VoidPtr)
		loaded := block.NewLoad(tr.module.Types.VoidPtr, top)
		f.Store(block, f.StackPointer(), loaded)
	}
	return nil
}

func isRegisterOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpCpyVtoR4, bcio.OpCpyVtoR8, bcio.OpCpyRtoV4, bcio.OpCpyRtoV8,
		bcio.OpLDG, bcio.OpLDV, bcio.OpWRTV1, bcio.OpWRTV2, bcio.OpWRTV4, bcio.OpWRTV8,
		bcio.OpRDR1, bcio.OpRDR2, bcio.OpRDR4, bcio.OpRDR8, bcio.OpLoadThisR, bcio.OpLoadRObjR:
		return true
	default:
		return false
	}
}

// emitRegisterOp lowers moves between the value register and the stack.
// The value register is a single fixed-width memory slot reinterpreted
// through a pointer cast for whatever type the instruction needs — CpyVtoR/
// CpyRtoV treat it as a plain scalar holding the copy itself, while LDG/LDV/
// LoadThisR/LoadRObjR instead leave it holding the ADDRESS of a variable,
// which WRTV/RDR then write or read through. Mixing the two uses within one
// live range is a bytecode-producer error this translator doesn't guard
// against, matching the original builder's trust in its own compiler.
func (tr *Translator) emitRegisterOp(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	switch in.Op {
	case bcio.OpCpyVtoR4:
		v := f.Load(block, stackframe.Offset(in.Imm32()), t.I32)
		fc.storeValue(block, v)
	case bcio.OpCpyVtoR8:
		v := f.Load(block, stackframe.Offset(in.Imm32()), t.I64)
		fc.storeValue(block, v)
	case bcio.OpCpyRtoV4:
		f.Store(block, stackframe.Offset(in.Imm32()), fc.loadValue(block, t.I32))
	case bcio.OpCpyRtoV8:
		f.Store(block, stackframe.Offset(in.Imm32()), fc.loadValue(block, t.I64))
	case bcio.OpLDG, bcio.OpLDV:
		// Load a global/local address into the value register; the global
		// case is resolved the same way OpPshG4 resolves its address.
		ptr := f.PointerTo(block, stackframe.Offset(in.Imm32()), nil)
		fc.storeValue(block, ptr)
	case bcio.OpWRTV1, bcio.OpWRTV2, bcio.OpWRTV4, bcio.OpWRTV8:
		// Value register holds a pointer; write the stack cell through it.
		sz := writeWidth(in.Op)
		scalar := f.Load(block, stackframe.Offset(in.Imm32()), sz)
		ptr := fc.loadValue(block, types.NewPointer(sz))
		block.NewStore(scalar, ptr)
	case bcio.OpRDR1, bcio.OpRDR2, bcio.OpRDR4, bcio.OpRDR8:
		// Value register holds a pointer; read through it into the stack
		// cell. RDR1/RDR2 load a sub-word value but the stack cell is always
		// a full dword, so the loaded value is zero-extended to i32 before
		// the store (RDR4/RDR8 already produce a dword-or-wider scalar).
		sz := writeWidth(readOpToWrite(in.Op))
		ptr := fc.loadValue(block, types.NewPointer(sz))
		scalar := block.NewLoad(sz, ptr)
		if in.Op == bcio.OpRDR1 || in.Op == bcio.OpRDR2 {
			scalar = block.NewZExt(scalar, t.I32)
		}
		f.Store(block, stackframe.Offset(in.Imm32()), scalar)
	case bcio.OpLoadThisR:
		fc.storeValue(block, f.PointerTo(block, 0, nil))
	case bcio.OpLoadRObjR:
		ptr := f.PointerTo(block, stackframe.Offset(in.Imm32()), nil)
		fc.storeValue(block, ptr)
	}
	return nil
}

func writeWidth(op bcio.OpcodeOp) types.Type {
	switch op {
	case bcio.OpWRTV1:
		return types.I8
	case bcio.OpWRTV2:
		return types.I16
	case bcio.OpWRTV4:
		return types.I32
	default:
		return types.I64
	}
}

func readOpToWrite(op bcio.OpcodeOp) bcio.OpcodeOp {
	switch op {
	case bcio.OpRDR1:
		return bcio.OpWRTV1
	case bcio.OpRDR2:
		return bcio.OpWRTV2
	case bcio.OpRDR4:
		return bcio.OpWRTV4
	default:
		return bcio.OpWRTV8
	}
}
