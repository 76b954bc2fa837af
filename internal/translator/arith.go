package translator

import (
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/stackframe"
)

func isArithOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpADDi, bcio.OpSUBi, bcio.OpMULi, bcio.OpDIVi, bcio.OpMODi, bcio.OpDIVu, bcio.OpMODu,
		bcio.OpNEGi, bcio.OpBNOT, bcio.OpBAND, bcio.OpBOR, bcio.OpBXOR, bcio.OpBSLL, bcio.OpBSRL, bcio.OpBSRA,
		bcio.OpADDf, bcio.OpSUBf, bcio.OpMULf, bcio.OpDIVf, bcio.OpNEGf,
		bcio.OpADDi64, bcio.OpSUBi64, bcio.OpMULi64, bcio.OpDIVi64, bcio.OpMODi64, bcio.OpDIVu64, bcio.OpMODu64,
		bcio.OpADDd, bcio.OpSUBd, bcio.OpMULd, bcio.OpDIVd, bcio.OpNEGd,
		bcio.OpADDIi, bcio.OpSUBIi, bcio.OpMULIi,
		bcio.OpINCi8, bcio.OpDECi8, bcio.OpINCi16, bcio.OpDECi16, bcio.OpINCi, bcio.OpDECi,
		bcio.OpINCi64, bcio.OpDECi64, bcio.OpINCf, bcio.OpDECf, bcio.OpINCd, bcio.OpDECd:
		return true
	default:
		return false
	}
}

func isCastOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpI32ToI8, bcio.OpI32ToI16, bcio.OpI32ToI64, bcio.OpI64ToI32,
		bcio.OpI32ToF32, bcio.OpF32ToI32, bcio.OpI32ToF64, bcio.OpF64ToI32,
		bcio.OpF32ToF64, bcio.OpF64ToF32, bcio.OpI64ToF64, bcio.OpF64ToI64,
		bcio.OpU32ToF32, bcio.OpF32ToU32:
		return true
	default:
		return false
	}
}

func isCompareOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpCMPi, bcio.OpCMPu, bcio.OpCMPi64, bcio.OpCMPu64, bcio.OpCMPf, bcio.OpCMPd,
		bcio.OpCMPIi, bcio.OpCMPIf, bcio.OpCMPIu:
		return true
	default:
		return false
	}
}

func isTestOp(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpTZ, bcio.OpTNZ, bcio.OpTS, bcio.OpTNS, bcio.OpTP, bcio.OpTNP:
		return true
	default:
		return false
	}
}

// emitArithOp lowers arithmetic, casts, comparisons, and the flag-test
// family. Comparisons write a tri-state (-1/0/1) sign result to fc.cmpResult
// instead of the stack, matching the original VM's CMP/Test split: CMP*
// computes the relation, the following TZ/TNZ/TS/TNS/TP/TNP or a direct
// branch reads it. A test writes its 0/1 outcome back to fc.cmpResult, also
// without touching the stack.
func (tr *Translator) emitArithOp(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	switch in.Op {
	case bcio.OpADDi, bcio.OpSUBi, bcio.OpMULi, bcio.OpDIVi, bcio.OpMODi, bcio.OpDIVu, bcio.OpMODu,
		bcio.OpBAND, bcio.OpBOR, bcio.OpBXOR, bcio.OpBSLL, bcio.OpBSRL, bcio.OpBSRA:
		lhs, rhs := popPair(f, block, t.I32, 1)
		f.Push(block, intBinOp(block, in.Op, lhs, rhs), 1)

	case bcio.OpADDf, bcio.OpSUBf, bcio.OpMULf, bcio.OpDIVf:
		lhs, rhs := popPair(f, block, t.F32, 1)
		f.Push(block, floatBinOp(block, in.Op, lhs, rhs), 1)

	case bcio.OpADDi64, bcio.OpSUBi64, bcio.OpMULi64, bcio.OpDIVi64, bcio.OpMODi64, bcio.OpDIVu64, bcio.OpMODu64:
		lhs, rhs := popPair(f, block, t.I64, 2)
		f.Push(block, intBinOp(block, i64Equivalent(in.Op), lhs, rhs), 2)

	case bcio.OpADDd, bcio.OpSUBd, bcio.OpMULd, bcio.OpDIVd:
		lhs, rhs := popPair(f, block, t.F64, 2)
		f.Push(block, floatBinOp(block, f64Equivalent(in.Op), lhs, rhs), 2)

	case bcio.OpNEGi:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewSub(irgen.ConstI32(0), v), 1)
	case bcio.OpNEGf:
		v := f.PopTyped(block, 1, t.F32)
		f.Push(block, block.NewFSub(irgen.ConstF32(0), v), 1)
	case bcio.OpNEGd:
		v := f.PopTyped(block, 2, t.F64)
		f.Push(block, block.NewFSub(irgen.ConstF64(0), v), 2)
	case bcio.OpBNOT:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewXor(v, irgen.ConstI32(-1)), 1)

	case bcio.OpADDIi, bcio.OpSUBIi, bcio.OpMULIi:
		v := f.Top(block, t.I32)
		imm := irgen.ConstI32(in.Imm32())
		f.Store(block, f.StackPointer(), intBinOp(block, immEquivalent(in.Op), v, imm))

	case bcio.OpINCi8, bcio.OpDECi8:
		incDecThroughRegister(block, fc, types.I8, in.Op == bcio.OpINCi8)
	case bcio.OpINCi16, bcio.OpDECi16:
		incDecThroughRegister(block, fc, types.I16, in.Op == bcio.OpINCi16)
	case bcio.OpINCi, bcio.OpDECi:
		incDecThroughRegister(block, fc, t.I32, in.Op == bcio.OpINCi)
	case bcio.OpINCi64, bcio.OpDECi64:
		incDecThroughRegister(block, fc, t.I64, in.Op == bcio.OpINCi64)
	case bcio.OpINCf, bcio.OpDECf:
		incDecThroughRegister(block, fc, t.F32, in.Op == bcio.OpINCf)
	case bcio.OpINCd, bcio.OpDECd:
		incDecThroughRegister(block, fc, t.F64, in.Op == bcio.OpINCd)

	case bcio.OpI32ToI8:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewSExt(block.NewTrunc(v, types.I8), t.I32), 1)
	case bcio.OpI32ToI16:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewSExt(block.NewTrunc(v, types.I16), t.I32), 1)
	case bcio.OpI32ToI64:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewSExt(v, t.I64), 2)
	case bcio.OpI64ToI32:
		v := f.PopTyped(block, 2, t.I64)
		f.Push(block, block.NewTrunc(v, t.I32), 1)
	case bcio.OpI32ToF32:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewSIToFP(v, t.F32), 1)
	case bcio.OpU32ToF32:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewUIToFP(v, t.F32), 1)
	case bcio.OpF32ToI32:
		v := f.PopTyped(block, 1, t.F32)
		f.Push(block, block.NewFPToSI(v, t.I32), 1)
	case bcio.OpF32ToU32:
		v := f.PopTyped(block, 1, t.F32)
		f.Push(block, block.NewFPToUI(v, t.I32), 1)
	case bcio.OpI32ToF64:
		v := f.PopTyped(block, 1, t.I32)
		f.Push(block, block.NewSIToFP(v, t.F64), 2)
	case bcio.OpF64ToI32:
		v := f.PopTyped(block, 2, t.F64)
		f.Push(block, block.NewFPToSI(v, t.I32), 1)
	case bcio.OpF32ToF64:
		v := f.PopTyped(block, 1, t.F32)
		f.Push(block, block.NewFPExt(v, t.F64), 2)
	case bcio.OpF64ToF32:
		v := f.PopTyped(block, 2, t.F64)
		f.Push(block, block.NewFPTrunc(v, t.F32), 1)
	case bcio.OpI64ToF64:
		v := f.PopTyped(block, 2, t.I64)
		f.Push(block, block.NewSIToFP(v, t.F64), 2)
	case bcio.OpF64ToI64:
		v := f.PopTyped(block, 2, t.F64)
		f.Push(block, block.NewFPToSI(v, t.I64), 2)

	case bcio.OpCMPi:
		lhs, rhs := popPair(f, block, t.I32, 1)
		fc.cmpResult = signOf(block, block.NewICmp(enum.IPredSLT, lhs, rhs), block.NewICmp(enum.IPredSGT, lhs, rhs))
	case bcio.OpCMPu:
		lhs, rhs := popPair(f, block, t.I32, 1)
		fc.cmpResult = signOf(block, block.NewICmp(enum.IPredULT, lhs, rhs), block.NewICmp(enum.IPredUGT, lhs, rhs))
	case bcio.OpCMPi64:
		lhs, rhs := popPair(f, block, t.I64, 2)
		fc.cmpResult = signOf(block, block.NewICmp(enum.IPredSLT, lhs, rhs), block.NewICmp(enum.IPredSGT, lhs, rhs))
	case bcio.OpCMPu64:
		lhs, rhs := popPair(f, block, t.I64, 2)
		fc.cmpResult = signOf(block, block.NewICmp(enum.IPredULT, lhs, rhs), block.NewICmp(enum.IPredUGT, lhs, rhs))
	case bcio.OpCMPf:
		lhs, rhs := popPair(f, block, t.F32, 1)
		fc.cmpResult = signOf(block, block.NewFCmp(enum.FPredOLT, lhs, rhs), block.NewFCmp(enum.FPredOGT, lhs, rhs))
	case bcio.OpCMPd:
		lhs, rhs := popPair(f, block, t.F64, 2)
		fc.cmpResult = signOf(block, block.NewFCmp(enum.FPredOLT, lhs, rhs), block.NewFCmp(enum.FPredOGT, lhs, rhs))
	case bcio.OpCMPIi:
		lhs := f.PopTyped(block, 1, t.I32)
		rhs := irgen.ConstI32(in.Imm32())
		fc.cmpResult = signOf(block, block.NewICmp(enum.IPredSLT, lhs, rhs), block.NewICmp(enum.IPredSGT, lhs, rhs))
	case bcio.OpCMPIu:
		lhs := f.PopTyped(block, 1, t.I32)
		rhs := irgen.ConstI32(in.Imm32())
		fc.cmpResult = signOf(block, block.NewICmp(enum.IPredULT, lhs, rhs), block.NewICmp(enum.IPredUGT, lhs, rhs))
	case bcio.OpCMPIf:
		lhs := f.PopTyped(block, 1, t.F32)
		rhs := irgen.ConstF32(float32FromBits(in.Imm32()))
		fc.cmpResult = signOf(block, block.NewFCmp(enum.FPredOLT, lhs, rhs), block.NewFCmp(enum.FPredOGT, lhs, rhs))

	case bcio.OpTZ:
		setTestResult(fc, block, t, block.NewICmp(enum.IPredEQ, fc.cmpResultOr(), irgen.ConstI32(0)))
	case bcio.OpTNZ:
		setTestResult(fc, block, t, block.NewICmp(enum.IPredNE, fc.cmpResultOr(), irgen.ConstI32(0)))
	case bcio.OpTS:
		setTestResult(fc, block, t, block.NewICmp(enum.IPredSLT, fc.cmpResultOr(), irgen.ConstI32(0)))
	case bcio.OpTNS:
		setTestResult(fc, block, t, block.NewICmp(enum.IPredSGE, fc.cmpResultOr(), irgen.ConstI32(0)))
	case bcio.OpTP:
		setTestResult(fc, block, t, block.NewICmp(enum.IPredSGT, fc.cmpResultOr(), irgen.ConstI32(0)))
	case bcio.OpTNP:
		setTestResult(fc, block, t, block.NewICmp(enum.IPredSLE, fc.cmpResultOr(), irgen.ConstI32(0)))
	}
	return nil
}

func popPair(f *stackframe.Frame, block *ir.Block, typ types.Type, dwords int64) (value.Value, value.Value) {
	rhs := f.PopTyped(block, dwords, typ)
	lhs := f.PopTyped(block, dwords, typ)
	return lhs, rhs
}

func setTestResult(fc *funcCtx, block *ir.Block, t *irgen.Types, cond value.Value) {
	fc.cmpResult = block.NewZExt(cond, t.I32)
}

func signOf(block *ir.Block, lt, gt value.Value) value.Value {
	negOne := irgen.ConstI32(-1)
	zero := irgen.ConstI32(0)
	one := irgen.ConstI32(1)
	gtOrZero := block.NewSelect(gt, one, zero)
	return block.NewSelect(lt, negOne, gtOrZero)
}

func intBinOp(block *ir.Block, op bcio.OpcodeOp, lhs, rhs value.Value) value.Value {
	switch op {
	case bcio.OpADDi, bcio.OpADDi64:
		return block.NewAdd(lhs, rhs)
	case bcio.OpSUBi, bcio.OpSUBi64:
		return block.NewSub(lhs, rhs)
	case bcio.OpMULi, bcio.OpMULi64:
		return block.NewMul(lhs, rhs)
	case bcio.OpDIVi, bcio.OpDIVi64:
		return block.NewSDiv(lhs, rhs)
	case bcio.OpMODi, bcio.OpMODi64:
		return block.NewSRem(lhs, rhs)
	case bcio.OpDIVu, bcio.OpDIVu64:
		return block.NewUDiv(lhs, rhs)
	case bcio.OpMODu, bcio.OpMODu64:
		return block.NewURem(lhs, rhs)
	case bcio.OpBAND:
		return block.NewAnd(lhs, rhs)
	case bcio.OpBOR:
		return block.NewOr(lhs, rhs)
	case bcio.OpBXOR:
		return block.NewXor(lhs, rhs)
	case bcio.OpBSLL:
		return block.NewShl(lhs, rhs)
	case bcio.OpBSRL:
		return block.NewLShr(lhs, rhs)
	case bcio.OpBSRA:
		return block.NewAShr(lhs, rhs)
	default:
		panic("translator: unhandled integer binary opcode")
	}
}

func floatBinOp(block *ir.Block, op bcio.OpcodeOp, lhs, rhs value.Value) value.Value {
	switch op {
	case bcio.OpADDf, bcio.OpADDd:
		return block.NewFAdd(lhs, rhs)
	case bcio.OpSUBf, bcio.OpSUBd:
		return block.NewFSub(lhs, rhs)
	case bcio.OpMULf, bcio.OpMULd:
		return block.NewFMul(lhs, rhs)
	case bcio.OpDIVf, bcio.OpDIVd:
		return block.NewFDiv(lhs, rhs)
	default:
		panic("translator: unhandled float binary opcode")
	}
}

func i64Equivalent(op bcio.OpcodeOp) bcio.OpcodeOp {
	switch op {
	case bcio.OpADDi64:
		return bcio.OpADDi
	case bcio.OpSUBi64:
		return bcio.OpSUBi
	case bcio.OpMULi64:
		return bcio.OpMULi
	case bcio.OpDIVi64:
		return bcio.OpDIVi
	case bcio.OpMODi64:
		return bcio.OpMODi
	case bcio.OpDIVu64:
		return bcio.OpDIVu
	case bcio.OpMODu64:
		return bcio.OpMODu
	default:
		return op
	}
}

func f64Equivalent(op bcio.OpcodeOp) bcio.OpcodeOp {
	switch op {
	case bcio.OpADDd:
		return bcio.OpADDf
	case bcio.OpSUBd:
		return bcio.OpSUBf
	case bcio.OpMULd:
		return bcio.OpMULf
	case bcio.OpDIVd:
		return bcio.OpDIVf
	default:
		return op
	}
}

func immEquivalent(op bcio.OpcodeOp) bcio.OpcodeOp {
	switch op {
	case bcio.OpADDIi:
		return bcio.OpADDi
	case bcio.OpSUBIi:
		return bcio.OpSUBi
	case bcio.OpMULIi:
		return bcio.OpMULi
	default:
		return op
	}
}

// incDecThroughRegister increments or decrements the value pointed to by the
// value register in place: the original VM treats INC/DEC's "register" as a
// pointer into the variable a preceding LDV/LDG (or LoadThisR/LoadRObjR) left
// addressed, not a scalar in its own right, so this loads through it, adjusts by one, and
// stores back rather than replacing the register's own contents.
func incDecThroughRegister(block *ir.Block, fc *funcCtx, width types.Type, isInc bool) {
	ptr := fc.loadValue(block, types.NewPointer(width))
	cur := block.NewLoad(width, ptr)

	var next value.Value
	switch w := width.(type) {
	case *types.FloatType:
		delta := constant.NewFloat(w, 1.0)
		if isInc {
			next = block.NewFAdd(cur, delta)
		} else {
			next = block.NewFSub(cur, delta)
		}
	case *types.IntType:
		delta := constant.NewInt(w, 1)
		if isInc {
			next = block.NewAdd(cur, delta)
		} else {
			next = block.NewSub(cur, delta)
		}
	}
	block.NewStore(next, ptr)
}

func float32FromBits(bits int32) float32 {
	return math.Float32frombits(uint32(bits))
}
