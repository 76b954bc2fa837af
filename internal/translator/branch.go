package translator

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/irgen"
)

// emitBranchOp lowers the conditional/unconditional jump family and
// JumpPointer's computed switch. Every conditional branch needs a
// fallthrough continuation block that pass one never pre-creates (pass one
// only labels instructions that are themselves jump targets), so this
// allocates one per conditional branch on the fly.
func (tr *Translator) emitBranchOp(fc *funcCtx, in bcio.Instruction) error {
	block := fc.cur

	if in.Op == bcio.OpJumpPointer {
		return tr.emitSwitch(fc, in)
	}

	if in.Op == bcio.OpJump {
		target := fc.jumpMap[in.TargetOffset()]
		block.NewBr(target)
		fc.terminated = true
		return nil
	}

	cond := branchCond(block, fc.cmpResultOr(), in.Op)
	trueBlock := fc.jumpMap[in.TargetOffset()]
	falseBlock := fc.native.NewBlock(fmt.Sprintf("cont%d", in.Offset))
	block.NewCondBr(cond, trueBlock, falseBlock)
	fc.cur = falseBlock
	fc.terminated = false
	return nil
}

func branchCond(block *ir.Block, reg value.Value, op bcio.OpcodeOp) value.Value {
	zero := irgen.ConstI32(0)
	switch op {
	case bcio.OpJZ:
		return block.NewICmp(enum.IPredEQ, reg, zero)
	case bcio.OpJNZ:
		return block.NewICmp(enum.IPredNE, reg, zero)
	case bcio.OpJS:
		return block.NewICmp(enum.IPredSLT, reg, zero)
	case bcio.OpJNS:
		return block.NewICmp(enum.IPredSGE, reg, zero)
	case bcio.OpJP:
		return block.NewICmp(enum.IPredSGT, reg, zero)
	case bcio.OpJNP:
		return block.NewICmp(enum.IPredSLE, reg, zero)
	case bcio.OpJLowZ:
		low := block.NewTrunc(reg, types.I8)
		return block.NewICmp(enum.IPredEQ, low, constant.NewInt(types.I8, 0))
	case bcio.OpJLowNZ:
		low := block.NewTrunc(reg, types.I8)
		return block.NewICmp(enum.IPredNE, low, constant.NewInt(types.I8, 0))
	default:
		panic("translator: unhandled conditional branch opcode")
	}
}

// emitSwitch lowers JumpPointer: pop the computed case index and branch
// through the case table pass one discovered. An out-of-range index is
// clamped to the last case, so the last table entry doubles as both a real
// case and the switch's default target — the documented JumpPointer
// behavior, preserved rather than guessed at.
func (tr *Translator) emitSwitch(fc *funcCtx, in bcio.Instruction) error {
	f := fc.frame
	block := fc.cur
	t := tr.module.Types

	cases := fc.switchMap[in.Offset]
	idx := f.PopTyped(block, 1, t.I32)

	defaultBlock := cases[len(cases)-1]
	var irCases []*ir.Case
	for i := 0; i < len(cases)-1; i++ {
		irCases = append(irCases, ir.NewCase(constant.NewInt(t.I32.(*types.IntType), int64(i)), cases[i]))
	}

	block.NewSwitch(idx, defaultBlock, irCases...)
	fc.terminated = true
	return nil
}
