// Package translator implements FunctionTranslator: lowering one script
// function's bytecode into backend IR, two passes per function. Pass one
// (discoverJumps) walks the bytecode once to find every branch target and
// every JumpPointer case table and pre-creates a block for each. Pass two
// (emitBody) walks it again, building IR instruction by instruction and
// switching the current insertion block whenever it reaches an offset pass
// one labeled. Grounded on this teacher's wazevo frontend
// (internal/engine/wazevo/frontend/frontend.go), which lowers a stack
// machine's bytecode to SSA IR in the same two-phase shape: a block-boundary
// discovery pass ahead of value-by-value translation.
package translator

import (
	"fmt"
	"time"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/diag"
	"github.com/scriptjit/ngjit/internal/errs"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/runtimehelpers"
	"github.com/scriptjit/ngjit/internal/stackframe"
	"github.com/scriptjit/ngjit/internal/typemap"
)

// Translator lowers script function bodies into one backend module's IR.
// Stateless across calls to Translate; every per-function translation's
// mutable state lives in a funcCtx.
type Translator struct {
	module  *irgen.Module
	types   *typemap.Mapper
	helpers *runtimehelpers.Externs
	cfg     *api.Config
	diag    *diag.Logger

	// callTable resolves a CALL/CALLINTF/CALLSYS/Thiscall1 instruction's
	// Imm32 operand to the target function. Populated once per module build
	// by ModuleAssembler from every function it knows about (its own pending
	// set; cross-module calls are out of scope for this translator, matching
	// the original project's per-module JIT boundary).
	callTable []*api.ScriptFunction

	// vmRegsCache holds the one VmRegisters struct type this module's
	// thunks share, built on first use.
	vmRegsCache *types.StructType
}

// New returns a Translator emitting into m, resolving call targets against
// callTable.
func New(m *irgen.Module, tm *typemap.Mapper, helpers *runtimehelpers.Externs, cfg *api.Config, lg *diag.Logger, callTable []*api.ScriptFunction) *Translator {
	return &Translator{module: m, types: tm, helpers: helpers, cfg: cfg, diag: lg, callTable: callTable}
}

// funcCtx is the mutable state threaded through one function's pass two.
type funcCtx struct {
	fn     *api.ScriptFunction
	native *ir.Func
	frame  *stackframe.Frame

	jumpMap   map[uint32]*ir.Block
	switchMap map[uint32][]*ir.Block

	cur        *ir.Block
	terminated bool

	// retOffset is the bytecode word offset of the last-seen asBC_RET,
	// embedded into the VM entry thunk so it can overwrite
	// regs->program_pointer before returning to the interpreter. A function
	// with more than one RET overwrites this on every one seen in bytecode
	// order, so the last RET in the stream wins — a quirk preserved from the
	// original builder's unconditional `m_ret_pointer = ins.pointer` rather
	// than decided here.
	retOffset uint32

	// valueRegSlot and objectRegSlot back the VM's two scratch registers, the
	// same way the original builder keeps them as one fixed-width alloca
	// each (an i64 slot and a void-pointer slot) reinterpreted through a
	// pointer cast for whatever type the current opcode needs, rather than
	// one designated type per register.
	valueRegSlot  *ir.InstAlloca
	objectRegSlot *ir.InstAlloca

	// cmpResult is CMP's tri-state sign result, read by the following TZ/
	// TNZ/TS/TNS/TP/TNP or branch. Tracked as a plain SSA value rather than
	// routed through valueRegSlot: the original builder's emit_compare and
	// emit_condition never call load_value_register_value /
	// store_value_register_value, so the comparison flag isn't actually the
	// same register CpyVtoR/LDV/WRTV share.
	cmpResult value.Value
}

// cmpResultOr returns the last CMP's sign result, or zero if no CMP has run
// on this path yet.
func (fc *funcCtx) cmpResultOr() value.Value {
	if fc.cmpResult != nil {
		return fc.cmpResult
	}
	return constant.NewInt(types.I32, 0)
}

// storeValue writes v into the value register, reinterpreted as v's own
// type.
func (fc *funcCtx) storeValue(block *ir.Block, v value.Value) {
	ptr := block.NewBitCast(fc.valueRegSlot, types.NewPointer(v.Type()))
	block.NewStore(v, ptr)
}

// loadValue reads the value register reinterpreted as typ.
func (fc *funcCtx) loadValue(block *ir.Block, typ types.Type) value.Value {
	ptr := block.NewBitCast(fc.valueRegSlot, types.NewPointer(typ))
	return block.NewLoad(typ, ptr)
}

// storeObject writes v into the object register, reinterpreted as v's own
// type.
func (fc *funcCtx) storeObject(block *ir.Block, v value.Value) {
	ptr := block.NewBitCast(fc.objectRegSlot, types.NewPointer(v.Type()))
	block.NewStore(v, ptr)
}

// loadObject reads the object register reinterpreted as typ.
func (fc *funcCtx) loadObject(block *ir.Block, typ types.Type) value.Value {
	ptr := block.NewBitCast(fc.objectRegSlot, types.NewPointer(typ))
	return block.NewLoad(typ, ptr)
}

// ThunkSymbol returns the published native symbol name for a script
// function's VM entry thunk: the address ModuleAssembler writes into the
// caller's FnPtrSlot once BuildAll links the module.
func ThunkSymbol(functionID string) string { return "asllvm_thunk_" + sanitize(functionID) }

func nativeSymbol(functionID string) string { return "asllvm_fn_" + sanitize(functionID) }

func sanitize(id string) string {
	b := []byte(id)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// Translate lowers fn's bytecode into a native-ABI function plus its VM
// entry thunk, declared on the Translator's module. Returns the native
// function (callers needing to emit a direct script-to-script call use this
// one; ModuleAssembler only ever needs the thunk's published address).
func (tr *Translator) Translate(fn *api.ScriptFunction) (*ir.Func, error) {
	start := time.Now()
	if fn.Native != nil {
		return nil, &errs.InternalConsistency{Condition: "Translate called on a native function", File: "internal/translator/translator.go"}
	}
	if len(fn.Bytecode) == 0 {
		return nil, &errs.NullBytecode{FunctionID: fn.ID}
	}

	paramTypes, paramNames := tr.nativeSignature(fn)
	retType := tr.nativeReturnType(fn)
	nativeFunc := tr.module.DeclareFunc(nativeSymbol(fn.ID), retType, paramNames, paramTypes)

	entry := nativeFunc.NewBlock("entry")
	frame := stackframe.New(fn, tr.types, tr.module.Types)
	frame.Setup(entry, nativeFunc)

	t := tr.module.Types
	valueRegSlot := entry.NewAlloca(t.I64)
	valueRegSlot.SetName("value_register")
	objectRegSlot := entry.NewAlloca(t.VoidPtr)
	objectRegSlot.SetName("object_register")

	cursor := bcio.NewCursor(fn.Bytecode, bcio.OpFromRaw)

	jm, sm, err := tr.discoverJumps(cursor, nativeFunc)
	if err != nil {
		return nil, err
	}

	fc := &funcCtx{
		fn: fn, native: nativeFunc, frame: frame, jumpMap: jm, switchMap: sm, cur: entry,
		valueRegSlot: valueRegSlot, objectRegSlot: objectRegSlot,
	}

	if err := tr.emitBody(fc, cursor); err != nil {
		return nil, err
	}
	if err := frame.Finalize(); err != nil {
		return nil, err
	}

	tr.buildThunk(fn, nativeFunc, fc.retOffset)

	if tr.cfg.Verbose() {
		tr.diag.ReportCompile(tr.buildCompileReport(fn, nativeFunc, jm, sm, time.Since(start)))
	}

	return nativeFunc, nil
}

// buildCompileReport re-walks fn's bytecode, a cheap pass over an already
// fully-decoded blob, to tally a per-mnemonic histogram for verbose-mode
// diagnostics. Run only when Config.Verbose is set, so the extra walk never
// costs a silent build anything.
func (tr *Translator) buildCompileReport(fn *api.ScriptFunction, native *ir.Func, jm map[uint32]*ir.Block, sm map[uint32][]*ir.Block, elapsed time.Duration) *diag.CompileReport {
	histogram := make(map[string]int)
	count := 0

	cursor := bcio.NewCursor(fn.Bytecode, bcio.OpFromRaw)
	_ = cursor.Walk(func(in bcio.Instruction) error {
		histogram[in.Info.Mnemonic]++
		count++
		return nil
	})

	return &diag.CompileReport{
		FunctionID:        fn.ID,
		NativeSymbol:      nativeSymbol(fn.ID),
		InstructionCount:  count,
		BlockCount:        len(native.Blocks),
		BranchTargetCount: len(jm),
		SwitchCount:       len(sm),
		DurationMicros:    elapsed.Microseconds(),
		OpcodeHistogram:   histogram,
	}
}

func (tr *Translator) nativeSignature(fn *api.ScriptFunction) ([]types.Type, []string) {
	var paramTypes []types.Type
	var paramNames []string
	if fn.Flags.Has(api.FlagDoesReturnOnStack) {
		paramTypes = append(paramTypes, tr.types.ToIR(fn.ReturnType))
		paramNames = append(paramNames, "stackRetPtr")
	}
	if fn.IsMethod() {
		paramTypes = append(paramTypes, tr.types.ToIR(api.ScriptType{Kind: api.KindObject, TypeID: fn.Object.TypeID}))
		paramNames = append(paramNames, "thisPtr")
	}
	for _, p := range fn.Params {
		paramTypes = append(paramTypes, tr.types.ToIR(p.Type))
		paramNames = append(paramNames, p.Name)
	}
	return paramTypes, paramNames
}

func (tr *Translator) nativeReturnType(fn *api.ScriptFunction) types.Type {
	if fn.Flags.Has(api.FlagDoesReturnOnStack) {
		return tr.module.Types.Void
	}
	return tr.types.ToIR(fn.ReturnType)
}

// discoverJumps is pass one: find every branch target and every
// JumpPointer's case table, pre-creating one backend block per distinct
// target offset.
func (tr *Translator) discoverJumps(cursor *bcio.Cursor, native *ir.Func) (map[uint32]*ir.Block, map[uint32][]*ir.Block, error) {
	jm := make(map[uint32]*ir.Block)
	sm := make(map[uint32][]*ir.Block)

	blockFor := func(offset uint32) *ir.Block {
		if b, ok := jm[offset]; ok {
			return b
		}
		b := native.NewBlock(fmt.Sprintf("L%d", offset))
		jm[offset] = b
		return b
	}

	var instrs []bcio.Instruction
	err := cursor.Walk(func(in bcio.Instruction) error {
		instrs = append(instrs, in)
		if isBranch(in.Op) {
			blockFor(in.TargetOffset())
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// A JumpPointer instruction is immediately followed, in bytecode order,
	// by a contiguous run of Jump instructions forming its case table. An
	// out-of-range switch index is clamped to the last entry by the emitted
	// IR (see emitSwitch), so the last case doubles as the default — the
	// documented, preserved-as-is JumpPointer behavior.
	for i, in := range instrs {
		if in.Op != bcio.OpJumpPointer {
			continue
		}
		var cases []*ir.Block
		for j := i + 1; j < len(instrs) && instrs[j].Op == bcio.OpJump; j++ {
			cases = append(cases, blockFor(instrs[j].TargetOffset()))
		}
		if len(cases) == 0 {
			return nil, nil, &errs.InternalConsistency{
				Condition: fmt.Sprintf("JumpPointer at offset %d has no following case table", in.Offset),
				File:      "internal/translator/translator.go",
			}
		}
		sm[in.Offset] = cases
	}

	return jm, sm, nil
}

func isBranch(op bcio.OpcodeOp) bool {
	switch op {
	case bcio.OpJump, bcio.OpJZ, bcio.OpJNZ, bcio.OpJS, bcio.OpJNS, bcio.OpJP, bcio.OpJNP, bcio.OpJLowZ, bcio.OpJLowNZ:
		return true
	default:
		return false
	}
}

// emitBody is pass two: walk the bytecode again, switching the current
// block whenever an instruction's offset starts a block pass one created,
// then dispatching to the per-opcode emitter.
func (tr *Translator) emitBody(fc *funcCtx, cursor *bcio.Cursor) error {
	return cursor.Walk(func(in bcio.Instruction) error {
		if b, ok := fc.jumpMap[in.Offset]; ok && b != fc.cur {
			if !fc.terminated {
				fc.cur.NewBr(b)
			}
			fc.cur = b
			fc.terminated = false
		}
		if fc.terminated {
			return nil
		}

		before := fc.frame.StackPointer()
		if err := tr.emitOne(fc, in); err != nil {
			return err
		}
		return tr.checkStackDelta(fc, in, before)
	})
}

// checkStackDelta asserts, per testable property #1, that an opcode with a
// statically-known stack effect moved the abstract stack pointer by exactly
// that many dwords. Opcodes whose effect depends on their operands (calls,
// RET, ALLOC) declare StackDeltaVariable and are skipped.
func (tr *Translator) checkStackDelta(fc *funcCtx, in bcio.Instruction, before stackframe.Offset) error {
	delta := bcio.InfoFor(in.Op).StackDelta
	if delta == bcio.StackDeltaVariable {
		return nil
	}
	got := int32(fc.frame.StackPointer() - before)
	if got != delta {
		return &errs.InternalConsistency{
			Condition: fmt.Sprintf("opcode %s at offset %d moved stack pointer by %d dwords, want %d", in.Info.Mnemonic, in.Offset, got, delta),
			File:      "internal/translator/translator.go",
		}
	}
	return nil
}

// emitOne lowers a single decoded instruction into fc.cur, per the opcode
// family tables in arith.go, stack.go, branch.go, object.go, and
// callemitter.go.
func (tr *Translator) emitOne(fc *funcCtx, in bcio.Instruction) error {
	if bcio.IsUnimplemented(in.Op) {
		return &errs.Unimplemented{FunctionID: fc.fn.ID, Mnemonic: in.Info.Mnemonic, Offset: in.Offset}
	}

	switch {
	case isStackOp(in.Op):
		return tr.emitStackOp(fc, in)
	case isArithOp(in.Op), isCastOp(in.Op), isCompareOp(in.Op), isTestOp(in.Op):
		return tr.emitArithOp(fc, in)
	case isBranch(in.Op), in.Op == bcio.OpJumpPointer:
		return tr.emitBranchOp(fc, in)
	case isRegisterOp(in.Op):
		return tr.emitRegisterOp(fc, in)
	case isObjectOp(in.Op):
		return tr.emitObjectOp(fc, in)
	case isCallOp(in.Op):
		return tr.emitCallOp(fc, in)
	case in.Op == bcio.OpRET:
		return tr.emitReturn(fc, in)
	case isMiscOp(in.Op):
		return tr.emitMiscOp(fc, in)
	default:
		return &errs.Unimplemented{FunctionID: fc.fn.ID, Mnemonic: in.Info.Mnemonic, Offset: in.Offset}
	}
}
