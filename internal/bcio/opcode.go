// Package bcio iterates a script function's bytecode blob opcode by opcode.
package bcio

import "math"

// Opcode identifies one bytecode instruction kind.
type Opcode uint16

// StackDeltaVariable marks an OpcodeInfo whose stack effect cannot be known
// until the instruction's operands are inspected (e.g. calls).
const StackDeltaVariable = math.MinInt32

// OperandVariant describes how an instruction's trailing words are laid out.
// Variants exist purely for disassembly and argument decoding; they carry no
// stack-effect information of their own.
type OperandVariant byte

const (
	// VariantNone is an instruction with no trailing operand words.
	VariantNone OperandVariant = iota
	// VariantImm32 has one trailing word: a 32-bit immediate, stack offset,
	// or type-id, depending on the opcode.
	VariantImm32
	// VariantImm64 has two trailing words forming a 64-bit immediate
	// (little-endian low word first).
	VariantImm64
	// VariantOffset32 has one trailing word: a signed dword displacement
	// relative to the offset of the next instruction, used by branches.
	VariantOffset32
	// VariantTypeIDImm32 has two trailing words: a script type-id followed
	// by a 32-bit immediate. The immediate's meaning depends on the opcode:
	// a constructor id for ALLOC, a stack offset for FREE/RefCpyV, a
	// destination stack offset for REFCPY.
	VariantTypeIDImm32
)

// OpcodeInfo is the static, decode-time description of one opcode kind.
type OpcodeInfo struct {
	Op OpcodeOp
	// Mnemonic is the disassembly name, also used for "unimplemented opcode"
	// diagnostics.
	Mnemonic string
	// SizeWords is the total instruction size, including the opcode word
	// itself.
	SizeWords int
	// StackDelta is the signed dword movement of the abstract stack pointer
	// this opcode causes, or StackDeltaVariable if it cannot be known
	// statically.
	StackDelta int32
	Variant    OperandVariant
}

// OpcodeOp is the enumerant identifying an opcode kind; kept distinct from
// Opcode (the value that shows up in a bytecode word) so the info table can
// be built and indexed without layout assumptions.
type OpcodeOp int

//nolint:revive // long flat list mirrors the spec's own opcode vocabulary.
const (
	OpNop OpcodeOp = iota

	// Stack manipulation.
	OpPushC4
	OpPushC8
	OpPushV4
	OpPushV8
	OpPSF
	OpPshG4
	OpPshGPtr
	OpPopPtr
	OpRDSPtr

	// Integer/float arithmetic, 32-bit.
	OpADDi
	OpSUBi
	OpMULi
	OpDIVi
	OpMODi
	OpDIVu
	OpMODu
	OpNEGi
	OpBNOT
	OpBAND
	OpBOR
	OpBXOR
	OpBSLL
	OpBSRL
	OpBSRA
	OpADDf
	OpSUBf
	OpMULf
	OpDIVf
	OpNEGf

	// 64-bit integer / double arithmetic.
	OpADDi64
	OpSUBi64
	OpMULi64
	OpDIVi64
	OpMODi64
	OpDIVu64
	OpMODu64
	OpADDd
	OpSUBd
	OpMULd
	OpDIVd
	OpNEGd

	// Immediate fast-path forms (representative; the remaining arithmetic
	// mnemonics above each have an "I" immediate twin following the same
	// pattern — rhs supplied inline instead of popped).
	OpADDIi
	OpSUBIi
	OpMULIi

	// Increment / decrement through the value register.
	OpINCi8
	OpDECi8
	OpINCi16
	OpDECi16
	OpINCi
	OpDECi
	OpINCi64
	OpDECi64
	OpINCf
	OpDECf
	OpINCd
	OpDECd

	// Casts.
	OpI32ToI8
	OpI32ToI16
	OpI32ToI64
	OpI64ToI32
	OpI32ToF32
	OpF32ToI32
	OpI32ToF64
	OpF64ToI32
	OpF32ToF64
	OpF64ToF32
	OpI64ToF64
	OpF64ToI64
	OpU32ToF32
	OpF32ToU32

	// Comparisons.
	OpCMPi
	OpCMPu
	OpCMPi64
	OpCMPu64
	OpCMPf
	OpCMPd
	OpCMPIi
	OpCMPIf
	OpCMPIu

	// Test opcodes.
	OpTZ
	OpTNZ
	OpTS
	OpTNS
	OpTP
	OpTNP

	// Branches.
	OpJump
	OpJZ
	OpJNZ
	OpJS
	OpJNS
	OpJP
	OpJNP
	OpJLowZ
	OpJLowNZ
	OpJumpPointer

	// Value/object register moves.
	OpCpyVtoR4
	OpCpyVtoR8
	OpCpyRtoV4
	OpCpyRtoV8
	OpLDG
	OpLDV
	OpWRTV1
	OpWRTV2
	OpWRTV4
	OpWRTV8
	OpRDR1
	OpRDR2
	OpRDR4
	OpRDR8
	OpLoadThisR
	OpLoadRObjR

	// Object lifetime.
	OpALLOC
	OpFREE
	OpREFCPY
	OpRefCpyV

	// Calls.
	OpCALL
	OpCALLINTF
	OpCALLSYS
	OpThiscall1
	OpCALLBND
	OpCallPtr
	OpFuncPtr

	// Return.
	OpRET

	// Misc.
	OpSUSPEND
	OpJitEntry
	OpChkNullV
	OpChkRef
	OpChkRefS
	OpAllocMem
	OpSetListSize
	OpPshListElmnt

	// Explicitly unimplemented per the spec's Open Questions: any function
	// referencing these fails translation rather than silently guessing.
	OpSetListType
	OpPOWi
	OpSwapPtr
	OpLdGRdR4
	OpPshNull
	OpClrVPtr
	OpTYPEID
	OpCmpPtr
	OpLoadVObjR
	OpCast
	OpChkNullS
)

// opcodeInfoTable is indexed by OpcodeOp.
var opcodeInfoTable = [...]OpcodeInfo{
	OpNop: {OpNop, "NOP", 1, 0, VariantNone},

	OpPushC4:  {OpPushC4, "PushC4", 2, 1, VariantImm32},
	OpPushC8:  {OpPushC8, "PushC8", 3, 2, VariantImm64},
	OpPushV4:  {OpPushV4, "PushV4", 2, 1, VariantImm32},
	OpPushV8:  {OpPushV8, "PushV8", 2, 2, VariantImm32},
	// PSF/PshGPtr/PopPtr push or pop one pointer-sized VM stack slot, which on
	// this spec's fixed 64-bit-pointer target (§4.1, irgen.Types.PtrBits) is
	// 2 dwords, not 1 — matching the literal 2 already used for every other
	// 64-bit-wide value pushed (PushC8/PushV8 above).
	OpPSF:     {OpPSF, "PSF", 2, 2, VariantImm32},
	OpPshG4:   {OpPshG4, "PshG4", 2, 1, VariantImm32},
	OpPshGPtr: {OpPshGPtr, "PshGPtr", 2, 2, VariantImm32},
	OpPopPtr:  {OpPopPtr, "PopPtr", 1, -2, VariantNone},
	OpRDSPtr:  {OpRDSPtr, "RDSPtr", 1, 0, VariantNone},

	OpADDi: {OpADDi, "ADDi", 1, -1, VariantNone},
	OpSUBi: {OpSUBi, "SUBi", 1, -1, VariantNone},
	OpMULi: {OpMULi, "MULi", 1, -1, VariantNone},
	OpDIVi: {OpDIVi, "DIVi", 1, -1, VariantNone},
	OpMODi: {OpMODi, "MODi", 1, -1, VariantNone},
	OpDIVu: {OpDIVu, "DIVu", 1, -1, VariantNone},
	OpMODu: {OpMODu, "MODu", 1, -1, VariantNone},
	OpNEGi: {OpNEGi, "NEGi", 1, 0, VariantNone},
	OpBNOT: {OpBNOT, "BNOT", 1, 0, VariantNone},
	OpBAND: {OpBAND, "BAND", 1, -1, VariantNone},
	OpBOR:  {OpBOR, "BOR", 1, -1, VariantNone},
	OpBXOR: {OpBXOR, "BXOR", 1, -1, VariantNone},
	OpBSLL: {OpBSLL, "BSLL", 1, -1, VariantNone},
	OpBSRL: {OpBSRL, "BSRL", 1, -1, VariantNone},
	OpBSRA: {OpBSRA, "BSRA", 1, -1, VariantNone},
	OpADDf: {OpADDf, "ADDf", 1, -1, VariantNone},
	OpSUBf: {OpSUBf, "SUBf", 1, -1, VariantNone},
	OpMULf: {OpMULf, "MULf", 1, -1, VariantNone},
	OpDIVf: {OpDIVf, "DIVf", 1, -1, VariantNone},
	OpNEGf: {OpNEGf, "NEGf", 1, 0, VariantNone},

	OpADDi64: {OpADDi64, "ADDi64", 1, -2, VariantNone},
	OpSUBi64: {OpSUBi64, "SUBi64", 1, -2, VariantNone},
	OpMULi64: {OpMULi64, "MULi64", 1, -2, VariantNone},
	OpDIVi64: {OpDIVi64, "DIVi64", 1, -2, VariantNone},
	OpMODi64: {OpMODi64, "MODi64", 1, -2, VariantNone},
	OpDIVu64: {OpDIVu64, "DIVu64", 1, -2, VariantNone},
	OpMODu64: {OpMODu64, "MODu64", 1, -2, VariantNone},
	OpADDd:   {OpADDd, "ADDd", 1, -2, VariantNone},
	OpSUBd:   {OpSUBd, "SUBd", 1, -2, VariantNone},
	OpMULd:   {OpMULd, "MULd", 1, -2, VariantNone},
	OpDIVd:   {OpDIVd, "DIVd", 1, -2, VariantNone},
	OpNEGd:   {OpNEGd, "NEGd", 1, 0, VariantNone},

	OpADDIi: {OpADDIi, "ADDIi", 2, 0, VariantImm32},
	OpSUBIi: {OpSUBIi, "SUBIi", 2, 0, VariantImm32},
	OpMULIi: {OpMULIi, "MULIi", 2, 0, VariantImm32},

	OpINCi8:  {OpINCi8, "INCi8", 1, 0, VariantNone},
	OpDECi8:  {OpDECi8, "DECi8", 1, 0, VariantNone},
	OpINCi16: {OpINCi16, "INCi16", 1, 0, VariantNone},
	OpDECi16: {OpDECi16, "DECi16", 1, 0, VariantNone},
	OpINCi:   {OpINCi, "INCi", 1, 0, VariantNone},
	OpDECi:   {OpDECi, "DECi", 1, 0, VariantNone},
	OpINCi64: {OpINCi64, "INCi64", 1, 0, VariantNone},
	OpDECi64: {OpDECi64, "DECi64", 1, 0, VariantNone},
	OpINCf:   {OpINCf, "INCf", 1, 0, VariantNone},
	OpDECf:   {OpDECf, "DECf", 1, 0, VariantNone},
	OpINCd:   {OpINCd, "INCd", 1, 0, VariantNone},
	OpDECd:   {OpDECd, "DECd", 1, 0, VariantNone},

	OpI32ToI8:  {OpI32ToI8, "I32ToI8", 1, 0, VariantNone},
	OpI32ToI16: {OpI32ToI16, "I32ToI16", 1, 0, VariantNone},
	OpI32ToI64: {OpI32ToI64, "I32ToI64", 1, 1, VariantNone},
	OpI64ToI32: {OpI64ToI32, "I64ToI32", 1, -1, VariantNone},
	OpI32ToF32: {OpI32ToF32, "I32ToF32", 1, 0, VariantNone},
	OpF32ToI32: {OpF32ToI32, "F32ToI32", 1, 0, VariantNone},
	OpI32ToF64: {OpI32ToF64, "I32ToF64", 1, 1, VariantNone},
	OpF64ToI32: {OpF64ToI32, "F64ToI32", 1, -1, VariantNone},
	OpF32ToF64: {OpF32ToF64, "F32ToF64", 1, 1, VariantNone},
	OpF64ToF32: {OpF64ToF32, "F64ToF32", 1, -1, VariantNone},
	OpI64ToF64: {OpI64ToF64, "I64ToF64", 1, 0, VariantNone},
	OpF64ToI64: {OpF64ToI64, "F64ToI64", 1, 0, VariantNone},
	OpU32ToF32: {OpU32ToF32, "U32ToF32", 1, 0, VariantNone},
	OpF32ToU32: {OpF32ToU32, "F32ToU32", 1, 0, VariantNone},

	OpCMPi:  {OpCMPi, "CMPi", 1, -2, VariantNone},
	OpCMPu:  {OpCMPu, "CMPu", 1, -2, VariantNone},
	OpCMPi64: {OpCMPi64, "CMPi64", 1, -4, VariantNone},
	OpCMPu64: {OpCMPu64, "CMPu64", 1, -4, VariantNone},
	OpCMPf:  {OpCMPf, "CMPf", 1, -2, VariantNone},
	OpCMPd:  {OpCMPd, "CMPd", 1, -4, VariantNone},
	OpCMPIi: {OpCMPIi, "CMPIi", 2, -1, VariantImm32},
	OpCMPIf: {OpCMPIf, "CMPIf", 2, -1, VariantImm32},
	OpCMPIu: {OpCMPIu, "CMPIu", 2, -1, VariantImm32},

	OpTZ:  {OpTZ, "TZ", 1, 0, VariantNone},
	OpTNZ: {OpTNZ, "TNZ", 1, 0, VariantNone},
	OpTS:  {OpTS, "TS", 1, 0, VariantNone},
	OpTNS: {OpTNS, "TNS", 1, 0, VariantNone},
	OpTP:  {OpTP, "TP", 1, 0, VariantNone},
	OpTNP: {OpTNP, "TNP", 1, 0, VariantNone},

	OpJump:        {OpJump, "Jump", 2, 0, VariantOffset32},
	OpJZ:          {OpJZ, "JZ", 2, 0, VariantOffset32},
	OpJNZ:         {OpJNZ, "JNZ", 2, 0, VariantOffset32},
	OpJS:          {OpJS, "JS", 2, 0, VariantOffset32},
	OpJNS:         {OpJNS, "JNS", 2, 0, VariantOffset32},
	OpJP:          {OpJP, "JP", 2, 0, VariantOffset32},
	OpJNP:         {OpJNP, "JNP", 2, 0, VariantOffset32},
	OpJLowZ:       {OpJLowZ, "JLowZ", 2, 0, VariantOffset32},
	OpJLowNZ:      {OpJLowNZ, "JLowNZ", 2, 0, VariantOffset32},
	OpJumpPointer: {OpJumpPointer, "JumpPointer", 1, -1, VariantNone},

	OpCpyVtoR4:  {OpCpyVtoR4, "CpyVtoR4", 2, 0, VariantImm32},
	OpCpyVtoR8:  {OpCpyVtoR8, "CpyVtoR8", 2, 0, VariantImm32},
	OpCpyRtoV4:  {OpCpyRtoV4, "CpyRtoV4", 2, 0, VariantImm32},
	OpCpyRtoV8:  {OpCpyRtoV8, "CpyRtoV8", 2, 0, VariantImm32},
	OpLDG:       {OpLDG, "LDG", 2, 0, VariantImm32},
	OpLDV:       {OpLDV, "LDV", 2, 0, VariantImm32},
	OpWRTV1:     {OpWRTV1, "WRTV1", 2, 0, VariantImm32},
	OpWRTV2:     {OpWRTV2, "WRTV2", 2, 0, VariantImm32},
	OpWRTV4:     {OpWRTV4, "WRTV4", 2, 0, VariantImm32},
	OpWRTV8:     {OpWRTV8, "WRTV8", 2, 0, VariantImm32},
	OpRDR1:      {OpRDR1, "RDR1", 2, 0, VariantImm32},
	OpRDR2:      {OpRDR2, "RDR2", 2, 0, VariantImm32},
	OpRDR4:      {OpRDR4, "RDR4", 2, 0, VariantImm32},
	OpRDR8:      {OpRDR8, "RDR8", 2, 0, VariantImm32},
	OpLoadThisR: {OpLoadThisR, "LoadThisR", 2, 0, VariantImm32},
	OpLoadRObjR: {OpLoadRObjR, "LoadRObjR", 2, 0, VariantImm32},

	OpALLOC:   {OpALLOC, "ALLOC", 3, StackDeltaVariable, VariantTypeIDImm32},
	OpFREE:    {OpFREE, "FREE", 3, 0, VariantTypeIDImm32},
	OpREFCPY:  {OpREFCPY, "REFCPY", 3, -2, VariantTypeIDImm32},
	OpRefCpyV: {OpRefCpyV, "RefCpyV", 3, 0, VariantTypeIDImm32},

	OpCALL:      {OpCALL, "CALL", 2, StackDeltaVariable, VariantImm32},
	OpCALLINTF:  {OpCALLINTF, "CALLINTF", 2, StackDeltaVariable, VariantImm32},
	OpCALLSYS:   {OpCALLSYS, "CALLSYS", 2, StackDeltaVariable, VariantImm32},
	OpThiscall1: {OpThiscall1, "Thiscall1", 2, StackDeltaVariable, VariantImm32},
	OpCALLBND:   {OpCALLBND, "CALLBND", 2, StackDeltaVariable, VariantImm32},
	OpCallPtr:   {OpCallPtr, "CallPtr", 1, StackDeltaVariable, VariantNone},
	OpFuncPtr:   {OpFuncPtr, "FuncPtr", 2, 2, VariantImm32},

	OpRET: {OpRET, "RET", 2, StackDeltaVariable, VariantImm32},

	OpSUSPEND:      {OpSUSPEND, "SUSPEND", 1, 0, VariantNone},
	OpJitEntry:     {OpJitEntry, "JitEntry", 2, 0, VariantImm32},
	OpChkNullV:     {OpChkNullV, "ChkNullV", 1, 0, VariantNone},
	OpChkRef:       {OpChkRef, "ChkRef", 1, 0, VariantNone},
	OpChkRefS:      {OpChkRefS, "ChkRefS", 2, 0, VariantImm32},
	OpAllocMem:     {OpAllocMem, "AllocMem", 1, 0, VariantNone},
	OpSetListSize:  {OpSetListSize, "SetListSize", 3, 0, VariantTypeIDImm32},
	OpPshListElmnt: {OpPshListElmnt, "PshListElmnt", 2, 2, VariantImm32},

	OpSetListType: {OpSetListType, "SetListType", 3, 0, VariantTypeIDImm32},
	OpPOWi:        {OpPOWi, "POWi", 1, -1, VariantNone},
	OpSwapPtr:     {OpSwapPtr, "SwapPtr", 1, 0, VariantNone},
	OpLdGRdR4:     {OpLdGRdR4, "LdGRdR4", 2, 0, VariantImm32},
	OpPshNull:     {OpPshNull, "PshNull", 1, 1, VariantNone},
	OpClrVPtr:     {OpClrVPtr, "ClrVPtr", 2, 0, VariantImm32},
	OpTYPEID:      {OpTYPEID, "TYPEID", 2, 1, VariantImm32},
	OpCmpPtr:      {OpCmpPtr, "CmpPtr", 1, -1, VariantNone},
	OpLoadVObjR:   {OpLoadVObjR, "LoadVObjR", 2, 0, VariantImm32},
	OpCast:        {OpCast, "Cast", 2, 0, VariantImm32},
	OpChkNullS:    {OpChkNullS, "ChkNullS", 2, 0, VariantImm32},
}

// InfoFor returns the static opcode description for op.
func InfoFor(op OpcodeOp) *OpcodeInfo { return &opcodeInfoTable[op] }

// unimplementedOps is the set of opcodes that must fail translation rather
// than guess at behavior. Preserved verbatim from the Open Questions list:
// none of these gets a best-effort lowering.
var unimplementedOps = map[OpcodeOp]bool{
	OpSetListType: true,
	OpPOWi:        true,
	OpCALLBND:     true,
	OpCallPtr:     true,
	OpFuncPtr:     true,
	OpSwapPtr:     true,
	OpLdGRdR4:     true,
	OpPshNull:     true,
	OpClrVPtr:     true,
	OpTYPEID:      true,
	OpCmpPtr:      true,
	OpLoadVObjR:   true,
	OpCast:        true,
	OpChkNullS:    true,
}

// IsUnimplemented reports whether op must abort translation of the
// containing function.
func IsUnimplemented(op OpcodeOp) bool { return unimplementedOps[op] }

// OpFromRaw resolves a bytecode word's low opcode byte to an OpcodeOp. The
// host engine's raw opcode numbering is taken to already match OpcodeOp's
// enumerant order (index-for-index), so this is a bounds-checked cast rather
// than a lookup table; a host whose numbering differs supplies its own
// resolver function to bcio.NewCursor instead of this one.
func OpFromRaw(raw uint32) (OpcodeOp, bool) {
	op := OpcodeOp(raw)
	if op < 0 || int(op) >= len(opcodeInfoTable) {
		return 0, false
	}
	return op, true
}
