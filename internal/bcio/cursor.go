package bcio

import "fmt"

// Instruction is one decoded bytecode instruction: its word offset, opcode
// kind, and the raw words backing its operands (including the opcode word
// itself, at words[0]).
type Instruction struct {
	Offset uint32
	Op     OpcodeOp
	Info   *OpcodeInfo
	words  []uint32
}

// Imm32 decodes the instruction's single 32-bit immediate operand
// (VariantImm32). Panics if the instruction's variant does not carry one.
func (in Instruction) Imm32() int32 {
	if in.Info.Variant != VariantImm32 {
		panic(fmt.Sprintf("bcio: %s has no 32-bit immediate operand", in.Info.Mnemonic))
	}
	return int32(in.words[1])
}

// Imm64 decodes the instruction's 64-bit immediate (VariantImm64), low word
// first.
func (in Instruction) Imm64() int64 {
	if in.Info.Variant != VariantImm64 {
		panic(fmt.Sprintf("bcio: %s has no 64-bit immediate operand", in.Info.Mnemonic))
	}
	return int64(in.words[1]) | int64(in.words[2])<<32
}

// Displacement returns the signed dword displacement of a branch
// instruction (VariantOffset32), relative to the offset of the next
// instruction (see TargetOffset).
func (in Instruction) Displacement() int32 {
	if in.Info.Variant != VariantOffset32 {
		panic(fmt.Sprintf("bcio: %s has no branch displacement", in.Info.Mnemonic))
	}
	return int32(in.words[1])
}

// TargetOffset returns the absolute word offset a branch instruction jumps
// to, per the spec's addressing rule: offset + size-in-words + displacement.
func (in Instruction) TargetOffset() uint32 {
	return in.Offset + uint32(in.Info.SizeWords) + uint32(in.Displacement())
}

// TypeIDAndImm32 decodes the (type-id, immediate) pair used by ALLOC, FREE,
// REFCPY, RefCpyV, and the list-initializer opcodes (VariantTypeIDImm32).
func (in Instruction) TypeIDAndImm32() (typeID int32, imm int32) {
	if in.Info.Variant != VariantTypeIDImm32 {
		panic(fmt.Sprintf("bcio: %s has no (type-id, immediate) operand pair", in.Info.Mnemonic))
	}
	return int32(in.words[1]), int32(in.words[2])
}

// Cursor iterates a bytecode blob, decoding one instruction at a time via a
// resolver from raw opcode value to OpcodeOp. A Cursor carries no iteration
// state of its own between calls to Walk: each Walk call is a fresh,
// forward-only pass over the whole blob, which is how FunctionTranslator
// runs the two lowering passes against the same bytecode.
type Cursor struct {
	blob    []uint32
	resolve func(raw uint32) (OpcodeOp, bool)
}

// NewCursor returns a Cursor over blob. resolve maps the raw opcode value
// found in the low byte of an instruction's first word to an OpcodeOp; it
// exists so the cursor itself stays independent of how the host engine packs
// opcode values into bytecode words.
func NewCursor(blob []uint32, resolve func(raw uint32) (OpcodeOp, bool)) *Cursor {
	return &Cursor{blob: blob, resolve: resolve}
}

// Walk decodes every instruction in the blob in order, invoking visit once
// per instruction. It stops and returns visit's error immediately if visit
// returns non-nil.
func (c *Cursor) Walk(visit func(Instruction) error) error {
	pos := uint32(0)
	for int(pos) < len(c.blob) {
		raw := c.blob[pos]
		op, ok := c.resolve(raw & 0xff)
		if !ok {
			return fmt.Errorf("bcio: unknown opcode value %d at word offset %d", raw&0xff, pos)
		}
		info := InfoFor(op)
		end := int(pos) + info.SizeWords
		if end > len(c.blob) {
			return fmt.Errorf("bcio: instruction %s at offset %d overruns bytecode blob", info.Mnemonic, pos)
		}
		instr := Instruction{
			Offset: pos,
			Op:     op,
			Info:   info,
			words:  c.blob[pos:end],
		}
		if err := visit(instr); err != nil {
			return err
		}
		pos = uint32(end)
	}
	return nil
}

// Len returns the number of 32-bit words in the underlying blob.
func (c *Cursor) Len() uint32 { return uint32(len(c.blob)) }
