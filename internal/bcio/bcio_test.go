package bcio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorWalkDecodesFixedWidthInstructions(t *testing.T) {
	blob := []uint32{
		uint32(OpPushC4), 42,
		uint32(OpADDIi), 7,
		uint32(OpRET), 0,
	}
	c := NewCursor(blob, OpFromRaw)

	var seen []Instruction
	err := c.Walk(func(in Instruction) error {
		seen = append(seen, in)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)

	assert.Equal(t, OpPushC4, seen[0].Op)
	assert.Equal(t, uint32(0), seen[0].Offset)
	assert.Equal(t, int32(42), seen[0].Imm32())

	assert.Equal(t, OpADDIi, seen[1].Op)
	assert.Equal(t, uint32(2), seen[1].Offset)
	assert.Equal(t, int32(7), seen[1].Imm32())

	assert.Equal(t, OpRET, seen[2].Op)
	assert.Equal(t, uint32(4), seen[2].Offset)
}

func TestCursorWalkStopsOnVisitError(t *testing.T) {
	blob := []uint32{uint32(OpNop), uint32(OpNop), uint32(OpNop)}
	c := NewCursor(blob, OpFromRaw)

	sentinel := assert.AnError
	count := 0
	err := c.Walk(func(in Instruction) error {
		count++
		if count == 2 {
			return sentinel
		}
		return nil
	})
	assert.Equal(t, sentinel, err)
	assert.Equal(t, 2, count)
}

func TestCursorWalkRejectsUnknownOpcode(t *testing.T) {
	blob := []uint32{uint32(len(opcodeInfoTable)) + 100}
	c := NewCursor(blob, OpFromRaw)

	err := c.Walk(func(Instruction) error { return nil })
	assert.Error(t, err)
}

func TestCursorWalkRejectsTruncatedInstruction(t *testing.T) {
	// PushC4 needs 2 words but only 1 is available.
	blob := []uint32{uint32(OpPushC4)}
	c := NewCursor(blob, OpFromRaw)

	err := c.Walk(func(Instruction) error { return nil })
	assert.Error(t, err)
}

func TestCursorLen(t *testing.T) {
	blob := []uint32{1, 2, 3, 4}
	c := NewCursor(blob, OpFromRaw)
	assert.Equal(t, uint32(4), c.Len())
}

func TestInstructionImm64(t *testing.T) {
	blob := []uint32{uint32(OpPushC8), 0xDEADBEEF, 0x1}
	c := NewCursor(blob, OpFromRaw)

	var got int64
	err := c.Walk(func(in Instruction) error {
		got = in.Imm64()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0xDEADBEEF)|int64(1)<<32, got)
}

func TestInstructionDisplacementAndTargetOffset(t *testing.T) {
	blob := []uint32{
		uint32(OpNop),
		uint32(OpJump), uint32(int32(-1)), // one word back from the next instruction
	}
	c := NewCursor(blob, OpFromRaw)

	var jump Instruction
	err := c.Walk(func(in Instruction) error {
		if in.Op == OpJump {
			jump = in
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), jump.Displacement())
	// offset(1) + size(2) + displacement(-1) = 2
	assert.Equal(t, uint32(2), jump.TargetOffset())
}

func TestInstructionTypeIDAndImm32(t *testing.T) {
	blob := []uint32{uint32(OpALLOC), 5, 9}
	c := NewCursor(blob, OpFromRaw)

	var in Instruction
	err := c.Walk(func(i Instruction) error {
		in = i
		return nil
	})
	require.NoError(t, err)
	typeID, imm := in.TypeIDAndImm32()
	assert.Equal(t, int32(5), typeID)
	assert.Equal(t, int32(9), imm)
}

func TestInstructionAccessorsPanicOnWrongVariant(t *testing.T) {
	blob := []uint32{uint32(OpNop)}
	c := NewCursor(blob, OpFromRaw)

	var in Instruction
	err := c.Walk(func(i Instruction) error {
		in = i
		return nil
	})
	require.NoError(t, err)

	assert.Panics(t, func() { in.Imm32() })
	assert.Panics(t, func() { in.Imm64() })
	assert.Panics(t, func() { in.Displacement() })
	assert.Panics(t, func() { in.TypeIDAndImm32() })
}

func TestOpFromRawBounds(t *testing.T) {
	op, ok := OpFromRaw(uint32(OpRET))
	require.True(t, ok)
	assert.Equal(t, OpRET, op)

	_, ok = OpFromRaw(uint32(len(opcodeInfoTable)) + 1000)
	assert.False(t, ok)
}

func TestIsUnimplementedCoversOpenQuestionOpcodes(t *testing.T) {
	required := []OpcodeOp{
		OpSetListType, OpPOWi, OpCALLBND, OpCallPtr, OpFuncPtr,
		OpSwapPtr, OpLdGRdR4, OpPshNull, OpClrVPtr, OpTYPEID,
		OpCmpPtr, OpLoadVObjR, OpCast, OpChkNullS,
	}
	for _, op := range required {
		assert.True(t, IsUnimplemented(op), "expected %s to be unimplemented", InfoFor(op).Mnemonic)
	}

	assert.False(t, IsUnimplemented(OpADDi))
	assert.False(t, IsUnimplemented(OpRET))
}

func TestInfoForSizeWordsMatchVariant(t *testing.T) {
	cases := []struct {
		op   OpcodeOp
		size int
	}{
		{OpNop, 1},
		{OpPushC4, 2},
		{OpPushC8, 3},
		{OpALLOC, 3},
		{OpFREE, 3},
		{OpREFCPY, 3},
		{OpRefCpyV, 3},
		{OpSetListSize, 3},
	}
	for _, c := range cases {
		info := InfoFor(c.op)
		assert.Equal(t, c.size, info.SizeWords, "%s size", info.Mnemonic)
	}
}
