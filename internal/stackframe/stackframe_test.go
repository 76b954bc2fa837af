package stackframe

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/typemap"
)

func newTestFrame(t *testing.T, fn *api.ScriptFunction, nativeParams int) (*Frame, *ir.Block) {
	t.Helper()
	tp := irgen.NewTypes()
	tm := typemap.New(tp)

	m := ir.NewModule()
	irParams := make([]*ir.Param, nativeParams)
	for i := range irParams {
		irParams[i] = ir.NewParam("", types.I32)
	}
	irFunc := m.NewFunc("fn", types.Void, irParams...)
	entry := irFunc.NewBlock("entry")

	f := New(fn, tm, tp)
	f.Setup(entry, irFunc)
	return f, entry
}

func plainFunc(variableSpace, stackNeeded uint32) *api.ScriptFunction {
	return &api.ScriptFunction{
		ID:            "f",
		ReturnType:    api.ScriptType{Kind: api.KindVoid},
		Params:        []api.Param{{Type: api.ScriptType{Kind: api.KindI32}, Name: "a"}, {Type: api.ScriptType{Kind: api.KindI32}, Name: "b"}},
		VariableSpace: variableSpace,
		StackNeeded:   stackNeeded,
	}
}

func TestSetupComputesSpaces(t *testing.T) {
	fn := plainFunc(4, 8)
	f, _ := newTestFrame(t, fn, 2)

	assert.Equal(t, int64(4), f.VariableSpace())
	// reserved = 2 * ptrDwords(2) = 4; stackSpace = 8 - 4 + 4 = 8
	assert.Equal(t, int64(8), f.StackSpace())
	assert.Equal(t, int64(12), f.TotalSpace())
	assert.Equal(t, Offset(4), f.StackPointer())
	assert.True(t, f.EmptyStack())
}

func TestSetupRegistersParametersAtNonPositiveOffsets(t *testing.T) {
	fn := plainFunc(4, 8)
	f, block := newTestFrame(t, fn, 2)

	p0 := f.PointerTo(block, 0, nil)
	p1 := f.PointerTo(block, -1, nil)

	alloca0, ok := p0.(*ir.InstAlloca)
	require.True(t, ok)
	assert.Equal(t, "a", alloca0.Name())

	alloca1, ok := p1.(*ir.InstAlloca)
	require.True(t, ok)
	assert.Equal(t, "b", alloca1.Name())
}

func TestSetupNamesStackRetPtrAndThisPtr(t *testing.T) {
	fn := &api.ScriptFunction{
		ID:            "m",
		ReturnType:    api.ScriptType{Kind: api.KindObject, TypeID: 1},
		Flags:         api.FlagDoesReturnOnStack,
		Object:        &api.ObjectType{TypeID: 2, Name: "Owner", SizeInMemory: 8},
		Params:        []api.Param{{Type: api.ScriptType{Kind: api.KindI32}, Name: "x"}},
		VariableSpace: 4,
		StackNeeded:   8,
	}
	tp := irgen.NewTypes()
	tm := typemap.New(tp)
	tm.RegisterObjectType(fn.Object)
	tm.RegisterObjectType(&api.ObjectType{TypeID: 1, Name: "Result", SizeInMemory: 8})

	m := ir.NewModule()
	irParams := []*ir.Param{
		ir.NewParam("", types.NewPointer(types.I8)),
		ir.NewParam("", types.NewPointer(types.I8)),
		ir.NewParam("", types.I32),
	}
	irFunc := m.NewFunc("m", types.Void, irParams...)
	entry := irFunc.NewBlock("entry")

	f := New(fn, tm, tp)
	f.Setup(entry, irFunc)

	sret, ok := f.PointerTo(entry, 0, nil).(*ir.InstAlloca)
	require.True(t, ok)
	assert.Equal(t, "stackRetPtr", sret.Name())

	this, ok := f.PointerTo(entry, -2, nil).(*ir.InstAlloca)
	require.True(t, ok)
	assert.Equal(t, "thisPtr", this.Name())

	x, ok := f.PointerTo(entry, -4, nil).(*ir.InstAlloca)
	require.True(t, ok)
	assert.Equal(t, "x", x.Name())
}

func TestPushPopRoundTrip(t *testing.T) {
	fn := plainFunc(4, 8)
	f, block := newTestFrame(t, fn, 2)

	v := f.Load(block, Offset(0), types.I32) // dummy SSA value to push
	f.Push(block, v, 1)
	assert.Equal(t, Offset(5), f.StackPointer())
	assert.False(t, f.EmptyStack())

	got := f.PopTyped(block, 1, types.I32)
	require.NotNil(t, got)
	assert.Equal(t, Offset(4), f.StackPointer())
	assert.True(t, f.EmptyStack())
}

func TestFinalizeFailsWhenStackNotEmpty(t *testing.T) {
	fn := plainFunc(4, 8)
	f, block := newTestFrame(t, fn, 2)

	v := f.Load(block, Offset(0), types.I32)
	f.Push(block, v, 1)

	err := f.Finalize()
	assert.Error(t, err)

	f.Pop(1)
	assert.NoError(t, f.Finalize())
}

func TestCheckBoundsDetectsUnderAndOverflow(t *testing.T) {
	fn := plainFunc(4, 8)
	f, _ := newTestFrame(t, fn, 2)

	assert.NoError(t, f.CheckBounds())

	f.Pop(100)
	assert.Error(t, f.CheckBounds())

	f.ClampToVariableSpace()
	assert.NoError(t, f.CheckBounds())
}

func TestPointerToPositiveOffsetIndexesFromTop(t *testing.T) {
	fn := plainFunc(4, 8)
	f, block := newTestFrame(t, fn, 2)

	// offset == variableSpace addresses the topmost local-variable slot,
	// which is realOffset = totalSpace - offset = 12 - 4 = 8.
	ptr := f.PointerTo(block, Offset(4), nil)
	gep, ok := ptr.(*ir.InstGetElementPtr)
	require.True(t, ok)
	idx, ok := gep.Indices[1].(*constant.Int)
	require.True(t, ok)
	assert.Equal(t, int64(8), idx.X.Int64())
}

func TestPointerToPanicsOnUnregisteredParameterOffset(t *testing.T) {
	fn := plainFunc(4, 8)
	f, block := newTestFrame(t, fn, 2)

	assert.Panics(t, func() {
		f.PointerTo(block, Offset(-99), nil)
	})
}
