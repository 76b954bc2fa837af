package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/diag"
)

func words(ops ...uint32) []uint32 { return ops }

func simpleFn(id string) *api.ScriptFunction {
	return &api.ScriptFunction{
		ID:          id,
		ReturnType:  api.ScriptType{Kind: api.KindI32},
		StackNeeded: 4,
		Bytecode: words(
			uint32(bcio.OpPushC4), 1,
			uint32(bcio.OpRET), 0,
		),
	}
}

func TestBuildPublishesOneSymbolPerFunction(t *testing.T) {
	a := NewAssembler("", api.NewConfig(), diag.NewLogger(false), NewReferenceLinker())

	require.NoError(t, a.Append(simpleFn("f1"), &api.FnPtrSlot{}))
	require.NoError(t, a.Append(simpleFn("f2"), &api.FnPtrSlot{}))

	require.NoError(t, a.Build())
	symbols := a.Symbols()
	assert.Len(t, symbols, 2)

	ids := map[string]bool{}
	for _, s := range symbols {
		ids[s.FunctionID] = true
		assert.NotZero(t, s.Addr)
	}
	assert.True(t, ids["f1"])
	assert.True(t, ids["f2"])
}

func TestAppendRejectsEmptyBytecodeForScriptFunction(t *testing.T) {
	a := NewAssembler("", api.NewConfig(), diag.NewLogger(false), NewReferenceLinker())

	err := a.Append(&api.ScriptFunction{ID: "empty", ReturnType: api.ScriptType{Kind: api.KindVoid}}, &api.FnPtrSlot{})
	assert.Error(t, err)
}

func TestAppendAfterBuildFails(t *testing.T) {
	a := NewAssembler("", api.NewConfig(), diag.NewLogger(false), NewReferenceLinker())
	require.NoError(t, a.Build())

	err := a.Append(simpleFn("late"), &api.FnPtrSlot{})
	assert.Error(t, err)
}

func TestBuildSkipsFunctionThatFailsTranslationWithoutFailingTheWholeBuild(t *testing.T) {
	a := NewAssembler("", api.NewConfig(), diag.NewLogger(false), NewReferenceLinker())

	bad := &api.ScriptFunction{
		ID:          "bad",
		ReturnType:  api.ScriptType{Kind: api.KindVoid},
		StackNeeded: 4,
		Bytecode: words(
			uint32(bcio.OpPOWi),
			uint32(bcio.OpRET), 0,
		),
	}
	good := simpleFn("good")

	require.NoError(t, a.Append(bad, &api.FnPtrSlot{}))
	require.NoError(t, a.Append(good, &api.FnPtrSlot{}))

	require.NoError(t, a.Build())
	symbols := a.Symbols()
	require.Len(t, symbols, 1)
	assert.Equal(t, "good", symbols[0].FunctionID)
}

func TestBuildNeverTranslatesNativeFunctions(t *testing.T) {
	a := NewAssembler("", api.NewConfig(), diag.NewLogger(false), NewReferenceLinker())

	native := &api.ScriptFunction{
		ID:         "native_fn",
		ReturnType: api.ScriptType{Kind: api.KindVoid},
		Native:     &api.NativeInterface{Conv: api.CDECL, Symbol: "host_thing"},
	}
	require.NoError(t, a.Append(native, &api.FnPtrSlot{}))
	require.NoError(t, a.Build())

	assert.Empty(t, a.Symbols())
}

func TestFnPtrSlotPopulatedAfterBuild(t *testing.T) {
	a := NewAssembler("", api.NewConfig(), diag.NewLogger(false), NewReferenceLinker())
	slot := &api.FnPtrSlot{}

	require.NoError(t, a.Append(simpleFn("only"), slot))
	require.NoError(t, a.Build())

	assert.NotZero(t, slot.Addr)
}
