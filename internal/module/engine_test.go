package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/bcio"
)

func TestEngineCompileAndBuildAllAcrossModules(t *testing.T) {
	e := NewEngine(1, api.NewConfig(), NewReferenceLinker(), nil)

	slotA := &api.FnPtrSlot{}
	slotB := &api.FnPtrSlot{}

	fnA := simpleFn("a")
	fnA.Module = "moduleA"
	fnB := simpleFn("b")
	fnB.Module = "moduleB"

	require.NoError(t, e.Compile(fnA, slotA))
	require.NoError(t, e.Compile(fnB, slotB))

	require.NoError(t, e.BuildAll())

	assert.NotZero(t, slotA.Addr)
	assert.NotZero(t, slotB.Addr)
}

func TestCompileRejectsEngineMismatch(t *testing.T) {
	e := NewEngine(1, api.NewConfig(), NewReferenceLinker(), nil)

	fn := simpleFn("mismatched")
	fn.EngineID = 2

	err := e.Compile(fn, &api.FnPtrSlot{})
	assert.Error(t, err)
}

func TestCompileAcceptsZeroEngineIDAsUnset(t *testing.T) {
	e := NewEngine(1, api.NewConfig(), NewReferenceLinker(), nil)

	fn := simpleFn("unset_engine")
	fn.EngineID = 0

	assert.NoError(t, e.Compile(fn, &api.FnPtrSlot{}))
}

func TestReleaseJitDoesNotPanicWithNoAssemblers(t *testing.T) {
	e := NewEngine(1, api.NewConfig(), NewReferenceLinker(), nil)
	assert.NotPanics(t, func() { e.ReleaseJit(0x1000) })
}

func TestMessageCallbackReceivesBuildTimeWarnings(t *testing.T) {
	var messages []string
	cb := func(severity, message string) { messages = append(messages, severity+": "+message) }

	e := NewEngine(1, api.NewConfig(), NewReferenceLinker(), cb)

	bad := &api.ScriptFunction{
		ID:          "bad",
		ReturnType:  api.ScriptType{Kind: api.KindVoid},
		StackNeeded: 4,
		Bytecode: words(
			uint32(bcio.OpPOWi),
			uint32(bcio.OpRET), 0,
		),
	}
	require.NoError(t, e.Compile(bad, &api.FnPtrSlot{}))
	require.NoError(t, e.BuildAll())

	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0], "warning:")
}
