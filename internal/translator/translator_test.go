package translator

import (
	"strings"
	"testing"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/bcio"
	"github.com/scriptjit/ngjit/internal/diag"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/runtimehelpers"
	"github.com/scriptjit/ngjit/internal/typemap"
)

func newTestTranslator(t *testing.T, callTable []*api.ScriptFunction) *Translator {
	t.Helper()
	m := irgen.NewModule("test")
	tm := typemap.New(m.Types)
	helpers := runtimehelpers.Declare(m)
	cfg := api.NewConfig()
	lg := diag.NewLogger(false)
	return New(m, tm, helpers, cfg, lg, callTable)
}

func words(ops ...uint32) []uint32 { return ops }

func TestTranslateSimpleArithmeticFunction(t *testing.T) {
	tr := newTestTranslator(t, nil)

	fn := &api.ScriptFunction{
		ID:            "add",
		ReturnType:    api.ScriptType{Kind: api.KindI32},
		VariableSpace: 0,
		StackNeeded:   4,
		Bytecode: words(
			uint32(bcio.OpPushC4), 2,
			uint32(bcio.OpPushC4), 3,
			uint32(bcio.OpADDi),
			uint32(bcio.OpRET), 0,
		),
	}

	native, err := tr.Translate(fn)
	require.NoError(t, err)
	require.NotNil(t, native)
	assert.Len(t, native.Blocks, 1)

	ir := tr.module.String()
	assert.Contains(t, ir, "add i32")
	assert.Contains(t, ir, "ret i32")
}

func TestTranslateRejectsEmptyBytecode(t *testing.T) {
	tr := newTestTranslator(t, nil)
	fn := &api.ScriptFunction{ID: "empty", ReturnType: api.ScriptType{Kind: api.KindVoid}}

	_, err := tr.Translate(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bytecode")
}

func TestTranslateRejectsNativeFunction(t *testing.T) {
	tr := newTestTranslator(t, nil)
	fn := &api.ScriptFunction{
		ID:         "sys",
		ReturnType: api.ScriptType{Kind: api.KindVoid},
		Native:     &api.NativeInterface{Conv: api.CDECL, Symbol: "host_fn"},
		Bytecode:   words(uint32(bcio.OpRET), 0),
	}

	_, err := tr.Translate(fn)
	assert.Error(t, err)
}

func TestTranslateRejectsUnimplementedOpcode(t *testing.T) {
	tr := newTestTranslator(t, nil)
	fn := &api.ScriptFunction{
		ID:          "pow",
		ReturnType:  api.ScriptType{Kind: api.KindVoid},
		StackNeeded: 4,
		Bytecode: words(
			uint32(bcio.OpPOWi),
			uint32(bcio.OpRET), 0,
		),
	}

	_, err := tr.Translate(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POWi")
}

func TestTranslateConditionalBranchCreatesExtraBlocks(t *testing.T) {
	tr := newTestTranslator(t, nil)

	fn := &api.ScriptFunction{
		ID:          "branchy",
		ReturnType:  api.ScriptType{Kind: api.KindI32},
		StackNeeded: 8,
		Bytecode:    buildBranchy(),
	}

	native, err := tr.Translate(fn)
	require.NoError(t, err)
	assert.Greater(t, len(native.Blocks), 1)
}

// buildBranchy constructs a small function with one conditional branch whose
// target offset is computed exactly, rather than guessed, so the cursor
// decode and jump-map resolution both succeed.
//
//	offset 0:  PushC4 0      size 2
//	offset 2:  PushC4 0      size 2
//	offset 4:  CMPi          size 1
//	offset 5:  JZ disp       size 2  (target: offset 11)
//	offset 7:  PushC4 1      size 2
//	offset 9:  RET 0         size 2
//	offset 11: PushC4 2      size 2   <- JZ target
//	offset 13: RET 0         size 2
func buildBranchy() []uint32 {
	jzOffset := uint32(5)
	jzSize := uint32(2)
	target := uint32(11)
	disp := int32(target) - int32(jzOffset+jzSize)

	return []uint32{
		uint32(bcio.OpPushC4), 0,
		uint32(bcio.OpPushC4), 0,
		uint32(bcio.OpCMPi),
		uint32(bcio.OpJZ), uint32(disp),
		uint32(bcio.OpPushC4), 1,
		uint32(bcio.OpRET), 0,
		uint32(bcio.OpPushC4), 2,
		uint32(bcio.OpRET), 0,
	}
}

// TestEmitScriptCallForwardsParametersInDeclarationOrder exercises
// emitScriptCall's stack-popping order: pop(param0) happens right after
// pop(this)/pop(sret), so the caller must push parameters in reverse
// declaration order (last argument first) for the forward pop loop to land
// param0 on the value popped last among the parameters - the same
// right-to-left argument evaluation order a cdecl-style caller uses.
func TestEmitScriptCallForwardsParametersInDeclarationOrder(t *testing.T) {
	callee := &api.ScriptFunction{
		ID:         "callee",
		ReturnType: api.ScriptType{Kind: api.KindI32},
		Params: []api.Param{
			{Type: api.ScriptType{Kind: api.KindI32}, Name: "a"},
			{Type: api.ScriptType{Kind: api.KindI32}, Name: "b"},
		},
		StackNeeded: 4,
	}
	tr := newTestTranslator(t, []*api.ScriptFunction{callee})

	caller := &api.ScriptFunction{
		ID:          "caller",
		ReturnType:  api.ScriptType{Kind: api.KindI32},
		StackNeeded: 8,
		Bytecode: words(
			uint32(bcio.OpPushC4), 20, // b, pushed first (bottom)
			uint32(bcio.OpPushC4), 10, // a, pushed last (top) so it pops first
			uint32(bcio.OpCALL), 0,
			uint32(bcio.OpRET), 0,
		),
	}

	native, err := tr.Translate(caller)
	require.NoError(t, err)

	ir := tr.module.String()
	idx := strings.Index(ir, "asllvm_fn_callee(")
	require.GreaterOrEqual(t, idx, 0)
	line := ir[idx:]
	end := strings.IndexAny(line, ")\n")
	require.GreaterOrEqual(t, end, 0)
	sig := line[:end]
	assert.Equal(t, 2, strings.Count(sig, "i32"))

	// totalSpace is 12, so a (pushed last, at offset 2) sits at storage
	// index 10 and b (offset 1) at index 11.
	var call *llir.InstCall
	for _, b := range native.Blocks {
		for _, inst := range b.Insts {
			if c, ok := inst.(*llir.InstCall); ok {
				call = c
			}
		}
	}
	require.NotNil(t, call)
	require.Len(t, call.Args, 2)
	assert.Equal(t, int64(10), storageIndexOf(t, call.Args[0]))
	assert.Equal(t, int64(11), storageIndexOf(t, call.Args[1]))
}

// storageIndexOf returns the storage-array index an argument was loaded from.
func storageIndexOf(t *testing.T, v value.Value) int64 {
	t.Helper()
	load, ok := v.(*llir.InstLoad)
	require.True(t, ok)
	gep, ok := load.Src.(*llir.InstGetElementPtr)
	require.True(t, ok)
	idx, ok := gep.Indices[1].(*constant.Int)
	require.True(t, ok)
	return idx.X.Int64()
}

// TestEmitSystemCallObjLastOrdersThisAfterParameters exercises
// emitSystemCall's CDECL_OBJLAST path: the this pointer is the last thing
// the caller pushes (so it pops first, ahead of any declared parameter),
// even though it lands as the final native argument position.
func TestEmitSystemCallObjLastOrdersThisAfterParameters(t *testing.T) {
	target := &api.ScriptFunction{
		ID:         "native_objlast",
		ReturnType: api.ScriptType{Kind: api.KindVoid},
		Object:     &api.ObjectType{TypeID: 1, Name: "Owner", SizeInMemory: 8},
		Params: []api.Param{
			{Type: api.ScriptType{Kind: api.KindI32}, Name: "x"},
		},
		Native: &api.NativeInterface{Conv: api.CDECL_OBJLAST, Symbol: "host_objlast"},
	}
	tr := newTestTranslator(t, []*api.ScriptFunction{target})
	tr.types.RegisterObjectType(target.Object)

	caller := &api.ScriptFunction{
		ID:            "caller2",
		ReturnType:    api.ScriptType{Kind: api.KindVoid},
		VariableSpace: 4,
		StackNeeded:   12,
		Bytecode: words(
			uint32(bcio.OpPushC4), 7, // param x, pushed first
			uint32(bcio.OpPSF), 4, // this pointer, pushed last (top), frame-relative address into storage
			uint32(bcio.OpCALLSYS), 0,
			uint32(bcio.OpRET), 0,
		),
	}

	_, err := tr.Translate(caller)
	require.NoError(t, err)

	ir := tr.module.String()
	assert.Contains(t, ir, "call void @host_objlast(")

	// x comes first as an i32; the this pointer is the second, final argument.
	start := strings.Index(ir, "call void @host_objlast(")
	require.GreaterOrEqual(t, start, 0)
	argList := ir[start+len("call void @host_objlast("):]
	argList = argList[:strings.Index(argList, ")")]
	args := strings.Split(argList, ", ")
	require.Len(t, args, 2)
	assert.True(t, strings.HasPrefix(args[0], "i32 "))
	assert.False(t, strings.HasPrefix(args[1], "i32 "))
}
