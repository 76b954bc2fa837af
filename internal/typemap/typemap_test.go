package typemap

import (
	"testing"

	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/irgen"
)

func TestToIRPrimitiveScalars(t *testing.T) {
	m := New(irgen.NewTypes())

	assert.Equal(t, types.I1, m.ToIR(api.ScriptType{Kind: api.KindBool}))
	assert.Equal(t, types.I8, m.ToIR(api.ScriptType{Kind: api.KindI8}))
	assert.Equal(t, types.I32, m.ToIR(api.ScriptType{Kind: api.KindI32}))
	assert.Equal(t, types.I64, m.ToIR(api.ScriptType{Kind: api.KindI64}))
	assert.Equal(t, types.Float, m.ToIR(api.ScriptType{Kind: api.KindF32}))
	assert.Equal(t, types.Double, m.ToIR(api.ScriptType{Kind: api.KindF64}))
}

func TestToIRReferenceIsPointerToScalar(t *testing.T) {
	m := New(irgen.NewTypes())

	got := m.ToIR(api.ScriptType{Kind: api.KindI32, IsReference: true})
	ptr, ok := got.(*types.PointerType)
	require.True(t, ok)
	assert.Equal(t, types.I32, ptr.ElemType)
}

func TestToIRObjectIsPointerToNamedOpaqueStruct(t *testing.T) {
	m := New(irgen.NewTypes())
	m.RegisterObjectType(&api.ObjectType{TypeID: 3, Name: "Widget", SizeInMemory: 16})

	got := m.ToIR(api.ScriptType{Kind: api.KindObject, TypeID: 3})
	ptr, ok := got.(*types.PointerType)
	require.True(t, ok)
	st, ok := ptr.ElemType.(*types.StructType)
	require.True(t, ok)
	assert.Equal(t, "Widget", st.TypeName)
}

func TestToIRObjectCachesByTypeID(t *testing.T) {
	m := New(irgen.NewTypes())
	m.RegisterObjectType(&api.ObjectType{TypeID: 3, Name: "Widget", SizeInMemory: 16})

	first := m.ToIR(api.ScriptType{Kind: api.KindObject, TypeID: 3})
	second := m.ToIR(api.ScriptType{Kind: api.KindObject, TypeID: 3})
	assert.Same(t, first.(*types.PointerType).ElemType, second.(*types.PointerType).ElemType)
}

func TestToIRObjectPanicsWhenUnregistered(t *testing.T) {
	m := New(irgen.NewTypes())
	assert.Panics(t, func() {
		m.ToIR(api.ScriptType{Kind: api.KindObject, TypeID: 99})
	})
}

func TestSizeOfRegisteredType(t *testing.T) {
	m := New(irgen.NewTypes())
	m.RegisterObjectType(&api.ObjectType{TypeID: 7, Name: "Thing", SizeInMemory: 24})
	assert.Equal(t, uint32(24), m.SizeOf(7))
}

func TestSizeOfPanicsWhenUnregistered(t *testing.T) {
	m := New(irgen.NewTypes())
	assert.Panics(t, func() {
		m.SizeOf(42)
	})
}

func TestScalarForUnknownKindPanics(t *testing.T) {
	m := New(irgen.NewTypes())
	assert.Panics(t, func() {
		m.ToIR(api.ScriptType{Kind: api.TypeKind(200)})
	})
}
