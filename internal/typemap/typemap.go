// Package typemap implements TypeMapper: translating script data types into
// backend IR types, per spec §4.1.
package typemap

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/llir/llvm/ir/types"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/irgen"
)

// Mapper maps script types to backend IR types, caching composite (object)
// types by script type-id so the same class only gets one opaque struct
// definition per module.
type Mapper struct {
	types *irgen.Types
	// composite caches type-id -> the opaque struct type representing an
	// object's in-memory layout, keyed with a swiss.Map for O(1) probing
	// under the heavy lookup churn a large class hierarchy produces during
	// translation (every object-typed parameter, this, or return value
	// re-resolves its type).
	composite *swiss.Map[int32, types.Type]
	// objects records the ObjectType metadata used to build a composite's
	// member layout the first time it is referenced.
	objects map[int32]*api.ObjectType
}

// New returns a Mapper for one module's lifetime.
func New(t *irgen.Types) *Mapper {
	return &Mapper{
		types:     t,
		composite: swiss.NewMap[int32, types.Type](64),
		objects:   make(map[int32]*api.ObjectType),
	}
}

// RegisterObjectType makes ot available for later ToIR lookups by type-id.
// Must be called before the first ToIR reference to ot.TypeID.
func (m *Mapper) RegisterObjectType(ot *api.ObjectType) {
	m.objects[ot.TypeID] = ot
}

// ToIR maps a script type to the backend IR type used to hold it in a
// register or stack slot.
//
// Primitives map to the corresponding scalar. A reference to a primitive
// maps to a pointer to that scalar. An object type (by value, by handle, or
// by reference) maps to an opaque `{ [byte x size_in_memory] }` struct named
// after the script type and cached by type-id, always surfaced as a pointer
// to that struct.
func (m *Mapper) ToIR(t api.ScriptType) types.Type {
	if t.Kind == api.KindObject {
		return irgen.PointerTo(m.compositeFor(t.TypeID))
	}

	scalar := m.scalarFor(t.Kind)
	if t.IsReference {
		return irgen.PointerTo(scalar)
	}
	return scalar
}

func (m *Mapper) scalarFor(k api.TypeKind) types.Type {
	switch k {
	case api.KindVoid:
		return m.types.Void
	case api.KindBool:
		return m.types.I1
	case api.KindI8:
		return m.types.I8
	case api.KindI16:
		return m.types.I16
	case api.KindI32:
		return m.types.I32
	case api.KindI64:
		return m.types.I64
	case api.KindF32:
		return m.types.F32
	case api.KindF64:
		return m.types.F64
	default:
		panic(fmt.Sprintf("typemap: unknown primitive kind %d", k))
	}
}

// SizeOf returns the in-memory size, in bytes, of a registered object
// type-id. Panics if the type-id was never registered, the same invariant
// compositeFor enforces.
func (m *Mapper) SizeOf(typeID int32) uint32 {
	return m.ObjectTypeFor(typeID).SizeInMemory
}

// ObjectTypeFor returns the registered metadata for a script object type-id.
// Panics if the type-id was never registered, the same invariant
// compositeFor enforces.
func (m *Mapper) ObjectTypeFor(typeID int32) *api.ObjectType {
	ot, ok := m.objects[typeID]
	if !ok {
		panic(fmt.Sprintf("typemap: object type-id %d referenced before RegisterObjectType", typeID))
	}
	return ot
}

// compositeFor returns the cached opaque struct type for a script object
// type-id, creating it (eagerly, on first reference) if necessary.
func (m *Mapper) compositeFor(typeID int32) types.Type {
	if cached, ok := m.composite.Get(typeID); ok {
		return cached
	}

	ot, ok := m.objects[typeID]
	if !ok {
		panic(fmt.Sprintf("typemap: object type-id %d referenced before RegisterObjectType", typeID))
	}

	st := types.NewStruct(types.NewArray(uint64(ot.SizeInMemory), m.types.I8))
	st.TypeName = ot.Name
	m.composite.Put(typeID, st)
	return st
}
