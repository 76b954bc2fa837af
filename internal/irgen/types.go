// Package irgen adapts this translator to the codegen backend: concretely,
// LLVM IR constructed through github.com/llir/llvm. Every other internal
// package targets the backend only through this adapter, mirroring the
// original asllvm project's CommonDefinitions/Builder split (a small set of
// commonly-needed types and a thin IR-construction facade), just expressed
// against a pure-Go LLVM IR library instead of linking the real LLVM C++
// libraries.
package irgen

import (
	"github.com/llir/llvm/ir/types"
)

// Types holds the handful of backend types every component needs, analogous
// to the original project's CommonDefinitions. Pointer width is a configured
// target constant per §4.1; PtrBits fixes it to the one documented target
// ABI (x86-64 System V) this design assumes, with other widths as a future
// extension point.
type Types struct {
	Void types.Type
	I1   types.Type
	I8   types.Type
	I16  types.Type
	I32  types.Type
	I64  types.Type
	F32  types.Type
	F64  types.Type

	// Iptr is an integer-sized-like-a-pointer type, used for GEP index
	// arithmetic over the stack storage array.
	Iptr types.Type
	// PtrBits is the configured target pointer width, in bits.
	PtrBits int

	// VoidPtr is `i8*`, the generic "untyped pointer" used by runtime helper
	// signatures (alloc, free, vtable lookups, ...).
	VoidPtr types.Type
}

// PtrDwords is the number of 32-bit dwords a pointer occupies on the VM
// stack for the configured target ABI.
func (t *Types) PtrDwords() int { return t.PtrBits / 32 }

// NewTypes returns the common type set for the one documented target ABI
// (x86-64 System V, 64-bit pointers).
func NewTypes() *Types {
	i8 := types.I8
	return &Types{
		Void:    types.Void,
		I1:      types.I1,
		I8:      i8,
		I16:     types.I16,
		I32:     types.I32,
		I64:     types.I64,
		F32:     types.Float,
		F64:     types.Double,
		Iptr:    types.I64,
		PtrBits: 64,
		VoidPtr: types.NewPointer(i8),
	}
}

// PointerTo returns a pointer to the backend type t.
func PointerTo(t types.Type) types.Type { return types.NewPointer(t) }

// ScalarForKind returns the backend scalar type for one of the eight
// primitive script kinds (index 0..7 matching api.TypeKind's primitive
// ordering; callers pass the already-resolved type, this just centralizes
// the switch so TypeMapper and the thunk/ABI code agree on it).
type Kind byte

const (
	KindVoid Kind = iota
	KindBool
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
)

func (t *Types) ScalarForKind(k Kind) types.Type {
	switch k {
	case KindVoid:
		return t.Void
	case KindBool:
		return t.I1
	case KindI8:
		return t.I8
	case KindI16:
		return t.I16
	case KindI32:
		return t.I32
	case KindI64:
		return t.I64
	case KindF32:
		return t.F32
	case KindF64:
		return t.F64
	default:
		panic("irgen: unknown scalar kind")
	}
}
