package irgen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// ConstI32 returns a 32-bit integer constant.
func ConstI32(v int32) *constant.Int { return constant.NewInt(types.I32, int64(v)) }

// ConstI64 returns a 64-bit integer constant.
func ConstI64(v int64) *constant.Int { return constant.NewInt(types.I64, v) }

// ConstIptr returns a constant of the pointer-index integer type.
func (t *Types) ConstIptr(v int64) *constant.Int { return constant.NewInt(types.I64, v) }

// ConstF32 returns a 32-bit float constant.
func ConstF32(v float32) *constant.Float { return constant.NewFloat(types.Float, float64(v)) }

// ConstF64 returns a 64-bit float constant.
func ConstF64(v float64) *constant.Float { return constant.NewFloat(types.Double, v) }

// NullPtr returns a null pointer constant of the given pointer type.
func NullPtr(ptrType *types.PointerType) *constant.Null { return constant.NewNull(ptrType) }

// GEPToOffset computes a byte-addressed pointer into the single backing
// storage array at dword index idx, mirroring the original stack frame's
// `CreateGEP(storage, {0, real_offset})` addressing. storage must be an
// *ir.InstAlloca of an array-of-i32 type.
func GEPToOffset(block *ir.Block, storage value.Value, elemType types.Type, idx value.Value) *ir.InstGetElementPtr {
	zero := constant.NewInt(types.I64, 0)
	return block.NewGetElementPtr(elemType, storage, zero, idx)
}

// BitcastPtr reinterprets a pointer value as a pointer to a different
// element type, for the type-punned stack access the spec documents.
func BitcastPtr(block *ir.Block, v value.Value, to types.Type) value.Value {
	return block.NewBitCast(v, types.NewPointer(to))
}
