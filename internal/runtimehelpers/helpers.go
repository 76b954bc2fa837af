// Package runtimehelpers declares the eight C-callable functions every
// translated module links against instead of inlining their behavior:
// allocation, script object construction, vtable resolution, and the two
// error-reporting entry points. Grounded on the original project's
// RuntimeHelpers and on this teacher's own "host module" pattern for
// functions a translated function body cannot implement itself
// (internal/engine/wazevo's use of declared, externally-linked helper
// symbols for memory growth and table access).
package runtimehelpers

import (
	"github.com/llir/llvm/ir"

	"github.com/scriptjit/ngjit/internal/irgen"
)

// Symbol names the JIT linker resolves against host-provided trampolines.
const (
	SymAlloc                = "asllvm_alloc"
	SymFree                 = "asllvm_free"
	SymNewScriptObject      = "asllvm_new_script_object"
	SymScriptVtableLookup   = "asllvm_script_vtable_lookup"
	SymSystemVtableLookup   = "asllvm_system_vtable_lookup"
	SymCallObjectMethod     = "asllvm_call_object_method"
	SymPanic                = "asllvm_panic"
	SymSetInternalException = "asllvm_set_internal_exception"
)

// Externs holds the declared IR symbol for every helper, each an extern
// function on one backend module.
type Externs struct {
	// Alloc(size uintptr) -> untyped pointer, zero-initialized.
	Alloc *ir.Func
	// Free(ptr) releases memory returned by Alloc or NewScriptObject.
	Free *ir.Func
	// NewScriptObject(typeID int32, engine untyped pointer) -> object pointer,
	// refcount initialized to 1.
	NewScriptObject *ir.Func
	// ScriptVtableLookup(object, slot int32) -> function pointer, for a
	// virtual call to a script-defined override.
	ScriptVtableLookup *ir.Func
	// SystemVtableLookup(object, slot int32) -> function pointer, for
	// VIRTUAL_THISCALL system calls.
	SystemVtableLookup *ir.Func
	// CallObjectMethod(object, methodPtr) invokes a resolved method pointer
	// against object; used by REFCPY/RefCpyV to invoke a type's addref
	// behavior.
	CallObjectMethod *ir.Func
	// Panic(message) aborts the running script context. No code this
	// translator emits calls it.
	Panic *ir.Func
	// SetInternalException(context, message) records a catchable script
	// exception and unwinds to the nearest handler. No code this translator
	// emits calls it.
	SetInternalException *ir.Func
}

// Declare declares every helper as an extern symbol on m. Safe to call once
// per module; ModuleAssembler calls it exactly once during module creation.
func Declare(m *irgen.Module) *Externs {
	t := m.Types
	return &Externs{
		Alloc:                 m.DeclareExtern(SymAlloc, t.VoidPtr, t.Iptr),
		Free:                  m.DeclareExtern(SymFree, t.Void, t.VoidPtr),
		NewScriptObject:       m.DeclareExtern(SymNewScriptObject, t.VoidPtr, t.I32, t.VoidPtr),
		ScriptVtableLookup:    m.DeclareExtern(SymScriptVtableLookup, t.VoidPtr, t.VoidPtr, t.I32),
		SystemVtableLookup:    m.DeclareExtern(SymSystemVtableLookup, t.VoidPtr, t.VoidPtr, t.I32),
		CallObjectMethod:      m.DeclareExtern(SymCallObjectMethod, t.Void, t.VoidPtr, t.VoidPtr),
		Panic:                 m.DeclareExtern(SymPanic, t.Void, t.VoidPtr),
		SetInternalException: m.DeclareExtern(SymSetInternalException, t.Void, t.VoidPtr, t.VoidPtr),
	}
}
