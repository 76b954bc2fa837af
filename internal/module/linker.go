// Package module implements ModuleAssembler: one backend IR module per
// script module (or the distinguished shared module), owning every pending
// function's translation, optimization, JIT linking, and published address.
// Grounded on this teacher's per-instantiation module builder
// (internal/engine/wazevo/module_engine.go), which owns one compiled
// module's machine code and published function pointers the same way.
package module

import "github.com/scriptjit/ngjit/internal/irgen"

// Linker turns a finished backend IR module into native code and publishes
// one address per named function symbol. A production embedding wires this
// to the actual codegen backend's JIT; ReferenceLinker is the in-process
// stand-in this repository's own tests run against.
type Linker interface {
	// Link compiles mod and returns every function symbol's published
	// address, keyed by symbol name (ModuleAssembler looks up thunk symbols
	// via translator.ThunkSymbol).
	Link(mod *irgen.Module) (map[string]uintptr, error)
	// Release retires a previously published address. A linker that keeps
	// code resident for the process lifetime may treat this as a no-op.
	Release(addr uintptr)
}

// ReferenceLinker is a Linker that never actually generates machine code: it
// mints monotonically increasing fake addresses for the functions a module
// defines, without inspecting or validating their IR, letting tests exercise
// Assembler/Engine control flow without a real JIT backend attached.
type ReferenceLinker struct {
	next uintptr
}

// NewReferenceLinker returns a ReferenceLinker minting addresses starting
// just past the zero page, so a zero FnPtrSlot reliably means "never
// linked".
func NewReferenceLinker() *ReferenceLinker {
	return &ReferenceLinker{next: 0x1000}
}

// Link mints one fake address per function defined in mod.IR.Funcs that has
// a body (external declarations, i.e. runtime helpers and system functions,
// are never "published" themselves).
func (l *ReferenceLinker) Link(mod *irgen.Module) (map[string]uintptr, error) {
	addrs := make(map[string]uintptr)
	for _, f := range mod.IR.Funcs {
		if len(f.Blocks) == 0 {
			continue // external declaration, not a function this module defines
		}
		addrs[f.Name()] = l.next
		l.next += 0x40
	}
	return addrs, nil
}

// Release is a no-op: the reference linker never allocated real executable
// memory to begin with.
func (l *ReferenceLinker) Release(addr uintptr) {}
