package irgen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// Module owns the backend IR for one script module (including the
// distinguished shared module), the same lifetime as ModuleAssembler.
type Module struct {
	IR    *ir.Module
	Types *Types

	funcs   map[string]*ir.Func
	externs map[string]*ir.Func
}

// NewModule returns an empty backend module named name (used only for
// diagnostics; the backend does not require a unique name).
func NewModule(name string) *Module {
	m := ir.NewModule()
	m.SourceFilename = name
	return &Module{
		IR:      m,
		Types:   NewTypes(),
		funcs:   make(map[string]*ir.Func),
		externs: make(map[string]*ir.Func),
	}
}

// DeclareFunc declares (or returns the already-declared) IR function symbol
// for a script or entry-thunk function, with a concrete body to be filled in
// by the caller.
func (m *Module) DeclareFunc(name string, ret types.Type, paramNames []string, paramTypes []types.Type) *ir.Func {
	if f, ok := m.funcs[name]; ok {
		return f
	}
	params := make([]*ir.Param, len(paramTypes))
	for i, t := range paramTypes {
		nm := ""
		if i < len(paramNames) {
			nm = paramNames[i]
		}
		params[i] = ir.NewParam(nm, t)
	}
	f := m.IR.NewFunc(name, ret, params...)
	m.funcs[name] = f
	return f
}

// DeclareExtern declares a symbol with no body for a runtime helper or
// system function, resolved at JIT link time to a host-provided address.
func (m *Module) DeclareExtern(name string, ret types.Type, paramTypes ...types.Type) *ir.Func {
	if f, ok := m.externs[name]; ok {
		return f
	}
	params := make([]*ir.Param, len(paramTypes))
	for i, t := range paramTypes {
		params[i] = ir.NewParam("", t)
	}
	f := m.IR.NewFunc(name, ret, params...)
	f.Linkage = enum.LinkageExternal
	m.externs[name] = f
	return f
}

// LookupFunc returns a previously declared script/thunk function by name, if
// any.
func (m *Module) LookupFunc(name string) (*ir.Func, bool) {
	f, ok := m.funcs[name]
	return f, ok
}

// String renders the module as LLVM textual IR, used by Config.Verbose
// diagnostics.
func (m *Module) String() string { return m.IR.String() }
