package module

import (
	"errors"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/diag"
	"github.com/scriptjit/ngjit/internal/errs"
	"github.com/scriptjit/ngjit/internal/irgen"
	"github.com/scriptjit/ngjit/internal/runtimehelpers"
	"github.com/scriptjit/ngjit/internal/translator"
	"github.com/scriptjit/ngjit/internal/typemap"
)

// pendingFn is one function Append queued, waiting for Build.
type pendingFn struct {
	fn  *api.ScriptFunction
	out *api.FnPtrSlot
}

// JitSymbol records one function's published native address.
type JitSymbol struct {
	FunctionID string
	Addr       uintptr
}

// Assembler owns one backend module's IR for a batch: every function
// belonging to the same script module key (or "" for the distinguished
// shared module) shares one Assembler, so the calls between them resolve
// against symbols declared in the same IR module without cross-module
// linking.
type Assembler struct {
	key     string
	ir      *irgen.Module
	types   *typemap.Mapper
	helpers *runtimehelpers.Externs
	cfg     *api.Config
	diag    *diag.Logger
	linker  Linker

	pending map[string]*pendingFn
	built   bool
	symbols []JitSymbol
}

// NewAssembler returns an empty Assembler for one module key.
func NewAssembler(key string, cfg *api.Config, lg *diag.Logger, linker Linker) *Assembler {
	irMod := irgen.NewModule(moduleSourceName(key))
	return &Assembler{
		key:     key,
		ir:      irMod,
		types:   typemap.New(irMod.Types),
		helpers: runtimehelpers.Declare(irMod),
		cfg:     cfg,
		diag:    lg,
		linker:  linker,
		pending: make(map[string]*pendingFn),
	}
}

func moduleSourceName(key string) string {
	if key == "" {
		return "<shared>"
	}
	return key
}

// Append enqueues fn for translation once Build runs.
func (a *Assembler) Append(fn *api.ScriptFunction, out *api.FnPtrSlot) error {
	if a.built {
		return &errs.InternalConsistency{Condition: "Append called after Build", File: "internal/module/assembler.go"}
	}
	if fn.Native == nil && len(fn.Bytecode) == 0 {
		return &errs.NullBytecode{FunctionID: fn.ID}
	}
	if fn.IsMethod() {
		a.types.RegisterObjectType(fn.Object)
	}
	a.pending[fn.ID] = &pendingFn{fn: fn, out: out}
	return nil
}

// Build drives pass 1/2 translation of every pending function in
// deterministic (sorted-by-ID) order, so repeated runs over the same input
// produce byte-identical IR, then links the finished module and publishes
// one JitSymbol per function that survived translation. A function whose
// translation fails is warned about through diag and simply produces no
// output; it does not fail the whole build.
func (a *Assembler) Build() error {
	a.built = true

	ids := maps.Keys(a.pending)
	sort.Strings(ids)

	callTable := make([]*api.ScriptFunction, 0, len(ids))
	for _, id := range ids {
		callTable = append(callTable, a.pending[id].fn)
	}

	tr := translator.New(a.ir, a.types, a.helpers, a.cfg, a.diag, callTable)

	translated := make(map[string]*pendingFn)
	for _, id := range ids {
		p := a.pending[id]
		if p.fn.Native != nil {
			continue // system functions are declared lazily, as each caller needs them
		}
		if _, err := tr.Translate(p.fn); err != nil {
			var ic *errs.InternalConsistency
			var em *errs.EngineMismatch
			if errors.As(err, &ic) || errors.As(err, &em) {
				a.diag.Fatalf("function %q: %v", id, err)
				panic(err)
			}
			a.diag.Warnf("function %q: %v", id, err)
			continue
		}
		translated[id] = p
	}

	if a.cfg.Verbose() {
		a.diag.Printf("module %q IR:\n%s", a.key, a.ir.String())
	}

	addrs, err := a.linker.Link(a.ir)
	if err != nil {
		return err
	}

	for id, p := range translated {
		name := translator.ThunkSymbol(id)
		addr, ok := addrs[name]
		if !ok {
			a.diag.Warnf("function %q: linker did not publish symbol %q", id, name)
			continue
		}
		p.out.Addr = addr
		a.symbols = append(a.symbols, JitSymbol{FunctionID: id, Addr: addr})
	}
	return nil
}

// ReleaseJit releases a previously published address through this
// assembler's linker.
func (a *Assembler) ReleaseJit(addr uintptr) { a.linker.Release(addr) }

// Symbols returns every function successfully published by Build, in
// publish order.
func (a *Assembler) Symbols() []JitSymbol { return a.symbols }
