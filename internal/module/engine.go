package module

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/scriptjit/ngjit/api"
	"github.com/scriptjit/ngjit/internal/diag"
	"github.com/scriptjit/ngjit/internal/errs"
)

// Engine implements api.Compiler: one Engine per host scripting engine
// instance, fanning Append calls out to one Assembler per script module key
// and driving every Assembler's Build during BuildAll.
type Engine struct {
	mu         sync.Mutex
	cfg        *api.Config
	diag       *diag.Logger
	linker     Linker
	engineID   uintptr
	assemblers map[string]*Assembler
}

// NewEngine returns an Engine for one host engine instance, identified by
// engineID for EngineMismatch detection. cb receives every diagnostic line
// BuildAll produces, in addition to the stderr log; pass nil to rely on
// stderr alone.
func NewEngine(engineID uintptr, cfg *api.Config, linker Linker, cb api.MessageCallback) *Engine {
	lg := diag.NewLogger(cfg.Verbose())
	if cb != nil {
		lg.Callback = func(severity, message string) { cb(severity, "asllvm: "+message) }
	}
	return &Engine{
		cfg:        cfg,
		diag:       lg,
		linker:     linker,
		engineID:   engineID,
		assemblers: make(map[string]*Assembler),
	}
}

// Compile enqueues fn on the Assembler for fn.Module, creating one on first
// use.
func (e *Engine) Compile(fn *api.ScriptFunction, out *api.FnPtrSlot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if fn.EngineID != 0 && fn.EngineID != e.engineID {
		return &errs.EngineMismatch{
			FunctionID: fn.ID,
			Expected:   fmt.Sprintf("%d", e.engineID),
			Got:        fmt.Sprintf("%d", fn.EngineID),
		}
	}

	asm, ok := e.assemblers[fn.Module]
	if !ok {
		asm = NewAssembler(fn.Module, e.cfg, e.diag, e.linker)
		e.assemblers[fn.Module] = asm
	}
	return asm.Append(fn, out)
}

// BuildAll runs every module's Build, in deterministic module-key order.
func (e *Engine) BuildAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := maps.Keys(e.assemblers)
	sort.Strings(keys)
	for _, k := range keys {
		if err := e.assemblers[k].Build(); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseJit releases addr on whichever assembler's linker published it; the
// reference linker tolerates releasing an address it never minted, and a
// production linker is expected to do the same.
func (e *Engine) ReleaseJit(addr uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, asm := range e.assemblers {
		asm.ReleaseJit(addr)
	}
}

var _ api.Compiler = (*Engine)(nil)
