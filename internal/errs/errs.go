// Package errs defines the translator's error kinds, per the spec's error
// handling design: opcode-level failures unwind one function and the loop
// moves on, while internal-consistency failures are fatal.
package errs

import "fmt"

// NullBytecode is reported when the engine hands the translator a function
// with no body. The caller should log it as a warning and leave the output
// slot untouched.
type NullBytecode struct {
	FunctionID string
}

func (e *NullBytecode) Error() string {
	return fmt.Sprintf("asllvm: function %q has no bytecode", e.FunctionID)
}

// Unimplemented is reported when the translator reaches an opcode it does
// not support. The in-progress function must be detached from the module;
// no JIT output is produced for it.
type Unimplemented struct {
	FunctionID string
	Mnemonic   string
	Offset     uint32
}

func (e *Unimplemented) Error() string {
	return fmt.Sprintf("asllvm: unimplemented opcode %s at offset %d in function %q", e.Mnemonic, e.Offset, e.FunctionID)
}

// InternalConsistency is reported when an invariant check fails: stack
// pointer out of bounds, a type-cache miss that should be impossible, a
// missing jump-map entry. Fatal: the process is expected to abort after the
// caller logs File/Line.
type InternalConsistency struct {
	Condition string
	File      string
	Line      int
}

func (e *InternalConsistency) Error() string {
	return fmt.Sprintf("asllvm: internal consistency violated: %s (%s:%d)", e.Condition, e.File, e.Line)
}

// EngineMismatch is reported when a function from a different engine
// instance is submitted to a Compiler that did not originate it. Classified
// as fatal-internal, like InternalConsistency.
type EngineMismatch struct {
	FunctionID string
	Expected   string
	Got        string
}

func (e *EngineMismatch) Error() string {
	return fmt.Sprintf("asllvm: function %q belongs to engine %q, not %q", e.FunctionID, e.Got, e.Expected)
}
