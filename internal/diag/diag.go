// Package diag is the translator's ambient logging layer: a thin wrapper
// around the standard library logger, gated by a runtime verbosity flag
// rather than a compile-time debug const, since this spec's "verbose" key is
// set by the caller at Config construction time, not at build time.
package diag

import (
	"fmt"
	"log"
	"os"
)

// Callback receives every diagnostic line, in addition to the stderr log,
// matching the engine-facing api.MessageCallback shape so a host embedding
// can route translator diagnostics into its own log sink instead of stderr.
type Callback func(severity, message string)

// Logger gates diagnostic output behind Verbose. The zero value is silent.
type Logger struct {
	Verbose  bool
	Callback Callback
	out      *log.Logger
}

// NewLogger returns a Logger writing to stderr with the "asllvm: " prefix
// used throughout the engine's message-callback protocol (see §7).
func NewLogger(verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		out:     log.New(os.Stderr, "asllvm: ", 0),
	}
}

// Printf logs a diagnostic line when Verbose is set. Silent otherwise.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || !l.Verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Print(msg)
	if l.Callback != nil {
		l.Callback("info", msg)
	}
}

// Warnf logs a warning-classified diagnostic unconditionally: warnings
// (NullBytecode, Unimplemented) are always surfaced to the engine's message
// callback regardless of Verbose, per §7's propagation policy.
func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		log.New(os.Stderr, "asllvm: ", 0).Printf(format, args...)
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Print(msg)
	if l.Callback != nil {
		l.Callback("warning", msg)
	}
}

// Fatalf logs a fatal-classified diagnostic unconditionally, for an
// InternalConsistency/EngineMismatch failure the caller is about to abort
// the process over. Logging never itself aborts; the caller panics after
// this returns, per §7's "fatal: abort after logging" policy.
func (l *Logger) Fatalf(format string, args ...any) {
	if l == nil {
		log.New(os.Stderr, "asllvm: ", 0).Printf(format, args...)
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Print(msg)
	if l.Callback != nil {
		l.Callback("fatal", msg)
	}
}
