package diag

import (
	"gopkg.in/yaml.v3"
)

// CompileReport summarizes one function's translation for verbose-mode
// diagnostics: how many bytecode instructions it consumed and how many
// blocks it lowered to, and a
// mnemonic-keyed histogram of the bytecode it consumed. Grounded on the
// teacher's wazevoapi debug consts, which gate printing a per-function
// disassembly and statistics dump; this reaches the same spot at runtime
// instead of at compile time, rendered as YAML rather than plain text so a
// host can also parse it back out of the message callback.
type CompileReport struct {
	FunctionID        string         `yaml:"function_id"`
	NativeSymbol      string         `yaml:"native_symbol"`
	InstructionCount  int            `yaml:"instruction_count"`
	BlockCount        int            `yaml:"block_count"`
	BranchTargetCount int            `yaml:"branch_target_count"`
	SwitchCount       int            `yaml:"switch_count"`
	DurationMicros    int64          `yaml:"duration_micros"`
	OpcodeHistogram   map[string]int `yaml:"opcode_histogram"`
}

// YAML renders the report the way ReportCompile logs it.
func (r *CompileReport) YAML() (string, error) {
	b, err := yaml.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReportCompile logs r as YAML when Verbose is set, and forwards the same
// text through Callback under the "report" severity. Silent otherwise,
// matching Printf's gating.
func (l *Logger) ReportCompile(r *CompileReport) {
	if l == nil || !l.Verbose {
		return
	}
	text, err := r.YAML()
	if err != nil {
		l.Warnf("failed to render compile report for %s: %v", r.FunctionID, err)
		return
	}
	l.out.Print("compile report for " + r.FunctionID + ":\n" + text)
	if l.Callback != nil {
		l.Callback("report", text)
	}
}
