package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileReportYAMLRendersFields(t *testing.T) {
	r := &CompileReport{
		FunctionID:        "add",
		NativeSymbol:      "asllvm_fn_add",
		InstructionCount:  5,
		BlockCount:        1,
		BranchTargetCount: 0,
		SwitchCount:       0,
		DurationMicros:    42,
		OpcodeHistogram:   map[string]int{"PushC4": 2, "ADDi": 1, "RET": 1},
	}

	text, err := r.YAML()
	require.NoError(t, err)
	assert.Contains(t, text, "function_id: add")
	assert.Contains(t, text, "native_symbol: asllvm_fn_add")
	assert.Contains(t, text, "instruction_count: 5")
	assert.Contains(t, text, "duration_micros: 42")
	assert.Contains(t, text, "PushC4: 2")
}

func TestReportCompileSilentWhenNotVerbose(t *testing.T) {
	var messages []string
	l := &Logger{Verbose: false, Callback: func(severity, message string) { messages = append(messages, message) }}

	l.ReportCompile(&CompileReport{FunctionID: "quiet"})
	assert.Empty(t, messages)
}

func TestReportCompileForwardsToCallbackWhenVerbose(t *testing.T) {
	var severities []string
	l := NewLogger(true)
	l.Callback = func(severity, message string) { severities = append(severities, severity) }

	l.ReportCompile(&CompileReport{FunctionID: "loud", OpcodeHistogram: map[string]int{"RET": 1}})
	require.Len(t, severities, 1)
	assert.Equal(t, "report", severities[0])
}
