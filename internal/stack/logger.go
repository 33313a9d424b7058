package stack

import "armstack/internal/arm"

// Logger receives a trace of the walk. Implementations must tolerate being
// called from several analyses at once when the Analyzer is shared.
type Logger interface {
	Tracef(format string, args ...any)
	InstructionStatus(depth int, insn arm.Instruction, eff arm.Effect)
	Warning(insn arm.Instruction, flag Flags)
}

type nopLogger struct{}

func (nopLogger) Tracef(string, ...any)                              {}
func (nopLogger) InstructionStatus(int, arm.Instruction, arm.Effect) {}
func (nopLogger) Warning(arm.Instruction, Flags)                     {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }
