package arm

import (
	"errors"
	"fmt"
	"strings"
)

// WordSize is the size in bytes of one pushed register.
const WordSize = 4

// EffectFlags is a set of stack-related effects of one instruction.
type EffectFlags uint32

const (
	MovesStackPointer EffectFlags = 1 << iota
	SavesStackPointerWithDelta
	RestoresStackPointer
	ConditionalJump
	UnconditionalJump
	ChangesStackPointerUnpredictably
	FunctionCall
	ReturnFromCall
	Unrecognizable
	UnpredictableJump
	MovesSavedStackPointer
	RegisterJump
	JumpTargetKnown
	ChangesFramePointerUnpredictably
	JumpsViaLinkRegister

	// WarningMask covers the effects that lower confidence in the result.
	WarningMask = ChangesStackPointerUnpredictably | Unrecognizable | UnpredictableJump | RegisterJump
)

var effectNames = []struct {
	flag EffectFlags
	name string
}{
	{MovesStackPointer, "MovesStackPointer"},
	{SavesStackPointerWithDelta, "SavesStackPointerWithDelta"},
	{RestoresStackPointer, "RestoresStackPointer"},
	{ConditionalJump, "ConditionalJump"},
	{UnconditionalJump, "UnconditionalJump"},
	{ChangesStackPointerUnpredictably, "ChangesStackPointerUnpredictably"},
	{FunctionCall, "FunctionCall"},
	{ReturnFromCall, "ReturnFromCall"},
	{Unrecognizable, "Unrecognizable"},
	{UnpredictableJump, "UnpredictableJump"},
	{MovesSavedStackPointer, "MovesSavedStackPointer"},
	{RegisterJump, "RegisterJump"},
	{JumpTargetKnown, "JumpTargetKnown"},
	{ChangesFramePointerUnpredictably, "ChangesFramePointerUnpredictably"},
	{JumpsViaLinkRegister, "JumpsViaLinkRegister"},
}

func (f EffectFlags) String() string {
	if f == 0 {
		return "None"
	}
	var names []string
	for _, e := range effectNames {
		if f&e.flag != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "|")
}

// Effect describes what one instruction does to the stack and to control flow.
// The zero Effect means no stack-relevant behavior.
type Effect struct {
	Flags      EffectFlags
	StackDelta int    // bytes; positive grows the stack
	Target     uint64 // valid when Flags has JumpTargetKnown
}

// Has reports whether any of the given flags is set.
func (e Effect) Has(f EffectFlags) bool { return e.Flags&f != 0 }

func (e Effect) String() string {
	s := e.Flags.String()
	if e.StackDelta != 0 {
		s += fmt.Sprintf(" [StackDelta = %d]", e.StackDelta)
	}
	if e.Has(JumpTargetKnown) {
		s += fmt.Sprintf(" [Target = 0x%08x]", e.Target)
	}
	return s
}

// ErrMalformedOperand is wrapped by every ClassifyError.
var ErrMalformedOperand = errors.New("arm: malformed operand")

// ClassifyError reports operand text that does not fit the grammar expected
// for a recognized mnemonic.
type ClassifyError struct {
	Insn Instruction
	Err  error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("arm: classify 0x%08x %s %s: %v", e.Insn.Addr, e.Insn.Op, e.Insn.Args, e.Err)
}

func (e *ClassifyError) Unwrap() error { return e.Err }
