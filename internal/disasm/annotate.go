package disasm

import (
	"fmt"

	"armstack/internal/arm"
)

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Inst) string

// CallAnnotator names the targets of direct calls and branches.
func CallAnnotator(symbols SymbolLookup, p arm.Profile) Annotator {
	return func(inst Inst) string {
		if symbols == nil {
			return ""
		}
		eff, err := p.Classify(inst.Instruction())
		if err != nil || !eff.Has(arm.JumpTargetKnown) {
			return ""
		}
		if name, ok := symbols(eff.Target); ok {
			return "-> " + name
		}
		return ""
	}
}

// DepthAnnotator prints the stack depth recorded for each address.
func DepthAnnotator(depths map[uint64]int) Annotator {
	return func(inst Inst) string {
		d, ok := depths[inst.Addr]
		if !ok {
			return ""
		}
		return fmt.Sprintf("depth=%d", d)
	}
}

// EffectAnnotator prints the classifier's verdict for stack-relevant
// instructions.
func EffectAnnotator(p arm.Profile) Annotator {
	return func(inst Inst) string {
		if !inst.Readable() {
			return ""
		}
		eff, err := p.Classify(inst.Instruction())
		if err != nil {
			return "error: " + err.Error()
		}
		if eff.Flags == 0 {
			return ""
		}
		return eff.String()
	}
}

// Chain combines annotators, joining every non-empty comment.
func Chain(annotators ...Annotator) Annotator {
	return func(inst Inst) string {
		var out string
		for _, a := range annotators {
			s := a(inst)
			if s == "" {
				continue
			}
			if out != "" {
				out += "  "
			}
			out += s
		}
		return out
	}
}
