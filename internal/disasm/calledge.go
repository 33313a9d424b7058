package disasm

import "armstack/internal/arm"

// CallEdge represents a call site extracted from disassembly.
type CallEdge struct {
	FromPC     uint64 `json:"from_pc"`
	Kind       string `json:"kind"`                // "bl", "blx" or "tail"
	TargetPC   uint64 `json:"target_pc,omitempty"` // resolved VA for direct calls
	TargetName string `json:"target_name,omitempty"`
	Reg        string `json:"reg,omitempty"` // register for indirect calls (e.g. "r3")
}

// ExtractCallEdges scans a function's instructions for call sites. Direct
// branches leaving [funcStart, funcEnd) are reported as tail calls. symbols
// resolves target addresses to names.
func ExtractCallEdges(insts []Inst, symbols SymbolLookup, p arm.Profile) []CallEdge {
	if len(insts) == 0 {
		return nil
	}
	funcStart := insts[0].Addr
	last := insts[len(insts)-1]
	funcEnd := last.Addr + uint64(max(last.Size, 2))

	var edges []CallEdge
	for _, inst := range insts {
		eff, err := p.Classify(inst.Instruction())
		if err != nil {
			continue
		}
		var e CallEdge
		switch {
		case eff.Has(arm.FunctionCall) && eff.Has(arm.JumpTargetKnown):
			if eff.Target >= funcStart && eff.Target < funcEnd {
				continue // local subroutine
			}
			e = CallEdge{FromPC: inst.Addr, Kind: "bl", TargetPC: eff.Target}
		case eff.Has(arm.FunctionCall):
			e = CallEdge{FromPC: inst.Addr, Kind: "blx", Reg: registerOperand(inst)}
		case eff.Has(arm.UnconditionalJump) && eff.Has(arm.JumpTargetKnown):
			if eff.Target >= funcStart && eff.Target < funcEnd {
				continue
			}
			e = CallEdge{FromPC: inst.Addr, Kind: "tail", TargetPC: eff.Target}
		default:
			continue
		}
		if e.TargetPC != 0 && symbols != nil {
			if name, found := symbols(e.TargetPC); found {
				e.TargetName = name
			}
		}
		edges = append(edges, e)
	}
	return edges
}

func registerOperand(inst Inst) string {
	ops, err := arm.ParseOperands(inst.Operands)
	if err != nil || len(ops) != 1 || ops[0].Kind != arm.OperandReg {
		return ""
	}
	return ops[0].Reg
}
