package disasm

import "armstack/internal/arm"

// BranchInfo describes a control-flow transfer out of an instruction.
type BranchInfo struct {
	Target uint64 // absolute target address, valid when Known
	Known  bool
	Cond   bool // true if conditional (has fallthrough)
	IsRet  bool // true for returns
}

// DecodeBranch classifies inst with p and returns its branch behavior.
// Returns nil if the instruction is not a jump or return. Calls are not
// branches: they return to the next instruction.
func DecodeBranch(inst Inst, p arm.Profile) *BranchInfo {
	eff, err := p.Classify(inst.Instruction())
	if err != nil {
		return nil
	}
	switch {
	case eff.Has(arm.ReturnFromCall):
		return &BranchInfo{IsRet: true}
	case eff.Has(arm.ConditionalJump):
		return &BranchInfo{Target: eff.Target, Known: eff.Has(arm.JumpTargetKnown), Cond: true}
	case eff.Has(arm.UnconditionalJump):
		return &BranchInfo{Target: eff.Target, Known: eff.Has(arm.JumpTargetKnown)}
	}
	return nil
}

// IsBranchTerminator returns true if the instruction ends a basic block.
func IsBranchTerminator(inst Inst, p arm.Profile) bool {
	return DecodeBranch(inst, p) != nil
}
