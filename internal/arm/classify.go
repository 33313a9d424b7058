package arm

import (
	"fmt"
	"strings"
)

// Profile selects the calling-convention details the classifier depends on.
type Profile struct {
	Name         string
	FramePointer string // canonical register name
}

var (
	// Thumb is the Cortex-M / Thumb-2 convention with r7 as frame pointer.
	Thumb = Profile{Name: "thumb", FramePointer: "r7"}
	// ARM is the A32 convention with r11 (fp) as frame pointer.
	ARM = Profile{Name: "arm", FramePointer: "fp"}
)

// ProfileByName returns the profile called name.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(name) {
	case "", "thumb", "thumb2", "cortex-m":
		return Thumb, nil
	case "arm", "a32":
		return ARM, nil
	}
	return Profile{}, fmt.Errorf("arm: unknown profile %q", name)
}

var conditionCodes = []string{"eq", "ne", "cs", "cc", "hs", "lo", "mi", "pl", "vs", "vc", "hi", "ls", "ge", "lt", "gt", "le", "al"}

// Classify classifies insn with the Thumb profile.
func Classify(insn Instruction) (Effect, error) { return Thumb.Classify(insn) }

// Classify maps one instruction to its stack-related effect. Instructions
// outside the modeled subset yield the zero Effect. Operand text that does not
// match the grammar of a recognized mnemonic yields a *ClassifyError.
func (p Profile) Classify(insn Instruction) (Effect, error) {
	eff, err := p.classify(insn)
	if err != nil {
		return Effect{}, &ClassifyError{Insn: insn, Err: err}
	}
	return eff, nil
}

func (p Profile) classify(insn Instruction) (Effect, error) {
	m := Mnemonic(insn.Op)
	switch {
	case m == "push" || m == "pop":
		return classifyPushPop(m, insn.Args)
	case strings.HasPrefix(m, "mov"):
		return p.classifyMov(insn.Args)
	case m == "ldr" || m == "ldrd" || m == "str" || m == "strd":
		return classifyLoadStore(m, insn.Args)
	case m == "add" || m == "sub" || m == "adds" || m == "subs" || m == "addw" || m == "subw":
		return p.classifyAddSub(m, insn.Args)
	case m == "cbz" || m == "cbnz":
		return classifyCompareBranch(insn.Args)
	case m == "ldm" || m == "ldmia" || m == "ldmfd" || m == "stmdb" || m == "stmfd":
		return classifyMultiple(m, insn.Args)
	case m == "tbb" || m == "tbh":
		return Effect{Flags: UnconditionalJump | UnpredictableJump}, nil
	case strings.HasPrefix(m, "b"):
		return classifyBranch(m, insn.Args)
	}
	return Effect{}, nil
}

func classifyPushPop(m, args string) (Effect, error) {
	ops, err := ParseOperands(args)
	if err != nil {
		return Effect{}, err
	}
	n, hasPC, err := registerCount(ops)
	if err != nil {
		return Effect{}, err
	}
	sign := 1
	if m == "pop" {
		sign = -1
	}
	eff := Effect{Flags: MovesStackPointer, StackDelta: sign * WordSize * n}
	if hasPC {
		eff.Flags |= ReturnFromCall
	}
	return eff, nil
}

// registerCount accepts either a register list or a lone register.
func registerCount(ops []Operand) (n int, hasPC bool, err error) {
	if len(ops) != 1 {
		return 0, false, fmt.Errorf("%w: expected one register list, got %d operands", ErrMalformedOperand, len(ops))
	}
	switch ops[0].Kind {
	case OperandRegList:
		for _, r := range ops[0].Regs {
			if r == "pc" {
				hasPC = true
			}
		}
		return len(ops[0].Regs), hasPC, nil
	case OperandReg:
		return 1, ops[0].Reg == "pc", nil
	}
	return 0, false, fmt.Errorf("%w: unexpected register list %q", ErrMalformedOperand, ops[0].Text)
}

func (p Profile) classifyMov(args string) (Effect, error) {
	ops, err := ParseOperands(args)
	if err != nil {
		return Effect{}, err
	}
	if len(ops) == 0 {
		return Effect{}, nil
	}
	var src Operand
	if len(ops) > 1 {
		src = ops[1]
	}
	switch {
	case ops[0].IsReg("sp"):
		if src.IsReg(p.FramePointer) {
			return Effect{Flags: RestoresStackPointer}, nil
		}
		return Effect{Flags: ChangesStackPointerUnpredictably}, nil
	case ops[0].IsReg(p.FramePointer):
		if src.IsReg("sp") {
			return Effect{Flags: SavesStackPointerWithDelta}, nil
		}
		return Effect{Flags: ChangesFramePointerUnpredictably}, nil
	}
	return Effect{}, nil
}

func classifyLoadStore(m, args string) (Effect, error) {
	ops, err := ParseOperands(args)
	if err != nil {
		return Effect{}, err
	}
	if len(ops) == 0 || ops[0].Kind != OperandReg {
		return Effect{}, nil
	}
	load := strings.HasPrefix(m, "ldr")
	if load && ops[0].Reg == "sp" {
		return Effect{Flags: ChangesStackPointerUnpredictably}, nil
	}
	loadsPC := load && ops[0].Reg == "pc"

	rest := ops[1:]
	if strings.HasSuffix(m, "d") && len(rest) > 0 {
		rest = rest[1:] // second register of the pair
	}
	if len(rest) == 0 || rest[0].Kind != OperandMem || rest[0].Reg != "sp" {
		return Effect{}, nil
	}
	mem := rest[0]

	var eff Effect
	switch {
	case mem.WriteBack && mem.HasImm:
		eff = Effect{Flags: MovesStackPointer, StackDelta: -int(mem.Imm)}
	case !mem.WriteBack && !mem.HasImm && len(rest) == 2 && rest[1].Kind == OperandImm:
		eff = Effect{Flags: MovesStackPointer, StackDelta: -int(rest[1].Imm)}
	default:
		return Effect{}, nil
	}
	if loadsPC {
		eff.Flags |= ReturnFromCall
	}
	return eff, nil
}

func (p Profile) classifyAddSub(m, args string) (Effect, error) {
	ops, err := ParseOperands(args)
	if err != nil {
		return Effect{}, err
	}
	if len(ops) < 2 {
		return Effect{}, fmt.Errorf("%w: %s needs at least two operands", ErrMalformedOperand, m)
	}
	sign := -1
	if strings.HasPrefix(m, "sub") {
		sign = 1
	}

	dst, src, val := ops[0], ops[1], Operand{}
	if len(ops) == 2 {
		src, val = dst, ops[1]
	} else {
		val = ops[2]
	}
	imm := val.Kind == OperandImm && len(ops) <= 3
	delta := sign * int(val.Imm)

	switch {
	case dst.IsReg("sp"):
		switch {
		case imm && src.IsReg("sp"):
			return Effect{Flags: MovesStackPointer, StackDelta: delta}, nil
		case imm && src.IsReg(p.FramePointer):
			return Effect{Flags: RestoresStackPointer, StackDelta: delta}, nil
		}
		return Effect{Flags: ChangesStackPointerUnpredictably}, nil
	case dst.IsReg(p.FramePointer):
		switch {
		case imm && src.IsReg("sp"):
			return Effect{Flags: SavesStackPointerWithDelta, StackDelta: delta}, nil
		case imm && src.IsReg(p.FramePointer):
			return Effect{Flags: MovesSavedStackPointer, StackDelta: delta}, nil
		}
		return Effect{Flags: ChangesFramePointerUnpredictably}, nil
	}
	return Effect{}, nil
}

func classifyCompareBranch(args string) (Effect, error) {
	ops, err := ParseOperands(args)
	if err != nil {
		return Effect{}, err
	}
	if len(ops) == 2 && ops[1].Kind == OperandAddr {
		return Effect{Flags: ConditionalJump | JumpTargetKnown, Target: StripThumbBit(ops[1].Addr)}, nil
	}
	return Effect{Flags: UnpredictableJump}, nil
}

// branchKind resolves a b-family mnemonic through the condition-code table.
func branchKind(m string) EffectFlags {
	for _, cc := range conditionCodes {
		if strings.HasPrefix(m, "bl"+cc) {
			return FunctionCall
		}
	}
	for _, cc := range conditionCodes {
		if strings.HasPrefix(m, "b"+cc) {
			return ConditionalJump
		}
	}
	switch {
	case strings.HasPrefix(m, "bl"):
		return FunctionCall
	case m == "b" || m == "bx":
		return UnconditionalJump
	}
	return 0
}

func classifyBranch(m, args string) (Effect, error) {
	kind := branchKind(m)
	if kind == 0 {
		return Effect{}, nil
	}
	ops, err := ParseOperands(args)
	if err != nil {
		return Effect{}, err
	}
	if m == "bx" && len(ops) == 1 && ops[0].IsReg("lr") {
		return Effect{Flags: ReturnFromCall | JumpsViaLinkRegister}, nil
	}
	switch {
	case len(ops) > 0 && ops[0].Kind == OperandAddr:
		return Effect{Flags: kind | JumpTargetKnown, Target: StripThumbBit(ops[0].Addr)}, nil
	case len(ops) == 1 && ops[0].Kind == OperandReg:
		return Effect{Flags: kind | RegisterJump}, nil
	}
	return Effect{Flags: kind | UnpredictableJump}, nil
}

func classifyMultiple(m, args string) (Effect, error) {
	ops, err := ParseOperands(args)
	if err != nil {
		return Effect{}, err
	}
	if len(ops) == 0 || !ops[0].IsReg("sp") || !ops[0].WriteBack {
		return Effect{}, nil
	}
	n, hasPC, err := registerCount(ops[1:])
	if err != nil {
		return Effect{}, err
	}
	sign := -1
	if strings.HasPrefix(m, "stm") {
		sign = 1
	}
	eff := Effect{Flags: MovesStackPointer, StackDelta: sign * WordSize * n}
	if hasPC {
		eff.Flags |= ReturnFromCall
	}
	return eff, nil
}
