package disasm

import (
	"strings"
	"testing"

	"armstack/internal/arm"
)

// thumbInsts builds 16-bit instructions at base from "op args" lines.
func thumbInsts(base uint64, lines ...string) []Inst {
	out := make([]Inst, len(lines))
	for i, l := range lines {
		op, args, _ := strings.Cut(l, " ")
		out[i] = Inst{Addr: base + uint64(2*i), Size: 2, Mnemonic: op, Operands: args, Text: l}
	}
	return out
}

func TestBuildCFG_Linear(t *testing.T) {
	insts := thumbInsts(0x1000, "nop", "nop", "bx lr")
	cfg := BuildCFG("linear", insts, arm.Thumb)
	if len(cfg.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(cfg.Blocks))
	}
	blk := cfg.Blocks[0]
	if blk.Start != 0 || blk.End != 3 {
		t.Errorf("block range = [%d,%d), want [0,3)", blk.Start, blk.End)
	}
	if !blk.IsTerm || !blk.IsEntry {
		t.Error("block should be entry and terminal (return)")
	}
	if len(blk.Succs) != 0 {
		t.Errorf("succs = %d, want 0", len(blk.Succs))
	}
}

func TestBuildCFG_ConditionalBranch(t *testing.T) {
	insts := thumbInsts(0x1000,
		"beq 1008", // 0
		"nop",      // 1
		"bx lr",    // 2
		"nop",      // 3 dead
		"bx lr",    // 4 target
	)
	cfg := BuildCFG("cond", insts, arm.Thumb)

	// Leaders: 0, 1 (after beq), 3 (after bx), 4 (target 0x1008).
	if len(cfg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(cfg.Blocks))
	}

	b0 := cfg.Blocks[0]
	if len(b0.Succs) != 2 {
		t.Fatalf("block 0 succs = %d, want 2", len(b0.Succs))
	}
	var hasT, hasF bool
	for _, s := range b0.Succs {
		if s.Cond == "T" && s.BlockID == 3 {
			hasT = true
		}
		if s.Cond == "F" && s.BlockID == 1 {
			hasF = true
		}
	}
	if !hasT {
		t.Errorf("block 0 missing T→block3, succs=%+v", b0.Succs)
	}
	if !hasF {
		t.Errorf("block 0 missing F→block1, succs=%+v", b0.Succs)
	}
	if !cfg.Blocks[1].IsTerm || !cfg.Blocks[3].IsTerm {
		t.Error("return blocks should be terminal")
	}
}

func TestBuildCFG_UnconditionalBranch(t *testing.T) {
	insts := thumbInsts(0x2000,
		"b.n 2004", // 0
		"nop",      // 1 dead
		"pop {r4, pc}",
	)
	cfg := BuildCFG("uncond", insts, arm.Thumb)
	if len(cfg.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(cfg.Blocks))
	}
	b0 := cfg.Blocks[0]
	if len(b0.Succs) != 1 {
		t.Fatalf("block 0 succs = %d, want 1", len(b0.Succs))
	}
	if b0.Succs[0].BlockID != 2 || b0.Succs[0].Cond != "" {
		t.Errorf("block 0 succ = {%d, %q}, want {2, \"\"}", b0.Succs[0].BlockID, b0.Succs[0].Cond)
	}
	if !cfg.Blocks[2].IsTerm {
		t.Error("pop {pc} block should be terminal")
	}
}

func TestBuildCFG_TailCallAndData(t *testing.T) {
	insts := thumbInsts(0x3000, "cmp r0, #0", "bne 3006", "b.w 9000", "ldr r0, [pc, #4]")
	insts = append(insts, Inst{Addr: 0x3008, Size: 4, Mnemonic: ".word", Operands: "0x1"})
	cfg := BuildCFG("tail", insts, arm.Thumb)
	// Blocks: [cmp bne] [b.w] [ldr] [.word]
	if len(cfg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4: %+v", len(cfg.Blocks), cfg.Blocks)
	}
	if !cfg.Blocks[1].IsTerm {
		t.Error("branch out of function should be terminal")
	}
	if !cfg.Blocks[3].IsTerm {
		t.Error("data block should be terminal")
	}
}

func TestBuildCFG_Empty(t *testing.T) {
	cfg := BuildCFG("empty", nil, arm.Thumb)
	if len(cfg.Blocks) != 0 {
		t.Errorf("blocks = %d, want 0", len(cfg.Blocks))
	}
}
