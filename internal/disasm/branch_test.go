package disasm

import (
	"testing"

	"armstack/internal/arm"
)

func TestDecodeBranch(t *testing.T) {
	tests := []struct {
		op, args string
		want     *BranchInfo
	}{
		{"bx", "lr", &BranchInfo{IsRet: true}},
		{"pop", "{r4, pc}", &BranchInfo{IsRet: true}},
		{"b", "8000120 <loop>", &BranchInfo{Target: 0x8000120, Known: true}},
		{"bne.n", "800012a", &BranchInfo{Target: 0x800012a, Known: true, Cond: true}},
		{"cbz", "r0, 8000131", &BranchInfo{Target: 0x8000130, Known: true, Cond: true}},
		{"bx", "r3", &BranchInfo{}},
		{"tbb", "[pc, r3]", &BranchInfo{}},
		{"bl", "8000200 <foo>", nil},
		{"blx", "r3", nil},
		{"push", "{r7, lr}", nil},
		{"push", "{r7", nil},
	}
	for _, tc := range tests {
		got := DecodeBranch(Inst{Addr: 0x8000100, Mnemonic: tc.op, Operands: tc.args}, arm.Thumb)
		switch {
		case got == nil && tc.want == nil:
		case got == nil || tc.want == nil:
			t.Errorf("DecodeBranch(%s %s) = %+v, want %+v", tc.op, tc.args, got, tc.want)
		case *got != *tc.want:
			t.Errorf("DecodeBranch(%s %s) = %+v, want %+v", tc.op, tc.args, *got, *tc.want)
		}
	}
}

func TestIsBranchTerminator(t *testing.T) {
	if !IsBranchTerminator(Inst{Mnemonic: "bx", Operands: "lr"}, arm.Thumb) {
		t.Error("bx lr should terminate a block")
	}
	if IsBranchTerminator(Inst{Mnemonic: "bl", Operands: "8000"}, arm.Thumb) {
		t.Error("bl should not terminate a block")
	}
	if IsBranchTerminator(Inst{Mnemonic: ".word", Operands: "0x1"}, arm.Thumb) {
		t.Error("data is not a branch")
	}
}
