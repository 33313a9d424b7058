package disasm

import (
	"reflect"
	"testing"

	"armstack/internal/arm"
)

func TestExtractCallEdges(t *testing.T) {
	insts := thumbInsts(0x1000,
		"push {r7, lr}", // 1000
		"bl 2000 <foo>", // 1002
		"blx r3",        // 1004
		"bl 100c",       // 1006 local subroutine
		"beq 100a",      // 1008
		"b.w 3000",      // 100a tail call
		"bx lr",         // 100c
	)
	syms := PlaceholderLookup(map[uint64]string{0x2000: "foo"})
	got := ExtractCallEdges(insts, syms, arm.Thumb)
	want := []CallEdge{
		{FromPC: 0x1002, Kind: "bl", TargetPC: 0x2000, TargetName: "foo"},
		{FromPC: 0x1004, Kind: "blx", Reg: "r3"},
		{FromPC: 0x100a, Kind: "tail", TargetPC: 0x3000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("edges:\n got %+v\nwant %+v", got, want)
	}
}

func TestExtractCallEdgesEmpty(t *testing.T) {
	if got := ExtractCallEdges(nil, nil, arm.Thumb); got != nil {
		t.Errorf("edges = %+v, want nil", got)
	}
}

func TestExtractCallEdgesSkipsMalformed(t *testing.T) {
	insts := thumbInsts(0x1000, "push {r7", "bl 2000")
	got := ExtractCallEdges(insts, nil, arm.Thumb)
	if len(got) != 1 || got[0].TargetPC != 0x2000 || got[0].TargetName != "" {
		t.Errorf("edges = %+v", got)
	}
}
