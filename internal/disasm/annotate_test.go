package disasm

import (
	"strings"
	"testing"

	"armstack/internal/arm"
)

func TestCallAnnotator(t *testing.T) {
	ann := CallAnnotator(PlaceholderLookup(map[uint64]string{0x2000: "foo"}), arm.Thumb)
	if got := ann(Inst{Mnemonic: "bl", Operands: "2000 <foo>"}); got != "-> foo" {
		t.Errorf("bl = %q, want %q", got, "-> foo")
	}
	if got := ann(Inst{Mnemonic: "bl", Operands: "3000"}); got != "" {
		t.Errorf("unknown target = %q, want empty", got)
	}
	if got := ann(Inst{Mnemonic: "nop"}); got != "" {
		t.Errorf("nop = %q, want empty", got)
	}
	if got := CallAnnotator(nil, arm.Thumb)(Inst{Mnemonic: "bl", Operands: "2000"}); got != "" {
		t.Errorf("nil lookup = %q, want empty", got)
	}
}

func TestDepthAnnotator(t *testing.T) {
	ann := DepthAnnotator(map[uint64]int{0x100: 16})
	if got := ann(Inst{Addr: 0x100}); got != "depth=16" {
		t.Errorf("got %q", got)
	}
	if got := ann(Inst{Addr: 0x102}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestEffectAnnotator(t *testing.T) {
	ann := EffectAnnotator(arm.Thumb)
	if got := ann(Inst{Mnemonic: "push", Operands: "{r7, lr}"}); got != "MovesStackPointer [StackDelta = 8]" {
		t.Errorf("push = %q", got)
	}
	if got := ann(Inst{Mnemonic: "movs", Operands: "r0, #1"}); got != "" {
		t.Errorf("movs = %q, want empty", got)
	}
	if got := ann(Inst{Mnemonic: "push", Operands: "{r7"}); !strings.HasPrefix(got, "error: ") {
		t.Errorf("malformed = %q, want error", got)
	}
	if got := ann(Inst{Mnemonic: ".word", Operands: "0x1"}); got != "" {
		t.Errorf(".word = %q, want empty", got)
	}
}

func TestChain(t *testing.T) {
	ann := Chain(DepthAnnotator(map[uint64]int{0x100: 8}), EffectAnnotator(arm.Thumb))
	got := ann(Inst{Addr: 0x100, Mnemonic: "pop", Operands: "{r7, pc}"})
	want := "depth=8  MovesStackPointer|ReturnFromCall [StackDelta = -8]"
	if got != want {
		t.Errorf("Chain = %q, want %q", got, want)
	}
}
