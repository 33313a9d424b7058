package disasm

import (
	"strings"
	"testing"

	"armstack/internal/elfx/elftest"
)

func TestDisassembleBranchTargets(t *testing.T) {
	data := elftest.ARMWords(
		0xeb000001, // bl +4
		0xeafffffe, // b .
		0xe12fff1e, // bx lr
	)
	insts := Disassemble(data, Options{BaseAddr: 0x8000})
	if len(insts) != 3 {
		t.Fatalf("got %d instructions, want 3", len(insts))
	}
	if insts[0].Mnemonic != "bl" || insts[0].Operands != "800c" {
		t.Errorf("bl = %q %q, want bl 800c", insts[0].Mnemonic, insts[0].Operands)
	}
	if insts[1].Mnemonic != "b" || insts[1].Operands != "8004" {
		t.Errorf("b = %q %q, want b 8004", insts[1].Mnemonic, insts[1].Operands)
	}
	if insts[2].Mnemonic != "bx" {
		t.Errorf("bx = %q", insts[2].Mnemonic)
	}
	if insts[1].Addr != 0x8004 || insts[1].Size != 4 || insts[1].Raw != 0xeafffffe {
		t.Errorf("inst[1] = %+v", insts[1])
	}
}

func TestDisassembleMaxSteps(t *testing.T) {
	words := make([]uint32, 100)
	for i := range words {
		words[i] = 0xe1a00000 // mov r0, r0
	}
	insts := Disassemble(elftest.ARMWords(words...), Options{MaxSteps: 10})
	if len(insts) != 10 {
		t.Fatalf("got %d instructions, want 10", len(insts))
	}
}

func TestDisassembleEmpty(t *testing.T) {
	insts := Disassemble(nil, Options{})
	if len(insts) != 0 {
		t.Fatalf("got %d instructions for nil data", len(insts))
	}
}

func TestDisassembleShort(t *testing.T) {
	// Less than 4 bytes.
	insts := Disassemble([]byte{0x01, 0x02}, Options{})
	if len(insts) != 0 {
		t.Fatalf("got %d instructions for 2 bytes", len(insts))
	}
}

func TestInstInstruction(t *testing.T) {
	word := Inst{Addr: 0x10, Mnemonic: ".word", Operands: "0x20000000"}
	if word.Instruction().Readable() {
		t.Error(".word should be unreadable")
	}
	insn := Inst{Addr: 0x10, Mnemonic: "push", Operands: "{r7, lr}"}.Instruction()
	if insn.Op != "push" || insn.Args != "{r7, lr}" || insn.Addr != 0x10 {
		t.Errorf("Instruction() = %+v", insn)
	}
}

func TestFormat(t *testing.T) {
	insts := Disassemble(elftest.ARMWords(0xe12fff1e), Options{BaseAddr: 0x1000})

	syms := map[uint64]string{0x1000: "ret_func"}
	text := Format(insts, PlaceholderLookup(syms))
	if !strings.Contains(text, "0x00001000") {
		t.Errorf("missing address in output: %s", text)
	}
	if !strings.Contains(text, "1e ff 2f e1") {
		t.Errorf("missing raw bytes in output: %s", text)
	}
	if !strings.Contains(text, "<ret_func>") {
		t.Errorf("missing symbol in output: %s", text)
	}
}

func TestFormatThumb(t *testing.T) {
	insts := []Inst{{Addr: 0x100, Raw: 0xb580, Size: 2, Mnemonic: "push", Operands: "{r7, lr}", Text: "push {r7, lr}"}}
	text := Format(insts, nil, DepthAnnotator(map[uint64]int{0x100: 0}))
	want := "0x00000100  b580         push {r7, lr}  ; depth=0\n"
	if text != want {
		t.Errorf("Format = %q, want %q", text, want)
	}
}

func TestFormatDeterministic(t *testing.T) {
	insts := Disassemble(elftest.ARMWords(0xe1a00000, 0xe1a00000, 0xe12fff1e), Options{BaseAddr: 0x2000})
	out1 := Format(insts, nil)
	out2 := Format(insts, nil)
	if out1 != out2 {
		t.Error("non-deterministic output")
	}
}

func TestDisasmOne(t *testing.T) {
	if got := DisasmOne(0xeb000001, 0x8000); got != "bl 800c" {
		t.Errorf("DisasmOne = %q, want %q", got, "bl 800c")
	}
}
