package arm

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		op, args string
		want     Effect
	}{
		// push / pop
		{"push", "{r4, r7}", Effect{Flags: MovesStackPointer, StackDelta: 8}},
		{"push", "{r4, r5, r6, r7, lr}", Effect{Flags: MovesStackPointer, StackDelta: 20}},
		{"push.w", "{r4-r11, lr}", Effect{Flags: MovesStackPointer, StackDelta: 36}},
		{"pop", "{r4, pc}", Effect{Flags: MovesStackPointer | ReturnFromCall, StackDelta: -8}},
		{"pop", "{r7}", Effect{Flags: MovesStackPointer, StackDelta: -4}},
		{"POP.W", "{r4, r5, r7, pc}", Effect{Flags: MovesStackPointer | ReturnFromCall, StackDelta: -16}},

		// mov
		{"mov", "sp, r7", Effect{Flags: RestoresStackPointer}},
		{"mov", "r7, sp", Effect{Flags: SavesStackPointerWithDelta}},
		{"mov", "sp, r3", Effect{Flags: ChangesStackPointerUnpredictably}},
		{"mov", "r7, r0", Effect{Flags: ChangesFramePointerUnpredictably}},
		{"movs", "r0, #0", Effect{}},

		// single and paired load/store
		{"str", "r0, [sp, #-4]!", Effect{Flags: MovesStackPointer, StackDelta: 4}},
		{"str.w", "lr, [sp, #-8]!", Effect{Flags: MovesStackPointer, StackDelta: 8}},
		{"ldr", "r0, [sp], #4", Effect{Flags: MovesStackPointer, StackDelta: -4}},
		{"ldr.w", "pc, [sp], #4", Effect{Flags: MovesStackPointer | ReturnFromCall, StackDelta: -4}},
		{"strd", "r4, r5, [sp, #-8]!", Effect{Flags: MovesStackPointer, StackDelta: 8}},
		{"ldrd", "r4, r5, [sp], #8", Effect{Flags: MovesStackPointer, StackDelta: -8}},
		{"ldr", "sp, [r0, #4]", Effect{Flags: ChangesStackPointerUnpredictably}},
		{"ldr", "r3, [sp, #4]", Effect{}},
		{"ldr", "r3, [pc, #12]\t; (8000140 <foo+0x20>)", Effect{}},

		// add / sub
		{"sub", "sp, #16", Effect{Flags: MovesStackPointer, StackDelta: 16}},
		{"sub", "sp, sp, #16", Effect{Flags: MovesStackPointer, StackDelta: 16}},
		{"add", "sp, #16", Effect{Flags: MovesStackPointer, StackDelta: -16}},
		{"sub.w", "sp, sp, #0x400", Effect{Flags: MovesStackPointer, StackDelta: 1024}},
		{"subw", "sp, sp, #1028", Effect{Flags: MovesStackPointer, StackDelta: 1028}},
		{"sub", "sp, sp, r3", Effect{Flags: ChangesStackPointerUnpredictably}},
		{"sub", "sp, r7, #8", Effect{Flags: RestoresStackPointer, StackDelta: 8}},
		{"add", "r7, sp, #0", Effect{Flags: SavesStackPointerWithDelta}},
		{"add", "r7, sp, #8", Effect{Flags: SavesStackPointerWithDelta, StackDelta: -8}},
		{"adds", "r7, #8", Effect{Flags: MovesSavedStackPointer, StackDelta: -8}},
		{"add", "r7, r3", Effect{Flags: ChangesFramePointerUnpredictably}},
		{"adds", "r0, r1, #1", Effect{}},
		{"subs", "r0, #1", Effect{}},

		// compare and branch
		{"cbz", "r0, 8000130 <main+0x10>", Effect{Flags: ConditionalJump | JumpTargetKnown, Target: 0x8000130}},
		{"cbnz", "r3, 0x8000131", Effect{Flags: ConditionalJump | JumpTargetKnown, Target: 0x8000130}},
		{"cbz", "r0, label", Effect{Flags: UnpredictableJump}},

		// branch family
		{"bx", "lr", Effect{Flags: ReturnFromCall | JumpsViaLinkRegister}},
		{"bl", "8000200 <foo>", Effect{Flags: FunctionCall | JumpTargetKnown, Target: 0x8000200}},
		{"blx", "r3", Effect{Flags: FunctionCall | RegisterJump}},
		{"bleq", "0x8000201", Effect{Flags: FunctionCall | JumpTargetKnown, Target: 0x8000200}},
		{"bne.n", "800012a <main+0xa>", Effect{Flags: ConditionalJump | JumpTargetKnown, Target: 0x800012a}},
		{"blt", "8000150", Effect{Flags: ConditionalJump | JumpTargetKnown, Target: 0x8000150}},
		{"bls.w", "8000150", Effect{Flags: ConditionalJump | JumpTargetKnown, Target: 0x8000150}},
		{"b.n", "8000120 <loop>", Effect{Flags: UnconditionalJump | JumpTargetKnown, Target: 0x8000120}},
		{"b.w", "8001001", Effect{Flags: UnconditionalJump | JumpTargetKnown, Target: 0x8001000}},
		{"bx", "r3", Effect{Flags: UnconditionalJump | RegisterJump}},
		{"beq", "somewhere+4", Effect{Flags: ConditionalJump | UnpredictableJump}},
		{"bic", "r0, r0, #1", Effect{}},
		{"bkpt", "0x0000", Effect{}},

		// load/store multiple
		{"stmdb", "sp!, {r4, r5, r6, lr}", Effect{Flags: MovesStackPointer, StackDelta: 16}},
		{"ldmia.w", "sp!, {r4, r5, r6, pc}", Effect{Flags: MovesStackPointer | ReturnFromCall, StackDelta: -16}},
		{"ldm", "sp!, {r4, r5}", Effect{Flags: MovesStackPointer, StackDelta: -8}},
		{"ldmia", "r0!, {r1, r2}", Effect{}},

		// table branch
		{"tbb", "[pc, r3]", Effect{Flags: UnconditionalJump | UnpredictableJump}},

		// no stack effect
		{"nop", "", Effect{}},
		{"cmp", "r0, #3", Effect{}},
		{"vpush", "{d8-d9}", Effect{}},
	}
	for _, tc := range tests {
		insn := Instruction{Addr: 0x8000120, Op: tc.op, Args: tc.args}
		got, err := Classify(insn)
		if err != nil {
			t.Errorf("Classify(%s %s): unexpected error: %v", tc.op, tc.args, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Classify(%s %s) = %v, want %v", tc.op, tc.args, got, tc.want)
		}
	}
}

func TestClassifyARMProfile(t *testing.T) {
	tests := []struct {
		op, args string
		want     Effect
	}{
		{"add", "fp, sp, #4", Effect{Flags: SavesStackPointerWithDelta, StackDelta: -4}},
		{"sub", "sp, fp, #4", Effect{Flags: RestoresStackPointer, StackDelta: 4}},
		{"mov", "sp, r11", Effect{Flags: RestoresStackPointer}},
		{"mov", "r7, sp", Effect{}},
	}
	for _, tc := range tests {
		got, err := ARM.Classify(Instruction{Op: tc.op, Args: tc.args})
		if err != nil {
			t.Fatalf("ARM.Classify(%s %s): %v", tc.op, tc.args, err)
		}
		if got != tc.want {
			t.Errorf("ARM.Classify(%s %s) = %v, want %v", tc.op, tc.args, got, tc.want)
		}
	}
}

func TestClassifyMalformed(t *testing.T) {
	tests := []struct {
		op, args string
	}{
		{"push", "{r4, r7"},
		{"push", "{}"},
		{"pop", "{r4, banana}"},
		{"push", "{r7-r4}"},
		{"push", "r4, r5"},
		{"add", "sp"},
		{"ldmia", "sp!, {r4, x}"},
		{"str", "r0, [sp, #-4!"},
	}
	for _, tc := range tests {
		_, err := Classify(Instruction{Addr: 0x100, Op: tc.op, Args: tc.args})
		if err == nil {
			t.Errorf("Classify(%s %s): expected error", tc.op, tc.args)
			continue
		}
		var ce *ClassifyError
		if !errors.As(err, &ce) {
			t.Errorf("Classify(%s %s): error %v is not a *ClassifyError", tc.op, tc.args, err)
		}
		if !errors.Is(err, ErrMalformedOperand) {
			t.Errorf("Classify(%s %s): error %v does not wrap ErrMalformedOperand", tc.op, tc.args, err)
		}
	}
}

func TestEffectString(t *testing.T) {
	e := Effect{Flags: FunctionCall | JumpTargetKnown, Target: 0x8000200}
	if got, want := e.String(), "FunctionCall|JumpTargetKnown [Target = 0x08000200]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	e = Effect{Flags: MovesStackPointer, StackDelta: -8}
	if got, want := e.String(), "MovesStackPointer [StackDelta = -8]"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (Effect{}).String(); got != "None" {
		t.Errorf("zero String() = %q", got)
	}
}

func FuzzClassify(f *testing.F) {
	f.Add("push", "{r4, r7, lr}")
	f.Add("ldr", "r0, [sp], #4")
	f.Add("bl", "8000200 <foo>")
	f.Add("add", "sp, sp, #16")
	f.Add("pop", "{")

	f.Fuzz(func(t *testing.T, op, args string) {
		// Must never panic; malformed input is reported as an error.
		_, _ = Classify(Instruction{Op: op, Args: args})
	})
}
