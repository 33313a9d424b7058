// Package stack computes the worst-case stack depth of a function by walking
// every reachable path through its machine code.
package stack

import (
	"iter"

	"armstack/internal/arm"
)

// Source supplies instructions in address order starting at addr. An
// instruction with an empty mnemonic marks an unreadable address and ends
// the sequence.
type Source interface {
	Instructions(addr uint64) iter.Seq[arm.Instruction]
}

// NoReturn reports whether the function at addr never returns to its caller.
type NoReturn interface {
	IsNoReturn(addr uint64) bool
}

// Function is the unit of analysis.
type Function struct {
	Name string
	Addr uint64
	Size uint64 // 0 means only Addr belongs to the function
}

// Contains reports whether addr lies inside the function.
func (f Function) Contains(addr uint64) bool {
	if f.Size == 0 {
		return addr == f.Addr
	}
	return addr >= f.Addr && addr-f.Addr < f.Size
}

// Context is the per-path analysis state. It is copied whenever a path forks.
type Context struct {
	Depth                 int
	SavedDepth            int
	FramePointerCorrupted bool
	LocalEntryDepth       int
	InLocalSubroutine     bool
}

type pendingPath struct {
	addr uint64
	ctx  Context
}

// Analyzer walks functions read from a Source. It holds no per-analysis
// state and is safe for concurrent use when its Source, Logger and NoReturn
// are.
type Analyzer struct {
	src      Source
	log      Logger
	profile  arm.Profile
	noReturn NoReturn
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the trace logger.
func WithLogger(l Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

// WithProfile selects the frame-pointer convention. The default is arm.Thumb.
func WithProfile(p arm.Profile) Option {
	return func(a *Analyzer) { a.profile = p }
}

// WithNoReturn sets the oracle for calls that never return.
func WithNoReturn(n NoReturn) Option {
	return func(a *Analyzer) { a.noReturn = n }
}

// NewAnalyzer returns an Analyzer reading from src.
func NewAnalyzer(src Source, opts ...Option) *Analyzer {
	a := &Analyzer{src: src, log: nopLogger{}, profile: arm.Thumb}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze explores every path reachable from fn.Addr and returns the
// function's stack usage. Problems are reported through Usage.Flags.
func (a *Analyzer) Analyze(fn Function) Usage {
	var usage Usage
	covered := make(map[uint64]bool)
	queue := []pendingPath{{addr: fn.Addr}}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		a.log.Tracef("path 0x%08x depth %d", p.addr, p.ctx.Depth)
		queue = a.walk(fn, p, covered, &usage, queue)
	}
	return usage
}

// walk follows one path until it terminates and returns the queue with any
// forked paths appended.
func (a *Analyzer) walk(fn Function, p pendingPath, covered map[uint64]bool, usage *Usage, queue []pendingPath) []pendingPath {
	ctx := p.ctx
	last := arm.Instruction{Addr: p.addr}
	ended := false

	for insn := range a.src.Instructions(p.addr) {
		last = insn
		if !insn.Readable() {
			a.flag(usage, FlagUnreadableCode, insn)
			return queue
		}
		if covered[insn.Addr] {
			return queue
		}
		covered[insn.Addr] = true

		var stop bool
		queue, stop = a.step(fn, insn, &ctx, usage, queue)
		if stop {
			ended = true
			break
		}
	}
	if !ended {
		// Ran off the end of the source without a terminator.
		a.flag(usage, FlagUnreadableCode, arm.Instruction{Addr: last.Addr})
	}
	return queue
}

// step applies one instruction to ctx and reports whether the path ends.
func (a *Analyzer) step(fn Function, insn arm.Instruction, ctx *Context, usage *Usage, queue []pendingPath) ([]pendingPath, bool) {
	eff, err := a.profile.Classify(insn)
	if err != nil {
		a.log.Tracef("%v", err)
		a.flag(usage, FlagUnrecognizedInstruction, insn)
		return queue, true
	}

	switch {
	case eff.Has(arm.ChangesStackPointerUnpredictably):
		a.flag(usage, FlagDynamicStack, insn)
	case eff.Has(arm.RegisterJump):
		a.flag(usage, FlagDynamicCalls, insn)
	case eff.Has(arm.Unrecognizable):
		a.flag(usage, FlagUnrecognizedInstruction, insn)
	case eff.Has(arm.UnpredictableJump):
		a.flag(usage, FlagOtherWarning, insn)
	}

	if eff.Has(arm.SavesStackPointerWithDelta) {
		ctx.SavedDepth = ctx.Depth + eff.StackDelta
	}
	if eff.Has(arm.RestoresStackPointer) {
		ctx.Depth = ctx.SavedDepth + eff.StackDelta
		if ctx.FramePointerCorrupted {
			a.flag(usage, FlagDynamicStack, insn)
		}
		usage.UpdateMaxDepth(ctx.Depth)
	}
	if eff.Has(arm.ChangesFramePointerUnpredictably) {
		ctx.FramePointerCorrupted = true
	}
	if eff.Has(arm.MovesSavedStackPointer) {
		ctx.SavedDepth += eff.StackDelta
	}
	if eff.Has(arm.MovesStackPointer) {
		usage.UpdateMaxDepth(ctx.Depth)
		ctx.Depth += eff.StackDelta
		usage.UpdateMaxDepth(ctx.Depth)
		if ctx.Depth < 0 {
			a.flag(usage, FlagStackUnderrun, insn)
		}
	}

	if eff.Has(arm.FunctionCall) {
		switch {
		case eff.Has(arm.JumpTargetKnown) && fn.Contains(eff.Target) && eff.Target != fn.Addr:
			local := *ctx
			local.LocalEntryDepth = ctx.Depth
			local.InLocalSubroutine = true
			queue = append(queue, pendingPath{addr: eff.Target, ctx: local})
		case eff.Has(arm.JumpTargetKnown):
			usage.AddCall(Call{Site: insn.Addr, Target: eff.Target, Depth: ctx.Depth})
			if a.noReturn != nil && a.noReturn.IsNoReturn(eff.Target) {
				a.log.InstructionStatus(ctx.Depth, insn, eff)
				return queue, true
			}
		default:
			usage.AddCall(Call{Site: insn.Addr, Indirect: true, Depth: ctx.Depth})
		}
	}

	a.log.InstructionStatus(ctx.Depth, insn, eff)

	if eff.Has(arm.ReturnFromCall) {
		want := 0
		if ctx.InLocalSubroutine && eff.Has(arm.JumpsViaLinkRegister) {
			want = ctx.LocalEntryDepth
		}
		if ctx.Depth != want {
			a.flag(usage, FlagStackImbalance, insn)
		}
		return queue, true
	}

	if eff.Has(arm.UnconditionalJump) && ctx.Depth == 0 {
		known := eff.Has(arm.JumpTargetKnown)
		if !known || !fn.Contains(eff.Target) {
			if known {
				usage.AddCall(Call{Site: insn.Addr, Target: eff.Target, Tail: true})
			}
			return queue, true
		}
	}

	if eff.Has(arm.ConditionalJump | arm.UnconditionalJump) {
		if eff.Has(arm.JumpTargetKnown) {
			queue = append(queue, pendingPath{addr: eff.Target, ctx: *ctx})
		}
		if eff.Has(arm.UnconditionalJump) {
			return queue, true
		}
	}
	return queue, false
}

func (a *Analyzer) flag(usage *Usage, flag Flags, insn arm.Instruction) {
	usage.AddFlag(flag, insn)
	a.log.Warning(insn, flag)
}
