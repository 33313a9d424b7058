package logging

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"armstack/internal/arm"
	"armstack/internal/stack"
)

// Tracer adapts a charm logger to stack.Logger. Instruction traces go to
// debug level, warnings to warn level.
type Tracer struct {
	lg *log.Logger
	fn string
}

// NewTracer returns a Tracer tagging every record with the function name.
func NewTracer(lg *log.Logger, fn string) *Tracer {
	return &Tracer{lg: lg, fn: fn}
}

func (t *Tracer) Tracef(format string, args ...any) {
	t.lg.Debug(fmt.Sprintf(format, args...), "func", t.fn)
}

func (t *Tracer) InstructionStatus(depth int, insn arm.Instruction, eff arm.Effect) {
	t.lg.Debug(insn.Op+" "+insn.Args,
		"func", t.fn,
		"addr", fmt.Sprintf("0x%08x", insn.Addr),
		"depth", depth,
		"effect", eff)
}

func (t *Tracer) Warning(insn arm.Instruction, flag stack.Flags) {
	t.lg.Warn(flag.String(),
		"func", t.fn,
		"addr", fmt.Sprintf("0x%08x", insn.Addr),
		"insn", insn)
}

// DepthRecorder is a stack.Logger that keeps the depth reported at each
// address. The first depth seen for an address wins.
type DepthRecorder struct {
	stack.Logger

	mu     sync.Mutex
	depths map[uint64]int
}

// NewDepthRecorder wraps next, which may be nil.
func NewDepthRecorder(next stack.Logger) *DepthRecorder {
	if next == nil {
		next = stack.NopLogger()
	}
	return &DepthRecorder{Logger: next, depths: make(map[uint64]int)}
}

func (r *DepthRecorder) InstructionStatus(depth int, insn arm.Instruction, eff arm.Effect) {
	r.mu.Lock()
	if _, ok := r.depths[insn.Addr]; !ok {
		r.depths[insn.Addr] = depth
	}
	r.mu.Unlock()
	r.Logger.InstructionStatus(depth, insn, eff)
}

// Depths returns a copy of the recorded depths.
func (r *DepthRecorder) Depths() map[uint64]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint64]int, len(r.depths))
	for k, v := range r.depths {
		out[k] = v
	}
	return out
}

var (
	_ stack.Logger = (*Tracer)(nil)
	_ stack.Logger = (*DepthRecorder)(nil)
)
