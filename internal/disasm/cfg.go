package disasm

import (
	"slices"

	"armstack/internal/arm"
)

// BasicBlock is a run of instructions entered only at its first one.
type BasicBlock struct {
	ID      int
	Start   int // first instruction index in FuncCFG.Insts
	End     int // one past the last instruction index
	Succs   []Succ
	IsEntry bool
	IsTerm  bool // returns, leaves the function or hits unreadable code
}

// Succ is an edge to another block. Cond is "" for fallthrough and plain
// jumps, "T" for the taken side of a conditional branch and "F" for its
// fallthrough.
type Succ struct {
	BlockID int
	Cond    string
}

// FuncCFG is the basic-block graph of one function.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// cfgBuilder holds the per-function lookup tables used while splitting
// blocks.
type cfgBuilder struct {
	insts    []Inst
	branches []*BranchInfo
	lo, hi   uint64         // function address range
	index    map[uint64]int // address → instruction index
	blockAt  map[int]int    // leader index → block ID
}

// BuildCFG splits a function's instructions into basic blocks. Leaders are
// the entry, in-function branch targets, unreadable instructions and
// whatever follows a branch or an unreadable instruction.
func BuildCFG(name string, insts []Inst, p arm.Profile) FuncCFG {
	cfg := FuncCFG{Name: name, Insts: insts}
	if len(insts) == 0 {
		return cfg
	}
	b := newCFGBuilder(insts, p)
	cfg.Blocks = b.partition(b.leaders())
	for i := range cfg.Blocks {
		b.link(&cfg.Blocks[i])
	}
	return cfg
}

func newCFGBuilder(insts []Inst, p arm.Profile) *cfgBuilder {
	last := insts[len(insts)-1]
	b := &cfgBuilder{
		insts:    insts,
		branches: make([]*BranchInfo, len(insts)),
		lo:       insts[0].Addr,
		hi:       last.Addr + uint64(max(last.Size, 2)),
		index:    make(map[uint64]int, len(insts)),
	}
	for i, inst := range insts {
		b.index[inst.Addr] = i
		b.branches[i] = DecodeBranch(inst, p)
	}
	return b
}

// local returns the instruction index of an in-function branch target.
func (b *cfgBuilder) local(bi *BranchInfo) (int, bool) {
	if bi == nil || !bi.Known || bi.Target < b.lo || bi.Target >= b.hi {
		return 0, false
	}
	idx, ok := b.index[bi.Target]
	return idx, ok
}

func (b *cfgBuilder) leaders() []int {
	set := map[int]bool{0: true}
	for i, inst := range b.insts {
		bi := b.branches[i]
		if inst.Readable() && bi == nil {
			continue
		}
		if !inst.Readable() {
			set[i] = true
		}
		if i+1 < len(b.insts) {
			set[i+1] = true
		}
		if idx, ok := b.local(bi); ok {
			set[idx] = true
		}
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

func (b *cfgBuilder) partition(leaders []int) []BasicBlock {
	blocks := make([]BasicBlock, len(leaders))
	b.blockAt = make(map[int]int, len(leaders))
	for id, start := range leaders {
		end := len(b.insts)
		if id+1 < len(leaders) {
			end = leaders[id+1]
		}
		blocks[id] = BasicBlock{ID: id, Start: start, End: end, IsEntry: start == 0}
		b.blockAt[start] = id
	}
	return blocks
}

// link fills in the successors of blk from its last instruction.
func (b *cfgBuilder) link(blk *BasicBlock) {
	if blk.End <= blk.Start {
		return
	}
	tail := blk.End - 1
	next, hasNext := b.blockAt[blk.End]
	bi := b.branches[tail]

	switch {
	case bi == nil && !b.insts[tail].Readable():
		blk.IsTerm = true
	case bi == nil:
		if hasNext {
			blk.Succs = append(blk.Succs, Succ{BlockID: next})
		}
	case bi.IsRet:
		blk.IsTerm = true
	case bi.Cond:
		if idx, ok := b.local(bi); ok {
			blk.Succs = append(blk.Succs, Succ{BlockID: b.blockAt[idx], Cond: "T"})
		}
		if hasNext {
			blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
		}
	default:
		if idx, ok := b.local(bi); ok {
			blk.Succs = append(blk.Succs, Succ{BlockID: b.blockAt[idx]})
		} else {
			blk.IsTerm = true
		}
	}
}
