package disasm

import (
	"iter"

	"armstack/internal/arm"
)

// Code is an instruction source that also knows its function boundaries.
// Both *Listing and *ELFSource implement it.
type Code interface {
	Instructions(addr uint64) iter.Seq[arm.Instruction]
	Range(addr, size uint64) []Inst
	Funcs() []Func
}

var (
	_ Code = (*Listing)(nil)
	_ Code = (*ELFSource)(nil)
)
