package disasm

import (
	"fmt"
	"iter"
	"sort"

	"armstack/internal/arm"
	"armstack/internal/elfx"
)

type segment struct {
	vaddr uint64
	data  []byte
}

// ELFSource decodes ARM-state code straight from an ELF image. The decoder
// has no Thumb support, so Thumb and data regions read as unreadable.
type ELFSource struct {
	file  *elfx.File
	segs  []segment
	funcs []Func
}

// NewELFSource loads the executable segments of f.
func NewELFSource(f *elfx.File) (*ELFSource, error) {
	s := &ELFSource{file: f}
	for _, seg := range f.LoadSegments() {
		if !seg.Executable() || seg.Filesz == 0 {
			continue
		}
		data, err := f.ReadSegment(seg)
		if err != nil {
			return nil, fmt.Errorf("disasm: load segment: %w", err)
		}
		s.segs = append(s.segs, segment{vaddr: seg.Vaddr, data: data})
	}
	sort.Slice(s.segs, func(i, j int) bool { return s.segs[i].vaddr < s.segs[j].vaddr })
	for _, fn := range f.Functions() {
		s.funcs = append(s.funcs, Func{Name: fn.Name, Addr: fn.Addr, Size: fn.Size})
	}
	return s, nil
}

// Funcs returns the function symbols of the image.
func (s *ELFSource) Funcs() []Func { return s.funcs }

// decode returns the instruction at addr, or an unreadable one.
func (s *ELFSource) decode(addr uint64) Inst {
	if addr%4 != 0 || s.file.ModeAt(addr) != elfx.ModeARM {
		return Inst{Addr: addr}
	}
	for _, seg := range s.segs {
		if addr < seg.vaddr || addr-seg.vaddr+4 > uint64(len(seg.data)) {
			continue
		}
		off := addr - seg.vaddr
		return decodeARM(seg.data[off:off+4], addr)
	}
	return Inst{Addr: addr}
}

// Range decodes the instructions in [addr, addr+size).
func (s *ELFSource) Range(addr, size uint64) []Inst {
	var out []Inst
	for pc := addr; pc < addr+size; pc += 4 {
		out = append(out, s.decode(pc))
	}
	return out
}

// Instructions yields instructions from addr until the first unreadable one.
func (s *ELFSource) Instructions(addr uint64) iter.Seq[arm.Instruction] {
	return func(yield func(arm.Instruction) bool) {
		for pc := addr; ; pc += 4 {
			insn := s.decode(pc).Instruction()
			if !yield(insn) || !insn.Readable() {
				return
			}
		}
	}
}
