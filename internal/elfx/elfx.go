// Package elfx provides ELF loading helpers for 32-bit ARM firmware images.
package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var (
	ErrNotELF       = errors.New("elfx: not an ELF file")
	ErrNotARM       = errors.New("elfx: not 32-bit ARM (EM_ARM)")
	ErrNot32Bit     = errors.New("elfx: not 32-bit ELF")
	ErrNoSymbol     = errors.New("elfx: symbol not found")
	ErrNoSegment    = errors.New("elfx: no PT_LOAD segment covers address")
	ErrSymbolNoSize = errors.New("elfx: symbol has zero size")
)

// Mode is the instruction set in effect at an address.
type Mode int

const (
	ModeARM Mode = iota
	ModeThumb
	ModeData
)

func (m Mode) String() string {
	switch m {
	case ModeARM:
		return "arm"
	case ModeThumb:
		return "thumb"
	case ModeData:
		return "data"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Func is a function symbol with the Thumb bit removed from its address.
type Func struct {
	Name  string
	Addr  uint64
	Size  uint64
	Thumb bool
}

type mappingSymbol struct {
	addr uint64
	mode Mode
}

// File wraps a debug/elf.File with convenience methods for ARM analysis.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	size int64

	closer  io.Closer
	funcs   []Func
	mapping []mappingSymbol
}

// Open opens an ELF file and validates it is a 32-bit ARM image.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := NewFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	ef.closer = f
	return ef, nil
}

// NewFile reads an ELF image from r.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	if ef.Class != elf.ELFCLASS32 {
		ef.Close()
		return nil, ErrNot32Bit
	}
	if ef.Machine != elf.EM_ARM {
		ef.Close()
		return nil, ErrNotARM
	}

	f := &File{ELF: ef, raw: r, size: size}
	if err := f.loadSymbols(); err != nil {
		ef.Close()
		return nil, err
	}
	return f, nil
}

// Close releases resources.
func (f *File) Close() error {
	err := f.ELF.Close()
	if f.closer != nil {
		if cerr := f.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

func (f *File) loadSymbols() error {
	syms, err := f.ELF.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("elfx: symtab: %w", err)
	}
	seen := make(map[uint64]bool)
	for _, s := range syms {
		switch {
		case s.Name == "$a" || strings.HasPrefix(s.Name, "$a."):
			f.mapping = append(f.mapping, mappingSymbol{addr: s.Value, mode: ModeARM})
		case s.Name == "$t" || strings.HasPrefix(s.Name, "$t."):
			f.mapping = append(f.mapping, mappingSymbol{addr: s.Value, mode: ModeThumb})
		case s.Name == "$d" || strings.HasPrefix(s.Name, "$d."):
			f.mapping = append(f.mapping, mappingSymbol{addr: s.Value, mode: ModeData})
		case elf.ST_TYPE(s.Info) == elf.STT_FUNC && s.Section != elf.SHN_UNDEF:
			addr := s.Value &^ 1
			if seen[addr] {
				continue
			}
			seen[addr] = true
			f.funcs = append(f.funcs, Func{
				Name:  s.Name,
				Addr:  addr,
				Size:  s.Size,
				Thumb: s.Value&1 != 0,
			})
		}
	}
	sort.Slice(f.funcs, func(i, j int) bool { return f.funcs[i].Addr < f.funcs[j].Addr })
	sort.SliceStable(f.mapping, func(i, j int) bool { return f.mapping[i].addr < f.mapping[j].addr })
	return nil
}

// Functions returns the defined STT_FUNC symbols sorted by address.
// Aliases sharing an address are reported once.
func (f *File) Functions() []Func {
	return f.funcs
}

// Symbol looks up a function symbol by exact name.
func (f *File) Symbol(name string) (addr, size uint64, err error) {
	for _, fn := range f.funcs {
		if fn.Name == name {
			return fn.Addr, fn.Size, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrNoSymbol, name)
}

// ModeAt returns the instruction set at addr. Mapping symbols take
// precedence; without them the Thumb bit of the enclosing function symbol
// decides, then the entry point.
func (f *File) ModeAt(addr uint64) Mode {
	i := sort.Search(len(f.mapping), func(i int) bool { return f.mapping[i].addr > addr })
	if i > 0 {
		return f.mapping[i-1].mode
	}
	for _, fn := range f.funcs {
		if addr >= fn.Addr && (addr-fn.Addr < fn.Size || addr == fn.Addr) {
			if fn.Thumb {
				return ModeThumb
			}
			return ModeARM
		}
	}
	if f.ELF.Entry&1 != 0 {
		return ModeThumb
	}
	return ModeARM
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Filesz {
			offset := va - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadAt reads bytes from the underlying file at the given file offset.
func (f *File) ReadAt(buf []byte, off int64) (int, error) {
	return f.raw.ReadAt(buf, off)
}

// ReadBytesAtVA reads up to n bytes starting at the given virtual address.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	// Clamp to file size.
	avail := f.size - int64(off)
	if avail <= 0 {
		return nil, fmt.Errorf("elfx: offset 0x%x at or past end of file", off)
	}
	if int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// SegmentInfo describes a PT_LOAD segment.
type SegmentInfo struct {
	Vaddr  uint64
	Memsz  uint64
	Filesz uint64
	Offset uint64
	Flags  elf.ProgFlag
}

// Executable reports whether the segment is mapped executable.
func (s SegmentInfo) Executable() bool { return s.Flags&elf.PF_X != 0 }

// LoadSegments returns all PT_LOAD segments.
func (f *File) LoadSegments() []SegmentInfo {
	var segs []SegmentInfo
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, SegmentInfo{
			Vaddr:  p.Vaddr,
			Memsz:  p.Memsz,
			Filesz: p.Filesz,
			Offset: p.Off,
			Flags:  p.Flags,
		})
	}
	return segs
}

// ReadSegment returns the file-backed bytes of s.
func (f *File) ReadSegment(s SegmentInfo) ([]byte, error) {
	buf := make([]byte, s.Filesz)
	if _, err := f.raw.ReadAt(buf, int64(s.Offset)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read segment 0x%x: %w", s.Vaddr, err)
	}
	return buf, nil
}

// ByteOrder returns the ELF byte order.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.ELF.ByteOrder
}

// IsELF reports whether data starts with the ELF magic.
func IsELF(data []byte) bool {
	return bytes.HasPrefix(data, []byte(elf.ELFMAG))
}
