// Package elftest builds small 32-bit ARM ELF images for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Symbol is a symbol table entry. Mapping symbols ($a, $t, $d) use Func false.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
	Func  bool
}

// Image describes the single executable segment of the built file.
type Image struct {
	Base    uint64 // load address of Code
	Code    []byte
	Entry   uint64
	Symbols []Symbol
	Machine elf.Machine // defaults to EM_ARM
}

const (
	ehdrSize = 52
	phdrSize = 32
	shdrSize = 40
	symSize  = 16
)

// Build returns the ELF file bytes for img.
func Build(img Image) []byte {
	le := binary.LittleEndian
	machine := img.Machine
	if machine == 0 {
		machine = elf.EM_ARM
	}

	// String tables.
	strtab := []byte{0}
	nameOff := make([]uint32, len(img.Symbols))
	for i, s := range img.Symbols {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
	}
	shstrtab := []byte{0}
	shName := func(n string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, n...)
		shstrtab = append(shstrtab, 0)
		return off
	}
	textName, symName, strName, shstrName := shName(".text"), shName(".symtab"), shName(".strtab"), shName(".shstrtab")

	codeOff := uint32(ehdrSize + phdrSize)
	codeLen := uint32(len(img.Code))
	symOff := align4(codeOff + codeLen)
	symLen := uint32(symSize * (len(img.Symbols) + 1))
	strOff := symOff + symLen
	shstrOff := strOff + uint32(len(strtab))
	shOff := align4(shstrOff + uint32(len(shstrtab)))

	var b bytes.Buffer
	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     uint32(img.Entry),
		Phoff:     ehdrSize,
		Shoff:     shOff,
		Flags:     0x05000000,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     1,
		Shentsize: shdrSize,
		Shnum:     5,
		Shstrndx:  4,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	binary.Write(&b, le, hdr)

	binary.Write(&b, le, elf.Prog32{
		Type:   uint32(elf.PT_LOAD),
		Off:    codeOff,
		Vaddr:  uint32(img.Base),
		Paddr:  uint32(img.Base),
		Filesz: codeLen,
		Memsz:  codeLen,
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Align:  4,
	})

	b.Write(img.Code)
	pad(&b, symOff)

	binary.Write(&b, le, elf.Sym32{})
	for i, s := range img.Symbols {
		typ := elf.STT_NOTYPE
		bind := elf.STB_LOCAL
		if s.Func {
			typ, bind = elf.STT_FUNC, elf.STB_GLOBAL
		}
		binary.Write(&b, le, elf.Sym32{
			Name:  nameOff[i],
			Value: uint32(s.Value),
			Size:  uint32(s.Size),
			Info:  elf.ST_INFO(bind, typ),
			Shndx: 1,
		})
	}
	b.Write(strtab)
	b.Write(shstrtab)
	pad(&b, shOff)

	sections := []elf.Section32{
		{},
		{Name: textName, Type: uint32(elf.SHT_PROGBITS), Flags: uint32(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addr: uint32(img.Base), Off: codeOff, Size: codeLen, Addralign: 4},
		{Name: symName, Type: uint32(elf.SHT_SYMTAB), Off: symOff, Size: symLen, Link: 3, Info: 1,
			Addralign: 4, Entsize: symSize},
		{Name: strName, Type: uint32(elf.SHT_STRTAB), Off: strOff, Size: uint32(len(strtab)), Addralign: 1},
		{Name: shstrName, Type: uint32(elf.SHT_STRTAB), Off: shstrOff, Size: uint32(len(shstrtab)), Addralign: 1},
	}
	for _, s := range sections {
		binary.Write(&b, le, s)
	}
	return b.Bytes()
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }

func pad(b *bytes.Buffer, to uint32) {
	for uint32(b.Len()) < to {
		b.WriteByte(0)
	}
}

// ARMWords encodes 32-bit ARM instruction words little-endian.
func ARMWords(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}
