// Package disasm provides ARM instruction streams for stack analysis, either
// decoded from an ELF image or parsed from an objdump listing.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"

	"armstack/internal/arm"
)

// Inst is one instruction with address and raw encoding.
type Inst struct {
	Addr     uint64
	Raw      uint32
	Size     int // 2 or 4; 0 when unknown
	Mnemonic string
	Operands string
	Text     string // full disassembly line
}

// Readable reports whether the instruction decoded to real code.
func (i Inst) Readable() bool {
	return i.Mnemonic != "" && !strings.HasPrefix(i.Mnemonic, ".")
}

// Instruction converts i to the classifier's representation. Data words and
// undecodable encodings become unreadable instructions.
func (i Inst) Instruction() arm.Instruction {
	if !i.Readable() {
		return arm.Instruction{Addr: i.Addr}
	}
	return arm.Instruction{Addr: i.Addr, Op: i.Mnemonic, Args: i.Operands}
}

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint64) (name string, ok bool)

// Options controls disassembly behavior.
type Options struct {
	BaseAddr uint64 // VA of the first byte in Data
	MaxSteps int    // maximum instructions to decode; 0 = 10M
}

const defaultMaxSteps = 10_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Disassemble decodes ARM-state (A32) instructions from a byte region.
// Returns decoded instructions up to MaxSteps or end of data.
func Disassemble(data []byte, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	n := min(len(data)/4, maxSteps)
	result := make([]Inst, 0, n)
	for off := 0; off < 4*n; off += 4 {
		result = append(result, decodeARM(data[off:off+4], opts.BaseAddr+uint64(off)))
	}
	return result
}

// decodeARM decodes one A32 word. Branch targets are rendered as absolute
// hex addresses so the classifier can resolve them.
func decodeARM(b []byte, addr uint64) Inst {
	raw := binary.LittleEndian.Uint32(b)
	inst := Inst{Addr: addr, Raw: raw, Size: 4}

	dec, err := armasm.Decode(b, armasm.ModeARM)
	if err != nil {
		inst.Mnemonic = ".word"
		inst.Operands = fmt.Sprintf("0x%08x", raw)
		inst.Text = ".word " + inst.Operands
		return inst
	}

	text := armasm.GNUSyntax(dec)
	mnemonic, operands, _ := strings.Cut(text, " ")
	if rel, ok := dec.Args[0].(armasm.PCRel); ok {
		target := uint64(int64(addr) + 8 + int64(rel))
		operands = fmt.Sprintf("%x", uint32(target))
		text = mnemonic + " " + operands
	}
	inst.Mnemonic = strings.ToLower(mnemonic)
	inst.Operands = strings.TrimSpace(operands)
	inst.Text = text
	return inst
}

// Format renders a slice of instructions as stable text output.
// Each line: <addr>  <hex bytes>  <disasm>  ; <comments>
// Annotators are checked in order; first non-empty result is used.
func Format(insts []Inst, lookup SymbolLookup, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		// Address.
		fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
		// Raw bytes.
		switch inst.Size {
		case 2:
			fmt.Fprintf(&b, "%04x       ", inst.Raw&0xffff)
		case 4:
			fmt.Fprintf(&b, "%02x %02x %02x %02x", byte(inst.Raw), byte(inst.Raw>>8), byte(inst.Raw>>16), byte(inst.Raw>>24))
		default:
			b.WriteString("           ")
		}
		b.WriteString("  ")
		// Disassembly.
		b.WriteString(inst.Text)
		// Symbol comment.
		commented := false
		if lookup != nil {
			if name, ok := lookup(inst.Addr); ok {
				fmt.Fprintf(&b, "  ; <%s>", name)
				commented = true
			}
		}
		if !commented {
			for _, ann := range annotators {
				if s := ann(inst); s != "" {
					fmt.Fprintf(&b, "  ; %s", s)
					break
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// DisasmOne decodes a single A32 instruction from its raw encoding.
// Returns the disassembly text, or "" if decoding fails.
func DisasmOne(raw uint32, addr uint64) string {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, raw)
	inst := decodeARM(buf, addr)
	if !inst.Readable() {
		return ""
	}
	return inst.Text
}

// PlaceholderLookup returns a SymbolLookup over a fixed set of entry points.
func PlaceholderLookup(entryPoints map[uint64]string) SymbolLookup {
	return func(addr uint64) (string, bool) {
		if name, ok := entryPoints[addr]; ok {
			return name, true
		}
		return "", false
	}
}
