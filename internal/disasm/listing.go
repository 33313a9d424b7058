package disasm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"armstack/internal/arm"
)

// ErrEmptyListing is returned when a listing contains no instructions.
var ErrEmptyListing = errors.New("disasm: listing has no instructions")

// Func is a function boundary known to an instruction source.
type Func struct {
	Name string
	Addr uint64
	Size uint64
}

var (
	labelRE = regexp.MustCompile(`^([0-9a-fA-F]+) <(.+)>:\s*$`)
	insnRE  = regexp.MustCompile(`^\s*([0-9a-fA-F]+):\t(.*)$`)
	rawRE   = regexp.MustCompile(`^(?:[0-9a-fA-F]{2}){1,4}(?: (?:[0-9a-fA-F]{2}){1,4})*\s*$`)
)

// Listing is an instruction source parsed from GNU objdump -d output.
type Listing struct {
	insts []Inst
	index map[uint64]int
	funcs []Func
}

// LoadListing reads an objdump listing from path.
func LoadListing(path string) (*Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("disasm: open listing: %w", err)
	}
	defer f.Close()
	return ParseListing(f)
}

// ParseListing parses objdump -d text. Lines that are neither labels nor
// instructions are ignored.
func ParseListing(r io.Reader) (*Listing, error) {
	l := &Listing{index: make(map[uint64]int)}
	type label struct {
		name string
		addr uint64
	}
	var labels []label

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if m := labelRE.FindStringSubmatch(line); m != nil {
			addr, err := strconv.ParseUint(m[1], 16, 64)
			if err != nil {
				continue
			}
			labels = append(labels, label{name: m[2], addr: addr})
			continue
		}
		m := insnRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		addr, err := strconv.ParseUint(m[1], 16, 64)
		if err != nil {
			continue
		}
		inst, ok := parseInsnFields(addr, m[2])
		if !ok {
			continue
		}
		if _, dup := l.index[addr]; dup {
			continue
		}
		l.index[addr] = len(l.insts)
		l.insts = append(l.insts, inst)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("disasm: read listing: %w", err)
	}
	if len(l.insts) == 0 {
		return nil, ErrEmptyListing
	}

	sort.SliceStable(l.insts, func(i, j int) bool { return l.insts[i].Addr < l.insts[j].Addr })
	for i, inst := range l.insts {
		l.index[inst.Addr] = i
	}
	l.fillSizes()

	sort.SliceStable(labels, func(i, j int) bool { return labels[i].addr < labels[j].addr })
	end := l.insts[len(l.insts)-1].end()
	for i, lb := range labels {
		next := end
		if i+1 < len(labels) {
			next = labels[i+1].addr
		}
		var size uint64
		if next > lb.addr {
			size = next - lb.addr
		}
		l.funcs = append(l.funcs, Func{Name: lb.name, Addr: lb.addr, Size: size})
	}
	return l, nil
}

// parseInsnFields splits "<raw bytes>\t<mnemonic>\t<args>" where the raw
// bytes column is optional.
func parseInsnFields(addr uint64, rest string) (Inst, bool) {
	fields := strings.Split(rest, "\t")
	inst := Inst{Addr: addr}
	if len(fields) >= 2 && rawRE.MatchString(fields[0]) {
		raw := strings.Fields(fields[0])
		var digits int
		for _, r := range raw {
			digits += len(r)
		}
		inst.Size = digits / 2
		v, _ := strconv.ParseUint(strings.Join(raw, ""), 16, 64)
		inst.Raw = uint32(v)
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return Inst{}, false
	}
	inst.Mnemonic = strings.TrimSpace(fields[0])
	if inst.Mnemonic == "" {
		return Inst{}, false
	}
	if len(fields) > 1 {
		inst.Operands = strings.TrimSpace(strings.Join(fields[1:], "\t"))
	}
	if strings.Contains(inst.Operands, "UNDEFINED") || strings.Contains(inst.Mnemonic, "UNDEFINED") {
		inst.Mnemonic = ".undefined"
	}
	inst.Text = strings.TrimSpace(inst.Mnemonic + " " + inst.Operands)
	return inst, true
}

// fillSizes infers missing sizes from the following address.
func (l *Listing) fillSizes() {
	for i := range l.insts {
		if l.insts[i].Size != 0 {
			continue
		}
		if i+1 < len(l.insts) {
			l.insts[i].Size = int(l.insts[i+1].Addr - l.insts[i].Addr)
		} else {
			l.insts[i].Size = 2
		}
	}
}

func (i Inst) end() uint64 { return i.Addr + uint64(i.Size) }

// Funcs returns the labelled functions in address order.
func (l *Listing) Funcs() []Func { return l.funcs }

// Insts returns every parsed instruction in address order.
func (l *Listing) Insts() []Inst { return l.insts }

// Range returns the instructions in [addr, addr+size).
func (l *Listing) Range(addr, size uint64) []Inst {
	start := sort.Search(len(l.insts), func(i int) bool { return l.insts[i].Addr >= addr })
	end := start
	for end < len(l.insts) && l.insts[end].Addr < addr+size {
		end++
	}
	return l.insts[start:end]
}

// Instructions yields the contiguous run of instructions starting at addr.
// An address with no instruction, a data word or a gap in the listing
// yields one unreadable instruction and ends the sequence.
func (l *Listing) Instructions(addr uint64) iter.Seq[arm.Instruction] {
	return func(yield func(arm.Instruction) bool) {
		i, ok := l.index[addr]
		if !ok {
			yield(arm.Instruction{Addr: addr})
			return
		}
		for ; i < len(l.insts); i++ {
			insn := l.insts[i].Instruction()
			if !yield(insn) || !insn.Readable() {
				return
			}
			next := l.insts[i].end()
			if i+1 >= len(l.insts) || l.insts[i+1].Addr != next {
				yield(arm.Instruction{Addr: next})
				return
			}
		}
	}
}
