// Package arm models the stack-relevant semantics of 32-bit ARM and Thumb
// instructions as they appear in GNU disassembly listings.
package arm

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is one disassembled instruction. An empty Op marks an address
// that could not be read or decoded.
type Instruction struct {
	Addr uint64
	Op   string // mnemonic, any case, width qualifiers allowed (e.g. "pop.w")
	Args string // raw operand text
}

// Readable reports whether the instruction carries a mnemonic.
func (i Instruction) Readable() bool { return i.Op != "" }

func (i Instruction) String() string {
	if !i.Readable() {
		return fmt.Sprintf("0x%08x  <unreadable>", i.Addr)
	}
	if i.Args == "" {
		return fmt.Sprintf("0x%08x  %s", i.Addr, i.Op)
	}
	return fmt.Sprintf("0x%08x  %s %s", i.Addr, i.Op, i.Args)
}

// Mnemonic returns the lowercase mnemonic with any trailing .n/.w width
// qualifier removed, so "POP.W" and "pop" compare equal.
func Mnemonic(op string) string {
	m := strings.ToLower(strings.TrimSpace(op))
	if strings.HasSuffix(m, ".n") || strings.HasSuffix(m, ".w") {
		m = m[:len(m)-2]
	}
	return m
}

// OperandKind classifies a parsed operand.
type OperandKind int

const (
	OperandOther   OperandKind = iota
	OperandReg                 // r0, sp, lr, sp!
	OperandRegList             // {r4, r7, lr}
	OperandImm                 // #16
	OperandMem                 // [sp, #-8]!
	OperandAddr                // 8000124, 0x08000124
)

func (k OperandKind) String() string {
	switch k {
	case OperandReg:
		return "reg"
	case OperandRegList:
		return "reglist"
	case OperandImm:
		return "imm"
	case OperandMem:
		return "mem"
	case OperandAddr:
		return "addr"
	default:
		return "other"
	}
}

// Operand is one structured operand.
type Operand struct {
	Kind      OperandKind
	Text      string
	Reg       string   // register for OperandReg, base register for OperandMem
	Regs      []string // OperandRegList, canonical names in listing order
	Imm       int64    // OperandImm value, OperandMem offset
	HasImm    bool     // OperandMem carries an immediate offset
	WriteBack bool     // trailing "!"
	Addr      uint64   // OperandAddr
}

// IsReg reports whether o is the register name (canonical form).
func (o Operand) IsReg(name string) bool {
	return o.Kind == OperandReg && o.Reg == name
}

// Register aliases resolved to one spelling. r7 stays r7: it is the Thumb
// frame pointer, while fp (r11) is the ARM-state one.
var regAliases = map[string]string{
	"r9":  "sb",
	"r10": "sl",
	"r11": "fp",
	"r12": "ip",
	"r13": "sp",
	"r14": "lr",
	"r15": "pc",
	"a1":  "r0",
	"a2":  "r1",
	"a3":  "r2",
	"a4":  "r3",
	"v1":  "r4",
	"v2":  "r5",
	"v3":  "r6",
	"v4":  "r7",
	"v5":  "r8",
	"v6":  "sb",
	"v7":  "sl",
	"v8":  "fp",
}

// canonicalReg returns the canonical name of a core register, or "" if s
// does not name one.
func canonicalReg(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := regAliases[s]; ok {
		return alias
	}
	switch s {
	case "sp", "lr", "pc", "ip", "fp", "sb", "sl":
		return s
	}
	if len(s) >= 2 && s[0] == 'r' {
		n, err := strconv.Atoi(s[1:])
		if err == nil && n >= 0 && n <= 8 && s[1:] == strconv.Itoa(n) {
			return s
		}
	}
	return ""
}

// regNumber maps a canonical register name to its index.
func regNumber(r string) int {
	switch r {
	case "sb":
		return 9
	case "sl":
		return 10
	case "fp":
		return 11
	case "ip":
		return 12
	case "sp":
		return 13
	case "lr":
		return 14
	case "pc":
		return 15
	}
	n, _ := strconv.Atoi(r[1:])
	return n
}

var regNames = [16]string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "sb", "sl", "fp", "ip", "sp", "lr", "pc"}

// StripAnnotations removes disassembler decorations that carry no operand
// meaning: trailing comments after ';' or '@' and symbolic "<sym+off>" tags.
func StripAnnotations(args string) string {
	if i := strings.IndexAny(args, ";@"); i >= 0 {
		args = args[:i]
	}
	for {
		open := strings.IndexByte(args, '<')
		if open < 0 {
			break
		}
		end := strings.IndexByte(args[open:], '>')
		if end < 0 {
			args = args[:open]
			break
		}
		args = args[:open] + args[open+end+1:]
	}
	return strings.TrimSpace(args)
}

// SplitOperands splits operand text at top-level commas, leaving commas
// inside [] and {} intact. It fails on unbalanced brackets.
func SplitOperands(args string) ([]string, error) {
	args = StripAnnotations(args)
	if args == "" {
		return nil, nil
	}
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced %q in %q", ErrMalformedOperand, args[i], args)
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(args[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unterminated bracket in %q", ErrMalformedOperand, args)
	}
	out = append(out, strings.TrimSpace(args[start:]))
	return out, nil
}

// ParseOperands tokenizes operand text into structured operands.
func ParseOperands(args string) ([]Operand, error) {
	parts, err := SplitOperands(args)
	if err != nil {
		return nil, err
	}
	ops := make([]Operand, 0, len(parts))
	for _, p := range parts {
		op, err := parseOperand(p)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parseOperand(s string) (Operand, error) {
	op := Operand{Kind: OperandOther, Text: s}
	if s == "" {
		return op, nil
	}
	switch {
	case s[0] == '{':
		regs, err := parseRegList(s)
		if err != nil {
			return op, err
		}
		op.Kind = OperandRegList
		op.Regs = regs
		return op, nil
	case s[0] == '[':
		return parseMem(s)
	case s[0] == '#':
		v, ok := ParseImmediate(s)
		if !ok {
			return op, nil
		}
		op.Kind = OperandImm
		op.Imm = v
		return op, nil
	}

	body := s
	if strings.HasSuffix(body, "!") {
		body = strings.TrimSpace(body[:len(body)-1])
		op.WriteBack = true
	}
	if r := canonicalReg(body); r != "" {
		op.Kind = OperandReg
		op.Reg = r
		return op, nil
	}
	op.WriteBack = false
	if addr, ok := ParseAddress(s); ok {
		op.Kind = OperandAddr
		op.Addr = addr
	}
	return op, nil
}

// parseRegList expands "{r4-r7, lr}" into canonical register names.
func parseRegList(s string) ([]string, error) {
	if !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("%w: register list %q", ErrMalformedOperand, s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, fmt.Errorf("%w: empty register list", ErrMalformedOperand)
	}
	var regs []string
	for _, item := range strings.Split(inner, ",") {
		item = strings.TrimSpace(item)
		if lo, hi, ok := strings.Cut(item, "-"); ok {
			first, last := canonicalReg(lo), canonicalReg(hi)
			if first == "" || last == "" || regNumber(first) > regNumber(last) {
				return nil, fmt.Errorf("%w: register range %q", ErrMalformedOperand, item)
			}
			for n := regNumber(first); n <= regNumber(last); n++ {
				regs = append(regs, regNames[n])
			}
			continue
		}
		r := canonicalReg(item)
		if r == "" {
			return nil, fmt.Errorf("%w: register %q in list %q", ErrMalformedOperand, item, s)
		}
		regs = append(regs, r)
	}
	return regs, nil
}

// parseMem parses "[base]", "[base, #imm]" and "[base, #imm]!".
func parseMem(s string) (Operand, error) {
	op := Operand{Kind: OperandMem, Text: s}
	body := s
	if strings.HasSuffix(body, "!") {
		op.WriteBack = true
		body = strings.TrimSpace(body[:len(body)-1])
	}
	if !strings.HasSuffix(body, "]") {
		return op, fmt.Errorf("%w: memory operand %q", ErrMalformedOperand, s)
	}
	fields := strings.Split(body[1:len(body)-1], ",")
	op.Reg = canonicalReg(fields[0])
	if op.Reg == "" {
		op.Reg = strings.TrimSpace(fields[0])
	}
	if len(fields) == 2 {
		if v, ok := ParseImmediate(strings.TrimSpace(fields[1])); ok {
			op.Imm = v
			op.HasImm = true
		}
	}
	return op, nil
}

// ParseImmediate parses "#16", "#-4" or "#0x10".
func ParseImmediate(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return 0, false
	}
	s = s[1:]
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, true
	}
	return 0, false
}

// ParseAddress parses a code address. GDB prefixes addresses with 0x,
// objdump does not.
func ParseAddress(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if f := strings.Fields(s); len(f) > 0 {
		s = f[0]
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// StripThumbBit clears the instruction-set tag carried in bit 0 of code
// addresses.
func StripThumbBit(addr uint64) uint64 { return addr &^ 1 }
