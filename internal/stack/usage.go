package stack

import (
	"fmt"
	"strings"

	"armstack/internal/arm"
)

// Flags is the set of warnings and errors raised while analyzing a function.
type Flags uint32

const (
	FlagUnreadableCode Flags = 1 << iota
	FlagDynamicStack
	FlagDynamicCalls
	FlagOtherWarning
	FlagUnrecognizedInstruction
	FlagStackImbalance
	FlagStackUnderrun

	// ErrorMask covers structural violations, as opposed to lowered confidence.
	ErrorMask = FlagStackImbalance | FlagStackUnderrun
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagUnreadableCode, "unreadable_code"},
	{FlagDynamicStack, "dynamic_stack"},
	{FlagDynamicCalls, "dynamic_calls"},
	{FlagOtherWarning, "other_warning"},
	{FlagUnrecognizedInstruction, "unrecognized_instruction"},
	{FlagStackImbalance, "stack_imbalance"},
	{FlagStackUnderrun, "stack_underrun"},
}

// FlagNames returns every flag name in bit order, comma-separated.
func FlagNames() string {
	var all Flags
	for _, n := range flagNames {
		all |= n.flag
	}
	return all.String()
}

// Has reports whether any of the given flags is set.
func (f Flags) Has(g Flags) bool { return f&g != 0 }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, n := range flagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// MarshalText encodes f as a comma-separated list of flag names.
func (f Flags) MarshalText() ([]byte, error) {
	if f == 0 {
		return []byte{}, nil
	}
	return []byte(f.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (f *Flags) UnmarshalText(text []byte) error {
	*f = 0
	s := strings.TrimSpace(string(text))
	if s == "" || s == "none" {
		return nil
	}
outer:
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		for _, n := range flagNames {
			if n.name == part {
				*f |= n.flag
				continue outer
			}
		}
		return fmt.Errorf("stack: unknown flag %q", part)
	}
	return nil
}

// Call is one call site found in the analyzed function.
type Call struct {
	Site     uint64 `json:"site"`
	Target   uint64 `json:"target,omitempty"`
	Indirect bool   `json:"indirect,omitempty"` // target unknown
	Depth    int    `json:"depth"`              // own stack depth at the call
	Tail     bool   `json:"tail,omitempty"`     // branch used as a tail call
}

// Warning records one occurrence of a flag at an instruction.
type Warning struct {
	Addr uint64 `json:"addr"`
	Flag Flags  `json:"flag"`
	Insn string `json:"insn,omitempty"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] 0x%08x: %s", w.Flag, w.Addr, w.Insn)
}

// Usage is the stack usage summary of one function.
type Usage struct {
	MaxDepth int       `json:"max_depth"` // bytes, including pushed arguments
	Flags    Flags     `json:"flags,omitempty"`
	Calls    []Call    `json:"calls,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// AddCall appends a call record.
func (u *Usage) AddCall(c Call) {
	u.Calls = append(u.Calls, c)
}

// AddFlag records flag against insn.
func (u *Usage) AddFlag(flag Flags, insn arm.Instruction) {
	u.Flags |= flag
	w := Warning{Addr: insn.Addr, Flag: flag}
	if insn.Readable() {
		w.Insn = strings.TrimSpace(insn.Op + " " + insn.Args)
	}
	u.Warnings = append(u.Warnings, w)
}

// UpdateMaxDepth raises MaxDepth to depth if it is larger.
func (u *Usage) UpdateMaxDepth(depth int) {
	if depth > u.MaxDepth {
		u.MaxDepth = depth
	}
}

// Callees returns the distinct resolved call targets in first-seen order.
func (u *Usage) Callees() []uint64 {
	seen := make(map[uint64]bool, len(u.Calls))
	var out []uint64
	for _, c := range u.Calls {
		if c.Indirect || seen[c.Target] {
			continue
		}
		seen[c.Target] = true
		out = append(out, c.Target)
	}
	return out
}
