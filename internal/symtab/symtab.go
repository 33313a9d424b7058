// Package symtab indexes function symbols by address and name and decides
// which functions never return.
package symtab

import (
	"sort"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"armstack/internal/disasm"
	"armstack/internal/stack"
)

// DefaultNoReturn lists functions that never return to their caller.
var DefaultNoReturn = []string{
	"abort",
	"exit",
	"_exit",
	"_Exit",
	"__assert_func",
	"__stack_chk_fail",
	"__cxa_throw",
	"__cxa_rethrow",
	"__cxa_pure_virtual",
	"std::terminate()",
	"longjmp",
}

// Symbol is one function in the table.
type Symbol struct {
	Name      string `json:"name"`
	Demangled string `json:"demangled,omitempty"`
	Addr      uint64 `json:"addr"`
	Size      uint64 `json:"size"`
	NoReturn  bool   `json:"noreturn,omitempty"`
}

// Display returns the demangled name when there is one.
func (s Symbol) Display() string {
	if s.Demangled != "" {
		return s.Demangled
	}
	return s.Name
}

// Function returns s as a unit of stack analysis.
func (s Symbol) Function() stack.Function {
	return stack.Function{Name: s.Display(), Addr: s.Addr, Size: s.Size}
}

// Table is an immutable, address-sorted function table. It is safe for
// concurrent use.
type Table struct {
	syms   []Symbol
	byAddr map[uint64]int
	byName map[string]int
}

type options struct {
	noReturn []string
}

// Option configures New.
type Option func(*options)

// WithNoReturn adds names to DefaultNoReturn.
func WithNoReturn(names ...string) Option {
	return func(o *options) { o.noReturn = append(o.noReturn, names...) }
}

// New builds a table from function boundaries. Duplicate addresses keep the
// first name.
func New(funcs []disasm.Func, opts ...Option) *Table {
	o := options{noReturn: append([]string(nil), DefaultNoReturn...)}
	for _, fn := range opts {
		fn(&o)
	}
	noReturn := make(map[string]bool, len(o.noReturn))
	for _, n := range o.noReturn {
		noReturn[n] = true
	}

	t := &Table{
		byAddr: make(map[uint64]int, len(funcs)),
		byName: make(map[string]int, len(funcs)),
	}
	sorted := append([]disasm.Func(nil), funcs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Addr < sorted[j].Addr })
	for _, fn := range sorted {
		if _, dup := t.byAddr[fn.Addr]; dup {
			continue
		}
		s := Symbol{Name: fn.Name, Addr: fn.Addr, Size: fn.Size}
		if d := demangle.Filter(fn.Name, demangle.NoClones); d != fn.Name {
			s.Demangled = d
		}
		s.NoReturn = noReturn[s.Name] || noReturn[s.Demangled] || noReturn[baseName(s.Demangled)]
		t.byAddr[s.Addr] = len(t.syms)
		t.syms = append(t.syms, s)
	}
	for i, s := range t.syms {
		if _, ok := t.byName[s.Name]; !ok {
			t.byName[s.Name] = i
		}
		if s.Demangled != "" {
			if _, ok := t.byName[s.Demangled]; !ok {
				t.byName[s.Demangled] = i
			}
		}
	}
	return t
}

// baseName strips the parameter list from a demangled name.
func baseName(demangled string) string {
	if i := strings.IndexByte(demangled, '('); i > 0 {
		return demangled[:i]
	}
	return ""
}

// Len returns the number of functions.
func (t *Table) Len() int { return len(t.syms) }

// Symbols returns every function in address order.
func (t *Table) Symbols() []Symbol { return t.syms }

// Lookup returns the function starting at addr.
func (t *Table) Lookup(addr uint64) (Symbol, bool) {
	i, ok := t.byAddr[addr]
	if !ok {
		return Symbol{}, false
	}
	return t.syms[i], true
}

// ByName finds a function by raw or demangled name.
func (t *Table) ByName(name string) (Symbol, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Symbol{}, false
	}
	return t.syms[i], true
}

// Containing returns the function whose range covers addr.
func (t *Table) Containing(addr uint64) (Symbol, bool) {
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Addr > addr })
	if i == 0 {
		return Symbol{}, false
	}
	s := t.syms[i-1]
	if addr == s.Addr || addr-s.Addr < s.Size {
		return s, true
	}
	return Symbol{}, false
}

// IsNoReturn reports whether the function at addr never returns.
func (t *Table) IsNoReturn(addr uint64) bool {
	s, ok := t.Lookup(addr)
	return ok && s.NoReturn
}

// SymbolLookup adapts the table to disasm's resolver signature.
func (t *Table) SymbolLookup() disasm.SymbolLookup {
	return func(addr uint64) (string, bool) {
		s, ok := t.Lookup(addr)
		if !ok {
			return "", false
		}
		return s.Display(), true
	}
}

var _ stack.NoReturn = (*Table)(nil)
