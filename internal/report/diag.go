package report

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagNoSize        DiagKind = "no_size"        // symbol without size; only the entry is analyzed
	DiagUnknownTarget DiagKind = "unknown_target" // call target outside the function table
	DiagRecursion     DiagKind = "recursion"      // call closes a cycle
	DiagLimited       DiagKind = "limited"        // callees dropped by Options.Limit
)

// Diag records a non-fatal issue found while building a report.
type Diag struct {
	Addr uint64   `json:"addr"`
	Kind DiagKind `json:"kind"`
	Msg  string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Addr, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(addr uint64, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(addr uint64, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }
