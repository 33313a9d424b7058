package report

import "errors"

// ErrUnknownFunction is returned when a requested function is not in the table.
var ErrUnknownFunction = errors.New("report: unknown function")

const (
	unvisited = iota
	visiting
	visited
)

// resolve computes Inclusive, Path, Recursive and Unknown for every
// function: the worst case over resolved calls of call depth plus the
// callee's own inclusive depth. Cycles are reported to diags.
func (r *Report) resolve(diags *Diags) {
	state := make([]int, len(r.Functions))
	var visit func(i int)
	visit = func(i int) {
		state[i] = visiting
		f := &r.Functions[i]
		f.Inclusive = f.Usage.MaxDepth
		f.Path = []string{f.Name}

		for _, c := range f.Usage.Calls {
			if c.Indirect {
				f.Unknown = true
				continue
			}
			j, ok := r.index(c.Target)
			if !ok {
				f.Unknown = true
				continue
			}
			switch state[j] {
			case visiting:
				f.Recursive = true
				f.Unknown = true
				diags.Addf(c.Site, DiagRecursion, "%s calls %s", f.Name, r.Functions[j].Name)
				continue
			case unvisited:
				visit(j)
			}
			callee := &r.Functions[j]
			f.Unknown = f.Unknown || callee.Unknown
			f.Recursive = f.Recursive || callee.Recursive
			if d := c.Depth + callee.Inclusive; d > f.Inclusive {
				f.Inclusive = d
				f.Path = append([]string{f.Name}, callee.Path...)
			}
		}
		state[i] = visited
	}
	for i := range r.Functions {
		if state[i] == unvisited {
			visit(i)
		}
	}
}

func (r *Report) index(addr uint64) (int, bool) {
	lo, hi := 0, len(r.Functions)
	for lo < hi {
		mid := (lo + hi) / 2
		if r.Functions[mid].Addr < addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(r.Functions) && r.Functions[lo].Addr == addr {
		return lo, true
	}
	return 0, false
}
