// Package report analyzes every function of a program and folds the
// per-function results into worst-case stack totals along the call graph.
package report

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"armstack/internal/stack"
	"armstack/internal/symtab"
)

// Function is the result for one function.
type Function struct {
	Name      string      `json:"name"`
	Raw       string      `json:"raw_name,omitempty"` // mangled symbol when it differs
	Addr      uint64      `json:"addr"`
	Size      uint64      `json:"size"`
	NoReturn  bool        `json:"noreturn,omitempty"`
	Usage     stack.Usage `json:"usage"`
	Inclusive int         `json:"inclusive_depth"` // worst case including callees
	Recursive bool        `json:"recursive,omitempty"`
	Unknown   bool        `json:"unknown_callees,omitempty"` // indirect calls or callees outside the table
	Path      []string    `json:"worst_path,omitempty"`      // call chain realizing Inclusive
}

// Report is the analysis of a whole program, sorted by address.
type Report struct {
	Profile     string     `json:"profile"`
	Functions   []Function `json:"functions"`
	Diagnostics []Diag     `json:"diagnostics,omitempty"`
}

// Summary counts results across the report.
type Summary struct {
	Functions int `json:"functions"`
	Errors    int `json:"errors"`   // functions with stack_imbalance or stack_underrun
	Warnings  int `json:"warnings"` // functions with any other flag
	MaxDepth  int `json:"max_inclusive_depth"`
}

// Analyzer is the per-function analysis the report runs.
type Analyzer interface {
	Analyze(fn stack.Function) stack.Usage
}

// Options controls Build.
type Options struct {
	Workers int      // parallel analyses; 0 means GOMAXPROCS
	Only    []string // restrict to these names (raw or demangled)
	Limit   int      // analyze at most this many functions; 0 means all
	Profile string   // recorded in the report
}

// Build analyzes the functions of table and computes inclusive depths.
// Cancellation is checked between functions.
func Build(ctx context.Context, a Analyzer, table *symtab.Table, opts Options) (*Report, error) {
	syms, err := selectSymbols(table, opts)
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Analyze the selection, then every callee it reaches that the table
	// knows about, so inclusive depths cover whole call chains.
	var (
		results []Function
		diags   Diags
	)
	done := make(map[uint64]bool)
	for _, s := range syms {
		done[s.Addr] = true
	}
	for len(syms) > 0 {
		batch, err := analyzeAll(ctx, a, syms, workers)
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)

		syms = nil
		for _, f := range batch {
			if f.Size == 0 {
				diags.Addf(f.Addr, DiagNoSize, "%s has no size", f.Name)
			}
			for _, target := range f.Usage.Callees() {
				if done[target] {
					continue
				}
				done[target] = true
				if s, ok := table.Lookup(target); ok {
					syms = append(syms, s)
				} else {
					diags.Addf(target, DiagUnknownTarget, "called from %s", f.Name)
				}
			}
		}
		if opts.Limit > 0 && len(results)+len(syms) > opts.Limit {
			keep := max(0, opts.Limit-len(results))
			diags.Addf(0, DiagLimited, "%d callees not analyzed", len(syms)-keep)
			syms = syms[:keep]
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Addr < results[j].Addr })

	r := &Report{Profile: opts.Profile, Functions: results}
	r.resolve(&diags)
	r.Diagnostics = diags.Items()
	return r, nil
}

func analyzeAll(ctx context.Context, a Analyzer, syms []symtab.Symbol, workers int) ([]Function, error) {
	results := make([]Function, len(syms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range syms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn := s.Function()
			results[i] = Function{
				Name:     fn.Name,
				Addr:     s.Addr,
				Size:     s.Size,
				NoReturn: s.NoReturn,
				Usage:    a.Analyze(fn),
			}
			if s.Demangled != "" {
				results[i].Raw = s.Name
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return results, nil
}

func selectSymbols(table *symtab.Table, opts Options) ([]symtab.Symbol, error) {
	var syms []symtab.Symbol
	if len(opts.Only) > 0 {
		seen := make(map[uint64]bool)
		for _, name := range opts.Only {
			s, ok := table.ByName(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
			}
			if !seen[s.Addr] {
				seen[s.Addr] = true
				syms = append(syms, s)
			}
		}
		sort.Slice(syms, func(i, j int) bool { return syms[i].Addr < syms[j].Addr })
	} else {
		syms = append(syms, table.Symbols()...)
	}
	if opts.Limit > 0 && len(syms) > opts.Limit {
		syms = syms[:opts.Limit]
	}
	return syms, nil
}

// Lookup returns the result for the function at addr.
func (r *Report) Lookup(addr uint64) (*Function, bool) {
	i, ok := r.index(addr)
	if !ok {
		return nil, false
	}
	return &r.Functions[i], true
}

// Summary returns totals over the report.
func (r *Report) Summary() Summary {
	s := Summary{Functions: len(r.Functions)}
	for _, f := range r.Functions {
		switch {
		case f.Usage.Flags.Has(stack.ErrorMask):
			s.Errors++
		case f.Usage.Flags != 0:
			s.Warnings++
		}
		s.MaxDepth = max(s.MaxDepth, f.Inclusive)
	}
	return s
}
