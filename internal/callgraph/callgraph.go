// Package callgraph converts analysis results into lattice graphs.
package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"armstack/internal/report"
)

// BuildCallGraph constructs a lattice.Graph from a report. Each analyzed
// function becomes a node and each direct call or tail call an edge.
// Targets outside the report are named by address. Indirect calls are
// skipped.
func BuildCallGraph(r *report.Report) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range r.Functions {
		g.Nodes = append(g.Nodes, f.Name)
		for _, c := range f.Usage.Calls {
			if c.Indirect {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: calleeName(r, c.Target),
			})
		}
	}
	g.Dedup()
	return g
}

// WorstPathGraph is the subgraph along the worst-case path of fn.
func WorstPathGraph(fn *report.Function) *lattice.Graph {
	g := &lattice.Graph{}
	for i, name := range fn.Path {
		g.Nodes = append(g.Nodes, name)
		if i > 0 {
			g.Edges = append(g.Edges, lattice.Edge{Caller: fn.Path[i-1], Callee: name})
		}
	}
	g.Dedup()
	return g
}

func calleeName(r *report.Report, addr uint64) string {
	if f, ok := r.Lookup(addr); ok {
		return f.Name
	}
	return fmt.Sprintf("0x%x", addr)
}
