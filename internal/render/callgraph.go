package render

import (
	"fmt"
	"sort"
	"strings"

	"armstack/internal/report"
	"armstack/internal/stack"
)

// Call kinds used for edge styling.
const (
	KindDirect   = "direct"
	KindTail     = "tail"
	KindIndirect = "indirect"
)

// indirectNode is the shared target of calls through registers.
const indirectNode = "(indirect)"

// callKind returns the edge kind for a call.
func callKind(c stack.Call) string {
	switch {
	case c.Indirect:
		return KindIndirect
	case c.Tail:
		return KindTail
	default:
		return KindDirect
	}
}

// edgeColor returns the DOT color for an edge kind.
func edgeColor(kind string, t Theme) string {
	switch kind {
	case KindTail:
		return t.EdgeTail
	case KindIndirect:
		return t.EdgeIndirect
	default:
		return t.EdgeDirect
	}
}

// edgeStyle returns the DOT style for an edge kind.
func edgeStyle(kind string) string {
	switch kind {
	case KindTail:
		return "dashed"
	case KindIndirect:
		return "dotted"
	default:
		return "solid"
	}
}

// nodeFill picks a fill color from a function's flags.
func nodeFill(f *report.Function, t Theme) string {
	switch {
	case f.Usage.Flags.Has(stack.ErrorMask):
		return t.ErrorFill
	case f.Usage.Flags != 0:
		return t.WarnFill
	case f.NoReturn:
		return t.StubFill
	default:
		return t.NodeFill
	}
}

type edgeKey struct {
	from, to, kind string
}

// StackDOT renders the call graph of a report as DOT. Each node shows the
// function's own and inclusive depth; the deepest call chain in the report
// is drawn in the worst-path color. maxNodes keeps only the deepest
// functions (0 = all).
func StackDOT(r *report.Report, title string, t Theme, maxNodes int) string {
	rendered := selectDeepest(r, maxNodes)

	worst := make(map[[2]string]bool)
	if deepest := deepestFunction(r); deepest != nil {
		for i := 1; i < len(deepest.Path); i++ {
			worst[[2]string{deepest.Path[i-1], deepest.Path[i]}] = true
		}
	}

	// Deduplicate edges in first-seen order.
	var order []edgeKey
	counts := make(map[edgeKey]int)
	external := make(map[string]bool)
	var externalOrder []string
	for i := range r.Functions {
		f := &r.Functions[i]
		if !rendered[f.Name] {
			continue
		}
		for _, c := range f.Usage.Calls {
			to := indirectNode
			if !c.Indirect {
				if callee, ok := r.Lookup(c.Target); ok {
					to = callee.Name
				} else {
					to = fmt.Sprintf("0x%x", c.Target)
				}
			}
			if !rendered[to] && !external[to] {
				if _, known := r.Lookup(c.Target); known && !c.Indirect {
					continue // analyzed but filtered out
				}
				external[to] = true
				externalOrder = append(externalOrder, to)
			}
			k := edgeKey{f.Name, to, callKind(c)}
			if counts[k] == 0 {
				order = append(order, k)
			}
			counts[k]++
		}
	}

	var b strings.Builder
	b.WriteString("digraph stack {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	for i := range r.Functions {
		f := &r.Functions[i]
		if !rendered[f.Name] {
			continue
		}
		label := fmt.Sprintf("%s<br/><font point-size=\"7\">own %d / incl %d</font>",
			dotEscape(truncLabel(f.Name, 60)), f.Usage.MaxDepth, f.Inclusive)
		if f.Usage.Flags != 0 {
			label += fmt.Sprintf("<br/><font point-size=\"7\">%s</font>", dotEscape(f.Usage.Flags.String()))
		}
		fmt.Fprintf(&b, "  %s [label=<%s>, fillcolor=%q];\n", dotID(f.Name), label, nodeFill(f, t))
	}
	b.WriteByte('\n')

	for _, name := range externalOrder {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), truncLabel(name, 50), t.ExternalText)
	}
	b.WriteByte('\n')

	for _, k := range order {
		color := edgeColor(k.kind, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.kind))
		if worst[[2]string{k.from, k.to}] {
			attrs = fmt.Sprintf("color=%q, style=%q, penwidth=1.5", t.EdgeWorst, edgeStyle(k.kind))
		}
		if n := counts[k]; n > 1 {
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, n)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// selectDeepest returns the names of the maxNodes functions with the
// largest inclusive depth, or all functions when maxNodes is 0.
func selectDeepest(r *report.Report, maxNodes int) map[string]bool {
	idx := make([]int, len(r.Functions))
	for i := range idx {
		idx[i] = i
	}
	if maxNodes > 0 && len(idx) > maxNodes {
		sort.SliceStable(idx, func(a, b int) bool {
			return r.Functions[idx[a]].Inclusive > r.Functions[idx[b]].Inclusive
		})
		idx = idx[:maxNodes]
	}
	out := make(map[string]bool, len(idx))
	for _, i := range idx {
		out[r.Functions[i].Name] = true
	}
	return out
}

// deepestFunction returns the function with the largest inclusive depth,
// the lowest address winning ties.
func deepestFunction(r *report.Report) *report.Function {
	var best *report.Function
	for i := range r.Functions {
		f := &r.Functions[i]
		if best == nil || f.Inclusive > best.Inclusive {
			best = f
		}
	}
	return best
}

// Stats summarizes a report for the HTML index.
type Stats struct {
	Summary    report.Summary
	Direct     int
	Tail       int
	Indirect   int
	FlagCounts map[string]int
	Deepest    []NameCount // sorted desc by inclusive depth
	TopCallees []NameCount // sorted desc by incoming calls
}

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string
	Count int
}

// ComputeStats computes summary statistics from a report.
func ComputeStats(r *report.Report) Stats {
	stats := Stats{
		Summary:    r.Summary(),
		FlagCounts: make(map[string]int),
	}
	depth := make(map[string]int)
	calleeCount := make(map[string]int)
	for _, f := range r.Functions {
		depth[f.Name] = f.Inclusive
		for _, c := range f.Usage.Calls {
			switch callKind(c) {
			case KindIndirect:
				stats.Indirect++
				continue
			case KindTail:
				stats.Tail++
			default:
				stats.Direct++
			}
			if callee, ok := r.Lookup(c.Target); ok {
				calleeCount[callee.Name]++
			}
		}
		for _, w := range f.Usage.Warnings {
			stats.FlagCounts[w.Flag.String()]++
		}
	}
	stats.Deepest = topNMap(depth, 20)
	stats.TopCallees = topNMap(calleeCount, 15)
	return stats
}

// topNMap returns the top N entries from a map, sorted descending, names
// breaking ties.
func topNMap(m map[string]int, n int) []NameCount {
	entries := make([]NameCount, 0, len(m))
	for name, count := range m {
		entries = append(entries, NameCount{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
