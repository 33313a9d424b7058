package render

import (
	"fmt"
	"strings"

	"armstack/internal/disasm"
	"armstack/internal/stack"
)

// CFGDOT renders a per-function basic-block CFG as DOT. Each instruction
// line carries the stack depth after it executes ("?" when the walk never
// reached it). Lines with warnings are marked and their
// block filled with the warning color.
func CFGDOT(cfg disasm.FuncCFG, depths map[uint64]int, warnings []stack.Warning, t Theme) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}
	warnAt := make(map[uint64]stack.Flags, len(warnings))
	for _, w := range warnings {
		warnAt[w.Addr] |= w.Flag
	}

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  nodesep=0.3;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Courier,monospace\", fontsize=8, fontcolor=%q, margin=\"0.08,0.04\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.7, arrowsize=0.5, arrowhead=vee];\n")
	fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
	fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"9\" color=\"%s\">%s</font>>;\n",
		t.TextColor, dotEscape(cfg.Name))
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		id := fmt.Sprintf("bb%d", blk.ID)

		var lines []string
		warned := false
		end := min(blk.End, len(cfg.Insts))
		for i := blk.Start; i < end; i++ {
			inst := cfg.Insts[i]
			depth := "?"
			if d, ok := depths[inst.Addr]; ok {
				depth = fmt.Sprint(d)
			}
			text := inst.Text
			if text == "" {
				text = strings.TrimSpace(inst.Mnemonic + " " + inst.Operands)
			}
			line := fmt.Sprintf("0x%x [%s]: %s", inst.Addr, depth, text)
			if f, ok := warnAt[inst.Addr]; ok {
				line += "  ! " + f.String()
				warned = true
			}
			lines = append(lines, dotEscape(line))
		}
		if len(lines) > 12 {
			kept := append(lines[:5:5], fmt.Sprintf("... (%d more)", len(lines)-10))
			lines = append(kept, lines[len(lines)-5:]...)
		}

		label := strings.Join(lines, "<br align=\"left\"/>")
		label += "<br align=\"left\"/>"

		attrs := ""
		if blk.IsEntry {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EdgeWorst)
		}
		switch {
		case warned:
			attrs += fmt.Sprintf(", fillcolor=%q", t.WarnFill)
		case blk.IsTerm:
			attrs += fmt.Sprintf(", fillcolor=%q", t.StubFill)
		}
		fmt.Fprintf(&b, "  %s [label=<%s>%s];\n", id, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		from := fmt.Sprintf("bb%d", blk.ID)
		for _, s := range blk.Succs {
			to := fmt.Sprintf("bb%d", s.BlockID)
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
					from, to, t.EdgeTail, t.EdgeTail)
			case "F":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
					from, to, t.EdgeIndirect, t.EdgeIndirect)
			default:
				fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", from, to, t.EdgeDirect)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}
