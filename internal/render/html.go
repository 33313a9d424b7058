package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"armstack/internal/report"
)

// WriteIndexHTML writes a small HTML page summarizing a stack report.
// cfgCount > 0 adds links to per-function CFGs under cfg/.
func WriteIndexHTML(w io.Writer, r *report.Report, title string, hasCallgraphSVG bool, cfgCount int) {
	stats := ComputeStats(r)
	t := NASA

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; font-size: 14px; color: #1A1A1A; background: #F5F5F5; margin: 2em; max-width: 900px; }
h1 { font-size: 18px; font-weight: 600; margin-bottom: 0.5em; }
h2 { font-size: 14px; font-weight: 600; margin-top: 1.5em; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { text-align: left; padding: 3px 12px 3px 0; font-size: 13px; }
th { font-weight: 600; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.kind { display: inline-block; width: 10px; height: 10px; border-radius: 2px; margin-right: 4px; vertical-align: middle; }
a { color: #0B3D91; }
.bar { height: 8px; border-radius: 2px; display: inline-block; vertical-align: middle; }
.fn { font-family: "Courier New", monospace; font-size: 12px; }
</style>
</head>
<body>
`, htmlEscape(title))

	fmt.Fprintf(w, "<h1>%s</h1>\n", htmlEscape(title))

	fmt.Fprintln(w, "<h2>Summary</h2>")
	fmt.Fprintln(w, "<table>")
	if r.Profile != "" {
		fmt.Fprintf(w, "<tr><td>Profile</td><td class=\"num\">%s</td></tr>\n", htmlEscape(r.Profile))
	}
	fmt.Fprintf(w, "<tr><td>Functions</td><td class=\"num\">%d</td></tr>\n", stats.Summary.Functions)
	fmt.Fprintf(w, "<tr><td>With errors</td><td class=\"num\">%d</td></tr>\n", stats.Summary.Errors)
	fmt.Fprintf(w, "<tr><td>With warnings</td><td class=\"num\">%d</td></tr>\n", stats.Summary.Warnings)
	fmt.Fprintf(w, "<tr><td>Max inclusive depth</td><td class=\"num\">%d</td></tr>\n", stats.Summary.MaxDepth)
	fmt.Fprintln(w, "</table>")

	total := stats.Direct + stats.Tail + stats.Indirect
	fmt.Fprintln(w, "<h2>Calls</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th></th><th>Kind</th><th>Count</th><th></th></tr>")
	for _, k := range []struct {
		label, color string
		count        int
	}{
		{"Direct", t.EdgeDirect, stats.Direct},
		{"Tail", t.EdgeTail, stats.Tail},
		{"Indirect", t.EdgeIndirect, stats.Indirect},
	} {
		if k.count == 0 {
			continue
		}
		barW := max(2, k.count*200/total)
		fmt.Fprintf(w, "<tr><td><span class=\"kind\" style=\"background:%s\"></span></td><td>%s</td><td class=\"num\">%d</td><td><span class=\"bar\" style=\"width:%dpx;background:%s\"></span></td></tr>\n",
			k.color, k.label, k.count, barW, k.color)
	}
	fmt.Fprintln(w, "</table>")

	if len(stats.FlagCounts) > 0 {
		fmt.Fprintln(w, "<h2>Warnings</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Flag</th><th>Count</th></tr>")
		flags := make([]string, 0, len(stats.FlagCounts))
		for f := range stats.FlagCounts {
			flags = append(flags, f)
		}
		sort.Strings(flags)
		for _, f := range flags {
			fmt.Fprintf(w, "<tr><td>%s</td><td class=\"num\">%d</td></tr>\n", htmlEscape(f), stats.FlagCounts[f])
		}
		fmt.Fprintln(w, "</table>")
	}

	fmt.Fprintln(w, "<h2>Graphs</h2>")
	fmt.Fprint(w, "<p>")
	var links []string
	if hasCallgraphSVG {
		links = append(links, `<a href="stack.svg">Stack call graph</a>`)
	}
	if cfgCount > 0 {
		links = append(links, `<a href="cfg/">Per-function CFGs</a>`)
	}
	if len(links) == 0 {
		fmt.Fprint(w, `<span style="color:#9E9E9E">Render the DOT files with Graphviz to link SVGs here</span>`)
	} else {
		fmt.Fprint(w, strings.Join(links, " | "))
	}
	fmt.Fprintln(w, "</p>")

	if len(stats.Deepest) > 0 {
		fmt.Fprintln(w, "<h2>Deepest Functions</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Function</th><th>Inclusive</th><th></th><th>Worst path</th></tr>")
		maxDepth := max(1, stats.Deepest[0].Count)
		byName := make(map[string]*report.Function, len(r.Functions))
		for i := range r.Functions {
			byName[r.Functions[i].Name] = &r.Functions[i]
		}
		for _, nc := range stats.Deepest {
			barW := max(2, nc.Count*120/maxDepth)
			name := htmlEscape(nc.Name)
			if cfgCount > 0 {
				name += fmt.Sprintf(` <a href="cfg/%s.svg" style="font-size:11px">[cfg]</a>`, SafeFileName(nc.Name))
			}
			path := ""
			if f := byName[nc.Name]; f != nil {
				path = htmlEscape(strings.Join(f.Path, " → "))
			}
			fmt.Fprintf(w, "<tr><td class=\"fn\">%s</td><td class=\"num\">%d</td><td><span class=\"bar\" style=\"width:%dpx;background:%s\"></span></td><td class=\"fn\">%s</td></tr>\n",
				name, nc.Count, barW, t.DepthBar, path)
		}
		fmt.Fprintln(w, "</table>")
	}

	if len(stats.TopCallees) > 0 {
		fmt.Fprintln(w, "<h2>Top Callees</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Function</th><th>Incoming</th></tr>")
		for _, nc := range stats.TopCallees {
			fmt.Fprintf(w, "<tr><td class=\"fn\">%s</td><td class=\"num\">%d</td></tr>\n", htmlEscape(nc.Name), nc.Count)
		}
		fmt.Fprintln(w, "</table>")
	}

	var flagged []*report.Function
	for i := range r.Functions {
		if r.Functions[i].Usage.Flags != 0 {
			flagged = append(flagged, &r.Functions[i])
		}
	}
	if len(flagged) > 0 {
		fmt.Fprintln(w, "<h2>Flagged Functions</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Address</th><th>Function</th><th>Own</th><th>Flags</th></tr>")
		for _, f := range flagged {
			fmt.Fprintf(w, "<tr><td class=\"fn\">0x%08x</td><td class=\"fn\">%s</td><td class=\"num\">%d</td><td>%s</td></tr>\n",
				f.Addr, htmlEscape(f.Name), f.Usage.MaxDepth, htmlEscape(f.Usage.Flags.String()))
		}
		fmt.Fprintln(w, "</table>")
	}

	fmt.Fprintln(w, "</body></html>")
}
