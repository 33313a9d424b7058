package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice"
	latrender "github.com/zboralski/lattice/render"

	"armstack/internal/callgraph"
	"armstack/internal/disasm"
	"armstack/internal/render"
	"armstack/internal/report"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Write call graph and per-function CFG DOT files",
		Long: `Analyze the program and write:

  callgraph.dot   plain call graph
  stack.dot       call graph annotated with own and inclusive depth
  worst.dot       the deepest call chain
  cfg/<func>.dot  basic blocks with the stack depth at every instruction
  index.html      summary tables

Render the DOT files with Graphviz, e.g. dot -Tsvg stack.dot > stack.svg.`,
		Args: cobra.NoArgs,
		RunE: runGraph,
	}
	f := cmd.Flags()
	f.StringP("out", "o", "", "output directory (required)")
	f.StringSlice("func", nil, "graph only these functions and their callees (repeatable)")
	f.IntP("workers", "j", 0, "parallel analyses (default from config, then GOMAXPROCS)")
	f.Int("max-nodes", 0, "keep only the N deepest functions in stack.dot (0 = all)")
	f.Bool("plain", false, "render CFGs with the lattice renderer (no depths)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runGraph(cmd *cobra.Command, _ []string) error {
	outDir := mustString(cmd, "out")
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	only, _ := cmd.Flags().GetStringSlice("func")
	an := newFnAnalyzer(s, false, true)
	r, err := report.Build(cmd.Context(), an, s.table, report.Options{
		Workers: s.cfg.Analysis.Workers,
		Only:    only,
		Limit:   s.cfg.Analysis.MaxFunctions,
		Profile: s.profile.Name,
	})
	if err != nil {
		return err
	}

	cfgDir := filepath.Join(outDir, "cfg")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("mkdir cfg: %w", err)
	}
	title := filepath.Base(s.input)

	cg := callgraph.BuildCallGraph(r)
	if err := writeText(filepath.Join(outDir, "callgraph.dot"), latrender.DOT(cg, title)); err != nil {
		return err
	}
	maxNodes, _ := cmd.Flags().GetInt("max-nodes")
	if err := writeText(filepath.Join(outDir, "stack.dot"), render.StackDOT(r, title, render.NASA, maxNodes)); err != nil {
		return err
	}
	if deepest := deepestFunction(r); deepest != nil {
		worst := callgraph.WorstPathGraph(deepest)
		label := fmt.Sprintf("%s: %d bytes", deepest.Name, deepest.Inclusive)
		if err := writeText(filepath.Join(outDir, "worst.dot"), latrender.DOT(worst, label)); err != nil {
			return err
		}
	}

	plain, _ := cmd.Flags().GetBool("plain")
	lookup := s.table.SymbolLookup()
	cfgCount := 0
	for i := range r.Functions {
		f := &r.Functions[i]
		insts := s.code.Range(f.Addr, f.Size)
		if len(insts) == 0 {
			continue
		}
		info := callgraph.FuncInfo{
			Name:      f.Name,
			Insts:     insts,
			CallEdges: disasm.ExtractCallEdges(insts, lookup, s.profile),
			Depths:    an.Depths(f.Addr),
		}
		var dot string
		if plain {
			lcfg, _ := callgraph.BuildFuncCFG(info, s.profile)
			dot = latrender.DOTCFG(&lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}, f.Name)
		} else {
			dot = render.CFGDOT(disasm.BuildCFG(f.Name, insts, s.profile), info.Depths, f.Usage.Warnings, render.NASA)
		}
		if err := writeText(filepath.Join(cfgDir, render.SafeFileName(f.Name)+".dot"), dot); err != nil {
			return err
		}
		cfgCount++
	}

	idx, err := os.Create(filepath.Join(outDir, "index.html"))
	if err != nil {
		return fmt.Errorf("create index.html: %w", err)
	}
	render.WriteIndexHTML(idx, r, title, false, cfgCount)
	if err := idx.Close(); err != nil {
		return fmt.Errorf("write index.html: %w", err)
	}

	s.log.Info("wrote graphs", "dir", outDir, "nodes", len(cg.Nodes), "edges", len(cg.Edges), "cfgs", cfgCount)
	return nil
}

func deepestFunction(r *report.Report) *report.Function {
	var best *report.Function
	for i := range r.Functions {
		if best == nil || r.Functions[i].Inclusive > best.Inclusive {
			best = &r.Functions[i]
		}
	}
	return best
}

func writeText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
