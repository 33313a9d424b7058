package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"armstack/internal/disasm"
	"armstack/internal/stack"
)

func newDisasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Print a function's instructions with the stack depth at each",
		Example: `
armstack disasm --listing firmware.lst --func main
armstack disasm --listing firmware.lst --func main --effects --trace
  `,
		Args: cobra.NoArgs,
		RunE: runDisasm,
	}
	f := cmd.Flags()
	f.String("func", "", "function to print (required)")
	f.Bool("effects", false, "annotate stack-relevant instructions with their effect")
	f.Bool("trace", false, "log every instruction at debug level")
	_ = cmd.MarkFlagRequired("func")
	return cmd
}

func runDisasm(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	sym, err := s.lookupFunc(mustString(cmd, "func"))
	if err != nil {
		return err
	}
	trace, _ := cmd.Flags().GetBool("trace")
	an := newFnAnalyzer(s, trace, true)
	usage := an.Analyze(sym.Function())
	insts := s.code.Range(sym.Addr, sym.Size)

	lookup := s.table.SymbolLookup()
	annotators := []disasm.Annotator{
		disasm.DepthAnnotator(an.Depths(sym.Addr)),
		disasm.CallAnnotator(lookup, s.profile),
	}
	if effects, _ := cmd.Flags().GetBool("effects"); effects {
		annotators = append(annotators, disasm.EffectAnnotator(s.profile))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "; %s  0x%08x  size=%d  max_depth=%d  flags=%s\n",
		sym.Display(), sym.Addr, sym.Size, usage.MaxDepth, usage.Flags)
	fmt.Fprint(w, disasm.Format(insts, nil, disasm.Chain(annotators...)))
	if len(usage.Warnings) > 0 {
		fmt.Fprintln(w, ";")
		for _, warn := range usage.Warnings {
			fmt.Fprintf(w, "; %s\n", warn)
		}
	}
	if calls := describeCalls(usage, s); calls != "" {
		fmt.Fprintf(w, "; calls: %s\n", calls)
	}
	return nil
}

func describeCalls(u stack.Usage, s *session) string {
	var parts []string
	for _, c := range u.Calls {
		name := "*indirect"
		if !c.Indirect {
			name = fmt.Sprintf("0x%x", c.Target)
			if sym, ok := s.table.Lookup(c.Target); ok {
				name = sym.Display()
			}
		}
		if c.Tail {
			name += " (tail)"
		}
		parts = append(parts, fmt.Sprintf("%s@%d", name, c.Depth))
	}
	return strings.Join(parts, ", ")
}
