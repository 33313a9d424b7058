package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"armstack/internal/output"
	"armstack/internal/report"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report per-function and worst-case stack usage",
		Long: `Analyze every function (or the ones named with --func and everything they
call) and print own depth, inclusive depth along the call graph, and any
warnings raised while walking the code.`,
		Example: `
armstack analyze --listing firmware.lst
armstack analyze --elf firmware.elf --func main --format json --out report.json
armstack analyze --listing firmware.lst --strict
  `,
		Args: cobra.NoArgs,
		RunE: runAnalyze,
	}
	f := cmd.Flags()
	f.StringSlice("func", nil, "analyze only these functions and their callees (repeatable)")
	f.StringP("format", "f", "text", "output format: text, json, cbor, dot")
	f.StringP("out", "o", "", "write the report to this file instead of stdout")
	f.IntP("workers", "j", 0, "parallel analyses (default from config, then GOMAXPROCS)")
	f.Bool("trace", false, "log every instruction at debug level")
	f.Bool("strict", false, "exit with status 2 when any function has stack errors")
	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	trace, _ := cmd.Flags().GetBool("trace")
	only, _ := cmd.Flags().GetStringSlice("func")
	r, err := report.Build(cmd.Context(), newFnAnalyzer(s, trace, false), s.table, report.Options{
		Workers: s.cfg.Analysis.Workers,
		Only:    only,
		Limit:   s.cfg.Analysis.MaxFunctions,
		Profile: s.profile.Name,
	})
	if err != nil {
		return err
	}
	for _, d := range r.Diagnostics {
		s.log.Debug("diagnostic", "kind", d.Kind, "addr", fmt.Sprintf("0x%x", d.Addr), "msg", d.Msg)
	}

	if out := mustString(cmd, "out"); out != "" {
		if err := output.WriteFile(out, r, format); err != nil {
			return err
		}
		s.log.Info("wrote", "path", out, "format", format)
	} else if err := output.Write(cmd.OutOrStdout(), r, format); err != nil {
		return err
	}

	sum := r.Summary()
	s.log.Info("done", "functions", sum.Functions, "errors", sum.Errors, "warnings", sum.Warnings, "max_depth", sum.MaxDepth)
	if s.cfg.Analysis.Strict && sum.Errors > 0 {
		return fmt.Errorf("%w: %d functions", errStackErrors, sum.Errors)
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
