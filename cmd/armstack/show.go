package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"armstack/internal/output"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <report>",
		Short: "Re-render a saved JSON or CBOR report",
		Example: `
armstack analyze --listing firmware.lst --format cbor --out fw.cbor
armstack show fw.cbor
armstack show fw.cbor --format json
  `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(mustString(cmd, "format"))
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			doc, err := output.ReadDocument(data)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), doc.Report, format)
		},
	}
	cmd.Flags().StringP("format", "f", "text", "output format: text, json, cbor, dot")
	return cmd
}
