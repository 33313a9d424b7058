package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "armstack",
		Short: "Static stack usage analysis for ARM machine code",
		Long: `armstack walks every function of an ARM program, tracks the stack pointer
through pushes, pops and adjustments, and reports the deepest stack each
function can reach on its own and together with everything it calls.

Input is either an ELF image (ARM-state code is decoded directly) or the
text of objdump -d.`,
		Example: `
# Analyze a listing
arm-none-eabi-objdump -d firmware.elf > firmware.lst
armstack analyze --listing firmware.lst

# Worst case for one entry point, as JSON
armstack analyze --listing firmware.lst --func main --format json

# Graphs and an HTML index
armstack graph --listing firmware.lst --out out/
  `,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("elf", "", "ELF image to analyze")
	pf.String("listing", "", "objdump -d listing to analyze")
	pf.String("config", "", "configuration file (default: armstack.toml found upward from the input)")
	pf.String("profile", "", "frame pointer convention: thumb (r7) or arm (fp)")
	pf.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newAnalyzeCmd(),
		newGraphCmd(),
		newDisasmCmd(),
		newShowCmd(),
		newSchemaCmd(),
	)
	return root
}
