package main

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"armstack/internal/config"
	"armstack/internal/output"
	"armstack/internal/stack"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [config|report]",
		Short:     "Print the JSON schema of the configuration or the report",
		Long:      "Print the JSON schema of armstack.toml (config, the default) or of the JSON report.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "report"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "config"
			if len(args) == 1 {
				which = args[0]
			}
			schema := reflectSchema(which)
			bts, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bts))
			return nil
		},
	}
}

var flagsType = reflect.TypeOf(stack.Flags(0))

func reflectSchema(which string) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == flagsType {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "comma-separated flag names: " + stack.FlagNames(),
				}
			}
			return nil
		},
	}
	if which == "report" {
		return reflector.Reflect(&output.Document{})
	}
	return reflector.Reflect(&config.Config{})
}
