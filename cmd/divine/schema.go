package main

import (
	"fmt"

	"github.com/ast-ral/divine/application/schema"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [document]",
		Short:     "Print JSON schemas of divine's documents",
		Long:      "Print the JSON schema of one document, or of every document when none is named.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: schema.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = schema.Names()
			}
			for _, name := range names {
				raw, err := schema.ForDocument(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", name, raw)
			}
			return nil
		},
	}
}
