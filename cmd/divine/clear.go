package main

import (
	"fmt"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.service.Handle(cmd.Context(), a.caller, entities.Request{Clear: true})
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("caller %q may not clear the artifact", a.caller.CallerID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Msg)
			return nil
		},
	}
}
