package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/refinery/render"
)

func newListCommand(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents known to the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := a.discovery().List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if plain {
				_, err = out.Write(render.AgentsText(agents))
				return err
			}
			_, err = fmt.Fprintln(out, render.AgentsTerminal(agents))
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print tab-separated lines")
	return cmd
}
