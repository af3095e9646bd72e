package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newActCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "act",
		Short: "Let every student pick and carry out a coping behavior",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireWorld(cmd); err != nil {
				return err
			}

			at, err := a.sim.Now(cmd.Context(), a.world)
			if err != nil {
				return err
			}
			choices, err := a.sim.Act(cmd.Context(), a.world, at)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, choices)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STUDENT\tBEHAVIOR")
			for _, c := range choices {
				fmt.Fprintf(tw, "%s\t%s\n", c.Agent, c.Behavior)
			}
			return tw.Flush()
		},
	}
}
