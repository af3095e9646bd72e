package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/classroom/internal/engine"
)

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Rebuild the daily rollups",
		Long: `aggregate recomputes per-student daily averages and event counts over
the trailing window (CLASSSIM_AGGREGATE_WINDOW_DAYS) ending at the world
clock's now. Running it twice yields the same rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			agg := a.aggregator()
			var results []engine.AggregateResult
			if all, _ := cmd.Flags().GetBool("all"); all {
				if results, err = agg.RunAll(cmd.Context(), a.sim.Now); err != nil {
					return err
				}
			} else {
				if err := a.requireWorld(cmd); err != nil {
					return err
				}
				now, err := a.sim.Now(cmd.Context(), a.world)
				if err != nil {
					return err
				}
				res, err := agg.Run(cmd.Context(), a.world, now)
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, results)
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows from %d snapshots and %d events\n", r.World, r.Rows, r.Snapshots, r.Events)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Aggregate every world")
	return cmd
}
