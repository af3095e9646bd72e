package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Advance a world by simulated hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireWorld(cmd); err != nil {
				return err
			}

			hours := a.cfg.HoursPerTick
			if cmd.Flags().Changed("hours") {
				hours, _ = cmd.Flags().GetFloat64("hours")
			}
			count, _ := cmd.Flags().GetInt("count")
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}

			ctx := cmd.Context()
			at, err := a.sim.Now(ctx, a.world)
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				res, err := a.sim.Tick(ctx, a.world, hours, at)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					if err := printJSON(cmd, res); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %d students  mean risk %.3f\n", res.At.Format("2006-01-02 15:04"), res.Agents, res.MeanRisk)
				}
				at = at.Add(hoursDuration(hours))
			}
			return nil
		},
	}
	cmd.Flags().Float64("hours", 0, "Simulated hours per tick (default CLASSSIM_HOURS_PER_TICK)")
	cmd.Flags().Int("count", 1, "Number of ticks to run")
	return cmd
}
