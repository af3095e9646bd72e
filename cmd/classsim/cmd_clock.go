package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/classroom/internal/engine"
)

func newClockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Show or change a world's clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClock(cmd, func(a *app) (engine.Clock, error) {
				return a.sim.ClockOf(cmd.Context(), a.world)
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "scale <factor>",
			Short: "Set how many simulated seconds pass per real second",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				scale, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("scale: %w", err)
				}
				return withClock(cmd, func(a *app) (engine.Clock, error) {
					return a.sim.SetTimeScale(cmd.Context(), a.world, scale)
				})
			},
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Freeze simulated time",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withClock(cmd, func(a *app) (engine.Clock, error) {
					return a.sim.Pause(cmd.Context(), a.world)
				})
			},
		},
		&cobra.Command{
			Use:   "step <days>",
			Short: "Jump simulated time forward",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				days, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("days: %w", err)
				}
				return withClock(cmd, func(a *app) (engine.Clock, error) {
					return a.sim.StepDays(cmd.Context(), a.world, days)
				})
			},
		},
	)
	return cmd
}

func withClock(cmd *cobra.Command, f func(*app) (engine.Clock, error)) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireWorld(cmd); err != nil {
		return err
	}

	c, err := f(a)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd, c)
	}
	state := fmt.Sprintf("x%g", c.TimeScale)
	if c.Paused() {
		state = "paused"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", c.Now(time.Now()).Format("2006-01-02 15:04:05"), state)
	return nil
}
