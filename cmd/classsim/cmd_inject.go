package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
)

func newInjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject <kind>",
		Short: "Record a life event and appraise it",
		Long: `inject logs an event and appraises it for the students it targets.

Known kinds: quiz_low_score, quiz_high_score, teacher_praise,
peer_conflict, peer_support, parent_pressure, extra_homework, mock_exam.
Other kinds are logged but change nothing.`,
		Example: `  classsim inject quiz_low_score --actor s03 --intensity 0.8
  classsim inject mock_exam --class`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireWorld(cmd); err != nil {
				return err
			}

			actors, _ := cmd.Flags().GetStringSlice("actor")
			class, _ := cmd.Flags().GetBool("class")
			intensity, _ := cmd.Flags().GetFloat64("intensity")
			location, _ := cmd.Flags().GetString("location")
			hours, _ := cmd.Flags().GetFloat64("duration")

			at, err := a.sim.Now(cmd.Context(), a.world)
			if err != nil {
				return err
			}
			e := engine.Event{
				World:     a.world,
				Kind:      agents.Kind(args[0]),
				Time:      at,
				Target:    engine.TargetAgent,
				Intensity: intensity,
				Location:  location,
			}
			if class {
				e.Target = engine.TargetClass
			}
			for _, id := range actors {
				e.Actors = append(e.Actors, agents.AgentID(strings.TrimSpace(id)))
			}
			if hours > 0 {
				e.End = at.Add(hoursDuration(hours))
			}

			res, err := a.sim.InjectEvent(cmd.Context(), e)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, res)
			}
			if !slices.Contains(agents.KnownKinds(), res.Event.Kind) {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %q is not a known kind; logged without effect\n", res.Event.Kind)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %s applied to %d students", res.Event.ID, len(res.Applied))
			if len(res.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", unknown: %v", res.Skipped)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringSlice("actor", nil, "Student ID(s) the event happens to")
	cmd.Flags().Bool("class", false, "Apply to the whole class")
	cmd.Flags().Float64("intensity", 1, "Event intensity in [0, 1]")
	cmd.Flags().String("location", "", "Where it happened")
	cmd.Flags().Float64("duration", 0, "Hours the event stays active (0 = open-ended)")
	return cmd
}
