package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talgya/classroom/internal/engine"
)

func newTopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the students whose metric moved most this week",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireWorld(cmd); err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("metric")
			metric, err := engine.ParseMetric(name)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("n")
			movers, err := engine.NewDashboard(a.db).TopMovers(cmd.Context(), a.world, metric, n)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, movers)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printMovers(tw, "IMPROVED", movers.Improved)
			fmt.Fprintln(tw)
			printMovers(tw, "WORSENED", movers.Worsened)
			return tw.Flush()
		},
	}
	cmd.Flags().String("metric", "stress", "stress, anxiety or joy")
	cmd.Flags().Int("n", 5, "Students per list")
	return cmd
}

func printMovers(w io.Writer, title string, movers []engine.Mover) {
	fmt.Fprintf(w, "%s\tPREV\tLAST\tDELTA\n", title)
	if len(movers) == 0 {
		fmt.Fprintln(w, "(none)\t\t\t")
	}
	for _, m := range movers {
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%+.3f\n", m.Agent, m.Prev, m.Last, m.Delta)
	}
}
