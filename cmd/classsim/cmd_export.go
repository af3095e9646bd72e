package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/api"
	"github.com/talgya/classroom/internal/engine"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write snapshots as CSV",
		Example: `  classsim export --from 2025-03-01 --to 2025-03-08 --out week.csv
  classsim export --agent s04`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireWorld(cmd); err != nil {
				return err
			}

			q := engine.SnapshotQuery{World: a.world, Page: engine.Page{Limit: a.cfg.SnapshotPage}}
			agent, _ := cmd.Flags().GetString("agent")
			q.Agent = agents.AgentID(agent)
			if q.From, err = dayFlag(cmd, "from"); err != nil {
				return err
			}
			if q.To, err = dayFlag(cmd, "to"); err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return api.WriteSnapshotsCSV(cmd.Context(), out, a.db, q)
		},
	}
	cmd.Flags().String("from", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Day to stop before (YYYY-MM-DD)")
	cmd.Flags().String("agent", "", "Only this student")
	cmd.Flags().String("out", "", "Output file (default stdout)")
	return cmd
}

func dayFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(engine.DayLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}
