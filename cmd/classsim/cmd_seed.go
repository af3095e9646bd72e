package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/engine"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a world and spawn its class",
		Long: `seed creates the selected world with a generated roster. Traits and
peer ties come from the seed, so the same seed always yields the same
class. Seeding a world that already exists leaves it untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.roster()
			if cmd.Flags().Changed("seed") {
				cfg.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("size") {
				cfg.Size, _ = cmd.Flags().GetInt("size")
			}
			if class, _ := cmd.Flags().GetString("class"); class != "" {
				cfg.Class = class
			}
			if cfg.Size <= 0 {
				return fmt.Errorf("size must be positive, got %d", cfg.Size)
			}
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = cfg.Class
			}

			roster := agents.NewSpawner(cfg).Spawn()
			w, created, err := a.sim.InitWorld(cmd.Context(), engine.World{ID: a.world, Name: name}, roster)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]any{"world": w, "created": created, "agents": len(roster)})
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "world %s already exists\n", w.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded world %s (%s) with %d students\n", w.ID, name, len(roster))
			return nil
		},
	}
	cmd.Flags().Int64("seed", 0, "Roster seed (default CLASSSIM_SEED)")
	cmd.Flags().Int("size", 0, "Class size (default CLASSSIM_CLASS_SIZE)")
	cmd.Flags().String("class", "", "Class label (default CLASSSIM_CLASS_NAME)")
	cmd.Flags().String("name", "", "World display name (default the class label)")
	return cmd
}
