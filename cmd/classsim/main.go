// Command classsim runs and inspects classroom simulations.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/classroom/internal/config"
	"github.com/talgya/classroom/internal/engine"
	"github.com/talgya/classroom/internal/logging"
	"github.com/talgya/classroom/internal/persistence"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "classsim",
		Short: "Classroom psychological-state simulation",
		Long: `classsim simulates the emotional state of a class of students.

Events are appraised into emotions, emotions decay and spread along
peer ties, and every student carries a stress, energy and risk score.
State, events and snapshots live in a SQLite database.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("env", ".env", "Optional .env file to load")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides CLASSSIM_DB_PATH)")
	rootCmd.PersistentFlags().String("world", "default", "World ID")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newSeedCmd(),
		newTickCmd(),
		newInjectCmd(),
		newActCmd(),
		newAggregateCmd(),
		newExportCmd(),
		newTopCmd(),
		newClockCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "classsim version %s\n", version)
		},
	}
}

// app is the state every command works against.
type app struct {
	cfg   config.Config
	db    *persistence.DB
	sim   *engine.Simulation
	world string
}

// openApp loads configuration, installs the logger and opens the database.
func openApp(cmd *cobra.Command) (*app, error) {
	dotenv, _ := cmd.Flags().GetString("env")
	cfg, err := config.Load(dotenv)
	if err != nil {
		return nil, err
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	logger := logging.Setup(cfg.LogLevel, cmd.ErrOrStderr())

	w, err := cfg.Weights()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath)

	world, _ := cmd.Flags().GetString("world")
	return &app{
		cfg: cfg,
		db:  db,
		sim: engine.NewSimulation(db, w, engine.Options{
			Logger:    logger,
			TimeScale: cfg.ClockScale(),
		}),
		world: world,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) aggregator() *engine.DailyAggregator {
	return engine.NewDailyAggregator(a.db, a.cfg.Aggregator(), slog.Default())
}

// requireWorld fails with a hint when the selected world was never seeded.
func (a *app) requireWorld(cmd *cobra.Command) error {
	if _, err := a.db.World(cmd.Context(), a.world); err != nil {
		return fmt.Errorf("world %q: %w (run 'classsim seed' first)", a.world, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func hoursDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
