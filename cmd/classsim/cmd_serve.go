package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/classroom/internal/agents"
	"github.com/talgya/classroom/internal/api"
	"github.com/talgya/classroom/internal/engine"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tick loop and the HTTP API",
		Long: `serve advances every world once per tick interval and serves the API.

Each tick moves every unpaused world to its own clock's now, covering the
world time since its previous tick. New worlds get a clock running at the
loop's pace unless CLASSSIM_TIME_SCALE says otherwise. When a world's
clock crosses midnight its daily rollups are rebuilt. When the database
has no worlds yet, the configured class is seeded first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.seedIfEmpty(ctx); err != nil {
				return err
			}

			agg := a.aggregator()
			eng := engine.NewEngine()
			eng.Interval = a.cfg.TickInterval
			eng.HoursPerTick = a.cfg.HoursPerTick
			eng.OnTick = func(ctx context.Context, tick uint64) {
				results, err := a.sim.TickWorlds(ctx, a.cfg.HoursPerTick)
				if err != nil {
					slog.Error("tick failed", "tick", tick, "error", err)
					return
				}
				slog.Debug("tick", "tick", tick, "worlds", len(results))
				for _, res := range results {
					if !res.NewDay {
						continue
					}
					slog.Info("day boundary", "world", res.World, "sim_time", res.At.Format("2006-01-02 15:04"))
					if _, err := agg.Run(ctx, res.World, res.At); err != nil {
						slog.Error("daily aggregation failed", "world", res.World, "error", err)
					}
				}
			}

			server := &api.Server{
				Sim:               a.sim,
				Dash:              engine.NewDashboard(a.db),
				Agg:               agg,
				DB:                a.db,
				Eng:               eng,
				Port:              a.cfg.APIPort,
				AdminKey:          a.cfg.AdminKey,
				HoursPerTick:      a.cfg.HoursPerTick,
				ConversationLimit: a.cfg.ConversationLimit,
				Roster:            a.roster(),
			}
			if a.cfg.RateLimit > 0 {
				server.Limiter = api.NewRateLimiter(a.cfg.RateLimit, a.cfg.RateBurst)
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				eng.Run(ctx)
				return nil
			})
			g.Go(func() error {
				return server.Run(ctx)
			})
			if err := g.Wait(); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			slog.Info("shutdown complete", "tick", eng.Tick())
			return nil
		},
	}
}

func (a *app) roster() agents.SpawnConfig {
	cfg := agents.DefaultSpawnConfig()
	cfg.Seed = a.cfg.Seed
	cfg.Size = a.cfg.ClassSize
	cfg.Class = a.cfg.ClassName
	return cfg
}

func (a *app) seedIfEmpty(ctx context.Context) error {
	worlds, err := a.db.Worlds(ctx)
	if err != nil {
		return err
	}
	if len(worlds) > 0 {
		slog.Info("worlds loaded", "count", len(worlds))
		return nil
	}
	slog.Info("no worlds found, seeding", "world", a.world, "class", a.cfg.ClassName)
	roster := agents.NewSpawner(a.roster()).Spawn()
	_, _, err = a.sim.InitWorld(ctx, engine.World{ID: a.world, Name: a.cfg.ClassName}, roster)
	return err
}
