// Command agentd runs the agent decision engine: an HTTP service that picks
// the next action for NPC avatars, plus one-shot tick and seed commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/agentmind/internal/config"
	"github.com/talgya/agentmind/internal/entropy"
	"github.com/talgya/agentmind/internal/world"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		slog.Error("agentd failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentd",
		Short: "Utility-based decision engine for NPC avatars",
		Long: `agentd decides what autonomous avatars do next. Each tick decays an
agent's needs, scores every available action and samples one.

Configuration comes from AGENTMIND_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServeCommand())
	root.AddCommand(newTickCommand())
	root.AddCommand(newSeedCommand())
	return root
}

// setup loads the configuration, installs the logger and wires the app.
func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))
	return newApp(cfg)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  AGENTMIND_ADMIN_KEY=secret agentd serve",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.server().Serve(ctx)
		},
	}
}

func newTickCommand() *cobra.Command {
	var (
		ready bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "tick [avatar-id]",
		Short: "Run one decision cycle and print the result",
		Example: `  agentd tick npc-3
  agentd tick --ready --limit 50`,
		Args: func(cmd *cobra.Command, args []string) error {
			if ready {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if ready {
				results, err := a.engine.TickReady(ctx, limit)
				if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
					return perr
				}
				return err
			}
			res, err := a.engine.RequestAction(ctx, args[0], a.cfg.Retry())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&ready, "ready", false, "Tick every agent whose current action has expired")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum agents to tick with --ready")
	return cmd
}

func newSeedCommand() *cobra.Command {
	var (
		seed    int64
		avatars int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate world locations and a demo population",
		Long: `seed places points of interest on the grid from a noise seed, scatters
demo avatars between them and gives each one a random personality.
Existing rows with the same IDs are replaced.`,
		Example: "  agentd seed --seed 42 --avatars 12",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.seed(ctx, seed, avatars, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 42, "World generation seed")
	cmd.Flags().IntVar(&avatars, "avatars", 10, "Number of demo avatars to create")
	return cmd
}

func (a *app) seed(ctx context.Context, seed int64, n int, out io.Writer) error {
	gen := world.DefaultGenConfig()
	gen.Seed = seed
	gen.Bounds = a.engine.Config.Bounds

	locs := world.Generate(gen)
	for _, loc := range locs {
		if err := a.raw.SaveLocation(ctx, loc); err != nil {
			return err
		}
	}
	slog.Info("locations placed", "count", len(locs), "seed", seed)

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("npc-%d", i+1)
	}
	rng := entropy.NewRand()
	for _, p := range world.ScatterAvatars(gen, ids, locs, rng) {
		if err := a.raw.SavePresence(ctx, p); err != nil {
			return err
		}
		if _, _, err := a.engine.InitializeAgent(ctx, p.AvatarID, nil); err != nil {
			return err
		}
	}
	slog.Info("avatars seeded", "count", n)

	return printJSON(out, map[string]any{"locations": len(locs), "avatars": ids})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
