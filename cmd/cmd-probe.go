package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/stupside/mirage/internal/app"
	"github.com/stupside/mirage/internal/engine"
)

// probeCommand returns the "probe" CLI subcommand.
func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Load URLs in hooked browsers and print what the pages observe",
		ArgsUsage: "<url>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			urls := cmd.Args().Slice()
			if len(urls) == 0 {
				return cli.Exit("at least one URL is required", 1)
			}

			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}

			e, closeStore, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			out := make([]*engine.Observation, len(urls))

			g, ctx := errgroup.WithContext(ctx)
			g.SetLimit(cfg.Engine.Concurrency)
			for i, u := range urls {
				g.Go(func() error {
					obs, err := e.Probe(ctx, u)
					if err != nil {
						return fmt.Errorf("probe %s: %w", u, err)
					}
					slog.DebugContext(ctx, "probe complete", "url", u)
					out[i] = obs
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
}
