package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/mirage/internal/app"
	"github.com/stupside/mirage/internal/engine"
	"github.com/stupside/mirage/internal/notify"
	"github.com/stupside/mirage/internal/store"
	"github.com/stupside/mirage/internal/version"
)

// Root returns the root CLI command.
func Root() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "mirage",
		Usage:   "Randomize the browser fingerprint of a Chrome instance",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to configuration file",
				Destination: &configPath,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := app.Load(configPath)
			if err != nil {
				return ctx, err
			}
			cmd.Metadata["config"] = cfg
			return ctx, nil
		},
		Commands: []*cli.Command{
			runCommand(),
			probeCommand(),
			scriptCommand(),
			seedCommand(),
			hitsCommand(),
			{
				Name:  "info",
				Usage: "Print build information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					slog.Info("build",
						"version", version.Version,
						"commit", version.Commit,
						"build_time", version.BuildTime,
					)
					return nil
				},
			},
		},
		Metadata: map[string]any{},
	}
}

// openEngine opens the store and builds an engine reporting to the log and
// to the store. The returned func closes the store.
func openEngine(ctx context.Context, cmd *cli.Command) (*engine.Engine, func(), error) {
	cfg, err := app.ConfigFrom(cmd)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			slog.WarnContext(ctx, "closing store", "error", err)
		}
	}

	sink := notify.MultiSink{notify.LogSink{Logger: slog.Default()}, st}
	e, err := engine.New(ctx, cfg, st, sink)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return e, closeStore, nil
}
