package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/stupside/mirage/internal/app"
	"github.com/stupside/mirage/internal/store"
)

// seedCommand returns the "seed" CLI subcommand.
func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Inspect or rotate the persisted browser and global seeds",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the persisted seeds",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withStore(cmd, func(st *store.Store) error {
						seeds := make(map[string]uint64)
						for _, name := range []string{store.SeedBrowser, store.SeedGlobal} {
							v, err := st.EnsureSeed(ctx, name)
							if err != nil {
								return err
							}
							seeds[name] = v
						}
						return printYAML(seeds)
					})
				},
			},
			{
				Name:      "reset",
				Usage:     "Draw new seeds, giving every site a new identity",
				ArgsUsage: "[browser|global]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					names := []string{store.SeedBrowser, store.SeedGlobal}
					if n := cmd.Args().First(); n != "" {
						if n != store.SeedBrowser && n != store.SeedGlobal {
							return cli.Exit(fmt.Sprintf("unknown seed %q", n), 1)
						}
						names = []string{n}
					}
					return withStore(cmd, func(st *store.Store) error {
						seeds := make(map[string]uint64)
						for _, name := range names {
							v, err := st.ResetSeed(ctx, name)
							if err != nil {
								return err
							}
							seeds[name] = v
						}
						return printYAML(seeds)
					})
				},
			},
		},
	}
}

func withStore(cmd *cli.Command, fn func(*store.Store) error) error {
	cfg, err := app.ConfigFrom(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
