package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/stupside/mirage/internal/store"
)

// hitsCommand returns the "hits" CLI subcommand.
func hitsCommand() *cli.Command {
	var hostArg string

	return &cli.Command{
		Name:  "hits",
		Usage: "List how often pages read each fingerprint surface",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "host",
				Destination: &hostArg,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(st *store.Store) error {
				hits, err := st.Hits(ctx, hostArg)
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					slog.InfoContext(ctx, "no surface reads recorded")
					return nil
				}
				return printYAML(hits)
			})
		},
	}
}
