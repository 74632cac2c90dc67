package cmd

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// runCommand returns the "run" CLI subcommand.
func runCommand() *cli.Command {
	var urlArg string

	return &cli.Command{
		Name:  "run",
		Usage: "Open a URL in a hooked browser and keep it running until interrupted",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "url",
				Destination: &urlArg,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if urlArg == "" {
				return cli.Exit("a URL is required", 1)
			}

			e, closeStore, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			s, err := e.NewSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Navigate(urlArg); err != nil {
				return err
			}

			if h, ok := s.Top(); ok {
				seeds := h.Seeds()
				slog.InfoContext(ctx, "page hooked",
					"url", urlArg,
					"host", h.Storage().Host,
					"tasks", len(h.Active()),
					"page_seed", seeds.Page,
					"domain_seed", seeds.Domain,
				)
			} else {
				slog.InfoContext(ctx, "page loaded without hooks", "url", urlArg)
			}

			<-ctx.Done()
			return nil
		},
	}
}
