package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// scriptCommand returns the "script" CLI subcommand.
func scriptCommand() *cli.Command {
	var urlArg string

	return &cli.Command{
		Name:  "script",
		Usage: "Print the injection script a navigation to URL would receive",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:        "url",
				Destination: &urlArg,
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "payload",
				Usage: "Print only the resolved payload",
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

			h, script, err := e.Prepare("script", urlArg, "")
			if err != nil {
				return err
			}
			defer e.Forget("script")

			if cmd.Bool("payload") {
				return printYAML(h.Payload())
			}
			fmt.Println(script)
			return nil
		},
	}
}
