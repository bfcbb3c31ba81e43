package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/enclaro/backend/cmd"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "enclaro",
		Usage:   "Backend service for the Enclaro communication assistant",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
