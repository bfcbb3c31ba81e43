package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/enclaro/backend/internal/config"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create a sample configuration file",
				Action: runConfigInit,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	configPath := c.String("config")
	if configPath == "" {
		configPath = "./enclaro.toml"
	}

	if err := config.InitConfig(configPath); err != nil {
		return err
	}

	fmt.Printf("Configuration file created at %s\n", configPath)
	return nil
}
