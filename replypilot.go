package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/replypilot/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "replypilot",
		Usage:   "Engagement pipeline that crawls feeds, indexes threads, and drafts replies",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "replypilot.toml",
			},
		},
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.EngageCommand(),
			cmd.HarvestCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
