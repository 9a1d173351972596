package cmd

import (
	"context"

	"github.com/urfave/cli/v2"
)

// EngageCommand runs a single engagement cycle and exits.
func EngageCommand() *cli.Command {
	return &cli.Command{
		Name:  "engage",
		Usage: "Run one engagement cycle over the configured lists",
		Action: func(c *cli.Context) error {
			return runOnce(c, func(ctx context.Context, rt *runtime) error {
				return rt.runner.RunEngage(ctx)
			})
		},
	}
}

// HarvestCommand runs a single timeline harvest cycle and exits.
func HarvestCommand() *cli.Command {
	return &cli.Command{
		Name:  "harvest",
		Usage: "Harvest the account timeline into the retrieval indexes",
		Action: func(c *cli.Context) error {
			return runOnce(c, func(ctx context.Context, rt *runtime) error {
				return rt.runner.RunHarvest(ctx)
			})
		},
	}
}

func runOnce(c *cli.Context, fn func(context.Context, *runtime) error) error {
	ctx := context.Background()

	rt, err := buildRuntime(ctx, c)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	if err := rt.queue.Start(ctx); err != nil {
		return err
	}

	return fn(ctx, rt)
}
