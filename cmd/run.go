package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/replypilot/internal/api"
	"github.com/replypilot/internal/scheduler"
)

// RunCommand starts the long-running service: job queue workers, the
// cycle scheduler, and the operator HTTP server.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the scheduler, job workers, and operator API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Operator API port",
				Value: 8080,
			},
		},
		Action: runService,
	}
}

func runService(c *cli.Context) error {
	ctx := context.Background()

	rt, err := buildRuntime(ctx, c)
	if err != nil {
		return err
	}

	if err := rt.queue.Start(ctx); err != nil {
		return err
	}

	sched := scheduler.New(rt.runner)
	if err := sched.Register(rt.cfg.Schedule.EngageCron, rt.cfg.Schedule.HarvestCron); err != nil {
		return err
	}
	sched.Start()

	server := api.NewServer(c.Int("port"), rt.dataset, rt.classify, rt.runner, rt.feed)
	err = server.Start() // blocks until interrupt

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rt.close(shutdownCtx)
	return err
}
