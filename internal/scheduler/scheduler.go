// Package scheduler triggers the engagement and harvest cycles on
// their cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/replypilot/internal/logging"
)

var log = logging.Component("scheduler")

// Runner is the cycle implementation the scheduler drives.
type Runner interface {
	RunEngage(ctx context.Context) error
	RunHarvest(ctx context.Context) error
}

// Scheduler owns the cron instance. Cycles run sequentially per kind;
// cron skips a tick if the previous run of the same job is still
// holding the queue slot.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
}

func New(runner Runner) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
	}
}

// Register installs both cycle schedules, e.g. "*/5 6-21 * * *" for
// engagement during active hours and "0 2 * * *" for the nightly
// harvest.
func (s *Scheduler) Register(engageSpec, harvestSpec string) error {
	if _, err := s.cron.AddFunc(engageSpec, func() {
		if err := s.runner.RunEngage(context.Background()); err != nil {
			log.Error().Err(err).Msg("scheduled engage cycle failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid engage schedule %q: %w", engageSpec, err)
	}

	if _, err := s.cron.AddFunc(harvestSpec, func() {
		if err := s.runner.RunHarvest(context.Background()); err != nil {
			log.Error().Err(err).Msg("scheduled harvest cycle failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid harvest schedule %q: %w", harvestSpec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}
