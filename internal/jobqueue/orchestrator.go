package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/replypilot/internal/config"
	"github.com/replypilot/internal/retry"
	"github.com/replypilot/pkg/models"
)

// ErrStillPending marks a poll that found unfinished work.
var ErrStillPending = errors.New("job still pending")

// Inserter enqueues jobs. Satisfied by JobQueue.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs) error
}

// Orchestrator spawns crawl jobs and exposes the poll-until-ready
// protocol. It holds no per-job state beyond what the result store
// records; it never inspects job payloads.
type Orchestrator struct {
	inserter Inserter
	results  ResultStore
	cfg      config.Jobs
}

func NewOrchestrator(inserter Inserter, results ResultStore, cfg config.Jobs) *Orchestrator {
	return &Orchestrator{inserter: inserter, results: results, cfg: cfg}
}

// SpawnHarvest starts a timeline harvest without blocking and returns
// an opaque call id.
func (o *Orchestrator) SpawnHarvest(ctx context.Context, username string, latestPostID int64) (string, error) {
	callID := uuid.NewString()
	if err := o.results.MarkPending(ctx, callID); err != nil {
		return "", err
	}
	args := HarvestTimelineArgs{CallID: callID, Username: username, LatestPostID: latestPostID}
	if err := o.inserter.Insert(ctx, args); err != nil {
		return "", err
	}
	return callID, nil
}

// SpawnListCrawl starts an incremental list crawl without blocking and
// returns an opaque call id.
func (o *Orchestrator) SpawnListCrawl(ctx context.Context, listID string, cursor int64) (string, error) {
	callID := uuid.NewString()
	if err := o.results.MarkPending(ctx, callID); err != nil {
		return "", err
	}
	args := ListCrawlArgs{CallID: callID, ListID: listID, Cursor: cursor}
	if err := o.inserter.Insert(ctx, args); err != nil {
		return "", err
	}
	return callID, nil
}

// Poll performs a non-blocking status check for a spawned job.
func (o *Orchestrator) Poll(ctx context.Context, callID string) (models.JobResult, error) {
	return o.results.Get(ctx, callID)
}

// AwaitResult blocks until the job reports ready: a short grace period
// after spawn, then fixed-interval polls up to the configured retry
// budget. Exhausting the budget abandons the job and returns an
// error; the job itself keeps running and its eventual result is
// simply never read.
func (o *Orchestrator) AwaitResult(ctx context.Context, callID string) ([]byte, error) {
	if err := sleepCtx(ctx, o.cfg.GracePeriod); err != nil {
		return nil, err
	}

	var payload []byte
	pollLog := log.With().Str("call_id", callID).Logger()

	result := retry.WithBackoff(ctx, retry.FixedConfig(o.cfg.MaxRetries, o.cfg.PollInterval), pollLog, func() error {
		jr, err := o.results.Get(ctx, callID)
		if err != nil {
			return err
		}
		if jr.Status != models.JobReady {
			return ErrStillPending
		}
		payload = jr.Result
		return nil
	})

	if !result.Success {
		return nil, fmt.Errorf("job %s not ready after %d attempts, abandoning: %w",
			callID, result.Attempts, result.LastError)
	}
	return payload, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
