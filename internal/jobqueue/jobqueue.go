// Package jobqueue runs the long-running crawl operations as River
// jobs and exposes the spawn/poll protocol the engagement cycle
// blocks on.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/replypilot/internal/logging"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("jobqueue")

// maxQueueWorkers bounds concurrent crawl jobs. Crawls are rate
// limited upstream, so a small pool is enough.
const maxQueueWorkers = 4

// Harvester executes the two fetch operations jobs are spawned for.
type Harvester interface {
	HarvestTimeline(ctx context.Context, username string, latestPostID int64) (*models.HarvestResult, error)
	CrawlList(ctx context.Context, listID string, cursor int64) (*models.ListCrawlResult, error)
}

// HarvestTimelineArgs describes one nightly timeline harvest job.
type HarvestTimelineArgs struct {
	CallID       string `json:"call_id"`
	Username     string `json:"username"`
	LatestPostID int64  `json:"latest_post_id"`
}

func (HarvestTimelineArgs) Kind() string { return "harvest_timeline" }

// ListCrawlArgs describes one incremental list crawl job.
type ListCrawlArgs struct {
	CallID string `json:"call_id"`
	ListID string `json:"list_id"`
	Cursor int64  `json:"cursor"`
}

func (ListCrawlArgs) Kind() string { return "list_crawl" }

// HarvestTimelineWorker runs a timeline harvest and records the
// result under the job's call id.
type HarvestTimelineWorker struct {
	river.WorkerDefaults[HarvestTimelineArgs]
	harvester Harvester
	results   ResultStore
}

func (w *HarvestTimelineWorker) Work(ctx context.Context, job *river.Job[HarvestTimelineArgs]) error {
	args := job.Args
	log.Info().Str("call_id", args.CallID).Str("username", args.Username).Msg("starting timeline harvest job")

	result, err := w.harvester.HarvestTimeline(ctx, args.Username, args.LatestPostID)
	if err != nil {
		return fmt.Errorf("harvest job %s failed: %w", args.CallID, err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode harvest result: %w", err)
	}
	return w.results.Complete(ctx, args.CallID, payload)
}

// ListCrawlWorker runs an incremental list crawl and records the
// result under the job's call id.
type ListCrawlWorker struct {
	river.WorkerDefaults[ListCrawlArgs]
	harvester Harvester
	results   ResultStore
}

func (w *ListCrawlWorker) Work(ctx context.Context, job *river.Job[ListCrawlArgs]) error {
	args := job.Args
	log.Info().Str("call_id", args.CallID).Str("list_id", args.ListID).Int64("cursor", args.Cursor).Msg("starting list crawl job")

	result, err := w.harvester.CrawlList(ctx, args.ListID, args.Cursor)
	if err != nil {
		return fmt.Errorf("list crawl job %s failed: %w", args.CallID, err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode list crawl result: %w", err)
	}
	return w.results.Complete(ctx, args.CallID, payload)
}

// JobQueue wraps the River client and its connection pool.
type JobQueue struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	results ResultStore
}

// NewJobQueue creates the queue with both crawl workers registered.
func NewJobQueue(ctx context.Context, databaseURL string, harvester Harvester) (*JobQueue, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	results := NewPostgresResultStore(pool)

	workers := river.NewWorkers()
	river.AddWorker(workers, &HarvestTimelineWorker{harvester: harvester, results: results})
	river.AddWorker(workers, &ListCrawlWorker{harvester: harvester, results: results})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxQueueWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}

	return &JobQueue{client: client, pool: pool, results: results}, nil
}

func (q *JobQueue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

func (q *JobQueue) Stop(ctx context.Context) error {
	err := q.client.Stop(ctx)
	q.pool.Close()
	return err
}

// Results exposes the queue's result store for the orchestrator.
func (q *JobQueue) Results() ResultStore {
	return q.results
}

// Insert enqueues a job for the registered workers.
func (q *JobQueue) Insert(ctx context.Context, args river.JobArgs) error {
	if _, err := q.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", args.Kind(), err)
	}
	return nil
}
