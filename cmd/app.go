// Package cmd wires configuration into the runtime components behind
// the CLI commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/replypilot/internal/classify"
	"github.com/replypilot/internal/config"
	"github.com/replypilot/internal/cursor"
	"github.com/replypilot/internal/cycle"
	"github.com/replypilot/internal/database"
	"github.com/replypilot/internal/engage"
	"github.com/replypilot/internal/feed"
	"github.com/replypilot/internal/harvest"
	"github.com/replypilot/internal/index"
	"github.com/replypilot/internal/jobqueue"
	"github.com/replypilot/internal/llm"
	"github.com/replypilot/internal/logging"
	"github.com/replypilot/internal/notify"
	"github.com/replypilot/internal/training"
)

// runtime bundles every wired component a command may need.
type runtime struct {
	cfg      *config.Config
	queue    *jobqueue.JobQueue
	runner   *cycle.Runner
	dataset  *training.Dataset
	classify classify.Classifier
	feed     *feed.Client
	pool     *pgxpool.Pool
}

// buildRuntime loads configuration and constructs the full component
// graph. The caller owns shutdown via rt.close.
func buildRuntime(ctx context.Context, c *cli.Context) (*runtime, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.General.LogLevel)

	db, err := database.New(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(db); err != nil {
		return nil, err
	}
	db.Close()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	feedClient := feed.NewClient(feed.ClientConfig{
		BaseURL:   cfg.Feed.BaseURL,
		Token:     cfg.Feed.BearerToken,
		PageSize:  cfg.Feed.PageSize,
		RateLimit: cfg.Feed.RateLimit,
	})
	harvester := harvest.NewService(feedClient)

	queue, err := jobqueue.NewJobQueue(ctx, cfg.Database.URL, harvester)
	if err != nil {
		pool.Close()
		return nil, err
	}
	orchestrator := jobqueue.NewOrchestrator(queue, queue.Results(), cfg.Jobs)

	embedder, err := index.NewOpenAIEmbedder(cfg.LLM.Summarizer.APIKey, cfg.Index.EmbedModel)
	if err != nil {
		pool.Close()
		return nil, err
	}
	indexClient := index.NewClient(embedder, index.NewHTTPStore(cfg.Index.BaseURL, cfg.Index.APIKey))

	summarizer, err := llm.NewGenerator(ctx, cfg.LLM.Summarizer, cfg.LLM.Temperature)
	if err != nil {
		pool.Close()
		return nil, err
	}
	primary, err := llm.NewGenerator(ctx, cfg.LLM.Primary, cfg.LLM.Temperature)
	if err != nil {
		pool.Close()
		return nil, err
	}
	fallback, err := llm.NewGenerator(ctx, cfg.LLM.Fallback, cfg.LLM.Temperature)
	if err != nil {
		pool.Close()
		return nil, err
	}
	resilient := llm.NewFallbackGenerator(primary, fallback)

	pipeline := engage.NewPipeline(engage.PipelineConfig{
		Summarizer: summarizer,
		Strategist: resilient,
		Refiner:    resilient,
		Retriever:  indexClient,
		Persona:    cfg.Persona,
		PostsIndex: cfg.Index.PostsIndex,
		ReplyIndex: cfg.Index.RepliesIndex,
	})

	classifier := classify.NewClient(cfg.Classifier.URL, cfg.Classifier.APIKey)
	notifier := notify.NewSlackNotifier(cfg.Slack.BotToken)
	cursors := cursor.NewStore(pool)

	for name, list := range cfg.Lists {
		if err := cursors.Register(ctx, cfg.General.Account, name, list.ID, list.SlackChannelID); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to register list %s: %w", name, err)
		}
	}

	runner := cycle.NewRunner(cycle.RunnerConfig{
		Orchestrator: orchestrator,
		Cursors:      cursors,
		Classifier:   classifier,
		Generator:    pipeline,
		Notifier:     notifier,
		Indexer:      indexClient,
		Username:     cfg.General.Account,
		PostsIndex:   cfg.Index.PostsIndex,
		ReplyIndex:   cfg.Index.RepliesIndex,
	})

	return &runtime{
		cfg:      cfg,
		queue:    queue,
		runner:   runner,
		dataset:  training.NewDataset(pool),
		classify: classifier,
		feed:     feedClient,
		pool:     pool,
	}, nil
}

var log = logging.Component("cmd")

func (rt *runtime) close(ctx context.Context) {
	if err := rt.queue.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("job queue did not stop cleanly")
	}
	rt.pool.Close()
}
