// Package cycle drives the scheduled crawl-and-reply runs: spawn a
// crawl job, block on the poll protocol, gate items through the topic
// classifier, generate replies, and route drafts to Slack.
package cycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/replypilot/internal/classify"
	"github.com/replypilot/internal/engage"
	"github.com/replypilot/internal/logging"
	"github.com/replypilot/internal/notify"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("cycle")

// TimelineList is the cursor key for the account's own timeline
// harvest, alongside the monitored engagement lists.
const TimelineList = "timeline"

// Orchestrator is the async job layer the cycle blocks on.
type Orchestrator interface {
	SpawnHarvest(ctx context.Context, username string, latestPostID int64) (string, error)
	SpawnListCrawl(ctx context.Context, listID string, cursor int64) (string, error)
	AwaitResult(ctx context.Context, callID string) ([]byte, error)
}

// CursorStore persists per-list progress.
type CursorStore interface {
	Load(ctx context.Context, username string) (models.CursorDocument, error)
	Advance(ctx context.Context, username, listName string, newLatest int64) error
}

// Indexer upserts documents into a named relevance index.
type Indexer interface {
	UpsertDocuments(ctx context.Context, indexName string, docs []models.IndexedDocument) error
}

// ReplyGenerator runs the reply pipeline for one target post.
type ReplyGenerator interface {
	Run(ctx context.Context, target engage.Target) (*models.ReplyResult, error)
}

// Runner executes complete cycles for one configured account.
type Runner struct {
	orchestrator Orchestrator
	cursors      CursorStore
	classifier   classify.Classifier
	generator    ReplyGenerator
	notifier     notify.Notifier
	indexer      Indexer

	username   string
	postsIndex string
	replyIndex string
}

type RunnerConfig struct {
	Orchestrator Orchestrator
	Cursors      CursorStore
	Classifier   classify.Classifier
	Generator    ReplyGenerator
	Notifier     notify.Notifier
	Indexer      Indexer
	Username     string
	PostsIndex   string
	ReplyIndex   string
}

func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		orchestrator: cfg.Orchestrator,
		cursors:      cfg.Cursors,
		classifier:   cfg.Classifier,
		generator:    cfg.Generator,
		notifier:     cfg.Notifier,
		indexer:      cfg.Indexer,
		username:     cfg.Username,
		postsIndex:   cfg.PostsIndex,
		replyIndex:   cfg.ReplyIndex,
	}
}

// RunEngage processes every monitored list once. A failing list is
// logged and skipped; the cycle moves on to the next list and the
// failed list's cursor stays put, so its range is reprocessed on the
// next scheduled run.
func (r *Runner) RunEngage(ctx context.Context) error {
	doc, err := r.cursors.Load(ctx, r.username)
	if err != nil {
		return fmt.Errorf("failed to load cursors: %w", err)
	}

	state, ok := doc.Users[r.username]
	if !ok || len(state.Lists) == 0 {
		log.Warn().Str("username", r.username).Msg("no monitored lists configured")
		return nil
	}

	for name, list := range state.Lists {
		if name == TimelineList {
			continue
		}
		if err := r.processList(ctx, name, list); err != nil {
			clog := logging.Cycle(r.username, name, list.LatestPostID)
			clog.Error().Err(err).Msg("list cycle failed, continuing with next list")
		}
	}
	return nil
}

func (r *Runner) processList(ctx context.Context, listName string, list models.ListState) error {
	clog := logging.Cycle(r.username, listName, list.LatestPostID)

	callID, err := r.orchestrator.SpawnListCrawl(ctx, list.ID, list.LatestPostID)
	if err != nil {
		return fmt.Errorf("failed to spawn list crawl: %w", err)
	}
	clog.Info().Str("call_id", callID).Msg("spawned list crawl")

	payload, err := r.orchestrator.AwaitResult(ctx, callID)
	if err != nil {
		return err
	}

	var result models.ListCrawlResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("failed to decode list crawl result: %w", err)
	}

	// Advance as soon as the max id is known. Generation failures
	// below must not cause the same posts to be re-replied next cycle.
	if result.LatestPostID > list.LatestPostID {
		if err := r.cursors.Advance(ctx, r.username, listName, result.LatestPostID); err != nil {
			return err
		}
	}

	for _, doc := range result.Documents {
		if err := r.processDocument(ctx, list, doc, result.Users); err != nil {
			clog.Warn().Err(err).Str("post_id", doc.ID).Msg("skipping post")
		}
	}
	return nil
}

// processDocument gates one crawled post through the classifier and,
// when interesting, generates and routes a reply draft.
func (r *Runner) processDocument(ctx context.Context, list models.ListState, doc models.IndexedDocument, users map[int64]models.FeedUser) error {
	prediction, err := r.classifier.Classify(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	// Surface every decision so the operator can correct it through the
	// labeling endpoint. A failed notification never blocks the cycle.
	if err := r.notifier.NotifyClassification(ctx, list.SlackChannelID, doc.Text, prediction.Label); err != nil {
		log.Warn().Err(err).Str("post_id", doc.ID).Msg("classification notification failed")
	}

	if !prediction.IsInteresting() {
		return nil
	}

	authorID := metadataAuthorID(doc.Metadata)
	author := users[authorID]

	result, err := r.generator.Run(ctx, engage.Target{
		Post:       doc.Text,
		AuthorName: author.Username,
		AuthorBio:  author.Description,
	})
	if err != nil {
		return fmt.Errorf("reply generation failed: %w", err)
	}

	postID, err := strconv.ParseInt(doc.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad document id %q: %w", doc.ID, err)
	}
	return r.notifier.NotifyReply(ctx, list.SlackChannelID, authorID, postID, result)
}

// RunHarvest executes the nightly own-timeline harvest: fetch, merge,
// upsert into both indices, then advance the timeline cursor.
func (r *Runner) RunHarvest(ctx context.Context) error {
	doc, err := r.cursors.Load(ctx, r.username)
	if err != nil {
		return fmt.Errorf("failed to load cursors: %w", err)
	}
	cursor := doc.Users[r.username].Lists[TimelineList].LatestPostID

	clog := logging.Cycle(r.username, TimelineList, cursor)

	callID, err := r.orchestrator.SpawnHarvest(ctx, r.username, cursor)
	if err != nil {
		return fmt.Errorf("failed to spawn harvest: %w", err)
	}
	clog.Info().Str("call_id", callID).Msg("spawned timeline harvest")

	payload, err := r.orchestrator.AwaitResult(ctx, callID)
	if err != nil {
		return err
	}

	var result models.HarvestResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("failed to decode harvest result: %w", err)
	}

	if err := r.indexer.UpsertDocuments(ctx, r.postsIndex, result.Posts); err != nil {
		return err
	}
	if err := r.indexer.UpsertDocuments(ctx, r.replyIndex, result.Replies); err != nil {
		return err
	}

	// Only after both upserts are durable does the cursor move.
	if result.LatestPostID > cursor {
		if err := r.cursors.Advance(ctx, r.username, TimelineList, result.LatestPostID); err != nil {
			return err
		}
	}

	clog.Info().
		Int("posts", len(result.Posts)).
		Int("replies", len(result.Replies)).
		Int64("new_cursor", result.LatestPostID).
		Msg("timeline harvest complete")
	return nil
}

func metadataAuthorID(metadata map[string]any) int64 {
	switch v := metadata["author_id"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
