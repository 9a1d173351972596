// Package harvest composes the crawler and thread reconstructor into
// the two long-running fetch operations the job queue executes.
package harvest

import (
	"context"
	"fmt"

	"github.com/replypilot/internal/feed"
	"github.com/replypilot/internal/logging"
	"github.com/replypilot/internal/thread"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("harvest")

// Service runs harvest operations against the feed API.
type Service struct {
	api     feed.API
	crawler *feed.Crawler
}

func NewService(api feed.API) *Service {
	return &Service{api: api, crawler: feed.NewCrawler(api)}
}

// HarvestTimeline fetches the account's own timeline forward from
// latestPostID and reduces it to indexable documents: thread-merged
// original posts plus reply/original pairs. Replies whose original
// post no longer exists are dropped.
func (s *Service) HarvestTimeline(ctx context.Context, username string, latestPostID int64) (*models.HarvestResult, error) {
	user, err := s.api.UserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %s: %w", username, err)
	}

	posts, err := s.crawler.FetchTimelineSince(ctx, user.ID, latestPostID)
	if err != nil {
		return nil, fmt.Errorf("timeline fetch for %s failed: %w", username, err)
	}
	if len(posts) == 0 {
		return &models.HarvestResult{LatestPostID: latestPostID}, nil
	}

	originals, replies := feed.Classify(posts, user.ID)
	log.Info().
		Str("username", username).
		Int("originals", len(originals)).
		Int("replies", len(replies)).
		Msg("classified timeline batch")

	pairs, err := thread.PairWithOriginals(ctx, s.api, replies)
	if err != nil {
		return nil, fmt.Errorf("reply pairing for %s failed: %w", username, err)
	}
	replyDocs, latestPostID := thread.BuildReplyDocuments(pairs, latestPostID)

	merged, latestPostID := thread.GroupAndMerge(originals, latestPostID)
	postDocs := thread.ToIndexedDocuments(merged)

	return &models.HarvestResult{
		Posts:        postDocs,
		Replies:      replyDocs,
		LatestPostID: latestPostID,
	}, nil
}

// CrawlList fetches new list items past the cursor and reduces them to
// indexable documents with their author expansions.
func (s *Service) CrawlList(ctx context.Context, listID string, cursor int64) (*models.ListCrawlResult, error) {
	posts, users, err := s.crawler.FetchListSince(ctx, listID, cursor)
	if err != nil {
		return nil, fmt.Errorf("list crawl for %s failed: %w", listID, err)
	}

	merged, latest := thread.GroupAndMerge(posts, cursor)
	return &models.ListCrawlResult{
		Documents:    thread.ToIndexedDocuments(merged),
		Users:        users,
		LatestPostID: latest,
	}, nil
}
