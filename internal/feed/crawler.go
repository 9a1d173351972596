package feed

import (
	"context"
	"time"

	"github.com/replypilot/pkg/models"
)

// freshnessWindow keeps the timeline harvest away from posts that are
// still accumulating engagement; metrics captured too early undervalue
// a post in the relevance index.
const freshnessWindow = 5 * 24 * time.Hour

// Crawler fetches new items from the feed incrementally, starting
// after a stored cursor. It never advances the cursor itself; callers
// persist the new maximum only after downstream processing succeeded.
type Crawler struct {
	api API
	now func() time.Time
}

// NewCrawler creates a crawler over the given API.
func NewCrawler(api API) *Crawler {
	return &Crawler{api: api, now: time.Now}
}

// FetchListSince fetches every list item with id > cursor.
//
// The list feed is reverse-chronological, so pagination stops as soon
// as a page's minimum id falls at or below the cursor: everything
// after that point has been seen in an earlier cycle. Items at or
// below the cursor are dropped from the boundary page. Posts carrying
// media attachments are excluded; only original posts and self-reply
// thread continuations are kept.
func (c *Crawler) FetchListSince(ctx context.Context, listID string, cursor int64) ([]models.Post, map[int64]models.FeedUser, error) {
	var all []models.Post
	users := make(map[int64]models.FeedUser)
	pageToken := ""

	for {
		page, err := c.api.ListPage(ctx, listID, pageToken)
		if err != nil {
			return nil, nil, err
		}
		for id, u := range page.Users {
			users[id] = u
		}

		posts := dropAttachments(page.Posts)
		if len(posts) == 0 {
			if page.NextToken == "" {
				break
			}
			pageToken = page.NextToken
			continue
		}

		minID := posts[0].ID
		for _, p := range posts {
			if p.ID < minID {
				minID = p.ID
			}
		}

		if minID <= cursor {
			for _, p := range posts {
				if p.ID > cursor {
					all = append(all, p)
				}
			}
			break
		}

		all = append(all, posts...)
		if page.NextToken == "" {
			break
		}
		pageToken = page.NextToken
	}

	kept := all[:0]
	for _, p := range all {
		if keepListPost(p) {
			kept = append(kept, p)
		}
	}

	return kept, users, nil
}

// keepListPost keeps original posts and self-reply thread
// continuations; replies to other accounts are someone else's
// conversation and not a reply target for us.
func keepListPost(p models.Post) bool {
	if !p.IsReply() {
		return true
	}
	return p.ReplyToUserID == p.AuthorID
}

func dropAttachments(posts []models.Post) []models.Post {
	kept := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if !p.HasAttachment {
			kept = append(kept, p)
		}
	}
	return kept
}

// FetchTimelineSince fetches the owner's timeline forward from the
// cursor. Timelines are fetched with a server-side since-id filter of
// cursor+1 and an end-time bound, so pagination simply runs until the
// continuation token is exhausted.
func (c *Crawler) FetchTimelineSince(ctx context.Context, userID, cursor int64) ([]models.Post, error) {
	var all []models.Post
	endTime := c.now().Add(-freshnessWindow)
	pageToken := ""

	for {
		page, err := c.api.TimelinePage(ctx, userID, cursor+1, endTime, pageToken)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Posts...)

		if page.NextToken == "" {
			break
		}
		pageToken = page.NextToken
	}

	return all, nil
}

// Classify splits a batch of the owner's timeline items into original
// posts and replies. An item is an original post when it has no reply
// target or replies to the owner (a thread continuation); everything
// else is a reply to someone else's post.
func Classify(posts []models.Post, ownerID int64) (originals, replies []models.Post) {
	for _, p := range posts {
		if p.ReplyToUserID == 0 || p.ReplyToUserID == ownerID {
			originals = append(originals, p)
		} else {
			replies = append(replies, p)
		}
	}
	return originals, replies
}

// MaxID returns the maximum post id in the batch, or fallback when the
// batch is empty.
func MaxID(posts []models.Post, fallback int64) int64 {
	max := fallback
	for _, p := range posts {
		if p.ID > max {
			max = p.ID
		}
	}
	return max
}
