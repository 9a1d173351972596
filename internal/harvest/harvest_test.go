package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/replypilot/internal/feed"
	"github.com/replypilot/pkg/models"
)

var _ feed.API = (*fakeAPI)(nil)

type fakeAPI struct {
	user          models.FeedUser
	timelinePages []feed.Page
	lookup        map[int64]models.Post
	timelineCalls int
	lookupCalls   [][]int64
}

func (f *fakeAPI) ListPage(ctx context.Context, listID, pageToken string) (*feed.Page, error) {
	return &feed.Page{}, nil
}

func (f *fakeAPI) TimelinePage(ctx context.Context, userID, sinceID int64, endTime time.Time, pageToken string) (*feed.Page, error) {
	idx := f.timelineCalls
	f.timelineCalls++
	if idx >= len(f.timelinePages) {
		return &feed.Page{}, nil
	}
	return &f.timelinePages[idx], nil
}

func (f *fakeAPI) PostsByID(ctx context.Context, ids []int64) ([]models.Post, []int64, error) {
	f.lookupCalls = append(f.lookupCalls, ids)
	var found []models.Post
	var missing []int64
	for _, id := range ids {
		if p, ok := f.lookup[id]; ok {
			found = append(found, p)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

func (f *fakeAPI) UserByUsername(ctx context.Context, username string) (*models.FeedUser, error) {
	u := f.user
	return &u, nil
}

func repliedTo(id int64) []models.PostReference {
	return []models.PostReference{{Type: "replied_to", ID: id}}
}

func TestHarvestTimelineEmptyBatch(t *testing.T) {
	api := &fakeAPI{user: models.FeedUser{ID: 1, Username: "markus"}}

	result, err := NewService(api).HarvestTimeline(context.Background(), "markus", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.LatestPostID != 100 {
		t.Errorf("cursor must not move on an empty batch, got %d", result.LatestPostID)
	}
	if len(result.Posts) != 0 || len(result.Replies) != 0 {
		t.Errorf("expected no documents, got %d posts and %d replies", len(result.Posts), len(result.Replies))
	}
	if len(api.lookupCalls) != 0 {
		t.Errorf("no lookups expected for an empty batch, got %v", api.lookupCalls)
	}
}

func TestHarvestTimelineSplitsAndPairs(t *testing.T) {
	api := &fakeAPI{
		user: models.FeedUser{ID: 1, Username: "markus"},
		timelinePages: []feed.Page{{
			Posts: []models.Post{
				{ID: 120, ConversationID: 120, AuthorID: 1, Text: "shipping notes"},
				{ID: 130, ConversationID: 50, AuthorID: 1, ReplyToUserID: 99,
					Text: "@bob nice take", References: repliedTo(50)},
				{ID: 125, ConversationID: 60, AuthorID: 1, ReplyToUserID: 98,
					Text: "@eve agreed", References: repliedTo(60)},
			},
		}},
		lookup: map[int64]models.Post{
			50: {ID: 50, AuthorID: 99, Text: "bob's original", PublicMetrics: map[string]int64{"like_count": 12}},
		},
	}

	result, err := NewService(api).HarvestTimeline(context.Background(), "markus", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Posts) != 1 || result.Posts[0].ID != "120" {
		t.Fatalf("expected one original post document, got %+v", result.Posts)
	}
	// The reply to the vanished post 60 is dropped; the survivor pairs
	// with its original.
	if len(result.Replies) != 1 || result.Replies[0].ID != "130" {
		t.Fatalf("expected one reply document, got %+v", result.Replies)
	}

	meta := result.Replies[0].Metadata
	if meta["reply"] != "nice take" {
		t.Errorf("leading mention not stripped: %q", meta["reply"])
	}
	if meta["original_post"] != "bob's original" {
		t.Errorf("original not attached: %q", meta["original_post"])
	}

	// The cursor chains through reply documents and merged posts to the
	// overall max id.
	if result.LatestPostID != 130 {
		t.Errorf("expected latest post id 130, got %d", result.LatestPostID)
	}
}

func TestHarvestTimelineLatestFromOriginals(t *testing.T) {
	api := &fakeAPI{
		user: models.FeedUser{ID: 1, Username: "markus"},
		timelinePages: []feed.Page{{
			Posts: []models.Post{
				{ID: 140, ConversationID: 140, AuthorID: 1, Text: "a late original"},
				{ID: 130, ConversationID: 50, AuthorID: 1, ReplyToUserID: 99,
					Text: "@bob hm", References: repliedTo(50)},
			},
		}},
		lookup: map[int64]models.Post{
			50: {ID: 50, AuthorID: 99, Text: "bob's original"},
		},
	}

	result, err := NewService(api).HarvestTimeline(context.Background(), "markus", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LatestPostID != 140 {
		t.Errorf("expected the original's id 140 to win, got %d", result.LatestPostID)
	}
}

func TestCrawlListEmpty(t *testing.T) {
	api := &fakeAPI{}

	result, err := NewService(api).CrawlList(context.Background(), "42", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LatestPostID != 200 {
		t.Errorf("cursor must not move on an empty crawl, got %d", result.LatestPostID)
	}
	if len(result.Documents) != 0 {
		t.Errorf("expected no documents, got %d", len(result.Documents))
	}
}
