package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/replypilot/pkg/models"
)

// Page is one page of posts from the feed API, together with the
// author expansion and the continuation token for the next page.
type Page struct {
	Posts     []models.Post
	Users     map[int64]models.FeedUser
	NextToken string
}

// API is the remote social-feed surface the crawler depends on.
// Implementations must return APIError values for remote failures so
// callers can distinguish transient trouble from bugs.
type API interface {
	// ListPage fetches one page of a list feed (reverse-chronological).
	ListPage(ctx context.Context, listID string, pageToken string) (*Page, error)

	// TimelinePage fetches one page of a user's own timeline, forward
	// from sinceID, bounded by endTime to respect the freshness window.
	TimelinePage(ctx context.Context, userID, sinceID int64, endTime time.Time, pageToken string) (*Page, error)

	// PostsByID resolves posts in bulk. Ids the upstream reports as
	// not-found are returned separately rather than failing the call.
	PostsByID(ctx context.Context, ids []int64) ([]models.Post, []int64, error)

	// UserByUsername resolves a username to its user record.
	UserByUsername(ctx context.Context, username string) (*models.FeedUser, error)
}

// APIError is a tagged remote-API failure. Callers must not advance
// any cursor when they receive one.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("feed api %s: %s", e.Endpoint, e.Message)
}

// IsRateLimited reports whether the failure was an upstream rate limit.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}
