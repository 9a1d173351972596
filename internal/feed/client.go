package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/replypilot/internal/logging"
	"github.com/replypilot/internal/retry"
	"github.com/replypilot/pkg/models"
)

// Client is the HTTP implementation of the API interface against an
// X-API-v2-shaped REST surface with bearer authentication.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientConfig configures the feed HTTP client.
type ClientConfig struct {
	BaseURL   string
	Token     string
	PageSize  int     // max_results per page (default 100)
	RateLimit float64 // requests per second (default 1)
}

// NewClient creates a feed API client.
func NewClient(cfg ClientConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 1.0
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 2),
	}
}

// Wire types. The API returns ids as decimal strings; they are parsed
// into int64 so they can serve as ordering keys.

type wirePost struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	AuthorID         string            `json:"author_id"`
	CreatedAt        string            `json:"created_at"`
	ConversationID   string            `json:"conversation_id"`
	InReplyToUserID  string            `json:"in_reply_to_user_id"`
	PublicMetrics    map[string]int64  `json:"public_metrics"`
	NonPublicMetrics map[string]int64  `json:"non_public_metrics"`
	NoteTweet        *wireNote         `json:"note_tweet"`
	ReferencedTweets []wireReference   `json:"referenced_tweets"`
	Attachments      *wireAttachments  `json:"attachments"`
}

type wireNote struct {
	Text string `json:"text"`
}

type wireReference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type wireAttachments struct {
	MediaKeys []string `json:"media_keys"`
}

type wireUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Description string `json:"description"`
}

type wireError struct {
	Value  string `json:"value"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

type wireResponse struct {
	Data     []wirePost `json:"data"`
	Includes struct {
		Users []wireUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
	Errors []wireError `json:"errors"`
}

var log = logging.Component("feed")

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*wireResponse, error) {
	body, err := c.getRaw(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return &wire, nil
}

// getRaw fetches an endpoint, retrying transient failures (rate limits,
// 5xx, connection resets) with backoff. Non-retryable errors surface
// immediately.
func (c *Client) getRaw(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var body []byte
	var permanent error
	result := retry.WithBackoff(ctx, retry.RemoteFetchConfig(), log, func() error {
		b, err := c.doGet(ctx, endpoint, fullURL)
		if err != nil {
			if retry.IsRetryableError(err) {
				return err
			}
			permanent = err
			return nil
		}
		body = b
		return nil
	})
	if permanent != nil {
		return nil, permanent
	}
	if !result.Success {
		return nil, result.LastError
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, endpoint, fullURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	log.Debug().Str("endpoint", endpoint).Msg("feed API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

// postFields are requested on every post fetch so thread grouping and
// metric aggregation have everything they need in one round-trip.
const postFields = "created_at,public_metrics,non_public_metrics,conversation_id,author_id,in_reply_to_user_id,attachments,note_tweet"

func (c *Client) ListPage(ctx context.Context, listID string, pageToken string) (*Page, error) {
	if strings.TrimSpace(listID) == "" {
		return nil, &APIError{Endpoint: "/lists", Message: "empty list id"}
	}

	params := url.Values{}
	params.Set("max_results", strconv.Itoa(c.pageSize))
	params.Set("tweet.fields", postFields)
	params.Set("expansions", "attachments.media_keys,referenced_tweets.id,author_id")
	params.Set("user.fields", "username,description,id")
	if pageToken != "" {
		params.Set("pagination_token", pageToken)
	}

	wire, err := c.get(ctx, "/lists/"+listID+"/tweets", params)
	if err != nil {
		return nil, err
	}
	return c.toPage(wire)
}

func (c *Client) TimelinePage(ctx context.Context, userID, sinceID int64, endTime time.Time, pageToken string) (*Page, error) {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(c.pageSize))
	params.Set("tweet.fields", postFields)
	params.Set("expansions", "referenced_tweets.id,in_reply_to_user_id")
	if sinceID > 0 {
		params.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	if !endTime.IsZero() {
		params.Set("end_time", endTime.UTC().Format(time.RFC3339))
	}
	if pageToken != "" {
		params.Set("pagination_token", pageToken)
	}

	wire, err := c.get(ctx, fmt.Sprintf("/users/%d/tweets", userID), params)
	if err != nil {
		return nil, err
	}
	return c.toPage(wire)
}

var notFoundDetail = regexp.MustCompile(`Could not find tweet with ids`)

func (c *Client) PostsByID(ctx context.Context, ids []int64) ([]models.Post, []int64, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(strIDs, ","))
	params.Set("tweet.fields", postFields)
	params.Set("expansions", "referenced_tweets.id,author_id")

	wire, err := c.get(ctx, "/tweets", params)
	if err != nil {
		return nil, nil, err
	}

	var missing []int64
	for _, we := range wire.Errors {
		if notFoundDetail.MatchString(we.Detail) {
			if id, perr := strconv.ParseInt(we.Value, 10, 64); perr == nil {
				missing = append(missing, id)
			}
		}
	}

	page, err := c.toPage(wire)
	if err != nil {
		return nil, nil, err
	}
	return page.Posts, missing, nil
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*models.FeedUser, error) {
	endpoint := "/users/by/username/" + url.PathEscape(username)
	params := url.Values{}
	params.Set("user.fields", "description")

	body, err := c.getRaw(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	// The single-user endpoint wraps one object rather than an array.
	var wire struct {
		Data wireUser `json:"data"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if wire.Data.ID == "" {
		return nil, &APIError{Endpoint: endpoint, Message: "user not found: " + username}
	}

	return convertUser(wire.Data)
}

func (c *Client) toPage(wire *wireResponse) (*Page, error) {
	page := &Page{
		NextToken: wire.Meta.NextToken,
		Users:     make(map[int64]models.FeedUser),
	}

	for _, wp := range wire.Data {
		post, err := convertPost(wp)
		if err != nil {
			log.Warn().Err(err).Str("id", wp.ID).Msg("skipping malformed post")
			continue
		}
		page.Posts = append(page.Posts, post)
	}

	for _, wu := range wire.Includes.Users {
		user, err := convertUser(wu)
		if err != nil {
			log.Warn().Err(err).Str("id", wu.ID).Msg("skipping malformed user")
			continue
		}
		page.Users[user.ID] = *user
	}

	return page, nil
}

func convertPost(wp wirePost) (models.Post, error) {
	id, err := strconv.ParseInt(wp.ID, 10, 64)
	if err != nil {
		return models.Post{}, fmt.Errorf("parse post id %q: %w", wp.ID, err)
	}

	post := models.Post{
		ID:             id,
		Text:           wp.Text,
		PublicMetrics:  wp.PublicMetrics,
		PrivateMetrics: wp.NonPublicMetrics,
		HasAttachment:  wp.Attachments != nil && len(wp.Attachments.MediaKeys) > 0,
	}

	if wp.NoteTweet != nil {
		post.NoteText = wp.NoteTweet.Text
	}
	if wp.AuthorID != "" {
		post.AuthorID, _ = strconv.ParseInt(wp.AuthorID, 10, 64)
	}
	if wp.ConversationID != "" {
		post.ConversationID, _ = strconv.ParseInt(wp.ConversationID, 10, 64)
	}
	if wp.InReplyToUserID != "" {
		post.ReplyToUserID, _ = strconv.ParseInt(wp.InReplyToUserID, 10, 64)
	}
	if wp.CreatedAt != "" {
		if t, terr := time.Parse(time.RFC3339, wp.CreatedAt); terr == nil {
			post.CreatedAt = t
		}
	}

	for _, ref := range wp.ReferencedTweets {
		refID, perr := strconv.ParseInt(ref.ID, 10, 64)
		if perr != nil {
			continue
		}
		post.References = append(post.References, models.PostReference{Type: ref.Type, ID: refID})
	}

	return post, nil
}

func convertUser(wu wireUser) (*models.FeedUser, error) {
	id, err := strconv.ParseInt(wu.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", wu.ID, err)
	}
	return &models.FeedUser{ID: id, Username: wu.Username, Description: wu.Description}, nil
}
