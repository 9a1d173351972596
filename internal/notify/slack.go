// Package notify routes generated replies to the operator's Slack
// channel for approval.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/replypilot/internal/logging"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("notify")

const slackAPIURL = "https://slack.com/api/chat.postMessage"

// Notifier posts reply drafts for human review.
type Notifier interface {
	NotifyReply(ctx context.Context, channelID string, authorID, postID int64, result *models.ReplyResult) error
	NotifyClassification(ctx context.Context, channelID, post, label string) error
}

// SlackNotifier posts messages through the Slack Web API. The draft
// goes out as a root message with the source link and supporting
// examples, then the final reply text as a threaded follow-up so it
// can be copied verbatim.
type SlackNotifier struct {
	token      string
	apiURL     string
	httpClient *http.Client
}

func NewSlackNotifier(token string) *SlackNotifier {
	return &SlackNotifier{
		token:      token,
		apiURL:     slackAPIURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type postMessageRequest struct {
	Channel  string       `json:"channel"`
	Text     string       `json:"text"`
	Blocks   []slackBlock `json:"blocks,omitempty"`
	ThreadTS string       `json:"thread_ts,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error,omitempty"`
}

func section(text string) slackBlock {
	return slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}}
}

func divider() slackBlock {
	return slackBlock{Type: "divider"}
}

// NotifyReply posts the root message and threads the final reply
// under it.
func (n *SlackNotifier) NotifyReply(ctx context.Context, channelID string, authorID, postID int64, result *models.ReplyResult) error {
	blocks := []slackBlock{
		section("Hey future *reply guy*, I found a new interesting post."),
		divider(),
		section(fmt.Sprintf("*New post:*\nhttps://x.com/%d/status/%d", authorID, postID)),
		divider(),
		section(fmt.Sprintf("*Ranked ideas:*\n%s", result.RankedIdeas)),
	}
	for i, ex := range result.Examples {
		blocks = append(blocks, divider(), section(fmt.Sprintf(
			"*Example %d* (score %.2f, %d engagements)\n*Post:*\n%s\n*My reply:*\n%s",
			i+1, ex.Score, ex.Engagements, ex.OriginalPost, ex.Reply)))
	}

	root, err := n.postMessage(ctx, postMessageRequest{
		Channel: channelID,
		Text:    "New post",
		Blocks:  blocks,
	})
	if err != nil {
		return err
	}

	if _, err := n.postMessage(ctx, postMessageRequest{
		Channel:  channelID,
		Text:     result.FinalReply,
		ThreadTS: root.TS,
	}); err != nil {
		return err
	}

	log.Info().Str("channel", channelID).Int64("post_id", postID).Msg("routed reply draft to slack")
	return nil
}

// NotifyClassification posts a classifier decision so the operator
// can correct the label.
func (n *SlackNotifier) NotifyClassification(ctx context.Context, channelID, post, label string) error {
	_, err := n.postMessage(ctx, postMessageRequest{
		Channel: channelID,
		Text:    "Classification",
		Blocks: []slackBlock{
			section(fmt.Sprintf("*Label*: %s", label)),
			divider(),
			section(fmt.Sprintf("*Post:*\n%s", post)),
		},
	})
	return err
}

func (n *SlackNotifier) postMessage(ctx context.Context, msg postMessageRequest) (*postMessageResponse, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read slack response: %w", err)
	}

	var out postMessageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode slack response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("slack rejected message: %s", out.Error)
	}
	return &out, nil
}
