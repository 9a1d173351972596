// Package classify calls the external interesting/uninteresting topic
// classifier.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/replypilot/internal/logging"
	"github.com/replypilot/internal/retry"
)

var log = logging.Component("classify")

// LabelInteresting is the classifier label that gates a post into the
// reply pipeline.
const LabelInteresting = "interesting_topic"

// Prediction is one classification result.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// IsInteresting reports whether the post should get a reply drafted.
func (p Prediction) IsInteresting() bool {
	return p.Label == LabelInteresting
}

// Classifier predicts a topic label for a post.
type Classifier interface {
	Classify(ctx context.Context, post string) (Prediction, error)
}

// Client calls a hosted classification model over HTTP.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewClient(url, apiKey string) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type classifyRequest struct {
	Inputs []string `json:"inputs"`
}

type classifyResponse struct {
	Classifications []Prediction `json:"classifications"`
}

// Classify predicts a label for one post, retrying transient upstream
// failures with the default backoff.
func (c *Client) Classify(ctx context.Context, post string) (Prediction, error) {
	var pred Prediction
	var permanent error
	result := retry.WithBackoff(ctx, retry.DefaultConfig(), log, func() error {
		p, err := c.classifyOnce(ctx, post)
		if err != nil {
			if retry.IsRetryableError(err) {
				return err
			}
			permanent = err
			return nil
		}
		pred = p
		return nil
	})
	if permanent != nil {
		return Prediction{}, permanent
	}
	if !result.Success {
		return Prediction{}, result.LastError
	}
	return pred, nil
}

func (c *Client) classifyOnce(ctx context.Context, post string) (Prediction, error) {
	body, err := json.Marshal(classifyRequest{Inputs: []string{post}})
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out classifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Prediction{}, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if len(out.Classifications) == 0 {
		return Prediction{}, fmt.Errorf("classifier returned no predictions")
	}

	pred := out.Classifications[0]
	log.Debug().Str("label", pred.Label).Float64("confidence", pred.Confidence).Msg("classified post")
	return pred, nil
}
