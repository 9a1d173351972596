package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/replypilot/pkg/models"
)

// Vector is one embedded document in store wire format.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Store is the nearest-neighbor vector store. Upsert is idempotent by
// id; re-upserting an id overwrites the stored vector and metadata.
type Store interface {
	Upsert(ctx context.Context, indexName string, vectors []Vector) error
	Query(ctx context.Context, indexName string, vector []float32, topK int) ([]models.RetrievedMatch, error)
}

// HTTPStore talks to a remote vector store over its REST API.
type HTTPStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPStore(baseURL, apiKey string) *HTTPStore {
	return &HTTPStore{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type upsertRequest struct {
	Vectors []Vector `json:"vectors"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

func (s *HTTPStore) Upsert(ctx context.Context, indexName string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	var resp json.RawMessage
	err := s.post(ctx, fmt.Sprintf("/indexes/%s/vectors/upsert", indexName), upsertRequest{Vectors: vectors}, &resp)
	if err != nil {
		return err
	}
	log.Debug().Str("index", indexName).Int("vectors", len(vectors)).Msg("upserted vectors")
	return nil
}

func (s *HTTPStore) Query(ctx context.Context, indexName string, vector []float32, topK int) ([]models.RetrievedMatch, error) {
	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}
	var resp queryResponse
	if err := s.post(ctx, fmt.Sprintf("/indexes/%s/query", indexName), req, &resp); err != nil {
		return nil, err
	}

	matches := make([]models.RetrievedMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, models.RetrievedMatch{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

func (s *HTTPStore) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vector store request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read vector store response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vector store returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode vector store response: %w", err)
		}
	}
	return nil
}
