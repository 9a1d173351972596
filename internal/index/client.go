package index

import (
	"context"
	"fmt"

	"github.com/replypilot/pkg/models"
)

// Client is the high-level relevance index: it embeds documents and
// queries, delegating storage to a Store.
type Client struct {
	embedder Embedder
	store    Store
}

func NewClient(embedder Embedder, store Store) *Client {
	return &Client{embedder: embedder, store: store}
}

// UpsertDocuments embeds and stores a batch of documents. Documents
// are keyed by their stable post id, so re-upserting after a partial
// failure overwrites rather than duplicates.
func (c *Client) UpsertDocuments(ctx context.Context, indexName string, docs []models.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d documents: %w", len(docs), err)
	}

	payload := make([]Vector, len(docs))
	for i, d := range docs {
		payload[i] = Vector{ID: d.ID, Values: vectors[i], Metadata: d.Metadata}
	}

	if err := c.store.Upsert(ctx, indexName, payload); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", indexName, err)
	}
	log.Info().Str("index", indexName).Int("documents", len(docs)).Msg("indexed documents")
	return nil
}

// Search embeds the query text and returns the nearest stored
// documents, best similarity first.
func (c *Client) Search(ctx context.Context, indexName, query string, topK int) ([]models.RetrievedMatch, error) {
	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := c.store.Query(ctx, indexName, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("query against %s failed: %w", indexName, err)
	}
	return matches, nil
}
