// Package index embeds documents and stores them in a semantic
// nearest-neighbor index for later retrieval.
package index

import (
	"context"
	"fmt"

	"github.com/replypilot/internal/logging"
	"github.com/tmc/langchaingo/llms/openai"
)

var log = logging.Component("index")

// Embedder turns texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder embeds through the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	llm *openai.LLM
}

// NewOpenAIEmbedder creates an embedder using the given embedding
// model, e.g. "text-embedding-3-small".
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return &OpenAIEmbedder{llm: llm}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}
	return vectors, nil
}
