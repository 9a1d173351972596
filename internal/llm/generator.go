// Package llm wraps the chat-completion providers behind one opaque
// prompt-to-text generation interface.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/replypilot/internal/config"
	"github.com/replypilot/internal/logging"
)

var log = logging.Component("llm")

// Generator produces text from a single prompt. Callers must not
// assume determinism across invocations.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ModelGenerator adapts a langchain model to the Generator interface.
type ModelGenerator struct {
	model       llms.Model
	name        string
	temperature float64
}

// NewGenerator builds a generator for the configured provider. The
// provider string selects the backend; unknown providers are rejected
// at construction rather than at call time.
func NewGenerator(ctx context.Context, cfg config.LLMModel, temperature float64) (*ModelGenerator, error) {
	var model llms.Model
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		model, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		)
	case "anthropic":
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
	case "googleai":
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	return &ModelGenerator{
		model:       model,
		name:        fmt.Sprintf("%s/%s", cfg.Provider, cfg.Model),
		temperature: temperature,
	}, nil
}

func (g *ModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(g.temperature))
	if err != nil {
		return "", fmt.Errorf("generation with %s failed: %w", g.name, err)
	}
	return response, nil
}

func (g *ModelGenerator) Name() string {
	return g.name
}
