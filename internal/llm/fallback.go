package llm

import (
	"context"
	"fmt"
)

// FallbackGenerator tries the primary generator and transparently
// falls back to the secondary with the same prompt when the primary
// call fails. This is the only retry behavior in the generation path.
type FallbackGenerator struct {
	primary  Generator
	fallback Generator
}

func NewFallbackGenerator(primary, fallback Generator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, fallback: fallback}
}

func (g *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := g.primary.Generate(ctx, prompt)
	if err == nil {
		return response, nil
	}

	log.Warn().
		Err(err).
		Str("primary", g.primary.Name()).
		Str("fallback", g.fallback.Name()).
		Msg("primary model failed, invoking fallback")

	response, fbErr := g.fallback.Generate(ctx, prompt)
	if fbErr != nil {
		return "", fmt.Errorf("primary failed (%v), fallback failed: %w", err, fbErr)
	}
	return response, nil
}

func (g *FallbackGenerator) Name() string {
	return g.primary.Name() + "+" + g.fallback.Name()
}
