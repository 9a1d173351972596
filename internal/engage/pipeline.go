package engage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/replypilot/internal/config"
	"github.com/replypilot/internal/llm"
	"github.com/replypilot/internal/logging"
	"github.com/replypilot/internal/rank"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("engage")

// Scoring constants for the candidate-scoring stage. Engagement is
// weighted over similarity because the question at that point is
// "what performed well before", not "what matches the topic".
const (
	scoreSimilarityWeight  = 0.3
	scoreEngagementWeight  = 0.7
	scoreDecayHalfLifeDays = 30
	scoreRetrievalDepth    = 30
	scoreAveragingDepth    = 5
	exemplarCount          = 3
	ideaSelectionCount     = 3
	contextRetrievalDepth  = 10
)

// Retriever looks up nearest neighbors in a named index.
type Retriever interface {
	Search(ctx context.Context, indexName, query string, topK int) ([]models.RetrievedMatch, error)
}

// Pipeline generates a reply to a target post in five ordered stages:
// summarize retrieved context, derive reply ideas, score each idea
// against historical reply performance, refine the best idea, return.
// A stage failure aborts the whole invocation; no partial reply is
// ever returned.
type Pipeline struct {
	summarizer Generator
	strategist Generator
	refiner    Generator
	retriever  Retriever
	persona    config.Persona
	postsIndex string
	replyIndex string
	now        func() time.Time
}

// Generator matches llm.Generator; redeclared locally so tests can
// stub stages without importing provider wiring.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Target is the post a reply is being generated for.
type Target struct {
	Post       string
	AuthorName string
	AuthorBio  string
}

type PipelineConfig struct {
	Summarizer Generator
	Strategist Generator
	Refiner    Generator
	Retriever  Retriever
	Persona    config.Persona
	PostsIndex string
	ReplyIndex string
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		summarizer: cfg.Summarizer,
		strategist: cfg.Strategist,
		refiner:    cfg.Refiner,
		retriever:  cfg.Retriever,
		persona:    cfg.Persona,
		postsIndex: cfg.PostsIndex,
		replyIndex: cfg.ReplyIndex,
		now:        time.Now,
	}
}

// Run executes the full pipeline for one target post.
func (p *Pipeline) Run(ctx context.Context, target Target) (*models.ReplyResult, error) {
	pastPosts, err := p.retriever.Search(ctx, p.postsIndex, target.Post, contextRetrievalDepth)
	if err != nil {
		return nil, fmt.Errorf("context retrieval from %s failed: %w", p.postsIndex, err)
	}
	pastReplies, err := p.retriever.Search(ctx, p.replyIndex, target.Post, contextRetrievalDepth)
	if err != nil {
		return nil, fmt.Errorf("context retrieval from %s failed: %w", p.replyIndex, err)
	}

	summary, err := p.summarize(ctx, target.Post, pastPosts, pastReplies)
	if err != nil {
		return nil, err
	}

	ideas, err := p.strategize(ctx, target, summary)
	if err != nil {
		return nil, err
	}
	if len(ideas) == 0 {
		return nil, fmt.Errorf("strategist returned no reply ideas")
	}

	candidates, err := p.scoreCandidates(ctx, ideas)
	if err != nil {
		return nil, err
	}

	return p.refine(ctx, target, candidates)
}

// summarize condenses retrieved past content. No fallback model here;
// a failure aborts the run.
func (p *Pipeline) summarize(ctx context.Context, targetPost string, pastPosts, pastReplies []models.RetrievedMatch) (string, error) {
	prompt := summaryPrompt(targetPost, formatPostMatches(pastPosts), formatReplyMatches(pastReplies))
	raw, err := p.summarizer.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize stage failed: %w", err)
	}

	var out struct {
		Summary string `json:"summary"`
	}
	if err := llm.ParseStructured(raw, &out); err != nil {
		return "", fmt.Errorf("summarize stage returned malformed output: %w", err)
	}
	return out.Summary, nil
}

func (p *Pipeline) strategize(ctx context.Context, target Target, summary string) ([]string, error) {
	bio := fmt.Sprintf("Name: %s\nBio: %s", target.AuthorName, target.AuthorBio)
	prompt := strategyPrompt(target.Post, bio, p.persona, summary)

	raw, err := p.strategist.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("strategize stage failed: %w", err)
	}

	var out struct {
		ReplyIdeas []string `json:"reply_ideas"`
	}
	if err := llm.ParseStructured(raw, &out); err != nil {
		return nil, fmt.Errorf("strategize stage returned malformed output: %w", err)
	}
	return out.ReplyIdeas, nil
}

// scoreCandidates scores each idea by re-querying the reply index
// with the idea text itself and averaging the reranked top matches.
func (p *Pipeline) scoreCandidates(ctx context.Context, ideas []string) ([]models.ReplyCandidate, error) {
	candidates := make([]models.ReplyCandidate, 0, len(ideas))

	for _, idea := range ideas {
		matches, err := p.retriever.Search(ctx, p.replyIndex, idea, scoreRetrievalDepth)
		if err != nil {
			return nil, fmt.Errorf("candidate scoring retrieval failed: %w", err)
		}

		ranked := rank.RerankWithDecay(matches, scoreSimilarityWeight, scoreEngagementWeight, scoreDecayHalfLifeDays, p.now())
		if len(ranked) > scoreAveragingDepth {
			ranked = ranked[:scoreAveragingDepth]
		}

		confidence := 0.0
		if len(ranked) > 0 {
			for _, m := range ranked {
				confidence += m.CombinedScore
			}
			confidence = math.Round(confidence/float64(len(ranked))*100) / 100
		}

		examples := make([]models.ReplyExample, 0, exemplarCount)
		for _, m := range ranked {
			if len(examples) == exemplarCount {
				break
			}
			examples = append(examples, models.ReplyExample{
				OriginalPost: metadataString(m.Metadata, "original_post"),
				Reply:        metadataString(m.Metadata, "reply"),
				Score:        m.CombinedScore,
				Engagements:  int64(metadataNumber(m.Metadata, "reply_engagements")),
			})
		}

		candidates = append(candidates, models.ReplyCandidate{
			Text:            idea,
			ConfidenceScore: confidence,
			TopExamples:     examples,
		})
	}

	// Best candidate first. Stable so equal scores keep the
	// strategist's original preference.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ConfidenceScore > candidates[j].ConfidenceScore
	})
	return candidates, nil
}

// refine rewrites the best candidate into the final reply, grounded in
// the exemplars that backed it.
func (p *Pipeline) refine(ctx context.Context, target Target, candidates []models.ReplyCandidate) (*models.ReplyResult, error) {
	selected := candidates
	if len(selected) > ideaSelectionCount {
		selected = selected[:ideaSelectionCount]
	}

	lines := make([]string, len(selected))
	for i, c := range selected {
		lines[i] = fmt.Sprintf("%.2f: %s", c.ConfidenceScore, c.Text)
	}
	rankedIdeas := strings.Join(lines, "\n---\n")

	best := candidates[0]
	exemplars := formatExamples(best.TopExamples)

	raw, err := p.refiner.Generate(ctx, refinementPrompt(target.Post, rankedIdeas, exemplars))
	if err != nil {
		return nil, fmt.Errorf("refine stage failed: %w", err)
	}

	var out struct {
		RefinedReply string `json:"refined_reply"`
	}
	if err := llm.ParseStructured(raw, &out); err != nil {
		return nil, fmt.Errorf("refine stage returned malformed output: %w", err)
	}

	log.Info().
		Float64("confidence", best.ConfidenceScore).
		Int("candidates", len(candidates)).
		Msg("generated refined reply")

	return &models.ReplyResult{
		RankedIdeas: rankedIdeas,
		Examples:    best.TopExamples,
		FinalReply:  out.RefinedReply,
	}, nil
}

func metadataNumber(metadata map[string]any, key string) float64 {
	switch v := metadata[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
