package engage

import (
	"fmt"
	"strings"

	"github.com/replypilot/internal/config"
	"github.com/replypilot/pkg/models"
)

const summaryPromptTemplate = `You are analyzing past social media content to prepare a reply to a new post.

<target_post>
%s
</target_post>

<our_past_posts>
%s
</our_past_posts>

<our_past_replies>
%s
</our_past_replies>

Summarize the themes, opinions, and expertise from our past content that are
relevant to the target post. Respond with JSON: {"summary": "..."}`

const strategyPromptTemplate = `You are drafting reply angles for a social media account.

<influencer_post>
%s
</influencer_post>

<influencer_bio>
%s
</influencer_bio>

<our_audience>
%s
</our_audience>

<content_strategy>
%s
</content_strategy>

<past_content_summary>
%s
</past_content_summary>

Propose distinct reply ideas that add genuine value to the conversation and
fit our audience and strategy. Respond with JSON: {"reply_ideas": ["...", "..."]}`

const refinementPromptTemplate = `You are polishing a social media reply.

<original_post>
%s
</original_post>

<reply_drafts>
%s
</reply_drafts>

<example_replies>
%s
</example_replies>

Rewrite the best draft into one final reply, matching the tone and length of
the example replies. Respond with JSON: {"refined_reply": "..."}`

func summaryPrompt(targetPost, pastPosts, pastReplies string) string {
	return fmt.Sprintf(summaryPromptTemplate, targetPost, pastPosts, pastReplies)
}

func strategyPrompt(targetPost, authorBio string, persona config.Persona, summary string) string {
	return fmt.Sprintf(strategyPromptTemplate, targetPost, authorBio,
		persona.Audience, persona.ContentStrategy, summary)
}

func refinementPrompt(targetPost, drafts, exemplars string) string {
	return fmt.Sprintf(refinementPromptTemplate, targetPost, drafts, exemplars)
}

// formatPostMatches renders retrieved own posts for prompt context.
func formatPostMatches(matches []models.RetrievedMatch) string {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "Post %d:\n%s\n%s\n", i+1, metadataString(m.Metadata, "text"), strings.Repeat("-", 50))
	}
	return b.String()
}

// formatReplyMatches renders retrieved reply/original pairs.
func formatReplyMatches(matches []models.RetrievedMatch) string {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "Post %d:\n%s\n%s\nReply %d:\n%s\n%s\n",
			i+1, metadataString(m.Metadata, "original_post"), strings.Repeat("-", 50),
			i+1, metadataString(m.Metadata, "reply"), strings.Repeat("=", 50))
	}
	return b.String()
}

// formatExamples renders scored exemplars for the refinement stage.
func formatExamples(examples []models.ReplyExample) string {
	var b strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&b, "Post %d:\n%s\n%s\nReply %d:\n%s\n%s\n%d engagements\n%s\n",
			i+1, ex.OriginalPost, strings.Repeat("-", 10),
			i+1, ex.Reply, strings.Repeat("-", 10),
			ex.Engagements, strings.Repeat("=", 50))
	}
	return b.String()
}

func metadataString(metadata map[string]any, key string) string {
	s, _ := metadata[key].(string)
	return s
}
