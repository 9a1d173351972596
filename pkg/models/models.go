package models

import (
	"time"
)

// Post represents one raw item fetched from the social feed API.
// IDs are monotonically increasing and double as the ordering key
// for cursor bookkeeping.
type Post struct {
	ID             int64            `json:"id"`
	AuthorID       int64            `json:"author_id"`
	Text           string           `json:"text"`
	NoteText       string           `json:"note_text,omitempty"` // long-form text, preferred over Text when present
	CreatedAt      time.Time        `json:"created_at"`
	ConversationID int64            `json:"conversation_id"`
	PublicMetrics  map[string]int64 `json:"public_metrics,omitempty"`
	PrivateMetrics map[string]int64 `json:"private_metrics,omitempty"` // impressions etc., not always available
	ReplyToUserID  int64            `json:"in_reply_to_user_id,omitempty"`
	References     []PostReference  `json:"referenced_posts,omitempty"`
	HasAttachment  bool             `json:"has_attachment,omitempty"`
}

// PostReference links a post to another post it replies to or quotes.
type PostReference struct {
	Type string `json:"type"` // "replied_to", "quoted", "retweeted"
	ID   int64  `json:"id"`
}

// Reference relation types as reported by the feed API.
const (
	RefRepliedTo = "replied_to"
	RefQuoted    = "quoted"
)

// BodyText returns the post text, preferring the long-form variant
// when the API supplied one.
func (p *Post) BodyText() string {
	if p.NoteText != "" {
		return p.NoteText
	}
	return p.Text
}

// RepliedToID returns the id of the post this one replies to, or 0.
func (p *Post) RepliedToID() int64 {
	for _, ref := range p.References {
		if ref.Type == RefRepliedTo {
			return ref.ID
		}
	}
	return 0
}

// IsReply reports whether the post references another post as its parent.
func (p *Post) IsReply() bool {
	return p.RepliedToID() != 0
}

// FeedUser is the author information returned alongside list pages.
type FeedUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Description string `json:"description,omitempty"`
}

// ProcessedDocument is the output of thread reconstruction: either a
// standalone post or a merged multi-post thread, reduced to a single
// logical document.
type ProcessedDocument struct {
	ConversationID int64            `json:"conversation_id"`
	Text           string           `json:"text"`
	CreatedAt      time.Time        `json:"created_at"`
	Metrics        map[string]int64 `json:"metrics"`
	PostIDs        []string         `json:"post_ids"` // newest first; PostIDs[0] is the primary id
	IsThread       bool             `json:"is_thread"`
	AuthorID       int64            `json:"author_id"`
}

// PrimaryID returns the newest member post id, the document's identity
// in the relevance index.
func (d *ProcessedDocument) PrimaryID() string {
	if len(d.PostIDs) == 0 {
		return ""
	}
	return d.PostIDs[0]
}

// IndexedDocument is a document reduced to the shape the relevance
// index accepts: stable string id, embeddable text, flat metadata.
type IndexedDocument struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// RetrievedMatch is one nearest-neighbor result from the relevance
// index. CombinedScore is filled in by the reranker.
type RetrievedMatch struct {
	ID            string         `json:"id"`
	Score         float64        `json:"score"` // cosine similarity in [0,1]
	Metadata      map[string]any `json:"metadata"`
	CombinedScore float64        `json:"combined_score,omitempty"`
}

// ReplyCandidate is one generated reply idea with its confidence score
// and the historical examples that back it.
type ReplyCandidate struct {
	Text            string         `json:"text"`
	ConfidenceScore float64        `json:"confidence_score"`
	TopExamples     []ReplyExample `json:"top_examples,omitempty"`
}

// ReplyExample is a historical reply (with the post it answered) used
// as a stylistic exemplar during refinement.
type ReplyExample struct {
	OriginalPost string  `json:"original_post"`
	Reply        string  `json:"reply"`
	Score        float64 `json:"score"`
	Engagements  int64   `json:"engagements"`
}

// ReplyResult is the final output of the reply generation pipeline.
type ReplyResult struct {
	RankedIdeas string         `json:"ranked_ideas"` // "score: text" lines, best first
	Examples    []ReplyExample `json:"examples"`
	FinalReply  string         `json:"final_reply"`
}

// JobStatus is the state of an asynchronously spawned unit of work.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobReady   JobStatus = "ready"
)

// JobResult is the poll response for a spawned job.
type JobResult struct {
	CallID string    `json:"call_id"`
	Status JobStatus `json:"status"`
	Result []byte    `json:"result,omitempty"` // JSON payload, present when Status is JobReady
}

// ListState holds the per-list engagement cursor and routing target.
type ListState struct {
	ID             string `json:"id"`
	SlackChannelID string `json:"slack_channel_id"`
	LatestPostID   int64  `json:"latest_post_id"`
}

// UserState groups the monitored lists of one account.
type UserState struct {
	Lists map[string]ListState `json:"lists"`
}

// CursorDocument is the full nested cursor mapping, read in full and
// mutated in memory during a cycle. Persistence is per-key atomic.
type CursorDocument struct {
	Users map[string]UserState `json:"users"`
}

// HarvestResult is the payload produced by a timeline harvest job:
// thread-merged own posts plus reply/original pairs, ready for upsert.
type HarvestResult struct {
	Posts        []IndexedDocument `json:"posts"`
	Replies      []IndexedDocument `json:"replies"`
	LatestPostID int64             `json:"latest_post_id"`
}

// ListCrawlResult is the payload produced by a list crawl job.
type ListCrawlResult struct {
	Documents    []IndexedDocument  `json:"documents"`
	Users        map[int64]FeedUser `json:"users"`
	LatestPostID int64              `json:"latest_post_id"`
}
