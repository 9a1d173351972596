package thread

import (
	"context"
	"regexp"
	"strconv"

	"github.com/replypilot/pkg/models"
)

// lookupBatchSize is the maximum number of ids the feed API accepts in
// one batched lookup.
const lookupBatchSize = 100

// PostLookup resolves post ids to posts, reporting ids the upstream
// API could not find.
type PostLookup interface {
	PostsByID(ctx context.Context, ids []int64) ([]models.Post, []int64, error)
}

// Pair is a reply matched with the original post it answered.
type Pair struct {
	Reply    models.Post
	Original models.Post
}

// PairWithOriginals resolves each reply's referenced post via batched
// lookups. Replies whose original could not be found are dropped, as
// are replies whose original is itself a reply: only level-1
// interactions against standalone posts go into the reply index.
func PairWithOriginals(ctx context.Context, lookup PostLookup, replies []models.Post) ([]Pair, error) {
	ids := make([]int64, 0, len(replies))
	for _, r := range replies {
		if id := r.RepliedToID(); id != 0 {
			ids = append(ids, id)
		}
	}

	originals := make(map[int64]models.Post, len(ids))
	for start := 0; start < len(ids); start += lookupBatchSize {
		end := start + lookupBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		posts, missing, err := lookup.PostsByID(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			log.Info().Ints64("post_ids", missing).Msg("referenced posts no longer exist, dropping their replies")
		}
		for _, p := range posts {
			originals[p.ID] = p
		}
	}

	pairs := make([]Pair, 0, len(replies))
	for _, r := range replies {
		orig, ok := originals[r.RepliedToID()]
		if !ok {
			continue
		}
		if orig.IsReply() {
			continue
		}
		pairs = append(pairs, Pair{Reply: r, Original: orig})
	}
	return pairs, nil
}

var leadingMention = regexp.MustCompile(`^@\S+\s*`)

// StripLeadingMention removes the reply-addressing handle from the
// front of a reply text.
func StripLeadingMention(text string) string {
	return leadingMention.ReplaceAllString(text, "")
}

// BuildReplyDocuments converts reply/original pairs into indexable
// documents. Each document is keyed by the reply id and carries the
// paired original post in its metadata so retrieval can show what the
// reply answered.
func BuildReplyDocuments(pairs []Pair, latestPostID int64) ([]models.IndexedDocument, int64) {
	newLatest := latestPostID
	docs := make([]models.IndexedDocument, 0, len(pairs))

	for _, pair := range pairs {
		metadata := map[string]any{
			"original_post":            pair.Original.BodyText(),
			"original_post_id":         pair.Original.ID,
			"original_post_author_id":  pair.Original.AuthorID,
			"original_post_created_at": pair.Original.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		for k, v := range pair.Original.PublicMetrics {
			metadata["original_post_"+k] = v
		}

		metadata["reply"] = StripLeadingMention(pair.Reply.Text)
		metadata["reply_id"] = pair.Reply.ID
		metadata["reply_created_at"] = pair.Reply.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		for k, v := range pair.Reply.PublicMetrics {
			metadata["reply_"+k] = v
		}
		for k, v := range pair.Reply.PrivateMetrics {
			metadata["reply_"+k] = v
		}

		docs = append(docs, models.IndexedDocument{
			ID:       strconv.FormatInt(pair.Reply.ID, 10),
			Text:     pair.Reply.Text,
			Metadata: metadata,
		})

		if pair.Reply.ID > newLatest {
			newLatest = pair.Reply.ID
		}
	}

	return docs, newLatest
}
