package thread

import (
	"sort"
	"strconv"
	"strings"

	"github.com/replypilot/internal/logging"
	"github.com/replypilot/pkg/models"
)

var log = logging.Component("thread")

// GroupAndMerge reconstructs conversations from a flat batch of posts.
// Posts sharing a conversation id are merged into one document: texts
// concatenated oldest to newest, metrics summed across all members.
// A single-post conversation passes through with its own text and
// metrics. The returned latest id is the maximum post id observed, or
// the given latestPostID when the batch contains nothing newer.
func GroupAndMerge(posts []models.Post, latestPostID int64) ([]models.ProcessedDocument, int64) {
	threads := make(map[int64][]models.Post)
	newLatest := latestPostID

	for _, p := range posts {
		threads[p.ConversationID] = append(threads[p.ConversationID], p)
		if p.ID > newLatest {
			newLatest = p.ID
		}
	}

	docs := make([]models.ProcessedDocument, 0, len(threads))
	for convID, members := range threads {
		sort.Slice(members, func(i, j int) bool { return members[i].ID > members[j].ID })

		if len(members) > 1 {
			docs = append(docs, mergeThread(convID, members))
			log.Debug().Int64("conversation_id", convID).Int("posts", len(members)).Msg("merged thread")
			continue
		}

		p := members[0]
		docs = append(docs, models.ProcessedDocument{
			ConversationID: convID,
			Text:           p.BodyText(),
			CreatedAt:      p.CreatedAt,
			Metrics:        sumMetrics(members),
			PostIDs:        []string{strconv.FormatInt(p.ID, 10)},
			IsThread:       false,
			AuthorID:       p.AuthorID,
		})
	}

	// Most recent conversation first.
	sort.Slice(docs, func(i, j int) bool {
		a, _ := strconv.ParseInt(docs[i].PrimaryID(), 10, 64)
		b, _ := strconv.ParseInt(docs[j].PrimaryID(), 10, 64)
		return a > b
	})

	return docs, newLatest
}

// mergeThread collapses a descending-sorted conversation into one
// document. Texts read oldest to newest; the id list stays newest
// first so PostIDs[0] is the document's index identity.
func mergeThread(convID int64, members []models.Post) models.ProcessedDocument {
	texts := make([]string, 0, len(members))
	ids := make([]string, 0, len(members))
	for i := len(members) - 1; i >= 0; i-- {
		texts = append(texts, members[i].BodyText())
	}
	for _, m := range members {
		ids = append(ids, strconv.FormatInt(m.ID, 10))
	}

	return models.ProcessedDocument{
		ConversationID: convID,
		Text:           strings.Join(texts, "\n\n"),
		CreatedAt:      members[0].CreatedAt,
		Metrics:        sumMetrics(members),
		PostIDs:        ids,
		IsThread:       true,
		AuthorID:       members[0].AuthorID,
	}
}

func sumMetrics(members []models.Post) map[string]int64 {
	total := make(map[string]int64)
	for _, m := range members {
		for k, v := range m.PublicMetrics {
			total[k] += v
		}
		for k, v := range m.PrivateMetrics {
			total[k] += v
		}
	}
	return total
}

// ToIndexedDocuments flattens processed documents into the id/text/
// metadata shape the relevance index accepts.
func ToIndexedDocuments(docs []models.ProcessedDocument) []models.IndexedDocument {
	out := make([]models.IndexedDocument, 0, len(docs))
	for _, d := range docs {
		metadata := map[string]any{
			"text":       d.Text,
			"created_at": d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"is_thread":  d.IsThread,
			"author_id":  d.AuthorID,
		}
		for k, v := range d.Metrics {
			metadata[k] = v
		}
		out = append(out, models.IndexedDocument{
			ID:       d.PrimaryID(),
			Text:     d.Text,
			Metadata: metadata,
		})
	}
	return out
}
