package index

import (
	"context"
	"testing"

	"github.com/replypilot/pkg/models"
)

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i]))}
	}
	return vectors, nil
}

type fakeStore struct {
	vectors map[string]map[string]Vector // index -> id -> vector
	queried []string
	matches []models.RetrievedMatch
}

func newFakeStore() *fakeStore {
	return &fakeStore{vectors: make(map[string]map[string]Vector)}
}

func (f *fakeStore) Upsert(ctx context.Context, indexName string, vectors []Vector) error {
	idx := f.vectors[indexName]
	if idx == nil {
		idx = make(map[string]Vector)
		f.vectors[indexName] = idx
	}
	for _, v := range vectors {
		idx[v.ID] = v
	}
	return nil
}

func (f *fakeStore) Query(ctx context.Context, indexName string, vector []float32, topK int) ([]models.RetrievedMatch, error) {
	f.queried = append(f.queried, indexName)
	return f.matches, nil
}

func TestUpsertDocumentsIsIdempotentByID(t *testing.T) {
	store := newFakeStore()
	client := NewClient(&fakeEmbedder{}, store)

	docs := []models.IndexedDocument{
		{ID: "7", Text: "first version", Metadata: map[string]any{"likes": int64(1)}},
	}
	if err := client.UpsertDocuments(context.Background(), "posts", docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	docs[0].Text = "second version"
	docs[0].Metadata = map[string]any{"likes": int64(2)}
	if err := client.UpsertDocuments(context.Background(), "posts", docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := store.vectors["posts"]
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored vector, got %d", len(stored))
	}
	if stored["7"].Metadata["likes"] != int64(2) {
		t.Errorf("re-upsert did not overwrite metadata: %v", stored["7"].Metadata)
	}
}

func TestUpsertDocumentsEmptyBatchSkipsRemoteCalls(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	client := NewClient(embedder, store)

	if err := client.UpsertDocuments(context.Background(), "posts", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(embedder.calls) != 0 {
		t.Error("expected no embedding calls for an empty batch")
	}
}

func TestSearchEmbedsQueryText(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	store.matches = []models.RetrievedMatch{{ID: "9", Score: 0.8}}
	client := NewClient(embedder, store)

	matches, err := client.Search(context.Background(), "replies", "growth tactics", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(embedder.calls) != 1 || embedder.calls[0][0] != "growth tactics" {
		t.Errorf("query text not embedded: %v", embedder.calls)
	}
	if len(store.queried) != 1 || store.queried[0] != "replies" {
		t.Errorf("wrong index queried: %v", store.queried)
	}
	if len(matches) != 1 || matches[0].ID != "9" {
		t.Errorf("unexpected matches %+v", matches)
	}
}
