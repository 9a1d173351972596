package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/replypilot/internal/classify"
	"github.com/replypilot/internal/engage"
	"github.com/replypilot/pkg/models"
)

type fakeOrchestrator struct {
	results map[string][]byte // call ids double as list ids/usernames here
	failFor map[string]bool
	spawned []string
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{results: map[string][]byte{}, failFor: map[string]bool{}}
}

func (f *fakeOrchestrator) SpawnHarvest(ctx context.Context, username string, latestPostID int64) (string, error) {
	f.spawned = append(f.spawned, username)
	return username, nil
}

func (f *fakeOrchestrator) SpawnListCrawl(ctx context.Context, listID string, cursor int64) (string, error) {
	f.spawned = append(f.spawned, listID)
	return listID, nil
}

func (f *fakeOrchestrator) AwaitResult(ctx context.Context, callID string) ([]byte, error) {
	if f.failFor[callID] {
		return nil, errors.New("job never completed")
	}
	return f.results[callID], nil
}

type fakeCursorStore struct {
	doc      models.CursorDocument
	advanced map[string]int64
}

func (f *fakeCursorStore) Load(ctx context.Context, username string) (models.CursorDocument, error) {
	return f.doc, nil
}

func (f *fakeCursorStore) Advance(ctx context.Context, username, listName string, newLatest int64) error {
	if f.advanced == nil {
		f.advanced = map[string]int64{}
	}
	f.advanced[listName] = newLatest
	return nil
}

type fakeClassifier struct {
	interesting map[string]bool
}

func (f *fakeClassifier) Classify(ctx context.Context, post string) (classify.Prediction, error) {
	label := "uninteresting_topic"
	if f.interesting[post] {
		label = classify.LabelInteresting
	}
	return classify.Prediction{Label: label, Confidence: 0.9}, nil
}

type fakeGenerator struct {
	err  error
	runs []string
}

func (f *fakeGenerator) Run(ctx context.Context, target engage.Target) (*models.ReplyResult, error) {
	f.runs = append(f.runs, target.Post)
	if f.err != nil {
		return nil, f.err
	}
	return &models.ReplyResult{FinalReply: "draft for " + target.Post}, nil
}

type fakeNotifier struct {
	replies []string
	labels  []string
}

func (f *fakeNotifier) NotifyReply(ctx context.Context, channelID string, authorID, postID int64, result *models.ReplyResult) error {
	f.replies = append(f.replies, result.FinalReply)
	return nil
}

func (f *fakeNotifier) NotifyClassification(ctx context.Context, channelID, post, label string) error {
	f.labels = append(f.labels, label)
	return nil
}

type fakeIndexer struct {
	upserts map[string]int
	err     error
}

func (f *fakeIndexer) UpsertDocuments(ctx context.Context, indexName string, docs []models.IndexedDocument) error {
	if f.err != nil {
		return f.err
	}
	if f.upserts == nil {
		f.upserts = map[string]int{}
	}
	f.upserts[indexName] += len(docs)
	return nil
}

func cursorDoc(lists map[string]models.ListState) models.CursorDocument {
	return models.CursorDocument{Users: map[string]models.UserState{
		"markus": {Lists: lists},
	}}
}

func crawlPayload(t *testing.T, result models.ListCrawlResult) []byte {
	t.Helper()
	payload, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

func newTestRunner(o Orchestrator, c CursorStore, cl classify.Classifier, g ReplyGenerator, n *fakeNotifier, ix Indexer) *Runner {
	return NewRunner(RunnerConfig{
		Orchestrator: o,
		Cursors:      c,
		Classifier:   cl,
		Generator:    g,
		Notifier:     n,
		Indexer:      ix,
		Username:     "markus",
		PostsIndex:   "posts",
		ReplyIndex:   "replies",
	})
}

func TestRunEngageAdvancesCursorAndNotifies(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.results["42"] = crawlPayload(t, models.ListCrawlResult{
		Documents: []models.IndexedDocument{
			{ID: "103", Text: "interesting post", Metadata: map[string]any{"author_id": float64(7)}},
			{ID: "101", Text: "boring post", Metadata: map[string]any{"author_id": float64(8)}},
		},
		Users:        map[int64]models.FeedUser{7: {ID: 7, Username: "alice", Description: "builder"}},
		LatestPostID: 103,
	})
	cursors := &fakeCursorStore{doc: cursorDoc(map[string]models.ListState{
		"founders": {ID: "42", SlackChannelID: "C1", LatestPostID: 100},
	})}
	classifier := &fakeClassifier{interesting: map[string]bool{"interesting post": true}}
	generator := &fakeGenerator{}
	notifier := &fakeNotifier{}

	err := newTestRunner(orch, cursors, classifier, generator, notifier, &fakeIndexer{}).
		RunEngage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cursors.advanced["founders"] != 103 {
		t.Errorf("expected cursor advanced to 103, got %d", cursors.advanced["founders"])
	}
	if len(generator.runs) != 1 || generator.runs[0] != "interesting post" {
		t.Errorf("expected one pipeline run for the interesting post, got %v", generator.runs)
	}
	if len(notifier.replies) != 1 {
		t.Errorf("expected one slack draft, got %d", len(notifier.replies))
	}
	if len(notifier.labels) != 2 {
		t.Errorf("expected both classifier decisions surfaced, got %d", len(notifier.labels))
	}
}

func TestRunEngageNoConfiguredLists(t *testing.T) {
	cursors := &fakeCursorStore{doc: cursorDoc(nil)}

	err := newTestRunner(newFakeOrchestrator(), cursors, &fakeClassifier{}, &fakeGenerator{}, &fakeNotifier{}, &fakeIndexer{}).
		RunEngage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cursors.advanced) != 0 {
		t.Errorf("no cursor should move, got %v", cursors.advanced)
	}
}

func TestRunEngageFailedListDoesNotAbortOthers(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.failFor["42"] = true
	orch.results["43"] = crawlPayload(t, models.ListCrawlResult{LatestPostID: 250})
	cursors := &fakeCursorStore{doc: cursorDoc(map[string]models.ListState{
		"broken":  {ID: "42", LatestPostID: 100},
		"healthy": {ID: "43", LatestPostID: 200},
	})}

	err := newTestRunner(orch, cursors, &fakeClassifier{}, &fakeGenerator{}, &fakeNotifier{}, &fakeIndexer{}).
		RunEngage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, moved := cursors.advanced["broken"]; moved {
		t.Error("failed list's cursor must not advance")
	}
	if cursors.advanced["healthy"] != 250 {
		t.Errorf("healthy list should advance to 250, got %d", cursors.advanced["healthy"])
	}
}

func TestRunEngageGenerationFailureSkipsItemButKeepsCursor(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.results["42"] = crawlPayload(t, models.ListCrawlResult{
		Documents: []models.IndexedDocument{
			{ID: "103", Text: "interesting post", Metadata: map[string]any{"author_id": float64(7)}},
		},
		LatestPostID: 103,
	})
	cursors := &fakeCursorStore{doc: cursorDoc(map[string]models.ListState{
		"founders": {ID: "42", LatestPostID: 100},
	})}
	classifier := &fakeClassifier{interesting: map[string]bool{"interesting post": true}}
	generator := &fakeGenerator{err: errors.New("both models down")}
	notifier := &fakeNotifier{}

	err := newTestRunner(orch, cursors, classifier, generator, notifier, &fakeIndexer{}).
		RunEngage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cursors.advanced["founders"] != 103 {
		t.Errorf("cursor should advance once the max id is known, got %d", cursors.advanced["founders"])
	}
	if len(notifier.replies) != 0 {
		t.Error("no draft should be routed when generation fails")
	}
}

func TestRunHarvestUpsertsBeforeAdvancing(t *testing.T) {
	orch := newFakeOrchestrator()
	harvestPayload, _ := json.Marshal(models.HarvestResult{
		Posts:        []models.IndexedDocument{{ID: "7", Text: "own post"}},
		Replies:      []models.IndexedDocument{{ID: "8", Text: "own reply"}},
		LatestPostID: 8,
	})
	orch.results["markus"] = harvestPayload
	cursors := &fakeCursorStore{doc: cursorDoc(map[string]models.ListState{
		TimelineList: {LatestPostID: 5},
	})}
	indexer := &fakeIndexer{}

	err := newTestRunner(orch, cursors, &fakeClassifier{}, &fakeGenerator{}, &fakeNotifier{}, indexer).
		RunHarvest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if indexer.upserts["posts"] != 1 || indexer.upserts["replies"] != 1 {
		t.Errorf("expected upserts into both indices, got %v", indexer.upserts)
	}
	if cursors.advanced[TimelineList] != 8 {
		t.Errorf("expected timeline cursor advanced to 8, got %d", cursors.advanced[TimelineList])
	}
}

func TestRunHarvestUpsertFailureKeepsCursor(t *testing.T) {
	orch := newFakeOrchestrator()
	harvestPayload, _ := json.Marshal(models.HarvestResult{
		Posts:        []models.IndexedDocument{{ID: "7", Text: "own post"}},
		LatestPostID: 8,
	})
	orch.results["markus"] = harvestPayload
	cursors := &fakeCursorStore{doc: cursorDoc(map[string]models.ListState{
		TimelineList: {LatestPostID: 5},
	})}
	indexer := &fakeIndexer{err: errors.New("store unavailable")}

	err := newTestRunner(orch, cursors, &fakeClassifier{}, &fakeGenerator{}, &fakeNotifier{}, indexer).
		RunHarvest(context.Background())
	if err == nil {
		t.Fatal("expected an error from the failed upsert")
	}
	if _, moved := cursors.advanced[TimelineList]; moved {
		t.Error("cursor must not advance when indexing fails")
	}
}
