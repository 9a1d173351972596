package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"classifications": [{"label": "interesting_topic", "confidence": 0.93}]}`))
	}))
	defer srv.Close()

	pred, err := NewClient(srv.URL, "key").Classify(context.Background(), "a post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pred.IsInteresting() || pred.Confidence != 0.93 {
		t.Errorf("unexpected prediction: %+v", pred)
	}
	if hits != 1 {
		t.Errorf("expected a single request, got %d", hits)
	}
}

func TestClassifyBadRequestNotRetried(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "key").Classify(context.Background(), "a post")
	if err == nil {
		t.Fatal("expected an error")
	}
	if hits != 1 {
		t.Errorf("a 400 must not be retried, got %d requests", hits)
	}
}

func TestClassifyEmptyPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"classifications": []}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "key").Classify(context.Background(), "a post")
	if err == nil {
		t.Fatal("expected an error for an empty prediction list")
	}
}
