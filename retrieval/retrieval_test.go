package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/geetanjaliapp/geetanjali-sub001/vector"
)

// stubEmbedder returns a fixed vector for any input.
type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, e.err
}

func (e *stubEmbedder) Dimension() int { return len(e.vec) }

// stubVectorStore returns canned matches.
type stubVectorStore struct {
	matches []vector.Match
	err     error
}

func (s *stubVectorStore) Upsert(context.Context, *vector.Embedding) error { return nil }
func (s *stubVectorStore) Search(context.Context, []float32, int) ([]vector.Match, error) {
	return s.matches, s.err
}
func (s *stubVectorStore) Get(context.Context, string) (*vector.Embedding, error) {
	return nil, errors.New("not implemented")
}
func (s *stubVectorStore) Delete(context.Context, string) error { return nil }
func (s *stubVectorStore) Clear(context.Context) error          { return nil }
func (s *stubVectorStore) Count(context.Context) (int, error)   { return len(s.matches), nil }

func TestVectorRetrieverSearch(t *testing.T) {
	store := &stubVectorStore{matches: []vector.Match{
		{Embedding: &vector.Embedding{ID: "BG_2_47", Text: "act without attachment"}, Distance: 0.1},
		{Embedding: &vector.Embedding{ID: "BG_18_66", Text: "surrender all duties"}, Distance: 0.35},
	}}
	r := NewVectorRetriever(store, &stubEmbedder{vec: []float32{1, 0, 0}})

	passages, err := r.Search(context.Background(), "how do I weigh duty against outcomes", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("passages = %d, want 2", len(passages))
	}
	if passages[0].CanonicalID != "BG_2_47" {
		t.Errorf("first passage = %s, want the nearest match first", passages[0].CanonicalID)
	}
	if got := passages[0].Relevance; got < 0.89 || got > 0.91 {
		t.Errorf("relevance = %v, want 1 - distance = 0.9", got)
	}
}

func TestVectorRetrieverRelevanceClamped(t *testing.T) {
	store := &stubVectorStore{matches: []vector.Match{
		{Embedding: &vector.Embedding{ID: "BG_1_1"}, Distance: 1.7},
		{Embedding: &vector.Embedding{ID: "BG_1_2"}, Distance: -0.2},
	}}
	r := NewVectorRetriever(store, &stubEmbedder{vec: []float32{1}})

	passages, err := r.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if passages[0].Relevance != 0 {
		t.Errorf("relevance = %v, want clamped to 0", passages[0].Relevance)
	}
	if passages[1].Relevance != 1 {
		t.Errorf("relevance = %v, want clamped to 1", passages[1].Relevance)
	}
}

func TestVectorRetrieverEmptyQuery(t *testing.T) {
	r := NewVectorRetriever(&stubVectorStore{}, &stubEmbedder{vec: []float32{1}})
	if _, err := r.Search(context.Background(), "   ", 3); err == nil {
		t.Fatal("Search() error = nil, want empty query rejection")
	}
}

func TestVectorRetrieverEmbedFailure(t *testing.T) {
	wantErr := errors.New("embedding service down")
	r := NewVectorRetriever(&stubVectorStore{}, &stubEmbedder{err: wantErr})
	if _, err := r.Search(context.Background(), "query", 3); !errors.Is(err, wantErr) {
		t.Fatalf("Search() error = %v, want %v", err, wantErr)
	}
}
