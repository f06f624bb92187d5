package inmemory

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
	"github.com/geetanjaliapp/geetanjali-sub001/vector"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	embeddings := []*vector.Embedding{
		{ID: "BG_2_47", Vector: []float32{1, 0, 0}, Text: "duty without attachment"},
		{ID: "BG_18_66", Vector: []float32{0, 1, 0}, Text: "surrender"},
		{ID: "BG_3_35", Vector: []float32{0.9, 0.1, 0}, Text: "one's own duty"},
	}
	for _, e := range embeddings {
		if err := s.Upsert(context.Background(), e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", e.ID, err)
		}
	}
	return s
}

func TestStoreSearchOrdersByDistance(t *testing.T) {
	s := seedStore(t)
	matches, err := s.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Embedding.ID != "BG_2_47" {
		t.Errorf("nearest = %s, want BG_2_47", matches[0].Embedding.ID)
	}
	if matches[0].Distance > matches[1].Distance {
		t.Error("matches must be ordered by ascending distance")
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	s := seedStore(t)
	if err := s.Upsert(context.Background(), &vector.Embedding{
		ID: "BG_2_47", Vector: []float32{0, 0, 1}, Text: "updated",
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := s.Get(context.Background(), "BG_2_47")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Text != "updated" {
		t.Errorf("text = %q, want the replacement", got.Text)
	}
	count, _ := s.Count(context.Background())
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestStoreUpsertValidation(t *testing.T) {
	s := New()
	if err := s.Upsert(context.Background(), nil); err == nil {
		t.Error("nil embedding must be rejected")
	}
	if err := s.Upsert(context.Background(), &vector.Embedding{Vector: []float32{1}}); err == nil {
		t.Error("missing ID must be rejected")
	}
	if err := s.Upsert(context.Background(), &vector.Embedding{ID: "x"}); err == nil {
		t.Error("empty vector must be rejected")
	}
}

func TestStoreDeleteAndNotFound(t *testing.T) {
	s := seedStore(t)
	if err := s.Delete(context.Background(), "BG_18_66"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(context.Background(), "BG_18_66"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), "BG_18_66"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStoreClear(t *testing.T) {
	s := seedStore(t)
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	count, _ := s.Count(context.Background())
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
