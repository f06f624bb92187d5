package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"
	"github.com/geetanjaliapp/geetanjali-sub001/vector"
)

// Store implements vector.Store using in-memory storage; safe for concurrent use.
type Store struct {
	embeddings map[string]*vector.Embedding
	mu         sync.RWMutex
}

// New creates a new in-memory vector store
func New() *Store {
	return &Store{
		embeddings: make(map[string]*vector.Embedding),
	}
}

// Upsert inserts or replaces an embedding keyed by ID.
func (s *Store) Upsert(ctx context.Context, embedding *vector.Embedding) error {
	if embedding == nil {
		return fmt.Errorf("embedding cannot be nil")
	}
	if embedding.ID == "" {
		return fmt.Errorf("embedding ID cannot be empty")
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("embedding vector cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[embedding.ID] = embedding
	return nil
}

// Search finds the topK nearest embeddings by cosine distance, ascending.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int) ([]vector.Match, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]vector.Match, 0, len(s.embeddings))
	for _, emb := range s.embeddings {
		matches = append(matches, vector.Match{
			Embedding: emb,
			Distance:  vector.CosineDistance(queryVector, emb.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Get retrieves a specific embedding by ID.
func (s *Store) Get(ctx context.Context, id string) (*vector.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, ok := s.embeddings[id]
	if !ok {
		return nil, fmt.Errorf("embedding %s: %w", id, apperrors.ErrNotFound)
	}
	return emb, nil
}

// Delete removes an embedding by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.embeddings[id]; !ok {
		return fmt.Errorf("embedding %s: %w", id, apperrors.ErrNotFound)
	}
	delete(s.embeddings, id)
	return nil
}

// Clear removes all embeddings.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings = make(map[string]*vector.Embedding)
	return nil
}

// Count returns the number of embeddings.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings), nil
}
