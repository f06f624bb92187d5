package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
	"github.com/geetanjaliapp/geetanjali-sub001/vector"
)

// Passage is one indexable verse with its commentary text.
type Passage struct {
	CanonicalID string         `json:"canonical_id"`
	Title       string         `json:"title,omitempty"`
	Text        string         `json:"text"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Indexer embeds passages and writes them into a vector store. Indexing is
// idempotent: re-indexing a canonical ID replaces the stored row.
type Indexer struct {
	store    vector.Store
	embedder vector.Embedder
	logger   *slog.Logger
}

// NewIndexer wires an indexer over the given store and embedder.
func NewIndexer(store vector.Store, embedder vector.Embedder) *Indexer {
	return &Indexer{
		store:    store,
		embedder: embedder,
		logger:   logging.WithComponent("corpus_indexer"),
	}
}

// Index validates, embeds, and upserts the given passages.
func (ix *Indexer) Index(ctx context.Context, passages ...Passage) error {
	if len(passages) == 0 {
		return nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		if !IsCanonicalID(p.CanonicalID) {
			return fmt.Errorf("passage %d: invalid canonical ID %q", i, p.CanonicalID)
		}
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("passage %s: text cannot be empty", p.CanonicalID)
		}
		texts[i] = p.Text
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return fmt.Errorf("expected %d embeddings, got %d", len(passages), len(vectors))
	}

	for i, p := range passages {
		metadata := make(map[string]any, len(p.Metadata)+1)
		for k, v := range p.Metadata {
			metadata[k] = v
		}
		if p.Title != "" {
			metadata["title"] = p.Title
		}
		emb := &vector.Embedding{
			ID:       p.CanonicalID,
			Vector:   vectors[i],
			Text:     p.Text,
			Metadata: metadata,
		}
		if err := ix.store.Upsert(ctx, emb); err != nil {
			return fmt.Errorf("index passage %s: %w", p.CanonicalID, err)
		}
	}

	ix.logger.Info("passages indexed", "count", len(passages))
	return nil
}

// Count returns the number of indexed passages.
func (ix *Indexer) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}
