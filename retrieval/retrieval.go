// Package retrieval exposes the passage retrieval contract the consultation
// pipelines consume. The vector index itself stays behind vector.Store.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geetanjaliapp/geetanjali-sub001/pkg/logging"
	"github.com/geetanjaliapp/geetanjali-sub001/vector"
)

// Passage is one retrieved source passage with its relevance to the query.
type Passage struct {
	CanonicalID string         `json:"canonical_id"`
	Text        string         `json:"text"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	// Relevance is 1 - cosine distance, clamped to [0, 1].
	Relevance float64 `json:"relevance"`
}

// Retriever returns the top-K passages ranked by relevance, descending.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}

// VectorRetriever implements Retriever over an embedder and a vector store.
type VectorRetriever struct {
	store    vector.Store
	embedder vector.Embedder
	logger   *slog.Logger
}

// NewVectorRetriever wires a retriever over the given store and embedder.
func NewVectorRetriever(store vector.Store, embedder vector.Embedder) *VectorRetriever {
	return &VectorRetriever{
		store:    store,
		embedder: embedder,
		logger:   logging.WithComponent("retriever"),
	}
}

// Search embeds the query and returns the nearest passages.
func (r *VectorRetriever) Search(ctx context.Context, query string, topK int) ([]Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.store.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]Passage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, Passage{
			CanonicalID: m.Embedding.ID,
			Text:        m.Embedding.Text,
			Metadata:    m.Embedding.Metadata,
			Relevance:   relevanceFromDistance(m.Distance),
		})
	}
	r.logger.Debug("retrieval completed", "query_len", len(query), "hits", len(passages))
	return passages, nil
}

func relevanceFromDistance(distance float32) float64 {
	rel := 1 - float64(distance)
	if rel < 0 {
		return 0
	}
	if rel > 1 {
		return 1
	}
	return rel
}
