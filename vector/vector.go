package vector

import (
	"context"
	"math"
)

// Embedding represents a stored vector with its source text.
type Embedding struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// Match pairs an embedding with its cosine distance from the query vector.
// Distance is in [0, 2]; callers convert to relevance as 1 - distance.
type Match struct {
	Embedding *Embedding
	Distance  float32
}

// Store defines vector storage and similarity search.
type Store interface {
	// Upsert inserts or replaces an embedding keyed by ID.
	Upsert(ctx context.Context, embedding *Embedding) error

	// Search finds the topK nearest embeddings by cosine distance, ascending.
	Search(ctx context.Context, queryVector []float32, topK int) ([]Match, error)

	// Get retrieves a specific embedding by ID.
	Get(ctx context.Context, id string) (*Embedding, error)

	// Delete removes an embedding by ID.
	Delete(ctx context.Context, id string) error

	// Clear removes all embeddings.
	Clear(ctx context.Context) error

	// Count returns the number of embeddings.
	Count(ctx context.Context) (int, error)
}

// Embedder defines the interface for creating embeddings from text
type Embedder interface {
	// Embed converts text to a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the number of embedding dimensions
	Dimension() int
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-8))
}

// CosineDistance converts similarity to the distance reported by Search.
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}
