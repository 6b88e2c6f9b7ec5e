// Package vector provides the in-memory index used for approximate
// nearest-neighbor search over embedding vectors.
package vector

import "context"

// VectorIndex defines vector storage and similarity search. The index is a
// derived view of the document store and is rebuilt from it on startup.
type VectorIndex interface {
	// Insert adds (or replaces) the vector for id.
	Insert(ctx context.Context, id string, vec []float32) error

	// Search returns up to k approximate nearest neighbors of query,
	// ordered by descending similarity. An empty index returns nil.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)

	// Remove deletes id from the index. Removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error

	// Size returns the number of vectors currently indexed.
	Size() int
}

// Result is a single vector search hit.
type Result struct {
	ID         string
	Similarity float64 // cosine similarity, 1 - distance
}
