// Package embedding converts text to fixed-dimension vectors. Providers are
// pluggable; the Chain tries them in preference order and terminates at a
// deterministic local fallback that cannot fail.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// DefaultDimensions is the embedding dimension used when none is configured.
const DefaultDimensions = 384
