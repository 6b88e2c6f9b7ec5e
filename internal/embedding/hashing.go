package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hyperjump/kioku/pkg/utils"
)

// HashingEmbedder is the deterministic local fallback: a hashing-trick
// bag-of-words vectorizer. Tokens are case-folded, stripped of punctuation,
// hashed into [0, D), accumulated as term counts, and L2-normalized. The
// result is a unit-norm (or zero) vector of the configured dimension, always,
// fully offline. Identical input yields bit-identical output across process
// restarts.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder of the given dimension.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed vectorizes text. It never fails.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, tok := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum64()%uint64(e.dimensions)]++
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch vectorizes each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashingEmbedder) Close() error {
	return nil
}

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
