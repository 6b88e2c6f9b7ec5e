package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultCacheSize bounds the chain's embedding cache.
const DefaultCacheSize = 4096

// Chain tries embedding providers in preference order and terminates at the
// deterministic hashing fallback, so Embed can only fail when a caller builds
// a chain with no working provider at all. Provider failures are logged and
// degraded past, never propagated. Results are cached across providers.
type Chain struct {
	providers  []Embedder
	fallback   *HashingEmbedder
	cache      *Cache
	dimensions int
	logger     *zap.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithCacheSize bounds the number of cached embeddings.
func WithCacheSize(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.cache = NewCache(n)
		}
	}
}

// WithChainLogger sets a logger for degradation events.
func WithChainLogger(l *zap.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// NewChain creates a chain over the given providers, in preference order.
// A HashingEmbedder of the same dimension is always appended as the final
// strategy.
func NewChain(dimensions int, providers []Embedder, opts ...ChainOption) *Chain {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	c := &Chain{
		providers:  providers,
		fallback:   NewHashingEmbedder(dimensions),
		dimensions: dimensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache(DefaultCacheSize)
	}
	return c
}

// Embed returns the embedding for text, from cache when possible, otherwise
// from the first provider that succeeds with the right dimension.
func (c *Chain) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	for i, p := range c.providers {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			c.logger.Warn("embedding provider failed, degrading to next strategy",
				zap.Int("provider", i), zap.Error(err))
			continue
		}
		if len(vec) != c.dimensions {
			c.logger.Warn("embedding provider returned wrong dimension, degrading",
				zap.Int("provider", i), zap.Int("got", len(vec)), zap.Int("want", c.dimensions))
			continue
		}
		c.cache.Set(key, vec)
		return vec, nil
	}

	vec, err := c.fallback.Embed(ctx, text)
	if err != nil {
		// The hashing fallback cannot fail; this is unreachable.
		return nil, fmt.Errorf("all embedding strategies failed: %w", err)
	}
	c.cache.Set(key, vec)
	return vec, nil
}

// EmbedBatch embeds each text.
func (c *Chain) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the chain's embedding dimension.
func (c *Chain) Dimensions() int {
	return c.dimensions
}

// CacheLen returns the number of cached embeddings.
func (c *Chain) CacheLen() int {
	return c.cache.Len()
}

// Close closes every provider.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Embedder = (*Chain)(nil)
