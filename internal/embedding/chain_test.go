package embedding

import (
	"context"
	"errors"
	"testing"
)

// failingEmbedder simulates a provider that always errors (network down,
// missing credentials).
type failingEmbedder struct {
	calls int
}

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}

func (f *failingEmbedder) Dimensions() int { return 0 }
func (f *failingEmbedder) Close() error    { return nil }

// wrongDimEmbedder returns vectors of the wrong dimension.
type wrongDimEmbedder struct{}

func (wrongDimEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 2}, nil
}

func (w wrongDimEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = w.Embed(ctx, texts[i])
	}
	return out, nil
}

func (wrongDimEmbedder) Dimensions() int { return 2 }
func (wrongDimEmbedder) Close() error    { return nil }

func TestChain_DegradesToFallback(t *testing.T) {
	failing := &failingEmbedder{}
	c := NewChain(32, []Embedder{failing, wrongDimEmbedder{}})
	vec, err := c.Embed(context.Background(), "degrade me")
	if err != nil {
		t.Fatalf("chain must not fail when the fallback works: %v", err)
	}
	if len(vec) != 32 {
		t.Fatalf("dimension %d, want 32", len(vec))
	}
	if failing.calls != 1 {
		t.Errorf("failing provider called %d times, want 1", failing.calls)
	}
}

func TestChain_CacheHitSkipsProviders(t *testing.T) {
	failing := &failingEmbedder{}
	c := NewChain(16, []Embedder{failing})
	ctx := context.Background()
	if _, err := c.Embed(ctx, "cached text"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed(ctx, "cached text"); err != nil {
		t.Fatal(err)
	}
	// Second call must be served from cache, not the provider.
	if failing.calls != 1 {
		t.Errorf("provider called %d times, want 1", failing.calls)
	}
	if c.CacheLen() != 1 {
		t.Errorf("CacheLen=%d, want 1", c.CacheLen())
	}
}

func TestChain_NoProviders(t *testing.T) {
	c := NewChain(8, nil)
	vec, err := c.Embed(context.Background(), "fallback only")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 8 {
		t.Fatalf("dimension %d, want 8", len(vec))
	}
}

func TestChain_DeterministicViaFallback(t *testing.T) {
	a := NewChain(64, nil)
	b := NewChain(64, nil)
	ctx := context.Background()
	va, _ := a.Embed(ctx, "stable input")
	vb, _ := b.Embed(ctx, "stable input")
	for i := range va {
		if va[i] != vb[i] {
			t.Fatal("fallback chain output differs across instances")
		}
	}
}

func TestChain_EmbedBatch(t *testing.T) {
	c := NewChain(16, nil)
	vecs, err := c.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 16 {
			t.Errorf("vector %d has dimension %d", i, len(v))
		}
	}
}
