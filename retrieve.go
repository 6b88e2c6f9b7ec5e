package kioku

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/pkg/models"
)

// NoContext is returned by GenerateContext when retrieval finds nothing.
const NoContext = "No relevant context found."

// Retrieve embeds the query and returns the most similar chunks, hydrated
// from the store and ordered by descending similarity. An empty result is not
// an error. When the query has no recognizable tokens (its fallback embedding
// is the zero vector), retrieval degrades to lexical search.
func (e *Engine) Retrieve(ctx context.Context, query string, opts *models.RetrieveOptions) ([]*models.RetrievalResult, error) {
	if opts == nil {
		opts = &models.RetrieveOptions{}
	}
	if opts.TopK < 0 {
		return nil, models.NewValidationError(fmt.Sprintf("topK must be positive, got %d", opts.TopK))
	}
	topK := opts.TopK
	if topK == 0 {
		topK = e.cfg.Retrieval.TopK
	}
	minSimilarity := opts.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = e.cfg.Retrieval.MinSimilarity
	}

	start := time.Now()
	defer func() {
		e.statsMu.Lock()
		e.queries++
		e.retrieval += time.Since(start)
		e.statsMu.Unlock()
	}()

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if isZeroVector(queryVec) {
		e.logger.Debug("query has no embeddable tokens, using lexical fallback",
			zap.String("query", query))
		return e.retrieveLexical(ctx, query, topK, opts)
	}

	// Over-fetch so category and similarity filters still leave topK hits.
	hits, err := e.index.Search(ctx, queryVec, topK*2)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]*models.RetrievalResult, 0, topK)
	for _, hit := range hits {
		if hit.Similarity < minSimilarity {
			continue
		}
		result, err := e.hydrate(ctx, hit.ID, hit.Similarity, opts)
		if err != nil {
			return nil, err
		}
		if result == nil {
			continue
		}
		results = append(results, result)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// retrieveLexical scores BM25 hits into the retrieval result shape. Scores
// are normalized against the best hit, so the similarity threshold does not
// apply; lexical scores and cosine similarities are not comparable.
func (e *Engine) retrieveLexical(ctx context.Context, query string, topK int, opts *models.RetrieveOptions) ([]*models.RetrievalResult, error) {
	hits, err := e.lexical.Search(ctx, query, topK*2)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	top := hits[0].Score
	results := make([]*models.RetrievalResult, 0, topK)
	for _, hit := range hits {
		similarity := 0.0
		if top > 0 {
			similarity = hit.Score / top
		}
		result, err := e.hydrate(ctx, hit.ID, similarity, opts)
		if err != nil {
			return nil, err
		}
		if result == nil {
			continue
		}
		results = append(results, result)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// hydrate loads a hit's document and applies the category filter. A nil
// result means the hit was filtered out or its document is gone. Only a
// missing document is skippable; any other store failure surfaces.
func (e *Engine) hydrate(ctx context.Context, id string, similarity float64, opts *models.RetrieveOptions) (*models.RetrievalResult, error) {
	doc, err := e.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// The index can briefly lead the store during concurrent removal.
		e.logger.Debug("indexed chunk missing from store", zap.String("id", id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	if opts.Category != "" && doc.Category != opts.Category {
		return nil, nil
	}
	result := &models.RetrievalResult{
		ID:         doc.ID,
		Similarity: similarity,
		Text:       doc.Text,
		Category:   doc.Category,
		Source:     doc.Source,
		CreatedAt:  doc.CreatedAt,
	}
	if opts.IncludeMetadata {
		result.Metadata = doc.Metadata
	}
	return result, nil
}

// GenerateContext retrieves for the query and renders the hits as a numbered
// context block for prompt assembly. It returns NoContext when nothing
// relevant is found; that is not an error.
func (e *Engine) GenerateContext(ctx context.Context, query string, opts *models.RetrieveOptions) (string, error) {
	results, err := e.Retrieve(ctx, query, opts)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoContext, nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d]", i+1)
		if r.Source != "" {
			fmt.Fprintf(&b, " (source: %s, relevance: %.2f)", r.Source, r.Similarity)
		} else {
			fmt.Fprintf(&b, " (relevance: %.2f)", r.Similarity)
		}
		b.WriteString("\n")
		b.WriteString(r.Text)
	}
	return b.String(), nil
}

func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
