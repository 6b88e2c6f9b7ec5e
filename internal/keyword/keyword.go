// Package keyword provides a Bleve-backed lexical index used as a retrieval
// fallback when a query cannot be embedded.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// Result is a single lexical search hit.
type Result struct {
	ID    string
	Score float64
}

// indexedDoc is the shape Bleve indexes per chunk.
type indexedDoc struct {
	Content  string `json:"content"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

// Index is a lexical (BM25-style) index over chunk text.
type Index struct {
	path  string
	index bleve.Index
}

// New creates or opens a Bleve index at path. An empty path builds a
// memory-only index that is lost on Close.
func New(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so query terms
	// match the exact words stored.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("source", keywordFieldMapping)
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &Index{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open lexical index: %w", openErr)
		}
		return &Index{path: path, index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create lexical index: %w", err)
	}
	return &Index{path: path, index: index}, nil
}

// Reset drops every indexed chunk by recreating the underlying index. Bleve
// has no truncate, so an on-disk index is closed, removed, and rebuilt.
func (x *Index) Reset() error {
	if err := x.index.Close(); err != nil {
		return fmt.Errorf("failed to close lexical index: %w", err)
	}
	if x.path != "" {
		if err := os.RemoveAll(x.path); err != nil {
			return fmt.Errorf("failed to remove lexical index: %w", err)
		}
	}
	fresh, err := New(x.path)
	if err != nil {
		return err
	}
	x.index = fresh.index
	return nil
}

// Add indexes the text of a chunk under its id.
func (x *Index) Add(ctx context.Context, id, text, category, source string) error {
	return x.index.Index(id, indexedDoc{Content: text, Category: category, Source: source})
}

// Search runs a match query over chunk text and returns up to limit hits
// ordered by descending score.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a chunk from the index. Unknown ids are a no-op.
func (x *Index) Delete(ctx context.Context, id string) error {
	return x.index.Delete(id)
}

// DocCount returns the number of indexed chunks.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the index.
func (x *Index) Close() error {
	return x.index.Close()
}
