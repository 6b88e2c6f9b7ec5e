package models

import "time"

// RetrievalResult is a single retrieval hit, hydrated from the store.
type RetrievalResult struct {
	ID         string                 `json:"id"`
	Similarity float64                `json:"similarity"`
	Text       string                 `json:"text"`
	Category   string                 `json:"category"`
	Source     string                 `json:"source,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// RetrieveOptions controls retrieval. Zero values mean engine defaults
// (TopK and MinSimilarity come from the engine config).
type RetrieveOptions struct {
	TopK            int     `json:"top_k,omitempty"`
	MinSimilarity   float64 `json:"min_similarity,omitempty"`
	Category        string  `json:"category,omitempty"`
	IncludeMetadata bool    `json:"include_metadata,omitempty"`
}

// Stats reports engine-level counters.
type Stats struct {
	Documents       int64   `json:"documents"`
	Queries         int64   `json:"queries"`
	AvgRetrievalMs  float64 `json:"avg_retrieval_ms"`
	IndexSize       int     `json:"index_size"`
	EmbeddingCached int     `json:"embedding_cached"`
}

// Export is a full dump of the store plus current stats.
type Export struct {
	Documents []*Document `json:"documents"`
	Stats     Stats       `json:"stats"`
}
