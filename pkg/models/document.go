// Package models defines the core data structures shared between the engine
// and its storage, index, and embedding components.
package models

import "time"

// DefaultCategory is assigned to documents ingested without a category.
const DefaultCategory = "general"

// MinDocumentLength is the minimum text length accepted for ingestion.
const MinDocumentLength = 10

// Document is a stored chunk with its embedding and provenance.
// Documents are immutable once stored; re-ingestion creates new chunk ids.
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Text      string                 `json:"text" db:"text"`
	Embedding []float32              `json:"-" db:"-"`
	Category  string                 `json:"category" db:"category"`
	Source    string                 `json:"source" db:"source"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for ingesting a document. Text is chunked,
// embedded, and stored as one Document per chunk.
type DocumentInput struct {
	Text     string                 `json:"text"`
	Category string                 `json:"category,omitempty"`
	Source   string                 `json:"source,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
