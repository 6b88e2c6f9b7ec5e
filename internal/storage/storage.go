// Package storage defines durable persistence for document records. The
// store is the source of truth; the vector index is a derived, rebuildable
// view of it.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kioku/pkg/models"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Store defines document persistence. Concurrent writers to the same id get
// last-write-wins semantics.
type Store interface {
	// Put upserts a document.
	Put(ctx context.Context, doc *models.Document) error

	// PutBatch upserts all documents in a single transaction; on error none
	// of them are persisted.
	PutBatch(ctx context.Context, docs []*models.Document) error

	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Document, error)

	// GetAll returns every stored document.
	GetAll(ctx context.Context) ([]*models.Document, error)

	// GetByCategory returns documents with the given category.
	GetByCategory(ctx context.Context, category string) ([]*models.Document, error)

	// GetBySource returns documents with the given source.
	GetBySource(ctx context.Context, source string) ([]*models.Document, error)

	// Delete removes a document. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteBySource removes all documents with the given source and
	// returns their ids, so derived indexes can drop them too.
	DeleteBySource(ctx context.Context, source string) ([]string, error)

	// Clear removes all documents.
	Clear(ctx context.Context) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)

	Close() error
}
