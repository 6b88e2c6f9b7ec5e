package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/kioku/pkg/models"
)

// MemoryStore is an in-memory Store for tests and throwaway engines that do
// not need durability.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*models.Document)}
}

// Put upserts a document (last write wins).
func (m *MemoryStore) Put(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(doc)
	return nil
}

// PutBatch upserts all documents. The in-memory map cannot observe a partial
// batch because the lock is held across the whole write.
func (m *MemoryStore) PutBatch(_ context.Context, docs []*models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.putLocked(doc)
	}
	return nil
}

func (m *MemoryStore) putLocked(doc *models.Document) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	cp := *doc
	cp.Embedding = append([]float32(nil), doc.Embedding...)
	m.docs[doc.ID] = &cp
}

// Get returns the document with the given id, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// GetAll returns every stored document ordered by creation time.
func (m *MemoryStore) GetAll(_ context.Context) ([]*models.Document, error) {
	return m.filter(func(*models.Document) bool { return true }), nil
}

// GetByCategory returns documents with the given category.
func (m *MemoryStore) GetByCategory(_ context.Context, category string) ([]*models.Document, error) {
	return m.filter(func(d *models.Document) bool { return d.Category == category }), nil
}

// GetBySource returns documents with the given source.
func (m *MemoryStore) GetBySource(_ context.Context, source string) ([]*models.Document, error) {
	return m.filter(func(d *models.Document) bool { return d.Source == source }), nil
}

func (m *MemoryStore) filter(keep func(*models.Document) bool) []*models.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []*models.Document
	for _, d := range m.docs {
		if keep(d) {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs
}

// Delete removes a document.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// DeleteBySource removes all documents with the given source and returns
// their ids.
func (m *MemoryStore) DeleteBySource(_ context.Context, source string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, d := range m.docs {
		if d.Source == source {
			ids = append(ids, id)
			delete(m.docs, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Clear removes all documents.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*models.Document)
	return nil
}

// Count returns the number of stored documents.
func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.docs)), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*SQLiteStore)(nil)
