// Package kioku is an embeddable local RAG engine: documents are chunked,
// embedded, persisted in SQLite, and retrieved through an in-process HNSW
// index. Everything runs locally; a remote embeddings API is optional and the
// engine degrades to a deterministic hashing embedder when no provider works.
package kioku

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/chunker"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/vector"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/models"
)

// Engine ties the chunker, embedder chain, document store, vector index, and
// lexical fallback index together. All mutations keep the store and both
// indexes in sync; the store is the source of truth and the indexes are
// rebuilt from it on construction.
type Engine struct {
	cfg      *Config
	store    storage.Store
	index    vector.VectorIndex
	embedder *embedding.Chain
	lexical  *keyword.Index
	splitter *chunker.Chunker
	watch    *watcher.Watcher
	logger   *zap.Logger

	// mu serializes mutations so store and index updates for one document
	// are never interleaved with another writer's.
	mu sync.Mutex

	statsMu   sync.Mutex
	queries   int64
	retrieval time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStore injects a document store, overriding the one built from config.
func WithStore(s storage.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithProviders injects embedding providers tried before the hashing
// fallback, overriding the ones built from config.
func WithProviders(providers ...embedding.Embedder) Option {
	return func(e *Engine) {
		e.embedder = embedding.NewChain(e.cfg.Dimensions, providers,
			embedding.WithCacheSize(e.cfg.Embedding.CacheSize))
	}
}

// New creates an engine from cfg (nil means DefaultConfig) and replays every
// persisted document into the vector and lexical indexes. Records whose
// embedding no longer matches the configured dimension are skipped with a
// warning; they remain in the store.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		applyDefaults(cfg)
	}

	e := &Engine{
		cfg:      cfg,
		splitter: chunker.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	graphOpts := []vector.GraphOption{
		vector.WithM(cfg.Index.M),
		vector.WithEfConstruction(cfg.Index.EfConstruction),
		vector.WithEfSearch(cfg.Index.EfSearch),
		vector.WithMaxLevel(cfg.Index.MaxLevel),
		vector.WithLogger(e.logger),
	}
	if cfg.Index.Seed != 0 {
		graphOpts = append(graphOpts, vector.WithSeed(cfg.Index.Seed))
	}
	graph, err := vector.NewGraph(cfg.Dimensions, graphOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	e.index = graph

	if e.store == nil {
		if cfg.Storage.DatabasePath == "" {
			e.store = storage.NewMemoryStore()
		} else {
			store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
			if err != nil {
				return nil, fmt.Errorf("failed to open store: %w", err)
			}
			e.store = store
		}
	}

	lexical, err := keyword.New(cfg.Storage.LexicalIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}
	e.lexical = lexical

	if e.embedder == nil {
		e.embedder = embedding.NewChain(cfg.Dimensions, e.buildProviders(),
			embedding.WithCacheSize(cfg.Embedding.CacheSize),
			embedding.WithChainLogger(e.logger))
	}

	if err := e.rebuild(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// buildProviders assembles the configured embedding providers in preference
// order. A provider that cannot be constructed is logged and skipped; the
// chain's hashing fallback guarantees the engine still embeds.
func (e *Engine) buildProviders() []embedding.Embedder {
	var providers []embedding.Embedder

	remote := e.cfg.Embedding.Remote
	if remote.APIKeyEnv != "" {
		if key := os.Getenv(remote.APIKeyEnv); key != "" {
			p, err := embedding.NewRemoteEmbedder(embedding.RemoteConfig{
				BaseURL:    remote.BaseURL,
				APIKey:     key,
				Model:      remote.Model,
				Dimensions: e.cfg.Dimensions,
				Timeout:    time.Duration(remote.TimeoutSeconds) * time.Second,
			})
			if err != nil {
				e.logger.Warn("remote embedder unavailable", zap.Error(err))
			} else {
				providers = append(providers, p)
			}
		}
	}

	if path := e.cfg.Embedding.ONNX.ModelPath; path != "" {
		p, err := embedding.NewONNXEmbedder(path, e.cfg.Dimensions, e.cfg.Embedding.ONNX.MaxTokens)
		if err != nil {
			e.logger.Warn("onnx embedder unavailable", zap.Error(err))
		} else {
			providers = append(providers, p)
		}
	}

	return providers
}

// rebuild replays the store into the vector and lexical indexes.
func (e *Engine) rebuild(ctx context.Context) error {
	docs, err := e.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	skipped := 0
	for _, doc := range docs {
		if len(doc.Embedding) != e.cfg.Dimensions {
			e.logger.Warn("skipping document with stale embedding",
				zap.String("id", doc.ID),
				zap.Int("got", len(doc.Embedding)),
				zap.Int("want", e.cfg.Dimensions))
			skipped++
			continue
		}
		if err := e.index.Insert(ctx, doc.ID, doc.Embedding); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		if err := e.lexical.Add(ctx, doc.ID, doc.Text, doc.Category, doc.Source); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if len(docs) > 0 {
		e.logger.Info("index rebuilt",
			zap.Int("documents", len(docs)-skipped), zap.Int("skipped", skipped))
	}
	return nil
}

// AddDocument chunks, embeds, persists, and indexes a document. It returns
// the ids of the stored chunks. Text shorter than ten characters is rejected
// with a validation error before any side effect.
func (e *Engine) AddDocument(ctx context.Context, input models.DocumentInput) ([]string, error) {
	if utf8.RuneCountInString(input.Text) < models.MinDocumentLength {
		return nil, models.NewValidationError(
			fmt.Sprintf("text must be at least %d characters", models.MinDocumentLength))
	}
	category := input.Category
	if category == "" {
		category = models.DefaultCategory
	}

	chunks := e.splitter.Chunk(input.Text)
	vecs, err := e.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}

	docID := uuid.NewString()
	now := time.Now()
	docs := make([]*models.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, text := range chunks {
		metadata := map[string]interface{}{
			"document_id": docID,
			"chunk_index": i,
			"chunk_count": len(chunks),
		}
		for k, v := range input.Metadata {
			metadata[k] = v
		}
		id := fmt.Sprintf("%s_%s", docID, uuid.NewString()[:8])
		docs[i] = &models.Document{
			ID:        id,
			Text:      text,
			Embedding: vecs[i],
			Category:  category,
			Source:    input.Source,
			Metadata:  metadata,
			CreatedAt: now,
		}
		ids[i] = id
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.PutBatch(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to persist document: %w", err)
	}
	for _, doc := range docs {
		if err := e.index.Insert(ctx, doc.ID, doc.Embedding); err != nil {
			return nil, fmt.Errorf("failed to index chunk %s: %w", doc.ID, err)
		}
		if err := e.lexical.Add(ctx, doc.ID, doc.Text, doc.Category, doc.Source); err != nil {
			return nil, fmt.Errorf("failed to index chunk %s: %w", doc.ID, err)
		}
	}
	return ids, nil
}

// ImportBatch persists and indexes pre-chunked documents. Documents without
// an embedding are embedded; documents with one must match the configured
// dimension or the whole batch is rejected before any side effect.
func (e *Engine) ImportBatch(ctx context.Context, docs []*models.Document) error {
	for _, doc := range docs {
		if doc.ID == "" {
			return models.NewValidationError("document id must not be empty")
		}
		if len(doc.Embedding) > 0 && len(doc.Embedding) != e.cfg.Dimensions {
			return models.NewValidationError(
				fmt.Sprintf("embedding dimension mismatch for %s: got %d, expected %d",
					doc.ID, len(doc.Embedding), e.cfg.Dimensions))
		}
	}
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			vec, err := e.embedder.Embed(ctx, doc.Text)
			if err != nil {
				return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
			doc.Embedding = vec
		}
		if doc.Category == "" {
			doc.Category = models.DefaultCategory
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.PutBatch(ctx, docs); err != nil {
		return fmt.Errorf("failed to persist batch: %w", err)
	}
	for _, doc := range docs {
		if err := e.index.Insert(ctx, doc.ID, doc.Embedding); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		if err := e.lexical.Add(ctx, doc.ID, doc.Text, doc.Category, doc.Source); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	return nil
}

// RemoveDocument deletes a chunk from the store and both indexes. Removing an
// unknown id is a no-op.
func (e *Engine) RemoveDocument(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := e.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to unindex document: %w", err)
	}
	return e.lexical.Delete(ctx, id)
}

// RemoveSource deletes every chunk ingested from the given source and
// returns their ids.
func (e *Engine) RemoveSource(ctx context.Context, source string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, err := e.store.DeleteBySource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to delete source: %w", err)
	}
	for _, id := range ids {
		if err := e.index.Remove(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to unindex document %s: %w", id, err)
		}
		if err := e.lexical.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to unindex document %s: %w", id, err)
		}
	}
	return ids, nil
}

// Clear removes every document from the store and both indexes.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	graph, err := vector.NewGraph(e.cfg.Dimensions,
		vector.WithM(e.cfg.Index.M),
		vector.WithEfConstruction(e.cfg.Index.EfConstruction),
		vector.WithEfSearch(e.cfg.Index.EfSearch),
		vector.WithMaxLevel(e.cfg.Index.MaxLevel),
		vector.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.index = graph
	return e.lexical.Reset()
}

// Export returns every stored document plus current stats.
func (e *Engine) Export(ctx context.Context) (*models.Export, error) {
	docs, err := e.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export documents: %w", err)
	}
	stats, err := e.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Export{Documents: docs, Stats: stats}, nil
}

// Stats reports engine counters.
func (e *Engine) Stats(ctx context.Context) (models.Stats, error) {
	count, err := e.store.Count(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to count documents: %w", err)
	}
	e.statsMu.Lock()
	queries := e.queries
	var avg float64
	if queries > 0 {
		avg = float64(e.retrieval.Milliseconds()) / float64(queries)
	}
	e.statsMu.Unlock()
	return models.Stats{
		Documents:       count,
		Queries:         queries,
		AvgRetrievalMs:  avg,
		IndexSize:       e.index.Size(),
		EmbeddingCached: e.embedder.CacheLen(),
	}, nil
}

// Watch ingests plain-text files from dirs and keeps them in sync: file
// writes re-ingest (source = absolute path), file removals drop the source's
// chunks. Existing files are ingested immediately. Watching runs until ctx
// is cancelled or Close is called.
func (e *Engine) Watch(ctx context.Context, dirs []string) error {
	if e.watch != nil {
		return errors.New("watch already running")
	}
	w := watcher.New(e.cfg.Watch.Extensions, e.ingestFile, e.removeFile,
		watcher.WithLogger(e.logger))
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := w.AddDirectory(dir, true); err != nil {
			w.Stop()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	e.watch = w
	return nil
}

func (e *Engine) ingestFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("failed to read watched file", zap.String("path", path), zap.Error(err))
		return
	}
	ctx := context.Background()
	// Re-ingestion replaces the file's previous chunks.
	if _, err := e.RemoveSource(ctx, path); err != nil {
		e.logger.Warn("failed to drop stale chunks", zap.String("path", path), zap.Error(err))
		return
	}
	_, err = e.AddDocument(ctx, models.DocumentInput{
		Text:   string(data),
		Source: path,
	})
	if err != nil {
		if models.IsValidation(err) {
			e.logger.Debug("watched file too short to ingest", zap.String("path", path))
			return
		}
		e.logger.Warn("failed to ingest watched file", zap.String("path", path), zap.Error(err))
		return
	}
	e.logger.Info("ingested watched file", zap.String("path", path))
}

func (e *Engine) removeFile(path string) {
	ids, err := e.RemoveSource(context.Background(), path)
	if err != nil {
		e.logger.Warn("failed to remove watched file", zap.String("path", path), zap.Error(err))
		return
	}
	if len(ids) > 0 {
		e.logger.Info("removed watched file", zap.String("path", path), zap.Int("chunks", len(ids)))
	}
}

// Close stops the watcher and releases the embedder, lexical index, and
// store.
func (e *Engine) Close() error {
	if e.watch != nil {
		e.watch.Stop()
		e.watch = nil
	}
	return errors.Join(e.embedder.Close(), e.lexical.Close(), e.store.Close())
}
