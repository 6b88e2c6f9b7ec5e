// Package storage provides the SQLite implementation of Store.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kioku/pkg/models"
)

// SQLiteStore implements Store using SQLite. Embeddings are stored as
// little-endian float32 BLOBs; metadata as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		category TEXT NOT NULL DEFAULT 'general',
		source TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, text, embedding, category, source, metadata, created_at`

// Put upserts a document (INSERT OR REPLACE, last write wins).
func (s *SQLiteStore) Put(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Text, encodeVector(doc.Embedding), doc.Category, doc.Source,
		string(metadataJSON), doc.CreatedAt,
	)
	return err
}

// PutBatch upserts all documents in one transaction, all or nothing.
func (s *SQLiteStore) PutBatch(ctx context.Context, docs []*models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID, doc.Text, encodeVector(doc.Embedding), doc.Category, doc.Source,
			string(metadataJSON), doc.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns a document by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, err
}

// GetAll returns every stored document ordered by creation time.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]*models.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at`)
}

// GetByCategory returns documents with the given category.
func (s *SQLiteStore) GetByCategory(ctx context.Context, category string) ([]*models.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE category = ? ORDER BY created_at`, category)
}

// GetBySource returns documents with the given source.
func (s *SQLiteStore) GetBySource(ctx context.Context, source string) ([]*models.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE source = ? ORDER BY created_at`, source)
}

// Delete removes a document by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// DeleteBySource removes all documents with the given source and returns
// their ids.
func (s *SQLiteStore) DeleteBySource(ctx context.Context, source string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents WHERE source = ?`, source)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source); err != nil {
		return nil, err
	}
	return ids, nil
}

// Clear removes all documents.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var blob []byte
	var metadataJSON sql.NullString
	if err := row.Scan(&doc.ID, &doc.Text, &blob, &doc.Category, &doc.Source,
		&metadataJSON, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.Embedding = decodeVector(blob)
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(f))
	}
	return out
}

// decodeVector unpacks little-endian float32 bytes.
func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
