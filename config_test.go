package kioku

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Dimensions != 384 {
		t.Errorf("Dimensions = %d", cfg.Dimensions)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.ChunkOverlap != 50 {
		t.Errorf("Chunking = %+v", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.MinSimilarity != 0.65 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Index.M != 16 || cfg.Index.EfConstruction != 200 || cfg.Index.EfSearch != 50 || cfg.Index.MaxLevel != 8 {
		t.Errorf("Index = %+v", cfg.Index)
	}
	if cfg.Storage.DatabasePath != "" {
		t.Errorf("default storage should be in-memory, got %q", cfg.Storage.DatabasePath)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
debug: true
dimensions: 128
chunking:
  chunk_size: 200
  chunk_overlap: 20
retrieval:
  top_k: 3
  min_similarity: 0.5
index:
  m: 8
  seed: 7
embedding:
  remote:
    api_key_env: EMBED_API_KEY
    model: text-embedding-3-small
storage:
  database_path: data/documents.db
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug || cfg.Dimensions != 128 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Chunking.ChunkSize != 200 || cfg.Chunking.ChunkOverlap != 20 {
		t.Errorf("Chunking = %+v", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.MinSimilarity != 0.5 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Index.M != 8 || cfg.Index.Seed != 7 {
		t.Errorf("Index = %+v", cfg.Index)
	}
	// Unset fields still get defaults.
	if cfg.Index.EfConstruction != 200 || cfg.Embedding.CacheSize != 4096 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	// Relative paths resolve against the config directory.
	want := filepath.Join(dir, "data", "documents.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.Storage.DatabasePath, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("chunking: ["), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}
