package kioku

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration. Zero values mean defaults; see
// applyDefaults.
type Config struct {
	Debug      bool            `yaml:"debug"`
	Dimensions int             `yaml:"dimensions"`
	Chunking   ChunkingConfig  `yaml:"chunking"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	Index      IndexConfig     `yaml:"index"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Storage    StorageConfig   `yaml:"storage"`
	Watch      WatchConfig     `yaml:"watch"`
}

// ChunkingConfig holds chunk window settings, in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds retrieval defaults, overridable per query.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// IndexConfig holds HNSW graph parameters. Seed, when non-zero, makes
// insertion level draws reproducible.
type IndexConfig struct {
	M              int   `yaml:"m"`
	EfConstruction int   `yaml:"ef_construction"`
	EfSearch       int   `yaml:"ef_search"`
	MaxLevel       int   `yaml:"max_level"`
	Seed           int64 `yaml:"seed"`
}

// EmbeddingConfig holds embedding provider settings. Providers are optional;
// the deterministic hashing fallback is always available.
type EmbeddingConfig struct {
	CacheSize int          `yaml:"cache_size"`
	Remote    RemoteConfig `yaml:"remote"`
	ONNX      ONNXConfig   `yaml:"onnx"`
}

// RemoteConfig holds OpenAI-compatible embeddings API settings. The provider
// is enabled when the environment variable named by APIKeyEnv is set.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ONNXConfig holds local ONNX model settings. The provider is enabled when
// ModelPath is set and the binary is built with cgo.
type ONNXConfig struct {
	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
}

// StorageConfig holds persistence paths. Empty paths select in-memory
// backends, useful for tests and throwaway engines.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	LexicalIndexPath string `yaml:"lexical_index_path"`
}

// WatchConfig holds directory watch settings for Engine.Watch.
type WatchConfig struct {
	Extensions []string `yaml:"extensions"`
}

// DefaultConfig returns a config with every default applied. Storage paths
// are empty, so the engine runs fully in memory until paths are set.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the YAML config at path and applies defaults.
// Relative storage paths are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.LexicalIndexPath = expandPath(cfg.Storage.LexicalIndexPath, configDir)
	cfg.Embedding.ONNX.ModelPath = expandPath(cfg.Embedding.ONNX.ModelPath, configDir)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 500
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 50
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.65
	}
	if cfg.Index.M == 0 {
		cfg.Index.M = 16
	}
	if cfg.Index.EfConstruction == 0 {
		cfg.Index.EfConstruction = 200
	}
	if cfg.Index.EfSearch == 0 {
		cfg.Index.EfSearch = 50
	}
	if cfg.Index.MaxLevel == 0 {
		cfg.Index.MaxLevel = 8
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 4096
	}
	if cfg.Embedding.Remote.TimeoutSeconds == 0 {
		cfg.Embedding.Remote.TimeoutSeconds = 30
	}
	if cfg.Embedding.ONNX.MaxTokens == 0 {
		cfg.Embedding.ONNX.MaxTokens = 256
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst"}
	}
}

// expandPath resolves a relative path against configDir. Empty and absolute
// paths pass through unchanged.
func expandPath(path, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
