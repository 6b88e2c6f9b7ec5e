package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteConfig configures an OpenAI-compatible embeddings endpoint.
type RemoteConfig struct {
	// BaseURL of the API, e.g. "https://api.openai.com/v1" or a local
	// ollama/llama.cpp server. Defaults to the OpenAI endpoint.
	BaseURL string
	// APIKey for bearer auth. Required; construction fails without it so a
	// misconfigured provider never enters the chain.
	APIKey string
	// Model name sent with each request.
	Model string
	// Dimensions expected of returned vectors. When > 0, mismatched
	// responses are rejected.
	Dimensions int
	// Timeout per HTTP request.
	Timeout time.Duration
}

// RemoteEmbedder calls an OpenAI-compatible /embeddings endpoint. Transient
// failures (429, 5xx, transport errors) are retried a bounded number of
// times; any remaining failure surfaces as an error for the chain to degrade
// past.
type RemoteEmbedder struct {
	cfg        RemoteConfig
	client     *http.Client
	maxRetries int
}

// NewRemoteEmbedder creates a remote embedder. Returns an error when the API
// key is missing.
func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("remote embedder: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RemoteEmbedder{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: 2,
	}, nil
}

type embeddingsRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests an embedding for text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Input: text, Model: e.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := e.cfg.BaseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("embeddings request failed: %s", resp.Status)
			continue
		}
		if resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
		}

		var parsed embeddingsResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if len(parsed.Data) == 0 {
			return nil, fmt.Errorf("empty embeddings response")
		}
		vec := parsed.Data[0].Embedding
		if e.cfg.Dimensions > 0 && len(vec) != e.cfg.Dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(vec), e.cfg.Dimensions)
		}
		return vec, nil
	}
	return nil, fmt.Errorf("embeddings request failed after %d retries: %w", e.maxRetries, lastErr)
}

// EmbedBatch embeds each text with a separate request.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured dimension (0 when discovered lazily).
func (e *RemoteEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close is a no-op.
func (e *RemoteEmbedder) Close() error {
	return nil
}
