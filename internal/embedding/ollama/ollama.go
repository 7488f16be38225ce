// Package ollama adapts the Ollama embeddings API to the domain Embedder
// contract.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"medreport/internal/domain"
)

// Embedder produces embedding vectors through a running Ollama server.
// The vector dimension is learned from the first successful call and
// enforced on every later one.
type Embedder struct {
	client *api.Client
	model  string

	mu        sync.Mutex
	dimension int
}

// Config configures the Ollama embeddings client.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

func New(cfg Config) (*Embedder, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &Embedder{
		client: api.NewClient(u, &http.Client{Timeout: t}),
		model:  cfg.Model,
	}, nil
}

// EmbedBatch embeds every text in order. Any failure aborts the whole
// batch so callers never receive a partially aligned result.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
			Model:  e.model,
			Prompt: text,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: ollama embeddings: %v", domain.ErrServiceUnavailable, err)
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("%w: ollama returned empty embedding for text %d", domain.ErrServiceUnavailable, i)
		}
		if err := e.learnDimension(len(resp.Embedding)); err != nil {
			return nil, err
		}
		vec := make([]float32, len(resp.Embedding))
		for j, v := range resp.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// learnDimension records the vector size on the first call and rejects
// any later mismatch. The embedder is shared across request goroutines,
// so the field is guarded.
func (e *Embedder) learnDimension(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = n
		return nil
	}
	if n != e.dimension {
		return fmt.Errorf("embedding dimension changed from %d to %d", e.dimension, n)
	}
	return nil
}

// Dimension reports the vector size, or 0 before the first embedding.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}
