// Package llm holds the generative model client used to turn a grounded
// prompt into an answer.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"medreport/internal/domain"
)

// OllamaGenerator implements domain.Generator against an Ollama server.
type OllamaGenerator struct {
	client *api.Client
	model  string
}

// Config configures the generation client.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

func NewOllamaGenerator(cfg Config) (*OllamaGenerator, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	t := cfg.Timeout
	if t == 0 {
		// Generations can be slow; the request context still bounds them.
		t = 5 * time.Minute
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &OllamaGenerator{
		client: api.NewClient(u, &http.Client{Timeout: t}),
		model:  cfg.Model,
	}, nil
}

// Generate runs the prompt through the model and returns the full
// completion. Model errors and empty completions both map to
// domain.ErrGenerationFailed; retrying is the caller's decision.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var out strings.Builder
	err := g.client.Generate(ctx, &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	answer := strings.TrimSpace(out.String())
	if answer == "" {
		return "", fmt.Errorf("%w: model returned empty completion", domain.ErrGenerationFailed)
	}
	return answer, nil
}
