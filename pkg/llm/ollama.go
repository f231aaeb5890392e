package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaProvider implements Provider for Ollama (local models).
type OllamaProvider struct {
	client      *ollama.Client
	model       string
	temperature float64
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(rawURL, model string, temperature float64) (*OllamaProvider, error) {
	if rawURL == "" {
		rawURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}

	base, err := url.Parse(strings.TrimSuffix(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	httpClient := &http.Client{Timeout: 300 * time.Second}

	return &OllamaProvider{
		client:      ollama.NewClient(base, httpClient),
		model:       model,
		temperature: temperature,
	}, nil
}

// Analyze sends a prompt to Ollama and returns the complete response.
func (p *OllamaProvider) Analyze(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": p.temperature,
		},
	}

	var sb strings.Builder
	err := p.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama request failed: %w", err)
	}

	return sb.String(), nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// GetModel returns the model name.
func (p *OllamaProvider) GetModel() string {
	return p.model
}

// Health checks whether the Ollama server is reachable.
func (p *OllamaProvider) Health(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("Ollama not available: %w", err)
	}
	return nil
}
