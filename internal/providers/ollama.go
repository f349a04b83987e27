package providers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	ollamaTimeout    = 300 * time.Second
)

// Ollama implements the Reviewer interface for Ollama and LM Studio through
// their OpenAI-compatible endpoint.
type Ollama struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOllama creates a new Ollama provider. No API key is required; one is
// sent when given, for servers that expect it.
func NewOllama(model string, opts Options) (*Ollama, error) {
	// Normalize URL: strip trailing /, /v1, /v1/chat/completions
	baseURL := strings.TrimRight(opts.baseURL(defaultOllamaURL), "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	if opts.Timeout <= 0 && opts.Client == nil {
		opts.Timeout = ollamaTimeout
	}

	return &Ollama{
		apiKey:  opts.APIKey,
		model:   model,
		baseURL: baseURL + "/v1/chat/completions",
		client:  opts.httpClient(),
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	return chatCompletion(ctx, o.client, o.baseURL, o.apiKey, o.model, req)
}
