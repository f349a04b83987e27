package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

// DefaultTimeout bounds a single HTTP exchange when Options.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// ReviewRequest contains the data sent to an LLM for review.
type ReviewRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// ReviewResponse contains the raw response from an LLM.
type ReviewResponse struct {
	Content    string
	TokensUsed int
}

// Reviewer is the provider abstraction interface. Implementations make a
// single attempt per call; retry policy belongs to the caller. Review should
// return promptly once ctx is done; callers stop waiting at that point.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error)
	Name() string
}

// Options carries caller-supplied connection settings. The API key is passed
// through to the provider and never stored elsewhere.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) baseURL(fallback string) string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return fallback
}

// New creates a provider by name.
func New(provider, model string, opts Options) (Reviewer, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic(model, opts)
	case "openai":
		return NewOpenAI(model, opts)
	case "gemini", "google":
		return NewGemini(model, opts)
	case "ollama", "lmstudio":
		return NewOllama(model, opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// Names lists the supported provider names.
func Names() []string {
	return []string{"anthropic", "gemini", "lmstudio", "ollama", "openai"}
}

// CredentialsFromEnv returns the conventional credential and endpoint
// override for a provider, for callers that source them from the
// environment.
func CredentialsFromEnv(provider string) Options {
	var opts Options
	switch provider {
	case "anthropic":
		opts.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		opts.BaseURL = os.Getenv("LENS_ANTHROPIC_BASE_URL")
	case "openai":
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
		opts.BaseURL = os.Getenv("LENS_OPENAI_BASE_URL")
	case "gemini", "google":
		opts.APIKey = os.Getenv("GEMINI_API_KEY")
		if opts.APIKey == "" {
			opts.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
		opts.BaseURL = os.Getenv("LENS_GEMINI_BASE_URL")
	case "ollama", "lmstudio":
		opts.APIKey = os.Getenv("LENS_OLLAMA_API_KEY")
		opts.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	return opts
}
