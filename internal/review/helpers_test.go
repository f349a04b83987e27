package review

import (
	"context"
	"strings"
	"sync"

	"github.com/dshills/lens/internal/config"
	"github.com/dshills/lens/internal/providers"
)

// lineTokenizer counts one token per line.
type lineTokenizer struct{}

func (lineTokenizer) Count(text string) int {
	return len(splitLines(text))
}

type stubReviewer struct {
	mu       sync.Mutex
	requests []providers.ReviewRequest
	respond  func(n int, req providers.ReviewRequest) (string, error)
}

func (s *stubReviewer) Name() string { return "stub" }

func (s *stubReviewer) Review(ctx context.Context, req providers.ReviewRequest) (providers.ReviewResponse, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return providers.ReviewResponse{}, err
	}
	content, err := s.respond(n, req)
	if err != nil {
		return providers.ReviewResponse{}, err
	}
	return providers.ReviewResponse{Content: content, TokensUsed: 7}, nil
}

func (s *stubReviewer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubReviewer) prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.UserPrompt
	}
	return out
}

func respondWith(content string) func(int, providers.ReviewRequest) (string, error) {
	return func(int, providers.ReviewRequest) (string, error) { return content, nil }
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.BaseBackoffMs = 1
	cfg.MaxBackoffMs = 4
	cfg.RequestTimeoutSeconds = 5
	return cfg
}

// repeatLines returns n lines, each width bytes long before its newline.
func repeatLines(n, width int) string {
	line := strings.Repeat("x", width) + "\n"
	return strings.Repeat(line, n)
}
