package config

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	severityNames = []string{"low", "medium", "high", "critical"}
	formatNames   = []string{"text", "json", "markdown", "sarif"}
)

// Validate reports every invalid setting. Each error wraps ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Provider == "" {
		fail("provider is required")
	}
	if c.Model == "" {
		fail("model is required")
	}
	if !oneOf(c.Format, formatNames) {
		fail("format %q must be one of %v", c.Format, formatNames)
	}
	if c.FailOn != "none" && !oneOf(c.FailOn, severityNames) {
		fail("failOn %q must be none or one of %v", c.FailOn, severityNames)
	}
	if !oneOf(c.SeverityThreshold, severityNames) {
		fail("severityThreshold %q must be one of %v", c.SeverityThreshold, severityNames)
	}
	if c.MaxConcurrency < 1 {
		fail("maxConcurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.TokenBudgetPerUnit < 1 {
		fail("tokenBudgetPerUnit must be positive, got %d", c.TokenBudgetPerUnit)
	}
	if c.ContextShare < 0 || c.ContextShare >= 1 {
		fail("contextShare must be in [0, 1), got %g", c.ContextShare)
	}
	if c.ContextDepth < 0 {
		fail("contextDepth must not be negative, got %d", c.ContextDepth)
	}
	if c.RetryCeiling < 0 {
		fail("retryCeiling must not be negative, got %d", c.RetryCeiling)
	}
	if c.BaseBackoffMs < 0 {
		fail("baseBackoffMs must not be negative, got %d", c.BaseBackoffMs)
	}
	if c.MaxBackoffMs < c.BaseBackoffMs {
		fail("maxBackoffMs (%d) must not be below baseBackoffMs (%d)", c.MaxBackoffMs, c.BaseBackoffMs)
	}
	if c.RequestTimeoutSeconds < 1 {
		fail("requestTimeoutSeconds must be at least 1, got %d", c.RequestTimeoutSeconds)
	}
	if c.RequestsPerSecond < 0 {
		fail("requestsPerSecond must not be negative, got %g", c.RequestsPerSecond)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		fail("similarityThreshold must be in (0, 1], got %g", c.SimilarityThreshold)
	}
	if c.MaxResponseTokens < 0 {
		fail("maxResponseTokens must not be negative, got %d", c.MaxResponseTokens)
	}
	if c.MaxFindings < 0 {
		fail("maxFindings must not be negative, got %d", c.MaxFindings)
	}
	for _, globs := range []struct {
		key      string
		patterns []string
	}{
		{"include", c.Include},
		{"exclude", c.Exclude},
		{"privacy.redactPaths", c.Privacy.RedactPaths},
	} {
		for _, p := range globs.patterns {
			if !doublestar.ValidatePattern(p) {
				fail("%s pattern %q is malformed", globs.key, p)
			}
		}
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds < 0 {
		fail("cache.ttlSeconds must not be negative, got %d", c.Cache.TTLSeconds)
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
