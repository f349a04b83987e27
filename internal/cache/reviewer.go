package cache

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"github.com/dshills/lens/internal/providers"
)

// Reviewer serves provider responses from a Cache and stores fresh ones.
type Reviewer struct {
	next     providers.Reviewer
	cache    *Cache
	model    string
	validate func(string) bool
}

// Wrap decorates r with c. Only responses accepted by validate are stored,
// so output that failed to parse is never replayed. A nil or disabled cache
// returns r unchanged.
func Wrap(r providers.Reviewer, c *Cache, model string, validate func(string) bool) providers.Reviewer {
	if c == nil || !c.Enabled() {
		return r
	}
	return &Reviewer{next: r, cache: c, model: model, validate: validate}
}

func (r *Reviewer) Name() string {
	return r.next.Name()
}

func (r *Reviewer) Review(ctx context.Context, req providers.ReviewRequest) (providers.ReviewResponse, error) {
	key := BuildKey(r.next.Name(), r.model, req.SystemPrompt, req.UserPrompt, req.MaxTokens)
	if entry, ok := r.cache.Get(key); ok {
		logger.WithField("key", HashKey(key)[:12]).Debug("cache hit")
		return providers.ReviewResponse{Content: entry.Response}, nil
	}

	resp, err := r.next.Review(ctx, req)
	if err != nil {
		return resp, err
	}
	if r.validate == nil || r.validate(resp.Content) {
		if err := r.cache.Put(key, resp.Content, resp.TokensUsed); err != nil {
			logger.WithError(err).Warn("could not write cache entry")
		}
	}
	return resp, nil
}
