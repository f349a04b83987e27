package providers

import (
	"context"
	"time"
)

// Policy is an exponential backoff schedule.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Backoff returns the delay before retry number attempt (0-based):
// BaseBackoff doubled per attempt, or the server's Retry-After when larger,
// never above MaxBackoff.
func (p Policy) Backoff(attempt int, err error) time.Duration {
	d := p.BaseBackoff
	for i := 0; i < attempt && (p.MaxBackoff <= 0 || d < p.MaxBackoff); i++ {
		d *= 2
	}
	if ra := RetryAfter(err); ra > d {
		d = ra
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Retry calls fn until it succeeds, fails with a non-transient error, or the
// policy's retries are spent. It returns the number of attempts made and the
// last error. onRetry, when set, is called before each backoff wait.
func Retry(ctx context.Context, p Policy, fn func(attempt int) error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt, lastErr
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if Classify(lastErr) != Transient || attempt == p.MaxRetries {
			return attempt + 1, lastErr
		}

		wait := p.Backoff(attempt, lastErr)
		if onRetry != nil {
			onRetry(attempt+1, lastErr, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, ctx.Err()
		case <-timer.C:
		}
	}
	return p.MaxRetries + 1, lastErr
}
