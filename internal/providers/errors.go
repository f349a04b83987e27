package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Class groups provider errors by how a caller should react.
type Class int

const (
	// Transient errors may succeed on retry: timeouts, rate limits, 5xx
	// responses, network failures and malformed response envelopes.
	Transient Class = iota
	// Fatal errors will not succeed on retry: rejected credentials and
	// rejected requests.
	Fatal
	// Canceled means the caller's context was canceled.
	Canceled
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.retryAfter)
	}
	return "rate limited"
}

type authError struct {
	message string
}

const authErrorPrefix = "authentication error: "

func (e *authError) Error() string {
	return authErrorPrefix + e.message
}

type serverError struct {
	statusCode int
	body       string
}

func (e *serverError) Error() string {
	return "server error: " + e.body
}

// requestError is a 4xx rejection other than auth or rate limiting.
type requestError struct {
	statusCode int
	body       string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.statusCode, e.body)
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

// IsAuthMessage reports whether msg is the text of an authentication error.
// Reports carry errors as strings, so callers inspecting one use this
// instead of IsAuthError.
func IsAuthMessage(msg string) bool {
	return strings.Contains(msg, authErrorPrefix)
}

// Classify reports how err should be handled.
func Classify(err error) Class {
	if err == nil {
		return Transient
	}
	if errors.Is(err, context.Canceled) {
		return Canceled
	}
	var (
		ae *authError
		re *requestError
	)
	if errors.As(err, &ae) || errors.As(err, &re) {
		return Fatal
	}
	return Transient
}

// RetryAfter returns the server-requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var rl *rateLimitError
	if errors.As(err, &rl) {
		return rl.retryAfter
	}
	return 0
}

// statusError maps a non-200 response to a typed error.
func statusError(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &authError{message: string(body)}
	case resp.StatusCode >= 500:
		return &serverError{statusCode: resp.StatusCode, body: string(body)}
	case resp.StatusCode == http.StatusRequestTimeout:
		return &serverError{statusCode: resp.StatusCode, body: string(body)}
	default:
		return &requestError{statusCode: resp.StatusCode, body: string(body)}
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
