package review

import (
	"errors"
	"fmt"
)

// ErrEmptyCorpus aborts a run that has no files to review.
var ErrEmptyCorpus = errors.New("no files to review")

// ErrorKind classifies a unit's terminal failure.
type ErrorKind string

const (
	// KindExhausted: transient failures (timeouts, rate limits, server
	// errors, unparseable output) outlasted the retry ceiling.
	KindExhausted ErrorKind = "exhausted"
	// KindFatal: the request was rejected and was not retried.
	KindFatal ErrorKind = "fatal"
	// KindCanceled: the run was canceled before the unit resolved.
	KindCanceled ErrorKind = "canceled"
)

// DispatchError is the terminal failure of one review unit.
type DispatchError struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *DispatchError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ParseError reports model output that does not match the findings schema.
type ParseError struct {
	Reason string
	// Index is the offending array element, or -1 for document-level errors.
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("finding %d: %s", e.Index, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
